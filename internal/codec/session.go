package codec

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Config is the parameter set applied to a codec before it is opened.
// Zero values are left for FFmpeg to pick or reject.
type Config struct {
	// Video parameters.
	PixelFormat PixelFormat
	Width       int `validate:"gte=0,lte=16384"`
	Height      int `validate:"gte=0,lte=16384"`

	// TimeBase is the unit of PTS values. Video encoders need one.
	TimeBase Rational

	// Audio parameters.
	SampleRate   int `validate:"gte=0,lte=768000"`
	SampleFormat SampleFormat
	Channels     int `validate:"omitempty,oneof=1 2 6"`

	BitRate int64 `validate:"gte=0"`
	GOPSize int   `validate:"gte=0"`

	// Profile is a human-readable profile name, resolved case-insensitively
	// against the codec's declared profiles. Encoders only.
	Profile string

	// Extradata is codec setup data carried out of band, such as an AAC
	// AudioSpecificConfig or an H.264 avcC record. Decoders of raw
	// streams need it.
	Extradata []byte

	// GlobalHeader asks an encoder to put its setup data in Extradata
	// instead of in every keyframe. Containers like MP4 need it. Encoders only.
	GlobalHeader bool

	// Options are codec private options ("preset", "crf", "threads", ...).
	// A key the codec does not consume is a configuration error.
	Options map[string]string
}

var validate = validator.New()

func (c Config) validate(codecName string) error {
	if err := validate.Struct(c); err != nil {
		return &ConfigurationError{Codec: codecName, Reason: "invalid parameters", Err: err}
	}
	if c.TimeBase.Num < 0 || c.TimeBase.Den < 0 {
		return &ConfigurationError{Codec: codecName, Reason: fmt.Sprintf("invalid time base %s", c.TimeBase)}
	}
	return nil
}

// engine is the native side of a session. Implementations report the two
// non-fatal outcomes as errAgain and errEOF and everything else as a
// *NativeError where a code is available.
type engine interface {
	// sendPacket pushes compressed data; nil starts draining.
	sendPacket(pkt *Packet) error
	receiveFrame() (*Frame, error)
	// sendFrame pushes a raw frame; nil starts draining.
	sendFrame(f *Frame) error
	receivePacket() (*Packet, error)
	pixelFormat() PixelFormat
	// extradata is the context's current setup data.
	extradata() []byte
	// frameSize is the sample count an audio encoder wants per frame, 0 for any.
	frameSize() int
	free()
}

// Session is one open codec instance. It must be closed.
//
// Calls on a session are serialized, but the handshake is stateful: a single
// caller should drive a session from start to finish. Distinct sessions share
// nothing and can run on separate goroutines.
type Session struct {
	mu sync.Mutex

	id        CodecID
	name      string
	dir       Direction
	mediaType MediaType
	cfg       Config
	profiles  []ProfileEntry

	eng      engine
	draining bool
}

// Open allocates, configures and opens a codec session.
func Open(id CodecID, dir Direction, cfg Config) (*Session, error) {
	Init()
	d, ok := descriptorFor(id)
	if !ok {
		return nil, &CodecNotFoundError{ID: id, Direction: dir}
	}
	c := findCodec(id, dir)
	if c == nil {
		return nil, &CodecNotFoundError{ID: id, Name: d.Name, Direction: dir}
	}
	return openWith(d, c, dir, cfg)
}

// OpenByName opens a session for an FFmpeg codec name such as "libx264".
func OpenByName(name string, dir Direction, cfg Config) (*Session, error) {
	Init()
	c := findCodecByName(name, dir)
	if c == nil {
		return nil, &CodecNotFoundError{Name: name, Direction: dir}
	}
	return openWith(describeNative(c), c, dir, cfg)
}

func openWith(d Descriptor, c nativeCodec, dir Direction, cfg Config) (*Session, error) {
	if err := cfg.validate(d.Name); err != nil {
		return nil, err
	}

	profile := ProfileUnknown
	if cfg.Profile != "" {
		if dir != Encoder {
			return nil, &ConfigurationError{Codec: d.Name, Reason: "profile is only applied to encoders"}
		}
		profile = resolveProfile(d.Profiles, cfg.Profile)
		if profile == ProfileUnknown {
			return nil, &ConfigurationError{Codec: d.Name, Reason: fmt.Sprintf("unknown profile %q", cfg.Profile)}
		}
	}

	if cfg.GlobalHeader && dir != Encoder {
		return nil, &ConfigurationError{Codec: d.Name, Reason: "global header is only applied to encoders"}
	}

	eng, err := openEngine(c, d, dir, cfg, profile)
	if err != nil {
		return nil, err
	}
	return newSession(d, dir, cfg, eng), nil
}

func newSession(d Descriptor, dir Direction, cfg Config, eng engine) *Session {
	return &Session{
		id:        d.ID,
		name:      d.Name,
		dir:       dir,
		mediaType: d.MediaType,
		cfg:       cfg,
		profiles:  d.Profiles,
		eng:       eng,
	}
}

// Close releases the native context and buffers. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return
	}
	s.eng.free()
	s.eng = nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng == nil
}

// ResolveProfile maps a profile name to the codec's value, ignoring case.
// It returns ProfileUnknown when the codec declares no such profile.
func (s *Session) ResolveProfile(name string) Profile {
	return resolveProfile(s.profiles, name)
}

// CodecID returns the session's codec identifier. It is CodecUnknown for
// codecs opened by a name this package does not declare.
func (s *Session) CodecID() CodecID { return s.id }

// Name returns the codec name.
func (s *Session) Name() string { return s.name }

// Direction returns whether the session decodes or encodes.
func (s *Session) Direction() Direction { return s.dir }

// MediaType returns the kind of data the codec handles.
func (s *Session) MediaType() MediaType { return s.mediaType }

// Config returns the configuration the session was opened with.
func (s *Session) Config() Config { return s.cfg }

// PixelFormat returns the pixel format the codec context currently uses.
// Decoders learn it from the stream, so it may change after the first frame.
func (s *Session) PixelFormat() PixelFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return s.cfg.PixelFormat
	}
	if pf := s.eng.pixelFormat(); pf != PixelFormatNone {
		return pf
	}
	return s.cfg.PixelFormat
}

// Extradata returns a copy of the codec setup data. Encoders opened with
// GlobalHeader fill it when they open; decoders may learn it from the stream.
func (s *Session) Extradata() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return nil
	}
	return append([]byte(nil), s.eng.extradata()...)
}

// FrameSize returns the number of samples per channel an audio encoder
// expects in every frame but the last. It is 0 when any size is accepted.
func (s *Session) FrameSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eng == nil {
		return 0
	}
	return s.eng.frameSize()
}

// ready checks the session can take a call in the given direction.
// The caller holds s.mu.
func (s *Session) ready(dir Direction) error {
	if s.eng == nil {
		return ErrSessionClosed
	}
	if s.dir != dir {
		return ErrWrongDirection
	}
	return nil
}
