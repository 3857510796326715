// Package thumbnail encodes a single decoded picture as a JPEG image.
package thumbnail

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/maauso/framecodec/internal/codec"
)

// ErrNoPacket is returned when the encoder gives nothing back even after
// being flushed.
var ErrNoPacket = errors.New("jpeg encoder produced no packet")

// jpegTimeBase is fixed: a still picture has no timing of its own.
var jpegTimeBase = codec.Rational{Num: 1, Den: 25}

// encoder is the part of a codec session EncodeJPEG drives.
type encoder interface {
	Encode(f *codec.Frame) (codec.EncodeResult, error)
	Name() string
	Close()
}

// openEncoder opens the throwaway encoder. An empty name selects MJPEG.
var openEncoder = func(name string, cfg codec.Config) (encoder, error) {
	var (
		s   *codec.Session
		err error
	)
	if name != "" {
		s, err = codec.OpenByName(name, codec.Encoder, cfg)
	} else {
		s, err = codec.Open(codec.MJPEG, codec.Encoder, cfg)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Hints carries what the encoder must know about the source stream.
type Hints struct {
	PixelFormat codec.PixelFormat
}

// HintsFrom captures the hints of an open source session.
func HintsFrom(s *codec.Session) Hints {
	return Hints{PixelFormat: s.PixelFormat()}
}

type options struct {
	quality     int
	encoderName string
	logger      *slog.Logger
}

// Option configures EncodeJPEG.
type Option func(*options)

// WithQuality sets the quantizer, 2 (best) to 31 (worst).
func WithQuality(q int) Option {
	return func(o *options) { o.quality = q }
}

// WithEncoder selects an FFmpeg encoder by name instead of the default MJPEG one.
func WithEncoder(name string) Option {
	return func(o *options) { o.encoderName = name }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// EncodeJPEG encodes frame as one JPEG packet with a throwaway encoder.
//
// If the first encode call yields nothing the encoder is flushed once; a
// second empty result is an *codec.EncodeError wrapping ErrNoPacket.
func EncodeJPEG(hints Hints, frame *codec.Frame, opts ...Option) (*codec.Packet, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, &codec.ConfigurationError{Codec: "mjpeg", Reason: "frame has no picture"}
	}

	pf := hints.PixelFormat
	if pf == codec.PixelFormatNone {
		pf = frame.PixelFormat
	}
	cfg := codec.Config{
		PixelFormat: pf,
		Width:       frame.Width,
		Height:      frame.Height,
		TimeBase:    jpegTimeBase,
	}
	if o.quality != 0 {
		if o.quality < 2 || o.quality > 31 {
			return nil, &codec.ConfigurationError{Codec: "mjpeg", Reason: fmt.Sprintf("quality %d out of range 2-31", o.quality)}
		}
		q := strconv.Itoa(o.quality)
		cfg.Options = map[string]string{"qmin": q, "qmax": q}
	}

	s, err := openEncoder(o.encoderName, cfg)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	res, err := s.Encode(frame)
	if err != nil {
		return nil, err
	}
	if res.Produced() {
		return res.Packet, nil
	}

	o.logger.Debug("jpeg encoder held the frame, flushing",
		slog.String("codec", s.Name()),
		slog.Int("width", frame.Width),
		slog.Int("height", frame.Height),
	)
	res, err = s.Encode(nil)
	if err != nil {
		return nil, err
	}
	if !res.Produced() {
		return nil, &codec.EncodeError{Codec: s.Name(), Op: "receive packet", Err: ErrNoPacket}
	}
	return res.Packet, nil
}
