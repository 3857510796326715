package codec

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/asticode/go-astiav"
)

// nativeCodec is a codec found in the linked FFmpeg build.
type nativeCodec = *astiav.Codec

var nativeIDs = map[CodecID]astiav.CodecID{
	H264:     astiav.CodecIDH264,
	HEVC:     astiav.CodecIDHevc,
	MPEG4:    astiav.CodecIDMpeg4,
	VP8:      astiav.CodecIDVp8,
	VP9:      astiav.CodecIDVp9,
	AV1:      astiav.CodecIDAv1,
	MJPEG:    astiav.CodecIDMjpeg,
	PNG:      astiav.CodecIDPng,
	BMP:      astiav.CodecIDBmp,
	GIF:      astiav.CodecIDGif,
	TIFF:     astiav.CodecIDTiff,
	WEBP:     astiav.CodecIDWebp,
	FFV1:     astiav.CodecIDFfv1,
	RawVideo: astiav.CodecIDRawvideo,
	AAC:      astiav.CodecIDAac,
	MP3:      astiav.CodecIDMp3,
	Opus:     astiav.CodecIDOpus,
	FLAC:     astiav.CodecIDFlac,
	PCMS16LE: astiav.CodecIDPcmS16Le,
}

var logLevels = map[string]astiav.LogLevel{
	"quiet":   astiav.LogLevelQuiet,
	"error":   astiav.LogLevelError,
	"warning": astiav.LogLevelWarning,
	"info":    astiav.LogLevelInfo,
	"debug":   astiav.LogLevelDebug,
}

func initNative() {
	astiav.SetLogLevel(astiav.LogLevelError)
}

// SetLogLevel sets FFmpeg's own log level: quiet, error, warning, info or debug.
func SetLogLevel(level string) error {
	l, ok := logLevels[strings.ToLower(level)]
	if !ok {
		return fmt.Errorf("unknown ffmpeg log level %q", level)
	}
	astiav.SetLogLevel(l)
	return nil
}

func findCodec(id CodecID, dir Direction) nativeCodec {
	nid, ok := nativeIDs[id]
	if !ok {
		return nil
	}
	if dir == Encoder {
		return astiav.FindEncoder(nid)
	}
	return astiav.FindDecoder(nid)
}

func findCodecByName(name string, dir Direction) nativeCodec {
	if dir == Encoder {
		return astiav.FindEncoderByName(name)
	}
	return astiav.FindDecoderByName(name)
}

// describeNative builds a descriptor for a codec found by name. Codecs like
// "libx264" implement a declared identifier and inherit its profiles.
func describeNative(c nativeCodec) Descriptor {
	for id, nid := range nativeIDs {
		if nid == c.ID() {
			d, _ := descriptorFor(id)
			d.Name = c.Name()
			return d
		}
	}
	d := Descriptor{ID: CodecUnknown, Name: c.Name()}
	switch c.MediaType() {
	case astiav.MediaTypeVideo:
		d.MediaType = MediaVideo
	case astiav.MediaTypeAudio:
		d.MediaType = MediaAudio
	}
	return d
}

// translate folds astiav errors into this package's taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, astiav.ErrEagain):
		return errAgain
	case errors.Is(err, astiav.ErrEof):
		return errEOF
	}
	var ae astiav.Error
	if errors.As(err, &ae) {
		return &NativeError{Code: int(ae), Message: ae.Error()}
	}
	return err
}

func nativePixelFormat(pf PixelFormat) (astiav.PixelFormat, error) {
	f := astiav.FindPixelFormatByName(string(pf))
	if f == astiav.PixelFormatNone {
		return f, fmt.Errorf("unknown pixel format %q", pf)
	}
	return f, nil
}

var sampleFormats = map[SampleFormat]astiav.SampleFormat{
	SampleFormatU8:   astiav.SampleFormatU8,
	SampleFormatS16:  astiav.SampleFormatS16,
	SampleFormatS32:  astiav.SampleFormatS32,
	SampleFormatFLT:  astiav.SampleFormatFlt,
	SampleFormatDBL:  astiav.SampleFormatDbl,
	SampleFormatU8P:  astiav.SampleFormatU8P,
	SampleFormatS16P: astiav.SampleFormatS16P,
	SampleFormatS32P: astiav.SampleFormatS32P,
	SampleFormatFLTP: astiav.SampleFormatFltp,
	SampleFormatDBLP: astiav.SampleFormatDblp,
}

func nativeSampleFormat(sf SampleFormat) (astiav.SampleFormat, error) {
	f, ok := sampleFormats[sf]
	if !ok {
		return astiav.SampleFormatNone, fmt.Errorf("unknown sample format %q", sf)
	}
	return f, nil
}

func sampleFormatOf(f astiav.SampleFormat) SampleFormat {
	for k, v := range sampleFormats {
		if v == f {
			return k
		}
	}
	return SampleFormatNone
}

func channelLayout(channels int) (astiav.ChannelLayout, error) {
	switch channels {
	case 1:
		return astiav.ChannelLayoutMono, nil
	case 2:
		return astiav.ChannelLayoutStereo, nil
	case 6:
		return astiav.ChannelLayout5Point1, nil
	default:
		return astiav.ChannelLayout{}, fmt.Errorf("unsupported channel count %d", channels)
	}
}

// ffmpegEngine owns one AVCodecContext plus the frame and packet it reuses
// for every call.
type ffmpegEngine struct {
	cc    *astiav.CodecContext
	frame *astiav.Frame
	pkt   *astiav.Packet
	media MediaType
}

// openEngine applies cfg to a fresh context and opens it. Everything
// allocated so far is released on any failure.
func openEngine(c nativeCodec, d Descriptor, dir Direction, cfg Config, profile Profile) (engine, error) {
	cc := astiav.AllocCodecContext(c)
	if cc == nil {
		return nil, &AllocationError{What: "codec context"}
	}
	e := &ffmpegEngine{cc: cc, media: d.MediaType}

	if err := e.configure(d, dir, cfg, profile); err != nil {
		e.free()
		return nil, err
	}

	dict := astiav.NewDictionary()
	defer dict.Free()
	for k, v := range cfg.Options {
		if err := dict.Set(k, v, 0); err != nil {
			e.free()
			return nil, &ConfigurationError{Codec: d.Name, Reason: fmt.Sprintf("option %q", k), Err: translate(err)}
		}
	}
	if err := cc.Open(c, dict); err != nil {
		e.free()
		return nil, &ConfigurationError{Codec: d.Name, Reason: "open failed", Err: translate(err)}
	}
	if left := leftoverOptions(dict); len(left) > 0 {
		e.free()
		return nil, &ConfigurationError{Codec: d.Name, Reason: "unrecognized options: " + strings.Join(left, ", ")}
	}

	if e.frame = astiav.AllocFrame(); e.frame == nil {
		e.free()
		return nil, &AllocationError{What: "frame"}
	}
	if e.pkt = astiav.AllocPacket(); e.pkt == nil {
		e.free()
		return nil, &AllocationError{What: "packet"}
	}
	return e, nil
}

func (e *ffmpegEngine) configure(d Descriptor, dir Direction, cfg Config, profile Profile) error {
	cc := e.cc
	if cfg.PixelFormat != PixelFormatNone {
		pf, err := nativePixelFormat(cfg.PixelFormat)
		if err != nil {
			return &ConfigurationError{Codec: d.Name, Reason: "pixel format", Err: err}
		}
		cc.SetPixelFormat(pf)
	}
	if cfg.Width > 0 {
		cc.SetWidth(cfg.Width)
	}
	if cfg.Height > 0 {
		cc.SetHeight(cfg.Height)
	}
	if !cfg.TimeBase.IsZero() {
		cc.SetTimeBase(astiav.NewRational(cfg.TimeBase.Num, cfg.TimeBase.Den))
	}
	if cfg.SampleRate > 0 {
		cc.SetSampleRate(cfg.SampleRate)
	}
	if cfg.SampleFormat != SampleFormatNone {
		sf, err := nativeSampleFormat(cfg.SampleFormat)
		if err != nil {
			return &ConfigurationError{Codec: d.Name, Reason: "sample format", Err: err}
		}
		cc.SetSampleFormat(sf)
	}
	if cfg.Channels > 0 {
		l, err := channelLayout(cfg.Channels)
		if err != nil {
			return &ConfigurationError{Codec: d.Name, Reason: "channel layout", Err: err}
		}
		cc.SetChannelLayout(l)
	}
	if cfg.BitRate > 0 {
		cc.SetBitRate(cfg.BitRate)
	}
	if cfg.GOPSize > 0 {
		cc.SetGopSize(cfg.GOPSize)
	}
	if dir == Encoder && profile != ProfileUnknown {
		cc.SetProfile(astiav.Profile(profile))
	}
	if len(cfg.Extradata) > 0 {
		if err := cc.SetExtraData(cfg.Extradata); err != nil {
			return &ConfigurationError{Codec: d.Name, Reason: "extradata", Err: translate(err)}
		}
	}
	if dir == Encoder && cfg.GlobalHeader {
		cc.SetFlags(cc.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}
	return nil
}

// leftoverOptions lists dictionary keys the codec did not consume.
func leftoverOptions(d *astiav.Dictionary) []string {
	var keys []string
	flags := astiav.NewDictionaryFlags(astiav.DictionaryFlagIgnoreSuffix)
	var prev *astiav.DictionaryEntry
	for {
		prev = d.Get("", prev, flags)
		if prev == nil {
			break
		}
		keys = append(keys, prev.Key())
	}
	sort.Strings(keys)
	return keys
}

func (e *ffmpegEngine) sendPacket(p *Packet) error {
	if p.Empty() {
		return translate(e.cc.SendPacket(nil))
	}
	e.pkt.Unref()
	if err := e.pkt.FromData(p.Data); err != nil {
		return &AllocationError{What: "packet data", Err: translate(err)}
	}
	e.pkt.SetPts(p.PTS)
	e.pkt.SetDts(p.DTS)
	err := e.cc.SendPacket(e.pkt)
	e.pkt.Unref()
	return translate(err)
}

func (e *ffmpegEngine) receiveFrame() (*Frame, error) {
	e.frame.Unref()
	if err := e.cc.ReceiveFrame(e.frame); err != nil {
		return nil, translate(err)
	}
	defer e.frame.Unref()
	return exportFrame(e.frame, e.media)
}

func (e *ffmpegEngine) sendFrame(f *Frame) error {
	if f == nil {
		return translate(e.cc.SendFrame(nil))
	}
	e.frame.Unref()
	if err := importFrame(e.frame, f); err != nil {
		return err
	}
	err := e.cc.SendFrame(e.frame)
	e.frame.Unref()
	return translate(err)
}

func (e *ffmpegEngine) receivePacket() (*Packet, error) {
	e.pkt.Unref()
	if err := e.cc.ReceivePacket(e.pkt); err != nil {
		return nil, translate(err)
	}
	defer e.pkt.Unref()
	return &Packet{
		Data: append([]byte(nil), e.pkt.Data()...),
		PTS:  e.pkt.Pts(),
		DTS:  e.pkt.Dts(),
		Key:  e.pkt.Flags().Has(astiav.PacketFlagKey),
	}, nil
}

func (e *ffmpegEngine) pixelFormat() PixelFormat {
	if e.cc == nil || e.cc.PixelFormat() == astiav.PixelFormatNone {
		return PixelFormatNone
	}
	return PixelFormat(e.cc.PixelFormat().String())
}

func (e *ffmpegEngine) extradata() []byte {
	if e.cc == nil {
		return nil
	}
	return e.cc.ExtraData()
}

func (e *ffmpegEngine) frameSize() int {
	if e.cc == nil || e.media != MediaAudio {
		return 0
	}
	return e.cc.FrameSize()
}

func (e *ffmpegEngine) free() {
	if e.frame != nil {
		e.frame.Free()
		e.frame = nil
	}
	if e.pkt != nil {
		e.pkt.Free()
		e.pkt = nil
	}
	if e.cc != nil {
		e.cc.Free()
		e.cc = nil
	}
}

// importFrame fills dst with a fresh buffer holding f's parameters and data.
func importFrame(dst *astiav.Frame, f *Frame) error {
	switch f.MediaType {
	case MediaAudio:
		sf, err := nativeSampleFormat(f.SampleFormat)
		if err != nil {
			return err
		}
		l, err := channelLayout(f.Channels)
		if err != nil {
			return err
		}
		dst.SetSampleFormat(sf)
		dst.SetSampleRate(f.SampleRate)
		dst.SetChannelLayout(l)
		dst.SetNbSamples(f.NbSamples)
	default:
		pf, err := nativePixelFormat(f.PixelFormat)
		if err != nil {
			return err
		}
		dst.SetPixelFormat(pf)
		dst.SetWidth(f.Width)
		dst.SetHeight(f.Height)
	}
	dst.SetPts(f.PTS)
	if err := dst.AllocBuffer(0); err != nil {
		return &AllocationError{What: "frame buffer", Err: translate(err)}
	}
	if len(f.Data) > 0 {
		if err := dst.Data().SetBytes(f.Data, 1); err != nil {
			return &AllocationError{What: "frame data", Err: translate(err)}
		}
	}
	return nil
}

// exportFrame copies a native frame out as a packed Frame.
func exportFrame(src *astiav.Frame, media MediaType) (*Frame, error) {
	b, err := src.Data().Bytes(1)
	if err != nil {
		return nil, &AllocationError{What: "frame copy", Err: translate(err)}
	}
	f := &Frame{MediaType: media, PTS: src.Pts(), Data: b}
	if media == MediaAudio {
		f.SampleRate = src.SampleRate()
		f.SampleFormat = sampleFormatOf(src.SampleFormat())
		f.Channels = src.ChannelLayout().Channels()
		f.NbSamples = src.NbSamples()
		return f, nil
	}
	f.Width = src.Width()
	f.Height = src.Height()
	f.PixelFormat = PixelFormat(src.PixelFormat().String())
	return f, nil
}
