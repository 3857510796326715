// Package codec wraps FFmpeg's libavcodec behind owned codec sessions.
//
// A Session owns exactly one native codec context together with the frame and
// packet buffers it reuses between calls. Decode and Encode drive the
// send/receive handshake of the codec API and translate the "try again" and
// "end of stream" return codes into empty results, so callers only ever see
// real failures as errors.
package codec

import (
	"fmt"
	"strings"
)

// CodecID identifies a codec independently of the FFmpeg build.
type CodecID int

// Supported codec identifiers.
const (
	CodecUnknown CodecID = iota
	H264
	HEVC
	MPEG4
	VP8
	VP9
	AV1
	MJPEG
	PNG
	BMP
	GIF
	TIFF
	WEBP
	FFV1
	RawVideo
	AAC
	MP3
	Opus
	FLAC
	PCMS16LE
)

// String returns the FFmpeg codec name for the identifier.
func (id CodecID) String() string {
	if d, ok := descriptorFor(id); ok {
		return d.Name
	}
	return fmt.Sprintf("codec(%d)", int(id))
}

// ParseCodecID resolves a codec name such as "h264" or "MJPEG".
func ParseCodecID(name string) (CodecID, error) {
	if id, ok := Lookup(name); ok {
		return id, nil
	}
	return CodecUnknown, &CodecNotFoundError{Name: name}
}

// Direction tells whether a session decodes or encodes.
type Direction int

const (
	// Decoder turns packets into frames.
	Decoder Direction = iota
	// Encoder turns frames into packets.
	Encoder
)

func (d Direction) String() string {
	switch d {
	case Decoder:
		return "decoder"
	case Encoder:
		return "encoder"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// MediaType is the kind of data a codec handles.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaVideo
	MediaAudio
)

func (m MediaType) String() string {
	switch m {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// PixelFormat is an FFmpeg pixel format name, e.g. "yuv420p" or "rgb24".
type PixelFormat string

// Pixel formats used across the repository.
const (
	PixelFormatNone     PixelFormat = ""
	PixelFormatYUV420P  PixelFormat = "yuv420p"
	PixelFormatYUVJ420P PixelFormat = "yuvj420p"
	PixelFormatYUV444P  PixelFormat = "yuv444p"
	PixelFormatRGB24    PixelFormat = "rgb24"
	PixelFormatRGBA     PixelFormat = "rgba"
	PixelFormatGray8    PixelFormat = "gray"
)

// SampleFormat is an FFmpeg sample format name, e.g. "s16" or "fltp".
type SampleFormat string

// Sample formats understood by the native layer.
const (
	SampleFormatNone SampleFormat = ""
	SampleFormatU8   SampleFormat = "u8"
	SampleFormatS16  SampleFormat = "s16"
	SampleFormatS32  SampleFormat = "s32"
	SampleFormatFLT  SampleFormat = "flt"
	SampleFormatDBL  SampleFormat = "dbl"
	SampleFormatU8P  SampleFormat = "u8p"
	SampleFormatS16P SampleFormat = "s16p"
	SampleFormatS32P SampleFormat = "s32p"
	SampleFormatFLTP SampleFormat = "fltp"
	SampleFormatDBLP SampleFormat = "dblp"
)

// BytesPerSample returns the size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	switch strings.TrimSuffix(string(f), "p") {
	case "u8":
		return 1
	case "s16":
		return 2
	case "s32", "flt":
		return 4
	case "dbl":
		return 8
	default:
		return 0
	}
}

// Planar reports whether each channel is stored in its own plane.
func (f SampleFormat) Planar() bool {
	return strings.HasSuffix(string(f), "p")
}

// Rational is a fraction such as a time base.
type Rational struct {
	Num int
	Den int
}

// IsZero reports whether the rational is unset.
func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Packet is one unit of compressed data. An empty packet signals a flush.
type Packet struct {
	Data []byte
	PTS  int64
	DTS  int64
	Key  bool
}

// Empty reports whether the packet carries no data. A nil packet is empty.
func (p *Packet) Empty() bool {
	return p == nil || len(p.Data) == 0
}

// Frame is one decoded picture or block of audio samples.
//
// Data holds the planes back to back with no line padding (alignment 1), which
// is the layout FFmpeg's image and sample copy helpers produce.
type Frame struct {
	MediaType MediaType

	Width       int
	Height      int
	PixelFormat PixelFormat

	SampleRate   int
	SampleFormat SampleFormat
	Channels     int
	NbSamples    int

	PTS  int64
	Data []byte
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Data = append([]byte(nil), f.Data...)
	return &c
}
