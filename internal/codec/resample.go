package codec

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
)

// ResampleConfig describes an audio sample rate, format and layout conversion.
type ResampleConfig struct {
	InRate      int          `validate:"gt=0"`
	InFormat    SampleFormat `validate:"required"`
	InChannels  int          `validate:"gt=0"`
	OutRate     int          `validate:"gt=0"`
	OutFormat   SampleFormat `validate:"required"`
	OutChannels int          `validate:"gt=0"`
}

// Resampler converts audio frames with libswresample. Output frames can lag
// behind input because the filter keeps history; Flush returns the tail.
type Resampler struct {
	mu  sync.Mutex
	cfg ResampleConfig

	ctx *astiav.SoftwareResampleContext
	src *astiav.Frame
	dst *astiav.Frame

	converted bool
	flushed   bool
}

// NewResampler validates cfg and allocates a resampling context. The
// context itself is configured from the first frame.
func NewResampler(cfg ResampleConfig) (*Resampler, error) {
	Init()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigurationError{Codec: "swresample", Reason: "invalid parameters", Err: err}
	}
	for _, sf := range []SampleFormat{cfg.InFormat, cfg.OutFormat} {
		if _, err := nativeSampleFormat(sf); err != nil {
			return nil, &ConfigurationError{Codec: "swresample", Reason: "sample format", Err: err}
		}
	}
	for _, ch := range []int{cfg.InChannels, cfg.OutChannels} {
		if _, err := channelLayout(ch); err != nil {
			return nil, &ConfigurationError{Codec: "swresample", Reason: "channel layout", Err: err}
		}
	}

	r := &Resampler{
		cfg: cfg,
		ctx: astiav.AllocSoftwareResampleContext(),
		src: astiav.AllocFrame(),
		dst: astiav.AllocFrame(),
	}
	if r.ctx == nil || r.src == nil || r.dst == nil {
		r.Close()
		return nil, &AllocationError{What: "resample context"}
	}
	return r, nil
}

// Convert resamples one frame. It returns nil when the filter has not
// produced output yet.
func (r *Resampler) Convert(f *Frame) (*Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return nil, ErrSessionClosed
	}
	in := *f
	in.MediaType = MediaAudio
	in.SampleRate = r.cfg.InRate
	in.SampleFormat = r.cfg.InFormat
	in.Channels = r.cfg.InChannels

	r.src.Unref()
	defer r.src.Unref()
	if err := importFrame(r.src, &in); err != nil {
		return nil, err
	}
	r.converted = true
	return r.convert(r.src)
}

// Flush drains the samples still held by the filter. It returns nil once
// nothing is left, and straight away when no frame was ever converted since
// the context is only configured by the first frame.
func (r *Resampler) Flush() (*Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx == nil {
		return nil, ErrSessionClosed
	}
	if r.flushed || !r.converted {
		r.flushed = true
		return nil, nil
	}
	out, err := r.convert(nil)
	if out == nil && err == nil {
		r.flushed = true
	}
	return out, err
}

// convert runs one swr_convert_frame call. The caller holds r.mu.
func (r *Resampler) convert(src *astiav.Frame) (*Frame, error) {
	r.dst.Unref()
	defer r.dst.Unref()

	outFmt, _ := nativeSampleFormat(r.cfg.OutFormat)
	layout, _ := channelLayout(r.cfg.OutChannels)
	r.dst.SetSampleFormat(outFmt)
	r.dst.SetSampleRate(r.cfg.OutRate)
	r.dst.SetChannelLayout(layout)

	if err := r.ctx.ConvertFrame(src, r.dst); err != nil {
		return nil, fmt.Errorf("resample frame: %w", translate(err))
	}
	if r.dst.NbSamples() == 0 {
		return nil, nil
	}
	out, err := exportFrame(r.dst, MediaAudio)
	if err != nil {
		return nil, err
	}
	if src != nil {
		out.PTS = src.Pts()
	}
	return out, nil
}

// Close frees the native state. It is idempotent.
func (r *Resampler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.src != nil {
		r.src.Free()
		r.src = nil
	}
	if r.dst != nil {
		r.dst.Free()
		r.dst = nil
	}
	if r.ctx != nil {
		r.ctx.Free()
		r.ctx = nil
	}
}
