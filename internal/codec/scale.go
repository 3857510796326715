package codec

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
)

// ScaleConfig describes one size and pixel format conversion.
type ScaleConfig struct {
	SrcWidth  int         `validate:"gt=0"`
	SrcHeight int         `validate:"gt=0"`
	SrcFormat PixelFormat `validate:"required"`
	DstWidth  int         `validate:"gt=0"`
	DstHeight int         `validate:"gt=0"`
	DstFormat PixelFormat `validate:"required"`
}

// Scaler converts video frames between sizes and pixel formats with
// bilinear filtering. Like a Session it owns its native state and must be
// closed.
type Scaler struct {
	mu  sync.Mutex
	cfg ScaleConfig

	ctx *astiav.SoftwareScaleContext
	src *astiav.Frame
	dst *astiav.Frame
}

// NewScaler allocates a scaling context for cfg.
func NewScaler(cfg ScaleConfig) (*Scaler, error) {
	Init()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigurationError{Codec: "swscale", Reason: "invalid parameters", Err: err}
	}
	srcFmt, err := nativePixelFormat(cfg.SrcFormat)
	if err != nil {
		return nil, &ConfigurationError{Codec: "swscale", Reason: "source format", Err: err}
	}
	dstFmt, err := nativePixelFormat(cfg.DstFormat)
	if err != nil {
		return nil, &ConfigurationError{Codec: "swscale", Reason: "destination format", Err: err}
	}

	ctx, err := astiav.CreateSoftwareScaleContext(
		cfg.SrcWidth, cfg.SrcHeight, srcFmt,
		cfg.DstWidth, cfg.DstHeight, dstFmt,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return nil, &AllocationError{What: "scale context", Err: translate(err)}
	}
	s := &Scaler{cfg: cfg, ctx: ctx, src: astiav.AllocFrame(), dst: astiav.AllocFrame()}
	if s.src == nil || s.dst == nil {
		s.Close()
		return nil, &AllocationError{What: "frame"}
	}
	return s, nil
}

// Scale converts one frame. The frame must match the source geometry.
func (s *Scaler) Scale(f *Frame) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return nil, ErrSessionClosed
	}
	if f.Width != s.cfg.SrcWidth || f.Height != s.cfg.SrcHeight || f.PixelFormat != s.cfg.SrcFormat {
		return nil, fmt.Errorf("scale: frame is %dx%d %s, scaler expects %dx%d %s",
			f.Width, f.Height, f.PixelFormat, s.cfg.SrcWidth, s.cfg.SrcHeight, s.cfg.SrcFormat)
	}

	s.src.Unref()
	s.dst.Unref()
	defer s.src.Unref()
	defer s.dst.Unref()

	if err := importFrame(s.src, f); err != nil {
		return nil, err
	}
	dstFmt, _ := nativePixelFormat(s.cfg.DstFormat)
	s.dst.SetWidth(s.cfg.DstWidth)
	s.dst.SetHeight(s.cfg.DstHeight)
	s.dst.SetPixelFormat(dstFmt)
	if err := s.dst.AllocBuffer(0); err != nil {
		return nil, &AllocationError{What: "frame buffer", Err: translate(err)}
	}
	if err := s.ctx.ScaleFrame(s.src, s.dst); err != nil {
		return nil, fmt.Errorf("scale frame: %w", translate(err))
	}
	out, err := exportFrame(s.dst, MediaVideo)
	if err != nil {
		return nil, err
	}
	out.PTS = f.PTS
	return out, nil
}

// Close frees the native state. It is idempotent.
func (s *Scaler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src != nil {
		s.src.Free()
		s.src = nil
	}
	if s.dst != nil {
		s.dst.Free()
		s.dst = nil
	}
	if s.ctx != nil {
		s.ctx.Free()
		s.ctx = nil
	}
}
