package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"github.com/maauso/framecodec/internal/codec"
	"github.com/maauso/framecodec/internal/thumbnail"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrUnsupportedImage is returned when the upload is not an image type we can decode.
	ErrUnsupportedImage = errors.New("unsupported image type")
	// ErrNoPicture is returned when a decoder consumed the image but produced nothing.
	ErrNoPicture = errors.New("image decoded to no picture")
)

// imageDecoders maps sniffed MIME types to the codec that decodes them.
var imageDecoders = []struct {
	mime string
	id   codec.CodecID
}{
	{"image/png", codec.PNG},
	{"image/jpeg", codec.MJPEG},
	{"image/bmp", codec.BMP},
	{"image/gif", codec.GIF},
	{"image/tiff", codec.TIFF},
	{"image/webp", codec.WEBP},
}

// canvasFormat is the pixel format of every resized picture. Full-range
// 4:2:0 is what the MJPEG encoder takes natively.
const canvasFormat = codec.PixelFormatYUVJ420P

// FFmpegProcessor implements Processor with libavcodec sessions.
type FFmpegProcessor struct {
	quality int
	logger  *slog.Logger
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// quality is the JPEG quantizer (2-31); zero leaves the encoder default.
func NewFFmpegProcessor(quality int, logger *slog.Logger) *FFmpegProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegProcessor{quality: quality, logger: logger}
}

// DetectDecoder returns the codec for an encoded image, judged by content.
func DetectDecoder(data []byte) (codec.CodecID, string, error) {
	m := mimetype.Detect(data)
	for _, d := range imageDecoders {
		if m.Is(d.mime) {
			return d.id, d.mime, nil
		}
	}
	return codec.CodecUnknown, m.String(), fmt.Errorf("%w: %s", ErrUnsupportedImage, m.String())
}

// DecodeImage decodes the first picture of an encoded image.
func (p *FFmpegProcessor) DecodeImage(ctx context.Context, data []byte) (*codec.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, mime, err := DetectDecoder(data)
	if err != nil {
		return nil, err
	}

	s, err := codec.Open(id, codec.Decoder, codec.Config{})
	if err != nil {
		return nil, fmt.Errorf("open %s decoder: %w", id, err)
	}
	defer s.Close()

	frames, err := s.DecodeAll([]*codec.Packet{{Data: data}})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", mime, err)
	}
	if len(frames) == 0 {
		return nil, ErrNoPicture
	}

	f := frames[0]
	p.logger.Debug("image decoded",
		slog.String("mime", mime),
		slog.Int("width", f.Width),
		slog.Int("height", f.Height),
		slog.String("pix_fmt", string(f.PixelFormat)),
	)
	return f, nil
}

// ResizeWithPadding scales src into a w x h box and pads it with black.
func (p *FFmpegProcessor) ResizeWithPadding(ctx context.Context, src *codec.Frame, w, h int) (*codec.Frame, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, w, h)
	}
	if src == nil || src.Width <= 0 || src.Height <= 0 {
		return nil, fmt.Errorf("%w: source picture is empty", ErrInvalidDimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fw, fh := FitWithin(src.Width, src.Height, w, h)
	scaled, err := convert(src, fw, fh, canvasFormat)
	if err != nil {
		return nil, err
	}

	canvas := BlackCanvas(w, h)
	Paste(canvas, scaled, ((w-fw)/2)&^1, ((h-fh)/2)&^1)
	canvas.PTS = src.PTS
	return canvas, nil
}

// EncodeJPEG encodes f as a JPEG, converting it to yuvj420p first if needed.
func (p *FFmpegProcessor) EncodeJPEG(ctx context.Context, f *codec.Frame) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.PixelFormat != canvasFormat {
		var err error
		if f, err = convert(f, f.Width, f.Height, canvasFormat); err != nil {
			return nil, err
		}
	}

	opts := []thumbnail.Option{thumbnail.WithLogger(p.logger)}
	if p.quality != 0 {
		opts = append(opts, thumbnail.WithQuality(p.quality))
	}
	pkt, err := thumbnail.EncodeJPEG(thumbnail.Hints{PixelFormat: canvasFormat}, f, opts...)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return pkt.Data, nil
}

// Thumbnail runs the full pipeline: decode, fit into w x h, encode as JPEG.
func (p *FFmpegProcessor) Thumbnail(ctx context.Context, data []byte, w, h int) ([]byte, error) {
	src, err := p.DecodeImage(ctx, data)
	if err != nil {
		return nil, err
	}
	canvas, err := p.ResizeWithPadding(ctx, src, w, h)
	if err != nil {
		return nil, err
	}
	return p.EncodeJPEG(ctx, canvas)
}

// convert scales f to w x h in pix. A frame that already matches is returned as is.
func convert(f *codec.Frame, w, h int, pix codec.PixelFormat) (*codec.Frame, error) {
	if f.Width == w && f.Height == h && f.PixelFormat == pix {
		return f, nil
	}
	sc, err := codec.NewScaler(codec.ScaleConfig{
		SrcWidth:  f.Width,
		SrcHeight: f.Height,
		SrcFormat: f.PixelFormat,
		DstWidth:  w,
		DstHeight: h,
		DstFormat: pix,
	})
	if err != nil {
		return nil, fmt.Errorf("create scaler: %w", err)
	}
	defer sc.Close()

	out, err := sc.Scale(f)
	if err != nil {
		return nil, fmt.Errorf("scale %dx%d to %dx%d: %w", f.Width, f.Height, w, h, err)
	}
	return out, nil
}
