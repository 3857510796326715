package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/framecodec/internal/codec"
)

// ErrMisalignedPCM is returned when the input ends in the middle of a sample frame.
var ErrMisalignedPCM = errors.New("pcm length is not a whole number of sample frames")

const bytesPerSample = 2

var validate = validator.New()

var _ Resampler = (*FFmpegResampler)(nil)

// FFmpegResampler implements Resampler with libswresample.
type FFmpegResampler struct {
	logger *slog.Logger
}

// NewFFmpegResampler creates a new FFmpegResampler.
func NewFFmpegResampler(logger *slog.Logger) *FFmpegResampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegResampler{logger: logger}
}

// Resample implements Resampler.Resample.
func (r *FFmpegResampler) Resample(ctx context.Context, pcm []byte, opts ResampleOpts) ([]byte, error) {
	if opts.FrameSamples == 0 {
		opts.FrameSamples = DefaultResampleOpts().FrameSamples
	}
	if err := validate.Struct(opts); err != nil {
		return nil, fmt.Errorf("invalid resample options: %w", err)
	}
	frameSize := bytesPerSample * opts.FromChannels
	if len(pcm)%frameSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes, %d channels", ErrMisalignedPCM, len(pcm), opts.FromChannels)
	}
	if len(pcm) == 0 {
		return []byte{}, nil
	}

	rs, err := codec.NewResampler(codec.ResampleConfig{
		InRate:      opts.FromRate,
		InFormat:    codec.SampleFormatS16,
		InChannels:  opts.FromChannels,
		OutRate:     opts.ToRate,
		OutFormat:   codec.SampleFormatS16,
		OutChannels: opts.ToChannels,
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	defer rs.Close()

	out := make([]byte, 0, expectedSize(len(pcm), opts))
	chunk := opts.FrameSamples * frameSize
	var pts int64
	for off := 0; off < len(pcm); off += chunk {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(off+chunk, len(pcm))
		n := (end - off) / frameSize
		f, err := rs.Convert(&codec.Frame{NbSamples: n, PTS: pts, Data: pcm[off:end]})
		if err != nil {
			return nil, fmt.Errorf("resample at byte %d: %w", off, err)
		}
		if f != nil {
			out = append(out, f.Data...)
		}
		pts += int64(n)
	}

	for {
		f, err := rs.Flush()
		if err != nil {
			return nil, fmt.Errorf("flush resampler: %w", err)
		}
		if f == nil {
			break
		}
		out = append(out, f.Data...)
	}

	r.logger.Debug("pcm resampled",
		slog.Int("from_rate", opts.FromRate),
		slog.Int("to_rate", opts.ToRate),
		slog.Int("in_bytes", len(pcm)),
		slog.Int("out_bytes", len(out)),
	)
	return out, nil
}

// expectedSize estimates the output length for capacity planning.
func expectedSize(n int, opts ResampleOpts) int {
	frames := n / (bytesPerSample * opts.FromChannels)
	return frames*opts.ToRate/opts.FromRate*bytesPerSample*opts.ToChannels + 4096
}
