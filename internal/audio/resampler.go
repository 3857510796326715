// Package audio converts raw PCM between sample rates and channel layouts.
package audio

import "context"

// ResampleOpts configures a PCM conversion. Samples are interleaved signed
// 16-bit little-endian on both sides.
type ResampleOpts struct {
	// FromRate and ToRate are sample rates in Hz.
	FromRate int `validate:"gt=0,lte=384000"`
	ToRate   int `validate:"gt=0,lte=384000"`

	// FromChannels and ToChannels are channel counts: 1, 2 or 6.
	FromChannels int `validate:"oneof=1 2 6"`
	ToChannels   int `validate:"oneof=1 2 6"`

	// FrameSamples is the number of samples per channel fed to the resampler
	// at a time.
	// Default: 1024.
	FrameSamples int `validate:"gte=0,lte=65536"`
}

// DefaultResampleOpts returns options converting 48 kHz stereo to 16 kHz mono.
func DefaultResampleOpts() ResampleOpts {
	return ResampleOpts{
		FromRate:     48000,
		ToRate:       16000,
		FromChannels: 2,
		ToChannels:   1,
		FrameSamples: 1024,
	}
}

// Resampler defines the interface for PCM sample rate conversion.
type Resampler interface {
	// Resample converts a whole PCM buffer. Input must hold a whole number of
	// sample frames. The filter tail is flushed into the result.
	Resample(ctx context.Context, pcm []byte, opts ResampleOpts) ([]byte, error)
}
