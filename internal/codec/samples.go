package codec

import "fmt"

// SliceSamples returns samples [start, end) of an audio frame as a new
// frame. PTS is advanced by start, so it assumes a 1/SampleRate time base.
func (f *Frame) SliceSamples(start, end int) (*Frame, error) {
	if start < 0 || end > f.NbSamples || start > end {
		return nil, fmt.Errorf("sample range [%d, %d) outside frame of %d", start, end, f.NbSamples)
	}
	bps := f.SampleFormat.BytesPerSample()
	if bps == 0 || f.Channels <= 0 {
		return nil, fmt.Errorf("frame has no sample layout (%q, %d channels)", f.SampleFormat, f.Channels)
	}

	out := *f
	out.NbSamples = end - start
	out.PTS = f.PTS + int64(start)

	if !f.SampleFormat.Planar() {
		step := bps * f.Channels
		out.Data = append([]byte(nil), f.Data[start*step:end*step]...)
		return &out, nil
	}
	plane := f.NbSamples * bps
	out.Data = make([]byte, 0, out.NbSamples*bps*f.Channels)
	for c := 0; c < f.Channels; c++ {
		base := c * plane
		out.Data = append(out.Data, f.Data[base+start*bps:base+end*bps]...)
	}
	return &out, nil
}

// concatSamples joins two frames of the same layout. b follows a.
func concatSamples(a, b *Frame) (*Frame, error) {
	if a.SampleFormat != b.SampleFormat || a.Channels != b.Channels {
		return nil, fmt.Errorf("cannot join %s/%d samples with %s/%d", a.SampleFormat, a.Channels, b.SampleFormat, b.Channels)
	}
	out := *a
	out.NbSamples = a.NbSamples + b.NbSamples
	if !a.SampleFormat.Planar() {
		out.Data = append(append(make([]byte, 0, len(a.Data)+len(b.Data)), a.Data...), b.Data...)
		return &out, nil
	}
	bps := a.SampleFormat.BytesPerSample()
	pa, pb := a.NbSamples*bps, b.NbSamples*bps
	out.Data = make([]byte, 0, len(a.Data)+len(b.Data))
	for c := 0; c < a.Channels; c++ {
		out.Data = append(out.Data, a.Data[c*pa:(c+1)*pa]...)
		out.Data = append(out.Data, b.Data[c*pb:(c+1)*pb]...)
	}
	return &out, nil
}

// SampleBuffer regroups audio frames into frames of exactly Size samples,
// the unit most audio encoders accept.
type SampleBuffer struct {
	Size    int
	pending *Frame
}

// Push adds f and returns every complete frame now available.
func (b *SampleBuffer) Push(f *Frame) ([]*Frame, error) {
	if b.Size <= 0 {
		return []*Frame{f}, nil
	}
	if b.pending == nil || b.pending.NbSamples == 0 {
		b.pending = f
	} else {
		joined, err := concatSamples(b.pending, f)
		if err != nil {
			return nil, err
		}
		b.pending = joined
	}

	var out []*Frame
	for b.pending.NbSamples >= b.Size {
		head, err := b.pending.SliceSamples(0, b.Size)
		if err != nil {
			return out, err
		}
		rest, err := b.pending.SliceSamples(b.Size, b.pending.NbSamples)
		if err != nil {
			return out, err
		}
		out = append(out, head)
		b.pending = rest
	}
	return out, nil
}

// Rest returns the leftover partial frame, or nil, and empties the buffer.
func (b *SampleBuffer) Rest() *Frame {
	p := b.pending
	b.pending = nil
	if p == nil || p.NbSamples == 0 {
		return nil
	}
	return p
}
