package codec

import "errors"

// maxFlushRefusals bounds how many times in a row a drain accepts a refused
// flush that also yields no output. FFmpeg only refuses a flush while output
// is pending, so a codec that keeps doing so is broken.
const maxFlushRefusals = 3

var errFlushRefused = errors.New("codec keeps refusing the drain signal with no pending output")

// DecodeResult is the outcome of one Decode call.
type DecodeResult struct {
	// Frame is the decoded frame, nil when nothing was produced.
	Frame *Frame
	// Resubmit is set when the decoder refused the packet because it has
	// output waiting. The caller should pass the same packet again after
	// taking the frame.
	Resubmit bool
}

// Produced reports whether a frame came out.
func (r DecodeResult) Produced() bool { return r.Frame != nil }

// EncodeResult is the outcome of one Encode call.
type EncodeResult struct {
	// Packet is the encoded packet, nil when nothing was produced.
	Packet *Packet
}

// Produced reports whether a packet came out.
func (r EncodeResult) Produced() bool { return r.Packet != nil }

// Decode pushes one packet and pulls at most one frame.
//
// A nil or empty packet starts draining. The drain signal is accepted once
// per session; later empty packets only pull the frames still buffered. A
// drain signal refused with try-again is sent again on the next empty
// packet. A decoder that is not ready for input or has reached end of stream
// yields an empty result rather than an error.
func (s *Session) Decode(pkt *Packet) (DecodeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(Decoder); err != nil {
		if errors.Is(err, ErrWrongDirection) {
			return DecodeResult{}, &DecodeError{Codec: s.name, Op: "send packet", Err: err}
		}
		return DecodeResult{}, err
	}

	var res DecodeResult
	switch {
	case !pkt.Empty():
		err := s.eng.sendPacket(pkt)
		switch {
		case errors.Is(err, errAgain):
			res.Resubmit = true
		case errors.Is(err, errEOF):
			return res, nil
		case err != nil:
			return res, &DecodeError{Codec: s.name, Op: "send packet", Err: err}
		}
	case !s.draining:
		// A refused flush leaves the session undrained so the next empty
		// packet sends it again.
		err := s.eng.sendPacket(nil)
		switch {
		case err == nil, errors.Is(err, errEOF):
			s.draining = true
		case errors.Is(err, errAgain):
		default:
			return res, &DecodeError{Codec: s.name, Op: "flush", Err: err}
		}
	}

	f, err := s.eng.receiveFrame()
	switch {
	case errors.Is(err, errAgain), errors.Is(err, errEOF):
		return res, nil
	case err != nil:
		return res, &DecodeError{Codec: s.name, Op: "receive frame", Err: err}
	}
	res.Frame = f
	return res, nil
}

// Encode pushes one frame and pulls at most one packet.
//
// A nil frame starts draining; the drain signal is accepted once per session
// and later nil frames only pull. A refused drain signal is sent again on the
// next nil frame. Encoders emit packets with a delay, so an empty
// result is normal for the first frames.
func (s *Session) Encode(f *Frame) (EncodeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(Encoder); err != nil {
		if errors.Is(err, ErrWrongDirection) {
			return EncodeResult{}, &EncodeError{Codec: s.name, Op: "send frame", Err: err}
		}
		return EncodeResult{}, err
	}

	var res EncodeResult
	switch {
	case f != nil:
		if f.MediaType != MediaUnknown && s.mediaType != MediaUnknown && f.MediaType != s.mediaType {
			return res, &EncodeError{Codec: s.name, Op: "send frame", Err: ErrMediaTypeMismatch}
		}
		if err := s.eng.sendFrame(f); err != nil {
			return res, &EncodeError{Codec: s.name, Op: "send frame", Err: err}
		}
	case !s.draining:
		err := s.eng.sendFrame(nil)
		switch {
		case err == nil, errors.Is(err, errEOF):
			s.draining = true
		case errors.Is(err, errAgain):
		default:
			return res, &EncodeError{Codec: s.name, Op: "flush", Err: err}
		}
	}

	p, err := s.eng.receivePacket()
	switch {
	case errors.Is(err, errAgain), errors.Is(err, errEOF):
		return res, nil
	case err != nil:
		return res, &EncodeError{Codec: s.name, Op: "receive packet", Err: err}
	}
	res.Packet = p
	return res, nil
}

// Decode runs one decode step on s. See Session.Decode.
func Decode(s *Session, pkt *Packet) (DecodeResult, error) { return s.Decode(pkt) }

// Encode runs one encode step on s. See Session.Encode.
func Encode(s *Session, f *Frame) (EncodeResult, error) { return s.Encode(f) }

// DrainFrames flushes the decoder s. See Session.DrainFrames.
func DrainFrames(s *Session) ([]*Frame, error) { return s.DrainFrames() }

// DrainPackets flushes the encoder s. See Session.DrainPackets.
func DrainPackets(s *Session) ([]*Packet, error) { return s.DrainPackets() }

// Draining reports whether the drain signal has been accepted.
func (s *Session) Draining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

// DrainFrames flushes a decoder and returns every frame it still holds.
func (s *Session) DrainFrames() ([]*Frame, error) {
	var frames []*Frame
	idle := 0
	for {
		res, err := s.Decode(nil)
		if err != nil {
			return frames, err
		}
		if res.Produced() {
			idle = 0
			frames = append(frames, res.Frame)
			continue
		}
		if s.Draining() {
			return frames, nil
		}
		if idle++; idle > maxFlushRefusals {
			return frames, &DecodeError{Codec: s.name, Op: "flush", Err: errFlushRefused}
		}
	}
}

// DrainPackets flushes an encoder and returns every packet it still holds.
func (s *Session) DrainPackets() ([]*Packet, error) {
	var packets []*Packet
	idle := 0
	for {
		res, err := s.Encode(nil)
		if err != nil {
			return packets, err
		}
		if res.Produced() {
			idle = 0
			packets = append(packets, res.Packet)
			continue
		}
		if s.Draining() {
			return packets, nil
		}
		if idle++; idle > maxFlushRefusals {
			return packets, &EncodeError{Codec: s.name, Op: "flush", Err: errFlushRefused}
		}
	}
}

// DecodeAll feeds every packet through the decoder, resubmitting refused
// packets, then drains it.
func (s *Session) DecodeAll(packets []*Packet) ([]*Frame, error) {
	var frames []*Frame
	for _, p := range packets {
		for {
			res, err := s.Decode(p)
			if err != nil {
				return frames, err
			}
			if res.Produced() {
				frames = append(frames, res.Frame)
			}
			if !res.Resubmit {
				break
			}
			if !res.Produced() {
				// Refused with nothing to hand back: the packet is lost.
				return frames, &DecodeError{Codec: s.name, Op: "send packet", Err: errors.New("packet refused with no pending output")}
			}
		}
		// Pull anything else buffered behind this packet.
		for {
			res, err := s.pull()
			if err != nil {
				return frames, err
			}
			if res == nil {
				break
			}
			frames = append(frames, res)
		}
	}
	rest, err := s.DrainFrames()
	return append(frames, rest...), err
}

// pull takes one buffered frame without sending anything.
func (s *Session) pull() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(Decoder); err != nil {
		return nil, err
	}
	f, err := s.eng.receiveFrame()
	switch {
	case errors.Is(err, errAgain), errors.Is(err, errEOF):
		return nil, nil
	case err != nil:
		return nil, &DecodeError{Codec: s.name, Op: "receive frame", Err: err}
	}
	return f, nil
}

// EncodeAll feeds every frame through the encoder, then drains it. Audio is
// regrouped into frames of FrameSize samples first, with any remainder sent
// as a short last frame.
func (s *Session) EncodeAll(frames []*Frame) ([]*Packet, error) {
	if n := s.FrameSize(); n > 0 && s.mediaType == MediaAudio {
		buf := SampleBuffer{Size: n}
		var regrouped []*Frame
		for _, f := range frames {
			full, err := buf.Push(f)
			if err != nil {
				return nil, &EncodeError{Codec: s.name, Op: "send frame", Err: err}
			}
			regrouped = append(regrouped, full...)
		}
		if rest := buf.Rest(); rest != nil {
			regrouped = append(regrouped, rest)
		}
		frames = regrouped
	}

	var packets []*Packet
	for _, f := range frames {
		res, err := s.Encode(f)
		if err != nil {
			return packets, err
		}
		if res.Produced() {
			packets = append(packets, res.Packet)
		}
		for {
			p, err := s.pullPacket()
			if err != nil {
				return packets, err
			}
			if p == nil {
				break
			}
			packets = append(packets, p)
		}
	}
	rest, err := s.DrainPackets()
	return append(packets, rest...), err
}

func (s *Session) pullPacket() (*Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(Encoder); err != nil {
		return nil, err
	}
	p, err := s.eng.receivePacket()
	switch {
	case errors.Is(err, errAgain), errors.Is(err, errEOF):
		return nil, nil
	case err != nil:
		return nil, &EncodeError{Codec: s.name, Op: "receive packet", Err: err}
	}
	return p, nil
}
