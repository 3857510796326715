package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine scripts the native handshake. Frames and packets queue up as
// "buffered output"; once the drain signal arrives an empty queue reports
// end of stream instead of try-again.
type fakeEngine struct {
	sendErrs  []error
	flushErrs []error

	frames  []*Frame
	packets []*Packet
	recvErr error

	extra      []byte
	samples    int
	sentFrames []*Frame

	sent     int
	flushes  int
	receives int
	freed    int
	drained  bool
}

func (e *fakeEngine) nextSendErr() error {
	if len(e.sendErrs) == 0 {
		return nil
	}
	err := e.sendErrs[0]
	e.sendErrs = e.sendErrs[1:]
	return err
}

func (e *fakeEngine) flush() error {
	e.flushes++
	if len(e.flushErrs) > 0 {
		err := e.flushErrs[0]
		e.flushErrs = e.flushErrs[1:]
		if err != nil {
			return err
		}
	}
	e.drained = true
	return nil
}

func (e *fakeEngine) sendPacket(p *Packet) error {
	if p.Empty() {
		return e.flush()
	}
	e.sent++
	return e.nextSendErr()
}

func (e *fakeEngine) receiveFrame() (*Frame, error) {
	e.receives++
	if e.recvErr != nil {
		return nil, e.recvErr
	}
	if len(e.frames) > 0 {
		f := e.frames[0]
		e.frames = e.frames[1:]
		return f, nil
	}
	if e.drained {
		return nil, errEOF
	}
	return nil, errAgain
}

func (e *fakeEngine) sendFrame(f *Frame) error {
	if f == nil {
		return e.flush()
	}
	e.sent++
	e.sentFrames = append(e.sentFrames, f)
	return e.nextSendErr()
}

func (e *fakeEngine) receivePacket() (*Packet, error) {
	e.receives++
	if e.recvErr != nil {
		return nil, e.recvErr
	}
	if len(e.packets) > 0 {
		p := e.packets[0]
		e.packets = e.packets[1:]
		return p, nil
	}
	if e.drained {
		return nil, errEOF
	}
	return nil, errAgain
}

func (e *fakeEngine) pixelFormat() PixelFormat { return PixelFormatYUV420P }

func (e *fakeEngine) extradata() []byte { return e.extra }

func (e *fakeEngine) frameSize() int { return e.samples }

func (e *fakeEngine) free() { e.freed++ }

func fakeSession(dir Direction, eng *fakeEngine) *Session {
	d := Descriptor{ID: H264, Name: "h264", MediaType: MediaVideo, Profiles: h264Profiles}
	return newSession(d, dir, Config{}, eng)
}

func fakeAudioSession(eng *fakeEngine) *Session {
	d := Descriptor{ID: AAC, Name: "aac", MediaType: MediaAudio, Profiles: aacProfiles}
	return newSession(d, Encoder, Config{}, eng)
}

func videoFrame(pts int64) *Frame {
	return &Frame{MediaType: MediaVideo, Width: 2, Height: 2, PixelFormat: PixelFormatYUV420P, PTS: pts, Data: make([]byte, 6)}
}

func packet(pts int64) *Packet {
	return &Packet{Data: []byte{0, 0, 1, byte(pts)}, PTS: pts}
}

func TestDecode_ProducesFrame(t *testing.T) {
	eng := &fakeEngine{frames: []*Frame{videoFrame(0)}}
	s := fakeSession(Decoder, eng)

	res, err := s.Decode(packet(0))
	require.NoError(t, err)
	assert.True(t, res.Produced())
	assert.False(t, res.Resubmit)
	assert.Equal(t, 1, eng.sent)
}

func TestDecode_NothingYet(t *testing.T) {
	eng := &fakeEngine{}
	s := fakeSession(Decoder, eng)

	res, err := s.Decode(packet(0))
	require.NoError(t, err)
	assert.False(t, res.Produced())
	assert.Equal(t, 1, eng.receives, "a pull always follows the push")
}

func TestDecode_PushAgainAsksForResubmit(t *testing.T) {
	eng := &fakeEngine{
		sendErrs: []error{errAgain},
		frames:   []*Frame{videoFrame(0)},
	}
	s := fakeSession(Decoder, eng)

	res, err := s.Decode(packet(1))
	require.NoError(t, err)
	assert.True(t, res.Resubmit)
	assert.True(t, res.Produced())
}

func TestDecode_PushEOFIsEmpty(t *testing.T) {
	eng := &fakeEngine{sendErrs: []error{errEOF}, frames: []*Frame{videoFrame(0)}}
	s := fakeSession(Decoder, eng)

	res, err := s.Decode(packet(0))
	require.NoError(t, err)
	assert.False(t, res.Produced())
	assert.Zero(t, eng.receives)
}

func TestDecode_PushFailure(t *testing.T) {
	eng := &fakeEngine{sendErrs: []error{&NativeError{Code: -1094995529, Message: "Invalid data found when processing input"}}}
	s := fakeSession(Decoder, eng)

	_, err := s.Decode(packet(0))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "send packet", de.Op)

	code, ok := NativeCode(err)
	assert.True(t, ok)
	assert.Equal(t, -1094995529, code)
}

func TestDecode_PullFailure(t *testing.T) {
	eng := &fakeEngine{recvErr: &NativeError{Code: -22, Message: "Invalid argument"}}
	s := fakeSession(Decoder, eng)

	_, err := s.Decode(packet(0))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "receive frame", de.Op)
}

func TestDecode_FlushIsSentOnce(t *testing.T) {
	eng := &fakeEngine{frames: []*Frame{videoFrame(0), videoFrame(1), videoFrame(2)}}
	s := fakeSession(Decoder, eng)

	frames, err := s.DrainFrames()
	require.NoError(t, err)
	assert.Len(t, frames, 3)
	assert.Equal(t, 1, eng.flushes)
	assert.True(t, s.Draining())

	for i := 0; i < 3; i++ {
		res, err := Decode(s, nil)
		require.NoError(t, err)
		assert.False(t, res.Produced())
	}
	assert.Equal(t, 1, eng.flushes)
}

func TestDecode_RefusedFlushIsSentAgain(t *testing.T) {
	eng := &fakeEngine{
		flushErrs: []error{errAgain},
		frames:    []*Frame{videoFrame(0), videoFrame(1)},
	}
	s := fakeSession(Decoder, eng)

	res, err := s.Decode(nil)
	require.NoError(t, err)
	assert.True(t, res.Produced(), "pending frame is handed out while the flush waits")
	assert.False(t, s.Draining())

	frames, err := s.DrainFrames()
	require.NoError(t, err)
	assert.Len(t, frames, 1)
	assert.Equal(t, 2, eng.flushes)
	assert.True(t, s.Draining())
	assert.Empty(t, eng.frames)
}

func TestDrainFrames_RefusedFlushKeepsFrames(t *testing.T) {
	eng := &fakeEngine{
		flushErrs: []error{errAgain},
		frames:    []*Frame{videoFrame(0), videoFrame(1)},
	}
	s := fakeSession(Decoder, eng)

	frames, err := DrainFrames(s)
	require.NoError(t, err)
	assert.Len(t, frames, 2)
	assert.Empty(t, eng.frames)
}

func TestDrainFrames_FlushRefusedForever(t *testing.T) {
	eng := &fakeEngine{flushErrs: []error{errAgain, errAgain, errAgain, errAgain, errAgain}}
	s := fakeSession(Decoder, eng)

	_, err := s.DrainFrames()
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "flush", de.Op)
	assert.False(t, s.Draining())
}

func TestDecode_EmptyPacketIsFlush(t *testing.T) {
	eng := &fakeEngine{}
	s := fakeSession(Decoder, eng)

	_, err := s.Decode(&Packet{})
	require.NoError(t, err)
	assert.Equal(t, 1, eng.flushes)
	assert.Zero(t, eng.sent)
}

func TestDecodeAll_Resubmits(t *testing.T) {
	eng := &fakeEngine{
		sendErrs: []error{errAgain},
		frames:   []*Frame{videoFrame(0), videoFrame(1), videoFrame(2)},
	}
	s := fakeSession(Decoder, eng)

	frames, err := s.DecodeAll([]*Packet{packet(0), packet(1)})
	require.NoError(t, err)
	assert.Len(t, frames, 3)
	assert.Equal(t, 3, eng.sent, "refused packet is sent again")
}

func TestEncode_PushFailureStops(t *testing.T) {
	eng := &fakeEngine{sendErrs: []error{&NativeError{Code: -22, Message: "Invalid argument"}}}
	s := fakeSession(Encoder, eng)

	_, err := s.Encode(videoFrame(0))
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "send frame", ee.Op)
	assert.Zero(t, eng.receives)
}

func TestEncode_DelayedOutput(t *testing.T) {
	eng := &fakeEngine{}
	s := fakeSession(Encoder, eng)

	res, err := Encode(s, videoFrame(0))
	require.NoError(t, err)
	assert.False(t, res.Produced())

	eng.packets = []*Packet{packet(0), packet(1)}
	packets, err := DrainPackets(s)
	require.NoError(t, err)
	assert.Len(t, packets, 2)
	assert.Equal(t, 1, eng.flushes)
}

func TestEncode_RefusedFlushIsNotAnError(t *testing.T) {
	eng := &fakeEngine{
		flushErrs: []error{errAgain},
		packets:   []*Packet{packet(0), packet(1)},
	}
	s := fakeSession(Encoder, eng)

	res, err := s.Encode(nil)
	require.NoError(t, err)
	assert.True(t, res.Produced())
	assert.False(t, s.Draining())

	packets, err := s.DrainPackets()
	require.NoError(t, err)
	assert.Len(t, packets, 1)
	assert.Equal(t, 2, eng.flushes)
	assert.True(t, s.Draining())
}

func TestEncode_FlushFailure(t *testing.T) {
	eng := &fakeEngine{flushErrs: []error{&NativeError{Code: -22, Message: "Invalid argument"}}}
	s := fakeSession(Encoder, eng)

	_, err := s.Encode(nil)
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "flush", ee.Op)
	assert.False(t, s.Draining())
}

func TestEncode_MediaTypeMismatch(t *testing.T) {
	s := fakeSession(Encoder, &fakeEngine{})

	_, err := s.Encode(&Frame{MediaType: MediaAudio, NbSamples: 1024})
	assert.ErrorIs(t, err, ErrMediaTypeMismatch)
}

func TestEncodeAll_PullsEverything(t *testing.T) {
	eng := &fakeEngine{packets: []*Packet{packet(0), packet(1), packet(2)}}
	s := fakeSession(Encoder, eng)

	packets, err := s.EncodeAll([]*Frame{videoFrame(0)})
	require.NoError(t, err)
	assert.Len(t, packets, 3)
}

func TestEncodeAll_RegroupsAudioToFrameSize(t *testing.T) {
	eng := &fakeEngine{samples: 4}
	s := fakeAudioSession(eng)

	_, err := s.EncodeAll([]*Frame{monoS16(0, 3, 0), monoS16(3, 3, 3), monoS16(6, 3, 6)})
	require.NoError(t, err)

	require.Len(t, eng.sentFrames, 3)
	var sizes []int
	for _, f := range eng.sentFrames {
		sizes = append(sizes, f.NbSamples)
	}
	assert.Equal(t, []int{4, 4, 1}, sizes)
	assert.Equal(t, []int64{0, 4, 8}, []int64{eng.sentFrames[0].PTS, eng.sentFrames[1].PTS, eng.sentFrames[2].PTS})
	assert.Equal(t, []byte{8, 0}, eng.sentFrames[2].Data)
}

func TestEncodeAll_AnyFrameSize(t *testing.T) {
	eng := &fakeEngine{}
	s := fakeAudioSession(eng)

	_, err := s.EncodeAll([]*Frame{monoS16(0, 3, 0), monoS16(3, 5, 3)})
	require.NoError(t, err)
	require.Len(t, eng.sentFrames, 2)
	assert.Equal(t, 5, eng.sentFrames[1].NbSamples)
}

func TestSession_WrongDirection(t *testing.T) {
	dec := fakeSession(Decoder, &fakeEngine{})
	_, err := dec.Encode(videoFrame(0))
	var ee *EncodeError
	assert.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, ErrWrongDirection)

	enc := fakeSession(Encoder, &fakeEngine{})
	_, err = enc.Decode(packet(0))
	var de *DecodeError
	assert.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, ErrWrongDirection)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	eng := &fakeEngine{}
	s := fakeSession(Decoder, eng)

	s.Close()
	s.Close()
	assert.Equal(t, 1, eng.freed)
	assert.True(t, s.Closed())

	_, err := s.Decode(packet(0))
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.DrainFrames()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_NonFatalCodesStayInside(t *testing.T) {
	for _, code := range []error{errAgain, errEOF} {
		eng := &fakeEngine{recvErr: code}
		s := fakeSession(Decoder, eng)
		res, err := s.Decode(packet(0))
		require.NoError(t, err)
		assert.False(t, res.Produced())
		assert.False(t, errors.Is(err, code))
	}
}
