package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrNotWAV is returned for input that is not a 16-bit PCM RIFF/WAVE file.
var ErrNotWAV = errors.New("not a 16-bit pcm wav file")

// WAVInfo is the format chunk of a PCM WAV file.
type WAVInfo struct {
	SampleRate int
	Channels   int
}

// ReadWAV reads a 16-bit PCM WAV file and returns its samples.
// Chunks other than "fmt " and "data" are skipped.
func ReadWAV(r io.Reader) ([]byte, WAVInfo, error) {
	var info WAVInfo
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, info, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(hdr[0:4]) != "RIFF" || string(hdr[8:12]) != "WAVE" {
		return nil, info, ErrNotWAV
	}

	haveFmt := false
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return nil, info, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, info, fmt.Errorf("read fmt chunk: %w", err)
			}
			if size < 16 || binary.LittleEndian.Uint16(body[0:2]) != 1 || binary.LittleEndian.Uint16(body[14:16]) != 16 {
				return nil, info, ErrNotWAV
			}
			info.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, info, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			pcm := make([]byte, size)
			n, err := io.ReadFull(r, pcm)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, info, fmt.Errorf("read data chunk: %w", err)
			}
			// Streams written before their length was known carry a bogus size.
			return pcm[:n], info, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return nil, info, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
		if size%2 == 1 && id == "fmt " {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil {
				return nil, info, err
			}
		}
	}
}

// WriteWAV writes pcm as a 16-bit PCM WAV file.
func WriteWAV(w io.Writer, pcm []byte, info WAVInfo) error {
	blockAlign := info.Channels * bytesPerSample
	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+len(pcm)))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1)
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(info.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(info.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(info.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], 16)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(pcm)))

	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}
