// Package media provides the picture pipeline behind thumbnails: decoding
// uploaded images, fitting them into a target box and encoding JPEGs.
package media

import (
	"context"

	"github.com/maauso/framecodec/internal/codec"
)

// Processor defines the image operations a thumbnail job needs.
// Implementations drive FFmpeg codec sessions in-process.
type Processor interface {
	// DecodeImage sniffs the container of an encoded still image and decodes
	// its first picture.
	DecodeImage(ctx context.Context, data []byte) (*codec.Frame, error)

	// ResizeWithPadding scales a picture to fit inside w x h while keeping its
	// aspect ratio. Black padding centers it on a yuvj420p canvas of exactly
	// w x h.
	ResizeWithPadding(ctx context.Context, src *codec.Frame, w, h int) (*codec.Frame, error)

	// EncodeJPEG encodes a picture as a JPEG file.
	EncodeJPEG(ctx context.Context, f *codec.Frame) ([]byte, error)
}
