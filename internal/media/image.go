package media

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/maauso/framecodec/internal/codec"
)

// FitWithin returns the largest size with the aspect ratio of sw x sh that
// fits inside w x h. Neither side drops below one pixel.
func FitWithin(sw, sh, w, h int) (int, int) {
	var fw, fh int
	if sw*h >= sh*w {
		fw = w
		fh = (sh*w + sw/2) / sw
	} else {
		fh = h
		fw = (sw*h + sh/2) / sh
	}
	return max(1, min(fw, w)), max(1, min(fh, h))
}

// chromaSize is the size of one 4:2:0 chroma plane.
func chromaSize(w, h int) (int, int) {
	return (w + 1) / 2, (h + 1) / 2
}

// BlackCanvas returns a w x h full-range yuv420 picture filled with black.
func BlackCanvas(w, h int) *codec.Frame {
	cw, ch := chromaSize(w, h)
	data := make([]byte, w*h+2*cw*ch)
	for i := w * h; i < len(data); i++ {
		data[i] = 128
	}
	return &codec.Frame{
		MediaType:   codec.MediaVideo,
		Width:       w,
		Height:      h,
		PixelFormat: canvasFormat,
		Data:        data,
	}
}

// Paste copies a yuv420 picture onto a larger yuv420 canvas with its top-left
// corner at (x, y). x and y must be even and src must fit.
func Paste(dst, src *codec.Frame, x, y int) {
	copyPlane(dst.Data, dst.Width, src.Data, src.Width, src.Height, x, y)

	dcw, dch := chromaSize(dst.Width, dst.Height)
	scw, sch := chromaSize(src.Width, src.Height)
	dOff, sOff := dst.Width*dst.Height, src.Width*src.Height
	for plane := 0; plane < 2; plane++ {
		copyPlane(dst.Data[dOff:], dcw, src.Data[sOff:], scw, sch, x/2, y/2)
		dOff += dcw * dch
		sOff += scw * sch
	}
}

func copyPlane(dst []byte, dstStride int, src []byte, w, h, x, y int) {
	for row := 0; row < h; row++ {
		d := (y+row)*dstStride + x
		copy(dst[d:d+w], src[row*w:(row+1)*w])
	}
}

// FrameFromImage converts any image into a packed rgba frame.
func FrameFromImage(img image.Image) *codec.Frame {
	b := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	return &codec.Frame{
		MediaType:   codec.MediaVideo,
		Width:       b.Dx(),
		Height:      b.Dy(),
		PixelFormat: codec.PixelFormatRGBA,
		Data:        nrgba.Pix,
	}
}

// ImageFromFrame wraps a packed frame as an image without converting pixels
// where the layouts agree.
func ImageFromFrame(f *codec.Frame) (image.Image, error) {
	w, h := f.Width, f.Height
	rect := image.Rect(0, 0, w, h)
	switch f.PixelFormat {
	case codec.PixelFormatYUVJ420P, codec.PixelFormatYUV420P:
		cw, ch := chromaSize(w, h)
		if len(f.Data) < w*h+2*cw*ch {
			return nil, fmt.Errorf("%s frame too short: %d bytes", f.PixelFormat, len(f.Data))
		}
		return &image.YCbCr{
			Y:              f.Data[:w*h],
			Cb:             f.Data[w*h : w*h+cw*ch],
			Cr:             f.Data[w*h+cw*ch : w*h+2*cw*ch],
			YStride:        w,
			CStride:        cw,
			SubsampleRatio: image.YCbCrSubsampleRatio420,
			Rect:           rect,
		}, nil
	case codec.PixelFormatRGBA:
		if len(f.Data) < w*h*4 {
			return nil, fmt.Errorf("rgba frame too short: %d bytes", len(f.Data))
		}
		return &image.NRGBA{Pix: f.Data, Stride: w * 4, Rect: rect}, nil
	case codec.PixelFormatGray8:
		if len(f.Data) < w*h {
			return nil, fmt.Errorf("gray frame too short: %d bytes", len(f.Data))
		}
		return &image.Gray{Pix: f.Data, Stride: w, Rect: rect}, nil
	case codec.PixelFormatRGB24:
		if len(f.Data) < w*h*3 {
			return nil, fmt.Errorf("rgb24 frame too short: %d bytes", len(f.Data))
		}
		img := image.NewNRGBA(rect)
		for i := 0; i < w*h; i++ {
			img.SetNRGBA(i%w, i/w, color.NRGBA{f.Data[i*3], f.Data[i*3+1], f.Data[i*3+2], 0xff})
		}
		return img, nil
	default:
		return nil, fmt.Errorf("no image mapping for pixel format %q", f.PixelFormat)
	}
}
