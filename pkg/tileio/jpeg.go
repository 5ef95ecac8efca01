package tileio

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"

	"slidetiler/internal/models"
)

// DefaultJPEGQuality matches what the pipeline uses for extra-series images
// when no quality is configured.
const DefaultJPEGQuality = 90

type jpegWriter struct {
	f       *os.File
	desc    models.PlaneDescriptor
	quality int
}

// NewJPEGWriter opens a single-use JPEG writer, used for non-pyramided extra
// series such as label and overview images. Only 8-bit grayscale and 8-bit
// interleaved RGB planes are supported.
func NewJPEGWriter(path string, desc models.PlaneDescriptor, quality int) (Writer, error) {
	if desc.PixelType != models.Uint8 {
		return nil, fmt.Errorf("JPEG output requires uint8 samples, got %s", desc.PixelType)
	}
	if desc.Channels != 1 && !(desc.Channels == 3 && desc.Interleaved) {
		return nil, fmt.Errorf("JPEG output requires grayscale or interleaved RGB, got %d channels", desc.Channels)
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating image file: %w", err)
	}
	return &jpegWriter{f: f, desc: desc, quality: quality}, nil
}

func (w *jpegWriter) WritePlane(buf []byte) error {
	if len(buf) != w.desc.PlaneBytes() {
		return fmt.Errorf("plane is %d bytes, want %d", len(buf), w.desc.PlaneBytes())
	}
	rect := image.Rect(0, 0, w.desc.Width, w.desc.Height)
	var img image.Image
	if w.desc.Channels == 1 {
		img = &image.Gray{Pix: buf, Stride: w.desc.Width, Rect: rect}
	} else {
		pix := make([]byte, w.desc.Width*w.desc.Height*4)
		for p := 0; p < w.desc.Width*w.desc.Height; p++ {
			pix[p*4+0] = buf[p*3+0]
			pix[p*4+1] = buf[p*3+1]
			pix[p*4+2] = buf[p*3+2]
			pix[p*4+3] = 0xff
		}
		img = &image.RGBA{Pix: pix, Stride: w.desc.Width * 4, Rect: rect}
	}
	if err := jpeg.Encode(w.f, img, &jpeg.Options{Quality: w.quality}); err != nil {
		return fmt.Errorf("encoding JPEG image: %w", err)
	}
	return nil
}

func (w *jpegWriter) Close() error {
	return w.f.Close()
}
