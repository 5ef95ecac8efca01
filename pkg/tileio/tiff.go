package tileio

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"

	"golang.org/x/image/tiff"

	"slidetiler/internal/models"
)

// CanEncodeTIFF reports whether the TIFF encoder can express the pixel
// layout: 8- or 16-bit unsigned grayscale, or 8-bit interleaved RGB.
func CanEncodeTIFF(desc models.PlaneDescriptor) bool {
	switch desc.Channels {
	case 1:
		return desc.PixelType == models.Uint8 || desc.PixelType == models.Uint16
	case 3:
		return desc.PixelType == models.Uint8 && desc.Interleaved
	}
	return false
}

type tiffWriter struct {
	f    *os.File
	desc models.PlaneDescriptor
	opts tiff.Options
}

// NewTIFFWriter opens a single-use TIFF tile writer. The compression choice
// maps onto the codecs the encoder ships with.
func NewTIFFWriter(path string, desc models.PlaneDescriptor, compression Compression) (Writer, error) {
	if !CanEncodeTIFF(desc) {
		return nil, fmt.Errorf("pixel layout %s x%d not encodable as TIFF", desc.PixelType, desc.Channels)
	}
	var ctype tiff.CompressionType
	switch compression {
	case CompressionNone, "":
		ctype = tiff.Uncompressed
	case CompressionDeflate:
		ctype = tiff.Deflate
	case CompressionLZW:
		ctype = tiff.LZW
	default:
		return nil, fmt.Errorf("unsupported TIFF compression %q", compression)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating tile file: %w", err)
	}
	return &tiffWriter{
		f:    f,
		desc: desc,
		opts: tiff.Options{Compression: ctype},
	}, nil
}

func (w *tiffWriter) WritePlane(buf []byte) error {
	if len(buf) != w.desc.PlaneBytes() {
		return fmt.Errorf("plane is %d bytes, want %d", len(buf), w.desc.PlaneBytes())
	}
	img, err := planeToImage(buf, w.desc)
	if err != nil {
		return err
	}
	if err := tiff.Encode(w.f, img, &w.opts); err != nil {
		return fmt.Errorf("encoding TIFF tile: %w", err)
	}
	return nil
}

func (w *tiffWriter) Close() error {
	return w.f.Close()
}

// planeToImage wraps raw pixel bytes in a stdlib image for encoding.
func planeToImage(buf []byte, desc models.PlaneDescriptor) (image.Image, error) {
	rect := image.Rect(0, 0, desc.Width, desc.Height)
	switch {
	case desc.Channels == 1 && desc.PixelType == models.Uint8:
		return &image.Gray{Pix: buf, Stride: desc.Width, Rect: rect}, nil
	case desc.Channels == 1 && desc.PixelType == models.Uint16:
		// image.Gray16 stores big-endian samples.
		pix := buf
		if desc.LittleEndian {
			pix = make([]byte, len(buf))
			for i := 0; i+1 < len(buf); i += 2 {
				binary.BigEndian.PutUint16(pix[i:], binary.LittleEndian.Uint16(buf[i:]))
			}
		}
		return &image.Gray16{Pix: pix, Stride: desc.Width * 2, Rect: rect}, nil
	case desc.Channels == 3 && desc.PixelType == models.Uint8 && desc.Interleaved:
		pix := make([]byte, desc.Width*desc.Height*4)
		for p := 0; p < desc.Width*desc.Height; p++ {
			pix[p*4+0] = buf[p*3+0]
			pix[p*4+1] = buf[p*3+1]
			pix[p*4+2] = buf[p*3+2]
			pix[p*4+3] = 0xff
		}
		return &image.RGBA{Pix: pix, Stride: desc.Width * 4, Rect: rect}, nil
	}
	return nil, fmt.Errorf("pixel layout %s x%d not encodable as TIFF", desc.PixelType, desc.Channels)
}
