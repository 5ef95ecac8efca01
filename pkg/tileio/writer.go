// Package tileio writes individual tile and image files. Writers are scoped
// to a single output file: open, write one plane, close.
package tileio

import (
	"fmt"

	"slidetiler/internal/models"
)

// Format selects the on-disk representation of pyramid tiles.
type Format string

const (
	// FormatTIFF writes each tile as a TIFF file.
	FormatTIFF Format = "tiff"

	// FormatRaw writes each tile as a zstd-compressed raw buffer with a
	// small binary header.
	FormatRaw Format = "raw"
)

// Compression selects the codec applied inside the tile format.
type Compression string

const (
	CompressionNone    Compression = "none"
	CompressionDeflate Compression = "deflate"
	CompressionLZW     Compression = "lzw"
)

// Writer writes exactly one plane of pixel data to one output file.
type Writer interface {
	// WritePlane writes the raw pixel bytes for the file's single plane.
	WritePlane(buf []byte) error

	// Close flushes and closes the underlying file.
	Close() error
}

// Extension returns the filename extension (with dot) for a tile format.
func Extension(format Format) string {
	if format == FormatRaw {
		return ".bin.zst"
	}
	return ".tiff"
}

// Open creates a tile writer for the given format. TIFF requests that the
// encoder cannot express (float or 32-bit samples, planar multi-channel data)
// fall back to the raw writer; the caller should have chosen extensions
// accordingly via SelectFormat.
func Open(path string, desc models.PlaneDescriptor, format Format, compression Compression) (Writer, error) {
	switch format {
	case FormatTIFF:
		return NewTIFFWriter(path, desc, compression)
	case FormatRaw:
		return NewRawWriter(path, desc)
	default:
		return nil, fmt.Errorf("unknown tile format %q", format)
	}
}

// SelectFormat resolves the configured format against what the pixel layout
// supports: layouts the TIFF encoder cannot express are stored raw.
func SelectFormat(configured Format, desc models.PlaneDescriptor) Format {
	if configured == FormatTIFF && !CanEncodeTIFF(desc) {
		return FormatRaw
	}
	return configured
}
