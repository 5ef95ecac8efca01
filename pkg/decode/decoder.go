// Package decode provides the slide decoder contract, a concrete raw-slide
// implementation, and the fixed-capacity pool of reusable decoder handles
// shared by the pipeline workers.
package decode

import (
	"errors"

	"slidetiler/internal/models"
)

var (
	// ErrPoolClosed is returned by Acquire after the pool has been closed.
	ErrPoolClosed = errors.New("decoder pool is closed")

	// ErrRegionOutOfBounds is returned when a requested region does not fit
	// inside the current series.
	ErrRegionOutOfBounds = errors.New("region out of bounds")
)

// Decoder is a stateful handle bound to an open slide container. It carries a
// mutable series cursor: SetSeries changes which image subsequent calls
// describe and read from. A handle must only ever be used by one goroutine at
// a time; the Pool enforces this through check-out/check-in.
type Decoder interface {
	// SeriesCount returns the number of images in the container.
	SeriesCount() int

	// SetSeries selects the series that subsequent accessors describe.
	SetSeries(series int) error

	// Series returns the current series cursor.
	Series() int

	// SetResolution selects a resolution level within the current series.
	// Level 0 is native resolution.
	SetResolution(level int) error

	// SizeX and SizeY return the native dimensions of the current series.
	SizeX() int
	SizeY() int

	// ImageCount returns the number of z/c/t planes in the current series.
	ImageCount() int

	// PixelType returns the sample format of the current series.
	PixelType() models.PixelType

	// RGBChannelCount returns the samples per pixel within one plane.
	RGBChannelCount() int

	// IsInterleaved reports whether channel samples are pixel-interleaved.
	IsInterleaved() bool

	// IsLittleEndian reports the byte order of multi-byte samples.
	IsLittleEndian() bool

	// ReadRegion returns raw pixel bytes for a rectangular region of one
	// plane at the current resolution.
	ReadRegion(plane, x, y, width, height int) ([]byte, error)

	// PlaneCoords maps a flattened plane index to its (z, c, t) position.
	PlaneCoords(plane int) (z, c, t int)

	// Close releases the underlying file handles.
	Close() error
}

// Descriptor derives the immutable pyramid parameters from a decoder's
// current series. The resolution count is left to the caller.
func Descriptor(d Decoder) models.PyramidDescriptor {
	return models.PyramidDescriptor{
		SizeX:        d.SizeX(),
		SizeY:        d.SizeY(),
		PixelType:    d.PixelType(),
		Channels:     d.RGBChannelCount(),
		Interleaved:  d.IsInterleaved(),
		LittleEndian: d.IsLittleEndian(),
		ImageCount:   d.ImageCount(),
	}
}
