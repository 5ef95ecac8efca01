package models

// TileCoord identifies one unit of pyramid work: the origin and extent of a
// tile in full-resolution pixel space, plus the plane it belongs to.
type TileCoord struct {
	// Plane is the flattened z/c/t plane index within the series.
	Plane int

	// X and Y are the tile origin in full-resolution pixels.
	X int
	Y int

	// Width and Height are the tile extent. Edge tiles are clipped to the
	// remaining image extent and may be smaller than the nominal tile size.
	Width  int
	Height int
}

// PyramidDescriptor captures the structural parameters of the principal
// series, derived once from a decoder handle. It is shared read-only by
// every tile task and never mutated after construction.
type PyramidDescriptor struct {
	// SizeX and SizeY are the native full-resolution dimensions.
	SizeX int
	SizeY int

	// PixelType is the sample format of raw pixel data.
	PixelType PixelType

	// Channels is the number of samples per pixel within one plane
	// (e.g. 3 for interleaved RGB).
	Channels int

	// Interleaved reports whether channel samples are pixel-interleaved
	// rather than stored in per-channel blocks.
	Interleaved bool

	// LittleEndian reports the byte order of multi-byte samples.
	LittleEndian bool

	// ImageCount is the number of z/c/t planes in the series.
	ImageCount int

	// Resolutions is the number of pyramid levels to produce,
	// level 0 being native resolution.
	Resolutions int
}

// PlaneDescriptor describes the pixel layout of a single output plane.
type PlaneDescriptor struct {
	Width        int
	Height       int
	PixelType    PixelType
	Channels     int
	Interleaved  bool
	LittleEndian bool
}

// PlaneBytes returns the size in bytes of one plane with this layout.
func (d PlaneDescriptor) PlaneBytes() int {
	return d.Width * d.Height * d.PixelType.BytesPerPixel() * d.Channels
}
