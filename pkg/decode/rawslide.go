package decode

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"slidetiler/internal/models"
)

// ManifestName is the series manifest expected inside a raw slide directory.
const ManifestName = "index.yaml"

// SeriesEntry describes one series in a raw slide manifest. Pixel data is
// stored planar and plane-major in the referenced file: planes ordered z
// fastest, then c, then t; within a plane, samples are either
// pixel-interleaved or stored in per-channel blocks.
type SeriesEntry struct {
	Width        int              `yaml:"width"`
	Height       int              `yaml:"height"`
	PixelType    models.PixelType `yaml:"pixelType"`
	Channels     int              `yaml:"channels"`
	Interleaved  bool             `yaml:"interleaved"`
	LittleEndian bool             `yaml:"littleEndian"`
	SizeZ        int              `yaml:"sizeZ"`
	SizeC        int              `yaml:"sizeC"`
	SizeT        int              `yaml:"sizeT"`
	Data         string           `yaml:"data"`
}

// Manifest is the top-level structure of index.yaml.
type Manifest struct {
	Series []SeriesEntry `yaml:"series"`
}

// RawSlide is a Decoder over a directory holding an index.yaml manifest and
// one uncompressed planar pixel file per series. Regions are read with
// positioned reads; the image is never buffered whole.
type RawSlide struct {
	dir        string
	manifest   Manifest
	files      []*os.File
	series     int
	resolution int
}

// OpenRawSlide opens every series data file up front so that a handle can
// switch series without further I/O setup. The series cursor starts at 0 and
// the resolution at native.
func OpenRawSlide(dir string) (*RawSlide, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading slide manifest: %w", err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing slide manifest: %w", err)
	}
	if len(manifest.Series) == 0 {
		return nil, fmt.Errorf("slide manifest %s lists no series", dir)
	}

	r := &RawSlide{dir: dir, manifest: manifest}
	for i, s := range manifest.Series {
		if err := validateSeries(i, s); err != nil {
			r.Close()
			return nil, err
		}
		f, err := os.Open(filepath.Join(dir, s.Data))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("opening series %d data: %w", i, err)
		}
		r.files = append(r.files, f)
	}
	return r, nil
}

func validateSeries(i int, s SeriesEntry) error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("series %d has invalid dimensions %dx%d", i, s.Width, s.Height)
	}
	if s.Channels <= 0 || s.SizeZ <= 0 || s.SizeC <= 0 || s.SizeT <= 0 {
		return fmt.Errorf("series %d has invalid channel or plane counts", i)
	}
	if s.PixelType.BytesPerPixel() == 0 {
		return fmt.Errorf("series %d has invalid pixel type", i)
	}
	return nil
}

func (r *RawSlide) current() SeriesEntry { return r.manifest.Series[r.series] }

func (r *RawSlide) SeriesCount() int { return len(r.manifest.Series) }

func (r *RawSlide) SetSeries(series int) error {
	if series < 0 || series >= len(r.manifest.Series) {
		return fmt.Errorf("series %d out of range [0,%d)", series, len(r.manifest.Series))
	}
	r.series = series
	return nil
}

func (r *RawSlide) Series() int { return r.series }

// SetResolution accepts only the native level; raw slides carry a single
// stored resolution and the pipeline synthesizes the rest.
func (r *RawSlide) SetResolution(level int) error {
	if level != 0 {
		return fmt.Errorf("raw slides only store resolution 0, got %d", level)
	}
	r.resolution = level
	return nil
}

func (r *RawSlide) SizeX() int { return r.current().Width }

func (r *RawSlide) SizeY() int { return r.current().Height }

func (r *RawSlide) ImageCount() int {
	s := r.current()
	return s.SizeZ * s.SizeC * s.SizeT
}

func (r *RawSlide) PixelType() models.PixelType { return r.current().PixelType }

func (r *RawSlide) RGBChannelCount() int { return r.current().Channels }

func (r *RawSlide) IsInterleaved() bool { return r.current().Interleaved }

func (r *RawSlide) IsLittleEndian() bool { return r.current().LittleEndian }

// PlaneCoords inverts the z-fastest plane ordering.
func (r *RawSlide) PlaneCoords(plane int) (z, c, t int) {
	s := r.current()
	z = plane % s.SizeZ
	c = (plane / s.SizeZ) % s.SizeC
	t = plane / (s.SizeZ * s.SizeC)
	return z, c, t
}

// ReadRegion reads a rectangular region of one plane with positioned reads,
// one row (or one row per channel block) at a time.
func (r *RawSlide) ReadRegion(plane, x, y, width, height int) ([]byte, error) {
	s := r.current()
	if plane < 0 || plane >= r.ImageCount() {
		return nil, fmt.Errorf("plane %d: %w", plane, ErrRegionOutOfBounds)
	}
	if x < 0 || y < 0 || width <= 0 || height <= 0 ||
		x+width > s.Width || y+height > s.Height {
		return nil, fmt.Errorf("region %d,%d %dx%d in %dx%d: %w",
			x, y, width, height, s.Width, s.Height, ErrRegionOutOfBounds)
	}

	bpp := s.PixelType.BytesPerPixel()
	planeBytes := int64(s.Width) * int64(s.Height) * int64(bpp) * int64(s.Channels)
	planeOffset := int64(plane) * planeBytes
	f := r.files[r.series]

	buf := make([]byte, width*height*bpp*s.Channels)
	if s.Interleaved {
		rowBytes := width * bpp * s.Channels
		stride := int64(s.Width) * int64(bpp) * int64(s.Channels)
		for row := 0; row < height; row++ {
			off := planeOffset + int64(y+row)*stride + int64(x)*int64(bpp)*int64(s.Channels)
			if _, err := f.ReadAt(buf[row*rowBytes:(row+1)*rowBytes], off); err != nil {
				return nil, fmt.Errorf("reading plane %d row %d: %w", plane, y+row, err)
			}
		}
		return buf, nil
	}

	// Planar layout: one full-plane block per channel.
	channelBytes := int64(s.Width) * int64(s.Height) * int64(bpp)
	rowBytes := width * bpp
	stride := int64(s.Width) * int64(bpp)
	for c := 0; c < s.Channels; c++ {
		base := planeOffset + int64(c)*channelBytes
		dst := c * width * height * bpp
		for row := 0; row < height; row++ {
			off := base + int64(y+row)*stride + int64(x)*int64(bpp)
			if _, err := f.ReadAt(buf[dst+row*rowBytes:dst+(row+1)*rowBytes], off); err != nil {
				return nil, fmt.Errorf("reading plane %d channel %d row %d: %w", plane, c, y+row, err)
			}
		}
	}
	return buf, nil
}

// Close closes every series data file, ignoring individual failures beyond
// the first error encountered.
func (r *RawSlide) Close() error {
	var firstErr error
	for _, f := range r.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.files = nil
	return firstErr
}
