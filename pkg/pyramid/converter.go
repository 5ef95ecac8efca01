package pyramid

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"slidetiler/internal/models"
	"slidetiler/pkg/decode"
	"slidetiler/pkg/metadata"
	"slidetiler/pkg/tileio"
)

// Params holds the conversion parameters.
type Params struct {
	// InputPath is the slide to convert.
	InputPath string

	// OutputDir is the root of the tile directory tree.
	OutputDir string

	// Workers is the worker count, decoder pool size and admission queue
	// capacity.
	Workers int

	// TileWidth and TileHeight are the nominal tile dimensions.
	TileWidth  int
	TileHeight int

	// Resolutions is the pyramid level count; 0 means auto-compute.
	Resolutions int

	// Format and Compression select the tile file representation.
	Format      tileio.Format
	Compression tileio.Compression

	// JPEGQuality applies to extra-series images.
	JPEGQuality int

	// ExtraSeriesNames maps a series index to its output image basename.
	ExtraSeriesNames map[int]string
}

// Stats summarizes a finished conversion.
type Stats struct {
	TileCount     int
	TilesRead     int64
	TileFailures  int64
	ExtraFailures int
	MeanTileMs    float64
	StdDevTileMs  float64
}

// Converter drives one slide conversion through its phases: pool
// construction, the parallel series-0 tile fan-out, a full drain barrier,
// the metadata sidecar, and the serial extra series. Pooled decoder handles
// carry a mutable series cursor, so the drain barrier is what makes the
// cursor mutation between phases safe.
type Converter struct {
	params  *Params
	factory decode.Factory
	log     *zap.Logger
	runID   string

	pool  *decode.Pool
	sched *Scheduler
	desc  models.PyramidDescriptor

	tileCount int
	nTile     atomic.Int64
	failures  atomic.Int64

	durMu     sync.Mutex
	durations []float64

	extraFailures int
}

// NewConverter creates a converter. The factory must yield identically
// configured decoder handles for the input slide.
func NewConverter(params *Params, factory decode.Factory, log *zap.Logger) *Converter {
	runID := uuid.NewString()
	return &Converter{
		params:  params,
		factory: factory,
		log:     log.Named("converter").With(zap.String("run_id", runID)),
		runID:   runID,
	}
}

// RunID returns the unique identifier of this conversion run.
func (c *Converter) RunID() string { return c.runID }

// Run performs the conversion. Setup failures are fatal and returned;
// per-tile and per-extra-series failures are logged, counted and tolerated.
func (c *Converter) Run(ctx context.Context) error {
	if err := os.MkdirAll(c.params.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	pool, err := decode.NewPool(c.params.Workers, c.factory, c.log.Named("pool"))
	if err != nil {
		return fmt.Errorf("constructing decoder pool: %w", err)
	}
	c.pool = pool
	defer c.pool.Close()

	c.sched = NewScheduler(c.params.Workers, c.log.Named("scheduler"))

	// Only process the first series here. All tiles must be written before
	// the remaining series are touched; otherwise the pooled readers'
	// series cursor would change under in-flight tile tasks.
	mainErr := c.writeSeries(ctx, 0)
	c.sched.Shutdown()
	if mainErr != nil {
		c.log.Error("error while writing series 0", zap.Error(mainErr))
		return mainErr
	}

	seriesCount, err := c.writeMetadata(ctx)
	if err != nil {
		c.log.Error("could not persist metadata", zap.Error(err))
		return err
	}

	// Each extra image goes to a separate, non-pyramided file. A failed
	// series is abandoned but the rest are still attempted.
	for s := 1; s < seriesCount; s++ {
		if err := c.writeSeries(ctx, s); err != nil {
			c.log.Error("error while writing series", zap.Int("series", s), zap.Error(err))
			c.extraFailures++
		}
	}

	c.logSummary()
	return nil
}

// writeSeries points every pooled handle at the series, then converts it:
// the principal series gets the parallel pyramid fan-out, extra series are
// written serially as single images.
func (c *Converter) writeSeries(ctx context.Context, series int) error {
	if err := c.pool.SetSeries(series); err != nil {
		return err
	}
	if series == 0 {
		return c.saveResolutions(ctx)
	}
	name, ok := c.params.ExtraSeriesNames[series]
	if !ok {
		name = strconv.Itoa(series)
	}
	return c.saveExtraImage(ctx, series, name)
}

// saveResolutions computes the pyramid geometry for series 0 and submits one
// tile task per grid cell.
func (c *Converter) saveResolutions(ctx context.Context) error {
	handle, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	c.desc = decode.Descriptor(handle)
	c.pool.Release(handle)

	c.desc.Resolutions = c.params.Resolutions
	if c.desc.Resolutions == 0 {
		c.desc.Resolutions = ResolutionCount(c.desc.SizeX, c.desc.SizeY)
	}
	c.log.Info("using pyramid resolutions", zap.Int("resolutions", c.desc.Resolutions))

	c.tileCount = TileCount(c.desc.SizeX, c.desc.SizeY, c.desc.ImageCount,
		c.params.TileWidth, c.params.TileHeight)
	c.log.Info("preparing to write pyramid",
		zap.Int("size_x", c.desc.SizeX),
		zap.Int("tile_width", c.params.TileWidth),
		zap.Int("size_y", c.desc.SizeY),
		zap.Int("tile_height", c.params.TileHeight),
		zap.Int("image_count", c.desc.ImageCount),
		zap.Int("tile_count", c.tileCount))

	for resolution := 0; resolution < c.desc.Resolutions; resolution++ {
		dir := filepath.Join(c.params.OutputDir, strconv.Itoa(resolution))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating resolution directory: %w", err)
		}
	}

	for _, coord := range TileGrid(c.desc.SizeX, c.desc.SizeY, c.desc.ImageCount,
		c.params.TileWidth, c.params.TileHeight) {
		coord := coord
		c.sched.Submit(func() {
			if err := c.processTile(ctx, coord); err != nil {
				c.failures.Add(1)
				c.log.Error("failure processing tile",
					zap.Int("plane", coord.Plane),
					zap.Int("x", coord.X),
					zap.Int("y", coord.Y),
					zap.Int("width", coord.Width),
					zap.Int("height", coord.Height),
					zap.Error(err))
			}
		})
	}
	return nil
}

// processTile is one unit of work: read the raw tile with a pooled handle,
// release the handle, then fan the tile out across the pyramid levels. A
// level whose scaled width or height reaches zero truncates the fan-out for
// this tile; smaller levels are never produced for it.
func (c *Converter) processTile(ctx context.Context, coord models.TileCoord) error {
	start := time.Now()

	handle, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	tile, readErr := handle.ReadRegion(coord.Plane, coord.X, coord.Y, coord.Width, coord.Height)
	z, ch, t := handle.PlaneCoords(coord.Plane)
	c.pool.Release(handle)

	n := c.nTile.Add(1)
	c.log.Info("tile read complete",
		zap.Int64("tile", n), zap.Int("of", c.tileCount))
	if readErr != nil {
		return fmt.Errorf("reading tile: %w", readErr)
	}

	bpp := c.desc.PixelType.BytesPerPixel()
	for resolution := 0; resolution < c.desc.Resolutions; resolution++ {
		scale := 1 << resolution
		scaledWidth := coord.Width / scale
		scaledHeight := coord.Height / scale
		if scaledWidth == 0 || scaledHeight == 0 {
			// The right-most column and bottom-most row may downsample
			// below one pixel; nothing is written from here up.
			break
		}

		scaledTile := tile
		if resolution > 0 {
			scaledTile, err = Downsample(tile, coord.Width, coord.Height, scale, bpp,
				c.desc.LittleEndian, c.desc.PixelType.IsFloat(), c.desc.PixelType.IsSigned(),
				c.desc.Channels, c.desc.Interleaved)
			if err != nil {
				return fmt.Errorf("downsampling to resolution %d: %w", resolution, err)
			}
		}

		dir := filepath.Join(c.params.OutputDir,
			strconv.Itoa(resolution), strconv.Itoa(coord.X))
		// Sibling tasks may create the same column directory concurrently.
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating tile directory: %w", err)
		}

		planeDesc := models.PlaneDescriptor{
			Width:        scaledWidth,
			Height:       scaledHeight,
			PixelType:    c.desc.PixelType,
			Channels:     c.desc.Channels,
			Interleaved:  c.desc.Interleaved,
			LittleEndian: c.desc.LittleEndian,
		}
		format := tileio.SelectFormat(c.params.Format, planeDesc)
		path := filepath.Join(dir, fmt.Sprintf("%d_w%d_z%d_t%d%s",
			coord.Y, ch, z, t, tileio.Extension(format)))
		c.log.Debug("writing tile", zap.String("path", path))

		if err := c.writeTile(path, planeDesc, format, scaledTile); err != nil {
			return fmt.Errorf("writing resolution %d: %w", resolution, err)
		}
	}

	c.recordDuration(time.Since(start))
	return nil
}

func (c *Converter) writeTile(path string, desc models.PlaneDescriptor,
	format tileio.Format, buf []byte) error {
	w, err := tileio.Open(path, desc, format, c.params.Compression)
	if err != nil {
		return err
	}
	if err := w.WritePlane(buf); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// writeMetadata persists the structural sidecar using a single pooled
// handle. It runs strictly between the MAIN drain barrier and the extra
// series, when no worker can hold a handle. Returns the series count for
// the EXTRA phase.
func (c *Converter) writeMetadata(ctx context.Context) (int, error) {
	handle, err := c.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer c.pool.Release(handle)

	doc, err := metadata.Build(handle, "slidetiler", c.desc.Resolutions)
	if err != nil {
		return 0, err
	}
	path := filepath.Join(c.params.OutputDir, metadata.Filename)
	if err := doc.Write(path); err != nil {
		return 0, err
	}
	c.log.Info("wrote metadata sidecar", zap.String("path", path))
	return handle.SeriesCount(), nil
}

// saveExtraImage writes one non-tiled, non-pyramided series (label or
// overview image) as a single file, synchronously.
func (c *Converter) saveExtraImage(ctx context.Context, series int, name string) error {
	handle, err := c.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Release(handle)

	desc := models.PlaneDescriptor{
		Width:        handle.SizeX(),
		Height:       handle.SizeY(),
		PixelType:    handle.PixelType(),
		Channels:     handle.RGBChannelCount(),
		Interleaved:  handle.IsInterleaved(),
		LittleEndian: handle.IsLittleEndian(),
	}
	buf, err := handle.ReadRegion(0, 0, 0, desc.Width, desc.Height)
	if err != nil {
		return fmt.Errorf("reading series %d: %w", series, err)
	}

	var w tileio.Writer
	path := filepath.Join(c.params.OutputDir, name+".jpg")
	w, err = tileio.NewJPEGWriter(path, desc, c.params.JPEGQuality)
	if err != nil {
		// Pixel layouts JPEG cannot express are stored raw instead.
		path = filepath.Join(c.params.OutputDir, name+tileio.Extension(tileio.FormatRaw))
		w, err = tileio.NewRawWriter(path, desc)
		if err != nil {
			return err
		}
	}
	if err := w.WritePlane(buf); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	c.log.Info("wrote extra series image",
		zap.Int("series", series), zap.String("path", path))
	return nil
}

func (c *Converter) recordDuration(d time.Duration) {
	c.durMu.Lock()
	c.durations = append(c.durations, float64(d.Milliseconds()))
	c.durMu.Unlock()
}

// Stats returns the conversion summary.
func (c *Converter) Stats() Stats {
	c.durMu.Lock()
	defer c.durMu.Unlock()
	s := Stats{
		TileCount:     c.tileCount,
		TilesRead:     c.nTile.Load(),
		TileFailures:  c.failures.Load(),
		ExtraFailures: c.extraFailures,
	}
	if len(c.durations) > 0 {
		s.MeanTileMs = stat.Mean(c.durations, nil)
	}
	if len(c.durations) > 1 {
		s.StdDevTileMs = stat.StdDev(c.durations, nil)
	}
	return s
}

func (c *Converter) logSummary() {
	s := c.Stats()
	c.log.Info("conversion complete",
		zap.Int("tile_count", s.TileCount),
		zap.Int64("tiles_read", s.TilesRead),
		zap.Int64("tile_failures", s.TileFailures),
		zap.Int("extra_series_failures", s.ExtraFailures),
		zap.Float64("mean_tile_ms", s.MeanTileMs),
		zap.Float64("stddev_tile_ms", s.StdDevTileMs))
}
