package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"slidetiler/pkg/config"
	"slidetiler/pkg/decode"
	"slidetiler/pkg/logging"
	"slidetiler/pkg/pyramid"
	"slidetiler/pkg/tileio"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("input", "", "Slide directory to convert")
	outputDir := flag.String("output", "", "Output pyramid directory")
	configPath := flag.String("config", "slidetiler.yaml", "Configuration file (optional)")
	workers := flag.Int("workers", 0, "Maximum number of workers (default: all available cores)")
	tileWidth := flag.Int("tile-width", 0, "Maximum tile width to read")
	tileHeight := flag.Int("tile-height", 0, "Maximum tile height to read")
	resolutions := flag.Int("resolutions", 0, "Number of pyramid resolutions to generate (default: auto)")
	format := flag.String("format", "", "Tile file format: tiff or raw")
	compression := flag.String("compression", "", "Tile compression: none, deflate or lzw")
	debug := flag.Bool("debug", false, "Turn on debug logging")
	flag.Parse()

	// Validate inputs
	if *inputPath == "" || *outputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Command line flags override file and environment configuration.
	if *workers > 0 {
		cfg.Pipeline.Workers = *workers
	}
	if *tileWidth > 0 {
		cfg.Pipeline.TileWidth = *tileWidth
	}
	if *tileHeight > 0 {
		cfg.Pipeline.TileHeight = *tileHeight
	}
	if *resolutions > 0 {
		cfg.Pipeline.Resolutions = *resolutions
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *compression != "" {
		cfg.Output.Compression = *compression
	}
	if *debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	banner := color.New(color.FgCyan, color.Bold)
	banner.Println("================================")
	banner.Println("SLIDETILER - PYRAMIDAL TILE CONVERTER")
	banner.Println("================================")

	params := &pyramid.Params{
		InputPath:        *inputPath,
		OutputDir:        *outputDir,
		Workers:          cfg.Pipeline.Workers,
		TileWidth:        cfg.Pipeline.TileWidth,
		TileHeight:       cfg.Pipeline.TileHeight,
		Resolutions:      cfg.Pipeline.Resolutions,
		Format:           tileio.Format(cfg.Output.Format),
		Compression:      tileio.Compression(cfg.Output.Compression),
		JPEGQuality:      cfg.Output.JPEGQuality,
		ExtraSeriesNames: cfg.Output.ExtraSeriesNames,
	}

	// Every pooled handle gets the same initial configuration: native
	// resolution, series 0.
	factory := func() (decode.Decoder, error) {
		d, err := decode.OpenRawSlide(*inputPath)
		if err != nil {
			return nil, err
		}
		if err := d.SetResolution(0); err != nil {
			d.Close()
			return nil, err
		}
		return d, nil
	}

	converter := pyramid.NewConverter(params, factory, logger)
	logger.Info("starting conversion",
		zap.String("input", *inputPath),
		zap.String("output", *outputDir),
		zap.Int("workers", cfg.Pipeline.Workers))

	startTime := time.Now()
	if err := converter.Run(context.Background()); err != nil {
		logger.Error("conversion failed", zap.Error(err))
		os.Exit(1)
	}
	elapsed := time.Since(startTime)

	stats := converter.Stats()
	success := color.New(color.FgGreen, color.Bold)
	success.Printf("\nConversion completed in %.2f seconds\n", elapsed.Seconds())
	fmt.Printf("Tiles read: %d/%d\n", stats.TilesRead, stats.TileCount)
	fmt.Printf("Mean tile time: %.1f ms (stddev %.1f ms)\n", stats.MeanTileMs, stats.StdDevTileMs)
	if stats.TileFailures > 0 || stats.ExtraFailures > 0 {
		warn := color.New(color.FgYellow)
		warn.Printf("Incomplete output: %d tile failures, %d extra series failures\n",
			stats.TileFailures, stats.ExtraFailures)
	}
	fmt.Printf("Output written to: %s\n", *outputDir)
}
