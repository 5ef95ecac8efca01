// Package pyramid implements the concurrent tile-pyramid production pipeline:
// tile grid geometry, pure downsampling, the bounded worker scheduler, and the
// phase-ordered converter that drives a pooled slide decoder.
package pyramid

import (
	"slidetiler/internal/models"
)

const (
	// MinSize is the smallest allowed value of the largest XY dimension in
	// the lowest pyramid resolution, when computing the resolution count.
	MinSize = 256

	// Scale is the XY scaling factor between consecutive resolutions.
	Scale = 2
)

// ResolutionCount computes the number of pyramid levels for an image of the
// given native dimensions: the smallest count such that repeatedly halving
// both dimensions brings the larger one to MinSize or below. Images already
// at or below MinSize get a single level.
func ResolutionCount(width, height int) int {
	resolutions := 1
	for width > MinSize || height > MinSize {
		resolutions++
		width /= Scale
		height /= Scale
	}
	return resolutions
}

// TileGrid partitions [0,sizeX) x [0,sizeY) x [0,imageCount) into tile
// coordinates of at most tileWidth x tileHeight pixels. Edge tiles are
// clipped to the remaining extent. The enumeration order matches the
// submission order of the converter: rows outermost, then columns, then
// planes.
func TileGrid(sizeX, sizeY, imageCount, tileWidth, tileHeight int) []models.TileCoord {
	var grid []models.TileCoord
	for y := 0; y < sizeY; y += tileHeight {
		height := tileHeight
		if sizeY-y < height {
			height = sizeY - y
		}
		for x := 0; x < sizeX; x += tileWidth {
			width := tileWidth
			if sizeX-x < width {
				width = sizeX - x
			}
			for plane := 0; plane < imageCount; plane++ {
				grid = append(grid, models.TileCoord{
					Plane:  plane,
					X:      x,
					Y:      y,
					Width:  width,
					Height: height,
				})
			}
		}
	}
	return grid
}

// TileCount returns the number of tile tasks for a series without
// materializing the grid.
func TileCount(sizeX, sizeY, imageCount, tileWidth, tileHeight int) int {
	tilesX := (sizeX + tileWidth - 1) / tileWidth
	tilesY := (sizeY + tileHeight - 1) / tileHeight
	return tilesX * tilesY * imageCount
}
