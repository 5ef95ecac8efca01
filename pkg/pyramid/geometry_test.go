package pyramid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolutionCount(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          int
	}{
		{"tiny image gets a single level", 100, 100, 1},
		{"exactly MIN_SIZE gets a single level", 256, 256, 1},
		{"one past MIN_SIZE gets two levels", 257, 100, 2},
		{"2000x1500 slide", 2000, 1500, 4},
		{"driven by the larger dimension", 100, 2000, 4},
		{"wide slide", 100000, 100, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolutionCount(tt.width, tt.height))
		})
	}
}

// The computed count must be minimal: one fewer halving leaves the larger
// dimension above MIN_SIZE, and the full count brings it to MIN_SIZE or less.
func TestResolutionCountIsMinimal(t *testing.T) {
	for _, dims := range [][2]int{{2000, 1500}, {257, 257}, {512, 512}, {40000, 30000}} {
		w, h := dims[0], dims[1]
		r := ResolutionCount(w, h)
		if r == 1 {
			assert.LessOrEqual(t, max(w, h), MinSize)
			continue
		}
		assert.Greater(t, max(w, h)/pow(Scale, r-2), MinSize, "count %d too high for %dx%d", r, w, h)
	}
}

func pow(base, exp int) int {
	v := 1
	for i := 0; i < exp; i++ {
		v *= base
	}
	return v
}

func TestTileGridCoversImageExactly(t *testing.T) {
	const sizeX, sizeY = 2000, 1500
	grid := TileGrid(sizeX, sizeY, 1, 1024, 1024)
	require.Len(t, grid, 4)

	// Every pixel must be covered by exactly one tile.
	covered := make([]int, sizeX*sizeY)
	for _, c := range grid {
		assert.Positive(t, c.Width)
		assert.Positive(t, c.Height)
		for y := c.Y; y < c.Y+c.Height; y++ {
			for x := c.X; x < c.X+c.Width; x++ {
				covered[y*sizeX+x]++
			}
		}
	}
	for i, n := range covered {
		require.Equal(t, 1, n, "pixel %d covered %d times", i, n)
	}
}

func TestTileGridClipsEdgeTiles(t *testing.T) {
	grid := TileGrid(2000, 1500, 1, 1024, 1024)
	byOrigin := map[[2]int][2]int{}
	for _, c := range grid {
		byOrigin[[2]int{c.X, c.Y}] = [2]int{c.Width, c.Height}
	}
	assert.Equal(t, [2]int{1024, 1024}, byOrigin[[2]int{0, 0}])
	assert.Equal(t, [2]int{976, 1024}, byOrigin[[2]int{1024, 0}])
	assert.Equal(t, [2]int{1024, 476}, byOrigin[[2]int{0, 1024}])
	assert.Equal(t, [2]int{976, 476}, byOrigin[[2]int{1024, 1024}])
}

func TestTileGridEnumeratesEveryPlane(t *testing.T) {
	grid := TileGrid(2000, 1500, 3, 1024, 1024)
	assert.Len(t, grid, 4*3)
	assert.Equal(t, len(grid), TileCount(2000, 1500, 3, 1024, 1024))

	planes := map[int]int{}
	for _, c := range grid {
		planes[c.Plane]++
	}
	assert.Equal(t, map[int]int{0: 4, 1: 4, 2: 4}, planes)
}

func TestTileCountMatchesGrid(t *testing.T) {
	for _, tt := range [][5]int{
		{1024, 1024, 1, 1024, 1024},
		{1025, 1024, 1, 1024, 1024},
		{513, 300, 2, 256, 256},
		{100, 100, 5, 30, 40},
	} {
		grid := TileGrid(tt[0], tt[1], tt[2], tt[3], tt[4])
		assert.Equal(t, len(grid), TileCount(tt[0], tt[1], tt[2], tt[3], tt[4]))
	}
}
