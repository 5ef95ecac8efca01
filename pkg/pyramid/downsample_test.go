package pyramid

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownsampleGray8(t *testing.T) {
	// 4x2 -> 2x1, each output pixel the box average of a 2x2 block.
	src := []byte{
		10, 20, 100, 200,
		30, 40, 100, 200,
	}
	dst, err := Downsample(src, 4, 2, 2, 1, true, false, false, 1, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{25, 150}, dst)
}

func TestDownsampleRoundsToNearest(t *testing.T) {
	src := []byte{0, 1, 1, 1} // mean 0.75 rounds to 1
	dst, err := Downsample(src, 2, 2, 2, 1, true, false, false, 1, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, dst)
}

func TestDownsampleFloorsOutputDimensions(t *testing.T) {
	// 5x3 at scale 2 -> 2x1; the odd row and column are discarded.
	src := make([]byte, 5*3)
	for i := range src {
		src[i] = byte(i)
	}
	dst, err := Downsample(src, 5, 3, 2, 1, true, false, false, 1, false)
	require.NoError(t, err)
	assert.Len(t, dst, 2*1)
}

func TestDownsampleUint16Endianness(t *testing.T) {
	samples := []uint16{1000, 2000, 3000, 4000} // mean 2500
	for _, little := range []bool{true, false} {
		var order binary.ByteOrder = binary.BigEndian
		if little {
			order = binary.LittleEndian
		}
		src := make([]byte, 8)
		for i, s := range samples {
			order.PutUint16(src[i*2:], s)
		}
		dst, err := Downsample(src, 2, 2, 2, 2, little, false, false, 1, false)
		require.NoError(t, err)
		require.Len(t, dst, 2)
		assert.Equal(t, uint16(2500), order.Uint16(dst))
	}
}

func TestDownsampleInterleavedRGB(t *testing.T) {
	// 2x2 RGB -> 1x1; channels average independently.
	src := []byte{
		10, 100, 200, 20, 100, 200,
		30, 100, 200, 40, 100, 200,
	}
	dst, err := Downsample(src, 2, 2, 2, 1, true, false, false, 3, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{25, 100, 200}, dst)
}

func TestDownsamplePlanarChannels(t *testing.T) {
	// 2x2 two-channel planar -> 1x1 planar.
	src := []byte{
		1, 3, 5, 7, // channel 0, mean 4
		11, 13, 15, 17, // channel 1, mean 14
	}
	dst, err := Downsample(src, 2, 2, 2, 1, true, false, false, 2, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 14}, dst)
}

func TestDownsampleInt16MixedSigns(t *testing.T) {
	// Signed samples average through sign extension, not their
	// two's-complement bit patterns.
	samples := []int16{1, -1, 1, -1} // mean 0
	src := make([]byte, 8)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(src[i*2:], uint16(s))
	}
	dst, err := Downsample(src, 2, 2, 2, 2, true, false, true, 1, false)
	require.NoError(t, err)
	require.Len(t, dst, 2)
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(dst)))
}

func TestDownsampleInt8Negative(t *testing.T) {
	samples := []int8{-10, -20, -30, -40} // mean -25
	src := make([]byte, 4)
	for i, s := range samples {
		src[i] = byte(s)
	}
	dst, err := Downsample(src, 2, 2, 2, 1, true, false, true, 1, false)
	require.NoError(t, err)
	require.Len(t, dst, 1)
	assert.Equal(t, int8(-25), int8(dst[0]))
}

func TestDownsampleInt32BigEndian(t *testing.T) {
	samples := []int32{-1000000, 1000000, -3000000, 1000000} // mean -500000
	src := make([]byte, 16)
	for i, s := range samples {
		binary.BigEndian.PutUint32(src[i*4:], uint32(s))
	}
	dst, err := Downsample(src, 2, 2, 2, 4, false, false, true, 1, false)
	require.NoError(t, err)
	require.Len(t, dst, 4)
	assert.Equal(t, int32(-500000), int32(binary.BigEndian.Uint32(dst)))
}

func TestDownsampleFloat32(t *testing.T) {
	samples := []float32{0.5, 1.5, 2.5, 3.5} // mean 2.0
	src := make([]byte, 16)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(src[i*4:], math.Float32bits(s))
	}
	dst, err := Downsample(src, 2, 2, 2, 4, true, true, false, 1, false)
	require.NoError(t, err)
	require.Len(t, dst, 4)
	got := math.Float32frombits(binary.LittleEndian.Uint32(dst))
	assert.InDelta(t, 2.0, got, 1e-6)
}

func TestDownsampleScaleFour(t *testing.T) {
	src := make([]byte, 8*4)
	for i := range src {
		src[i] = 8
	}
	dst, err := Downsample(src, 8, 4, 4, 1, true, false, false, 1, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{8, 8}, dst)
}

func TestDownsampleIsDeterministic(t *testing.T) {
	src := make([]byte, 16*16)
	for i := range src {
		src[i] = byte(i * 7)
	}
	a, err := Downsample(src, 16, 16, 4, 1, true, false, false, 1, false)
	require.NoError(t, err)
	b, err := Downsample(src, 16, 16, 4, 1, true, false, false, 1, false)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDownsampleRejectsInvalidInput(t *testing.T) {
	src := make([]byte, 16)

	_, err := Downsample(src, 4, 4, 3, 1, true, false, false, 1, false)
	assert.Error(t, err, "non power-of-two scale")

	_, err = Downsample(src, 4, 4, 1, 1, true, false, false, 1, false)
	assert.Error(t, err, "scale below the pyramid factor")

	_, err = Downsample(src, 4, 4, 8, 1, true, false, false, 1, false)
	assert.Error(t, err, "degenerate output dimensions")

	_, err = Downsample(src[:15], 4, 4, 2, 1, true, false, false, 1, false)
	assert.Error(t, err, "short buffer")

	_, err = Downsample(src, 4, 4, 2, 3, true, false, false, 1, false)
	assert.Error(t, err, "unsupported sample size")
}
