package pyramid

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Downsample reduces a raw tile buffer by an integer power-of-two scale
// factor using a box (area) average. The result holds exactly
// floor(srcWidth/scale) x floor(srcHeight/scale) pixels with the same sample
// format, channel count and layout as the source. Signed integer samples are
// sign-extended before averaging and written back in two's complement.
//
// The function is pure and deterministic: identical inputs always produce
// identical output bytes. Callers must not invoke it with a scaled dimension
// of zero; skip the level instead.
func Downsample(buf []byte, srcWidth, srcHeight, scale, bytesPerPixel int,
	littleEndian, isFloat, isSigned bool, channels int, interleaved bool) ([]byte, error) {

	if scale < Scale || scale&(scale-1) != 0 {
		return nil, fmt.Errorf("scale factor %d is not a power of two >= %d", scale, Scale)
	}
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if isFloat {
		if bytesPerPixel != 4 && bytesPerPixel != 8 {
			return nil, fmt.Errorf("unsupported float sample size %d", bytesPerPixel)
		}
	} else if bytesPerPixel != 1 && bytesPerPixel != 2 && bytesPerPixel != 4 {
		return nil, fmt.Errorf("unsupported integer sample size %d", bytesPerPixel)
	}
	if want := srcWidth * srcHeight * bytesPerPixel * channels; len(buf) != want {
		return nil, fmt.Errorf("buffer is %d bytes, want %d for %dx%d", len(buf), want, srcWidth, srcHeight)
	}

	dstWidth := srcWidth / scale
	dstHeight := srcHeight / scale
	if dstWidth == 0 || dstHeight == 0 {
		return nil, fmt.Errorf("scaled dimensions %dx%d are degenerate", dstWidth, dstHeight)
	}

	var order binary.ByteOrder = binary.BigEndian
	if littleEndian {
		order = binary.LittleEndian
	}

	dst := make([]byte, dstWidth*dstHeight*bytesPerPixel*channels)
	area := float64(scale * scale)

	for c := 0; c < channels; c++ {
		for dy := 0; dy < dstHeight; dy++ {
			for dx := 0; dx < dstWidth; dx++ {
				var sum float64
				for sy := dy * scale; sy < (dy+1)*scale; sy++ {
					for sx := dx * scale; sx < (dx+1)*scale; sx++ {
						idx := sampleIndex(sx, sy, c, srcWidth, srcHeight, channels, interleaved)
						sum += readSample(buf, idx*bytesPerPixel, bytesPerPixel, order, isFloat, isSigned)
					}
				}
				idx := sampleIndex(dx, dy, c, dstWidth, dstHeight, channels, interleaved)
				writeSample(dst, idx*bytesPerPixel, bytesPerPixel, order, isFloat, isSigned, sum/area)
			}
		}
	}
	return dst, nil
}

// sampleIndex maps a pixel position and channel to a flat sample index for
// either interleaved (RGBRGB...) or planar (RRR...GGG...) layouts.
func sampleIndex(x, y, c, width, height, channels int, interleaved bool) int {
	if interleaved {
		return (y*width+x)*channels + c
	}
	return (c*height+y)*width + x
}

func readSample(buf []byte, off, size int, order binary.ByteOrder, isFloat, isSigned bool) float64 {
	if isFloat {
		if size == 4 {
			return float64(math.Float32frombits(order.Uint32(buf[off:])))
		}
		return math.Float64frombits(order.Uint64(buf[off:]))
	}
	if isSigned {
		switch size {
		case 1:
			return float64(int8(buf[off]))
		case 2:
			return float64(int16(order.Uint16(buf[off:])))
		default:
			return float64(int32(order.Uint32(buf[off:])))
		}
	}
	switch size {
	case 1:
		return float64(buf[off])
	case 2:
		return float64(order.Uint16(buf[off:]))
	default:
		return float64(order.Uint32(buf[off:]))
	}
}

// writeSample rounds integer averages to nearest; signed values go back
// through their two's-complement width.
func writeSample(buf []byte, off, size int, order binary.ByteOrder, isFloat, isSigned bool, v float64) {
	if isFloat {
		if size == 4 {
			order.PutUint32(buf[off:], math.Float32bits(float32(v)))
		} else {
			order.PutUint64(buf[off:], math.Float64bits(v))
		}
		return
	}
	if isSigned {
		switch size {
		case 1:
			buf[off] = byte(int8(math.Round(v)))
		case 2:
			order.PutUint16(buf[off:], uint16(int16(math.Round(v))))
		default:
			order.PutUint32(buf[off:], uint32(int32(math.Round(v))))
		}
		return
	}
	switch size {
	case 1:
		buf[off] = byte(math.Round(v))
	case 2:
		order.PutUint16(buf[off:], uint16(math.Round(v)))
	default:
		order.PutUint32(buf[off:], uint32(math.Round(v)))
	}
}
