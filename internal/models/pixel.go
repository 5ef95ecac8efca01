package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// PixelType identifies the sample format of raw pixel data.
type PixelType int

const (
	Uint8 PixelType = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Float32
	Float64
)

var pixelTypeNames = map[PixelType]string{
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Float32: "float32",
	Float64: "float64",
}

// ParsePixelType converts a textual pixel type (as used in slide manifests
// and configuration files) to a PixelType.
func ParsePixelType(s string) (PixelType, error) {
	for pt, name := range pixelTypeNames {
		if name == s {
			return pt, nil
		}
	}
	return 0, fmt.Errorf("unknown pixel type %q", s)
}

// String returns the canonical lowercase name of the pixel type.
func (p PixelType) String() string {
	if name, ok := pixelTypeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("pixeltype(%d)", int(p))
}

// BytesPerPixel returns the storage size of one sample.
func (p PixelType) BytesPerPixel() int {
	switch p {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// IsFloat reports whether samples are IEEE floating point values.
func (p PixelType) IsFloat() bool {
	return p == Float32 || p == Float64
}

// IsSigned reports whether integer samples carry a sign bit.
func (p PixelType) IsSigned() bool {
	return p == Int8 || p == Int16 || p == Int32
}

// UnmarshalYAML decodes a pixel type from its textual form.
func (p *PixelType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	pt, err := ParsePixelType(s)
	if err != nil {
		return err
	}
	*p = pt
	return nil
}

// MarshalYAML encodes the pixel type as its textual form.
func (p PixelType) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}
