package tileio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"slidetiler/internal/models"
)

// Raw tile files carry a fixed header followed by a zstd stream of pixels.
// They cover every pixel layout the TIFF encoder cannot express.
const (
	rawMagic   = "SLTZ"
	rawVersion = 1

	rawFlagInterleaved  = 1 << 0
	rawFlagLittleEndian = 1 << 1
)

type rawWriter struct {
	f    *os.File
	zw   *zstd.Encoder
	desc models.PlaneDescriptor
}

// NewRawWriter opens a single-use zstd-compressed raw tile writer.
func NewRawWriter(path string, desc models.PlaneDescriptor) (Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating tile file: %w", err)
	}
	if err := writeRawHeader(f, desc); err != nil {
		f.Close()
		return nil, err
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating zstd writer: %w", err)
	}
	return &rawWriter{f: f, zw: zw, desc: desc}, nil
}

func (w *rawWriter) WritePlane(buf []byte) error {
	if len(buf) != w.desc.PlaneBytes() {
		return fmt.Errorf("plane is %d bytes, want %d", len(buf), w.desc.PlaneBytes())
	}
	if _, err := w.zw.Write(buf); err != nil {
		return fmt.Errorf("compressing tile: %w", err)
	}
	return nil
}

func (w *rawWriter) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("finishing zstd stream: %w", err)
	}
	return w.f.Close()
}

func writeRawHeader(f *os.File, desc models.PlaneDescriptor) error {
	var flags byte
	if desc.Interleaved {
		flags |= rawFlagInterleaved
	}
	if desc.LittleEndian {
		flags |= rawFlagLittleEndian
	}
	header := make([]byte, 0, 16)
	header = append(header, rawMagic...)
	header = append(header, rawVersion)
	header = binary.BigEndian.AppendUint32(header, uint32(desc.Width))
	header = binary.BigEndian.AppendUint32(header, uint32(desc.Height))
	header = append(header, byte(desc.PixelType), byte(desc.Channels), flags)
	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("writing raw tile header: %w", err)
	}
	return nil
}

// ReadRaw opens a raw tile file and returns its descriptor and decompressed
// pixel bytes. Used to verify pipeline output.
func ReadRaw(path string) (models.PlaneDescriptor, []byte, error) {
	var desc models.PlaneDescriptor
	f, err := os.Open(path)
	if err != nil {
		return desc, nil, err
	}
	defer f.Close()

	header := make([]byte, 16)
	if _, err := io.ReadFull(f, header); err != nil {
		return desc, nil, fmt.Errorf("reading raw tile header: %w", err)
	}
	if string(header[:4]) != rawMagic {
		return desc, nil, fmt.Errorf("%s is not a raw tile file", path)
	}
	if header[4] != rawVersion {
		return desc, nil, fmt.Errorf("unsupported raw tile version %d", header[4])
	}
	desc.Width = int(binary.BigEndian.Uint32(header[5:]))
	desc.Height = int(binary.BigEndian.Uint32(header[9:]))
	desc.PixelType = models.PixelType(header[13])
	desc.Channels = int(header[14])
	desc.Interleaved = header[15]&rawFlagInterleaved != 0
	desc.LittleEndian = header[15]&rawFlagLittleEndian != 0

	zr, err := zstd.NewReader(f)
	if err != nil {
		return desc, nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()
	buf, err := io.ReadAll(zr)
	if err != nil {
		return desc, nil, fmt.Errorf("decompressing tile: %w", err)
	}
	if len(buf) != desc.PlaneBytes() {
		return desc, nil, fmt.Errorf("tile holds %d bytes, header promises %d", len(buf), desc.PlaneBytes())
	}
	return desc, buf, nil
}
