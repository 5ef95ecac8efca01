package tileio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidetiler/internal/models"
)

func TestRawWriterRoundTrip(t *testing.T) {
	desc := models.PlaneDescriptor{
		Width:        7,
		Height:       5,
		PixelType:    models.Float32,
		Channels:     2,
		Interleaved:  true,
		LittleEndian: true,
	}
	buf := make([]byte, desc.PlaneBytes())
	for i := range buf {
		buf[i] = byte(i * 3)
	}

	path := filepath.Join(t.TempDir(), "tile"+Extension(FormatRaw))
	w, err := NewRawWriter(path, desc)
	require.NoError(t, err)
	require.NoError(t, w.WritePlane(buf))
	require.NoError(t, w.Close())

	gotDesc, gotBuf, err := ReadRaw(path)
	require.NoError(t, err)
	assert.Equal(t, desc, gotDesc)
	assert.Equal(t, buf, gotBuf)
}

func TestRawWriterRejectsWrongPlaneSize(t *testing.T) {
	desc := models.PlaneDescriptor{
		Width: 4, Height: 4, PixelType: models.Uint8, Channels: 1,
	}
	path := filepath.Join(t.TempDir(), "tile.bin.zst")
	w, err := NewRawWriter(path, desc)
	require.NoError(t, err)
	defer w.Close()

	assert.Error(t, w.WritePlane(make([]byte, 15)))
}

func TestRawFilesCompress(t *testing.T) {
	desc := models.PlaneDescriptor{
		Width: 64, Height: 64, PixelType: models.Uint16, Channels: 1, LittleEndian: true,
	}
	// Constant data must compress well below its raw size.
	buf := make([]byte, desc.PlaneBytes())
	path := filepath.Join(t.TempDir(), "tile.bin.zst")
	w, err := NewRawWriter(path, desc)
	require.NoError(t, err)
	require.NoError(t, w.WritePlane(buf))
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(desc.PlaneBytes()/4))
}

func TestReadRawRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-tile")
	require.NoError(t, os.WriteFile(path, []byte("this is sixteen+"), 0644))
	_, _, err := ReadRaw(path)
	assert.Error(t, err)
}
