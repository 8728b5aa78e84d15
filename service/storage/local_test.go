package storage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/seat-go/service/config"
)

type resultsConfig struct {
	config.IService
	folder string
}

func (c resultsConfig) GetResultsFolder() string { return c.folder }

func newTestService(t *testing.T) (IService, string) {
	t.Helper()
	folder := filepath.Join(t.TempDir(), "static", "results")
	return NewLocal(resultsConfig{IService: config.NewHardCoded(), folder: folder}), folder
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := imaging.New(8, 6, color.NRGBA{R: 200, A: 255})
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestStoreFileReencodesAsJPEG(t *testing.T) {
	svc, folder := newTestService(t)

	src := filepath.Join(t.TempDir(), "image0.png")
	require.NoError(t, os.WriteFile(src, testPNG(t), 0o644))

	name, err := svc.StoreFile(src)
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9a-f]{32}\.jpg$`, name)

	f, err := os.Open(filepath.Join(folder, name))
	require.NoError(t, err)
	defer f.Close()
	_, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	// The source stays where the runtime left it
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestStoreBytesUniqueNames(t *testing.T) {
	svc, _ := newTestService(t)

	a, err := svc.StoreBytes(testPNG(t))
	require.NoError(t, err)
	b, err := svc.StoreBytes(testPNG(t))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStoreBytesRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.StoreBytes([]byte("not an image"))
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	svc, folder := newTestService(t)

	name, err := svc.StoreBytes(testPNG(t))
	require.NoError(t, err)

	p, err := svc.Path(name)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(folder, name), p)

	for _, bad := range []string{"", "../secret.jpg", "a/b.jpg", ".hidden"} {
		_, err := svc.Path(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}

	_, err = svc.Path("missing.jpg")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
