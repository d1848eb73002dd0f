package ocr

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type fakeExecutor struct {
	calls        []call
	missing      map[string]bool
	rasterErr    error
	skipImage    bool
	recognized   string
	recognizeErr error
}

func (f *fakeExecutor) LookPath(file string) (string, error) {
	if f.missing[file] {
		return "", errors.New("not found")
	}
	return "/usr/bin/" + file, nil
}

func (f *fakeExecutor) Run(_ context.Context, name string, args []string, stdout io.Writer) error {
	f.calls = append(f.calls, call{name: name, args: args})
	switch name {
	case "pdftoppm":
		if f.rasterErr != nil {
			return f.rasterErr
		}
		if !f.skipImage {
			return os.WriteFile(args[len(args)-1]+".png", []byte("png"), 0o600)
		}
		return nil
	case "tesseract":
		if f.recognizeErr != nil {
			return f.recognizeErr
		}
		_, err := io.WriteString(stdout, f.recognized)
		return err
	}
	return errors.New("unexpected binary " + name)
}

func TestFirstPageText(t *testing.T) {
	t.Parallel()

	fake := &fakeExecutor{recognized: "  श्रीमद्भगवद्गीता\nBhagavad Gita  \n"}
	e := newEngine(Config{DPI: 150}, fake, nil)

	text := e.FirstPageText(context.Background(), "/data/raw/gita.pdf")
	assert.Equal(t, "श्रीमद्भगवद्गीता\nBhagavad Gita", text)

	require.Len(t, fake.calls, 2)
	raster := fake.calls[0]
	assert.Equal(t, "pdftoppm", raster.name)
	assert.Equal(t, []string{"-f", "1", "-l", "1", "-r", "150", "-png", "-singlefile", "/data/raw/gita.pdf"}, raster.args[:9])

	ocr := fake.calls[1]
	assert.Equal(t, "tesseract", ocr.name)
	assert.Equal(t, raster.args[9]+".png", ocr.args[0])
	assert.Equal(t, []string{"stdout", "-l", "eng+san"}, ocr.args[1:])
}

func TestFirstPageTextFailuresYieldEmpty(t *testing.T) {
	t.Parallel()

	cases := map[string]*fakeExecutor{
		"raster error":    {rasterErr: errors.New("pdftoppm crashed")},
		"no image":        {skipImage: true},
		"recognize error": {recognizeErr: errors.New("tesseract missing traineddata")},
	}
	for name, fake := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			e := newEngine(Config{}, fake, nil)
			assert.Empty(t, e.FirstPageText(context.Background(), "x.pdf"))
		})
	}
}

func TestAvailable(t *testing.T) {
	t.Parallel()

	assert.True(t, newEngine(Config{}, &fakeExecutor{}, nil).Available())
	missing := &fakeExecutor{missing: map[string]bool{"tesseract": true}}
	assert.False(t, newEngine(Config{}, missing, nil).Available())
}

func TestNewEngineDefaults(t *testing.T) {
	t.Parallel()

	e := newEngine(Config{}, &fakeExecutor{}, nil)
	assert.Equal(t, "pdftoppm", e.cfg.PdftoppmBin)
	assert.Equal(t, "tesseract", e.cfg.TesseractBin)
	assert.Equal(t, []string{"eng", "san"}, e.cfg.Languages)
	assert.Equal(t, 300, e.cfg.DPI)
}
