package report

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/unrest/internal/engine"
)

func history(n int) []engine.Stats {
	out := make([]engine.Stats, n)
	for i := range out {
		jailed := min(i, 10)
		out[i] = engine.Stats{
			Tick:      uint64(i),
			Quiescent: 50 - jailed - i%5,
			Active:    i % 5,
			Jailed:    jailed,
		}
	}
	return out
}

func TestChartRendersPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Chart(&buf, history(40), Options{Width: 640, Height: 320, Title: "run"}))

	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 320, cfg.Height)
}

func TestChartNeedsTwoTicks(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Chart(&buf, history(1), Options{}), ErrNotEnoughData)
	assert.ErrorIs(t, Chart(&buf, nil, Options{}), ErrNotEnoughData)
}

func TestChartWithoutCitizens(t *testing.T) {
	var buf bytes.Buffer
	flat := []engine.Stats{{Tick: 0}, {Tick: 1}, {Tick: 2}}
	require.NoError(t, Chart(&buf, flat, Options{}))
	assert.NotZero(t, buf.Len())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unrest.png")
	require.NoError(t, WriteFile(path, history(10), Options{}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, defaultWidth, cfg.Width)
}
