package main

import (
	"bytes"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fiapx/fiapx-interpolation-service/internal/domain/entity"
	"github.com/fiapx/fiapx-interpolation-service/internal/domain/port"
	"github.com/fiapx/fiapx-interpolation-service/internal/imaging"
	"github.com/fiapx/fiapx-interpolation-service/internal/interpolation"
	"github.com/fiapx/fiapx-interpolation-service/internal/strategy/average"
	"github.com/fiapx/fiapx-interpolation-service/internal/strategy/convnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := parseOptions([]string{"-in", "clips/a.mov"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 1, opts.preset.Passes)
	assert.Equal(t, "naive", opts.preset.Strategy)
	assert.True(t, opts.preset.AllowFallback())
	assert.Equal(t, filepath.Join("clips", "a_interpolated.mp4"), opts.out)
	assert.Equal(t, -1, opts.pair)
}

func TestParseOptionsFlagsOverridePreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("passes: 3\nstrategy: deep\naudio_policy: stretch\n"), 0o644))

	opts, err := parseOptions([]string{"-config", path, "-in", "a.mp4", "-passes", "2", "-fallback=false"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 2, opts.preset.Passes)
	assert.Equal(t, "deep", opts.preset.Strategy)
	assert.Equal(t, "stretch", opts.preset.AudioPolicy)
	assert.False(t, opts.preset.AllowFallback())
}

func TestParseOptionsRejectsBadInput(t *testing.T) {
	cases := map[string][]string{
		"missing input":    {},
		"too many passes":  {"-in", "a.mp4", "-passes", "9"},
		"compare and pair": {"-in", "a.mp4", "-compare", "-pair", "0"},
		"stray argument":   {"-in", "a.mp4", "extra"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseOptions(args, io.Discard)
			assert.Error(t, err)
		})
	}

	_, err := parseOptions([]string{"-h"}, io.Discard)
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestPairModeDefaultsToCurrentDir(t *testing.T) {
	opts, err := parseOptions([]string{"-in", "a.mp4", "-pair", "3"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, ".", opts.out)
}

func TestComparePath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "naive_clip.mp4"), comparePath(filepath.Join("out", "clip.mp4"), "naive"))
	assert.Equal(t, "deep_clip.mp4", comparePath("clip.mp4", "deep"))
}

func TestPrintRates(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRates(&buf, port.VideoProbe{FrameCount: 31, FPS: 30, Duration: 1}, 0))
	out := buf.String()
	assert.Contains(t, out, "passes")
	assert.Contains(t, out, "61")
	assert.Contains(t, out, "241")
	assert.NotContains(t, out, "481")
}

func TestWritePairSkipsUnavailableStrategy(t *testing.T) {
	dir := t.TempDir()
	seq := entity.NewSequence([]*entity.Frame{
		entity.SolidFrame(4, 2, 0, 0, 0),
		entity.SolidFrame(4, 2, 100, 50, 11),
	})
	strategies := interpolation.Strategies{
		entity.StrategyNaive: average.New(),
		entity.StrategyDeep:  convnet.New(convnet.Config{}),
	}

	require.NoError(t, writePair(&options{pair: 0, out: dir}, seq, strategies, zap.NewNop()))

	f, err := os.Open(filepath.Join(dir, "pair_0_naive.png"))
	require.NoError(t, err)
	defer f.Close()
	mid, err := imaging.DecodePNG(f)
	require.NoError(t, err)
	assert.True(t, mid.Equal(entity.SolidFrame(4, 2, 50, 25, 6)))

	_, err = os.Stat(filepath.Join(dir, "pair_0_deep.png"))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, writePair(&options{pair: 1, out: dir}, seq, strategies, zap.NewNop()))
}
