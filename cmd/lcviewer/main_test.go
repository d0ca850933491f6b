package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lcviewer/internal/export"
	"github.com/banshee-data/lcviewer/internal/fixtures"
	"github.com/banshee-data/lcviewer/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	assert.Contains(t, out.String(), "lcviewer dev")
}

func TestRun_HelpAndUnknown(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"help"}, &out))
	assert.Contains(t, out.String(), "Commands:")

	out.Reset()
	err := run([]string{"frobnicate"}, &out)
	assert.ErrorContains(t, err, "unknown command")
	assert.Contains(t, out.String(), "Usage:")
}

func TestRun_Migrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	var out bytes.Buffer
	require.NoError(t, run([]string{"migrate", "-db", path, "up"}, &out))
	assert.Contains(t, out.String(), "Current version: 2")
}

func TestParseServeFlags(t *testing.T) {
	opts, err := parseServeFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", opts.Listen)
	assert.Equal(t, defaultDBPath, opts.DBPath)
	assert.Empty(t, opts.CatalogPath)
	assert.False(t, opts.Dev)
	assert.False(t, opts.NoDebug)

	opts, err = parseServeFlags([]string{"-listen", ":9090", "-dev", "-catalog", "dp1.db", "-butler-url", "http://butler"})
	require.NoError(t, err)
	assert.Equal(t, ":9090", opts.Listen)
	assert.True(t, opts.Dev)
	assert.Equal(t, "dp1.db", opts.CatalogPath)
	assert.Equal(t, "http://butler", opts.ButlerURL)

	_, err = parseServeFlags([]string{"-listen", ""})
	assert.Error(t, err)
	_, err = parseServeFlags([]string{"extra"})
	assert.Error(t, err)
	_, err = parseServeFlags([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestParseExportFlags(t *testing.T) {
	opts, err := parseExportFlags([]string{"-object", "42", "-out", "out", "-rows", "0, 3,5"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), opts.ObjectID)
	assert.Equal(t, []int{0, 3, 5}, opts.Rows)

	tests := map[string][]string{
		"no out":    {"-object", "42"},
		"no object": {"-out", "out"},
		"bad rows":  {"-object", "42", "-out", "out", "-rows", "1,x"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseExportFlags(args)
			assert.Error(t, err)
		})
	}

	opts, err = parseExportFlags([]string{"-dev", "-out", "out"})
	require.NoError(t, err)
	assert.Nil(t, opts.Rows)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"image_size": 50, "instrument": "LATISS", "butler_timeout": "3s"}`), 0o644))

	o := commonOptions{ConfigPath: path, Instrument: "LSSTCam", KeepFlagged: true}
	cfg, err := o.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.GetImageSize())
	assert.Equal(t, "LSSTCam", cfg.GetInstrument())
	assert.False(t, cfg.GetFilterFlags())
	assert.Equal(t, 3*time.Second, cfg.GetButlerTimeout())

	o = commonOptions{ConfigPath: filepath.Join(t.TempDir(), "absent.json")}
	_, err = o.loadConfig()
	assert.Error(t, err)
}

func TestRun_ExportDev(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "small.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"render_dpi": 20, "image_size": 40}`), 0o644))
	outDir := filepath.Join(dir, "out")

	var out bytes.Buffer
	err := run([]string{"export", "-dev", "-db", filepath.Join(dir, "dev.db"), "-config", cfgPath,
		"-out", outDir, "-rows", "0,1"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "exported 2 rows")

	raw, err := os.ReadFile(filepath.Join(outDir, export.ManifestName))
	require.NoError(t, err)
	var m export.Manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, int64(fixtures.DefaultObjectID), m.ObjectID)
	require.Len(t, m.Rows, 2)
	for _, row := range m.Rows {
		if row.Image != "" {
			_, err := os.Stat(filepath.Join(outDir, row.Image))
			assert.NoError(t, err)
		}
	}
}
