package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.fusion/internal/config"
	"github.com/banshee-data/motion.fusion/internal/fsutil"
	"github.com/banshee-data/motion.fusion/internal/ingest"
	"github.com/banshee-data/motion.fusion/internal/testutil"
	"github.com/banshee-data/motion.fusion/internal/timeutil"
	"github.com/banshee-data/motion.fusion/internal/units"
)

const replayLines = `{"source":"motion","timestamp":"2026-03-01T12:00:00Z","acceleration":{"x":0.1,"y":0,"z":9.8}}
not json
{"source":"orientation","timestamp":"2026-03-01T12:00:00.1Z","alpha":90,"beta":0,"gamma":5}
`

type sink struct {
	mu       sync.Mutex
	readings []ingest.Reading
}

func (s *sink) Submit(r ingest.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
}

func (s *sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, ":8080", *listen)
	assert.Equal(t, "serial", *sourceKind)
	assert.Equal(t, "fusion.db", *dbPath)
	assert.Equal(t, units.MPS, *speedUnits)
	assert.True(t, *paced)
	assert.False(t, *autoListen)
	assert.False(t, *devMode)
}

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name    string
		opts    inputOptions
		units   string
		wantErr bool
	}{
		{"serial", inputOptions{Kind: "serial"}, units.MPS, false},
		{"dev without input", inputOptions{Kind: "serial", Dev: true}, units.MPS, true},
		{"dev with input", inputOptions{Kind: "serial", Dev: true, File: "x.jsonl"}, units.KMPH, false},
		{"replay without input", inputOptions{Kind: "replay"}, units.MPS, true},
		{"pcap", inputOptions{Kind: "pcap", File: "x.pcap", UDPPort: 2368}, units.MPS, false},
		{"bad udp port", inputOptions{Kind: "pcap", File: "x.pcap", UDPPort: 70000}, units.MPS, true},
		{"mqtt", inputOptions{Kind: "mqtt"}, units.MPH, false},
		{"unknown source", inputOptions{Kind: "bluetooth"}, units.MPS, true},
		{"bad units", inputOptions{Kind: "serial"}, "furlongs", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFlags(tt.opts, tt.units)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("", fsutil.NewMemoryFileSystem())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultFusionConfig().GetRefreshRateHz(), cfg.GetRefreshRateHz())

	path := filepath.Join(t.TempDir(), "fusion.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"refresh_rate_hz": 20}`), 0o644))
	cfg, err = loadConfig(path, fsutil.OSFileSystem{})
	require.NoError(t, err)
	assert.Equal(t, 20.0, cfg.GetRefreshRateHz())

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"), fsutil.OSFileSystem{})
	assert.Error(t, err)
}

func TestOpenInput_Replay(t *testing.T) {
	testutil.MuteLogs(t)
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("/data/run.jsonl", []byte(replayLines))

	in, err := openInput(inputOptions{Kind: "replay", File: "/data/run.jsonl"}, config.DefaultFusionConfig(), fsys, timeutil.RealClock{})
	require.NoError(t, err)
	defer in.Close()
	assert.Nil(t, in.mux)

	s := &sink{}
	require.NoError(t, in.runner.Run(context.Background(), s))
	assert.Equal(t, 2, s.Len())
}

func TestOpenInput_MissingFile(t *testing.T) {
	_, err := openInput(inputOptions{Kind: "pcap", File: "/nope.pcap"}, config.DefaultFusionConfig(), fsutil.NewMemoryFileSystem(), timeutil.RealClock{})
	assert.Error(t, err)
}

func TestOpenInput_MQTTNeedsBroker(t *testing.T) {
	_, err := openInput(inputOptions{Kind: "mqtt"}, config.DefaultFusionConfig(), fsutil.NewMemoryFileSystem(), timeutil.RealClock{})
	assert.ErrorContains(t, err, "broker")
}

func TestOpenInput_SerialDevMode(t *testing.T) {
	testutil.MuteLogs(t)
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("/data/run.jsonl", []byte(replayLines))

	in, err := openInput(inputOptions{Kind: "serial", Dev: true, File: "/data/run.jsonl"}, config.DefaultFusionConfig(), fsys, timeutil.RealClock{})
	require.NoError(t, err)
	defer in.Close()
	require.NotNil(t, in.mux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &sink{}
	done := make(chan error, 1)
	go func() { done <- in.runner.Run(ctx, s) }()

	// the source subscribes before the monitor starts reading
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, in.mux.Monitor(ctx))
	assert.Eventually(t, func() bool { return s.Len() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
