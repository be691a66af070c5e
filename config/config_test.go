package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadHubDefaults(t *testing.T) {
	cfg, err := LoadHub("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Grace() != 2*time.Second || cfg.HelloDuration() != 2*time.Second {
		t.Errorf("unexpected default timings: grace=%v hello=%v", cfg.Grace(), cfg.HelloDuration())
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("default http addr = %q", cfg.HTTPAddr)
	}
}

func TestLoadHubOverrides(t *testing.T) {
	path := writeFile(t, "device_id: hub-1\ngrace_ms: 500\nannounce: true\n")
	cfg, err := LoadHub(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DeviceID != "hub-1" {
		t.Errorf("device_id = %q, want hub-1", cfg.DeviceID)
	}
	if cfg.Grace() != 500*time.Millisecond {
		t.Errorf("grace = %v, want 500ms", cfg.Grace())
	}
	if !cfg.Announce {
		t.Error("announce not set")
	}
	// Untouched fields keep defaults.
	if cfg.HelloDurationMS != 2000 {
		t.Errorf("hello_duration_ms = %d, want default 2000", cfg.HelloDurationMS)
	}
}

func TestLoadNodeDefaults(t *testing.T) {
	cfg, err := LoadNode("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UnpairedAdv() != 2*time.Second || cfg.UnpairedScan() != 8*time.Second {
		t.Errorf("unpaired cycle timings: adv=%v scan=%v", cfg.UnpairedAdv(), cfg.UnpairedScan())
	}
	if cfg.ReportAdv() != 500*time.Millisecond || cfg.CommandScan() != 3*time.Second {
		t.Errorf("paired cycle timings: report=%v scan=%v", cfg.ReportAdv(), cfg.CommandScan())
	}
	if cfg.CollectCapacity != 4 {
		t.Errorf("collect_capacity = %d, want 4", cfg.CollectCapacity)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadHub("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeFile(t, "grace_ms: [not a number\n")
	if _, err := LoadNode(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
