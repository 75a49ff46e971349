package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.conf")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	path := writeTempConfig(t, "# comment\nLAT=42.5\nLON=-71.0\nTCP_PORT=0\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Lat != 42.5 || cfg.Lon != -71.0 {
		t.Errorf("lat/lon = %v,%v", cfg.Lat, cfg.Lon)
	}
	if cfg.UDPPort != 10110 {
		t.Errorf("UDPPort default not applied, got %d", cfg.UDPPort)
	}
	if cfg.TCPPort != 0 {
		t.Errorf("TCPPort override not applied, got %d", cfg.TCPPort)
	}
}

func TestLoadRejectsBadLatitude(t *testing.T) {
	path := writeTempConfig(t, "LAT=120\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for out-of-range LAT")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeTempConfig(t, "NOT_A_KEY=1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown config key")
	}
}

func TestValidateRejectsContradictoryGPXAnchors(t *testing.T) {
	cfg := Defaults()
	offset := 10.0
	frac := 0.5
	cfg.GPXOffsetS = &offset
	cfg.GPXStartFraction = &frac
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for mutually exclusive GPX anchors")
	}
}

func TestInitGlobalOnlyLoadsOnce(t *testing.T) {
	globalConfig = nil
	configOnce = sync.Once{}
	path := writeTempConfig(t, "LAT=10\n")
	if err := InitGlobal(path); err != nil {
		t.Fatalf("InitGlobal: %v", err)
	}
	if Get().Lat != 10 {
		t.Fatalf("Get().Lat = %v, want 10", Get().Lat)
	}
	// A second InitGlobal with a different file must not reload.
	path2 := writeTempConfig(t, "LAT=20\n")
	_ = InitGlobal(path2)
	if Get().Lat != 10 {
		t.Fatalf("InitGlobal reloaded on second call: Lat = %v", Get().Lat)
	}
}
