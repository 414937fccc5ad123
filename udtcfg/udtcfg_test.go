package udtcfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFallsBackToDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.MaxPacketSize != 1500 {
		t.Errorf("MaxPacketSize = %d, want 1500", cfg.MaxPacketSize)
	}
	if cfg.LingerTime != 180*time.Second {
		t.Errorf("LingerTime = %s, want 180s", cfg.LingerTime)
	}
}

func TestLoadOverridesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "MaxPacketSize: 9000\nRendezvous: true\nSendBufferSize: 4096\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("writing test config: %s", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.MaxPacketSize != 9000 {
		t.Errorf("MaxPacketSize = %d, want 9000", cfg.MaxPacketSize)
	}
	if !cfg.Rendezvous {
		t.Error("Rendezvous = false, want true")
	}
	if cfg.SendBufferSize != 4096 {
		t.Errorf("SendBufferSize = %d, want 4096", cfg.SendBufferSize)
	}
}

func TestLoadEmptyFileFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("writing empty config: %s", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.MaxFlowWinSize != 64 {
		t.Errorf("MaxFlowWinSize = %d, want 64", cfg.MaxFlowWinSize)
	}
}
