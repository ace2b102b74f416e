package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: sourcewatch\n"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Fetch.Timeout != 10*time.Second {
		t.Fatalf("fetch timeout default wrong: %v", cfg.Fetch.Timeout)
	}
	if cfg.Render.MaxLen != 3500 || cfg.Render.ContextLines != 3 {
		t.Fatalf("render defaults wrong: %#v", cfg.Render)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("logging default wrong: %#v", cfg.Logging)
	}
}

func TestLoadMonitorDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
monitors:
  - name: carriers
    kind: setdiff
    sources:
      - key: main
        url: https://example.com/carriers.json
  - name: prices
    kind: price
    sources:
      - key: store
        url: https://example.com/prices.json
`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	carriers := cfg.Monitors[0]
	if carriers.Interval != 30*time.Minute {
		t.Fatalf("interval default wrong: %v", carriers.Interval)
	}
	if carriers.KeyBy != "id" {
		t.Fatalf("key_by default wrong: %q", carriers.KeyBy)
	}

	prices := cfg.Monitors[1]
	if prices.Tolerance != 500 {
		t.Fatalf("tolerance default wrong: %v", prices.Tolerance)
	}
	if prices.GracePeriod != 12*time.Hour {
		t.Fatalf("grace period default wrong: %v", prices.GracePeriod)
	}
}

func TestLoadDurationStrings(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
fetch:
  timeout: 3s
monitors:
  - name: prices
    kind: price
    interval: 15m
    grace_period: 6h
    sources:
      - key: store
        url: https://example.com/prices.json
`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Fetch.Timeout != 3*time.Second {
		t.Fatalf("timeout not decoded: %v", cfg.Fetch.Timeout)
	}
	if cfg.Monitors[0].Interval != 15*time.Minute || cfg.Monitors[0].GracePeriod != 6*time.Hour {
		t.Fatalf("durations not decoded: %#v", cfg.Monitors[0])
	}
}

func TestValidateRejectsDuplicateMonitors(t *testing.T) {
	_, err := Load(writeConfig(t, `
monitors:
  - name: same
    kind: setdiff
    sources: [{key: a, url: "https://example.com/a"}]
  - name: same
    kind: setdiff
    sources: [{key: b, url: "https://example.com/b"}]
`))
	if err == nil {
		t.Fatal("duplicate monitor names must be rejected")
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	_, err := Load(writeConfig(t, `
monitors:
  - name: broken
    kind: nonsense
    sources: [{key: a, url: "https://example.com/a"}]
`))
	if err == nil {
		t.Fatal("unknown kinds must be rejected")
	}
}

func TestValidateOnchainNeedsRPC(t *testing.T) {
	_, err := Load(writeConfig(t, `
monitors:
  - name: rate
    kind: onchain
    contract: "0x9d39a5de30e57443bff2a8307a4256c8797a3497"
`))
	if err == nil {
		t.Fatal("onchain kind without ethereum.rpc_url must be rejected")
	}
}

func TestValidateTelegramRequiresCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, `
telegram:
  enabled: true
`))
	if err == nil {
		t.Fatal("enabled telegram without credentials must be rejected")
	}
}

func TestValidateSourcelessMonitor(t *testing.T) {
	_, err := Load(writeConfig(t, `
monitors:
  - name: empty
    kind: setdiff
`))
	if err == nil {
		t.Fatal("a monitor without sources must be rejected")
	}
}
