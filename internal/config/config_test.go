package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalTOML = `
mode = "monitor"
log_level = "debug"

[[chains]]
id = 84532
name = "base-sepolia"
rpc_url = "https://sepolia.base.org"
vault_address = "0x4444444444444444444444444444444444444444"

  [[chains.protocols]]
  id = 1
  name = "aave-v3"
  kind = "lending-pool"
  adapter_address = "0x1111111111111111111111111111111111111111"
  asset_address = "0x3333333333333333333333333333333333333333"

[engine]
min_gain_bps = 75
cycle_interval = "10m"

[server]
enabled = false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "monitor" || cfg.LogLevel != "debug" {
		t.Fatalf("file values not applied: mode=%q level=%q", cfg.Mode, cfg.LogLevel)
	}
	if cfg.Engine.MinGainBps != 75 {
		t.Fatalf("min_gain_bps = %d, want 75", cfg.Engine.MinGainBps)
	}
	if cfg.Engine.CycleInterval.Duration != 10*time.Minute {
		t.Fatalf("cycle_interval = %s, want 10m", cfg.Engine.CycleInterval.Duration)
	}

	// Untouched fields keep their defaults.
	if cfg.Engine.ProjectionDays != 30 {
		t.Fatalf("projection_days default lost: %d", cfg.Engine.ProjectionDays)
	}
	if cfg.Postgres.Port != 5432 || cfg.Redis.Addr != "localhost:6379" {
		t.Fatal("storage defaults lost")
	}
	if cfg.Engine.CooldownTTL.Duration != time.Hour {
		t.Fatalf("cooldown_ttl default lost: %s", cfg.Engine.CooldownTTL.Duration)
	}

	if len(cfg.Chains) != 1 || len(cfg.Chains[0].Protocols) != 1 {
		t.Fatalf("chain table not decoded: %+v", cfg.Chains)
	}
	if cfg.Chains[0].Protocols[0].Kind != "lending-pool" {
		t.Fatalf("protocol kind = %q", cfg.Chains[0].Protocols[0].Kind)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("CHAMBOT_MODE", "events")
	t.Setenv("CHAMBOT_ENGINE_MIN_GAIN_BPS", "120")
	t.Setenv("CHAMBOT_ENGINE_CYCLE_INTERVAL", "3m")
	t.Setenv("CHAMBOT_POSTGRES_PASSWORD", "sekrit")
	t.Setenv("CHAMBOT_S3_ENABLED", "true")
	t.Setenv("CHAMBOT_ENGINE_USERS", " 0xaa, 0xbb ,")
	t.Setenv("CHAMBOT_SERVER_API_KEY", "k-123")

	cfg, err := Load(writeConfig(t, minimalTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "events" {
		t.Fatalf("mode = %q, want env override", cfg.Mode)
	}
	if cfg.Engine.MinGainBps != 120 {
		t.Fatalf("min_gain_bps = %d, want 120", cfg.Engine.MinGainBps)
	}
	if cfg.Engine.CycleInterval.Duration != 3*time.Minute {
		t.Fatalf("cycle_interval = %s, want 3m", cfg.Engine.CycleInterval.Duration)
	}
	if cfg.Postgres.Password != "sekrit" || !cfg.S3.Enabled || cfg.Server.APIKey != "k-123" {
		t.Fatal("scalar env overrides not applied")
	}
	if len(cfg.Engine.Users) != 2 || cfg.Engine.Users[0] != "0xaa" || cfg.Engine.Users[1] != "0xbb" {
		t.Fatalf("users list not parsed from env: %v", cfg.Engine.Users)
	}
}

func TestValidateAcceptsLoadedConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "sideways"
	cfg.LogLevel = "loud"
	cfg.Engine.MinGainBps = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{
		`unknown mode "sideways"`,
		`unknown log_level "loud"`,
		"at least one chain",
		"min_gain_bps must be > 0",
		"redis: addr must not be empty",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateWriterModesRequireKeySource(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Mode = "run"

	verr := cfg.Validate()
	if verr == nil {
		t.Fatal("expected failure without automation credentials")
	}
	if !strings.Contains(verr.Error(), "automation: address must be set") {
		t.Fatalf("missing automation address error:\n%v", verr)
	}

	cfg.Automation.Address = "0x0000000000000000000000000000000000000042"
	cfg.Automation.EncryptedKeyPath = "/etc/chambot/operator.key.json"
	verr = cfg.Validate()
	if verr == nil || !strings.Contains(verr.Error(), "key_password is required") {
		t.Fatalf("expected key_password requirement, got %v", verr)
	}

	cfg.Automation.KeyPassword = "pw"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsBadProtocolKind(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalTOML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Chains[0].Protocols[0].Kind = "perps"

	verr := cfg.Validate()
	if verr == nil || !strings.Contains(verr.Error(), `unknown kind "perps"`) {
		t.Fatalf("expected kind error, got %v", verr)
	}
}

func TestDurationTOMLRoundTrip(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Fatalf("parsed %s, want 90s", d.Duration)
	}
	out, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(out) != "1m30s" {
		t.Fatalf("marshalled %q", out)
	}
}
