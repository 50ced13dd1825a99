package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultConfigAndKeystore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.PlatformWallet == "" {
		t.Fatal("platform wallet not generated")
	}
	if _, err := cfg.PlatformWalletBytes(); err != nil {
		t.Fatalf("generated wallet does not decode: %v", err)
	}
	if cfg.PlatformFeeBps != 500 {
		t.Fatalf("default fee = %d, want 500", cfg.PlatformFeeBps)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := os.Stat(cfg.PlatformKeystorePath); err != nil {
		t.Fatalf("keystore not written: %v", err)
	}

	// A second load reuses the persisted wallet.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.PlatformWallet != cfg.PlatformWallet {
		t.Fatal("reload generated a different wallet")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `PlatformWallet = ""
PlatformFeeBps = 250
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RPCAddress == "" || cfg.DataDir == "" || cfg.EventJournalPath == "" || cfg.ReceiptArchivePath == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.PlatformWallet == "" {
		t.Fatal("missing wallet was not bootstrapped from a keystore")
	}
	if cfg.PlatformFeeBps != 250 {
		t.Fatalf("fee = %d, want 250", cfg.PlatformFeeBps)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("nil config accepted")
	}
	if err := Validate(&Config{PlatformWallet: "xp1...", PlatformFeeBps: 10_001}); err == nil {
		t.Fatal("fee above denominator accepted")
	}
	if err := Validate(&Config{PlatformWallet: "", PlatformFeeBps: 500}); err == nil {
		t.Fatal("empty wallet accepted")
	}
	if err := Validate(&Config{PlatformWallet: "not-an-address", PlatformFeeBps: 500}); err == nil {
		t.Fatal("malformed wallet accepted")
	}
}
