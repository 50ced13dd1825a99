package crypto

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "wallet", "platform.json")

	if err := SaveToKeystore(path, key, "hunter2"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("keystore permissions = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromKeystore(path, "hunter2")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.PubKey().Address().String() != key.PubKey().Address().String() {
		t.Fatal("loaded key derives a different address")
	}
}

func TestKeystoreRejectsWrongPassphrase(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "platform.json")
	if err := SaveToKeystore(path, key, "correct"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatal("wrong passphrase accepted")
	}
}

func TestSaveToKeystoreValidation(t *testing.T) {
	if err := SaveToKeystore(filepath.Join(t.TempDir(), "k.json"), nil, ""); !errors.Is(err, ErrNoKey) {
		t.Fatalf("err = %v, want ErrNoKey", err)
	}
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	if err := SaveToKeystore("", key, ""); err == nil {
		t.Fatal("empty path accepted")
	}
}
