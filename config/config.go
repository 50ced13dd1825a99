package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"expnet/crypto"

	"github.com/BurntSushi/toml"
)

const maxFeeBps = 10_000

type Config struct {
	RPCAddress           string `toml:"RPCAddress"`
	MetricsAddress       string `toml:"MetricsAddress"`
	DataDir              string `toml:"DataDir"`
	EventJournalPath     string `toml:"EventJournalPath"`
	ReceiptArchivePath   string `toml:"ReceiptArchivePath"`
	NetworkName          string `toml:"NetworkName"`
	Environment          string `toml:"Environment"`
	LogFile              string `toml:"LogFile"`
	PlatformWallet       string `toml:"PlatformWallet"`
	PlatformFeeBps       uint32 `toml:"PlatformFeeBps"`
	PlatformKeystorePath string `toml:"PlatformKeystorePath"`
}

// Load loads the configuration from the given path, creating a default file
// (and platform keystore) on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.PlatformWallet) == "" {
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the settlement core cannot honour.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if cfg.PlatformFeeBps > maxFeeBps {
		return fmt.Errorf("config: PlatformFeeBps %d exceeds %d", cfg.PlatformFeeBps, maxFeeBps)
	}
	wallet := strings.TrimSpace(cfg.PlatformWallet)
	if wallet == "" {
		return fmt.Errorf("config: PlatformWallet is required")
	}
	if _, err := crypto.DecodeAddress(wallet); err != nil {
		return fmt.Errorf("config: invalid PlatformWallet: %w", err)
	}
	return nil
}

// PlatformWalletBytes decodes the configured platform wallet address.
func (c *Config) PlatformWalletBytes() ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(c.PlatformWallet))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "expnet-local"
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9091"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./expnet-data"
	}
	if strings.TrimSpace(cfg.EventJournalPath) == "" {
		cfg.EventJournalPath = filepath.Join(cfg.DataDir, "events.db")
	}
	if strings.TrimSpace(cfg.ReceiptArchivePath) == "" {
		cfg.ReceiptArchivePath = filepath.Join(cfg.DataDir, "receipts.db")
	}
}

// ensureKeystore generates a platform key when no wallet is configured and
// fills the wallet field from the derived address.
func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.PlatformKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
		cfg.PlatformWallet = key.PubKey().Address().String()
	} else if err != nil {
		return err
	} else {
		key, loadErr := crypto.LoadFromKeystore(keystorePath, "")
		if loadErr != nil {
			return loadErr
		}
		cfg.PlatformWallet = key.PubKey().Address().String()
	}

	cfg.PlatformKeystorePath = keystorePath
	return persist(configPath, cfg)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:           ":8080",
		MetricsAddress:       ":9091",
		DataDir:              "./expnet-data",
		NetworkName:          "expnet-local",
		Environment:          "local",
		PlatformWallet:       key.PubKey().Address().String(),
		PlatformFeeBps:       500,
		PlatformKeystorePath: keystorePath,
	}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "platform.keystore")
}
