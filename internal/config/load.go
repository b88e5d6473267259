package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/logging"
)

// Load reads path and decodes it over top of Default(), so missing keys
// keep their default value (§6: "missing keys take defaults"). Unknown
// keys are logged once at WARN and otherwise ignored. A missing file is
// not an error: Default() is returned as-is.
func Load(path string, logger logging.Logger) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 && logger != nil {
		logger.Warn("config file contains unrecognized keys", "keys", undecoded, "path", path)
	}
	return cfg, nil
}

// Save writes cfg to path atomically: encode to path+".tmp", fsync, then
// rename over path (§6: "Saving is idempotent and atomic").
func Save(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp config %s: %w", tmpPath, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync temp config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp config over %s: %w", path, err)
	}
	return nil
}
