// Package config loads and saves casbak's JSON configuration, merging a
// global (per-user) file with a per-repository override the same way
// git's config layering works: repository settings win.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the settings that shape how a Filesystem is constructed
// and how the CLI talks to its backup directory.
type Config struct {
	Backup BackupConfig `json:"backup"`
	Core   CoreConfig   `json:"core"`
}

// BackupConfig controls the directory-tree semantics SPEC_FULL.md leaves
// as policy choices: name comparison and the on-disk directory format.
type BackupConfig struct {
	CaseInsensitive bool   `json:"case_insensitive"`
	Format          string `json:"format"` // "" selects the default JSON codec
}

// CoreConfig holds settings ambient to any backup run.
type CoreConfig struct {
	CacheCapacity int    `json:"cache_capacity"`
	Editor        string `json:"editor,omitempty"`
	Pager         string `json:"pager,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backup: BackupConfig{
			CaseInsensitive: false,
			Format:          "",
		},
		Core: CoreConfig{
			CacheCapacity: 32,
			Editor:        os.Getenv("EDITOR"),
			Pager:         os.Getenv("PAGER"),
		},
	}
}

// globalConfigPath returns the path to the per-user config file.
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".casbakconfig"), nil
}

// repoConfigPath returns the path to the backup directory's config file.
func repoConfigPath(backupDir string) string {
	return filepath.Join(backupDir, "config")
}

// LoadConfig loads configuration from both the global and the
// backup-directory config files; the backup directory takes precedence.
func LoadConfig(backupDir string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath, err := globalConfigPath(); err == nil {
		if data, err := os.ReadFile(globalPath); err == nil {
			var globalCfg Config
			if err := json.Unmarshal(data, &globalCfg); err == nil {
				mergeConfig(cfg, &globalCfg)
			}
		}
	}

	if data, err := os.ReadFile(repoConfigPath(backupDir)); err == nil {
		var repoCfg Config
		if err := json.Unmarshal(data, &repoCfg); err == nil {
			mergeConfig(cfg, &repoCfg)
		}
	}

	return cfg, nil
}

// SaveGlobalConfig saves cfg to the per-user config file.
func SaveGlobalConfig(cfg *Config) error {
	globalPath, err := globalConfigPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(globalPath, data, 0644)
}

// SaveRepoConfig saves cfg to backupDir's config file.
func SaveRepoConfig(backupDir string, cfg *Config) error {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(repoConfigPath(backupDir), data, 0644)
}

// GetValue retrieves a configuration value by key ("section.field").
func GetValue(backupDir, key string) (string, error) {
	cfg, err := LoadConfig(backupDir)
	if err != nil {
		return "", err
	}

	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}

	switch section {
	case "backup":
		switch field {
		case "case_insensitive":
			return fmt.Sprintf("%t", cfg.Backup.CaseInsensitive), nil
		case "format":
			return cfg.Backup.Format, nil
		default:
			return "", fmt.Errorf("unknown backup config field: %s", field)
		}
	case "core":
		switch field {
		case "cache_capacity":
			return fmt.Sprintf("%d", cfg.Core.CacheCapacity), nil
		case "editor":
			return cfg.Core.Editor, nil
		case "pager":
			return cfg.Core.Pager, nil
		default:
			return "", fmt.Errorf("unknown core config field: %s", field)
		}
	default:
		return "", fmt.Errorf("unknown config section: %s", section)
	}
}

// SetValue sets a configuration value by key ("section.field", value),
// persisting it to either the global or the backup-directory config.
func SetValue(backupDir, key, value string, global bool) error {
	var cfg *Config
	var path string
	if global {
		p, err := globalConfigPath()
		if err != nil {
			return err
		}
		path = p
	} else {
		path = repoConfigPath(backupDir)
	}

	// Start from a zero Config rather than the defaults, so that only the
	// fields a caller actually set are non-zero in the file and the other
	// layer's settings still show through mergeConfig.
	if data, err := os.ReadFile(path); err == nil {
		cfg = &Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			cfg = &Config{}
		}
	} else {
		cfg = &Config{}
	}

	section, field, err := splitKey(key)
	if err != nil {
		return err
	}

	switch section {
	case "backup":
		switch field {
		case "case_insensitive":
			cfg.Backup.CaseInsensitive = value == "true"
		case "format":
			cfg.Backup.Format = value
		default:
			return fmt.Errorf("unknown backup config field: %s", field)
		}
	case "core":
		switch field {
		case "cache_capacity":
			var n int
			if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
				return fmt.Errorf("invalid cache_capacity %q: %w", value, err)
			}
			cfg.Core.CacheCapacity = n
		case "editor":
			cfg.Core.Editor = value
		case "pager":
			cfg.Core.Pager = value
		default:
			return fmt.Errorf("unknown core config field: %s", field)
		}
	default:
		return fmt.Errorf("unknown config section: %s", section)
	}

	if global {
		return SaveGlobalConfig(cfg)
	}
	return SaveRepoConfig(backupDir, cfg)
}

func splitKey(key string) (section, field string, err error) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid config key: %s (expected format: section.field)", key)
	}
	return parts[0], parts[1], nil
}

// mergeConfig overlays non-zero fields of src onto dst.
func mergeConfig(dst, src *Config) {
	if src.Backup.CaseInsensitive {
		dst.Backup.CaseInsensitive = true
	}
	if src.Backup.Format != "" {
		dst.Backup.Format = src.Backup.Format
	}
	if src.Core.CacheCapacity != 0 {
		dst.Core.CacheCapacity = src.Core.CacheCapacity
	}
	if src.Core.Editor != "" {
		dst.Core.Editor = src.Core.Editor
	}
	if src.Core.Pager != "" {
		dst.Core.Pager = src.Core.Pager
	}
}
