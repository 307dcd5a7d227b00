package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Core.CacheCapacity != DefaultConfig().Core.CacheCapacity {
		t.Errorf("CacheCapacity = %d, want default", cfg.Core.CacheCapacity)
	}
}

func TestRepoConfigOverridesGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := t.TempDir()

	global := DefaultConfig()
	global.Backup.CaseInsensitive = true
	global.Core.CacheCapacity = 16
	if err := SaveGlobalConfig(global); err != nil {
		t.Fatalf("SaveGlobalConfig: %v", err)
	}

	repo := DefaultConfig()
	repo.Core.CacheCapacity = 64
	if err := SaveRepoConfig(dir, repo); err != nil {
		t.Fatalf("SaveRepoConfig: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Backup.CaseInsensitive {
		t.Error("global setting should carry through when the repo config doesn't override it")
	}
	if cfg.Core.CacheCapacity != 64 {
		t.Errorf("CacheCapacity = %d, want repo override 64", cfg.Core.CacheCapacity)
	}

	if _, err := os.Stat(filepath.Join(dir, "config")); err != nil {
		t.Errorf("repo config file not written: %v", err)
	}
}

func TestGetSetValue(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := t.TempDir()

	if err := SetValue(dir, "backup.case_insensitive", "true", false); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	got, err := GetValue(dir, "backup.case_insensitive")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got != "true" {
		t.Errorf("GetValue = %q, want true", got)
	}

	if err := SetValue(dir, "core.cache_capacity", "128", true); err != nil {
		t.Fatalf("SetValue global: %v", err)
	}
	got, err = GetValue(dir, "core.cache_capacity")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got != "128" {
		t.Errorf("GetValue = %q, want 128", got)
	}
}

func TestSetValueUnknownKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := t.TempDir()

	if err := SetValue(dir, "nope", "x", false); err == nil {
		t.Error("expected an error for a key with no section separator")
	}
	if err := SetValue(dir, "backup.nonsense", "x", false); err == nil {
		t.Error("expected an error for an unknown field")
	}
}
