/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the per-user YAML configuration, applies environment
// overrides and reads secrets from the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// StorageConfig selects where the workspace is persisted.
type StorageConfig struct {
	Backend string `yaml:"backend" validate:"oneof=file sqlite postgres"`
	// Path is the data directory for the file and sqlite backends.
	Path string `yaml:"path" validate:"required_unless=Backend postgres"`
	// DSN is the postgres connection string, without the password.
	DSN string `yaml:"dsn" validate:"required_if=Backend postgres"`
	// Key is the record the workspace is stored under.
	Key string `yaml:"key" validate:"required"`
	// Snapshots is how many history rows the sqlite backend keeps per key.
	Snapshots int `yaml:"snapshots" validate:"gte=0"`
	// Password is read from the keyring or the environment, never from disk.
	Password string `yaml:"-"`
}

// ExportConfig controls rendering and export output.
type ExportConfig struct {
	RasterWidth      int    `yaml:"raster_width" validate:"gt=0"`
	RasterHeight     int    `yaml:"raster_height" validate:"gt=0"`
	PrintRasterWidth int    `yaml:"print_raster_width" validate:"gt=0"`
	RenderTimeoutMs  int    `yaml:"render_timeout_ms" validate:"gt=0"`
	FontFile         string `yaml:"font_file" validate:"omitempty,file"`
	OutDir           string `yaml:"out_dir"`
}

// HistoryConfig bounds the undo history.
type HistoryConfig struct {
	MaxBytes   int `yaml:"max_bytes" validate:"gte=0"`
	Depth      int `yaml:"depth" validate:"gte=0"`
	CoalesceMs int `yaml:"coalesce_ms" validate:"gte=0"`
}

// InboxConfig configures the drop folder watcher.
type InboxConfig struct {
	DebounceMs int `yaml:"debounce_ms" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the user-editable configuration. Environment variables are
// read-only overrides applied at load time.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Storage       StorageConfig `yaml:"storage"`
	Export        ExportConfig  `yaml:"export"`
	History       HistoryConfig `yaml:"history"`
	Inbox         InboxConfig   `yaml:"inbox"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Storage:       StorageConfig{Backend: BackendFile, Path: DataDir(), Key: "state", Snapshots: 20},
		Export: ExportConfig{
			RasterWidth:      1500,
			RasterHeight:     2100,
			PrintRasterWidth: 600,
			RenderTimeoutMs:  2000,
			OutDir:           "exports",
		},
		History: HistoryConfig{MaxBytes: 16 * 1024 * 1024, Depth: 100, CoalesceMs: 250},
		Inbox:   InboxConfig{DebounceMs: 300},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvBackend         = "SPELLCARDS_BACKEND"
	EnvDataDir         = "SPELLCARDS_DATA_DIR"
	EnvPostgresDSN     = "SPELLCARDS_PG_DSN"
	EnvPostgresPass    = "SPELLCARDS_PG_PASSWORD"
	EnvRenderTimeoutMs = "SPELLCARDS_RENDER_TIMEOUT_MS"
	EnvFontFile        = "SPELLCARDS_FONT"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SPELLCARDS_LOG_LEVEL"
	EnvLogFormat = "SPELLCARDS_LOG_FORMAT"
	EnvLogSource = "SPELLCARDS_LOG_SOURCE"
	EnvLogFile   = "SPELLCARDS_LOG_FILE"
)

func baseDir() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(base, "SpellCards")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "SpellCards")
	default:
		return filepath.Join(os.Getenv("HOME"), ".config", "spellcards")
	}
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	base := baseDir()
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir is the default directory for persisted workspaces.
func DataDir() string { return filepath.Join(baseDir(), "data") }

// Load reads the config file at path (the per-user path when empty),
// applies defaults, environment overrides and the keyring password, then
// validates the result. A missing file is not an error.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if pw, err := StoragePassword(); err == nil {
		cfg.Storage.Password = pw
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path (the per-user path when empty). The
// storage password goes to the keyring when set.
func Save(path string, cfg AppConfig) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if cfg.Storage.Password != "" {
		if err := SetStoragePassword(cfg.Storage.Password); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// storage
	if v := strings.ToLower(strings.TrimSpace(src.Storage.Backend)); v != "" {
		dst.Storage.Backend = v
	}
	if v := strings.TrimSpace(src.Storage.Path); v != "" {
		dst.Storage.Path = v
	}
	if v := strings.TrimSpace(src.Storage.DSN); v != "" {
		dst.Storage.DSN = v
	}
	if v := strings.TrimSpace(src.Storage.Key); v != "" {
		dst.Storage.Key = v
	}
	if src.Storage.Snapshots != 0 {
		dst.Storage.Snapshots = src.Storage.Snapshots
	}
	// export
	if src.Export.RasterWidth != 0 {
		dst.Export.RasterWidth = src.Export.RasterWidth
	}
	if src.Export.RasterHeight != 0 {
		dst.Export.RasterHeight = src.Export.RasterHeight
	}
	if src.Export.PrintRasterWidth != 0 {
		dst.Export.PrintRasterWidth = src.Export.PrintRasterWidth
	}
	if src.Export.RenderTimeoutMs != 0 {
		dst.Export.RenderTimeoutMs = src.Export.RenderTimeoutMs
	}
	if v := strings.TrimSpace(src.Export.FontFile); v != "" {
		dst.Export.FontFile = v
	}
	if v := strings.TrimSpace(src.Export.OutDir); v != "" {
		dst.Export.OutDir = v
	}
	// history
	if src.History.MaxBytes != 0 {
		dst.History.MaxBytes = src.History.MaxBytes
	}
	if src.History.Depth != 0 {
		dst.History.Depth = src.History.Depth
	}
	if src.History.CoalesceMs != 0 {
		dst.History.CoalesceMs = src.History.CoalesceMs
	}
	if src.Inbox.DebounceMs != 0 {
		dst.Inbox.DebounceMs = src.Inbox.DebounceMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackend)); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv(EnvPostgresPass); v != "" {
		cfg.Storage.Password = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRenderTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Export.RenderTimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvFontFile)); v != "" {
		cfg.Export.FontFile = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"storage.backend":          EnvBackend,
		"storage.path":             EnvDataDir,
		"storage.dsn":              EnvPostgresDSN,
		"storage.password":         EnvPostgresPass,
		"export.render_timeout_ms": EnvRenderTimeoutMs,
		"export.font_file":         EnvFontFile,
		"logging.level":            EnvLogLevel,
		"logging.format":           EnvLogFormat,
		"logging.source":           EnvLogSource,
		"logging.file":             EnvLogFile,
	}
	if env, ok := names[key]; ok && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// RenderTimeout is the bounded wait for a preview render.
func (e ExportConfig) RenderTimeout() time.Duration {
	if e.RenderTimeoutMs <= 0 {
		return time.Duration(Defaults().Export.RenderTimeoutMs) * time.Millisecond
	}
	return time.Duration(e.RenderTimeoutMs) * time.Millisecond
}

// Coalesce is the window in which consecutive edits share one undo step.
func (h HistoryConfig) Coalesce() time.Duration {
	return time.Duration(h.CoalesceMs) * time.Millisecond
}

// Debounce is the quiet period before the inbox imports new files.
func (i InboxConfig) Debounce() time.Duration {
	return time.Duration(i.DebounceMs) * time.Millisecond
}
