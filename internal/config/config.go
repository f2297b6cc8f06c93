/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied at load time.
// Secrets (the Postgres password) never live in the file; see Secret/SaveSecret.

type EditorConfig struct {
	HistorySize        int     `yaml:"history_size"`
	SnapThreshold      float64 `yaml:"snap_threshold"`
	GuideMargin        float64 `yaml:"guide_margin"`
	ViewportWidth      float64 `yaml:"viewport_width"`
	ViewportHeight     float64 `yaml:"viewport_height"`
	FontTimeoutMs      int     `yaml:"font_timeout_ms"`
	BatchFontTimeoutMs int     `yaml:"batch_font_timeout_ms"`
	RatioEpsilon       float64 `yaml:"ratio_epsilon"`
}

type StorageConfig struct {
	DataDir       string `yaml:"data_dir"`
	KeepRevisions int    `yaml:"keep_revisions"`
	Backend       string `yaml:"backend"` // "sqlite" | "postgres"
	PostgresDSN   string `yaml:"postgres_dsn"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Storage       StorageConfig `yaml:"storage"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor: EditorConfig{
			HistorySize:        50,
			SnapThreshold:      5,
			GuideMargin:        20,
			ViewportWidth:      1280,
			ViewportHeight:     720,
			FontTimeoutMs:      60000,
			BatchFontTimeoutMs: 10000,
			RatioEpsilon:       1e-4,
		},
		Storage: StorageConfig{KeepRevisions: 100, Backend: "sqlite"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// FontTimeout is the bounded wait of a single font change.
func (e EditorConfig) FontTimeout() time.Duration {
	return time.Duration(e.FontTimeoutMs) * time.Millisecond
}

// BatchFontTimeout is the bounded wait of a multi-object font preload.
func (e EditorConfig) BatchFontTimeout() time.Duration {
	return time.Duration(e.BatchFontTimeoutMs) * time.Millisecond
}

// Env var names used as overrides.
const (
	EnvHistorySize   = "BFG_HISTORY_SIZE"
	EnvSnapThreshold = "BFG_SNAP_THRESHOLD"
	EnvDataDir       = "BFG_DATA_DIR"
	EnvBackend       = "BFG_STORAGE_BACKEND"
	EnvPostgresDSN   = "BFG_PG_DSN"
	EnvLogLevel      = "BFG_LOG_LEVEL"
	EnvLogFormat     = "BFG_LOG_FORMAT"
	EnvLogSource     = "BFG_LOG_SOURCE"
	EnvLogFile       = "BFG_LOG_FILE"
)

const (
	keyringService = "BannerForge"
	keyringPGPass  = "postgres_password"
)

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "BannerForge")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "BannerForge")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "bannerforge")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and environment overrides.
// The Postgres password is loaded from the keyring and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = filepath.Join(filepath.Dir(path), "data")
	}
	secret, _ := tokenStore.Get(keyringService, keyringPGPass)
	return cfg, secret, nil
}

// Save writes the YAML file and stores the secret in the keyring when non-empty.
func Save(cfg AppConfig, secret string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
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
	if secret != "" {
		return tokenStore.Set(keyringService, keyringPGPass, secret)
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	e := src.Editor
	if e.HistorySize > 0 {
		dst.Editor.HistorySize = e.HistorySize
	}
	if e.SnapThreshold > 0 {
		dst.Editor.SnapThreshold = e.SnapThreshold
	}
	if e.GuideMargin > 0 {
		dst.Editor.GuideMargin = e.GuideMargin
	}
	if e.ViewportWidth > 0 && e.ViewportHeight > 0 {
		dst.Editor.ViewportWidth = e.ViewportWidth
		dst.Editor.ViewportHeight = e.ViewportHeight
	}
	if e.FontTimeoutMs > 0 {
		dst.Editor.FontTimeoutMs = e.FontTimeoutMs
	}
	if e.BatchFontTimeoutMs > 0 {
		dst.Editor.BatchFontTimeoutMs = e.BatchFontTimeoutMs
	}
	if e.RatioEpsilon > 0 {
		dst.Editor.RatioEpsilon = e.RatioEpsilon
	}
	if s := strings.TrimSpace(src.Storage.DataDir); s != "" {
		dst.Storage.DataDir = s
	}
	if src.Storage.KeepRevisions > 0 {
		dst.Storage.KeepRevisions = src.Storage.KeepRevisions
	}
	if s := strings.ToLower(strings.TrimSpace(src.Storage.Backend)); s != "" {
		dst.Storage.Backend = s
	}
	if s := strings.TrimSpace(src.Storage.PostgresDSN); s != "" {
		dst.Storage.PostgresDSN = s
	}
	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvHistorySize)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Editor.HistorySize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvSnapThreshold)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Editor.SnapThreshold = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackend)); v != "" {
		cfg.Storage.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPostgresDSN)); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// EnvOverrideFor returns the env var name if the field is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	env := map[string]string{
		"editor.history_size":   EnvHistorySize,
		"editor.snap_threshold": EnvSnapThreshold,
		"storage.data_dir":      EnvDataDir,
		"storage.backend":       EnvBackend,
		"storage.postgres_dsn":  EnvPostgresDSN,
		"logging.level":         EnvLogLevel,
		"logging.format":        EnvLogFormat,
		"logging.source":        EnvLogSource,
		"logging.file":          EnvLogFile,
	}[key]
	if env != "" && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}
