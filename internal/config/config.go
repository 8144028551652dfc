/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user's vecterrain.yaml. Values start from
// Defaults, the file overrides them, and VTR_* environment variables
// override both at runtime without being written back.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BrushConfig mirrors brush.Options in user-facing units.
type BrushConfig struct {
	SizePx         float64 `yaml:"size_px"`
	SpacingPx      float64 `yaml:"spacing_px"` // 0 derives from size_px
	Jitter         float64 `yaml:"jitter"`
	RotationMin    float64 `yaml:"rotation_min"`
	RotationMax    float64 `yaml:"rotation_max"`
	UseCapsule     bool    `yaml:"use_capsule"`
	Accumulate     bool    `yaml:"accumulate"`
	MinIntervalMs  int     `yaml:"min_interval_ms"`
	SimplifyFactor float64 `yaml:"simplify_factor"`
	Seed           int64   `yaml:"seed"` // 0 seeds from the clock
}

type TerrainConfig struct {
	MinArea   float64 `yaml:"min_area"`
	Policy    string  `yaml:"policy"` // "union" | "append"
	ClipScale float64 `yaml:"clip_scale"`
}

type MeshConfig struct {
	RepeatScale float64 `yaml:"repeat_scale"`
}

type DecorConfig struct {
	InnerSteps  int     `yaml:"inner_steps"`
	BorderWidth float64 `yaml:"border_width"`
	OuterCount  int     `yaml:"outer_count"`
	Smooth      bool    `yaml:"smooth"`
}

type CameraConfig struct {
	Zoom     float64 `yaml:"zoom"`
	MinZoom  float64 `yaml:"min_zoom"`
	MaxZoom  float64 `yaml:"max_zoom"`
	ZoomStep float64 `yaml:"zoom_step"`
}

type StorageConfig struct {
	KeepBackups  int  `yaml:"keep_backups"`
	History      bool `yaml:"history"`
	HistoryLimit int  `yaml:"history_limit"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the YAML document. config_version is bumped on incompatible
// changes.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Brush         BrushConfig   `yaml:"brush"`
	Terrain       TerrainConfig `yaml:"terrain"`
	Mesh          MeshConfig    `yaml:"mesh"`
	Decor         DecorConfig   `yaml:"decor"`
	Camera        CameraConfig  `yaml:"camera"`
	Storage       StorageConfig `yaml:"storage"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Brush: BrushConfig{
			SizePx:         64,
			Jitter:         0.18,
			RotationMin:    0,
			RotationMax:    2 * math.Pi,
			UseCapsule:     true,
			Accumulate:     true,
			SimplifyFactor: 0.01,
		},
		Terrain: TerrainConfig{MinArea: 1e-2, Policy: "union", ClipScale: 1e4},
		Mesh:    MeshConfig{RepeatScale: 1},
		Decor:   DecorConfig{InnerSteps: 4, BorderWidth: 12, OuterCount: 5, Smooth: true},
		Camera:  CameraConfig{Zoom: 1, MinZoom: 0.5, MaxZoom: 3, ZoomStep: 1.05},
		Storage: StorageConfig{KeepBackups: 20, History: true, HistoryLimit: 200},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath  = "VTR_CONFIG"
	EnvBrushSize   = "VTR_BRUSH_SIZE"
	EnvBrushJitter = "VTR_BRUSH_JITTER"
	EnvBrushSeed   = "VTR_BRUSH_SEED"
	EnvPolicy      = "VTR_TERRAIN_POLICY"
	EnvZoom        = "VTR_ZOOM"
	EnvHistory     = "VTR_HISTORY"
	EnvLogLevel    = "VTR_LOG_LEVEL"
	EnvLogFormat   = "VTR_LOG_FORMAT"
	EnvLogSource   = "VTR_LOG_SOURCE"
	EnvLogFile     = "VTR_LOG_FILE"
)

// ConfigPath returns the per-user config file path; VTR_CONFIG wins.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "VecTerrain")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "VecTerrain")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "vecterrain")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "vecterrain")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config (a missing file is fine) and applies env
// overrides. A file that does not parse is reported but defaults are still
// returned.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load for an explicit path.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	var loadErr error
	if data, err := os.ReadFile(path); err == nil {
		fileCfg := Defaults()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			loadErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, loadErr
}

// Save writes cfg to ConfigPath.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// mergeInto copies the file values over the defaults. src starts from
// Defaults, so a key absent from the file keeps its default; out-of-range
// numbers are ignored.
func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}

	b := src.Brush
	if b.SizePx > 0 {
		dst.Brush.SizePx = b.SizePx
	}
	if b.SpacingPx >= 0 {
		dst.Brush.SpacingPx = b.SpacingPx
	}
	if b.Jitter >= 0 && b.Jitter < 1 {
		dst.Brush.Jitter = b.Jitter
	}
	if b.RotationMax >= b.RotationMin {
		dst.Brush.RotationMin, dst.Brush.RotationMax = b.RotationMin, b.RotationMax
	}
	dst.Brush.UseCapsule = b.UseCapsule
	dst.Brush.Accumulate = b.Accumulate
	if b.MinIntervalMs >= 0 {
		dst.Brush.MinIntervalMs = b.MinIntervalMs
	}
	if b.SimplifyFactor >= 0 {
		dst.Brush.SimplifyFactor = b.SimplifyFactor
	}
	dst.Brush.Seed = b.Seed

	if src.Terrain.MinArea >= 0 {
		dst.Terrain.MinArea = src.Terrain.MinArea
	}
	if p := strings.ToLower(strings.TrimSpace(src.Terrain.Policy)); p != "" {
		dst.Terrain.Policy = p
	}
	if src.Terrain.ClipScale > 0 {
		dst.Terrain.ClipScale = src.Terrain.ClipScale
	}

	if src.Mesh.RepeatScale > 0 {
		dst.Mesh.RepeatScale = src.Mesh.RepeatScale
	}

	if src.Decor.InnerSteps > 0 {
		dst.Decor.InnerSteps = src.Decor.InnerSteps
	}
	if src.Decor.BorderWidth > 0 {
		dst.Decor.BorderWidth = src.Decor.BorderWidth
	}
	if src.Decor.OuterCount > 0 {
		dst.Decor.OuterCount = src.Decor.OuterCount
	}
	dst.Decor.Smooth = src.Decor.Smooth

	c := src.Camera
	if c.MinZoom > 0 && c.MaxZoom >= c.MinZoom {
		dst.Camera.MinZoom, dst.Camera.MaxZoom = c.MinZoom, c.MaxZoom
	}
	if c.ZoomStep > 1 {
		dst.Camera.ZoomStep = c.ZoomStep
	}
	if c.Zoom > 0 {
		dst.Camera.Zoom = dst.Camera.ClampZoom(c.Zoom)
	}

	if src.Storage.KeepBackups >= 0 {
		dst.Storage.KeepBackups = src.Storage.KeepBackups
	}
	dst.Storage.History = src.Storage.History
	if src.Storage.HistoryLimit >= 0 {
		dst.Storage.HistoryLimit = src.Storage.HistoryLimit
	}

	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	dst.Logging.File = strings.TrimSpace(src.Logging.File)
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBrushSize)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Brush.SizePx = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBrushJitter)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f < 1 {
			cfg.Brush.Jitter = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBrushSeed)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Brush.Seed = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvPolicy)); v != "" {
		cfg.Terrain.Policy = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvZoom)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Camera.Zoom = cfg.Camera.ClampZoom(f)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistory)); v != "" {
		cfg.Storage.History = parseBool(v)
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

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env := map[string]string{
		"brush.size_px":   EnvBrushSize,
		"brush.jitter":    EnvBrushJitter,
		"brush.seed":      EnvBrushSeed,
		"terrain.policy":  EnvPolicy,
		"camera.zoom":     EnvZoom,
		"storage.history": EnvHistory,
		"logging.level":   EnvLogLevel,
		"logging.format":  EnvLogFormat,
		"logging.source":  EnvLogSource,
		"logging.file":    EnvLogFile,
	}[key]
	if env != "" && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// ClampZoom limits z to [MinZoom, MaxZoom].
func (c CameraConfig) ClampZoom(z float64) float64 {
	lo, hi := c.MinZoom, c.MaxZoom
	if lo <= 0 {
		lo = 0.5
	}
	if hi < lo {
		hi = lo
	}
	return math.Min(math.Max(z, lo), hi)
}

// ZoomBy applies steps wheel notches (positive zooms in) to z.
func (c CameraConfig) ZoomBy(z float64, steps int) float64 {
	step := c.ZoomStep
	if step <= 1 {
		step = 1.05
	}
	return c.ClampZoom(z * math.Pow(step, float64(steps)))
}
