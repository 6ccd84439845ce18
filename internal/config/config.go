// Package config resolves board settings from defaults, JSONC config files,
// the environment and command line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tailscale/hujson"
)

// FileName is the project config file looked up in the working directory.
const FileName = ".taskboard.json"

// Duration is a time.Duration written as a Go duration string ("2m").
type Duration time.Duration

// UnmarshalJSON accepts a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(parsed)

	return nil
}

// MarshalJSON writes the duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all configuration options.
type Config struct {
	Root              string   `json:"root"`
	Port              int      `json:"port,omitempty"`
	AltViewerRoot     string   `json:"alt_viewer_root,omitempty"`
	DefaultAuthor     string   `json:"default_author,omitempty"`
	UndoWindow        Duration `json:"undo_window,omitempty"`
	KeepaliveInterval Duration `json:"keepalive_interval,omitempty"`
	RegenDebounce     Duration `json:"regen_debounce,omitempty"`
	RedisURL          string   `json:"redis_url,omitempty"`
	RedisChannel      string   `json:"redis_channel,omitempty"`
	LogLevel          string   `json:"log_level,omitempty"`
	LogFormat         string   `json:"log_format,omitempty"`

	// Resolved paths, not serialized.
	EffectiveCwd     string `json:"-"`
	RootAbs          string `json:"-"`
	AltViewerRootAbs string `json:"-"`

	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string
	Project string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Root:              filepath.Join("docs", "logs"),
		Port:              7777,
		DefaultAuthor:     "kirara",
		UndoWindow:        Duration(2 * time.Minute),
		KeepaliveInterval: Duration(25 * time.Second),
		RegenDebounce:     Duration(500 * time.Millisecond),
		RedisChannel:      "taskboard:events",
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Overrides are values from command line flags. Zero values do not
// override.
type Overrides struct {
	Root          string
	Port          int
	AltViewerRoot string
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config
	Overrides       Overrides         // command line flags
	Env             map[string]string // environment variables
}

// globalPath returns $XDG_CONFIG_HOME/taskboard/config.json, falling back
// to ~/.config. Empty when neither is known.
func globalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "taskboard", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "taskboard", "config.json")
	}

	return ""
}

// Load resolves configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config
// 3. Project config (.taskboard.json) or the explicit -c file
// 4. Environment variables
// 5. Command line overrides.
//
// Paths in the returned Config are absolute.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if path := globalPath(input.Env); path != "" {
		fileCfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = path
			cfg = merge(cfg, fileCfg)
		}
	}

	projectPath, mustExist := filepath.Join(workDir, FileName), false

	if input.ConfigPath != "" {
		projectPath, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}

		if _, err := os.Stat(projectPath); err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigFileNotFound, input.ConfigPath)
		}
	}

	fileCfg, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
		cfg = merge(cfg, fileCfg)
	}

	cfg, err = applyEnv(cfg, input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg = merge(cfg, Config{
		Root:          input.Overrides.Root,
		Port:          input.Overrides.Port,
		AltViewerRoot: input.Overrides.AltViewerRoot,
	})

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	cfg.EffectiveCwd = workDir
	cfg.RootAbs = absFrom(workDir, cfg.Root)

	if cfg.AltViewerRoot != "" {
		cfg.AltViewerRootAbs = absFrom(workDir, cfg.AltViewerRoot)
	}

	return cfg, nil
}

func absFrom(workDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(workDir, path)
}

// loadFile reads one config file. Missing optional files are not loaded and
// not an error. An explicit empty root is rejected here, because merge
// cannot tell it from an absent key.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !mustExist {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
	}

	cfg, emptyRoot, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	if emptyRoot {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, ErrRootEmpty)
	}

	return cfg, true, nil
}

func parse(data []byte) (Config, bool, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]any

	_ = json.Unmarshal(standardized, &raw)

	emptyRoot := false
	if val, ok := raw["root"].(string); ok && val == "" {
		emptyRoot = true
	}

	return cfg, emptyRoot, nil
}

func applyEnv(cfg Config, env map[string]string) (Config, error) {
	if v := env["TASK_VIEWER_ROOT"]; v != "" {
		cfg.Root = v
	}

	if v := env["TASK_VIEWER_PORT"]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("TASK_VIEWER_PORT=%q: %w", v, ErrPortInvalid)
		}

		cfg.Port = port
	}

	for _, key := range []string{"ALT_VIEWER_ROOT", "FALLBACK_VIEWER_ROOT", "KIRACLE_VIEWER_ROOT"} {
		if v := env[key]; v != "" {
			cfg.AltViewerRoot = v

			break
		}
	}

	if v := env["REDIS_URL"]; v != "" {
		cfg.RedisURL = v
	}

	if v := env["DEBUG"]; v != "" && v != "0" && v != "false" {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.Root != "" {
		base.Root = overlay.Root
	}

	if overlay.Port != 0 {
		base.Port = overlay.Port
	}

	if overlay.AltViewerRoot != "" {
		base.AltViewerRoot = overlay.AltViewerRoot
	}

	if overlay.DefaultAuthor != "" {
		base.DefaultAuthor = overlay.DefaultAuthor
	}

	if overlay.UndoWindow != 0 {
		base.UndoWindow = overlay.UndoWindow
	}

	if overlay.KeepaliveInterval != 0 {
		base.KeepaliveInterval = overlay.KeepaliveInterval
	}

	if overlay.RegenDebounce != 0 {
		base.RegenDebounce = overlay.RegenDebounce
	}

	if overlay.RedisURL != "" {
		base.RedisURL = overlay.RedisURL
	}

	if overlay.RedisChannel != "" {
		base.RedisChannel = overlay.RedisChannel
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.LogFormat != "" {
		base.LogFormat = overlay.LogFormat
	}

	return base
}

// Validate checks a merged config.
func Validate(cfg Config) error {
	if cfg.Root == "" {
		return ErrRootEmpty
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrPortInvalid, cfg.Port)
	}

	durations := []struct {
		name string
		d    Duration
	}{
		{"undo_window", cfg.UndoWindow},
		{"keepalive_interval", cfg.KeepaliveInterval},
		{"regen_debounce", cfg.RegenDebounce},
	}

	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s: %w", d.name, ErrDurationInvalid)
		}
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("%w: %q", ErrLogFormatInvalid, cfg.LogFormat)
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrLogLevelInvalid, cfg.LogLevel)
	}

	return nil
}
