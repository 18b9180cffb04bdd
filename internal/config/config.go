// Package config owns the service's on-disk data directory: the
// API-updatable settings file, named launch configurations, and
// argument presets. Settings are explicit, reloadable state behind a
// store rather than package-level variables, so requests observe a
// consistent snapshot and tests need no global setup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/scriptdeck/scriptdeck/internal/util"
)

// Settings are the mutable knobs read on every launch request.
type Settings struct {
	PreCommand        string `json:"pre_command"`
	LogDir            string `json:"log_dir"`
	DefaultScriptPath string `json:"default_script_path"`
}

// NamedConfig is a saved combination of launch environment settings.
type NamedConfig struct {
	Name       string `json:"name,omitempty"`
	PreCommand string `json:"pre_command"`
	Session    string `json:"byobu_session"`
	LogDir     string `json:"log_dir"`
}

// ArgPreset is a saved argument-value set for one script.
type ArgPreset struct {
	Name       string         `json:"name"`
	ScriptPath string         `json:"script_path"`
	Args       map[string]any `json:"args"`
	Created    string         `json:"created"`
}

// Store manages the data directory. Settings updates are serialized
// across processes with a file lock and written atomically.
type Store struct {
	mu       sync.RWMutex
	dataDir  string
	settings Settings
	lock     *flock.Flock
}

// Open creates the data directory layout and loads settings from
// config.json if one exists.
func Open(dataDir string) (*Store, error) {
	s := &Store{
		dataDir: dataDir,
		lock:    flock.New(filepath.Join(dataDir, ".config.lock")),
	}
	for _, dir := range []string{
		dataDir,
		s.ConfigsDir(),
		s.PresetsDir(),
		s.HistoryDir(),
		s.DefaultLogDir(),
		s.ScratchDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) settingsPath() string { return filepath.Join(s.dataDir, "config.json") }

// ConfigsDir holds named configurations.
func (s *Store) ConfigsDir() string { return filepath.Join(s.dataDir, "configs") }

// PresetsDir holds argument presets.
func (s *Store) PresetsDir() string { return filepath.Join(s.dataDir, "arg_presets") }

// HistoryDir holds launch history and favorites.
func (s *Store) HistoryDir() string { return filepath.Join(s.dataDir, "history") }

// DefaultLogDir is used when audit logging is requested without an
// explicit directory.
func (s *Store) DefaultLogDir() string { return filepath.Join(s.dataDir, "logs") }

// ScratchDir holds per-launch helper scripts.
func (s *Store) ScratchDir() string { return filepath.Join(s.dataDir, "scratch") }

// Reload re-reads settings from disk. A missing file leaves zero-value
// settings in place.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.settingsPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}
	var st Settings
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}
	s.mu.Lock()
	s.settings = st
	s.mu.Unlock()
	return nil
}

// Settings returns the current settings snapshot.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update persists new settings and makes them visible to subsequent
// readers. The flock serializes concurrent writers across processes.
func (s *Store) Update(st Settings) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking settings: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := util.AtomicWriteJSON(s.settingsPath(), st); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	s.mu.Lock()
	s.settings = st
	s.mu.Unlock()
	return nil
}

// SanitizeName reduces a user-supplied name to a safe filename stem:
// alphanumerics, hyphens, and underscores, with spaces collapsed to
// underscores. Returns "" when nothing survives.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}

// --- Named configurations ---

// ListConfigs returns all saved named configurations. Unreadable files
// are skipped rather than failing the listing.
func (s *Store) ListConfigs() ([]NamedConfig, error) {
	entries, err := os.ReadDir(s.ConfigsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var configs []NamedConfig
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok {
			continue
		}
		var c NamedConfig
		if readJSON(filepath.Join(s.ConfigsDir(), e.Name()), &c) != nil {
			continue
		}
		c.Name = name
		configs = append(configs, c)
	}
	return configs, nil
}

// SaveConfig persists a named configuration, returning the sanitized
// name it was stored under.
func (s *Store) SaveConfig(name string, c NamedConfig) (string, error) {
	safe := SanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("invalid config name: %q", name)
	}
	c.Name = ""
	if err := util.AtomicWriteJSON(filepath.Join(s.ConfigsDir(), safe+".json"), c); err != nil {
		return "", err
	}
	return safe, nil
}

// GetConfig loads one named configuration.
func (s *Store) GetConfig(name string) (NamedConfig, error) {
	var c NamedConfig
	err := readJSON(filepath.Join(s.ConfigsDir(), SanitizeName(name)+".json"), &c)
	return c, err
}

// DeleteConfig removes a named configuration.
func (s *Store) DeleteConfig(name string) error {
	return os.Remove(filepath.Join(s.ConfigsDir(), SanitizeName(name)+".json"))
}

// --- Argument presets ---

// ListPresets returns summaries of all saved argument presets.
func (s *Store) ListPresets() ([]ArgPreset, error) {
	entries, err := os.ReadDir(s.PresetsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var presets []ArgPreset
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok {
			continue
		}
		var p ArgPreset
		if readJSON(filepath.Join(s.PresetsDir(), e.Name()), &p) != nil {
			continue
		}
		if p.Name == "" {
			p.Name = name
		}
		presets = append(presets, p)
	}
	return presets, nil
}

// SavePreset persists an argument preset, stamping it with the current
// time, and returns the sanitized name it was stored under.
func (s *Store) SavePreset(p ArgPreset) (string, error) {
	safe := SanitizeName(p.Name)
	if safe == "" {
		return "", fmt.Errorf("invalid preset name: %q", p.Name)
	}
	p.Created = time.Now().Format(time.RFC3339)
	if err := util.AtomicWriteJSON(filepath.Join(s.PresetsDir(), safe+".json"), p); err != nil {
		return "", err
	}
	return safe, nil
}

// GetPreset loads one argument preset.
func (s *Store) GetPreset(name string) (ArgPreset, error) {
	var p ArgPreset
	err := readJSON(filepath.Join(s.PresetsDir(), SanitizeName(name)+".json"), &p)
	return p, err
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
