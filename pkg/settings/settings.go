package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"sigs.k8s.io/yaml"
)

const (
	EnvToken = "HUBX_TOKEN"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

type Settings struct {
	Token       string `json:"token,omitempty"`
	DownloadDir string `json:"downloadDir,omitempty"`
	Theme       string `json:"theme,omitempty"`
}

func Default() Settings {
	return Settings{Theme: ThemeLight}
}

// DefaultPath is ~/.hubx/settings.yaml, or a file in the working directory
// when the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "settings.yaml"
	}
	return filepath.Join(home, ".hubx", "settings.yaml")
}

// Manager persists Settings as YAML at Path. The environment override is
// never written back to the file.
type Manager struct {
	Path     string
	settings Settings
}

func NewManager(path string) *Manager {
	if path == "" {
		path = DefaultPath()
	}
	return &Manager{Path: path, settings: Default()}
}

// Load reads the settings file; a missing file yields the defaults. The
// HUBX_TOKEN environment variable overrides the stored token.
func (m *Manager) Load() (Settings, error) {
	m.settings = Default()
	content, err := os.ReadFile(m.Path)
	if err != nil && !os.IsNotExist(err) {
		return m.settings, err
	}
	if err == nil {
		if err := yaml.Unmarshal(content, &m.settings); err != nil {
			return m.settings, fmt.Errorf("parse %s: %w", m.Path, err)
		}
	}
	if m.settings.Theme == "" {
		m.settings.Theme = ThemeLight
	}
	return m.Get(), nil
}

// Get returns the loaded settings with the environment override applied.
func (m *Manager) Get() Settings {
	settings := m.settings
	if token := os.Getenv(EnvToken); token != "" {
		settings.Token = token
	}
	return settings
}

func (m *Manager) Save(settings Settings) error {
	if err := validateTheme(settings.Theme); err != nil {
		return err
	}
	content, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return err
	}
	// the file holds a token
	if err := os.WriteFile(m.Path, content, 0o600); err != nil {
		return err
	}
	m.settings = settings
	return nil
}

var setters = map[string]func(s *Settings, value string) error{
	"token": func(s *Settings, value string) error {
		s.Token = value
		return nil
	},
	"download-dir": func(s *Settings, value string) error {
		if value != "" {
			abs, err := filepath.Abs(value)
			if err != nil {
				return err
			}
			value = abs
		}
		s.DownloadDir = value
		return nil
	},
	"theme": func(s *Settings, value string) error {
		if err := validateTheme(value); err != nil {
			return err
		}
		s.Theme = value
		return nil
	},
}

// Keys lists the names accepted by Set.
func Keys() []string {
	keys := maps.Keys(setters)
	slices.Sort(keys)
	return keys
}

// Set changes one setting by name and saves the file.
func (m *Manager) Set(key, value string) error {
	setter, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown setting %q, expected one of %v", key, Keys())
	}
	settings := m.settings
	if err := setter(&settings, value); err != nil {
		return err
	}
	return m.Save(settings)
}

func validateTheme(theme string) error {
	switch theme {
	case ThemeLight, ThemeDark:
		return nil
	default:
		return fmt.Errorf("unknown theme %q, expected %q or %q", theme, ThemeLight, ThemeDark)
	}
}
