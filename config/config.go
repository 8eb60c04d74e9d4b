// Package config loads maxiwhisper's TOML configuration and the AssemblyAI
// credentials from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"maxiwhisper/keys"
	"maxiwhisper/log"
)

const (
	APIKeyEnv  = "ASSEMBLYAI_API_KEY"
	ConfigEnv  = "MAXIWHISPER_CONFIG"
	configName = "config.toml"
)

var ErrMissingAPIKey = errors.New(APIKeyEnv + " is not set")

type Config struct {
	Keys    KeysConfig    `toml:"keys"`
	Audio   AudioConfig   `toml:"audio"`
	Output  OutputConfig  `toml:"output"`
	Session SessionConfig `toml:"session"`
	Backend BackendConfig `toml:"backend"`
	UI      UIConfig      `toml:"ui"`
}

type KeysConfig struct {
	PushToTalk string `toml:"push_to_talk"`
	Toggle     string `toml:"toggle"`
	Quit       string `toml:"quit"`
}

type AudioConfig struct {
	SampleRate int    `toml:"sample_rate"`
	Device     string `toml:"device"`
	Gain       int    `toml:"gain"`
}

type OutputConfig struct {
	Dir       string `toml:"dir"`
	AutoPaste bool   `toml:"auto_paste"`
}

type SessionConfig struct {
	StopTimeout time.Duration `toml:"stop_timeout"`
	DrainDelay  time.Duration `toml:"drain_delay"`
}

type BackendConfig struct {
	Host        string `toml:"host"`
	FormatTurns bool   `toml:"format_turns"`
}

type UIConfig struct {
	Enabled         bool          `toml:"enabled"`
	Mode            string        `toml:"mode"`
	RefreshInterval time.Duration `toml:"refresh_interval"`
	X               int           `toml:"x"`
	Y               int           `toml:"y"`
	Width           int           `toml:"width"`
	Height          int           `toml:"height"`
	Background      string        `toml:"background"`
	Foreground      string        `toml:"foreground"`
	Accent          string        `toml:"accent"`
	FontSize        float32       `toml:"font_size"`
	Sounds          bool          `toml:"sounds"`
}

// Bindings holds the parsed [keys] section.
type Bindings struct {
	PushToTalk keys.Combo
	Toggle     keys.Combo
	Quit       keys.Key
}

// Path returns the config file location: $MAXIWHISPER_CONFIG if set,
// otherwise maxiwhisper/config.toml under the user config directory.
func Path() (string, error) {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, "maxiwhisper", configName), nil
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Debugf("config: %s not found, using defaults", path)
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	for _, k := range meta.Undecoded() {
		log.Warnf("config: unknown key %s in %s", k, path)
	}
	log.Debugf("config: loaded %s", path)
	return cfg, nil
}

// Init writes the commented default file. An existing file is only replaced
// when force is set.
func Init(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultFile), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode writes cfg as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func (c *Config) Bindings() (Bindings, error) {
	var b Bindings
	var err error
	if b.PushToTalk, err = keys.ParseCombo(c.Keys.PushToTalk); err != nil {
		return b, fmt.Errorf("invalid keys.push_to_talk: %w", err)
	}
	if b.Toggle, err = keys.ParseCombo(c.Keys.Toggle); err != nil {
		return b, fmt.Errorf("invalid keys.toggle: %w", err)
	}
	if b.Quit, err = keys.Parse(c.Keys.Quit); err != nil {
		return b, fmt.Errorf("invalid keys.quit: %w", err)
	}
	return b, nil
}

// OutputDir resolves output.dir; relative paths are taken from the home
// directory.
func (c *Config) OutputDir() (string, error) {
	dir := c.Output.Dir
	if strings.HasPrefix(dir, "~/") {
		dir = dir[2:]
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dir), nil
}

// LoadEnv reads a .env file into the environment without overriding
// variables that are already set. A missing file is ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func APIKey() (string, error) {
	key := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}
