package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maxiwhisper/keys"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDefaultFileMatchesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	assert.Error(t, Init(path, false), "existing file must not be replaced")
	assert.NoError(t, Init(path, true))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[keys]
push_to_talk = "f9"
toggle = ""

[session]
stop_timeout = "5s"

[ui]
mode = "none"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "f9", cfg.Keys.PushToTalk)
	assert.Equal(t, "", cfg.Keys.Toggle)
	assert.Equal(t, 5*time.Second, cfg.Session.StopTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.DrainDelay)
	assert.Equal(t, "none", cfg.UI.Mode)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)

	b, err := cfg.Bindings()
	require.NoError(t, err)
	assert.Equal(t, keys.Combo{keys.F9}, b.PushToTalk)
	assert.True(t, b.Toggle.Empty())
	assert.Equal(t, keys.Esc, b.Quit)
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[keys\npush_to_talk = ")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad combo", func(c *Config) { c.Keys.Toggle = "ctrl+nope" }, "keys.toggle"},
		{"same bindings", func(c *Config) { c.Keys.Toggle = "f8" }, "both f8"},
		{"both disabled", func(c *Config) { c.Keys.PushToTalk, c.Keys.Toggle = "", "" }, "both disabled"},
		{"quit in combo", func(c *Config) { c.Keys.Quit = "ctrl" }, "keys.quit"},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 0 }, "audio.sample_rate"},
		{"stop timeout", func(c *Config) { c.Session.StopTimeout = 0 }, "session.stop_timeout"},
		{"drain delay", func(c *Config) { c.Session.DrainDelay = -time.Second }, "session.drain_delay"},
		{"ui mode", func(c *Config) { c.UI.Mode = "fancy" }, "ui.mode"},
		{"color", func(c *Config) { c.UI.Accent = "red" }, "ui.accent"},
		{"empty dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOutputDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	cfg := Default()
	dir, err := cfg.OutputDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "maxiwhisper_records"), dir)

	cfg.Output.Dir = "~/notes"
	dir, err = cfg.OutputDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "notes"), dir)

	abs := filepath.Join(t.TempDir(), "abs")
	cfg.Output.Dir = abs
	dir, err = cfg.OutputDir()
	require.NoError(t, err)
	assert.Equal(t, abs, dir)
}

func TestAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	_, err := APIKey()
	assert.True(t, errors.Is(err, ErrMissingAPIKey))

	t.Setenv(APIKeyEnv, " secret ")
	key, err := APIKey()
	require.NoError(t, err)
	assert.Equal(t, "secret", key)
}

func TestLoadEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("ASSEMBLYAI_API_KEY=from-file\nMAXIWHISPER_TEST_VAR=x\n"), 0644))
	t.Setenv(APIKeyEnv, "from-env")
	t.Setenv("MAXIWHISPER_TEST_VAR", "")
	os.Unsetenv("MAXIWHISPER_TEST_VAR")

	require.NoError(t, LoadEnv(env, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-env", os.Getenv(APIKeyEnv))
	assert.Equal(t, "x", os.Getenv("MAXIWHISPER_TEST_VAR"))
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(ConfigEnv, "/tmp/custom.toml")
	p, err := Path()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.toml", p)
}

func TestRGB(t *testing.T) {
	r, g, b := RGB("#1e1e2e")
	assert.Equal(t, [3]uint8{0x1e, 0x1e, 0x2e}, [3]uint8{r, g, b})
	r, g, b = RGB("bogus")
	assert.Equal(t, [3]uint8{}, [3]uint8{r, g, b})
}

func TestEncode(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, Default().Encode(&sb))
	assert.Contains(t, sb.String(), `push_to_talk = "f8"`)
}

func TestManagerReloadsBindings(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[keys]\npush_to_talk = \"f8\"\n")

	m, err := NewManager(path)
	require.NoError(t, err)

	changed := make(chan *Config, 4)
	m.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.Watch(ctx))
	defer m.Stop()

	// An invalid edit is ignored.
	require.NoError(t, os.WriteFile(path, []byte("[keys]\npush_to_talk = \"nope\"\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("[keys]\npush_to_talk = \"f9\"\n"), 0644))

	require.Eventually(t, func() bool {
		return m.Config().Keys.PushToTalk == "f9"
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case c := <-changed:
		assert.NotEqual(t, "nope", c.Keys.PushToTalk)
	case <-time.After(time.Second):
		t.Fatal("OnChange not called")
	}
}
