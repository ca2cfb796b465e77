package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithPathDefaults(t *testing.T) {
	cfg := LoadWithPath(filepath.Join(t.TempDir(), "absent.json"))
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "uploads", cfg.FilesRoot)
	assert.Equal(t, "* * * * *", cfg.NewsletterCron)
}

func TestLoadWithPathJSONAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":"7070","smtpFrom":"cms@example.com"}`), 0o644))
	t.Setenv("VITRINA_PORT", "9090") // ENV приоритетнее файла

	cfg := LoadWithPath(path)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "cms@example.com", cfg.SMTPFrom)
}

// Повторный вызов не должен падать на переопределении флагов —
// перечитывание через -config делает ровно это.
func TestLoadWithPathReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":"7070"}`), 0o644))

	first := LoadWithPath(path)
	second := LoadWithPath(path)
	assert.Equal(t, first.Port, second.Port)
}
