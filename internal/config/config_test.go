package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"unholygrail/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(overrides map[string]interface{}) *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := config.FromViper(newViper(map[string]interface{}{"TOKEN_SECRET": "s3cret"}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "mail_queue", cfg.MailQueue)
	assert.Equal(t, "admin@unholygrail.org", cfg.MailFrom)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.False(t, cfg.RotateTokenOnReset)
}

func TestFromViper_RequiresSecret(t *testing.T) {
	_, err := config.FromViper(newViper(nil))
	assert.EqualError(t, err, "TOKEN_SECRET is required")
}

func TestFromViper_RejectsUnknownDriver(t *testing.T) {
	_, err := config.FromViper(newViper(map[string]interface{}{"TOKEN_SECRET": "s", "DB_DRIVER": "mysql"}))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mysql")
}

func TestLoad_EnvAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("TOKEN_SECRET: from-file\nCLIENT_ENDPOINT: https://file.example\nDB_DRIVER: memory\n"), 0o600))

	t.Setenv("CONFIG_FILE", file)
	t.Setenv("CLIENT_ENDPOINT", "https://env.example")
	t.Setenv("ROTATE_TOKEN_ON_RESET", "true")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.TokenSecret)
	assert.Equal(t, "https://env.example", cfg.ClientEndpoint)
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.True(t, cfg.RotateTokenOnReset)
}
