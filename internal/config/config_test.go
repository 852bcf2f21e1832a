package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "7, 9")
	t.Setenv("ADMIN_USERNAMES", "@Boss,ops")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Bot.Token)
	assert.Equal(t, "polling", cfg.Bot.Mode)
	assert.Equal(t, []int64{7, 9}, cfg.Admin.IDs)
	assert.Equal(t, []string{"Boss", "ops"}, cfg.Admin.Usernames)
	assert.Equal(t, "20:00", cfg.Schedule.DigestAt)
	assert.Equal(t, "09:00", cfg.Schedule.SubscriptionAt)
	assert.Equal(t, "23:00", cfg.Schedule.BackupAt)
	assert.Equal(t, 30*time.Second, cfg.Schedule.Interval)
	assert.Equal(t, "Asia/Tashkent", cfg.Location.String())
	assert.Equal(t, "UZ", cfg.PhoneRegion)
	assert.Empty(t, cfg.FileUsed)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BOT_TOKEN=file-token\nDIGEST_TIME=18:00\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.Bot.Token)
	assert.Equal(t, "18:00", cfg.Schedule.DigestAt)
	assert.Equal(t, path, cfg.FileUsed)
}

func TestLoad_Invalid(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Run("missing token", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "")
		_, err := Load(missing)
		assert.Error(t, err)
	})

	t.Run("bad trigger time", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "x")
		t.Setenv("BACKUP_TIME", "24:00")
		_, err := Load(missing)
		assert.ErrorContains(t, err, "BackupAt")
	})

	t.Run("webhook without secret", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "x")
		t.Setenv("BOT_MODE", "webhook")
		_, err := Load(missing)
		assert.ErrorContains(t, err, "WebhookSecret")
	})

	t.Run("webhook without url", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "x")
		t.Setenv("BOT_MODE", "webhook")
		t.Setenv("WEBHOOK_SECRET", "s3cret")
		_, err := Load(missing)
		assert.ErrorContains(t, err, "WebhookURL")
	})

	t.Run("bad admin id", func(t *testing.T) {
		t.Setenv("BOT_TOKEN", "x")
		t.Setenv("ADMIN_IDS", "abc")
		_, err := Load(missing)
		assert.ErrorContains(t, err, "ADMIN_IDS")
	})
}
