package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLocalConfig() *Config {
	cfg := DefaultConfig()
	cfg.StorageBackend = StorageLocal
	cfg.OCRBackend = OCRLocal
	cfg.SinkBackend = SinkWorkbook
	cfg.WebhookURL = "https://hooks.example.com/"
	cfg.WebhookContactEmail = "ops@example.com"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "cv-documents", cfg.StorageNamespace)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.OCRPollInterval))
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 9, cfg.FollowUpHour)
	assert.Equal(t, "Sheet1!A:J", cfg.SheetRange)
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := validLocalConfig()
	cfg.OCRMaxWait = Duration(90 * time.Second)

	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFromRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestFromEnvOverlays(t *testing.T) {
	t.Setenv("STORAGE_BUCKET", "cv-bucket")
	t.Setenv("OCR_POLL_INTERVAL", "250ms")
	t.Setenv("FOLLOW_UP_HOUR", "8")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("WEBHOOK_CONTACT_EMAIL", "hr@example.com")

	cfg := DefaultConfig()
	require.NoError(t, FromEnv(cfg))

	assert.Equal(t, "cv-bucket", cfg.StorageBucket)
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.OCRPollInterval))
	assert.Equal(t, 8, cfg.FollowUpHour)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.Equal(t, "hr@example.com", cfg.WebhookContactEmail)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "Bad duration", key: "OCR_MAX_WAIT", val: "forever"},
		{name: "Bad hour", key: "FOLLOW_UP_HOUR", val: "nine"},
		{name: "Bad size", key: "MAX_UPLOAD_BYTES", val: "10MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			assert.Error(t, FromEnv(DefaultConfig()))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "Valid local setup", mutate: func(c *Config) {}},
		{
			name:    "GCS without bucket",
			mutate:  func(c *Config) { c.StorageBackend = StorageGCS; c.OCRBackend = OCRVision },
			wantErr: "storage_bucket",
		},
		{
			name:    "Vision OCR on local storage",
			mutate:  func(c *Config) { c.OCRBackend = OCRVision },
			wantErr: "requires the gcs storage backend",
		},
		{
			name:    "Sheets without spreadsheet",
			mutate:  func(c *Config) { c.SinkBackend = SinkSheets },
			wantErr: "spreadsheet_id",
		},
		{
			name:    "Missing webhook",
			mutate:  func(c *Config) { c.WebhookURL = "" },
			wantErr: "webhook_url",
		},
		{
			name:    "Gmail without sender",
			mutate:  func(c *Config) { c.MailBackend = MailGmail },
			wantErr: "mail_sender",
		},
		{
			name:    "Hour out of range",
			mutate:  func(c *Config) { c.FollowUpHour = 24 },
			wantErr: "follow_up_hour",
		},
		{
			name:    "Unknown sink",
			mutate:  func(c *Config) { c.SinkBackend = "csv" },
			wantErr: "unknown sink backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validLocalConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("loud").GetLevel())
}

func TestApplyToEnv(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GOOGLE_CLOUD_LOCATION", "")

	cfg := DefaultConfig()
	cfg.GoogleCloudProject = "intake-prod"
	cfg.ApplyToEnv()

	assert.Equal(t, "intake-prod", os.Getenv("GOOGLE_CLOUD_PROJECT"))
	assert.Equal(t, "us-central1", os.Getenv("GOOGLE_CLOUD_LOCATION"))
}
