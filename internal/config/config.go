package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Backend names
const (
	StorageGCS   = "gcs"
	StorageLocal = "local"

	OCRVision = "vision"
	OCRGemini = "gemini"
	OCRLocal  = "local"

	SinkSheets   = "sheets"
	SinkWorkbook = "xlsx"

	MailGmail = "gmail"
	MailLog   = "log"
)

// Duration is a time.Duration that reads "5s"-style strings from JSON
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or integer nanoseconds
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration: %s", string(b))
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON writes the duration as a string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Config holds application configuration
type Config struct {
	Port          string `json:"port"`
	PublicBaseURL string `json:"public_base_url"`
	LogLevel      string `json:"log_level"`

	StorageBackend   string `json:"storage_backend"`
	StorageBucket    string `json:"storage_bucket"`
	StorageNamespace string `json:"storage_namespace"`
	UploadsDir       string `json:"uploads_dir"`

	OCRBackend      string   `json:"ocr_backend"`
	OCRRegion       string   `json:"ocr_region"`
	OCROutputPrefix string   `json:"ocr_output_prefix"`
	OCRPollInterval Duration `json:"ocr_poll_interval"`
	OCRMaxWait      Duration `json:"ocr_max_wait"`

	GoogleCloudProject    string `json:"google_cloud_project"`
	GoogleCloudLocation   string `json:"google_cloud_location"`
	GoogleCredentialsPath string `json:"google_credentials_path"`

	SinkBackend   string `json:"sink_backend"`
	SpreadsheetID string `json:"spreadsheet_id"`
	SheetRange    string `json:"sheet_range"`
	WorkbookPath  string `json:"workbook_path"`

	WebhookURL          string `json:"webhook_url"`
	WebhookContactEmail string `json:"webhook_contact_email"`
	WebhookStatus       string `json:"webhook_status"`

	MailBackend  string `json:"mail_backend"`
	MailSender   string `json:"mail_sender"`
	FollowUpHour int    `json:"follow_up_hour"`

	MaxUploadBytes  int64    `json:"max_upload_bytes"`
	PipelineTimeout Duration `json:"pipeline_timeout"`
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		Port:                "8080",
		PublicBaseURL:       "http://localhost:8080",
		LogLevel:            "info",
		StorageBackend:      StorageGCS,
		StorageNamespace:    "cv-documents",
		UploadsDir:          "uploads",
		OCRBackend:          OCRVision,
		OCROutputPrefix:     "ocr-results",
		OCRPollInterval:     Duration(5 * time.Second),
		OCRMaxWait:          Duration(5 * time.Minute),
		GoogleCloudLocation: "us-central1",
		SinkBackend:         SinkSheets,
		SheetRange:          "Sheet1!A:J",
		WorkbookPath:        "applications.xlsx",
		WebhookStatus:       "testing",
		MailBackend:         MailLog,
		FollowUpHour:        9,
		MaxUploadBytes:      10 << 20,
		PipelineTimeout:     Duration(10 * time.Minute),
	}
}

// Load reads .env (if present), an optional JSON file named by CONFIG_FILE,
// then overlays environment variables
func Load() (*Config, error) {
	// Try to load .env if it exists; ignore error if file not found
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		loaded, err := LoadFrom(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := FromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom loads configuration from a specific path
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveTo saves the configuration to a specific path
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FromEnv overlays environment variables onto cfg
func FromEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	setString(&cfg.StorageBackend, "STORAGE_BACKEND")
	setString(&cfg.StorageBucket, "STORAGE_BUCKET")
	setString(&cfg.StorageNamespace, "STORAGE_NAMESPACE")
	setString(&cfg.UploadsDir, "UPLOADS_DIR")

	setString(&cfg.OCRBackend, "OCR_BACKEND")
	setString(&cfg.OCRRegion, "OCR_REGION")
	setString(&cfg.OCROutputPrefix, "OCR_OUTPUT_PREFIX")

	setString(&cfg.GoogleCloudProject, "GOOGLE_CLOUD_PROJECT")
	setString(&cfg.GoogleCloudLocation, "GOOGLE_CLOUD_LOCATION")
	setString(&cfg.GoogleCredentialsPath, "GOOGLE_APPLICATION_CREDENTIALS")

	setString(&cfg.SinkBackend, "SINK_BACKEND")
	setString(&cfg.SpreadsheetID, "SPREADSHEET_ID")
	setString(&cfg.SheetRange, "SHEET_RANGE")
	setString(&cfg.WorkbookPath, "WORKBOOK_PATH")

	setString(&cfg.WebhookURL, "WEBHOOK_URL")
	setString(&cfg.WebhookContactEmail, "WEBHOOK_CONTACT_EMAIL")
	setString(&cfg.WebhookStatus, "WEBHOOK_STATUS")

	setString(&cfg.MailBackend, "MAIL_BACKEND")
	setString(&cfg.MailSender, "MAIL_SENDER")

	if err := setDuration(&cfg.OCRPollInterval, "OCR_POLL_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.OCRMaxWait, "OCR_MAX_WAIT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.PipelineTimeout, "PIPELINE_TIMEOUT"); err != nil {
		return err
	}

	if v := os.Getenv("FOLLOW_UP_HOUR"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FOLLOW_UP_HOUR: %w", err)
		}
		cfg.FollowUpHour = n
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = Duration(d)
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageGCS:
		if c.StorageBucket == "" {
			return fmt.Errorf("storage_bucket is required for the gcs storage backend")
		}
	case StorageLocal:
		if c.UploadsDir == "" {
			return fmt.Errorf("uploads_dir is required for the local storage backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	switch c.OCRBackend {
	case OCRVision:
		if c.StorageBackend != StorageGCS {
			return fmt.Errorf("the vision ocr backend requires the gcs storage backend")
		}
	case OCRGemini:
		if c.StorageBackend != StorageGCS {
			return fmt.Errorf("the gemini ocr backend requires the gcs storage backend")
		}
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("google_cloud_project is required for the gemini ocr backend")
		}
		if c.GoogleCloudLocation == "" {
			return fmt.Errorf("google_cloud_location is required for the gemini ocr backend")
		}
	case OCRLocal:
		if c.StorageBackend != StorageLocal {
			return fmt.Errorf("the local ocr backend requires the local storage backend")
		}
	default:
		return fmt.Errorf("unknown ocr backend %q", c.OCRBackend)
	}

	switch c.SinkBackend {
	case SinkSheets:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet_id is required for the sheets sink")
		}
	case SinkWorkbook:
		if c.WorkbookPath == "" {
			return fmt.Errorf("workbook_path is required for the xlsx sink")
		}
	default:
		return fmt.Errorf("unknown sink backend %q", c.SinkBackend)
	}

	switch c.MailBackend {
	case MailGmail:
		if c.MailSender == "" {
			return fmt.Errorf("mail_sender is required for the gmail mail backend")
		}
		if c.GoogleCredentialsPath == "" {
			return fmt.Errorf("google_credentials_path is required for the gmail mail backend")
		}
	case MailLog:
	default:
		return fmt.Errorf("unknown mail backend %q", c.MailBackend)
	}

	if c.WebhookURL == "" {
		return fmt.Errorf("webhook_url is required")
	}
	if c.WebhookContactEmail == "" {
		return fmt.Errorf("webhook_contact_email is required")
	}
	if c.FollowUpHour < 0 || c.FollowUpHour > 23 {
		return fmt.Errorf("follow_up_hour must be between 0 and 23, got %d", c.FollowUpHour)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if c.OCRPollInterval <= 0 {
		return fmt.Errorf("ocr_poll_interval must be positive")
	}

	if c.GoogleCredentialsPath != "" {
		if _, err := os.Stat(c.GoogleCredentialsPath); err != nil {
			return fmt.Errorf("google credentials file not found: %w", err)
		}
	}

	return nil
}

// ApplyToEnv applies configuration values to environment variables
func (c *Config) ApplyToEnv() {
	if c.GoogleCloudProject != "" {
		os.Setenv("GOOGLE_CLOUD_PROJECT", c.GoogleCloudProject)
	}
	if c.GoogleCloudLocation != "" {
		os.Setenv("GOOGLE_CLOUD_LOCATION", c.GoogleCloudLocation)
	}
	if c.GoogleCredentialsPath != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", c.GoogleCredentialsPath)
	}
}
