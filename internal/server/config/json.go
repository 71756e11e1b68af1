package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/oculis/filevault/internal/flagx"
	"github.com/oculis/filevault/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "1h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr string `json:"endpoint_addr"`
	DatabaseDSN  string `json:"database_dsn"`
	SecretKey    string `json:"secret_key"`

	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	SSEKMSKeyID    string `json:"sse_kms_key_id"`

	MaxFileSize      int64          `json:"max_file_size"`
	AllowedMimeTypes []string       `json:"allowed_mime_types"`
	URLExpiry        timex.Duration `json:"url_expiry"`

	ScannerCommand     string   `json:"scanner_command"`
	HighRiskExtensions []string `json:"high_risk_extensions"`
	ScanFailClosed     bool     `json:"scan_fail_closed"`
	ScanTempDir        string   `json:"scan_temp_dir"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c or -config command-line flags; when neither
// is set, no JSON file is loaded. Zero-valued JSON fields leave the existing
// Config values in place, so the file only has to name what it overrides.
// If the file cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.S3AccessKey != "" {
		config.S3AccessKey = c.S3AccessKey
	}
	if c.S3SecretKey != "" {
		config.S3SecretKey = c.S3SecretKey
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.SSEKMSKeyID != "" {
		config.SSEKMSKeyID = c.SSEKMSKeyID
	}
	if c.MaxFileSize > 0 {
		config.MaxFileSize = c.MaxFileSize
	}
	if len(c.AllowedMimeTypes) > 0 {
		config.AllowedMimeTypes = c.AllowedMimeTypes
	}
	if c.URLExpiry > 0 {
		config.URLExpiry = time.Duration(c.URLExpiry)
	}
	if c.ScannerCommand != "" {
		config.ScannerCommand = c.ScannerCommand
	}
	if len(c.HighRiskExtensions) > 0 {
		config.HighRiskExtensions = c.HighRiskExtensions
	}
	if c.ScanFailClosed {
		config.ScanFailClosed = true
	}
	if c.ScanTempDir != "" {
		config.ScanTempDir = c.ScanTempDir
	}
}
