package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr":        "www.example:9000",
		"database_dsn":         "postgres://example/files",
		"secret_key":           "my_secret_key",
		"s3_access_key":        "user",
		"s3_secret_key":        "password",
		"s3_bucket":            "bucket",
		"s3_region":            "region",
		"s3_base_endpoint":     "base_endpoint",
		"sse_kms_key_id":       "kms-key-1",
		"max_file_size":        1024,
		"allowed_mime_types":   []string{"image/png"},
		"url_expiry":           "30m",
		"scanner_command":      "clamdscan",
		"high_risk_extensions": []string{".exe"},
		"scan_fail_closed":     true,
		"scan_temp_dir":        "/var/scan",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddr)
		assert.Equal(t, "postgres://example/files", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, "user", cfg.S3AccessKey)
		assert.Equal(t, "password", cfg.S3SecretKey)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, "kms-key-1", cfg.SSEKMSKeyID)
		assert.Equal(t, int64(1024), cfg.MaxFileSize)
		assert.Equal(t, []string{"image/png"}, cfg.AllowedMimeTypes)
		assert.Equal(t, 30*time.Minute, cfg.URLExpiry)
		assert.Equal(t, "clamdscan", cfg.ScannerCommand)
		assert.Equal(t, []string{".exe"}, cfg.HighRiskExtensions)
		assert.True(t, cfg.ScanFailClosed)
		assert.Equal(t, "/var/scan", cfg.ScanTempDir)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddr:   "defaults:1234",
			DatabaseDSN:    "postgres://defaults/files",
			SecretKey:      "key",
			S3AccessKey:    "s3user",
			S3SecretKey:    "s3password",
			S3Bucket:       "s3bucket",
			S3Region:       "s3region",
			S3BaseEndpoint: "s3baseendpoint",
			MaxFileSize:    42,
			URLExpiry:      time.Hour,
			ScannerCommand: "clamscan",
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddr)
		assert.Equal(t, "postgres://defaults/files", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, "s3user", cfg.S3AccessKey)
		assert.Equal(t, "s3password", cfg.S3SecretKey)
		assert.Equal(t, "s3bucket", cfg.S3Bucket)
		assert.Equal(t, "s3region", cfg.S3Region)
		assert.Equal(t, "s3baseendpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, int64(42), cfg.MaxFileSize)
		assert.Equal(t, time.Hour, cfg.URLExpiry)
		assert.Equal(t, "clamscan", cfg.ScannerCommand)
	})

	t.Run("partial json keeps remaining values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{
			"s3_bucket": "override-bucket",
		})
		os.Args = []string{"testbin", "-config", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "override-bucket", cfg.S3Bucket)
		assert.Equal(t, ":8080", cfg.EndpointAddr)
		assert.Equal(t, "clamscan", cfg.ScannerCommand)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
