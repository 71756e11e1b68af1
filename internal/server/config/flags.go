package config

import (
	"flag"
	"os"
	"time"

	"github.com/oculis/filevault/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-k string   SSE-KMS key id (empty disables encryption at rest)
//	-m int      maximum upload size, MiB
//	-x int      signed URL expiry, minutes
//	-v string   scan engine command
//	-f bool     fail closed when the scan engine is unavailable
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Size and duration flags are accepted as integers (MiB / minutes) and
//     converted afterwards.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-u", "-p", "-b", "-g", "-e", "-k", "-m", "-x", "-v", "-f"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.SSEKMSKeyID, "k", config.SSEKMSKeyID, "SSE-KMS key id")

	maxFileSizeMB := fs.Int64("m", config.MaxFileSize/(1024*1024), "max upload size (in MiB)")
	urlExpiryMinutes := fs.Int("x", int(config.URLExpiry.Minutes()), "signed url expiry (in minutes)")

	fs.StringVar(&config.ScannerCommand, "v", config.ScannerCommand, "scan engine command")
	fs.BoolVar(&config.ScanFailClosed, "f", config.ScanFailClosed, "fail closed when scan engine is unavailable")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.MaxFileSize = *maxFileSizeMB * 1024 * 1024
	config.URLExpiry = time.Duration(*urlExpiryMinutes) * time.Minute
}
