// Package main implements the s3up command line uploader.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the uploader.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseHTTPS  bool
}

// loadConfig reads configuration from a .env file (if present) and
// environment variables. Credentials and endpoint have no sane defaults, so
// missing values are an error that names every absent variable at once.
func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Endpoint:  os.Getenv("S3UP_ENDPOINT"),
		AccessKey: os.Getenv("S3UP_ACCESS_KEY"),
		SecretKey: os.Getenv("S3UP_SECRET_KEY"),
		Bucket:    os.Getenv("S3UP_BUCKET"),
		Region:    getEnv("S3UP_REGION", "us-east-1"),
		UseHTTPS:  getEnv("S3UP_USE_HTTPS", "true") == "true",
	}

	var missing []string
	if cfg.Endpoint == "" {
		missing = append(missing, "S3UP_ENDPOINT")
	}
	if cfg.AccessKey == "" {
		missing = append(missing, "S3UP_ACCESS_KEY")
	}
	if cfg.SecretKey == "" {
		missing = append(missing, "S3UP_SECRET_KEY")
	}
	if cfg.Bucket == "" {
		missing = append(missing, "S3UP_BUCKET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// EndpointURL returns the endpoint with an explicit scheme.
func (c *Config) EndpointURL() string {
	if strings.Contains(c.Endpoint, "://") {
		return c.Endpoint
	}
	scheme := "https"
	if !c.UseHTTPS {
		scheme = "http"
	}
	return scheme + "://" + c.Endpoint
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
