package s3

import (
	"os"
)

// Config holds configuration for the S3 backend.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Region is the AWS region (e.g., "us-east-1").
	// If empty, uses AWS_REGION or AWS_DEFAULT_REGION environment variable.
	Region string

	// Endpoint is a custom endpoint URL for S3-compatible services.
	// Examples:
	//   - MinIO: "http://localhost:9000"
	//   - Cloudflare R2: "https://<account_id>.r2.cloudflarestorage.com"
	// Leave empty for AWS S3.
	Endpoint string

	// Prefix is an optional prefix for all keys.
	Prefix string

	// AccessKeyID is the AWS access key ID.
	// If empty, uses AWS_ACCESS_KEY_ID environment variable or IAM role.
	AccessKeyID string

	// SecretAccessKey is the AWS secret access key.
	SecretAccessKey string

	// SessionToken is an optional session token for temporary credentials.
	SessionToken string

	// UsePathStyle forces path-style addressing instead of virtual-hosted-style.
	// Required for MinIO.
	UsePathStyle bool

	// ContentType is stored on every object written. Default: text/plain.
	ContentType string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ContentType: "text/plain; charset=utf-8",
	}
}

// envKeys maps environment variables onto ConfigFromMap keys. For a key
// named by several variables the first one set wins.
var envKeys = []struct{ env, key string }{
	{"ICONVFILE_S3_BUCKET", "bucket"},
	{"AWS_S3_BUCKET", "bucket"},
	{"ICONVFILE_S3_REGION", "region"},
	{"AWS_REGION", "region"},
	{"AWS_DEFAULT_REGION", "region"},
	{"ICONVFILE_S3_ENDPOINT", "endpoint"},
	{"ICONVFILE_S3_PREFIX", "prefix"},
	{"ICONVFILE_S3_USE_PATH_STYLE", "use_path_style"},
	{"ICONVFILE_S3_CONTENT_TYPE", "content_type"},
	{"AWS_ACCESS_KEY_ID", "access_key_id"},
	{"AWS_SECRET_ACCESS_KEY", "secret_access_key"},
	{"AWS_SESSION_TOKEN", "session_token"},
}

// ConfigFromEnv creates a Config from the variables listed in envKeys.
func ConfigFromEnv() Config {
	m := make(map[string]string)
	for _, e := range envKeys {
		if _, set := m[e.key]; set {
			continue
		}
		if v := os.Getenv(e.env); v != "" {
			m[e.key] = v
		}
	}
	return ConfigFromMap(m)
}

// ConfigFromMap creates a Config from a string map. Keys: bucket, region,
// endpoint, prefix, access_key_id, secret_access_key, session_token,
// use_path_style ("true" or "1") and content_type.
func ConfigFromMap(m map[string]string) Config {
	config := DefaultConfig()

	for key, dst := range map[string]*string{
		"bucket":            &config.Bucket,
		"region":            &config.Region,
		"endpoint":          &config.Endpoint,
		"prefix":            &config.Prefix,
		"access_key_id":     &config.AccessKeyID,
		"secret_access_key": &config.SecretAccessKey,
		"session_token":     &config.SessionToken,
	} {
		if v, ok := m[key]; ok {
			*dst = v
		}
	}
	if v := m["use_path_style"]; v == "true" || v == "1" {
		config.UsePathStyle = true
	}
	if v := m["content_type"]; v != "" {
		config.ContentType = v
	}

	return config
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return ErrBucketRequired
	}
	return nil
}
