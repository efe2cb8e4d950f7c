package sftp

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Errors specific to the SFTP backend.
var (
	ErrHostRequired = errors.New("sftp: host is required")
	ErrUserRequired = errors.New("sftp: user is required")
)

// Config holds configuration for the SFTP backend.
type Config struct {
	// Host is the SFTP server hostname or IP address (required).
	Host string

	// Port is the SSH port. Default: 22.
	Port int

	// User is the SSH username (required).
	User string

	// Password is the SSH password.
	// Either Password or KeyFile must be provided.
	Password string

	// KeyFile is the path to an SSH private key file.
	// Either Password or KeyFile must be provided.
	KeyFile string

	// KeyPassphrase is the passphrase for encrypted private keys.
	KeyPassphrase string

	// Root is the base directory on the remote server.
	// All paths are relative to this directory.
	Root string

	// KnownHostsFile is the path to the known_hosts file.
	// If empty, host key verification is disabled (insecure).
	KnownHostsFile string

	// FilePermissions is applied to files created by writers. Zero leaves
	// the server default.
	FilePermissions os.FileMode

	// Timeout is the connection timeout in seconds.
	// Default: 30.
	Timeout int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Port:    22,
		Timeout: 30,
	}
}

// envPrefix is prepended to the upper-cased ConfigFromMap key, so
// ICONVFILE_SFTP_KEY_FILE sets key_file.
const envPrefix = "ICONVFILE_SFTP_"

var envKeys = []string{
	"host", "port", "user", "password", "key_file", "key_passphrase",
	"root", "known_hosts", "timeout", "file_mode",
}

// ConfigFromEnv creates a Config from ICONVFILE_SFTP_* variables, e.g.
// ICONVFILE_SFTP_HOST or ICONVFILE_SFTP_KNOWN_HOSTS.
func ConfigFromEnv() Config {
	m := make(map[string]string)
	for _, key := range envKeys {
		if v := os.Getenv(envPrefix + strings.ToUpper(key)); v != "" {
			m[key] = v
		}
	}
	return ConfigFromMap(m)
}

// ConfigFromMap creates a Config from a string map. Keys: host, port, user,
// pass or password, key_file, key_passphrase, root, known_hosts, timeout
// (seconds) and file_mode (octal, e.g. "0640"). Unparsable numbers keep
// their defaults.
func ConfigFromMap(m map[string]string) Config {
	config := DefaultConfig()

	if v, ok := m["pass"]; ok {
		config.Password = v
	}
	for key, dst := range map[string]*string{
		"host":           &config.Host,
		"user":           &config.User,
		"password":       &config.Password,
		"key_file":       &config.KeyFile,
		"key_passphrase": &config.KeyPassphrase,
		"root":           &config.Root,
		"known_hosts":    &config.KnownHostsFile,
	} {
		if v, ok := m[key]; ok {
			*dst = v
		}
	}
	for key, dst := range map[string]*int{
		"port":    &config.Port,
		"timeout": &config.Timeout,
	} {
		if n, err := strconv.Atoi(m[key]); err == nil && n > 0 {
			*dst = n
		}
	}
	if mode, err := strconv.ParseUint(m["file_mode"], 8, 32); err == nil {
		config.FilePermissions = os.FileMode(mode)
	}

	return config
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Host == "" {
		return ErrHostRequired
	}
	if c.User == "" {
		return ErrUserRequired
	}
	return nil
}
