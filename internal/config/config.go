package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
)

// Config is the dcat configuration file.
type Config struct {
	MachineName string           `toml:"machine_name"`
	BaseDir     string           `toml:"base_dir"`
	LogDir      string           `toml:"log_dir"`
	LogLevel    string           `toml:"log_level"` // "debug", "info", "warn" or "error"
	Database    DatabaseConfig   `toml:"database"`
	Hashing     HashingConfig    `toml:"hashing"`
	Blobs       BlobsConfig      `toml:"blobs"`
	Filesystem  FilesystemConfig `toml:"filesystem"`
	Vaults      []VaultConfig    `toml:"vaults"`
	Encryption  EncryptionConfig `toml:"encryption"`
}

// DatabaseConfig selects the catalog store.
// The Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// HashingConfig tunes content fingerprints and hash sweeps.
type HashingConfig struct {
	Digest     string `toml:"digest"`   // "sha1", "sha256" or "blake3"
	Encoding   string `toml:"encoding"` // "base64", "hex" or "HEX"
	BufferSize int    `toml:"buffer_size"`
	BatchSize  int    `toml:"batch_size"`
	MaxRows    int    `toml:"max_rows"`
}

// BlobsConfig controls how document payloads are stored.
type BlobsConfig struct {
	MinCompressSize int    `toml:"min_compress_size"`
	Framing         string `toml:"framing"` // "zlib", "deflate" or "none"
	Level           string `toml:"level"`   // "none", "fast", "default" or "best"
}

// FilesystemConfig holds scan settings.
type FilesystemConfig struct {
	Ignore     []string `toml:"ignore"`
	SkipHidden bool     `toml:"skip_hidden"`
}

// VaultConfig describes where catalog snapshots are kept.
// The Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3" or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // S3-compatible services
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig selects how snapshots are sealed before upload.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig returns a Config with defaults under baseDir.
func NewConfig(machineName, baseDir string) *Config {
	return &Config{
		MachineName: machineName,
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		LogLevel:    "info",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Hashing: HashingConfig{
			Digest:     "sha1",
			Encoding:   "base64",
			BufferSize: 4096,
			BatchSize:  50,
			MaxRows:    32767,
		},
		Blobs: BlobsConfig{
			MinCompressSize: 1024,
			Framing:         "zlib",
			Level:           "default",
		},
		Filesystem: FilesystemConfig{
			Ignore:     []string{".git", "node_modules", "*.tmp"},
			SkipHidden: true,
		},
		Vaults: []VaultConfig{{
			Type:        "filesystem",
			Name:        "local",
			FSVaultRoot: filepath.Join(baseDir, "vault"),
		}},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "dcat.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "dcat.key"),
		},
	}
}

// Validate checks required fields and enumerations.
func (c *Config) Validate() error {
	var errs []error
	check := func(field, value string, allowed ...string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s: %q is not one of %v", field, value, allowed))
		}
	}

	if c.MachineName == "" {
		errs = append(errs, errors.New("machine_name is required"))
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required"))
	}
	check("log_level", c.LogLevel, "", "debug", "info", "warn", "error")

	check("database.type", c.Database.Type, "sqlite", "memory")
	if c.Database.Type == "sqlite" && c.Database.DataDir == "" {
		errs = append(errs, errors.New("database.data_dir is required for sqlite"))
	}

	check("hashing.digest", c.Hashing.Digest, "", "sha1", "sha256", "blake3")
	check("hashing.encoding", c.Hashing.Encoding, "", "base64", "hex", "HEX")
	if c.Hashing.BatchSize < 0 || c.Hashing.MaxRows < 0 || c.Hashing.BufferSize < 0 {
		errs = append(errs, errors.New("hashing sizes must not be negative"))
	}

	check("blobs.framing", c.Blobs.Framing, "", "none", "zlib", "deflate")
	check("blobs.level", c.Blobs.Level, "", "none", "fast", "default", "best")

	for i, v := range c.Vaults {
		field := fmt.Sprintf("vaults[%d]", i)
		check(field+".type", v.Type, "memory", "filesystem", "s3")
		switch {
		case v.Type == "filesystem" && v.FSVaultRoot == "":
			errs = append(errs, fmt.Errorf("%s.fs_vault_root is required", field))
		case v.Type == "s3" && v.S3Bucket == "":
			errs = append(errs, fmt.Errorf("%s.s3_bucket is required", field))
		case v.Type == "s3" && (v.S3AccessKeyID == "") != (v.S3SecretAccessKey == ""):
			errs = append(errs, fmt.Errorf("%s: s3 access key id and secret go together", field))
		}
	}

	check("encryption.type", c.Encryption.Type, "", "none", "age", "test")
	if c.Encryption.Type == "age" && (c.Encryption.PublicKeyPath == "" || c.Encryption.PrivateKeyPath == "") {
		errs = append(errs, errors.New("encryption key paths are required for age"))
	}

	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from r.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Write encodes cfg to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates the Config at path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file may hold S3 secrets.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file. An existing file is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
