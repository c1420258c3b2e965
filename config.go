package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/storeit/server/pkg/quota"
	"github.com/storeit/server/pkg/storage"
)

// Config is the full service configuration. Values come from config.yaml
// (CONFIG_PATH overrides the location) with environment variables taking
// precedence over the file.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		Backend    string `yaml:"backend"` // disk or s3
		Root       string `yaml:"root"`
		Database   string `yaml:"database"`
		QuotaBytes int64  `yaml:"quota_bytes"`
	} `yaml:"storage"`
	S3 struct {
		Endpoint  string `yaml:"endpoint"`
		Region    string `yaml:"region"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
	} `yaml:"s3"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads the YAML config and applies env overrides. A missing
// file falls back to defaults; a missing JWT secret is fatal since every
// route requires authentication.
func LoadConfig() (*Config, error) {
	config := defaultConfig()

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}

	applyEnv(config)

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret must be set via STOREIT_JWT_SECRET or the config file")
	}
	if config.Storage.Backend == "s3" && (config.S3.AccessKey == "" || config.S3.SecretKey == "") {
		return nil, fmt.Errorf("S3 credentials are required when the s3 backend is selected")
	}
	return config, nil
}

func applyEnv(config *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&config.Server.Port, "STOREIT_PORT")
	setString(&config.Storage.Backend, "STOREIT_STORAGE_BACKEND")
	setString(&config.Storage.Root, "STOREIT_STORAGE_ROOT")
	setString(&config.Storage.Database, "STOREIT_DATABASE")
	setString(&config.S3.Endpoint, "STOREIT_S3_ENDPOINT")
	setString(&config.S3.Region, "STOREIT_S3_REGION")
	setString(&config.S3.Bucket, "STOREIT_S3_BUCKET")
	setString(&config.S3.AccessKey, "STOREIT_S3_ACCESS_KEY")
	setString(&config.S3.SecretKey, "STOREIT_S3_SECRET_KEY")
	setString(&config.Auth.JWTSecret, "STOREIT_JWT_SECRET")
	setString(&config.Logging.Level, "STOREIT_LOG_LEVEL")

	if v := os.Getenv("STOREIT_QUOTA_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			config.Storage.QuotaBytes = n
		}
	}
}

func defaultConfig() *Config {
	config := &Config{}
	config.Server.Port = "8080"
	config.Storage.Backend = "disk"
	config.Storage.Root = "./uploads"
	config.Storage.Database = "./storeit.db"
	config.Storage.QuotaBytes = quota.DefaultLimit
	config.S3.Region = "us-east-1"
	config.S3.Bucket = "storeit"
	config.Logging.Level = "info"
	return config
}

// blobStore builds the configured byte-storage backend.
func (c *Config) blobStore() (storage.BlobStore, error) {
	switch c.Storage.Backend {
	case "s3":
		return storage.NewS3Store(storage.S3Config{
			Endpoint:  c.S3.Endpoint,
			Region:    c.S3.Region,
			Bucket:    c.S3.Bucket,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
		})
	case "disk", "":
		return storage.NewDiskStore(c.Storage.Root)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
}
