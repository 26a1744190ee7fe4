package storage

import (
	"errors"
	"fmt"

	"github.com/pixelmint/pixelmint/internal/pkg/env"
)

// Provider names for the storage backend selection.
const (
	ProviderS3    = "s3"
	ProviderDrive = "drive"
)

// Config selects exactly one storage backend. Only the section matching
// Provider is read; validation rejects configs whose selected section is
// incomplete.
type Config struct {
	Provider string

	S3    S3Config
	Drive DriveConfig
}

// S3Config covers AWS S3 and S3-compatible services (custom endpoint with
// path-style addressing).
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
}

// DriveConfig holds the Google Drive connection. The access token comes
// from an OAuth consent flow handled outside this package.
type DriveConfig struct {
	AccessToken string
	FolderID    string // Optional parent folder for uploads
}

// LoadConfig loads storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Provider: env.GetEnv("STORAGE_PROVIDER", ProviderS3),
		S3: S3Config{
			AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          env.GetEnv("S3_REGION", "us-east-1"),
			BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
			EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		},
		Drive: DriveConfig{
			AccessToken: env.GetEnv("DRIVE_ACCESS_TOKEN", ""),
			FolderID:    env.GetEnv("DRIVE_FOLDER_ID", ""),
		},
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that the selected provider section is complete.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderS3:
		if c.S3.AccessKeyID == "" {
			return errors.New("S3_ACCESS_KEY_ID is required for the s3 provider")
		}
		if c.S3.SecretAccessKey == "" {
			return errors.New("S3_SECRET_ACCESS_KEY is required for the s3 provider")
		}
		if c.S3.BucketName == "" {
			return errors.New("S3_BUCKET_NAME is required for the s3 provider")
		}
		return nil
	case ProviderDrive:
		if c.Drive.AccessToken == "" {
			return errors.New("DRIVE_ACCESS_TOKEN is required for the drive provider")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage provider %q", c.Provider)
	}
}
