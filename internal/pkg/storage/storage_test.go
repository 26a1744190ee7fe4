package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			"complete s3",
			Config{Provider: ProviderS3, S3: S3Config{AccessKeyID: "k", SecretAccessKey: "s", BucketName: "b"}},
			false,
		},
		{
			"s3 missing bucket",
			Config{Provider: ProviderS3, S3: S3Config{AccessKeyID: "k", SecretAccessKey: "s"}},
			true,
		},
		{
			"s3 missing credentials",
			Config{Provider: ProviderS3, S3: S3Config{BucketName: "b"}},
			true,
		},
		{
			"complete drive",
			Config{Provider: ProviderDrive, Drive: DriveConfig{AccessToken: "tok"}},
			false,
		},
		{
			"drive missing token",
			Config{Provider: ProviderDrive},
			true,
		},
		{
			"unknown provider",
			Config{Provider: "ftp"},
			true,
		},
		{
			// A drive section does not satisfy an s3 selection.
			"mismatched section",
			Config{Provider: ProviderS3, Drive: DriveConfig{AccessToken: "tok"}},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewObjectKey(t *testing.T) {
	key := NewObjectKey(42, "webp")
	assert.True(t, strings.HasPrefix(key, "users/42/"))
	assert.True(t, strings.HasSuffix(key, ".webp"))

	// Keys carry a nonce, so repeated calls never collide.
	assert.NotEqual(t, key, NewObjectKey(42, "webp"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFor("jpeg"))
	assert.Equal(t, "image/webp", ContentTypeFor("webp"))
	assert.Equal(t, "image/avif", ContentTypeFor("avif"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("tiff"))
}
