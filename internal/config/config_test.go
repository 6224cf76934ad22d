package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Set required env vars for test
	os.Setenv("S3_BUCKET", "test-bucket")
	os.Setenv("PROCESSED_BUCKET", "test-processed")
	os.Setenv("SQS_QUEUE_URL", "https://sqs.test")
	os.Setenv("DYNAMODB_TABLE", "test-table")
	defer func() {
		os.Unsetenv("S3_BUCKET")
		os.Unsetenv("PROCESSED_BUCKET")
		os.Unsetenv("SQS_QUEUE_URL")
		os.Unsetenv("DYNAMODB_TABLE")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.AWS.RawBucket != "test-bucket" {
		t.Errorf("RawBucket = %v, want %v", cfg.AWS.RawBucket, "test-bucket")
	}
	if cfg.Upload.MaxUploadBytes != DefaultMaxUploadBytes {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.Upload.MaxUploadBytes, int64(DefaultMaxUploadBytes))
	}
	if cfg.Worker.MaxSourceDuration != time.Hour {
		t.Errorf("MaxSourceDuration = %v, want %v", cfg.Worker.MaxSourceDuration, time.Hour)
	}
}

func TestValidateAPI_MissingRequired(t *testing.T) {
	cfg := &Config{
		Environment: "dev",
		AWS:         AWSConfig{},
	}

	err := cfg.ValidateAPI()
	if err == nil {
		t.Error("ValidateAPI() expected error for missing required fields")
	}
}

func TestValidateAPI_ProductionRequiresSecret(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		AWS: AWSConfig{
			RawBucket:       "raw",
			ProcessedBucket: "processed",
			SQSQueueURL:     "url",
			DynamoDBTable:   "table",
		},
		API: APIConfig{}, // Missing secret
	}

	err := cfg.ValidateAPI()
	if err == nil {
		t.Error("ValidateAPI() expected error for missing JWT secret in production")
	}
}

func TestValidateWorker_MissingRequired(t *testing.T) {
	cfg := &Config{
		Environment: "dev",
		AWS:         AWSConfig{},
	}

	err := cfg.ValidateWorker()
	if err == nil {
		t.Error("ValidateWorker() expected error for missing required fields")
	}
}

func TestValidateWorker_AllPresent(t *testing.T) {
	cfg := &Config{
		Environment: "dev",
		AWS: AWSConfig{
			RawBucket:       "raw",
			ProcessedBucket: "processed",
			SQSQueueURL:     "url",
			DynamoDBTable:   "table",
		},
	}

	err := cfg.ValidateWorker()
	if err != nil {
		t.Errorf("ValidateWorker() unexpected error = %v", err)
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"prod", true},
		{"production", true},
		{"PROD", true},
		{"PRODUCTION", true},
		{"dev", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Environment: tt.env}
			if got := cfg.IsProduction(); got != tt.want {
				t.Errorf("IsProduction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetJWTSecret_Missing(t *testing.T) {
	cfg := &Config{
		Environment: "dev",
		API:         APIConfig{},
	}

	if _, err := cfg.GetJWTSecret(); err == nil {
		t.Error("GetJWTSecret() expected error when secret is unset")
	}
}

func TestGetJWTSecret_ProductionTooShort(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		API:         APIConfig{JWTSecret: "short"},
	}

	if _, err := cfg.GetJWTSecret(); err == nil {
		t.Error("GetJWTSecret() expected error for short secret in production")
	}
}

func TestGetEnvSlice(t *testing.T) {
	os.Setenv("TEST_SLICE", "a, b, c")
	defer os.Unsetenv("TEST_SLICE")

	result := getEnvSlice("TEST_SLICE", nil)
	if len(result) != 3 {
		t.Errorf("getEnvSlice() len = %d, want 3", len(result))
	}
	if result[0] != "a" || result[1] != "b" || result[2] != "c" {
		t.Errorf("getEnvSlice() = %v, want [a b c]", result)
	}
}

func TestGetEnvInt(t *testing.T) {
	os.Setenv("TEST_INT", "42")
	defer os.Unsetenv("TEST_INT")

	result := getEnvInt("TEST_INT", 10)
	if result != 42 {
		t.Errorf("getEnvInt() = %d, want 42", result)
	}

	// Test default
	result = getEnvInt("NONEXISTENT", 10)
	if result != 10 {
		t.Errorf("getEnvInt() = %d, want 10", result)
	}
}
