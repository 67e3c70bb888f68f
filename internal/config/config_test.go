package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_GET_ENV", "test_value")
	defer os.Unsetenv("TEST_GET_ENV")

	t.Run("existing env var", func(t *testing.T) {
		result := getEnv("TEST_GET_ENV", "default")
		if result != "test_value" {
			t.Errorf("getEnv() = %q, want %q", result, "test_value")
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		result := getEnv("TEST_MISSING_VAR", "default_value")
		if result != "default_value" {
			t.Errorf("getEnv() = %q, want %q", result, "default_value")
		}
	})

	t.Run("empty env var", func(t *testing.T) {
		os.Setenv("TEST_EMPTY_VAR", "")
		defer os.Unsetenv("TEST_EMPTY_VAR")

		result := getEnv("TEST_EMPTY_VAR", "default")
		if result != "default" {
			t.Errorf("getEnv() = %q, want %q (empty should use default)", result, "default")
		}
	})
}

func TestGetEnvInt(t *testing.T) {
	t.Run("valid integer", func(t *testing.T) {
		os.Setenv("TEST_INT", "42")
		defer os.Unsetenv("TEST_INT")

		result := getEnvInt("TEST_INT", 0)
		if result != 42 {
			t.Errorf("getEnvInt() = %d, want 42", result)
		}
	})

	t.Run("invalid integer", func(t *testing.T) {
		os.Setenv("TEST_INT_INVALID", "not-a-number")
		defer os.Unsetenv("TEST_INT_INVALID")

		result := getEnvInt("TEST_INT_INVALID", 99)
		if result != 99 {
			t.Errorf("getEnvInt() = %d, want 99 (default)", result)
		}
	})
}

func TestGetEnvDuration(t *testing.T) {
	t.Run("valid duration", func(t *testing.T) {
		os.Setenv("TEST_DURATION", "45s")
		defer os.Unsetenv("TEST_DURATION")

		result := getEnvDuration("TEST_DURATION", time.Minute)
		if result != 45*time.Second {
			t.Errorf("getEnvDuration() = %v, want 45s", result)
		}
	})

	t.Run("invalid duration", func(t *testing.T) {
		os.Setenv("TEST_DURATION_INVALID", "soon")
		defer os.Unsetenv("TEST_DURATION_INVALID")

		result := getEnvDuration("TEST_DURATION_INVALID", time.Minute)
		if result != time.Minute {
			t.Errorf("getEnvDuration() = %v, want 1m (default)", result)
		}
	})
}

func TestGetEnvSlice(t *testing.T) {
	os.Setenv("TEST_SLICE", "a, b ,c")
	defer os.Unsetenv("TEST_SLICE")

	result := getEnvSlice("TEST_SLICE", nil)
	if len(result) != 3 || result[0] != "a" || result[1] != "b" || result[2] != "c" {
		t.Errorf("getEnvSlice() = %v, want [a b c]", result)
	}
}

func TestGetEnvWithFallback(t *testing.T) {
	os.Setenv("TEST_FALLBACK_SECONDARY", "from-fallback")
	defer os.Unsetenv("TEST_FALLBACK_SECONDARY")

	result := getEnvWithFallback("TEST_FALLBACK_PRIMARY", "TEST_FALLBACK_SECONDARY", "default")
	if result != "from-fallback" {
		t.Errorf("getEnvWithFallback() = %q, want %q", result, "from-fallback")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Summarizer.Local.URL != "http://localhost:11434" {
		t.Errorf("Local.URL = %q", cfg.Summarizer.Local.URL)
	}
	if cfg.Summarizer.Parallelism != 5 {
		t.Errorf("Parallelism = %d, want 5", cfg.Summarizer.Parallelism)
	}
	if cfg.Crawler.MaxStepErrors != 3 {
		t.Errorf("MaxStepErrors = %d, want 3", cfg.Crawler.MaxStepErrors)
	}
	if cfg.StorageEnabled {
		t.Error("StorageEnabled should default to false without STORAGE_BUCKET")
	}
}

func TestLoad_CloudRequiresCredential(t *testing.T) {
	os.Setenv("SUMMARIZER_CLOUD_URL", "https://ollama.example.com")
	defer os.Unsetenv("SUMMARIZER_CLOUD_URL")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail when cloud URL is set without a credential")
	}

	os.Setenv("SUMMARIZER_CLOUD_KEY", "sk-test")
	defer os.Unsetenv("SUMMARIZER_CLOUD_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Summarizer.Cloud.Credential != "sk-test" {
		t.Errorf("Cloud.Credential = %q, want sk-test", cfg.Summarizer.Cloud.Credential)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	os.Setenv("PORT", "-1")
	defer os.Unsetenv("PORT")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a negative port")
	}
}
