package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://jobboard@localhost/jobboard")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("DRIVE_CREDENTIALS_FILE", "/etc/jobboard/drive.json")
	t.Setenv("DRIVE_RESUME_FOLDER_ID", "folder-123")
}

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("ETCD_ENDPOINTS", "etcd-1:2379,etcd-2:2379")
	t.Setenv("UPLOAD_TIMEOUT", "45s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HttpListenAddr != ":8080" || cfg.LedgerBackend != "etcd" || cfg.LedgerMaxRetries != 5 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if len(cfg.EtcdEndpoints) != 2 || cfg.EtcdEndpoints[1] != "etcd-2:2379" {
		t.Errorf("unexpected etcd endpoints %v", cfg.EtcdEndpoints)
	}
	if cfg.UploadTimeout != 45*time.Second {
		t.Errorf("expected 45s upload timeout, got %s", cfg.UploadTimeout)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %s", cfg.SlogLevel())
	}
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JwtSecret") {
		t.Fatalf("expected JwtSecret validation error, got %v", err)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	setRequired(t)
	t.Setenv("LEDGER_BACKEND", "mysql")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unknown ledger backend")
	}
}
