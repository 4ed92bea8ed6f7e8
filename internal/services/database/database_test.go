package database

import (
	"path/filepath"
	"testing"

	"github.com/Egham-7/repurpose-api/internal/models"
)

func TestNewSQLite(t *testing.T) {
	db, err := New(models.DatabaseConfig{
		Type:         models.SQLite,
		FilePath:     filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer db.Close()

	if db.DriverName() != "sqlite3" {
		t.Fatalf("driver = %q, want sqlite3", db.DriverName())
	}
	if err := db.AutoMigrate(&models.User{}, &models.Session{}); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestNewRequiresSQLiteFilePath(t *testing.T) {
	if _, err := New(models.DatabaseConfig{Type: models.SQLite}); err == nil {
		t.Fatalf("expected error without file_path")
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	if _, err := New(models.DatabaseConfig{Type: "oracle"}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}
