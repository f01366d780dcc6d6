package db

import (
	"context"
	"io/fs"
	"strings"
	"testing"
)

func TestNewWithInvalidURL(t *testing.T) {
	_, err := New(context.Background(), "postgres://invalid:5432/nonexistent?connect_timeout=1")
	if err == nil {
		t.Fatal("expected error for invalid database URL, got nil")
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embedded, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %q", name)
		}
	}
	if len(ups) == 0 {
		t.Fatal("no migrations embedded")
	}
	for v := range ups {
		if !downs[v] {
			t.Errorf("migration %s has no down script", v)
		}
	}
}

func TestRunMigrationsRejectsBadURL(t *testing.T) {
	if err := RunMigrations("not-a-url", ""); err == nil {
		t.Fatal("expected error for malformed database URL")
	}
}
