package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"citizenportal/internal/config"
	"citizenportal/internal/store"
)

func TestOpenDefaultsToSQLite(t *testing.T) {
	rt, err := Open(context.Background(), Options{Workspace: t.TempDir(), JWTSecret: "s"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	if _, ok := rt.Engine.Store.(*store.FileStore); ok {
		t.Fatalf("expected sqlite adapter by default")
	}
	if rt.Staff.Secret != "s" {
		t.Fatalf("secret override ignored")
	}
}

func TestOpenFileDriver(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte("storage:\n  driver: file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rt, err := Open(context.Background(), Options{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	if _, ok := rt.Engine.Store.(*store.FileStore); !ok {
		t.Fatalf("expected file adapter, got %T", rt.Engine.Store)
	}
}
