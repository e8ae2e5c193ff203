package main

import (
	"path/filepath"
	"strings"
	"testing"

	"citizenportal/internal/db"
)

func TestHelpNamesStateDirectory(t *testing.T) {
	dir := filepath.Base(db.Dir(""))
	if !strings.Contains(rootCmd.Long, " "+dir+" state directory") {
		t.Fatalf("root help does not mention %s:\n%s", dir, rootCmd.Long)
	}
}
