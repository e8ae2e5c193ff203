package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Storage.Timeout != 5*time.Second || cfg.Auth.SessionTTL != 8*time.Hour {
		t.Fatalf("unexpected durations: %+v", cfg.Storage)
	}
	if cfg.Intake.MaxAttachmentBytes != 5*1024*1024 {
		t.Fatalf("unexpected attachment ceiling %d", cfg.Intake.MaxAttachmentBytes)
	}
	if len(cfg.Catalog()) != 6 {
		t.Fatalf("expected built-in catalog")
	}
}

func TestFromYAMLOverlaysDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("storage:\n  driver: file\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.Driver != DriverFile {
		t.Fatalf("driver not applied")
	}
	if cfg.Storage.ReadRetries != 3 || cfg.Intake.PhoneCountryCode != "211" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"driver":   "storage:\n  driver: postgres\n",
		"cc":       "intake:\n  phone_country_code: \"+211\"\n",
		"prefix":   "intake:\n  reference_prefix: \"req\"\n",
		"webhook":  "webhooks:\n  - url: ftp://x\n",
		"category": "categories:\n  - value: water\n    label: Water\n",
		"yaml":     "storage: [",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestCustomCatalog(t *testing.T) {
	cfg, err := FromYAML([]byte("categories:\n  - value: water\n    label: Water Services\n    services:\n      - value: borehole-repair\n        label: Borehole Repair\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cat, ok := cfg.Catalog().Find("water")
	if !ok || !cat.HasService("borehole-repair") {
		t.Fatalf("custom catalog not used")
	}
}

func TestLoadOptionalAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("expected defaults, got %v %v", cfg, err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected missing config error")
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load written default: %v", err)
	}
}
