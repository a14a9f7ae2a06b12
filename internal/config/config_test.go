package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"readyforus/internal/domain"
)

func TestDefaultRoundTrip(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault("Sam Rivera")))
	if err != nil {
		t.Fatalf("parse default: %v", err)
	}
	if cfg.Participant.Name != "Sam Rivera" {
		t.Fatalf("name = %q", cfg.Participant.Name)
	}
	if cfg.DefaultMode() != domain.ModeLite {
		t.Fatalf("mode = %s", cfg.DefaultMode())
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	_, err := FromYAML([]byte("checkin:\n  default_mode: medium\n"))
	if err == nil || !strings.Contains(err.Error(), "default_mode") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateRejectsMissingSchemaPath(t *testing.T) {
	_, err := FromYAML([]byte("checkin:\n  schema_path: /no/such/file.yml\n"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("cfg = %v err = %v", cfg, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "readyforus.yml"), []byte(GenerateDefault("Sam")), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("cfg = %v err = %v", cfg, err)
	}
	if cfg.Participant.Name != "Sam" {
		t.Fatalf("name = %q", cfg.Participant.Name)
	}
}

func TestDefaultModeFull(t *testing.T) {
	cfg, err := FromYAML([]byte("checkin:\n  default_mode: full\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DefaultMode() != domain.ModeFull {
		t.Fatalf("mode = %s", cfg.DefaultMode())
	}
}
