package loader

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "def.yaml")
	content := "StartAt: First\nStates:\n  First:\n    Type: Succeed\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test definition: %v", err)
	}

	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if def["StartAt"] != "First" {
		t.Errorf("expected StartAt 'First', got %v", def["StartAt"])
	}
	states, ok := def["States"].(map[string]any)
	if !ok {
		t.Fatalf("expected States to decode as map[string]any, got %T", def["States"])
	}
	first, ok := states["First"].(map[string]any)
	if !ok {
		t.Fatalf("expected States.First to decode as map[string]any, got %T", states["First"])
	}
	if first["Type"] != "Succeed" {
		t.Errorf("expected Type 'Succeed', got %v", first["Type"])
	}
}

func TestLoad_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "def.json")
	content := `{"StartAt": "First", "States": {"First": {"Type": "Succeed"}}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test definition: %v", err)
	}

	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if def["StartAt"] != "First" {
		t.Errorf("expected StartAt 'First', got %v", def["StartAt"])
	}
}

func TestLoad_IntsNormalizeToFloat64(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "def.yaml")
	content := "StartAt: Wait1\nStates:\n  Wait1:\n    Type: Wait\n    Seconds: 5\n    End: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test definition: %v", err)
	}

	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	states := def["States"].(map[string]any)
	wait := states["Wait1"].(map[string]any)
	seconds, ok := wait["Seconds"].(float64)
	if !ok {
		t.Fatalf("expected Seconds to normalize to float64, got %T", wait["Seconds"])
	}
	if seconds != 5 {
		t.Errorf("expected Seconds 5, got %v", seconds)
	}
}

func TestLoad_NonObjectRootIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "def.yaml")
	if err := os.WriteFile(path, []byte("- just\n- a\n- list\n"), 0o644); err != nil {
		t.Fatalf("failed to write test definition: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected an error when the definition root is not an object")
	}
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
