package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"connmatrix/pkg/domain"
)

func TestMousePresetShape(t *testing.T) {
	preset := MousePreset()
	if preset.Name != "mouse" {
		t.Fatalf("unexpected name %q", preset.Name)
	}
	if len(preset.Classes) != 18 {
		t.Fatalf("expected 18 mouse classes, got %d", len(preset.Classes))
	}
	// First class is the layer 2/3 pyramidal population.
	cell := domain.Cell{ID: "c", TargetLayer: "2/3", Pyramidal: func() *bool { v := true; return &v }()}
	if !preset.Classes[0].Match(cell) {
		t.Fatalf("first mouse class must match L2/3 pyramidal cells")
	}
}

func TestHumanPresetShape(t *testing.T) {
	preset := HumanPreset()
	if len(preset.Classes) != 10 {
		t.Fatalf("expected 10 human classes, got %d", len(preset.Classes))
	}
	pyr := func(v bool) *bool { return &v }
	if !preset.Classes[0].Match(domain.Cell{TargetLayer: "2", Pyramidal: pyr(true)}) {
		t.Fatalf("first human class must match L2 pyramidal cells")
	}
	if !preset.Classes[1].Match(domain.Cell{TargetLayer: "2", Pyramidal: pyr(false)}) {
		t.Fatalf("second human class must match L2 nonpyramidal cells")
	}
	if preset.Classes[0].Match(domain.Cell{TargetLayer: "2"}) {
		t.Fatalf("cell without recorded morphology must match neither pyramidal class")
	}
}

func TestPresetByName(t *testing.T) {
	if _, err := PresetByName("mouse"); err != nil {
		t.Fatalf("mouse preset: %v", err)
	}
	_, err := PresetByName("zebrafish")
	var cfgErr domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for unknown preset, got %v", err)
	}
	names := PresetNames()
	if len(names) != 2 || names[0] != "human" || names[1] != "mouse" {
		t.Fatalf("unexpected preset names %v", names)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.json")
	payload := `{
		"name": "custom",
		"classes": [
			{"criteria": {"target_layer": "2/3", "cre_type": ["pvalb", "sst"]}},
			{"criteria": {"target_layer": "4"}, "label": "L4", "subtitle": "all"}
		]
	}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	preset, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if preset.Name != "custom" || len(preset.Classes) != 2 {
		t.Fatalf("unexpected preset %+v", preset)
	}
	if !preset.Classes[0].Match(domain.Cell{TargetLayer: "2/3", CreType: "sst"}) {
		t.Fatalf("set membership criterion must accept any listed value")
	}
	if label, _ := preset.Classes[1].Display(); label != "L4" {
		t.Fatalf("explicit display label must survive, got %q", label)
	}
}

func TestLoadFileRejectsBadConfigs(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"classes": []}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(empty); err == nil {
		t.Fatalf("config without classes must fail")
	}

	noCriteria := filepath.Join(dir, "nocriteria.json")
	if err := os.WriteFile(noCriteria, []byte(`{"classes": [{"label": "x"}]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(noCriteria); err == nil {
		t.Fatalf("class without criteria must fail")
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("missing file must fail")
	}
}
