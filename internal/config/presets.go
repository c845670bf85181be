// Package config provides the built-in cell class presets and loading of
// user-supplied matrix configurations from JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"connmatrix/pkg/domain"
)

// Preset is a named, ordered list of cell classes forming one matrix axis.
type Preset struct {
	Name    string
	Classes []domain.CellClass
}

// MousePreset returns the standard mouse cortex class set: layer 2/3
// pyramidal cells plus the cre-line populations per layer.
func MousePreset() Preset {
	defs := []map[string]any{
		{domain.AttrPyramidal: true, domain.AttrNeuroLayer: "2/3"},
		{domain.AttrCreType: "pvalb", domain.AttrNeuroLayer: "2/3"},
		{domain.AttrCreType: "sst", domain.AttrNeuroLayer: "2/3"},
		{domain.AttrCreType: "vip", domain.AttrNeuroLayer: "2/3"},
		{domain.AttrCreType: "rorb", domain.AttrNeuroLayer: "4"},
		{domain.AttrCreType: "nr5a1", domain.AttrNeuroLayer: "4"},
		{domain.AttrCreType: "pvalb", domain.AttrNeuroLayer: "4"},
		{domain.AttrCreType: "sst", domain.AttrNeuroLayer: "4"},
		{domain.AttrCreType: "vip", domain.AttrNeuroLayer: "4"},
		{domain.AttrCreType: "sim1", domain.AttrNeuroLayer: "5"},
		{domain.AttrCreType: "tlx3", domain.AttrNeuroLayer: "5"},
		{domain.AttrCreType: "pvalb", domain.AttrNeuroLayer: "5"},
		{domain.AttrCreType: "sst", domain.AttrNeuroLayer: "5"},
		{domain.AttrCreType: "vip", domain.AttrNeuroLayer: "5"},
		{domain.AttrCreType: "ntsr1", domain.AttrNeuroLayer: "6"},
		{domain.AttrCreType: "pvalb", domain.AttrNeuroLayer: "6"},
		{domain.AttrCreType: "sst", domain.AttrNeuroLayer: "6"},
		{domain.AttrCreType: "vip", domain.AttrNeuroLayer: "6"},
	}
	return Preset{Name: "mouse", Classes: buildClasses(defs)}
}

// HumanPreset returns the human cortex class set: pyramidal and
// nonpyramidal populations per layer.
func HumanPreset() Preset {
	defs := []map[string]any{
		{domain.AttrPyramidal: true, domain.AttrNeuroLayer: "2"},
		{domain.AttrPyramidal: false, domain.AttrNeuroLayer: "2"},
		{domain.AttrPyramidal: true, domain.AttrNeuroLayer: "3"},
		{domain.AttrPyramidal: false, domain.AttrNeuroLayer: "3"},
		{domain.AttrPyramidal: true, domain.AttrNeuroLayer: "4"},
		{domain.AttrPyramidal: false, domain.AttrNeuroLayer: "4"},
		{domain.AttrPyramidal: true, domain.AttrNeuroLayer: "5"},
		{domain.AttrPyramidal: false, domain.AttrNeuroLayer: "5"},
		{domain.AttrPyramidal: true, domain.AttrNeuroLayer: "6"},
		{domain.AttrPyramidal: false, domain.AttrNeuroLayer: "6"},
	}
	return Preset{Name: "human", Classes: buildClasses(defs)}
}

func buildClasses(defs []map[string]any) []domain.CellClass {
	classes := make([]domain.CellClass, 0, len(defs))
	for _, def := range defs {
		classes = append(classes, domain.NewCellClass(def))
	}
	return classes
}

var presets = map[string]func() Preset{
	"mouse": MousePreset,
	"human": HumanPreset,
}

// PresetByName resolves a built-in preset.
func PresetByName(name string) (Preset, error) {
	fn, ok := presets[name]
	if !ok {
		return Preset{}, domain.ConfigError{Reason: fmt.Sprintf("unknown preset %q (available: %v)", name, PresetNames())}
	}
	return fn(), nil
}

// PresetNames lists the built-in presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// classDef is the JSON shape of one class in a configuration file.
type classDef struct {
	Criteria map[string]any `json:"criteria"`
	Label    string         `json:"label,omitempty"`
	Subtitle string         `json:"subtitle,omitempty"`
}

// fileConfig is the JSON shape of a configuration file.
type fileConfig struct {
	Name    string     `json:"name"`
	Classes []classDef `json:"classes"`
}

// LoadFile reads a class preset from a JSON configuration file.
func LoadFile(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return Preset{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if len(fc.Classes) == 0 {
		return Preset{}, domain.ConfigError{Reason: fmt.Sprintf("config %s defines no cell classes", path)}
	}
	classes := make([]domain.CellClass, 0, len(fc.Classes))
	for i, def := range fc.Classes {
		if len(def.Criteria) == 0 {
			return Preset{}, domain.ConfigError{Reason: fmt.Sprintf("config %s: class %d has no criteria", path, i)}
		}
		class := domain.NewCellClass(def.Criteria)
		if def.Label != "" || def.Subtitle != "" {
			class = class.WithDisplay(def.Label, def.Subtitle)
		}
		classes = append(classes, class)
	}
	name := fc.Name
	if name == "" {
		name = path
	}
	return Preset{Name: name, Classes: classes}, nil
}
