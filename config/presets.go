package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	cperr "connpulse/internal/errors"
)

// Builtin returns a fresh copy of the built-in presets.
//
//	lan    shared LAN intermediary, conservative timing
//	wan    high-latency intermediary, few digits per cycle
//	local  loopback or in-memory pool
//	demo   small capacity, fast pulses; for the REPL and tests
func Builtin() map[string]Channel {
	return map[string]Channel{
		"lan":   {ListSize: 5, MaxSlots: 129, MaxValue: 128, PulseMs: 1000, SettlingMs: 100},
		"wan":   {ListSize: 4, MaxSlots: 33, MaxValue: 32, PulseMs: 3000, SettlingMs: 400},
		"local": {ListSize: 5, MaxSlots: 129, MaxValue: 128, PulseMs: 300, SettlingMs: 30},
		"demo":  {ListSize: 4, MaxSlots: 17, MaxValue: 16, PulseMs: 200, SettlingMs: 10},
	}
}

// presetFile is the on-disk layout:
//
//	presets:
//	  office:
//	    list_size: 4
//	    max_slots: 65
//	    ...
type presetFile struct {
	Presets map[string]Channel `yaml:"presets"`
}

// LoadPresetFile reads extra presets from a YAML file.
func LoadPresetFile(path string) (map[string]Channel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &cperr.ConfigError{
			Field:   "preset-file",
			Value:   path,
			Message: err.Error(),
		}
	}
	var pf presetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, &cperr.ConfigError{
			Field:   "preset-file",
			Value:   path,
			Message: fmt.Sprintf("parse: %v", err),
			Hint:    "expected a top-level 'presets:' map of name -> channel parameters",
		}
	}
	if len(pf.Presets) == 0 {
		return nil, &cperr.ConfigError{
			Field:   "preset-file",
			Value:   path,
			Message: "no presets defined",
		}
	}
	return pf.Presets, nil
}

// PresetNames returns the sorted names in m.
func PresetNames(m map[string]Channel) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func presetError(name string, m map[string]Channel) error {
	return &cperr.ConfigError{
		Field:   "preset",
		Value:   name,
		Message: cperr.ErrUnknownPreset.Error(),
		Hint:    "available: " + strings.Join(PresetNames(m), ", "),
	}
}
