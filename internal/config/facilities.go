package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFacilities is the catalog used when no facility file is configured.
var DefaultFacilities = []string{
	"Activity Center A",
	"Activity Center B",
	"Conference Room 1",
	"Conference Room 2",
	"Conference Room 3",
	"Conference Room 4",
	"Conference Room 5",
	"Conference Room 6",
}

// FacilityEntry is one item of the facility seed file.
type FacilityEntry struct {
	Name string `yaml:"name"`
}

// FacilityFile is the YAML layout of the facility seed file.
type FacilityFile struct {
	Facilities []FacilityEntry `yaml:"facilities"`
}

// LoadFacilities returns the facility names to seed. An empty path yields DefaultFacilities.
func LoadFacilities(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		out := make([]string, len(DefaultFacilities))
		copy(out, DefaultFacilities)
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facility file: %w", err)
	}

	var file FacilityFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse facility file %s: %w", path, err)
	}

	names := make([]string, 0, len(file.Facilities))
	for i, f := range file.Facilities {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return nil, fmt.Errorf("parse facility file %s: entry %d: %w", path, i+1, errors.New("name is required"))
		}
		names = append(names, name)
	}
	return names, nil
}
