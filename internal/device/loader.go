package device

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source provides the device list the gateway routes.
type Source interface {
	Devices(ctx context.Context) ([]Device, error)
}

// deviceFile is the layout of Devices.yaml.
type deviceFile struct {
	Devices []Device `yaml:"devices"`
}

// Parse decodes a device file and validates every participating device.
func Parse(data []byte) ([]Device, error) {
	var f deviceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing device file: %w", err)
	}
	if err := ValidateList(f.Devices); err != nil {
		return nil, err
	}
	return f.Devices, nil
}

// LoadFile reads and parses a device file.
func LoadFile(path string) ([]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading device file: %w", err)
	}
	return Parse(data)
}

// FileSource reads devices from a YAML file on every call, so a reload picks
// up edits.
type FileSource struct {
	Path string
}

// Devices implements Source.
func (s FileSource) Devices(_ context.Context) ([]Device, error) {
	return LoadFile(s.Path)
}

// StaticSource serves a fixed device list.
type StaticSource []Device

// Devices implements Source. The result is a copy of the list.
func (s StaticSource) Devices(_ context.Context) ([]Device, error) {
	out := make([]Device, len(s))
	copy(out, s)
	return out, nil
}
