package models

import "fmt"

// TestDescriptor is the static metadata a test unit reports about itself.
type TestDescriptor struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description" yaml:"description"`
	ConfigLabel  string `json:"config_label" yaml:"config_label"`
	ConfigUnit   string `json:"config_unit" yaml:"config_unit"`
	DefaultValue int    `json:"default_value" yaml:"default_value"`
	MinValue     int    `json:"min_value" yaml:"min_value"`
	MaxValue     int    `json:"max_value" yaml:"max_value"`

	// Experimental tests exercise optional site services (object cache,
	// outbound HTTP) and are not selected by default.
	Experimental bool `json:"experimental,omitempty" yaml:"experimental,omitempty"`
}

// Validate checks the descriptor's id and bounds.
func (d TestDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("test descriptor has no id")
	}
	if d.MinValue > d.DefaultValue || d.DefaultValue > d.MaxValue {
		return fmt.Errorf("test %s: default %d outside [%d, %d]", d.ID, d.DefaultValue, d.MinValue, d.MaxValue)
	}
	return nil
}

// Clamp bounds v to [MinValue, MaxValue].
func (d TestDescriptor) Clamp(v int) int {
	if v < d.MinValue {
		return d.MinValue
	}
	if v > d.MaxValue {
		return d.MaxValue
	}
	return v
}
