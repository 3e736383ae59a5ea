package tools

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ShellPolicy restricts what the shell executor may run.
type ShellPolicy struct {
	Enabled         bool     `yaml:"enabled"`
	AllowedCommands []string `yaml:"allowed_commands"`
	BlockedPatterns []string `yaml:"blocked_patterns"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
}

// DevicePolicy restricts what the device executor may do.
type DevicePolicy struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedActions []string `yaml:"allowed_actions"`
}

// Policy is the operator-edited tool policy file.
type Policy struct {
	Shell          ShellPolicy       `yaml:"shell"`
	Device         DevicePolicy      `yaml:"device"`
	QueryTemplates map[string]string `yaml:"query_templates"`
}

// DefaultPolicy is a conservative baseline used when no policy file exists.
func DefaultPolicy() *Policy {
	return &Policy{
		Shell: ShellPolicy{
			Enabled:         true,
			AllowedCommands: []string{"ls", "cat", "grep", "head", "tail", "wc", "date", "uptime", "df", "echo", "pwd"},
			BlockedPatterns: []string{"rm -rf", "mkfs", "> /dev/", "sudo ", ":(){"},
			TimeoutSeconds:  8,
		},
		Device: DevicePolicy{
			Enabled:        true,
			AllowedActions: []string{"open_app", "open_url", "notify"},
		},
		QueryTemplates: map[string]string{},
	}
}

// LoadPolicy reads the policy file, falling back to the default policy when
// the file is absent.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultPolicy(), nil
	}
	if err != nil {
		return nil, err
	}

	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, err
	}
	return policy, nil
}
