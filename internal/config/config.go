package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models pulse.yml.
type Config struct {
	Organization struct {
		ID       string `yaml:"id" json:"id"`
		Name     string `yaml:"name" json:"name"`
		Timezone string `yaml:"timezone" json:"timezone"`
	} `yaml:"organization" json:"organization"`
	Workbodies struct {
		Types []string `yaml:"types" json:"types"`
	} `yaml:"workbodies" json:"workbodies"`
	Meetings struct {
		DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`
	} `yaml:"meetings" json:"meetings"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles" json:"roles"`
	} `yaml:"rbac" json:"rbac"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

type RBACRole struct {
	Description string   `yaml:"description" json:"description"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	Secret         string   `yaml:"secret" json:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with pulse config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Organization.ID == "" {
		return fmt.Errorf("config.organization.id is required")
	}
	if _, err := c.loadLocation(); err != nil {
		return fmt.Errorf("config.organization.timezone invalid: %w", err)
	}
	if len(c.Workbodies.Types) == 0 {
		return fmt.Errorf("config.workbodies.types is required")
	}
	seen := map[string]bool{}
	for _, t := range c.Workbodies.Types {
		if t == "" {
			return fmt.Errorf("config.workbodies.types contains empty type")
		}
		if seen[t] {
			return fmt.Errorf("workbody type %s listed twice", t)
		}
		seen[t] = true
	}
	if c.Meetings.DefaultDurationMinutes < 0 {
		return fmt.Errorf("config.meetings.default_duration_minutes must not be negative")
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["admin"]; !ok {
			return fmt.Errorf("config.rbac.roles must include admin")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout", i)
		}
	}
	return nil
}

// Location returns the zone meeting dates and times are interpreted in.
func (c *Config) Location() *time.Location {
	loc, err := c.loadLocation()
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) loadLocation() (*time.Location, error) {
	if c.Organization.Timezone == "" || c.Organization.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Organization.Timezone)
}

// MeetingDuration is the length assumed for calendar exports.
func (c *Config) MeetingDuration() time.Duration {
	if c.Meetings.DefaultDurationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Meetings.DefaultDurationMinutes) * time.Minute
}

// HasWorkbodyType reports whether t is a configured workbody type.
func (c *Config) HasWorkbodyType(t string) bool {
	for _, known := range c.Workbodies.Types {
		if known == t {
			return true
		}
	}
	return false
}

// Permissions returns the union of permissions granted by roles.
func (c *Config) Permissions(roles []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range roles {
		role, ok := c.RBAC.Roles[r]
		if !ok {
			continue
		}
		for _, p := range role.Permissions {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "pulse.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgID string) string {
	return fmt.Sprintf(defaultTemplate, orgID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for an organization.
func Default(orgID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(orgID))).Decode(&cfg)
	cfg.Organization.ID = orgID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `organization:
  id: %s
  name: PEC
  timezone: Local

workbodies:
  types: [committee, working_group, task_force]

meetings:
  default_duration_minutes: 60

rbac:
  roles:
    admin:
      description: "Full access, including role management"
      permissions:
        - workbody.read
        - workbody.write
        - meeting.read
        - meeting.write
        - action.read
        - action.write
        - event.read
        - rbac.manage
    secretary:
      description: "Schedules meetings and tracks actions"
      permissions:
        - workbody.read
        - meeting.read
        - meeting.write
        - action.read
        - action.write
        - event.read
    viewer:
      description: "Read-only dashboard access"
      permissions:
        - workbody.read
        - meeting.read
        - action.read
`
