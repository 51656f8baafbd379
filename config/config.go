package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	DefaultFormat string `yaml:"default_format,omitempty"`
	JiraURL       string `yaml:"jira_url,omitempty"`

	// Extraction settings
	PRField         string `yaml:"pr_field,omitempty"`
	FirstSourceOnly *bool  `yaml:"first_source_only,omitempty"`

	// Workflow status sets
	InProgressStatuses []string `yaml:"in_progress_statuses,omitempty"`
	ResolvedStatuses   []string `yaml:"resolved_statuses,omitempty"`

	// Metric derivation
	ApprovalKeywords  []string `yaml:"approval_keywords,omitempty"`
	NegativeDurations string   `yaml:"negative_durations,omitempty"`

	// Top-level config sections
	Bucket *BucketOverrides `yaml:"bucket,omitempty"`
	Fetch  *FetchOverrides  `yaml:"fetch,omitempty"`
}

// BucketOverrides customizes time bucketing.
type BucketOverrides struct {
	Mode *string `yaml:"mode,omitempty"`
	Days *int    `yaml:"days,omitempty"`
}

// FetchOverrides customizes the fetch phase.
type FetchOverrides struct {
	BatchSize    *int `yaml:"batch_size,omitempty"`
	CutoffMonths *int `yaml:"cutoff_months,omitempty"`
}

// Settings is the complete, merged set of runtime settings.
type Settings struct {
	DefaultFormat string
	JiraURL       string

	PRField         string
	FirstSourceOnly bool

	InProgressStatuses []string
	ResolvedStatuses   []string

	ApprovalKeywords  []string
	NegativeDurations string

	BucketMode   string
	BucketDays   int
	BatchSize    int
	CutoffMonths int
}

// DefaultSettings returns the default runtime settings.
func DefaultSettings() Settings {
	return Settings{
		DefaultFormat: "text",

		// The dedicated pull-request link field on self-hosted Jira.
		PRField:         "customfield_12310220",
		FirstSourceOnly: false,

		InProgressStatuses: []string{"In Progress"},
		ResolvedStatuses:   []string{"Resolved", "Done", "Closed"},

		ApprovalKeywords:  []string{"lgtm", "approve"},
		NegativeDurations: "clamp",

		BucketMode:   "weekly",
		BucketDays:   14,
		BatchSize:    20,
		CutoffMonths: 0,
	}
}

// GetSettings returns runtime settings with user overrides merged with defaults
func (c *Config) GetSettings() Settings {
	s := DefaultSettings()

	if c.DefaultFormat != "" {
		s.DefaultFormat = c.DefaultFormat
	}
	if c.JiraURL != "" {
		s.JiraURL = c.JiraURL
	}
	if c.PRField != "" {
		s.PRField = c.PRField
	}
	if c.FirstSourceOnly != nil {
		s.FirstSourceOnly = *c.FirstSourceOnly
	}
	if len(c.InProgressStatuses) > 0 {
		s.InProgressStatuses = c.InProgressStatuses
	}
	if len(c.ResolvedStatuses) > 0 {
		s.ResolvedStatuses = c.ResolvedStatuses
	}
	if len(c.ApprovalKeywords) > 0 {
		s.ApprovalKeywords = c.ApprovalKeywords
	}
	if c.NegativeDurations != "" {
		s.NegativeDurations = c.NegativeDurations
	}

	if c.Bucket != nil {
		if c.Bucket.Mode != nil {
			s.BucketMode = *c.Bucket.Mode
		}
		if c.Bucket.Days != nil {
			s.BucketDays = *c.Bucket.Days
		}
	}

	if c.Fetch != nil {
		if c.Fetch.BatchSize != nil {
			s.BatchSize = *c.Fetch.BatchSize
		}
		if c.Fetch.CutoffMonths != nil {
			s.CutoffMonths = *c.Fetch.CutoffMonths
		}
	}

	return s
}

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".prflow"
	}
	return filepath.Join(configDir, "prflow")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".prflow.yaml"
}

// ConfigFileExists returns true if the config file exists on disk
func ConfigFileExists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Load loads the configuration from disk.
// It first loads the global config from XDG config directory, then merges
// any local .prflow.yaml config on top (local values take precedence).
func Load() (*Config, error) {
	cfg := &Config{}

	// Load global config if it exists
	globalPath := ConfigPath()
	if _, err := os.Stat(globalPath); err == nil {
		data, err := os.ReadFile(globalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read global config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse global config file: %w", err)
		}
	}

	// Load local config if it exists and merge on top
	localPath := LocalConfigPath()
	if _, err := os.Stat(localPath); err == nil {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read local config file: %w", err)
		}

		var localCfg Config
		if err := yaml.Unmarshal(data, &localCfg); err != nil {
			return nil, fmt.Errorf("failed to parse local config file: %w", err)
		}

		cfg = mergeConfig(cfg, &localCfg)
	}

	return cfg, nil
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := &Config{}

	if local.DefaultFormat != "" {
		result.DefaultFormat = local.DefaultFormat
	} else {
		result.DefaultFormat = global.DefaultFormat
	}

	if local.JiraURL != "" {
		result.JiraURL = local.JiraURL
	} else {
		result.JiraURL = global.JiraURL
	}

	if local.PRField != "" {
		result.PRField = local.PRField
	} else {
		result.PRField = global.PRField
	}

	if local.FirstSourceOnly != nil {
		result.FirstSourceOnly = local.FirstSourceOnly
	} else {
		result.FirstSourceOnly = global.FirstSourceOnly
	}

	if len(local.InProgressStatuses) > 0 {
		result.InProgressStatuses = local.InProgressStatuses
	} else {
		result.InProgressStatuses = global.InProgressStatuses
	}

	if len(local.ResolvedStatuses) > 0 {
		result.ResolvedStatuses = local.ResolvedStatuses
	} else {
		result.ResolvedStatuses = global.ResolvedStatuses
	}

	if len(local.ApprovalKeywords) > 0 {
		result.ApprovalKeywords = local.ApprovalKeywords
	} else {
		result.ApprovalKeywords = global.ApprovalKeywords
	}

	if local.NegativeDurations != "" {
		result.NegativeDurations = local.NegativeDurations
	} else {
		result.NegativeDurations = global.NegativeDurations
	}

	result.Bucket = mergeBucket(global.Bucket, local.Bucket)
	result.Fetch = mergeFetch(global.Fetch, local.Fetch)

	return result
}

func mergeBucket(global, local *BucketOverrides) *BucketOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &BucketOverrides{}

	if global != nil {
		result.Mode = global.Mode
		result.Days = global.Days
	}
	if local != nil {
		if local.Mode != nil {
			result.Mode = local.Mode
		}
		if local.Days != nil {
			result.Days = local.Days
		}
	}

	if result.Mode == nil && result.Days == nil {
		return nil
	}
	return result
}

func mergeFetch(global, local *FetchOverrides) *FetchOverrides {
	if global == nil && local == nil {
		return nil
	}
	result := &FetchOverrides{}

	if global != nil {
		result.BatchSize = global.BatchSize
		result.CutoffMonths = global.CutoffMonths
	}
	if local != nil {
		if local.BatchSize != nil {
			result.BatchSize = local.BatchSize
		}
		if local.CutoffMonths != nil {
			result.CutoffMonths = local.CutoffMonths
		}
	}

	if result.BatchSize == nil && result.CutoffMonths == nil {
		return nil
	}
	return result
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	configDir := DefaultConfigDir()

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configPath := ConfigPath()
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetGitHubToken returns the GitHub token from the GITHUB_TOKEN environment variable.
// Following 12-factor app best practices, tokens are only read from the environment.
func (c *Config) GetGitHubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// GetJiraToken returns the Jira personal access token from JIRA_TOKEN.
func (c *Config) GetJiraToken() string {
	return os.Getenv("JIRA_TOKEN")
}

// GetJiraBasicAuth returns the Jira username and password from the
// environment, for cloud instances without PAT support.
func (c *Config) GetJiraBasicAuth() (username, password string) {
	return os.Getenv("JIRA_USERNAME"), os.Getenv("JIRA_PASSWORD")
}

// DefaultConfig returns a fully populated config with all default values.
// This is useful for generating a complete config file template.
func DefaultConfig() *Config {
	s := DefaultSettings()
	firstSourceOnly := s.FirstSourceOnly

	return &Config{
		DefaultFormat:      s.DefaultFormat,
		JiraURL:            "",
		PRField:            s.PRField,
		FirstSourceOnly:    &firstSourceOnly,
		InProgressStatuses: s.InProgressStatuses,
		ResolvedStatuses:   s.ResolvedStatuses,
		ApprovalKeywords:   s.ApprovalKeywords,
		NegativeDurations:  s.NegativeDurations,
		Bucket: &BucketOverrides{
			Mode: &s.BucketMode,
			Days: &s.BucketDays,
		},
		Fetch: &FetchOverrides{
			BatchSize:    &s.BatchSize,
			CutoffMonths: &s.CutoffMonths,
		},
	}
}

// ToYAML returns the config as a YAML string
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigPathInfo contains information about config file paths
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# prflow configuration file
# See: prflow config defaults  (for all available options)

# Jira base URL (required)
jira_url: https://issues.example.com

# Output format: text, json or csv
default_format: text

# Custom field holding pull-request links
# pr_field: customfield_12310220

# Time bucketing: daily, weekly, monthly or n_days
# bucket:
#   mode: weekly
#   days: 14

# Fetch tuning (optional)
# fetch:
#   batch_size: 20
#   cutoff_months: 6

# Workflow status sets (optional)
# in_progress_statuses: ["In Progress"]
# resolved_statuses: ["Resolved", "Done", "Closed"]
`
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}
