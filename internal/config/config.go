package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultSeed is the default reproducibility seed.
	DefaultSeed = 42

	// DefaultSprintLengthDays is the default sprint length.
	DefaultSprintLengthDays = 14
)

// Config holds all configuration for orgforge.
type Config struct {
	Industry   string           `mapstructure:"industry"`
	Company    CompanyConfig    `mapstructure:"company"`
	TimeWindow TimeWindowConfig `mapstructure:"time_window"`
	Org        OrgConfig        `mapstructure:"org"`
	Project    ProjectConfig    `mapstructure:"project"`
	Volumes    VolumesConfig    `mapstructure:"volumes"`
	Mail       MailConfig       `mapstructure:"mail"`
	Outputs    []string         `mapstructure:"outputs"`
	Seed       int64            `mapstructure:"seed"`
	OutputDir  string           `mapstructure:"output_dir"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Claude     ClaudeConfig     `mapstructure:"claude"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CompanyConfig describes the fictitious company.
type CompanyConfig struct {
	Name    string   `mapstructure:"name"`
	Mission string   `mapstructure:"mission"`
	Tone    string   `mapstructure:"tone"`
	Values  []string `mapstructure:"values"`
}

// TimeWindowConfig bounds the simulated activity window.
type TimeWindowConfig struct {
	Start            string `mapstructure:"start"`
	End              string `mapstructure:"end"`
	Timezone         string `mapstructure:"timezone"`
	BusinessDaysOnly bool   `mapstructure:"business_days_only"`
}

// OrgConfig describes the generated team shape.
type OrgConfig struct {
	TeamName    string    `mapstructure:"team_name"`
	Geo         []string  `mapstructure:"geo"`
	Levels      []string  `mapstructure:"levels"`
	ManagerSpan SpanRange `mapstructure:"manager_span"`
}

// ProjectConfig describes the single generated project.
type ProjectConfig struct {
	Key              string `mapstructure:"key"`
	Name             string `mapstructure:"name"`
	SprintLengthDays int    `mapstructure:"sprint_length_days"`
}

// SpanRange is an inclusive min/max bound.
type SpanRange struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

// VolumesConfig bounds generated data volume.
type VolumesConfig struct {
	JiraTicketsInWindow    SpanRange `mapstructure:"jira_tickets_in_window"`
	EmailsPerPersonPerWeek SpanRange `mapstructure:"emails_per_person_per_week"`
}

// MailConfig shapes mailbox generation.
type MailConfig struct {
	Categories  []string  `mapstructure:"categories"`
	ThreadDepth SpanRange `mapstructure:"thread_depth"`
}

// CheckpointConfig holds checkpoint persistence settings.
type CheckpointConfig struct {
	Dir string `mapstructure:"dir"`
}

// ClaudeConfig holds Anthropic Claude API settings.
type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s}", maskAPIKey(c.APIKey), c.Model)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// GraphConfig holds optional Neo4j graph export settings.
type GraphConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("industry", "fintech_saas")
	v.SetDefault("company.name", "Acme Pay")
	v.SetDefault("company.tone", "pragmatic")

	v.SetDefault("time_window.start", "2025-06-02")
	v.SetDefault("time_window.end", "2025-06-27")
	v.SetDefault("time_window.timezone", "Asia/Kolkata")
	v.SetDefault("time_window.business_days_only", true)

	v.SetDefault("org.team_name", "Payments")
	v.SetDefault("org.levels", []string{"Jr", "Sr", "TL", "Mgr"})
	v.SetDefault("org.manager_span.min", 4)
	v.SetDefault("org.manager_span.max", 8)

	v.SetDefault("project.key", "PAY")
	v.SetDefault("project.name", "Payments Platform")
	v.SetDefault("project.sprint_length_days", DefaultSprintLengthDays)

	v.SetDefault("volumes.jira_tickets_in_window.min", 20)
	v.SetDefault("volumes.jira_tickets_in_window.max", 40)
	v.SetDefault("volumes.emails_per_person_per_week.min", 25)
	v.SetDefault("volumes.emails_per_person_per_week.max", 60)

	v.SetDefault("mail.categories", []string{
		"work", "managerial", "customer", "corporate", "hr",
		"vendor", "security", "event", "facilities", "spam", "phishing_sim",
	})
	v.SetDefault("mail.thread_depth.min", 2)
	v.SetDefault("mail.thread_depth.max", 6)

	v.SetDefault("outputs", []string{"jira", "email"})
	v.SetDefault("seed", DefaultSeed)
	v.SetDefault("output_dir", "out")
	v.SetDefault("checkpoint.dir", ".checkpoints")

	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")

	v.SetDefault("graph.enabled", false)
	v.SetDefault("graph.uri", "neo4j://localhost:7687")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.database", "neo4j")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".orgforge"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("ORGFORGE")
	v.AutomaticEnv()

	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("claude.model", "ORGFORGE_CLAUDE_MODEL")
	_ = v.BindEnv("seed", "ORGFORGE_SEED")
	_ = v.BindEnv("industry", "ORGFORGE_INDUSTRY")
	_ = v.BindEnv("time_window.start", "ORGFORGE_TIME_WINDOW_START")
	_ = v.BindEnv("time_window.end", "ORGFORGE_TIME_WINDOW_END")
	_ = v.BindEnv("output_dir", "ORGFORGE_OUTPUT_DIR")
	_ = v.BindEnv("checkpoint.dir", "ORGFORGE_CHECKPOINT_DIR")
	_ = v.BindEnv("graph.uri", "ORGFORGE_GRAPH_URI")
	_ = v.BindEnv("graph.password", "ORGFORGE_GRAPH_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK — use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Industry == "" {
		return fmt.Errorf("industry must not be empty")
	}
	if c.Company.Name == "" {
		return fmt.Errorf("company.name must not be empty")
	}
	if c.TimeWindow.Start == "" || c.TimeWindow.End == "" {
		return fmt.Errorf("time_window.start and time_window.end must be set")
	}
	if _, err := time.LoadLocation(c.TimeWindow.Timezone); err != nil {
		return fmt.Errorf("time_window.timezone %q: %w", c.TimeWindow.Timezone, err)
	}
	if c.Org.TeamName == "" {
		return fmt.Errorf("org.team_name must not be empty")
	}
	if c.Org.ManagerSpan.Min <= 0 || c.Org.ManagerSpan.Max < c.Org.ManagerSpan.Min {
		return fmt.Errorf("org.manager_span must be a positive min/max range")
	}
	if c.Project.Key == "" {
		return fmt.Errorf("project.key must not be empty")
	}
	if c.Project.SprintLengthDays <= 0 {
		return fmt.Errorf("project.sprint_length_days must be greater than 0")
	}
	if err := validateRange("volumes.jira_tickets_in_window", c.Volumes.JiraTicketsInWindow); err != nil {
		return err
	}
	if err := validateRange("volumes.emails_per_person_per_week", c.Volumes.EmailsPerPersonPerWeek); err != nil {
		return err
	}
	if len(c.Mail.Categories) == 0 {
		return fmt.Errorf("mail.categories must not be empty")
	}
	for _, out := range c.Outputs {
		if out != "jira" && out != "email" {
			return fmt.Errorf("invalid output type %q (must be jira or email)", out)
		}
	}
	if c.Graph.Enabled && c.Graph.URI == "" {
		return fmt.Errorf("graph.uri must be set when graph export is enabled")
	}
	return nil
}

// Location resolves the configured timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeWindow.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Window parses the configured start/end in the configured timezone.
// Accepts plain dates (2006-01-02) or RFC 3339 instants.
func (c *Config) Window() (start, end time.Time, err error) {
	loc := c.Location()
	start, err = parseDayOrInstant(c.TimeWindow.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing time_window.start: %w", err)
	}
	end, err = parseDayOrInstant(c.TimeWindow.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing time_window.end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("time_window.end precedes time_window.start")
	}
	return start, end, nil
}

func parseDayOrInstant(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.RFC3339, s, loc)
}

func validateRange(name string, r SpanRange) error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("%s must be a non-negative min/max range", name)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
