package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir is a stand-in for t.Chdir, which requires Go 1.24+.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fintech_saas", cfg.Industry)
	assert.Equal(t, "Acme Pay", cfg.Company.Name)
	assert.Equal(t, "PAY", cfg.Project.Key)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, []string{"jira", "email"}, cfg.Outputs)
	assert.Equal(t, "Asia/Kolkata", cfg.TimeWindow.Timezone)
	assert.False(t, cfg.Graph.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ORGFORGE_SEED", "7")
	t.Setenv("ORGFORGE_INDUSTRY", "healthtech")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key-000000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, "healthtech", cfg.Industry)
	assert.Equal(t, "sk-ant-test-key-000000", cfg.Claude.APIKey)
}

func TestValidate(t *testing.T) {
	chdir(t, t.TempDir())
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty industry", func(c *Config) { c.Industry = "" }, "industry"},
		{"empty company name", func(c *Config) { c.Company.Name = "" }, "company.name"},
		{"missing window", func(c *Config) { c.TimeWindow.Start = "" }, "time_window"},
		{"bad timezone", func(c *Config) { c.TimeWindow.Timezone = "Mars/Olympus" }, "timezone"},
		{"empty team name", func(c *Config) { c.Org.TeamName = "" }, "team_name"},
		{"inverted manager span", func(c *Config) { c.Org.ManagerSpan = SpanRange{Min: 8, Max: 4} }, "manager_span"},
		{"empty project key", func(c *Config) { c.Project.Key = "" }, "project.key"},
		{"zero sprint length", func(c *Config) { c.Project.SprintLengthDays = 0 }, "sprint_length_days"},
		{"inverted ticket volume", func(c *Config) { c.Volumes.JiraTicketsInWindow = SpanRange{Min: 40, Max: 20} }, "jira_tickets_in_window"},
		{"no mail categories", func(c *Config) { c.Mail.Categories = nil }, "mail.categories"},
		{"unknown output", func(c *Config) { c.Outputs = []string{"slack"} }, "invalid output type"},
		{"graph without uri", func(c *Config) { c.Graph.Enabled = true; c.Graph.URI = "" }, "graph.uri"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Window(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	start, end, err := cfg.Window()
	require.NoError(t, err)
	assert.True(t, start.Before(end))
	assert.Equal(t, cfg.Location(), start.Location())

	cfg.TimeWindow.End = "2024-01-01"
	_, _, err = cfg.Window()
	assert.ErrorContains(t, err, "precedes")
}

func TestConfig_Location(t *testing.T) {
	cfg := Config{TimeWindow: TimeWindowConfig{Timezone: "Asia/Kolkata"}}
	loc := cfg.Location()
	require.NotNil(t, loc)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	bad := Config{TimeWindow: TimeWindowConfig{Timezone: "Nope/Nowhere"}}
	assert.Equal(t, time.UTC, bad.Location())
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "sk-a****0000", maskAPIKey("sk-ant-api-key-0000"))
	assert.Equal(t, "***", maskAPIKey("short"))
	assert.Equal(t, "***", maskAPIKey(""))
}
