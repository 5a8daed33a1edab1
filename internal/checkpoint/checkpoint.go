// Package checkpoint persists workflow progress so an interrupted run can
// resume from the last successful step. Two files with independent failure
// domains: a human-readable session.json metadata log and a binary
// snapshot.gob holding the most recent repository state.
package checkpoint

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/orgforge/internal/okg"
)

// Step identifies one stage of the fixed workflow sequence.
type Step string

const (
	StepIndustrySelection Step = "industry_selection"
	StepOrgDesign         Step = "org_design"
	StepProductStrategy   Step = "product_strategy"
	StepSprintPlanning    Step = "sprint_planning"
	StepTicketGeneration  Step = "ticket_generation"
	StepMailboxGeneration Step = "mailbox_generation"
	StepQAAudit           Step = "qa_audit"
	StepExportBundler     Step = "export_bundler"
)

// Steps is the fixed, linear workflow sequence.
var Steps = []Step{
	StepIndustrySelection,
	StepOrgDesign,
	StepProductStrategy,
	StepSprintPlanning,
	StepTicketGeneration,
	StepMailboxGeneration,
	StepQAAudit,
	StepExportBundler,
}

// SnapshotVersion guards restores against stale snapshot shapes.
const SnapshotVersion = 1

const (
	sessionFilename  = "session.json"
	snapshotFilename = "snapshot.gob"
)

var (
	// ErrNoSnapshot is returned when no snapshot file exists.
	ErrNoSnapshot = errors.New("no checkpoint snapshot")

	// ErrSnapshotVersion is returned when a snapshot was written by an
	// incompatible version of the tool.
	ErrSnapshotVersion = errors.New("checkpoint snapshot version mismatch")
)

func init() {
	// Step results and company context carry decoded JSON values.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// StepRecord is the per-step entry in the session metadata log.
type StepRecord struct {
	CompletedAt time.Time `json:"completed_at"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// Session is the human-readable progress record. It stays readable even
// when the binary snapshot is corrupt.
type Session struct {
	SessionID      string                `json:"session_id"`
	CreatedAt      time.Time             `json:"created_at"`
	LastUpdated    time.Time             `json:"last_updated"`
	CurrentStep    string                `json:"current_step,omitempty"`
	StepsCompleted []string              `json:"steps_completed"`
	StepResults    map[string]StepRecord `json:"step_results"`
}

// Bundle is the binary snapshot payload: the most recent checkpoint only,
// not per-step history.
type Bundle struct {
	Version        int
	Step           Step
	RawResult      string
	Repo           okg.Snapshot
	IDCounters     map[string]int
	CompletedSteps []string
}

// Manager reads and writes checkpoint state under a directory.
type Manager struct {
	dir     string
	session Session
	logger  *slog.Logger
}

// NewManager opens (or initializes) checkpoint state in dir.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating checkpoint dir: %w", err)
	}
	m := &Manager{dir: dir, logger: logger}
	m.session = m.loadSession()
	return m, nil
}

func newSession() Session {
	return Session{
		SessionID:      uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		StepsCompleted: []string{},
		StepResults:    make(map[string]StepRecord),
	}
}

func (m *Manager) loadSession() Session {
	data, err := os.ReadFile(m.sessionPath())
	if err != nil {
		return newSession()
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		m.logger.Warn("unreadable session metadata, starting fresh", "error", err)
		return newSession()
	}
	if s.StepResults == nil {
		s.StepResults = make(map[string]StepRecord)
	}
	return s
}

func (m *Manager) saveSession() error {
	m.session.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(m.session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling session metadata: %w", err)
	}
	if err := os.WriteFile(m.sessionPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing session metadata: %w", err)
	}
	return nil
}

// SaveStepResult records a completed step and replaces the persisted
// snapshot with the current state. Re-saving a step overwrites its
// metadata; the completed-steps list gains each step at most once.
func (m *Manager) SaveStepResult(step Step, rawResult string, repo okg.Snapshot, idCounters map[string]int) error {
	name := string(step)
	if !contains(m.session.StepsCompleted, name) {
		m.session.StepsCompleted = append(m.session.StepsCompleted, name)
	}
	m.session.CurrentStep = name
	m.session.StepResults[name] = StepRecord{
		CompletedAt: time.Now().UTC(),
		Success:     true,
	}

	bundle := Bundle{
		Version:        SnapshotVersion,
		Step:           step,
		RawResult:      rawResult,
		Repo:           repo,
		IDCounters:     idCounters,
		CompletedSteps: append([]string(nil), m.session.StepsCompleted...),
	}
	if err := m.saveBundle(bundle); err != nil {
		return err
	}
	if err := m.saveSession(); err != nil {
		return err
	}

	m.logger.Info("checkpoint saved", "step", name, "completed_steps", len(m.session.StepsCompleted))
	return nil
}

// SaveStepFailure records a failed step without marking it completed.
// Prior completions are untouched, so the next run resumes from the last
// successful step.
func (m *Manager) SaveStepFailure(step Step, stepErr error) {
	name := string(step)
	m.session.CurrentStep = name
	m.session.StepResults[name] = StepRecord{
		CompletedAt: time.Now().UTC(),
		Success:     false,
		Error:       stepErr.Error(),
	}
	if err := m.saveSession(); err != nil {
		m.logger.Error("saving failure record", "step", name, "error", err)
	}
	m.logger.Error("step failed", "step", name, "error", stepErr)
}

func (m *Manager) saveBundle(bundle Bundle) error {
	f, err := os.Create(m.snapshotPath())
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := gob.NewEncoder(f).Encode(bundle); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the most recent snapshot bundle. Returns ErrNoSnapshot
// when none exists and ErrSnapshotVersion for stale shapes.
func (m *Manager) LoadSnapshot() (*Bundle, error) {
	f, err := os.Open(m.snapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var bundle Bundle
	if err := gob.NewDecoder(f).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if bundle.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: snapshot v%d, expected v%d", ErrSnapshotVersion, bundle.Version, SnapshotVersion)
	}
	return &bundle, nil
}

// Completed reports whether a step finished successfully in this session.
func (m *Manager) Completed(step Step) bool {
	return contains(m.session.StepsCompleted, string(step))
}

// NextStep returns the first step in sequence order not yet completed.
// ok is false when every step is done.
func (m *Manager) NextStep() (step Step, ok bool) {
	for _, s := range Steps {
		if !m.Completed(s) {
			return s, true
		}
	}
	return "", false
}

// LastSuccessfulStep returns the most recently completed step.
func (m *Manager) LastSuccessfulStep() (Step, bool) {
	if len(m.session.StepsCompleted) == 0 {
		return "", false
	}
	return Step(m.session.StepsCompleted[len(m.session.StepsCompleted)-1]), true
}

// Clear discards all persisted checkpoint data and resets the session.
func (m *Manager) Clear() error {
	for _, path := range []string{m.sessionPath(), m.snapshotPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", filepath.Base(path), err)
		}
	}
	m.session = newSession()
	m.logger.Info("checkpoints cleared")
	return nil
}

// Session returns a copy of the session metadata.
func (m *Manager) Session() Session {
	s := m.session
	s.StepsCompleted = append([]string(nil), m.session.StepsCompleted...)
	results := make(map[string]StepRecord, len(m.session.StepResults))
	for k, v := range m.session.StepResults {
		results[k] = v
	}
	s.StepResults = results
	return s
}

// Progress summarizes how far the workflow has advanced.
type Progress struct {
	TotalSteps     int       `json:"total_steps"`
	CompletedSteps int       `json:"completed_steps"`
	Percentage     float64   `json:"progress_percentage"`
	RemainingSteps []string  `json:"remaining_steps"`
	LastUpdated    time.Time `json:"last_updated"`
	SessionCreated time.Time `json:"session_created"`
}

// ProgressSummary reports completed vs remaining steps.
func (m *Manager) ProgressSummary() Progress {
	remaining := make([]string, 0, len(Steps))
	for _, s := range Steps {
		if !m.Completed(s) {
			remaining = append(remaining, string(s))
		}
	}
	completed := len(Steps) - len(remaining)
	return Progress{
		TotalSteps:     len(Steps),
		CompletedSteps: completed,
		Percentage:     float64(completed) / float64(len(Steps)) * 100,
		RemainingSteps: remaining,
		LastUpdated:    m.session.LastUpdated,
		SessionCreated: m.session.CreatedAt,
	}
}

func (m *Manager) sessionPath() string {
	return filepath.Join(m.dir, sessionFilename)
}

func (m *Manager) snapshotPath() string {
	return filepath.Join(m.dir, snapshotFilename)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
