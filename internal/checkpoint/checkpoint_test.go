package checkpoint

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/orgforge/internal/models"
	"github.com/ajitpratap0/orgforge/internal/okg"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), quietLogger())
	require.NoError(t, err)
	return m
}

func sampleSnapshot() okg.Snapshot {
	r := okg.NewRepository()
	r.AddPerson(models.Person{PersonID: "PER-0001", Name: "Meera", Level: models.LevelManager})
	r.AddMailMessage("PER-0001", models.MailMessage{
		MsgID:     "MSG-001",
		Subject:   "Kickoff",
		Timestamp: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		Category:  models.MailWork,
	})
	r.CompanyContext = map[string]any{"name": "FinPay", "values": []any{"trust"}}
	return r.Snapshot()
}

func TestManager_SaveAndLoadSnapshot(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, quietLogger())
	require.NoError(t, err)

	counters := map[string]int{"PER": 1, "MSG": 1}
	require.NoError(t, m.SaveStepResult(StepOrgDesign, `{"persons": []}`, sampleSnapshot(), counters))

	// A new manager over the same directory sees the persisted state.
	reopened, err := NewManager(dir, quietLogger())
	require.NoError(t, err)
	assert.True(t, reopened.Completed(StepOrgDesign))

	bundle, err := reopened.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, StepOrgDesign, bundle.Step)
	assert.Equal(t, `{"persons": []}`, bundle.RawResult)
	assert.Equal(t, counters, bundle.IDCounters)

	restored := okg.NewRepository()
	restored.RestoreSnapshot(bundle.Repo)
	assert.Equal(t, 1, restored.Statistics().Persons)
	assert.Equal(t, 1, restored.Statistics().MailMessages)
	assert.Equal(t, "FinPay", restored.CompanyContext["name"])
}

func TestManager_LoadSnapshot_NoSnapshot(t *testing.T) {
	m := newTestManager(t)
	_, err := m.LoadSnapshot()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestManager_LoadSnapshot_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, quietLogger())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFilename), []byte("not gob"), 0o644))
	_, err = m.LoadSnapshot()
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoSnapshot))
}

func TestManager_SessionSurvivesCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, quietLogger())
	require.NoError(t, err)
	require.NoError(t, m.SaveStepResult(StepIndustrySelection, "{}", sampleSnapshot(), nil))

	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFilename), []byte("garbage"), 0o644))

	reopened, err := NewManager(dir, quietLogger())
	require.NoError(t, err)
	assert.True(t, reopened.Completed(StepIndustrySelection))
	_, err = reopened.LoadSnapshot()
	assert.Error(t, err)
}

func TestManager_StepOrdering(t *testing.T) {
	m := newTestManager(t)

	next, ok := m.NextStep()
	require.True(t, ok)
	assert.Equal(t, StepIndustrySelection, next)

	require.NoError(t, m.SaveStepResult(StepIndustrySelection, "{}", sampleSnapshot(), nil))
	require.NoError(t, m.SaveStepResult(StepOrgDesign, "{}", sampleSnapshot(), nil))

	next, ok = m.NextStep()
	require.True(t, ok)
	assert.Equal(t, StepProductStrategy, next)

	last, ok := m.LastSuccessfulStep()
	require.True(t, ok)
	assert.Equal(t, StepOrgDesign, last)
}

func TestManager_SaveStepFailure(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.SaveStepResult(StepIndustrySelection, "{}", sampleSnapshot(), nil))

	m.SaveStepFailure(StepOrgDesign, errors.New("model returned prose"))

	assert.False(t, m.Completed(StepOrgDesign))
	assert.True(t, m.Completed(StepIndustrySelection))

	record := m.Session().StepResults[string(StepOrgDesign)]
	assert.False(t, record.Success)
	assert.Equal(t, "model returned prose", record.Error)
}

func TestManager_ResaveStepIsIdempotent(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.SaveStepResult(StepIndustrySelection, "{}", sampleSnapshot(), nil))
	require.NoError(t, m.SaveStepResult(StepIndustrySelection, "{}", sampleSnapshot(), nil))

	assert.Len(t, m.Session().StepsCompleted, 1)
}

func TestManager_Clear(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, quietLogger())
	require.NoError(t, err)
	require.NoError(t, m.SaveStepResult(StepIndustrySelection, "{}", sampleSnapshot(), nil))

	oldSession := m.Session().SessionID
	require.NoError(t, m.Clear())

	assert.False(t, m.Completed(StepIndustrySelection))
	assert.NotEqual(t, oldSession, m.Session().SessionID)
	_, err = m.LoadSnapshot()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestManager_ProgressSummary(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.SaveStepResult(StepIndustrySelection, "{}", sampleSnapshot(), nil))
	require.NoError(t, m.SaveStepResult(StepOrgDesign, "{}", sampleSnapshot(), nil))

	p := m.ProgressSummary()
	assert.Equal(t, len(Steps), p.TotalSteps)
	assert.Equal(t, 2, p.CompletedSteps)
	assert.InDelta(t, 25.0, p.Percentage, 0.01)
	assert.Equal(t, string(StepProductStrategy), p.RemainingSteps[0])
}

func TestSteps_Order(t *testing.T) {
	want := []Step{
		StepIndustrySelection,
		StepOrgDesign,
		StepProductStrategy,
		StepSprintPlanning,
		StepTicketGeneration,
		StepMailboxGeneration,
		StepQAAudit,
		StepExportBundler,
	}
	assert.Equal(t, want, Steps)
}
