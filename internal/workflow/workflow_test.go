package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/orgforge/internal/checkpoint"
	"github.com/ajitpratap0/orgforge/internal/config"
	"github.com/ajitpratap0/orgforge/internal/engine"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Industry: "fintech_saas",
		Company:  config.CompanyConfig{Name: "FinPay Labs", Tone: "pragmatic"},
		TimeWindow: config.TimeWindowConfig{
			Start: "2025-06-02", End: "2025-06-27", Timezone: "UTC",
		},
		Org:     config.OrgConfig{TeamName: "Payments", ManagerSpan: config.SpanRange{Min: 2, Max: 8}},
		Project: config.ProjectConfig{Key: "PAY", Name: "Payments Platform", SprintLengthDays: 14},
		Volumes: config.VolumesConfig{
			JiraTicketsInWindow:    config.SpanRange{Min: 1, Max: 40},
			EmailsPerPersonPerWeek: config.SpanRange{Min: 1, Max: 60},
		},
		Mail:      config.MailConfig{Categories: []string{"work", "corporate"}},
		Outputs:   []string{"jira", "email"},
		Seed:      42,
		OutputDir: t.TempDir(),
	}
}

// stubResponses returns engine output for a minimal but rule-clean run:
// three people, two epics, one sprint, two tickets, three mails.
func stubResponses() map[checkpoint.Step]string {
	return map[checkpoint.Step]string{
		checkpoint.StepIndustrySelection: `{"industry": "fintech_saas", "company_name": "FinPay Labs", "product_domain": "payments"}`,

		checkpoint.StepOrgDesign: `{"persons": [
			{"name": "Meera Nair", "role": "Engineering Manager", "level": "Mgr", "skills": ["leadership"], "location": "Bengaluru"},
			{"name": "Arjun Rao", "role": "Backend Engineer", "level": "Sr", "skills": ["Go"], "location": "Bengaluru"},
			{"name": "Divya Shetty", "role": "Backend Engineer", "level": "Jr", "skills": ["Go"], "location": "Pune"}
		]}`,

		checkpoint.StepProductStrategy: `{"epics": [
			{"name": "Settlement accuracy", "summary": "Fix rounding drift"},
			{"name": "Webhook reliability", "summary": "Retries and backoff"}
		]}`,

		checkpoint.StepSprintPlanning: `{"sprints": [
			{"name": "Sprint 1", "start": "2025-06-02", "end": "2025-06-13"}
		], "calendar_templates": [{"name": "standup", "cadence": "daily"}]}`,

		checkpoint.StepTicketGeneration: `[
			{"type": "Story", "title": "Fix settlement rounding", "priority": "High", "story_points": 5,
			 "epic_id": "EPIC-0001", "reporter_id": "PER-0001", "assignee_id": "PER-0002",
			 "status_timeline": [
				{"status": "To Do", "at": "2025-06-02T10:00:00Z"},
				{"status": "In Progress", "at": "2025-06-03T10:00:00Z"}
			 ],
			 "comments": [], "attachments": []},
			{"type": "Bug", "title": "Webhook retry storm", "priority": "Critical",
			 "epic_id": "EPIC-0002", "reporter_id": "PER-0002", "assignee_id": "PER-0003",
			 "status_timeline": [
				{"status": "In Progress", "at": "2025-06-04T10:00:00Z"},
				{"status": "Done", "at": "2025-06-06T15:00:00Z"}
			 ],
			 "comments": [{"author_id": "PER-0002", "at": "2025-06-06T14:00:00Z", "body": "Code looks good, LGTM"}],
			 "attachments": []}
		]`,

		checkpoint.StepMailboxGeneration: `{
			"PER-0001": [
				{"subject": "[PAY-1401] Rounding kickoff", "body": "Starting this sprint.", "timestamp": "2025-06-02T11:00:00Z", "category": "work"},
				{"subject": "Town hall recording", "body": "Quarterly announcement inside.", "timestamp": "2025-06-03T15:00:00Z", "category": "corporate"}
			],
			"PER-0002": [
				{"subject": "[PAY-1402] Retry storm fixed", "body": "Shipped the backoff fix.", "timestamp": "2025-06-06T16:00:00Z", "category": "work"}
			]
		}`,

		checkpoint.StepQAAudit: `{"passed": true, "findings": []}`,
	}
}

func newTestWorkflow(t *testing.T, eng engine.Engine) (*Manager, *checkpoint.Manager, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	ckpt, err := checkpoint.NewManager(t.TempDir(), quietLogger())
	require.NoError(t, err)
	return NewManager(cfg, eng, ckpt, quietLogger(), Options{}), ckpt, cfg
}

func TestManager_Run_FullPipeline(t *testing.T) {
	stub := engine.NewStubEngine(stubResponses())
	mgr, ckpt, cfg := newTestWorkflow(t, stub)

	result, err := mgr.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 3, result.PersonsCreated)
	assert.Equal(t, 2, result.TicketsCreated)
	assert.Equal(t, 3, result.EmailsGenerated)

	require.NotNil(t, result.Audit)
	assert.True(t, result.Audit.EnginePassed)
	assert.True(t, result.Audit.BusinessRules.Passed)
	assert.True(t, result.Audit.OverallPassed)

	// jira.json, one mailbox file per person with mail, and index.json.
	filenames := make([]string, 0, len(result.Files))
	for _, f := range result.Files {
		filenames = append(filenames, f.Filename)
	}
	assert.ElementsMatch(t, []string{"jira.json", "mail_PER-0001.jsonl", "mail_PER-0002.jsonl", "index.json"}, filenames)
	for _, name := range filenames {
		_, statErr := os.Stat(filepath.Join(cfg.OutputDir, name))
		assert.NoError(t, statErr, name)
	}

	// Every step is checkpointed.
	_, remaining := ckpt.NextStep()
	assert.False(t, remaining)

	// The engine ran seven steps; export has no engine call.
	assert.Len(t, stub.Calls(), 7)
}

func TestManager_Run_ManagerReportingLines(t *testing.T) {
	stub := engine.NewStubEngine(stubResponses())
	mgr, _, _ := newTestWorkflow(t, stub)

	_, err := mgr.Run(context.Background(), false)
	require.NoError(t, err)

	manager, ok := mgr.repo.GetPerson("PER-0001")
	require.True(t, ok)
	assert.Empty(t, manager.ManagerID)

	for _, id := range []string{"PER-0002", "PER-0003"} {
		p, ok := mgr.repo.GetPerson(id)
		require.True(t, ok)
		assert.Equal(t, "PER-0001", p.ManagerID, id)
	}
}

func TestManager_Run_HaltsOnStepFailure(t *testing.T) {
	stub := engine.NewStubEngine(stubResponses())
	stub.FailStep(checkpoint.StepTicketGeneration, errors.New("model timeout"))
	mgr, ckpt, _ := newTestWorkflow(t, stub)

	_, err := mgr.Run(context.Background(), false)
	require.Error(t, err)
	assert.ErrorContains(t, err, "step ticket_generation")
	assert.ErrorContains(t, err, "model timeout")

	// Completed steps survive; the failed one does not.
	assert.True(t, ckpt.Completed(checkpoint.StepSprintPlanning))
	assert.False(t, ckpt.Completed(checkpoint.StepTicketGeneration))

	record := ckpt.Session().StepResults[string(checkpoint.StepTicketGeneration)]
	assert.False(t, record.Success)
}

func TestManager_Run_ResumeSkipsCompletedSteps(t *testing.T) {
	cfg := testConfig(t)
	ckptDir := t.TempDir()

	failing := engine.NewStubEngine(stubResponses())
	failing.FailStep(checkpoint.StepTicketGeneration, errors.New("model timeout"))

	ckpt1, err := checkpoint.NewManager(ckptDir, quietLogger())
	require.NoError(t, err)
	_, err = NewManager(cfg, failing, ckpt1, quietLogger(), Options{}).Run(context.Background(), false)
	require.Error(t, err)

	// Fresh collaborators, same checkpoint directory.
	healthy := engine.NewStubEngine(stubResponses())
	ckpt2, err := checkpoint.NewManager(ckptDir, quietLogger())
	require.NoError(t, err)

	result, err := NewManager(cfg, healthy, ckpt2, quietLogger(), Options{}).Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 3, result.PersonsCreated)
	assert.Equal(t, 2, result.TicketsCreated)

	// Only the remaining engine-backed steps ran on resume.
	assert.Equal(t, []checkpoint.Step{
		checkpoint.StepTicketGeneration,
		checkpoint.StepMailboxGeneration,
		checkpoint.StepQAAudit,
	}, healthy.Calls())
}

func TestManager_Run_ResumeProducesSameIDs(t *testing.T) {
	cfg := testConfig(t)
	ckptDir := t.TempDir()

	failing := engine.NewStubEngine(stubResponses())
	failing.FailStep(checkpoint.StepMailboxGeneration, errors.New("model timeout"))

	ckpt1, err := checkpoint.NewManager(ckptDir, quietLogger())
	require.NoError(t, err)
	_, err = NewManager(cfg, failing, ckpt1, quietLogger(), Options{}).Run(context.Background(), false)
	require.Error(t, err)

	healthy := engine.NewStubEngine(stubResponses())
	ckpt2, err := checkpoint.NewManager(ckptDir, quietLogger())
	require.NoError(t, err)
	resumed := NewManager(cfg, healthy, ckpt2, quietLogger(), Options{})
	_, err = resumed.Run(context.Background(), true)
	require.NoError(t, err)

	// Ticket counters were restored: tickets keep their pre-failure IDs.
	assert.Equal(t, []string{"PAY-1401", "PAY-1402"}, resumed.repo.TicketInsertionOrder())
}

func TestManager_Run_FreshRunClearsOldCheckpoints(t *testing.T) {
	cfg := testConfig(t)
	ckptDir := t.TempDir()

	ckpt1, err := checkpoint.NewManager(ckptDir, quietLogger())
	require.NoError(t, err)
	_, err = NewManager(cfg, engine.NewStubEngine(stubResponses()), ckpt1, quietLogger(), Options{}).Run(context.Background(), false)
	require.NoError(t, err)

	// A non-resume run starts over and re-executes everything.
	stub := engine.NewStubEngine(stubResponses())
	ckpt2, err := checkpoint.NewManager(ckptDir, quietLogger())
	require.NoError(t, err)
	result, err := NewManager(cfg, stub, ckpt2, quietLogger(), Options{}).Run(context.Background(), false)
	require.NoError(t, err)

	assert.Len(t, stub.Calls(), 7)
	assert.Equal(t, 3, result.PersonsCreated)
}

func TestManager_Run_UnparseableStepOutputFails(t *testing.T) {
	responses := stubResponses()
	responses[checkpoint.StepOrgDesign] = "I am sorry, I cannot produce that."
	mgr, _, _ := newTestWorkflow(t, engine.NewStubEngine(responses))

	_, err := mgr.Run(context.Background(), false)
	require.Error(t, err)
	assert.ErrorContains(t, err, "org design")
}

func TestManager_Run_MalformedRecordsAreDropped(t *testing.T) {
	responses := stubResponses()
	// One valid manager plus one record with an unknown level.
	responses[checkpoint.StepOrgDesign] = `{"persons": [
		{"name": "Meera Nair", "role": "EM", "level": "Mgr"},
		{"name": "Bad Record", "role": "?", "level": "Principal"},
		{"name": "Arjun Rao", "role": "Backend", "level": "Sr"}
	]}`
	responses[checkpoint.StepMailboxGeneration] = `{
		"PER-0001": [
			{"subject": "[PAY-1401] Rounding kickoff", "body": "x", "timestamp": "2025-06-02T11:00:00Z", "category": "work"},
			{"subject": "Town hall", "body": "announcement", "timestamp": "2025-06-03T15:00:00Z", "category": "corporate"},
			{"body": "no subject here"}
		]
	}`
	mgr, _, _ := newTestWorkflow(t, engine.NewStubEngine(responses))

	result, err := mgr.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.PersonsCreated)
	assert.Equal(t, 2, result.EmailsGenerated)
}

func TestManager_Run_QAAuditEngineFailureVerdict(t *testing.T) {
	responses := stubResponses()
	responses[checkpoint.StepQAAudit] = `{"passed": false, "findings": ["tone drifts in PER-0003 mail"]}`
	mgr, _, _ := newTestWorkflow(t, engine.NewStubEngine(responses))

	result, err := mgr.Run(context.Background(), false)
	require.NoError(t, err)
	require.NotNil(t, result.Audit)
	assert.False(t, result.Audit.EnginePassed)
	assert.False(t, result.Audit.OverallPassed)
	assert.Equal(t, []string{"tone drifts in PER-0003 mail"}, result.Audit.EngineFinding)
	// Mechanical rules still pass independently.
	assert.True(t, result.Audit.BusinessRules.Passed)
}

func TestManager_Run_EpicIDsNormalized(t *testing.T) {
	stub := engine.NewStubEngine(stubResponses())
	mgr, _, _ := newTestWorkflow(t, stub)

	_, err := mgr.Run(context.Background(), false)
	require.NoError(t, err)

	ticket, ok := mgr.repo.GetTicket("PAY-1401")
	require.True(t, ok)
	// EPIC-0001 from the engine is coerced to the project-scoped form.
	assert.Equal(t, "EPIC-PAY-01", ticket.EpicID)

	epics := mgr.repo.Epics()
	require.Len(t, epics, 2)
	assert.Equal(t, "EPIC-PAY-01", epics[0].EpicID)
}
