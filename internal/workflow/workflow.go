// Package workflow sequences the eight generation steps: execute, adapt,
// mutate the repository, checkpoint, repeat. A failed step halts the run
// but leaves it resumable from the last successful checkpoint.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ajitpratap0/orgforge/internal/adapter"
	"github.com/ajitpratap0/orgforge/internal/checkpoint"
	"github.com/ajitpratap0/orgforge/internal/config"
	"github.com/ajitpratap0/orgforge/internal/engine"
	"github.com/ajitpratap0/orgforge/internal/export"
	"github.com/ajitpratap0/orgforge/internal/ids"
	"github.com/ajitpratap0/orgforge/internal/models"
	"github.com/ajitpratap0/orgforge/internal/okg"
)

// Manager owns a single workflow run: the repository, the ID generator,
// and the checkpoint state. Not safe for concurrent use.
type Manager struct {
	cfg    *config.Config
	eng    engine.Engine
	repo   *okg.Repository
	gen    *ids.Generator
	ckpt   *checkpoint.Manager
	writer *export.Writer
	graph  *export.GraphExporter
	logger *slog.Logger
}

// Options configures optional workflow collaborators.
type Options struct {
	// Graph, when non-nil, receives the finished knowledge graph during
	// the export step.
	Graph *export.GraphExporter
}

// NewManager wires a workflow run from its collaborators.
func NewManager(cfg *config.Config, eng engine.Engine, ckpt *checkpoint.Manager, logger *slog.Logger, opts Options) *Manager {
	return &Manager{
		cfg:    cfg,
		eng:    eng,
		repo:   okg.NewRepository(),
		gen:    ids.NewGenerator(cfg.Seed),
		ckpt:   ckpt,
		writer: export.NewWriter(cfg.OutputDir, logger),
		graph:  opts.Graph,
		logger: logger,
	}
}

// AuditResult combines the mechanical rule audit with the engine's own
// audit pass.
type AuditResult struct {
	BusinessRules okg.Summary `json:"business_rules"`
	EngineFinding []string    `json:"engine_findings"`
	EnginePassed  bool        `json:"engine_passed"`
	OverallPassed bool        `json:"overall_passed"`
}

// ExportResult aggregates the export step's outputs.
type ExportResult struct {
	FilesCreated []export.ManifestEntry `json:"files_created"`
	Skipped      map[string]string      `json:"skipped,omitempty"`
}

// Result is the aggregate outcome of a completed run.
type Result struct {
	PersonsCreated  int                    `json:"persons_created"`
	TicketsCreated  int                    `json:"tickets_created"`
	EmailsGenerated int                    `json:"emails_generated"`
	OutputDir       string                 `json:"output_directory"`
	Files           []export.ManifestEntry `json:"output_files"`
	Audit           *AuditResult           `json:"audit,omitempty"`
	Skipped         map[string]string      `json:"skipped_exports,omitempty"`
}

// Run executes the workflow from the first incomplete step. With resume
// set, completed steps are skipped and the repository is restored from
// the snapshot; otherwise checkpoints are cleared first.
func (m *Manager) Run(ctx context.Context, resume bool) (*Result, error) {
	if !resume {
		if err := m.ckpt.Clear(); err != nil {
			return nil, fmt.Errorf("clearing checkpoints: %w", err)
		}
	} else if err := m.restore(); err != nil {
		return nil, err
	}

	var audit *AuditResult
	var exported *ExportResult

	for _, step := range checkpoint.Steps {
		if m.ckpt.Completed(step) {
			m.logger.Info("skipping completed step", "step", step)
			continue
		}

		m.logger.Info("executing step", "step", step)
		raw, err := m.executeStep(ctx, step, &audit, &exported)
		if err != nil {
			stepErr := fmt.Errorf("step %s: %w", step, err)
			m.ckpt.SaveStepFailure(step, stepErr)
			return nil, fmt.Errorf("%w (re-run to resume from the last checkpoint)", stepErr)
		}

		if err := m.ckpt.SaveStepResult(step, raw, m.repo.Snapshot(), m.gen.Snapshot()); err != nil {
			return nil, fmt.Errorf("saving checkpoint for %s: %w", step, err)
		}
		m.logger.Info("completed step", "step", step)
	}

	stats := m.repo.Statistics()
	result := &Result{
		PersonsCreated:  stats.Persons,
		TicketsCreated:  stats.Tickets,
		EmailsGenerated: stats.MailMessages,
		OutputDir:       m.cfg.OutputDir,
		Audit:           audit,
	}
	if exported != nil {
		result.Files = exported.FilesCreated
		result.Skipped = exported.Skipped
	}

	m.logger.Info("workflow completed",
		"persons", result.PersonsCreated,
		"tickets", result.TicketsCreated,
		"emails", result.EmailsGenerated)
	return result, nil
}

// restore reloads repository and ID-counter state from the most recent
// snapshot. An absent snapshot starts fresh; a stale or unreadable one
// also starts fresh after clearing the completed-steps list, since
// skipping steps without their data would corrupt the run.
func (m *Manager) restore() error {
	bundle, err := m.ckpt.LoadSnapshot()
	switch {
	case err == nil:
		m.repo.RestoreSnapshot(bundle.Repo)
		m.gen.Restore(bundle.IDCounters)
		m.logger.Info("resuming from checkpoint", "last_step", bundle.Step)
		return nil
	case errors.Is(err, checkpoint.ErrNoSnapshot):
		return nil
	default:
		m.logger.Warn("checkpoint snapshot unusable, starting fresh", "error", err)
		if clearErr := m.ckpt.Clear(); clearErr != nil {
			return fmt.Errorf("resetting unusable checkpoints: %w", clearErr)
		}
		return nil
	}
}

func (m *Manager) executeStep(ctx context.Context, step checkpoint.Step, audit **AuditResult, exported **ExportResult) (string, error) {
	switch step {
	case checkpoint.StepIndustrySelection:
		return m.executeIndustrySelection(ctx)
	case checkpoint.StepOrgDesign:
		return m.executeOrgDesign(ctx)
	case checkpoint.StepProductStrategy:
		return m.executeProductStrategy(ctx)
	case checkpoint.StepSprintPlanning:
		return m.executeSprintPlanning(ctx)
	case checkpoint.StepTicketGeneration:
		return m.executeTicketGeneration(ctx)
	case checkpoint.StepMailboxGeneration:
		return m.executeMailboxGeneration(ctx)
	case checkpoint.StepQAAudit:
		a, raw, err := m.executeQAAudit(ctx)
		if err != nil {
			return "", err
		}
		*audit = a
		return raw, nil
	case checkpoint.StepExportBundler:
		e, raw, err := m.executeExport(ctx)
		if err != nil {
			return "", err
		}
		*exported = e
		return raw, nil
	default:
		return "", fmt.Errorf("unknown workflow step %q", step)
	}
}

func (m *Manager) stepContext(step checkpoint.Step) engine.StepContext {
	return engine.StepContext{
		Step:           step,
		Config:         m.cfg,
		CompanyContext: m.repo.CompanyContext,
		Persons:        m.repo.Persons(),
		Tickets:        m.repo.Tickets(),
		Epics:          m.repo.Epics(),
		Sprints:        m.repo.Sprints(),
	}
}

func (m *Manager) executeIndustrySelection(ctx context.Context) (string, error) {
	raw, err := m.eng.ExecuteStep(ctx, m.stepContext(checkpoint.StepIndustrySelection))
	if err != nil {
		return "", err
	}
	v, parser, ok := adapter.Extract(raw)
	if !ok {
		return "", fmt.Errorf("unparseable industry selection output")
	}
	if cc, isMap := v.(map[string]any); isMap {
		m.repo.CompanyContext = cc
	}
	m.logger.Debug("industry selection parsed", "parser", parser)
	return raw, nil
}

func (m *Manager) executeOrgDesign(ctx context.Context) (string, error) {
	raw, err := m.eng.ExecuteStep(ctx, m.stepContext(checkpoint.StepOrgDesign))
	if err != nil {
		return "", err
	}
	v, _, ok := adapter.Extract(raw)
	if !ok {
		return "", fmt.Errorf("unparseable org design output")
	}

	teamID := m.gen.TeamID(m.cfg.Org.TeamName)
	m.repo.AddTeam(models.Team{TeamID: teamID, Name: m.cfg.Org.TeamName})

	records := adapter.RecordsIn(v, "persons")
	if len(records) == 0 {
		return "", fmt.Errorf("org design produced no person records")
	}

	var persons []models.Person
	for _, record := range records {
		person, normErr := adapter.NormalizePerson(record, m.gen.PersonID(), teamID)
		if normErr != nil {
			m.logger.Warn("dropping malformed person record", "error", normErr, "record", record)
			continue
		}
		persons = append(persons, person)
	}
	if len(persons) == 0 {
		return "", fmt.Errorf("org design produced no usable persons")
	}

	// Wire reporting lines: everyone reports to the (single) manager.
	managerID := ""
	for _, p := range persons {
		if p.Level == models.LevelManager {
			managerID = p.PersonID
			break
		}
	}
	for i := range persons {
		if managerID != "" && persons[i].PersonID != managerID {
			persons[i].ManagerID = managerID
		}
		m.repo.AddPerson(persons[i])
	}

	m.logger.Info("org design completed", "persons", len(persons))
	return raw, nil
}

func (m *Manager) executeProductStrategy(ctx context.Context) (string, error) {
	raw, err := m.eng.ExecuteStep(ctx, m.stepContext(checkpoint.StepProductStrategy))
	if err != nil {
		return "", err
	}
	v, _, ok := adapter.Extract(raw)
	if !ok {
		return "", fmt.Errorf("unparseable product strategy output")
	}

	projectID := m.gen.ProjectID(m.cfg.Project.Key)
	m.repo.AddProject(models.Project{
		ProjectID: projectID,
		Key:       m.cfg.Project.Key,
		Name:      m.cfg.Project.Name,
	})

	for _, record := range adapter.RecordsIn(v, "epics") {
		name, _ := record["name"].(string)
		if name == "" {
			m.logger.Warn("dropping unnamed epic record", "record", record)
			continue
		}
		m.repo.AddEpic(models.Epic{
			EpicID:    m.gen.EpicID(m.cfg.Project.Key),
			ProjectID: projectID,
			Name:      name,
		})
	}

	m.logger.Info("product strategy completed", "epics", len(m.repo.Epics()))
	return raw, nil
}

func (m *Manager) executeSprintPlanning(ctx context.Context) (string, error) {
	raw, err := m.eng.ExecuteStep(ctx, m.stepContext(checkpoint.StepSprintPlanning))
	if err != nil {
		return "", err
	}
	v, _, ok := adapter.Extract(raw)
	if !ok {
		return "", fmt.Errorf("unparseable sprint planning output")
	}

	loc := m.cfg.Location()
	projectID := m.gen.ProjectID(m.cfg.Project.Key)
	for _, record := range adapter.RecordsIn(v, "sprints") {
		name, _ := record["name"].(string)
		start := adapter.ParseTimestamp(record["start"], nil, loc, time.Now)
		end := adapter.ParseTimestamp(record["end"], nil, loc, time.Now)
		m.repo.AddSprint(models.Sprint{
			SprintID:  m.gen.SprintID(),
			ProjectID: projectID,
			Name:      name,
			Start:     start,
			End:       end,
		})
	}

	if vm, isMap := v.(map[string]any); isMap {
		if templates, okT := vm["calendar_templates"].([]any); okT {
			for _, t := range templates {
				if tm, okM := t.(map[string]any); okM {
					m.repo.CalendarTemplates = append(m.repo.CalendarTemplates, tm)
				}
			}
		}
	}

	m.logger.Info("sprint planning completed", "sprints", len(m.repo.Sprints()))
	return raw, nil
}

func (m *Manager) executeTicketGeneration(ctx context.Context) (string, error) {
	raw, err := m.eng.ExecuteStep(ctx, m.stepContext(checkpoint.StepTicketGeneration))
	if err != nil {
		return "", err
	}
	v, _, ok := adapter.Extract(raw)
	if !ok {
		return "", fmt.Errorf("unparseable ticket generation output")
	}

	key := m.cfg.Project.Key
	projectID := m.gen.ProjectID(key)
	loc := m.cfg.Location()
	added, dropped := 0, 0
	for _, record := range adapter.RecordsIn(v, "tickets") {
		tc := adapter.TicketContext{
			TicketID:   m.gen.TicketID(key),
			ProjectID:  projectID,
			ProjectKey: key,
			Location:   loc,
			Now:        time.Now,
		}
		ticket, normErr := adapter.NormalizeTicket(record, tc)
		if normErr != nil {
			m.logger.Warn("dropping malformed ticket record", "error", normErr, "record", record)
			dropped++
			continue
		}
		m.repo.AddTicket(ticket)
		added++
	}
	if added == 0 {
		return "", fmt.Errorf("ticket generation produced no usable tickets")
	}

	m.logger.Info("ticket generation completed", "added", added, "dropped", dropped)
	return raw, nil
}

func (m *Manager) executeMailboxGeneration(ctx context.Context) (string, error) {
	raw, err := m.eng.ExecuteStep(ctx, m.stepContext(checkpoint.StepMailboxGeneration))
	if err != nil {
		return "", err
	}
	v, _, ok := adapter.Extract(raw)
	if !ok {
		return "", fmt.Errorf("unparseable mailbox generation output")
	}
	mailboxes, isMap := v.(map[string]any)
	if !isMap {
		return "", fmt.Errorf("mailbox generation returned %T, expected object keyed by person", v)
	}

	loc := m.cfg.Location()
	owners := make([]string, 0, len(mailboxes))
	for id := range mailboxes {
		owners = append(owners, id)
	}
	sort.Strings(owners)

	total := 0
	for _, rawID := range owners {
		personID := adapter.NormalizePersonID(rawID)
		person, _ := m.repo.GetPerson(personID)

		records, isList := mailboxes[rawID].([]any)
		if !isList {
			m.logger.Warn("dropping non-list mailbox", "person_id", rawID)
			continue
		}

		var messages []models.MailMessage
		for _, record := range records {
			rm, okRec := record.(map[string]any)
			if !okRec {
				m.logger.Warn("dropping non-object mail record", "person_id", personID)
				continue
			}
			mc := adapter.MailContext{
				MsgID:       m.gen.MessageID(),
				ThreadID:    m.gen.ThreadID(),
				PersonID:    personID,
				PersonName:  person.Name,
				CompanyName: m.cfg.Company.Name,
				TeamName:    m.cfg.Org.TeamName,
				Location:    loc,
				Now:         time.Now,
			}
			msg, normErr := adapter.NormalizeMail(rm, mc)
			if normErr != nil {
				m.logger.Warn("dropping malformed mail record", "error", normErr, "person_id", personID)
				continue
			}
			messages = append(messages, msg)
		}

		// Mailboxes are stored timestamp-ordered so downstream iteration
		// and export share the same deterministic order.
		sort.SliceStable(messages, func(i, j int) bool {
			return messages[i].Timestamp.Before(messages[j].Timestamp)
		})
		for _, msg := range messages {
			m.repo.AddMailMessage(personID, msg)
		}
		total += len(messages)
	}

	m.logger.Info("mailbox generation completed", "emails", total)
	return raw, nil
}

func (m *Manager) executeQAAudit(ctx context.Context) (*AuditResult, string, error) {
	rules := okg.NewValidator(m.repo).Summarize()

	raw, err := m.eng.ExecuteStep(ctx, m.stepContext(checkpoint.StepQAAudit))
	if err != nil {
		return nil, "", err
	}

	// The engine audit is advisory: an unparseable verdict counts as a
	// pass so the mechanical rules remain the floor.
	enginePassed := true
	var findings []string
	if v, _, ok := adapter.Extract(raw); ok {
		if vm, isMap := v.(map[string]any); isMap {
			if p, isBool := vm["passed"].(bool); isBool {
				enginePassed = p
			}
			if list, isList := vm["findings"].([]any); isList {
				for _, f := range list {
					if s, isStr := f.(string); isStr {
						findings = append(findings, s)
					}
				}
			}
		}
	}

	result := &AuditResult{
		BusinessRules: rules,
		EngineFinding: findings,
		EnginePassed:  enginePassed,
		OverallPassed: rules.Passed && enginePassed,
	}

	m.repo.IntegrityReport = map[string]any{
		"business_rules": rules,
		"engine_passed":  enginePassed,
		"overall_passed": result.OverallPassed,
	}

	m.logger.Info("qa audit completed", "passed", result.OverallPassed, "rule_errors", rules.TotalErrors)
	return result, raw, nil
}

func (m *Manager) executeExport(ctx context.Context) (*ExportResult, string, error) {
	result := &ExportResult{Skipped: make(map[string]string)}

	for _, output := range m.cfg.Outputs {
		switch output {
		case "jira":
			if m.repo.Statistics().Tickets == 0 {
				m.logger.Warn("no tickets available, skipping jira export")
				result.Skipped["jira"] = "no tickets available"
				continue
			}
			entry, err := m.writer.ExportTickets(m.repo)
			if err != nil {
				return nil, "", err
			}
			result.FilesCreated = append(result.FilesCreated, entry)
		case "email":
			if m.repo.Statistics().MailMessages == 0 {
				m.logger.Warn("no mail available, skipping email export")
				result.Skipped["email"] = "no mail messages available"
				continue
			}
			entries, err := m.writer.ExportMailboxes(m.repo)
			if err != nil {
				return nil, "", err
			}
			result.FilesCreated = append(result.FilesCreated, entries...)
		}
	}

	indexEntry, err := m.writer.WriteIndex(
		result.FilesCreated,
		export.BuildStatistics(m.repo),
		m.ckpt.Session().SessionID,
		m.cfg.Seed,
	)
	if err != nil {
		return nil, "", err
	}
	result.FilesCreated = append(result.FilesCreated, indexEntry)

	if m.graph != nil {
		if err := m.graph.Export(ctx, m.repo); err != nil {
			// The file exports are canonical; a graph sink failure is
			// recorded, not fatal.
			m.logger.Error("graph export failed", "error", err)
			result.Skipped["graph"] = err.Error()
		}
	}

	if len(result.Skipped) == 0 {
		result.Skipped = nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, "", fmt.Errorf("serializing export result: %w", err)
	}
	return result, string(raw), nil
}
