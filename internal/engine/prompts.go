package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ajitpratap0/orgforge/internal/checkpoint"
)

// systemPrompt applies to every generation step.
const systemPrompt = `You are a synthetic organizational-data generator. Output only valid JSON matching the requested schema. Be concise and deterministic: no commentary, no markdown fences, no fields outside the schema.`

// stepInstructions maps each workflow step to its task-specific prompt body.
// Context (config excerpt plus accumulated entities) is appended as JSON.
var stepInstructions = map[checkpoint.Step]string{
	checkpoint.StepIndustrySelection: `Produce a company context object for the given industry and company descriptor.
Return a JSON object with keys: industry, company_name, product_domain, customer_profile, terminology (array of domain terms), compliance_notes.`,

	checkpoint.StepOrgDesign: `Design a single engineering team for the company.
Return a JSON object {"persons": [...]} where each person has: name, role, level (one of "Jr","Sr","TL","Mgr"), skills (array), location.
Exactly one person has level "Mgr"; everyone else reports to them. Respect the manager_span bounds and geo list in the context.`,

	checkpoint.StepProductStrategy: `Define the product strategy for the project.
Return a JSON object {"epics": [...], "themes": [...]} where each epic has: name, summary. Generate 3-6 epics covering the project's scope in the time window.`,

	checkpoint.StepSprintPlanning: `Plan the sprint cadence for the time window.
Return a JSON object {"sprints": [...], "calendar_templates": [...]} where each sprint has: name, start (RFC 3339 date), end (RFC 3339 date). Sprints are consecutive, non-overlapping, sprint_length_days long.`,

	checkpoint.StepTicketGeneration: `Generate realistic Jira tickets for the team.
Return a JSON array of tickets, each with: type (Story|Bug|Task|Spike), title, description, priority (Low|Medium|High|Critical), story_points (Story only), epic_id, reporter_id, assignee_id, status_timeline (array of {"status": ..., "at": RFC 3339 timestamp}, non-decreasing, statuses from Backlog|To Do|In Progress|Code Review|Testing|Done), comments (array of {"author_id": ..., "at": ..., "body": ...}), attachments.
Every Done ticket must carry at least one review comment (e.g. "LGTM", "code review passed"). Stay within the ticket volume bounds.`,

	checkpoint.StepMailboxGeneration: `Generate a mailbox for each person, keyed by person_id.
Return a JSON object mapping person_id to an array of messages, each with: subject, body, timestamp (RFC 3339, in the team timezone), category (from the configured category list).
When a message discusses a ticket, put [TICKET-ID] literally in the subject. Keep at least 85% of each person's mail inside 09:00-18:59 local time and spam at or below 5%. Managers get at least 20% non-project mail (corporate, hr, vendor, security, event, facilities). Messages per person per week stay within the configured bounds. Order each mailbox by timestamp ascending.`,

	checkpoint.StepQAAudit: `Audit the generated dataset for internal consistency and realism.
Return a JSON object with: passed (boolean), findings (array of strings). Check cross-entity coherence the mechanical rules cannot: tone consistency, plausible workloads, sensible ticket-to-mail traffic.`,
}

// buildPrompt renders the full user prompt for a step: instructions plus
// the serialized step context.
func buildPrompt(sc StepContext) (string, error) {
	instructions, ok := stepInstructions[sc.Step]
	if !ok {
		return "", fmt.Errorf("no prompt defined for step %q", sc.Step)
	}

	contextBlock, err := json.Marshal(promptContext(sc))
	if err != nil {
		return "", fmt.Errorf("marshalling step context: %w", err)
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n<context>\n")
	b.Write(contextBlock)
	b.WriteString("\n</context>\n")
	return b.String(), nil
}

// promptContext picks the context fields each step actually needs, keeping
// prompts small.
func promptContext(sc StepContext) map[string]any {
	cfg := sc.Config
	out := map[string]any{
		"industry": cfg.Industry,
		"company":  map[string]any{"name": cfg.Company.Name, "mission": cfg.Company.Mission, "tone": cfg.Company.Tone, "values": cfg.Company.Values},
		"time_window": map[string]any{
			"start": cfg.TimeWindow.Start, "end": cfg.TimeWindow.End,
			"timezone": cfg.TimeWindow.Timezone, "business_days_only": cfg.TimeWindow.BusinessDaysOnly,
		},
	}

	switch sc.Step {
	case checkpoint.StepOrgDesign:
		out["org"] = cfg.Org
		out["company_context"] = sc.CompanyContext
	case checkpoint.StepProductStrategy:
		out["project"] = cfg.Project
		out["company_context"] = sc.CompanyContext
		out["org"] = cfg.Org
	case checkpoint.StepSprintPlanning:
		out["project"] = cfg.Project
		out["org"] = cfg.Org
	case checkpoint.StepTicketGeneration:
		out["project"] = cfg.Project
		out["volumes"] = cfg.Volumes
		out["org"] = cfg.Org
		out["persons"] = sc.Persons
		out["epics"] = sc.Epics
		out["sprints"] = sc.Sprints
	case checkpoint.StepMailboxGeneration:
		out["org"] = cfg.Org
		out["volumes"] = cfg.Volumes
		out["mail"] = cfg.Mail
		out["persons"] = sc.Persons
		out["tickets"] = ticketDigest(sc)
	case checkpoint.StepQAAudit:
		out["persons"] = sc.Persons
		out["tickets"] = ticketDigest(sc)
	}
	return out
}

// ticketDigest trims tickets to the fields the mailbox and audit prompts
// need, keeping token usage bounded.
func ticketDigest(sc StepContext) []map[string]any {
	out := make([]map[string]any, 0, len(sc.Tickets))
	for _, t := range sc.Tickets {
		out = append(out, map[string]any{
			"ticket_id":   t.TicketID,
			"title":       t.Title,
			"type":        t.Type,
			"priority":    t.Priority,
			"assignee_id": t.AssigneeID,
			"status":      t.CurrentStatus(),
		})
	}
	return out
}
