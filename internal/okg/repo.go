// Package okg holds the in-memory organizational knowledge graph: the
// entity repository and the business-rule validator that audits it.
package okg

import (
	"fmt"
	"sort"
	"time"

	"github.com/ajitpratap0/orgforge/internal/models"
)

// Repository is the single-process store for all generated entities.
// Adds are idempotent overwrites by primary key; the repository never
// rejects a write — referential problems are reported by
// ValidateReferences instead. Not safe for concurrent use: the workflow
// owns exactly one instance.
type Repository struct {
	persons  map[string]models.Person
	teams    map[string]models.Team
	projects map[string]models.Project
	epics    map[string]models.Epic
	sprints  map[string]models.Sprint
	tickets  map[string]models.Ticket
	// ticketOrder preserves insertion order for the deterministic-ordering audit.
	ticketOrder []string
	// mailboxes are disjoint: a message lives in exactly one person's list.
	mailboxes map[string][]models.MailMessage

	// Step metadata accumulated alongside the graph.
	CompanyContext    map[string]any
	CalendarTemplates []map[string]any
	IntegrityReport   map[string]any
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		persons:        make(map[string]models.Person),
		teams:          make(map[string]models.Team),
		projects:       make(map[string]models.Project),
		epics:          make(map[string]models.Epic),
		sprints:        make(map[string]models.Sprint),
		tickets:        make(map[string]models.Ticket),
		mailboxes:      make(map[string][]models.MailMessage),
		CompanyContext: make(map[string]any),
	}
}

// AddPerson inserts or overwrites a person by ID.
func (r *Repository) AddPerson(p models.Person) {
	r.persons[p.PersonID] = p
}

// AddTeam inserts or overwrites a team by ID.
func (r *Repository) AddTeam(t models.Team) {
	r.teams[t.TeamID] = t
}

// AddProject inserts or overwrites a project by ID.
func (r *Repository) AddProject(p models.Project) {
	r.projects[p.ProjectID] = p
}

// AddEpic inserts or overwrites an epic by ID.
func (r *Repository) AddEpic(e models.Epic) {
	r.epics[e.EpicID] = e
}

// AddSprint inserts or overwrites a sprint by ID.
func (r *Repository) AddSprint(s models.Sprint) {
	r.sprints[s.SprintID] = s
}

// AddTicket inserts or overwrites a ticket by ID.
func (r *Repository) AddTicket(t models.Ticket) {
	if _, exists := r.tickets[t.TicketID]; !exists {
		r.ticketOrder = append(r.ticketOrder, t.TicketID)
	}
	r.tickets[t.TicketID] = t
}

// AddMailMessage appends a message to a person's mailbox.
func (r *Repository) AddMailMessage(personID string, m models.MailMessage) {
	r.mailboxes[personID] = append(r.mailboxes[personID], m)
}

// GetPerson returns a person by ID.
func (r *Repository) GetPerson(id string) (models.Person, bool) {
	p, ok := r.persons[id]
	return p, ok
}

// GetTeam returns a team by ID.
func (r *Repository) GetTeam(id string) (models.Team, bool) {
	t, ok := r.teams[id]
	return t, ok
}

// GetProject returns a project by ID.
func (r *Repository) GetProject(id string) (models.Project, bool) {
	p, ok := r.projects[id]
	return p, ok
}

// GetEpic returns an epic by ID.
func (r *Repository) GetEpic(id string) (models.Epic, bool) {
	e, ok := r.epics[id]
	return e, ok
}

// GetSprint returns a sprint by ID.
func (r *Repository) GetSprint(id string) (models.Sprint, bool) {
	s, ok := r.sprints[id]
	return s, ok
}

// GetTicket returns a ticket by ID.
func (r *Repository) GetTicket(id string) (models.Ticket, bool) {
	t, ok := r.tickets[id]
	return t, ok
}

// GetPersonMail returns all mail in a person's mailbox, in insertion order.
func (r *Repository) GetPersonMail(personID string) []models.MailMessage {
	return r.mailboxes[personID]
}

// Persons returns all persons sorted by ID.
func (r *Repository) Persons() []models.Person {
	out := make([]models.Person, 0, len(r.persons))
	for _, p := range r.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out
}

// Tickets returns all tickets sorted by ID.
func (r *Repository) Tickets() []models.Ticket {
	out := make([]models.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out
}

// Epics returns all epics sorted by ID.
func (r *Repository) Epics() []models.Epic {
	out := make([]models.Epic, 0, len(r.epics))
	for _, e := range r.epics {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpicID < out[j].EpicID })
	return out
}

// Sprints returns all sprints sorted by ID.
func (r *Repository) Sprints() []models.Sprint {
	out := make([]models.Sprint, 0, len(r.sprints))
	for _, s := range r.sprints {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SprintID < out[j].SprintID })
	return out
}

// TicketInsertionOrder returns ticket IDs in the order they were added.
func (r *Repository) TicketInsertionOrder() []string {
	out := make([]string, len(r.ticketOrder))
	copy(out, r.ticketOrder)
	return out
}

// MailboxOwners returns the IDs of persons holding at least one message,
// sorted for deterministic iteration.
func (r *Repository) MailboxOwners() []string {
	out := make([]string, 0, len(r.mailboxes))
	for id := range r.mailboxes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// GetTeamMembers returns all persons on a team, sorted by ID.
func (r *Repository) GetTeamMembers(teamID string) []models.Person {
	var out []models.Person
	for _, p := range r.Persons() {
		if p.TeamID == teamID {
			out = append(out, p)
		}
	}
	return out
}

// GetProjectTickets returns all tickets belonging to a project. Tickets
// carry project linkage through their ID prefix (PROJ-PAY owns PAY-####).
func (r *Repository) GetProjectTickets(projectID string) []models.Ticket {
	key := projectKeyFromID(projectID)
	var out []models.Ticket
	for _, t := range r.Tickets() {
		if ticketKey(t.TicketID) == key {
			out = append(out, t)
		}
	}
	return out
}

// GetEpicTickets returns all tickets under an epic, sorted by ID.
func (r *Repository) GetEpicTickets(epicID string) []models.Ticket {
	var out []models.Ticket
	for _, t := range r.Tickets() {
		if t.EpicID == epicID {
			out = append(out, t)
		}
	}
	return out
}

// GetAssigneeTickets returns all tickets assigned to a person, sorted by ID.
func (r *Repository) GetAssigneeTickets(personID string) []models.Ticket {
	var out []models.Ticket
	for _, t := range r.Tickets() {
		if t.AssigneeID == personID {
			out = append(out, t)
		}
	}
	return out
}

// GetTicketsByStatus returns tickets whose current status (last timeline
// entry) matches.
func (r *Repository) GetTicketsByStatus(status models.Status) []models.Ticket {
	var out []models.Ticket
	for _, t := range r.Tickets() {
		if t.CurrentStatus() == status {
			out = append(out, t)
		}
	}
	return out
}

// GetTicketsInTimeframe returns tickets with any status transition or
// comment inside [start, end].
func (r *Repository) GetTicketsInTimeframe(start, end time.Time) []models.Ticket {
	var out []models.Ticket
	for _, t := range r.Tickets() {
		if ticketActiveIn(t, start, end) {
			out = append(out, t)
		}
	}
	return out
}

// GetMailInTimeframe returns a person's mail with timestamps inside
// [start, end].
func (r *Repository) GetMailInTimeframe(personID string, start, end time.Time) []models.MailMessage {
	var out []models.MailMessage
	for _, m := range r.mailboxes[personID] {
		if inRange(m.Timestamp, start, end) {
			out = append(out, m)
		}
	}
	return out
}

// ValidateReferences checks referential integrity across the graph and
// returns human-readable error strings. Integrity is advisory: an empty
// result is the only pass signal, nothing aborts.
func (r *Repository) ValidateReferences() []string {
	var errs []string

	for _, p := range r.Persons() {
		if p.ManagerID != "" {
			if _, ok := r.persons[p.ManagerID]; !ok {
				errs = append(errs, fmt.Sprintf("Person %s has invalid manager_id %s", p.PersonID, p.ManagerID))
			}
		}
	}

	for _, t := range r.Tickets() {
		if _, ok := r.persons[t.AssigneeID]; !ok {
			errs = append(errs, fmt.Sprintf("Ticket %s has invalid assignee_id %s", t.TicketID, t.AssigneeID))
		}
		if _, ok := r.persons[t.ReporterID]; !ok {
			errs = append(errs, fmt.Sprintf("Ticket %s has invalid reporter_id %s", t.TicketID, t.ReporterID))
		}
	}

	for _, personID := range r.MailboxOwners() {
		for _, m := range r.mailboxes[personID] {
			for _, ticketID := range m.Refs.TicketIDs {
				if _, ok := r.tickets[ticketID]; !ok {
					errs = append(errs, fmt.Sprintf("Mail %s references invalid ticket %s", m.MsgID, ticketID))
				}
			}
		}
	}

	return errs
}

// Statistics holds entity counts per kind.
type Statistics struct {
	Persons      int `json:"persons"`
	Tickets      int `json:"tickets"`
	MailMessages int `json:"mail_messages"`
	Teams        int `json:"teams"`
	Projects     int `json:"projects"`
	Epics        int `json:"epics"`
	Sprints      int `json:"sprints"`
}

// Statistics returns entity counts per kind.
func (r *Repository) Statistics() Statistics {
	mailCount := 0
	for _, msgs := range r.mailboxes {
		mailCount += len(msgs)
	}
	return Statistics{
		Persons:      len(r.persons),
		Tickets:      len(r.tickets),
		MailMessages: mailCount,
		Teams:        len(r.teams),
		Projects:     len(r.projects),
		Epics:        len(r.epics),
		Sprints:      len(r.sprints),
	}
}

func projectKeyFromID(projectID string) string {
	for i := len(projectID) - 1; i >= 0; i-- {
		if projectID[i] == '-' {
			return projectID[i+1:]
		}
	}
	return projectID
}

func ticketKey(ticketID string) string {
	for i := len(ticketID) - 1; i >= 0; i-- {
		if ticketID[i] == '-' {
			return ticketID[:i]
		}
	}
	return ticketID
}

func ticketActiveIn(t models.Ticket, start, end time.Time) bool {
	for _, tr := range t.StatusTimeline {
		if inRange(tr.At, start, end) {
			return true
		}
	}
	for _, c := range t.Comments {
		if inRange(c.At, start, end) {
			return true
		}
	}
	return false
}

func inRange(at, start, end time.Time) bool {
	return !at.Before(start) && !at.After(end)
}
