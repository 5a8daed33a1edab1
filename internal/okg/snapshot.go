package okg

import (
	"github.com/ajitpratap0/orgforge/internal/models"
)

// Snapshot is the serializable form of a Repository, persisted by the
// checkpoint manager and restored on resume.
type Snapshot struct {
	Persons           map[string]models.Person
	Teams             map[string]models.Team
	Projects          map[string]models.Project
	Epics             map[string]models.Epic
	Sprints           map[string]models.Sprint
	Tickets           map[string]models.Ticket
	TicketOrder       []string
	Mailboxes         map[string][]models.MailMessage
	CompanyContext    map[string]any
	CalendarTemplates []map[string]any
}

// Snapshot captures the full repository state by value.
func (r *Repository) Snapshot() Snapshot {
	s := Snapshot{
		Persons:           make(map[string]models.Person, len(r.persons)),
		Teams:             make(map[string]models.Team, len(r.teams)),
		Projects:          make(map[string]models.Project, len(r.projects)),
		Epics:             make(map[string]models.Epic, len(r.epics)),
		Sprints:           make(map[string]models.Sprint, len(r.sprints)),
		Tickets:           make(map[string]models.Ticket, len(r.tickets)),
		TicketOrder:       append([]string(nil), r.ticketOrder...),
		Mailboxes:         make(map[string][]models.MailMessage, len(r.mailboxes)),
		CompanyContext:    r.CompanyContext,
		CalendarTemplates: r.CalendarTemplates,
	}
	for k, v := range r.persons {
		s.Persons[k] = v
	}
	for k, v := range r.teams {
		s.Teams[k] = v
	}
	for k, v := range r.projects {
		s.Projects[k] = v
	}
	for k, v := range r.epics {
		s.Epics[k] = v
	}
	for k, v := range r.sprints {
		s.Sprints[k] = v
	}
	for k, v := range r.tickets {
		s.Tickets[k] = v
	}
	for k, v := range r.mailboxes {
		s.Mailboxes[k] = append([]models.MailMessage(nil), v...)
	}
	return s
}

// RestoreSnapshot replaces the repository contents with the snapshot.
func (r *Repository) RestoreSnapshot(s Snapshot) {
	r.persons = orEmpty(s.Persons)
	r.teams = orEmpty(s.Teams)
	r.projects = orEmpty(s.Projects)
	r.epics = orEmpty(s.Epics)
	r.sprints = orEmpty(s.Sprints)
	r.tickets = orEmpty(s.Tickets)
	r.ticketOrder = append([]string(nil), s.TicketOrder...)
	r.mailboxes = orEmpty(s.Mailboxes)
	if s.CompanyContext != nil {
		r.CompanyContext = s.CompanyContext
	} else {
		r.CompanyContext = make(map[string]any)
	}
	r.CalendarTemplates = s.CalendarTemplates
}

func orEmpty[V any](m map[string]V) map[string]V {
	if m == nil {
		return make(map[string]V)
	}
	return m
}
