package models

import (
	"time"
)

// TicketType classifies the kind of ticket.
type TicketType string

const (
	TicketTypeStory TicketType = "Story"
	TicketTypeBug   TicketType = "Bug"
	TicketTypeTask  TicketType = "Task"
	TicketTypeSpike TicketType = "Spike"
)

// ValidTicketTypes is the set of all valid ticket types.
var ValidTicketTypes = []TicketType{
	TicketTypeStory,
	TicketTypeBug,
	TicketTypeTask,
	TicketTypeSpike,
}

// IsValid returns true if the ticket type is recognized.
func (t TicketType) IsValid() bool {
	for _, v := range ValidTicketTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Priority is a ticket's priority band.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// ValidPriorities is the set of all valid priorities.
var ValidPriorities = []Priority{
	PriorityLow,
	PriorityMedium,
	PriorityHigh,
	PriorityCritical,
}

// IsValid returns true if the priority is recognized.
func (p Priority) IsValid() bool {
	for _, v := range ValidPriorities {
		if p == v {
			return true
		}
	}
	return false
}

// Status is a ticket workflow status.
type Status string

const (
	StatusBacklog    Status = "Backlog"
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusCodeReview Status = "Code Review"
	StatusTesting    Status = "Testing"
	StatusDone       Status = "Done"
)

// ValidStatuses is the set of all valid ticket statuses.
var ValidStatuses = []Status{
	StatusBacklog,
	StatusToDo,
	StatusInProgress,
	StatusCodeReview,
	StatusTesting,
	StatusDone,
}

// IsValid returns true if the status is recognized.
func (s Status) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Project owns epics and lends its key to ticket IDs.
type Project struct {
	ProjectID string `json:"project_id"`
	Key       string `json:"key"`
	Name      string `json:"name"`
}

// Epic is a grouping of tickets under a project.
type Epic struct {
	EpicID    string `json:"epic_id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name,omitempty"`
}

// Sprint is a time-boxed iteration within a project.
type Sprint struct {
	SprintID  string    `json:"sprint_id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name,omitempty"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// StatusChange is one entry in a ticket's status timeline.
type StatusChange struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// Comment is a dated remark on a ticket.
type Comment struct {
	AuthorID string    `json:"author_id"`
	At       time.Time `json:"at"`
	Body     string    `json:"body"`
}

// Attachment is a named file reference on a ticket.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Ticket is a Jira-style work item with its full lifecycle populated
// at creation time; tickets are never mutated in place.
type Ticket struct {
	TicketID       string         `json:"ticket_id"`
	ProjectID      string         `json:"project_id"`
	EpicID         string         `json:"epic_id,omitempty"`
	Type           TicketType     `json:"type"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Priority       Priority       `json:"priority"`
	StoryPoints    int            `json:"story_points,omitempty"`
	ReporterID     string         `json:"reporter_id"`
	AssigneeID     string         `json:"assignee_id"`
	StatusTimeline []StatusChange `json:"status_timeline"`
	Comments       []Comment      `json:"comments"`
	Attachments    []Attachment   `json:"attachments"`
}

// CurrentStatus returns the last timeline entry's status, or "" for an
// empty timeline.
func (t *Ticket) CurrentStatus() Status {
	if len(t.StatusTimeline) == 0 {
		return ""
	}
	return t.StatusTimeline[len(t.StatusTimeline)-1].Status
}
