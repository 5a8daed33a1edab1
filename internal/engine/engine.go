// Package engine abstracts the external content-generation collaborator.
// The workflow talks to a single synchronous capability that takes a step
// context and returns raw, possibly loosely-structured text; everything
// downstream of that call treats the output as untrusted input.
package engine

import (
	"context"

	"github.com/ajitpratap0/orgforge/internal/checkpoint"
	"github.com/ajitpratap0/orgforge/internal/config"
	"github.com/ajitpratap0/orgforge/internal/models"
)

// StepContext is the read-only context assembled for one generation step:
// configuration plus the repository state accumulated by earlier steps.
type StepContext struct {
	Step   checkpoint.Step
	Config *config.Config

	CompanyContext map[string]any
	Persons        []models.Person
	Tickets        []models.Ticket
	Epics          []models.Epic
	Sprints        []models.Sprint
}

// Engine executes one generation step and returns its raw output. The
// result may be structured JSON, fenced JSON, or arbitrary prose — the
// adapter decides.
type Engine interface {
	ExecuteStep(ctx context.Context, sc StepContext) (string, error)
}
