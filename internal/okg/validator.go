package okg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ajitpratap0/orgforge/internal/models"
)

// Rule categories reported by the validator.
const (
	RuleTicketSubjectMentions = "ticket_subject_mentions"
	RuleDoneTicketsCodeReview = "done_tickets_code_review"
	RuleTicketReferences      = "ticket_references"
	RuleManagerInboxDiversity = "manager_inbox_diversity"
	RuleBusinessHours         = "business_hours"
	RuleSpamLimits            = "spam_limits"
	RuleDeterministicOrdering = "deterministic_ordering"
)

// RuleCategories lists all rule categories in report order.
var RuleCategories = []string{
	RuleTicketSubjectMentions,
	RuleDoneTicketsCodeReview,
	RuleTicketReferences,
	RuleManagerInboxDiversity,
	RuleBusinessHours,
	RuleSpamLimits,
	RuleDeterministicOrdering,
}

// codeReviewKeywords satisfy the done-ticket review rule when any appears
// in a comment body (lowercased).
var codeReviewKeywords = []string{"code review", "lgtm", "approved", "looks good", "reviewed"}

// Rule thresholds. These are contractual, not tunable heuristics.
const (
	managerDiversityFloor = 0.20
	offHoursCeiling       = 0.15
	spamCeiling           = 0.05
	businessHourStart     = 9
	businessHourEnd       = 18
)

// Validator audits a repository snapshot against the fixed business-rule
// set. It is read-only and stateless between runs; no rule failure is
// fatal to the pipeline.
type Validator struct {
	repo *Repository
}

// NewValidator creates a validator over the given repository.
func NewValidator(repo *Repository) *Validator {
	return &Validator{repo: repo}
}

// ValidateTicketSubjectMentions checks every referenced ticket ID appears
// in the mail subject as the literal substring [<ticket_id>].
func (v *Validator) ValidateTicketSubjectMentions() []string {
	var errs []string
	for _, personID := range v.repo.MailboxOwners() {
		for _, m := range v.repo.GetPersonMail(personID) {
			for _, ticketID := range m.Refs.TicketIDs {
				if !strings.Contains(m.Subject, "["+ticketID+"]") {
					errs = append(errs, fmt.Sprintf(
						"Mail %s references %s but subject doesn't contain [%s]",
						m.MsgID, ticketID, ticketID))
				}
			}
		}
	}
	return errs
}

// ValidateDoneTicketsHaveCodeReview checks every Done ticket has at least
// one review-flavored comment.
func (v *Validator) ValidateDoneTicketsHaveCodeReview() []string {
	var errs []string
	for _, t := range v.repo.Tickets() {
		if t.CurrentStatus() != models.StatusDone {
			continue
		}
		reviewed := false
		for _, c := range t.Comments {
			body := strings.ToLower(c.Body)
			for _, kw := range codeReviewKeywords {
				if strings.Contains(body, kw) {
					reviewed = true
					break
				}
			}
			if reviewed {
				break
			}
		}
		if !reviewed {
			errs = append(errs, fmt.Sprintf(
				"Ticket %s is Done but has no code review comment", t.TicketID))
		}
	}
	return errs
}

// ValidateTicketReferencesExist checks every mail ticket reference
// resolves to an existing ticket.
func (v *Validator) ValidateTicketReferencesExist() []string {
	var errs []string
	for _, personID := range v.repo.MailboxOwners() {
		for _, m := range v.repo.GetPersonMail(personID) {
			for _, ticketID := range m.Refs.TicketIDs {
				if _, ok := v.repo.GetTicket(ticketID); !ok {
					errs = append(errs, fmt.Sprintf(
						"Mail %s references non-existent ticket %s", m.MsgID, ticketID))
				}
			}
		}
	}
	return errs
}

// ValidateManagerInboxDiversity checks each manager's mailbox holds at
// least 20% non-project mail. Managers with empty mailboxes are skipped.
func (v *Validator) ValidateManagerInboxDiversity() []string {
	var errs []string
	for _, p := range v.repo.Persons() {
		if p.Level != models.LevelManager {
			continue
		}
		messages := v.repo.GetPersonMail(p.PersonID)
		if len(messages) == 0 {
			continue
		}
		nonProject := 0
		for _, m := range messages {
			if isNonProjectCategory(m.Category) {
				nonProject++
			}
		}
		ratio := float64(nonProject) / float64(len(messages))
		if ratio < managerDiversityFloor {
			errs = append(errs, fmt.Sprintf(
				"Manager %s has only %.1f%% non-project emails (should be ≥20%%)",
				p.PersonID, ratio*100))
		}
	}
	return errs
}

// ValidateBusinessHoursRealism checks at most 15% of each person's mail
// falls outside 09:00–18:59 local time.
func (v *Validator) ValidateBusinessHoursRealism() []string {
	var errs []string
	for _, personID := range v.repo.MailboxOwners() {
		messages := v.repo.GetPersonMail(personID)
		if len(messages) == 0 {
			continue
		}
		outside := 0
		for _, m := range messages {
			hour := m.Timestamp.Hour()
			if hour < businessHourStart || hour > businessHourEnd {
				outside++
			}
		}
		ratio := float64(outside) / float64(len(messages))
		if ratio > offHoursCeiling {
			errs = append(errs, fmt.Sprintf(
				"Person %s has %.1f%% emails outside business hours (should be ≤15%%)",
				personID, ratio*100))
		}
	}
	return errs
}

// ValidateSpamLimits checks spam is at most 5% of each person's mail.
func (v *Validator) ValidateSpamLimits() []string {
	var errs []string
	for _, personID := range v.repo.MailboxOwners() {
		messages := v.repo.GetPersonMail(personID)
		if len(messages) == 0 {
			continue
		}
		spam := 0
		for _, m := range messages {
			if m.Category == models.MailSpam {
				spam++
			}
		}
		ratio := float64(spam) / float64(len(messages))
		if ratio > spamCeiling {
			errs = append(errs, fmt.Sprintf(
				"Person %s has %.1f%% spam emails (should be ≤5%%)",
				personID, ratio*100))
		}
	}
	return errs
}

// ValidateDeterministicOrdering checks ticket insertion order is already
// lexicographic and each mailbox is non-decreasing by timestamp.
func (v *Validator) ValidateDeterministicOrdering() []string {
	var errs []string

	order := v.repo.TicketInsertionOrder()
	if !sort.StringsAreSorted(order) {
		errs = append(errs, "Tickets are not deterministically ordered by ID")
	}

	for _, personID := range v.repo.MailboxOwners() {
		messages := v.repo.GetPersonMail(personID)
		for i := 1; i < len(messages); i++ {
			if messages[i].Timestamp.Before(messages[i-1].Timestamp) {
				errs = append(errs, fmt.Sprintf(
					"Mail messages for %s are not ordered by timestamp", personID))
				break
			}
		}
	}

	return errs
}

// ValidateAllRules runs every rule and returns violations keyed by category.
func (v *Validator) ValidateAllRules() map[string][]string {
	return map[string][]string{
		RuleTicketSubjectMentions: v.ValidateTicketSubjectMentions(),
		RuleDoneTicketsCodeReview: v.ValidateDoneTicketsHaveCodeReview(),
		RuleTicketReferences:      v.ValidateTicketReferencesExist(),
		RuleManagerInboxDiversity: v.ValidateManagerInboxDiversity(),
		RuleBusinessHours:         v.ValidateBusinessHoursRealism(),
		RuleSpamLimits:            v.ValidateSpamLimits(),
		RuleDeterministicOrdering: v.ValidateDeterministicOrdering(),
	}
}

// Summary aggregates a full rule run into a pass/fail report.
type Summary struct {
	Passed           bool                `json:"passed"`
	TotalErrors      int                 `json:"total_errors"`
	ErrorsByCategory map[string]int      `json:"errors_by_category"`
	DetailedErrors   map[string][]string `json:"detailed_errors"`
}

// Summarize runs all rules and aggregates the results.
func (v *Validator) Summarize() Summary {
	detailed := v.ValidateAllRules()
	byCategory := make(map[string]int, len(detailed))
	total := 0
	for category, errs := range detailed {
		byCategory[category] = len(errs)
		total += len(errs)
	}
	return Summary{
		Passed:           total == 0,
		TotalErrors:      total,
		ErrorsByCategory: byCategory,
		DetailedErrors:   detailed,
	}
}

func isNonProjectCategory(c models.MailCategory) bool {
	for _, v := range models.NonProjectCategories {
		if c == v {
			return true
		}
	}
	return false
}
