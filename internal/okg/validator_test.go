package okg

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/orgforge/internal/models"
)

func businessHour(day, hour int) time.Time {
	return time.Date(2025, 6, day, hour, 30, 0, 0, time.UTC)
}

func workMail(msgID, subject string, ts time.Time, refs ...string) models.MailMessage {
	return models.MailMessage{
		MsgID:     msgID,
		Subject:   subject,
		Timestamp: ts,
		Category:  models.MailWork,
		Refs:      models.MailRefs{TicketIDs: refs},
	}
}

func TestValidator_TicketSubjectMentions(t *testing.T) {
	r := seedRepo(t)
	v := NewValidator(r)
	assert.Empty(t, v.ValidateTicketSubjectMentions())

	r.AddMailMessage("PER-0002", workMail("MSG-010", "Settlement rounding update", businessHour(4, 10), "PAY-1401"))
	errs := v.ValidateTicketSubjectMentions()
	require.Len(t, errs, 1)
	assert.Equal(t, "Mail MSG-010 references PAY-1401 but subject doesn't contain [PAY-1401]", errs[0])
}

func TestValidator_DoneTicketsHaveCodeReview(t *testing.T) {
	r := seedRepo(t)
	done := models.Ticket{
		TicketID:   "PAY-1410",
		ProjectID:  "PROJ-PAY",
		Type:       models.TicketTypeStory,
		Title:      "Refund flow",
		Priority:   models.PriorityHigh,
		ReporterID: "PER-0001",
		AssigneeID: "PER-0002",
		StatusTimeline: []models.StatusChange{
			{Status: models.StatusDone, At: businessHour(10, 16)},
		},
		Comments: []models.Comment{
			{AuthorID: "PER-0001", At: businessHour(10, 15), Body: "Code looks good to me. LGTM!"},
		},
	}
	r.AddTicket(done)

	// PAY-1402 from the seed is Done without any comment.
	errs := NewValidator(r).ValidateDoneTicketsHaveCodeReview()
	require.Len(t, errs, 1)
	assert.Equal(t, "Ticket PAY-1402 is Done but has no code review comment", errs[0])
}

func TestValidator_DoneTicketsHaveCodeReview_NonReviewComment(t *testing.T) {
	r := NewRepository()
	r.AddTicket(models.Ticket{
		TicketID:       "PAY-1401",
		Type:           models.TicketTypeStory,
		StatusTimeline: []models.StatusChange{{Status: models.StatusDone, At: businessHour(5, 11)}},
		Comments:       []models.Comment{{AuthorID: "PER-0001", Body: "Working on this task"}},
	})

	errs := NewValidator(r).ValidateDoneTicketsHaveCodeReview()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "PAY-1401 is Done but has no code review comment")
}

func TestValidator_TicketReferencesExist(t *testing.T) {
	r := seedRepo(t)
	r.AddMailMessage("PER-0001", workMail("MSG-020", "[PAY-9999] Phantom", businessHour(6, 11), "PAY-9999"))

	errs := NewValidator(r).ValidateTicketReferencesExist()
	require.Len(t, errs, 1)
	assert.Equal(t, "Mail MSG-020 references non-existent ticket PAY-9999", errs[0])
}

func TestValidator_ManagerInboxDiversity(t *testing.T) {
	r := seedRepo(t)

	// Three work mails plus one corporate mail puts the manager at 25%.
	for i := 0; i < 3; i++ {
		r.AddMailMessage("PER-0001", workMail(fmt.Sprintf("MSG-03%d", i), "[PAY-1401] Standup notes", businessHour(9+i, 10), "PAY-1401"))
	}
	r.AddMailMessage("PER-0001", models.MailMessage{
		MsgID: "MSG-040", Subject: "All hands recording", Timestamp: businessHour(12, 14),
		Category: models.MailCorporate,
	})
	assert.Empty(t, NewValidator(r).ValidateManagerInboxDiversity())

	// Two more work mails dilutes non-project mail to 1/6 ≈ 16.7%.
	r.AddMailMessage("PER-0001", workMail("MSG-041", "[PAY-1402] Retry budget", businessHour(13, 10), "PAY-1402"))
	r.AddMailMessage("PER-0001", workMail("MSG-042", "[PAY-1402] Retry budget redux", businessHour(13, 11), "PAY-1402"))

	errs := NewValidator(r).ValidateManagerInboxDiversity()
	require.Len(t, errs, 1)
	assert.Equal(t, "Manager PER-0001 has only 16.7% non-project emails (should be ≥20%)", errs[0])
}

func TestValidator_ManagerInboxDiversity_WorkOnlyInbox(t *testing.T) {
	r := seedRepo(t)
	for i := 0; i < 5; i++ {
		r.AddMailMessage("PER-0001", workMail(fmt.Sprintf("MSG-09%d", i), "[PAY-1401] Standup notes", businessHour(9+i, 10), "PAY-1401"))
	}

	errs := NewValidator(r).ValidateManagerInboxDiversity()
	require.Len(t, errs, 1)
	assert.Equal(t, "Manager PER-0001 has only 0.0% non-project emails (should be ≥20%)", errs[0])
}

func TestValidator_ManagerInboxDiversity_EmptyMailboxSkipped(t *testing.T) {
	r := seedRepo(t)
	assert.Empty(t, NewValidator(r).ValidateManagerInboxDiversity())
}

func TestValidator_BusinessHoursRealism(t *testing.T) {
	r := NewRepository()
	// Five in-hours messages, one at 23:30: 1/6 ≈ 16.7% off-hours.
	for i := 0; i < 5; i++ {
		r.AddMailMessage("PER-0002", workMail(fmt.Sprintf("MSG-05%d", i), "FYI", businessHour(2+i, 10)))
	}
	r.AddMailMessage("PER-0002", workMail("MSG-059", "late ping", businessHour(8, 23)))

	errs := NewValidator(r).ValidateBusinessHoursRealism()
	require.Len(t, errs, 1)
	assert.Equal(t, "Person PER-0002 has 16.7% emails outside business hours (should be ≤15%)", errs[0])
}

func TestValidator_BusinessHoursRealism_BoundaryHours(t *testing.T) {
	r := NewRepository()
	// 09:xx and 18:xx both count as business hours.
	r.AddMailMessage("PER-0002", workMail("MSG-060", "early", businessHour(2, 9)))
	r.AddMailMessage("PER-0002", workMail("MSG-061", "late", businessHour(2, 18)))
	assert.Empty(t, NewValidator(r).ValidateBusinessHoursRealism())
}

func TestValidator_SpamLimits(t *testing.T) {
	r := NewRepository()
	for i := 0; i < 9; i++ {
		r.AddMailMessage("PER-0002", workMail(fmt.Sprintf("MSG-07%d", i), "FYI", businessHour(2+i, 10)))
	}
	r.AddMailMessage("PER-0002", models.MailMessage{
		MsgID: "MSG-079", Subject: "You won a prize!!!", Timestamp: businessHour(11, 10),
		Category: models.MailSpam,
	})

	errs := NewValidator(r).ValidateSpamLimits()
	require.Len(t, errs, 1)
	assert.Equal(t, "Person PER-0002 has 10.0% spam emails (should be ≤5%)", errs[0])
}

func TestValidator_DeterministicOrdering(t *testing.T) {
	r := seedRepo(t)
	assert.Empty(t, NewValidator(r).ValidateDeterministicOrdering())

	r.AddTicket(models.Ticket{TicketID: "PAY-1399", ProjectID: "PROJ-PAY", Type: models.TicketTypeTask, Title: "out of order", Priority: models.PriorityLow, ReporterID: "PER-0001", AssigneeID: "PER-0002"})
	errs := NewValidator(r).ValidateDeterministicOrdering()
	require.Len(t, errs, 1)
	assert.Equal(t, "Tickets are not deterministically ordered by ID", errs[0])
}

func TestValidator_DeterministicOrdering_MailTimestamps(t *testing.T) {
	r := NewRepository()
	r.AddMailMessage("PER-0002", workMail("MSG-080", "second", businessHour(5, 12)))
	r.AddMailMessage("PER-0002", workMail("MSG-081", "first", businessHour(5, 10)))

	errs := NewValidator(r).ValidateDeterministicOrdering()
	require.Len(t, errs, 1)
	assert.Equal(t, "Mail messages for PER-0002 are not ordered by timestamp", errs[0])
}

func TestValidator_Summarize(t *testing.T) {
	r := seedRepo(t)
	summary := NewValidator(r).Summarize()
	// The seed's PAY-1402 is Done with no review comment.
	assert.False(t, summary.Passed)
	assert.Equal(t, 1, summary.TotalErrors)
	assert.Equal(t, 1, summary.ErrorsByCategory[RuleDoneTicketsCodeReview])
	assert.Len(t, summary.DetailedErrors, len(RuleCategories))
}
