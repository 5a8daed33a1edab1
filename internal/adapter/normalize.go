package adapter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/orgforge/internal/models"
)

// fallbackPersonID is used when an ID variant carries no numeric suffix.
const fallbackPersonID = "PER-0001"

// RecordError pairs a rejected record with the reason, for caller-side
// logging. Record failures are never fatal.
type RecordError struct {
	Record any
	Err    error
}

var (
	canonicalPersonID = regexp.MustCompile(`^PER-\d{4}$`)
	numericSuffix     = regexp.MustCompile(`(\d+)`)
	subjectTicketRef  = regexp.MustCompile(`\[([A-Z][A-Z0-9]*-\d+)\]`)
)

// NormalizePersonID coerces observed person-ID variants (TL-001, DEV-2,
// per_3, ...) to the canonical PER-%04d format via numeric-suffix
// extraction, defaulting to PER-0001 when no digits are found.
func NormalizePersonID(id string) string {
	if canonicalPersonID.MatchString(id) {
		return id
	}
	if m := numericSuffix.FindString(id); m != "" {
		n, err := strconv.Atoi(m)
		if err == nil {
			return fmt.Sprintf("PER-%04d", n)
		}
	}
	return fallbackPersonID
}

// NormalizeEpicID coerces epic-ID variants (EPIC-0001, PAY-EPIC-1, epic 3)
// to EPIC-<KEY>-%02d. Returns "" when no numeric suffix exists — the
// caller treats that as "no epic".
func NormalizeEpicID(id, projectKey string) string {
	if id == "" {
		return ""
	}
	key := strings.ToUpper(projectKey)
	canonical := regexp.MustCompile(`^EPIC-` + key + `-\d{2}$`)
	if canonical.MatchString(id) {
		return id
	}
	matches := numericSuffix.FindAllString(id, -1)
	if len(matches) == 0 {
		return ""
	}
	n, err := strconv.Atoi(matches[len(matches)-1])
	if err != nil {
		return ""
	}
	return fmt.Sprintf("EPIC-%s-%02d", key, n)
}

// RecordsIn unwraps an extracted result into a list of record maps,
// accepting either a bare array or an object wrapping the array under key.
func RecordsIn(v any, key string) []map[string]any {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		if inner, ok := t[key].([]any); ok {
			items = inner
		}
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// NormalizePerson builds a Person from a loosely-typed record. The caller
// supplies the minted ID and team; the record must at least name the
// person and carry a recognizable level.
func NormalizePerson(m map[string]any, personID, teamID string) (models.Person, error) {
	name := getString(m, "name")
	if name == "" {
		return models.Person{}, fmt.Errorf("person record missing name")
	}
	level := models.Level(getString(m, "level"))
	if !level.IsValid() {
		return models.Person{}, fmt.Errorf("person %q has invalid level %q", name, level)
	}
	return models.Person{
		PersonID: personID,
		Name:     name,
		Role:     getString(m, "role"),
		Level:    level,
		TeamID:   teamID,
		Skills:   stringSlice(m["skills"]),
		Location: getString(m, "location"),
	}, nil
}

// TicketContext carries the fixed parameters for ticket normalization.
type TicketContext struct {
	TicketID   string
	ProjectID  string
	ProjectKey string
	Location   *time.Location
	Now        func() time.Time
}

// NormalizeTicket builds a Ticket from a loosely-typed record: field
// aliasing, ID coercion, timestamp parsing with a now() fallback, transient
// fields dropped, required-but-absent lists defaulted to empty.
func NormalizeTicket(m map[string]any, tc TicketContext) (models.Ticket, error) {
	title := getString(m, "title", "summary")
	if title == "" {
		return models.Ticket{}, fmt.Errorf("ticket record missing title")
	}
	ticketType := models.TicketType(getString(m, "type"))
	if !ticketType.IsValid() {
		return models.Ticket{}, fmt.Errorf("ticket %q has invalid type %q", title, ticketType)
	}
	priority := models.Priority(getString(m, "priority"))
	if !priority.IsValid() {
		priority = models.PriorityMedium
	}

	timeline, err := normalizeTimeline(m, tc)
	if err != nil {
		return models.Ticket{}, err
	}

	t := models.Ticket{
		TicketID:       tc.TicketID,
		ProjectID:      tc.ProjectID,
		EpicID:         NormalizeEpicID(getString(m, "epic_id", "epic"), tc.ProjectKey),
		Type:           ticketType,
		Title:          title,
		Description:    getString(m, "description"),
		Priority:       priority,
		ReporterID:     NormalizePersonID(getString(m, "reporter_id", "reporter")),
		AssigneeID:     NormalizePersonID(getString(m, "assignee_id", "assignee")),
		StatusTimeline: timeline,
		Comments:       normalizeComments(m, tc),
		Attachments:    normalizeAttachments(m["attachments"]),
	}
	if ticketType == models.TicketTypeStory {
		t.StoryPoints = intValue(m["story_points"])
	}
	return t, nil
}

// normalizeTimeline accepts status_timeline or the status_history alias,
// entries as {status, at|date}. Timestamps that fail to parse fall back to
// now(); out-of-order entries are an upstream defect reported here.
func normalizeTimeline(m map[string]any, tc TicketContext) ([]models.StatusChange, error) {
	raw, ok := m["status_timeline"].([]any)
	if !ok {
		raw, ok = m["status_history"].([]any)
	}
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("ticket record missing status_timeline")
	}
	timeline := make([]models.StatusChange, 0, len(raw))
	for _, entry := range raw {
		em, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		status := models.Status(getString(em, "status"))
		if !status.IsValid() {
			return nil, fmt.Errorf("invalid status %q in timeline", status)
		}
		timeline = append(timeline, models.StatusChange{
			Status: status,
			At:     ParseTimestamp(em["at"], em["date"], tc.Location, tc.Now),
		})
	}
	if len(timeline) == 0 {
		return nil, fmt.Errorf("ticket record has empty status_timeline")
	}
	for i := 1; i < len(timeline); i++ {
		if timeline[i].At.Before(timeline[i-1].At) {
			return nil, fmt.Errorf("status_timeline timestamps decrease at entry %d", i)
		}
	}
	return timeline, nil
}

// normalizeComments aliases comment/content/text to body and date to at.
// A comment without an author falls back to the ticket assignee.
func normalizeComments(m map[string]any, tc TicketContext) []models.Comment {
	raw, _ := m["comments"].([]any)
	comments := make([]models.Comment, 0, len(raw))
	assignee := getString(m, "assignee_id", "assignee")
	for _, entry := range raw {
		cm, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		body := getString(cm, "body", "comment", "content", "text")
		if body == "" {
			continue
		}
		author := getString(cm, "author_id", "author")
		if author == "" {
			author = assignee
		}
		comments = append(comments, models.Comment{
			AuthorID: NormalizePersonID(author),
			At:       ParseTimestamp(cm["at"], cm["date"], tc.Location, tc.Now),
			Body:     body,
		})
	}
	return comments
}

// normalizeAttachments accepts bare filename strings or {name}/{filename}
// objects; URLs absent upstream are synthesized. Always returns a non-nil
// slice — attachments is required by the schema.
func normalizeAttachments(v any) []models.Attachment {
	out := []models.Attachment{}
	raw, _ := v.([]any)
	for _, entry := range raw {
		switch a := entry.(type) {
		case string:
			name := lastPathSegment(a)
			out = append(out, models.Attachment{Name: name, URL: attachmentURL(a)})
		case map[string]any:
			name := getString(a, "name", "filename")
			if name == "" {
				continue
			}
			url := getString(a, "url")
			if url == "" {
				url = attachmentURL(name)
			}
			out = append(out, models.Attachment{Name: lastPathSegment(name), URL: url})
		}
	}
	return out
}

// MailContext carries the fixed parameters for mail normalization.
type MailContext struct {
	MsgID       string
	ThreadID    string
	PersonID    string
	PersonName  string
	CompanyName string
	TeamName    string
	Location    *time.Location
	Now         func() time.Time
}

// NormalizeMail builds a MailMessage from a loosely-typed record: sender
// and recipients are synthesized from the owning person and team, ticket
// refs are extracted from the subject, and an unusable category is
// inferred from subject/body keywords.
func NormalizeMail(m map[string]any, mc MailContext) (models.MailMessage, error) {
	subject := getString(m, "subject")
	if subject == "" {
		return models.MailMessage{}, fmt.Errorf("mail record missing subject")
	}
	body := strings.ReplaceAll(getString(m, "body", "body_md", "content"), `\n`, "\n")

	category := models.MailCategory(getString(m, "category"))
	if !category.IsValid() {
		category = inferCategory(subject, body)
	}

	var ticketIDs []string
	for _, match := range subjectTicketRef.FindAllStringSubmatch(subject, -1) {
		ticketIDs = append(ticketIDs, match[1])
	}

	return models.MailMessage{
		MsgID:       mc.MsgID,
		ThreadID:    mc.ThreadID,
		Subject:     subject,
		From:        mailAddress(mc.PersonName, mc.PersonID, mc.CompanyName),
		To:          []string{teamAddress(mc.TeamName, mc.CompanyName)},
		Timestamp:   ParseTimestamp(m["timestamp"], m["date"], mc.Location, mc.Now),
		Body:        body,
		Attachments: stringSlice(m["attachments"]),
		Category:    category,
		Refs:        models.MailRefs{TicketIDs: ticketIDs},
	}, nil
}

// inferCategory classifies a message from subject/body keywords when the
// engine supplied no usable category. Order matters: most specific first.
func inferCategory(subject, body string) models.MailCategory {
	s := strings.ToLower(subject)
	b := strings.ToLower(body)
	switch {
	case strings.Contains(s, "hr") || strings.Contains(b, "hr"):
		return models.MailHR
	case strings.Contains(s, "corporate") || strings.Contains(b, "announcement"):
		return models.MailCorporate
	case strings.Contains(s, "vendor") || strings.Contains(b, "procurement"):
		return models.MailVendor
	case strings.Contains(s, "security") || strings.Contains(b, "phishing"):
		return models.MailSecurity
	case strings.Contains(s, "event") || strings.Contains(b, "meeting"):
		return models.MailEvent
	case strings.Contains(s, "1:1"), strings.Contains(s, "performance"),
		strings.Contains(s, "review"), strings.Contains(s, "feedback"):
		return models.MailManagerial
	default:
		return models.MailWork
	}
}

// ParseTimestamp tries the primary then alias value as RFC 3339, a
// timezone-less variant interpreted in loc, or a bare date. Unparseable
// input falls back to now().
func ParseTimestamp(primary, alias any, loc *time.Location, now func() time.Time) time.Time {
	for _, v := range []any{primary, alias} {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		s = strings.TrimSpace(s)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
			return t
		}
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc); err == nil {
			return t
		}
		if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
			return t
		}
	}
	return now()
}

func mailAddress(name, personID, company string) string {
	local := strings.ToLower(strings.ReplaceAll(name, " ", "."))
	if local == "" {
		local = strings.ToLower(personID)
	}
	return local + "@" + companyDomain(company)
}

func teamAddress(team, company string) string {
	local := strings.ToLower(strings.ReplaceAll(team, " ", "-"))
	if local == "" {
		local = "team"
	}
	return local + "@" + companyDomain(company)
}

func companyDomain(company string) string {
	d := strings.ToLower(strings.ReplaceAll(company, " ", ""))
	if d == "" {
		d = "company"
	}
	return d + ".com"
}

func attachmentURL(name string) string {
	return "https://example.com/attachments/" + name
}

func lastPathSegment(s string) string {
	if idx := strings.LastIndexByte(s, '/'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringSlice(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
