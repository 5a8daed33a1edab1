package models

import (
	"time"
)

// MailCategory classifies a mail message.
type MailCategory string

const (
	MailWork        MailCategory = "work"
	MailManagerial  MailCategory = "managerial"
	MailCustomer    MailCategory = "customer"
	MailCorporate   MailCategory = "corporate"
	MailHR          MailCategory = "hr"
	MailVendor      MailCategory = "vendor"
	MailSecurity    MailCategory = "security"
	MailEvent       MailCategory = "event"
	MailFacilities  MailCategory = "facilities"
	MailSpam        MailCategory = "spam"
	MailPhishingSim MailCategory = "phishing_sim"
)

// ValidMailCategories is the set of all valid mail categories.
var ValidMailCategories = []MailCategory{
	MailWork,
	MailManagerial,
	MailCustomer,
	MailCorporate,
	MailHR,
	MailVendor,
	MailSecurity,
	MailEvent,
	MailFacilities,
	MailSpam,
	MailPhishingSim,
}

// IsValid returns true if the mail category is recognized.
func (c MailCategory) IsValid() bool {
	for _, v := range ValidMailCategories {
		if c == v {
			return true
		}
	}
	return false
}

// NonProjectCategories are the categories counted toward manager inbox
// diversity (everything outside day-to-day project traffic).
var NonProjectCategories = []MailCategory{
	MailCorporate,
	MailHR,
	MailVendor,
	MailSecurity,
	MailEvent,
	MailFacilities,
	MailSpam,
	MailPhishingSim,
}

// MailRefs links a message to the tickets it discusses.
type MailRefs struct {
	TicketIDs []string `json:"ticket_ids"`
}

// MailMessage is one email in a person's mailbox. Mailboxes are disjoint:
// a message lives in exactly one person's list.
type MailMessage struct {
	MsgID       string       `json:"msg_id"`
	ThreadID    string       `json:"thread_id"`
	Subject     string       `json:"subject"`
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Timestamp   time.Time    `json:"timestamp"`
	Body        string       `json:"body_md"`
	Attachments []string     `json:"attachments"`
	Category    MailCategory `json:"category"`
	Refs        MailRefs     `json:"refs"`
}
