package models

import "encoding/json"

// MessageTypeMailJob identifies envelopes carrying a MailJob.
const MessageTypeMailJob = "mail_job"

// MailJob asks the mailer to render Template with Params and send it to To.
type MailJob struct {
	To       string          `json:"to"`
	Template string          `json:"template"`
	Params   json.RawMessage `json:"params,omitempty"`
}
