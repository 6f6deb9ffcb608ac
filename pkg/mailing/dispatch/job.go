package dispatch

import (
	"encoding/json"

	"github.com/Abraxas-365/bulkmail/pkg/jobx"
	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
)

// JobType is the jobx type of a single-recipient delivery.
const JobType = "mailing.deliver"

// Message is the content shared by every delivery of one dispatch.
type Message struct {
	FromName  string `json:"from_name,omitempty"`
	FromEmail string `json:"from_email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	IsHTML    bool   `json:"is_html,omitempty"`
}

// From renders the From header.
func (m Message) From() string {
	return notifx.FormatAddress(m.FromName, m.FromEmail)
}

// DeliveryJob is the payload of one delivery: everything the worker needs to
// send to a single recipient and record the outcome.
type DeliveryJob struct {
	Relay     notifx.Relay  `json:"relay"`
	Recipient string        `json:"recipient"`
	From      string        `json:"from"`
	Subject   string        `json:"subject"`
	Body      string        `json:"body"`
	IsHTML    bool          `json:"is_html,omitempty"`
	LogKey    kernel.LogKey `json:"log_key"`
}

// Email builds the message handed to the relay sender.
func (d DeliveryJob) Email() notifx.EmailMessage {
	msg := notifx.EmailMessage{
		From:    d.From,
		To:      []string{d.Recipient},
		Subject: d.Subject,
	}
	if d.IsHTML {
		msg.HTMLBody = d.Body
	} else {
		msg.TextBody = d.Body
	}
	return msg
}

// DecodeJob reads a DeliveryJob from a job payload.
func DecodeJob(payload []byte) (DeliveryJob, error) {
	var d DeliveryJob
	if err := json.Unmarshal(payload, &d); err != nil {
		return DeliveryJob{}, err
	}
	return d, nil
}

func buildJobs(addrs []string, msg Message, relay notifx.Relay, key kernel.LogKey, queue string) ([]jobx.Job, error) {
	jobs := make([]jobx.Job, len(addrs))
	from := msg.From()
	for i, addr := range addrs {
		payload, err := json.Marshal(DeliveryJob{
			Relay:     relay,
			Recipient: addr,
			From:      from,
			Subject:   msg.Subject,
			Body:      msg.Body,
			IsHTML:    msg.IsHTML,
			LogKey:    key,
		})
		if err != nil {
			return nil, err
		}
		jobs[i] = jobx.Job{Type: JobType, Queue: queue, Payload: payload}
	}
	return jobs, nil
}
