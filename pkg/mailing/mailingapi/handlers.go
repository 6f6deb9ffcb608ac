package mailingapi

import (
	"bytes"
	"encoding/json"
	"mime"
	"strconv"
	"strings"

	"github.com/Abraxas-365/bulkmail/pkg/kernel"
	"github.com/Abraxas-365/bulkmail/pkg/mailing"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/dispatch"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/mailingsrv"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/recipients"
	"github.com/Abraxas-365/bulkmail/pkg/notifx"
	"github.com/gofiber/fiber/v2"
)

// SessionHeader lets the caller choose the id of an uploaded session.
const SessionHeader = "X-Session-ID"

type MailingHandlers struct {
	service *mailingsrv.Service
}

func NewMailingHandlers(service *mailingsrv.Service) *MailingHandlers {
	return &MailingHandlers{service: service}
}

func (h *MailingHandlers) RegisterRoutes(router fiber.Router) {
	router.Post("/recipients", h.UploadRecipients)
	router.Post("/send-email", h.SendEmail)
	router.Get("/status", h.Status)
	router.Get("/log-download", h.DownloadLog)
}

// ============================================================================
// Recipients
// ============================================================================

type recipientsRequest struct {
	Recipients []string `json:"recipients"`
}

type recipientsResponse struct {
	SessionID       kernel.SessionID `json:"sessionId"`
	Total           int              `json:"total"`
	ValidRecipients []string         `json:"validRecipients"`
}

// UploadRecipients accepts a multipart file (field "file"), a JSON body or
// a text/plain body with one address per line.
func (h *MailingHandlers) UploadRecipients(c *fiber.Ctx) error {
	addrs, err := readRecipients(c)
	if err != nil {
		return err
	}

	id := kernel.NewSessionID(strings.TrimSpace(c.Get(SessionHeader)))
	sess, err := h.service.CreateSession(c.UserContext(), id, addrs)
	if err != nil {
		return err
	}

	return c.JSON(recipientsResponse{
		SessionID:       sess.ID,
		Total:           sess.Total(),
		ValidRecipients: sess.Recipients,
	})
}

func readRecipients(c *fiber.Ctx) ([]string, error) {
	ct := strings.ToLower(c.Get(fiber.HeaderContentType))

	switch {
	case strings.HasPrefix(ct, fiber.MIMEMultipartForm):
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, mailing.ErrInvalidInput("No file uploaded")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, mailing.ErrInvalidInput("Uploaded file could not be read").WithCause(err)
		}
		defer f.Close()
		return recipients.Parse(f, fh.Filename)

	case strings.HasPrefix(ct, fiber.MIMETextPlain):
		return recipients.Parse(bytes.NewReader(c.Body()), "recipients.txt")

	default:
		var req recipientsRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return nil, mailing.ErrInvalidInput("Invalid request body").WithCause(err)
		}
		return req.Recipients, nil
	}
}

// ============================================================================
// Dispatch
// ============================================================================

// looseString accepts a JSON string or number, since form builders send
// ports and limits either way.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = looseString(num.String())
	return nil
}

func (s looseString) int() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(s)))
	return n, err == nil
}

type sendEmailRequest struct {
	SMTPHost  string      `json:"smtp-host"`
	SMTPPort  looseString `json:"smtp-port"`
	SMTPUser  string      `json:"smtp-user"`
	SMTPPass  string      `json:"smtp-pass"`
	TestBulk  string      `json:"test-bulk"`
	TestRecp  string      `json:"test-recp"`
	Limit     looseString `json:"limit"`
	FromName  string      `json:"smtp-from-name"`
	FromEmail string      `json:"smtp-from-email"`
	Subject   string      `json:"subject"`
	PlainHTML string      `json:"plain-html"`
	Message   string      `json:"message"`
	SessionID string      `json:"sessionId"`
}

func (r sendEmailRequest) toDispatch() mailingsrv.DispatchRequest {
	port, _ := r.SMTPPort.int()
	// An unparsable limit sends everything that remains.
	limit, _ := r.Limit.int()

	return mailingsrv.DispatchRequest{
		SessionID:      kernel.NewSessionID(r.SessionID),
		Limit:          limit,
		Test:           r.TestBulk == "Test",
		TestRecipients: r.TestRecp,
		Message: dispatch.Message{
			FromName:  r.FromName,
			FromEmail: strings.TrimSpace(r.FromEmail),
			Subject:   r.Subject,
			Body:      r.Message,
			IsHTML:    r.PlainHTML == "HTML",
		},
		Relay: notifx.Relay{
			Host:     strings.TrimSpace(r.SMTPHost),
			Port:     port,
			Secure:   port == 465,
			Username: r.SMTPUser,
			Password: r.SMTPPass,
		},
	}
}

type sendEmailResponse struct {
	Status     string        `json:"status"`
	BatchCount int           `json:"batchCount"`
	LogKey     kernel.LogKey `json:"logKey"`
}

func (h *MailingHandlers) SendEmail(c *fiber.Ctx) error {
	var req sendEmailRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return mailing.ErrInvalidInput("Invalid request body").WithCause(err)
	}

	res, err := h.service.DispatchBatch(c.UserContext(), req.toDispatch())
	if err != nil {
		return err
	}

	return c.JSON(sendEmailResponse{
		Status:     "enqueued",
		BatchCount: res.BatchCount,
		LogKey:     res.LogKey,
	})
}

// ============================================================================
// Status and export
// ============================================================================

func (h *MailingHandlers) Status(c *fiber.Ctx) error {
	snap, err := h.service.GetStatus(c.UserContext(), kernel.NewSessionID(c.Query("sessionId")))
	if err != nil {
		return err
	}
	return c.JSON(snap)
}

func (h *MailingHandlers) DownloadLog(c *fiber.Ctx) error {
	id := kernel.NewSessionID(c.Query("sessionId"))

	var buf bytes.Buffer
	if err := h.service.ExportSessionLog(c.UserContext(), &buf, id); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{
		"filename": "emaillog-" + id.String() + ".csv",
	}))
	c.Set(fiber.HeaderContentType, "text/csv")
	return c.Send(buf.Bytes())
}
