package mailing_test

import (
	"errors"
	"testing"

	"github.com/Abraxas-365/bulkmail/pkg/errx"
	"github.com/Abraxas-365/bulkmail/pkg/mailing"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/deliverylog"
	"github.com/Abraxas-365/bulkmail/pkg/mailing/session"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want *errx.ErrorCode
	}{
		{"unknown session", session.ErrSessionNotFound(), mailing.CodeInvalidInput},
		{"empty session", session.ErrNoRecipients(), mailing.CodeInvalidInput},
		{"exhausted", session.ErrExhausted(), mailing.CodeBatchExhausted},
		{"busy", session.ErrBusy(), mailing.CodeStoreUnavailable},
		{"cursor moved", session.ErrCursorMoved(), mailing.CodeStoreUnavailable},
		{"session store down", session.ErrUnavailable(errors.New("dial tcp")), mailing.CodeStoreUnavailable},
		{"log store down", deliverylog.ErrUnavailable(errors.New("dial tcp")), mailing.CodeStoreUnavailable},
		{"wrapped", errx.Wrap(session.ErrExhausted(), "dispatch", errx.TypeBusiness), mailing.CodeBatchExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mailing.Translate(tt.in)
			if !errx.IsCode(got, tt.want) {
				t.Fatalf("Translate(%v) = %v, want code %s", tt.in, got, tt.want.Code)
			}
		})
	}
}

func TestTranslate_PassThrough(t *testing.T) {
	if mailing.Translate(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	plain := errors.New("boom")
	if got := mailing.Translate(plain); got != plain {
		t.Fatalf("foreign error changed: %v", got)
	}
	own := mailing.ErrLogNotFound()
	if got := mailing.Translate(own); got != error(own) {
		t.Fatalf("own error changed: %v", got)
	}
}

func TestTranslate_Idempotent(t *testing.T) {
	first := mailing.Translate(session.ErrUnavailable(errors.New("dial tcp")))
	if got := mailing.Translate(first); got != first {
		t.Fatalf("second translation changed the error: %v", got)
	}
}
