package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/i474232898/soarbot/internal/resilience"
	"github.com/i474232898/soarbot/internal/soaring"
)

func TestTelegramSendRich(t *testing.T) {
	var (
		path string
		got  sendMessageRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.Client(), "abc", srv.URL)
	if err := tg.Send(context.Background(), "42", "<b>hi</b>", soaring.FormatRich); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/botabc/sendMessage" {
		t.Fatalf("unexpected path %q", path)
	}
	if got.ChatID != "42" || got.ParseMode != "HTML" || got.Text != "<b>hi</b>" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestTelegramSendNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.Client(), "abc", srv.URL)
	if err := tg.Send(context.Background(), "1", "x", soaring.FormatPlain); err == nil {
		t.Fatalf("expected error when ok=false")
	}
}

func TestTelegramPreflightWithoutToken(t *testing.T) {
	tg := NewTelegram(http.DefaultClient, "", "")
	err := tg.Preflight()
	if !errors.Is(err, soaring.ErrConfig) || !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected config error, got %v", err)
	}
}

type recordingNotifier struct {
	addresses []string
}

func (r *recordingNotifier) Send(_ context.Context, address, _ string, _ soaring.MessageFormat) error {
	r.addresses = append(r.addresses, address)
	return nil
}

func TestOperatorAlert(t *testing.T) {
	n := &recordingNotifier{}
	if err := NewOperator(n, "").Alert(context.Background(), "boom"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.addresses) != 0 {
		t.Fatalf("expected no send without admin chat")
	}
	if err := NewOperator(n, "99").Alert(context.Background(), "boom"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.addresses) != 1 || n.addresses[0] != "99" {
		t.Fatalf("unexpected sends %v", n.addresses)
	}
}

func TestTelegramSendDoesNotRetryServerErrors(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.Client(), "abc", srv.URL)
	err := tg.Send(context.Background(), "1", "hi", soaring.FormatPlain)
	if !errors.Is(err, resilience.ErrServerError) {
		t.Fatalf("expected server error, got %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Fatalf("expected exactly one sendMessage request, got %d", got)
	}
}
