package controllers_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/calderonlabs/tienda-backend/api/controllers"
	"github.com/calderonlabs/tienda-backend/pkg/logger"
)

type stubRunner struct {
	reply string
	err   error

	mu    sync.Mutex
	calls []string
}

func (s *stubRunner) RunTurn(_ context.Context, phone, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, phone+"|"+message)
	return s.reply, s.err
}

type stubSender struct {
	sent chan string
}

func (s *stubSender) SendWhatsApp(_ context.Context, to, body string) error {
	s.sent <- to + "|" + body
	return nil
}

func postWebhook(t *testing.T, handler http.HandlerFunc, form url.Values) (*httptest.ResponseRecorder, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	raw, _ := io.ReadAll(rec.Result().Body)
	return rec, string(raw)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func TestWebhookAcksWithTwiML(t *testing.T) {
	runner := &stubRunner{reply: "hola!"}
	sender := &stubSender{sent: make(chan string, 1)}
	handler := controllers.TwilioWebhook(runner, sender, nil, testLogger(), nil)

	rec, body := postWebhook(t, handler, url.Values{
		"Body": {"hola"},
		"From": {"whatsapp:+5215554000"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if body != `<?xml version="1.0" encoding="UTF-8"?><Response></Response>` {
		t.Fatalf("unexpected TwiML: %s", body)
	}

	select {
	case delivered := <-sender.sent:
		if delivered != "+5215554000|hola!" {
			t.Fatalf("unexpected delivery: %s", delivered)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply was never delivered")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 1 || runner.calls[0] != "+5215554000|hola" {
		t.Fatalf("whatsapp prefix should be stripped: %v", runner.calls)
	}
}

func TestWebhookSendsFallbackOnError(t *testing.T) {
	runner := &stubRunner{err: errors.New("model exploded")}
	sender := &stubSender{sent: make(chan string, 1)}
	handler := controllers.TwilioWebhook(runner, sender, nil, testLogger(), nil)

	rec, _ := postWebhook(t, handler, url.Values{
		"Body": {"hola"},
		"From": {"whatsapp:+5215554001"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook must still ack, got %d", rec.Code)
	}

	select {
	case delivered := <-sender.sent:
		if !strings.Contains(delivered, "Lo siento") {
			t.Fatalf("expected fallback message, got %s", delivered)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fallback was never delivered")
	}
}

type failingSender struct {
	attempts chan string
}

func (s *failingSender) SendWhatsApp(_ context.Context, to, body string) error {
	s.attempts <- to + "|" + body
	return errors.New("twilio returned 500")
}

func TestWebhookFallsBackWhenDeliveryFails(t *testing.T) {
	runner := &stubRunner{reply: "aqui tienes tu carrito"}
	sender := &failingSender{attempts: make(chan string, 2)}
	handler := controllers.TwilioWebhook(runner, sender, nil, testLogger(), nil)

	rec, _ := postWebhook(t, handler, url.Values{
		"Body": {"mi carrito"},
		"From": {"whatsapp:+5215554003"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("webhook must still ack, got %d", rec.Code)
	}

	deadline := time.After(2 * time.Second)
	var attempts []string
	for len(attempts) < 2 {
		select {
		case attempt := <-sender.attempts:
			attempts = append(attempts, attempt)
		case <-deadline:
			t.Fatalf("expected reply and fallback attempts, got %v", attempts)
		}
	}
	if !strings.Contains(attempts[0], "aqui tienes tu carrito") {
		t.Fatalf("first attempt should carry the reply: %s", attempts[0])
	}
	if !strings.Contains(attempts[1], "Lo siento") {
		t.Fatalf("second attempt should carry the fallback: %s", attempts[1])
	}

	select {
	case extra := <-sender.attempts:
		t.Fatalf("fallback must not be retried: %s", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebhookIgnoresEmptyBody(t *testing.T) {
	runner := &stubRunner{reply: "hola!"}
	handler := controllers.TwilioWebhook(runner, nil, nil, testLogger(), nil)

	rec, _ := postWebhook(t, handler, url.Values{
		"Body": {"   "},
		"From": {"whatsapp:+5215554002"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	time.Sleep(50 * time.Millisecond)
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.calls) != 0 {
		t.Fatalf("blank messages should not reach the agent: %v", runner.calls)
	}
}
