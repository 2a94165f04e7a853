package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Hxryknight/Finanzasbot/internal/core"
	"github.com/Hxryknight/Finanzasbot/internal/ledger/memory"
	applog "github.com/Hxryknight/Finanzasbot/internal/log"
	"github.com/Hxryknight/Finanzasbot/internal/whatsapp"
)

type sentMsg struct {
	To   string
	Text string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMsg
	fail bool
}

func (f *fakeSender) Send(_ context.Context, to, text string) whatsapp.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{To: to, Text: text})
	if f.fail {
		return whatsapp.Delivery{StatusCode: 500, Err: errors.New("delivery failed")}
	}
	return whatsapp.Delivery{Sent: true, StatusCode: 200}
}

func (f *fakeSender) last(t *testing.T) sentMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no message sent")
	}
	return f.sent[len(f.sent)-1]
}

type failingLedger struct{}

func (failingLedger) Append(context.Context, core.Transaction) error {
	return errors.New("store unreachable")
}

func (failingLedger) All(context.Context) ([]core.Transaction, error) {
	return nil, errors.New("store unreachable")
}

func newTestHandler(store *memory.Store, sender *fakeSender) *WebhookHandler {
	logger := applog.New(applog.DefaultConfig()).WithComponent("webhook")
	return NewWebhookHandler("test-secret", store, store, sender, time.UTC, logger)
}

func envelopeFor(from, body string) string {
	return fmt.Sprintf(`{"entry":[{"changes":[{"value":{"messages":[{"from":%q,"text":{"body":%q}}]}}]}]}`, from, body)
}

func postWebhook(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestVerifyHandshake(t *testing.T) {
	h := newTestHandler(memory.New(), &fakeSender{})

	cases := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=test-secret&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, "forbidden"},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=test-secret&hub.challenge=12345", http.StatusForbidden, "forbidden"},
		{"missing params", "", http.StatusForbidden, "forbidden"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tc.query, nil)
			rec := httptest.NewRecorder()
			h.Handle(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status: expected %d, got %d", tc.wantStatus, rec.Code)
			}
			body := strings.TrimSpace(rec.Body.String())
			if body != tc.wantBody {
				t.Fatalf("body: expected %q, got %q", tc.wantBody, body)
			}
			if tc.wantStatus != http.StatusOK && body == "12345" {
				t.Fatal("challenge leaked on rejected handshake")
			}
		})
	}
}

func TestInboundStatusCallbackIsOK(t *testing.T) {
	sender := &fakeSender{}
	h := newTestHandler(memory.New(), sender)

	rec := postWebhook(t, h, `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.x"}]}}]}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"status":"ok"}` {
		t.Fatalf("body: got %s", got)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("status callback must not trigger a reply, sent %v", sender.sent)
	}
}

func TestInboundHelp(t *testing.T) {
	sender := &fakeSender{}
	h := newTestHandler(memory.New(), sender)

	rec := postWebhook(t, h, envelopeFor("5215550001111", "help"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	msg := sender.last(t)
	if msg.To != "5215550001111" {
		t.Fatalf("to: got %q", msg.To)
	}
	if msg.Text != helpText {
		t.Fatalf("expected help text, got %q", msg.Text)
	}
}

func TestInboundExpenseRecordsAndConfirms(t *testing.T) {
	store := memory.New()
	sender := &fakeSender{}
	h := newTestHandler(store, sender)

	rec := postWebhook(t, h, envelopeFor("5215550001111", `expense 350 super tarjeta "verduras y frutas"`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	rows, err := store.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	tx := rows[0]
	if tx.Kind != core.Expense || tx.Amount.Cents != 35000 || tx.Category != "super" || tx.Method != "tarjeta" || tx.Note != "verduras y frutas" {
		t.Fatalf("stored row: %+v", tx)
	}
	if tx.Date != core.DateLabel(time.Now().UTC()) {
		t.Fatalf("date: got %q", tx.Date)
	}

	msg := sender.last(t)
	if !strings.Contains(msg.Text, "✅ Expense recorded: $350.00 (super)") {
		t.Fatalf("confirmation: got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "Balance "+core.MonthLabel(time.Now().UTC())) {
		t.Fatalf("confirmation missing refreshed balance: %q", msg.Text)
	}
}

func TestInboundBalanceExplicitMonth(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seed := []core.Transaction{
		{Date: "2025-09-01", Kind: core.Income, Amount: core.Money{Cents: 1500000}, Category: "salary", Method: "transfer"},
		{Date: "2025-09-05", Kind: core.Expense, Amount: core.Money{Cents: 35000}, Category: "super", Method: "card"},
		{Date: "2025-08-10", Kind: core.Expense, Amount: core.Money{Cents: 99900}, Category: "rent", Method: "transfer"},
	}
	for _, tx := range seed {
		if err := store.Append(ctx, tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	sender := &fakeSender{}
	h := newTestHandler(store, sender)

	rec := postWebhook(t, h, envelopeFor("5215550001111", "balance 2025-09"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	want := "📊 Balance 2025-09: $14650.00\nIncome: $15000.00\nExpenses: $350.00"
	if msg := sender.last(t); msg.Text != want {
		t.Fatalf("balance reply:\nwant %q\ngot  %q", want, msg.Text)
	}
}

func TestAppendThenBalanceReflectsSums(t *testing.T) {
	store := memory.New()
	sender := &fakeSender{}
	h := newTestHandler(store, sender)

	for _, text := range []string{
		"income 15000 salary transfer",
		"expense 350 super card",
		"expense 150,50 food cash",
	} {
		if rec := postWebhook(t, h, envelopeFor("5215550001111", text)); rec.Code != http.StatusOK {
			t.Fatalf("%q: status %d", text, rec.Code)
		}
	}

	postWebhook(t, h, envelopeFor("5215550001111", "balance"))
	msg := sender.last(t)
	if !strings.Contains(msg.Text, "$14499.50") {
		t.Fatalf("net balance missing: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "Income: $15000.00") || !strings.Contains(msg.Text, "Expenses: $500.50") {
		t.Fatalf("totals missing: %q", msg.Text)
	}
}

func TestInboundUnknownText(t *testing.T) {
	sender := &fakeSender{}
	h := newTestHandler(memory.New(), sender)

	rec := postWebhook(t, h, envelopeFor("5215550001111", "hola"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if msg := sender.last(t); msg.Text != unknownReply {
		t.Fatalf("expected generic prompt, got %q", msg.Text)
	}
}

func TestInboundMalformedEnvelopeStillAnswers200(t *testing.T) {
	h := newTestHandler(memory.New(), &fakeSender{})

	rec := postWebhook(t, h, `{"entry": [`)
	if rec.Code != http.StatusOK {
		t.Fatalf("malformed envelope must answer 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"error"`) {
		t.Fatalf("body: got %s", rec.Body.String())
	}
}

func TestStoreFailureAnswers200WithErrorBody(t *testing.T) {
	sender := &fakeSender{}
	logger := applog.New(applog.DefaultConfig()).WithComponent("webhook")
	h := NewWebhookHandler("test-secret", failingLedger{}, failingLedger{}, sender, time.UTC, logger)

	rec := postWebhook(t, h, envelopeFor("5215550001111", "expense 350 super card"))
	if rec.Code != http.StatusOK {
		t.Fatalf("store failure must answer 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"error"`) {
		t.Fatalf("body: got %s", rec.Body.String())
	}
}

func TestDeliveryFailureDoesNotFailRequest(t *testing.T) {
	store := memory.New()
	sender := &fakeSender{fail: true}
	h := newTestHandler(store, sender)

	rec := postWebhook(t, h, envelopeFor("5215550001111", "expense 350 super card"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"status":"ok"}` {
		t.Fatalf("delivery failures are swallowed, body: %s", got)
	}
	rows, _ := store.All(context.Background())
	if len(rows) != 1 {
		t.Fatalf("row should still be stored, got %d", len(rows))
	}
}
