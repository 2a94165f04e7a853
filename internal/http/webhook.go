package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Hxryknight/Finanzasbot/internal/command"
	"github.com/Hxryknight/Finanzasbot/internal/core"
	"github.com/Hxryknight/Finanzasbot/internal/ledger"
	applog "github.com/Hxryknight/Finanzasbot/internal/log"
	"github.com/Hxryknight/Finanzasbot/internal/whatsapp"
)

const helpText = "Available commands:\n" +
	"- expense <amount> <category> <method> \"optional note\"\n" +
	"- income <amount> <category> <method> \"optional note\"\n" +
	"- balance [YYYY-MM]\n" +
	"Examples:\n" +
	"expense 350 groceries card \"fruit and veg\"\n" +
	"income 15000 salary transfer \"payday\"\n" +
	"balance 2025-09"

const unknownReply = "I did not understand that command. Send *help* for examples."

// Sender delivers a reply to a conversation.
type Sender interface {
	Send(ctx context.Context, to, text string) whatsapp.Delivery
}

// WebhookHandler drives the parse -> store -> aggregate -> reply pipeline for
// inbound platform callbacks. It keeps no state of its own across requests.
type WebhookHandler struct {
	verifyToken string
	appender    ledger.Appender
	lister      ledger.Lister
	sender      Sender
	loc         *time.Location
	log         *applog.Logger
}

func NewWebhookHandler(verifyToken string, appender ledger.Appender, lister ledger.Lister, sender Sender, loc *time.Location, logger *applog.Logger) *WebhookHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		appender:    appender,
		lister:      lister,
		sender:      sender,
		loc:         loc,
		log:         logger,
	}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.verify(w, r)
	case http.MethodPost:
		h.inbound(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verify answers the one-time subscription handshake. The challenge is echoed
// only when both the mode and the shared secret match.
func (h *WebhookHandler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}
	h.log.WarnContext(r.Context(), "Webhook verification rejected", "mode", mode)
	http.Error(w, "forbidden", http.StatusForbidden)
}

type inboundEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// inbound handles delivery callbacks. The platform must always see 200, even
// for malformed envelopes, or it retries the delivery.
func (h *WebhookHandler) inbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var env inboundEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.log.ErrorContext(ctx, "Malformed webhook envelope", "error", err)
		writeStatusError(w, err)
		return
	}

	msg, ok := firstMessage(env)
	if !ok {
		// Status-update callbacks carry no message; a frequent, normal case.
		writeStatusOK(w)
		return
	}

	text := strings.TrimSpace(msg.Text.Body)
	h.log.InfoContext(ctx, "Inbound message", "from", msg.From, "text", text)

	if err := h.dispatch(ctx, msg.From, text); err != nil {
		h.log.ErrorContext(ctx, "Webhook dispatch failed", "error", err, "from", msg.From)
		writeStatusError(w, err)
		return
	}
	writeStatusOK(w)
}

func firstMessage(env inboundEnvelope) (inboundMessage, bool) {
	if len(env.Entry) == 0 || len(env.Entry[0].Changes) == 0 {
		return inboundMessage{}, false
	}
	msgs := env.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 {
		return inboundMessage{}, false
	}
	return msgs[0], true
}

func (h *WebhookHandler) dispatch(ctx context.Context, from, text string) error {
	cmd, err := command.Parse(text)
	if err != nil {
		// Unparseable amount past the grammar; the user only ever sees the
		// generic prompt.
		h.reply(ctx, from, unknownReply)
		return nil
	}

	switch c := cmd.(type) {
	case command.Help:
		h.reply(ctx, from, helpText)
	case command.Record:
		return h.record(ctx, from, c)
	case command.Balance:
		return h.balance(ctx, from, c)
	default:
		h.reply(ctx, from, unknownReply)
	}
	return nil
}

func (h *WebhookHandler) record(ctx context.Context, from string, c command.Record) error {
	now := time.Now().In(h.loc)
	tx := core.Transaction{
		Date:     core.DateLabel(now),
		Kind:     c.Kind,
		Amount:   c.Amount,
		Category: c.Category,
		Method:   c.Method,
		Note:     c.Note,
	}
	if err := h.appender.Append(ctx, tx); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}

	label := core.MonthLabel(now)
	sum, err := h.summary(ctx, label)
	if err != nil {
		return err
	}

	verb := "Expense"
	if c.Kind == core.Income {
		verb = "Income"
	}
	h.reply(ctx, from, fmt.Sprintf("✅ %s recorded: $%s (%s)\nBalance %s: $%s (In $%s / Out $%s)",
		verb, c.Amount.Format(), c.Category,
		label, sum.Net().Format(), sum.Income.Format(), sum.Expense.Format()))
	return nil
}

func (h *WebhookHandler) balance(ctx context.Context, from string, c command.Balance) error {
	label := c.Month
	if label == "" {
		label = core.MonthLabel(time.Now().In(h.loc))
	}
	sum, err := h.summary(ctx, label)
	if err != nil {
		return err
	}
	h.reply(ctx, from, fmt.Sprintf("📊 Balance %s: $%s\nIncome: $%s\nExpenses: $%s",
		label, sum.Net().Format(), sum.Income.Format(), sum.Expense.Format()))
	return nil
}

// summary recomputes a month from a full re-read of the ledger.
func (h *WebhookHandler) summary(ctx context.Context, label string) (core.Summary, error) {
	rows, err := h.lister.All(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("fetch ledger rows: %w", err)
	}
	return core.Compute(rows, label), nil
}

// reply sends the reply and logs delivery failures without surfacing them;
// the handler outcome never depends on delivery.
func (h *WebhookHandler) reply(ctx context.Context, to, text string) {
	if d := h.sender.Send(ctx, to, text); d.Err != nil {
		h.log.ErrorContext(ctx, "Reply delivery failed", "to", to, "status", d.StatusCode, "error", d.Err)
	}
}

func writeStatusOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func writeStatusError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	body, _ := json.Marshal(map[string]string{"status": "error", "error": err.Error()})
	_, _ = w.Write(body)
}
