package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/calderonlabs/tienda-backend/pkg/logger"
	"github.com/calderonlabs/tienda-backend/pkg/metrics"
	"github.com/calderonlabs/tienda-backend/pkg/redis"
	"github.com/calderonlabs/tienda-backend/pkg/twilio"
)

// twimlAck is the empty TwiML document that tells Twilio the webhook was
// received. The actual reply goes out asynchronously through the REST API.
const twimlAck = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

const fallbackMessage = "Lo siento, hubo un error procesando tu mensaje. Intenta de nuevo."

// turnTimeout bounds the whole background exchange: model loop, tool calls
// and delivery.
const turnTimeout = 5 * time.Minute

// dedupeTTL covers Twilio's webhook retry window.
const dedupeTTL = 10 * time.Minute

// TurnRunner runs one agent exchange and returns the reply text.
type TurnRunner interface {
	RunTurn(ctx context.Context, phone, message string) (string, error)
}

// TwilioWebhook receives inbound WhatsApp messages. It acknowledges
// immediately with empty TwiML and processes the turn in the background;
// Twilio retries on slow responses, so the model loop must never run inline.
// A nil dedupe client disables retry suppression, a nil sender drops replies.
func TwilioWebhook(
	runner TurnRunner,
	sender twilio.Sender,
	dedupe *redis.Client,
	logg *logger.Logger,
	m *metrics.AgentMetrics,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		body := r.PostFormValue("Body")
		from := r.PostFormValue("From")
		sid := r.PostFormValue("MessageSid")

		phone := strings.TrimPrefix(from, "whatsapp:")
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPhone(ctx, phone)
			logg.Info(ctx, "webhook.received")
		}

		if phone == "" || strings.TrimSpace(body) == "" {
			writeTwiML(w)
			return
		}

		if dedupe != nil && sid != "" {
			fresh, err := dedupe.ClaimOnce(ctx, redis.DedupeKey(sid), dedupeTTL)
			if err != nil && logg != nil {
				logg.Warn(ctx, "webhook dedupe check failed, processing anyway")
			}
			if err == nil && !fresh {
				if logg != nil {
					logg.Info(ctx, "webhook.duplicate_dropped")
				}
				writeTwiML(w)
				return
			}
		}

		go processTurn(phone, body, runner, sender, logg, m)

		writeTwiML(w)
	}
}

func processTurn(
	phone, body string,
	runner TurnRunner,
	sender twilio.Sender,
	logg *logger.Logger,
	m *metrics.AgentMetrics,
) {
	// Detached from the request context: the webhook has already returned.
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()
	if logg != nil {
		ctx = logg.WithPhone(ctx, phone)
	}

	reply, err := runner.RunTurn(ctx, phone, body)
	if err != nil {
		if logg != nil {
			logg.Error(ctx, "agent turn failed", err)
		}
		reply = fallbackMessage
	}

	if sender == nil {
		return
	}
	if sendErr := sender.SendWhatsApp(ctx, phone, reply); sendErr != nil {
		m.IncDelivery("failed")
		if logg != nil {
			logg.Error(ctx, "whatsapp delivery failed", sendErr)
		}
		// One best-effort fallback notification so the customer is not left
		// hanging. A failure here is logged and dropped, never retried.
		if reply != fallbackMessage {
			if fbErr := sender.SendWhatsApp(ctx, phone, fallbackMessage); fbErr != nil {
				if logg != nil {
					logg.Error(ctx, "fallback delivery failed", fbErr)
				}
				return
			}
			m.IncDelivery("fallback")
		}
		return
	}
	m.IncDelivery("sent")
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(twimlAck))
}
