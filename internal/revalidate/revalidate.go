// Package revalidate receives the CMS's signed content-change webhook and
// starts a site rebuild.
package revalidate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/markeidelman/clinicweb/httputil"
	"github.com/markeidelman/clinicweb/internal/rebuild"
	"github.com/markeidelman/clinicweb/metrics"
	"github.com/markeidelman/clinicweb/pantry/webhook"
	"go.uber.org/zap"
)

// Purger drops cached published content.
type Purger interface {
	Purge(ctx context.Context) error
}

// Rebuilder notifies deploy hooks.
type Rebuilder interface {
	Trigger(ctx context.Context, n rebuild.Notification) []rebuild.Result
}

// Config configures the handler. Purger and Rebuilder may be nil.
type Config struct {
	// Secret is the webhook signing secret. Empty answers 500.
	Secret string

	// MaxBodyBytes defaults to webhook.MaxBodySize.
	MaxBodyBytes int64

	Purger    Purger
	Rebuilder Rebuilder
	Logger    *zap.Logger
}

type Handler struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = webhook.MaxBodySize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{cfg: cfg, logger: logger}
}

// event is the part of the webhook projection this handler reads. Values
// are kept as raw JSON so they echo back unchanged: an absent field stays
// absent and an explicit null stays null.
type event struct {
	Type      json.RawMessage `json:"_type"`
	ID        json.RawMessage `json:"_id"`
	Operation json.RawMessage `json:"operation"`
}

// Response is the success body. Document fields are omitted when the
// payload did not carry them.
type Response struct {
	Revalidated  bool            `json:"revalidated"`
	DocumentType json.RawMessage `json:"documentType,omitempty"`
	DocumentID   json.RawMessage `json:"documentId,omitempty"`
}

// ServeHTTP handles POST /api/revalidate.
//
// The signature is checked over the exact bytes received, before any
// parsing. Only a verified, well-formed payload purges the cache and
// triggers the deploy hooks; hook failures never change the response.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Secret == "" {
		metrics.WebhookVerification("unconfigured")
		h.logger.Error("webhook secret is not configured")
		httputil.JSONErrorSimple(w, http.StatusInternalServerError, "Webhook secret not configured")
		return
	}

	signature := r.Header.Get(webhook.SanitySignatureHeader)
	if signature == "" {
		metrics.WebhookVerification("missing")
		httputil.JSONErrorSimple(w, http.StatusUnauthorized, "Missing signature")
		return
	}

	body, err := webhook.ReadBody(r, h.cfg.MaxBodyBytes)
	if err != nil {
		metrics.WebhookVerification("unreadable")
		h.logger.Warn("webhook body rejected", zap.Error(err))
		httputil.JSONErrorSimple(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !webhook.VerifySignature(body, signature, h.cfg.Secret) {
		metrics.WebhookVerification("invalid")
		h.logger.Warn("webhook signature mismatch",
			zap.String("remote_ip", r.RemoteAddr),
			zap.Int("body_bytes", len(body)),
		)
		httputil.JSONErrorSimple(w, http.StatusUnauthorized, "Invalid signature")
		return
	}
	metrics.WebhookVerification("valid")

	ev, err := decodeEvent(body)
	if err != nil {
		httputil.JSONErrorSimple(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	h.logger.Info("content webhook received",
		zap.String("type", asText(ev.Type)),
		zap.String("id", asText(ev.ID)),
		zap.String("operation", asText(ev.Operation)),
	)

	ctx := r.Context()
	if h.cfg.Purger != nil {
		if err := h.cfg.Purger.Purge(ctx); err != nil {
			h.logger.Warn("content cache purge failed", zap.Error(err))
		}
	}
	if h.cfg.Rebuilder != nil {
		h.cfg.Rebuilder.Trigger(ctx, rebuild.Notification{
			DocumentType: asString(ev.Type),
			DocumentID:   asString(ev.ID),
			Operation:    asString(ev.Operation),
		})
	}

	httputil.WriteJSON(w, http.StatusOK, Response{
		Revalidated:  true,
		DocumentType: ev.Type,
		DocumentID:   ev.ID,
	})
}

var errNullPayload = errors.New("revalidate: payload is null")

// decodeEvent accepts any JSON value except null. Arrays and scalars carry
// no document fields.
func decodeEvent(body []byte) (event, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return event{}, err
	}
	switch raw[0] {
	case 'n':
		return event{}, errNullPayload
	case '{':
		var ev event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return event{}, err
		}
		return ev, nil
	default:
		return event{}, nil
	}
}

// asString returns the value of a JSON string, or "" for anything else.
func asString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// asText is asString with non-string values logged as their JSON.
func asText(raw json.RawMessage) string {
	if s := asString(raw); s != "" || len(raw) == 0 {
		return s
	}
	return string(raw)
}
