// Package rebuild notifies hosting platforms that published content changed
// so they rebuild the static site.
package rebuild

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/markeidelman/clinicweb/metrics"
	"github.com/markeidelman/clinicweb/pantry/urlutil"
	"github.com/markeidelman/clinicweb/pantry/webhook"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Hook is one deploy or build hook endpoint.
type Hook struct {
	Name string
	URL  string
}

// Notification describes the content change that caused a rebuild. It is
// sent as the JSON body of every hook call.
type Notification struct {
	DocumentType string `json:"documentType,omitempty"`
	DocumentID   string `json:"documentId,omitempty"`
	Operation    string `json:"operation,omitempty"`
}

// Result is the outcome of one hook.
type Result struct {
	Hook       string
	Success    bool
	StatusCode int
	Attempts   int
	Err        error
}

// Config configures a Dispatcher.
type Config struct {
	Hooks []Hook

	// Timeout bounds a whole Trigger call, retries included. Default 20s.
	Timeout time.Duration

	// Concurrency caps simultaneous hook calls. Default 4.
	Concurrency int

	// Sender defaults to webhook.NewSender with its default retry policy.
	Sender *webhook.Sender

	Logger *zap.Logger
}

// Dispatcher fans a Notification out to every configured hook.
type Dispatcher struct {
	hooks       []Hook
	timeout     time.Duration
	concurrency int
	sender      *webhook.Sender
	logger      *zap.Logger
}

// New returns a Dispatcher. A Dispatcher with no hooks is valid; Trigger
// then does nothing.
func New(cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Sender == nil {
		cfg.Sender = webhook.NewSender(webhook.SenderConfig{})
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		hooks:       cfg.Hooks,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		sender:      cfg.Sender,
		logger:      cfg.Logger,
	}
}

// Hooks returns the configured hooks.
func (d *Dispatcher) Hooks() []Hook {
	return append([]Hook(nil), d.hooks...)
}

// Trigger calls every hook concurrently and waits for all of them, or for
// the dispatcher timeout. A failing hook never affects the others. Results
// are in hook order.
//
// Trigger is detached from ctx cancellation so a caller that disconnects
// does not abort rebuilds already under way; ctx values are kept.
func (d *Dispatcher) Trigger(ctx context.Context, n Notification) []Result {
	if len(d.hooks) == 0 {
		return nil
	}
	payload, _ := json.Marshal(n)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	results := make([]Result, len(d.hooks))
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, h := range d.hooks {
		g.Go(func() error {
			res, err := d.sender.Send(ctx, h.URL, payload)
			r := Result{
				Hook:       h.Name,
				Success:    err == nil,
				StatusCode: res.StatusCode,
				Attempts:   res.Attempt,
				Err:        err,
			}
			results[i] = r

			if err != nil {
				metrics.RebuildTrigger(h.Name, "failed")
				d.logger.Error("rebuild hook failed",
					zap.String("hook", h.Name),
					zap.Int("status", r.StatusCode),
					zap.Int("attempts", r.Attempts),
					zap.String("delivery_id", res.DeliveryID),
					zap.Error(err),
				)
				return nil
			}
			metrics.RebuildTrigger(h.Name, "ok")
			d.logger.Info("rebuild triggered",
				zap.String("hook", h.Name),
				zap.Int("status", r.StatusCode),
				zap.Int("attempts", r.Attempts),
				zap.String("delivery_id", res.DeliveryID),
			)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// HooksFromConfig builds the hook list from the Vercel and Netlify hook
// URLs and any extra entries. Extras are "url" or "name=url"; unnamed ones
// become deploy-1, deploy-2, ... Empty values are skipped. Every URL must be
// an absolute http(s) URL.
func HooksFromConfig(vercelURL, netlifyURL string, extra []string) ([]Hook, error) {
	var hooks []Hook
	add := func(name, u string) error {
		u = strings.TrimSpace(u)
		if u == "" {
			return nil
		}
		if !urlutil.IsValidAbsHTTPURL(u) {
			return fmt.Errorf("rebuild: hook %q: not an absolute http(s) URL", name)
		}
		hooks = append(hooks, Hook{Name: name, URL: u})
		return nil
	}

	if err := add("vercel", vercelURL); err != nil {
		return nil, err
	}
	if err := add("netlify", netlifyURL); err != nil {
		return nil, err
	}
	for i, e := range extra {
		name, u := splitNamed(e)
		if name == "" {
			name = fmt.Sprintf("deploy-%d", i+1)
		}
		if err := add(name, u); err != nil {
			return nil, err
		}
	}
	return hooks, nil
}

// splitNamed splits "name=https://..." when the '=' comes before the scheme.
func splitNamed(entry string) (name, u string) {
	entry = strings.TrimSpace(entry)
	eq := strings.IndexByte(entry, '=')
	scheme := strings.Index(entry, "://")
	if eq > 0 && (scheme < 0 || eq < scheme) {
		return strings.TrimSpace(entry[:eq]), strings.TrimSpace(entry[eq+1:])
	}
	return "", entry
}
