package rebuild

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/markeidelman/clinicweb/pantry/retry"
	"github.com/markeidelman/clinicweb/pantry/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func fastSender() *webhook.Sender {
	return webhook.NewSender(webhook.SenderConfig{
		Retry: retry.Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
}

func TestTriggerCallsEveryHook(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []Notification
	)
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n Notification
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &n)
		mu.Lock()
		bodies = append(bodies, n)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer ok.Close()

	var brokenCalls atomic.Int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		brokenCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	d := New(Config{
		Hooks: []Hook{
			{Name: "vercel", URL: ok.URL},
			{Name: "netlify", URL: broken.URL},
			{Name: "deploy-1", URL: ok.URL},
		},
		Sender: fastSender(),
	})

	n := Notification{DocumentType: "faq", DocumentID: "faq-1", Operation: "update"}
	results := d.Trigger(context.Background(), n)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.Equal(t, http.StatusCreated, results[0].StatusCode)
	assert.Equal(t, "netlify", results[1].Hook)
	assert.False(t, results[1].Success)
	assert.ErrorIs(t, results[1].Err, webhook.ErrDeliveryFailed)
	assert.Equal(t, 2, results[1].Attempts)
	assert.EqualValues(t, 2, brokenCalls.Load())
	assert.True(t, results[2].Success)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, n, bodies[0])
}

func TestTriggerNoHooks(t *testing.T) {
	assert.Nil(t, New(Config{}).Trigger(context.Background(), Notification{}))
}

func TestTriggerSurvivesCallerCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := New(Config{Hooks: []Hook{{Name: "vercel", URL: srv.URL}}, Sender: fastSender()}).
		Trigger(ctx, Notification{})
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestTriggerTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d := New(Config{
		Hooks:   []Hook{{Name: "slow", URL: srv.URL}},
		Timeout: 30 * time.Millisecond,
		Sender:  fastSender(),
	})
	start := time.Now()
	results := d.Trigger(context.Background(), Notification{})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, results[0].Success)
}

func TestFailedHookIsLoggedWithoutItsURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	hookURL := srv.URL + "/v1/integrations/deploy/prj_X/SECRETTOKEN123"
	srv.Close()

	core, logs := observer.New(zap.InfoLevel)
	results := New(Config{
		Hooks:  []Hook{{Name: "vercel", URL: hookURL}},
		Sender: fastSender(),
		Logger: zap.New(core),
	}).Trigger(context.Background(), Notification{DocumentType: "clinic"})

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	assert.NotContains(t, results[0].Err.Error(), "SECRETTOKEN123")

	entries := logs.FilterMessage("rebuild hook failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "vercel", entries[0].ContextMap()["hook"])
	for _, e := range logs.All() {
		assert.NotContains(t, e.Message, "SECRETTOKEN123")
		for k, v := range e.ContextMap() {
			assert.False(t, strings.Contains(fmt.Sprint(v), "SECRETTOKEN123"), "field %s leaks the hook URL", k)
		}
	}
}

func TestHooksFromConfig(t *testing.T) {
	hooks, err := HooksFromConfig(
		"https://api.vercel.com/v1/integrations/deploy/prj/abc",
		"",
		[]string{"https://api.netlify.com/build_hooks/1", "staging=https://example.com/hook?x=1", "  "},
	)
	require.NoError(t, err)
	assert.Equal(t, []Hook{
		{Name: "vercel", URL: "https://api.vercel.com/v1/integrations/deploy/prj/abc"},
		{Name: "deploy-1", URL: "https://api.netlify.com/build_hooks/1"},
		{Name: "staging", URL: "https://example.com/hook?x=1"},
	}, hooks)

	_, err = HooksFromConfig("", "api.netlify.com/build_hooks/1", nil)
	assert.Error(t, err)

	hooks, err = HooksFromConfig("", "", nil)
	require.NoError(t, err)
	assert.Empty(t, hooks)
}
