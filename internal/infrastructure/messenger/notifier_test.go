package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/intake/format"
)

type gatewayMessage struct {
	UserID      string `json:"userId"`
	Text        string `json:"text"`
	Destination string `json:"destination"`
}

type fakeGateway struct {
	mu       sync.Mutex
	messages []gatewayMessage
	failFor  map[string]bool
}

func (g *fakeGateway) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var msg gatewayMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))

		g.mu.Lock()
		g.messages = append(g.messages, msg)
		fail := g.failFor[msg.Destination]
		g.mu.Unlock()

		if fail {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (g *fakeGateway) destinations() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.messages))
	for _, msg := range g.messages {
		out = append(out, msg.Destination)
	}
	return out
}

func testRecord() *domain.Record {
	return &domain.Record{
		ID:       "sub-42",
		Services: []string{"SEO", "Ads"},
		Fields: []domain.Field{
			{Key: "companyName", Value: domain.Text{Value: "Acme"}},
			{Key: "budget", Value: domain.Number{Value: 5000}},
			{Key: "notes", Value: domain.Absent{}},
		},
	}
}

func newTestNotifier(t *testing.T, gateway *fakeGateway, cfg Config) *Notifier {
	server := httptest.NewServer(gateway.handler(t))
	t.Cleanup(server.Close)
	cfg.Endpoint = server.URL + "/"
	notifier := NewNotifier(cfg, server.Client())
	require.NotNil(t, notifier)
	notifier.sleep = func(context.Context, time.Duration) error { return nil }
	return notifier
}

func TestNewNotifier_DisabledWithoutDestination(t *testing.T) {
	assert.Nil(t, NewNotifier(Config{Endpoint: "http://gateway"}, nil))
	assert.Nil(t, NewNotifier(Config{DiscordDestination: "discord"}, nil))
}

func TestDeliver_DiscordSuccess(t *testing.T) {
	gateway := &fakeGateway{}
	notifier := newTestNotifier(t, gateway, Config{DiscordDestination: "discord", SlackDestination: "slack"})

	err := notifier.Deliver(context.Background(), testRecord(), format.Rendered{})
	require.NoError(t, err)

	require.Len(t, gateway.messages, 1)
	msg := gateway.messages[0]
	assert.Equal(t, "discord", msg.Destination)
	assert.Equal(t, "sub-42", msg.UserID)
	assert.Contains(t, msg.Text, "`sub-42`")
	assert.Contains(t, msg.Text, "- サービス: SEO / Ads")
	assert.Contains(t, msg.Text, "- Company Name: Acme")
	assert.Contains(t, msg.Text, "- Budget: 5000")
	assert.NotContains(t, msg.Text, "Notes")
}

func TestDeliver_FallsBackToSlack(t *testing.T) {
	gateway := &fakeGateway{failFor: map[string]bool{"discord": true}}
	notifier := newTestNotifier(t, gateway, Config{DiscordDestination: "discord", SlackDestination: "slack"})

	err := notifier.Deliver(context.Background(), testRecord(), format.Rendered{})
	require.NoError(t, err)
	assert.Equal(t, []string{"discord", "discord", "discord", "slack"}, gateway.destinations())
}

func TestDeliver_CombinesErrors(t *testing.T) {
	gateway := &fakeGateway{failFor: map[string]bool{"discord": true, "slack": true}}
	notifier := newTestNotifier(t, gateway, Config{DiscordDestination: "discord", SlackDestination: "slack"})

	err := notifier.Deliver(context.Background(), testRecord(), format.Rendered{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "discord: "))
	assert.Contains(t, err.Error(), "; slack: ")
	assert.Contains(t, err.Error(), "status=502")
}

func TestBuildSlackMessage_AdminLink(t *testing.T) {
	text := BuildSlackMessage("https://admin.example.com/submissions/", nil, testRecord())
	assert.Contains(t, text, "管理画面: https://admin.example.com/submissions/sub-42")
}

func TestBuildDiscordMessage_UsesConfiguredLabels(t *testing.T) {
	record := &domain.Record{
		ID: "sub-7",
		Fields: []domain.Field{
			{Key: "website_url", Value: domain.Text{Value: "https://acme.example.com"}},
			{Key: "companyName", Value: domain.Text{Value: "Acme"}},
		},
	}
	labels := format.NewLabeler(map[string]string{"website_url": "Website URL", "companyName": "Organisation"})

	text := BuildDiscordMessage("", labels, record)
	assert.Contains(t, text, "- Website URL: https://acme.example.com")
	assert.Contains(t, text, "- Organisation: Acme")
	assert.NotContains(t, text, "Website Url")
}

func TestNewNotifier_DefaultLabels(t *testing.T) {
	gateway := &fakeGateway{}
	server := httptest.NewServer(gateway.handler(t))
	t.Cleanup(server.Close)
	notifier := NewNotifier(Config{Endpoint: server.URL, SlackDestination: "slack"}, server.Client())
	require.NotNil(t, notifier)

	record := &domain.Record{ID: "sub-8", Fields: []domain.Field{{Key: "website_url", Value: domain.Text{Value: "https://x.example.com"}}}}
	require.NoError(t, notifier.Deliver(context.Background(), record, format.Rendered{}))

	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	require.Len(t, gateway.messages, 1)
	assert.Contains(t, gateway.messages[0].Text, "Website URL: https://x.example.com")
}

func TestSummaryLines_Capped(t *testing.T) {
	record := &domain.Record{ID: "x"}
	for i := 0; i < maxSummaryFields+3; i++ {
		record.Fields = append(record.Fields, domain.Field{Key: "field", Value: domain.Text{Value: "v"}})
	}
	lines := summaryLines(nil, record)
	assert.Len(t, lines, maxSummaryFields+1)
	assert.Equal(t, "…", lines[len(lines)-1])
}
