package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGoogleServer(t *testing.T, api http.HandlerFunc) (*Google, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Form.Get("code") == "bad" || r.Form.Get("refresh_token") == "revoked":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
		case r.Form.Get("grant_type") == "refresh_token":
			_, _ = io.WriteString(w, `{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`)
		default:
			// no expires_in
			_, _ = io.WriteString(w, `{"access_token":"access","refresh_token":"refresh","token_type":"Bearer"}`)
		}
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		r.URL.Path = strings.TrimPrefix(r.URL.Path, "/api")
		api(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	g := NewGoogle(OAuthConfig{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost/google/callback"},
		WithGoogleEndpoints(srv.URL+"/token", srv.URL+"/api/"),
		WithGoogleClock(fixedClock(now)),
	)
	return g, srv
}

var tok = models.Tokens{AccessToken: "tok"}

func TestGoogleAuthCodeURL(t *testing.T) {
	g := NewGoogle(OAuthConfig{ClientID: "id", RedirectURL: "http://localhost/google/callback"})
	u, err := url.Parse(g.AuthCodeURL("state-1"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "https://www.googleapis.com/auth/calendar openid email", q.Get("scope"))
}

func TestGoogleExchangeCode(t *testing.T) {
	g, _ := newGoogleServer(t, nil)

	tokens, err := g.ExchangeCode(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, "refresh", tokens.RefreshToken)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 55, 0, 0, time.UTC), tokens.ExpiresAt)

	_, err = g.ExchangeCode(context.Background(), "bad")
	var exchangeErr *apperr.AuthExchangeError
	assert.True(t, errors.As(err, &exchangeErr))
}

func TestGoogleRefreshToken(t *testing.T) {
	g, _ := newGoogleServer(t, nil)

	tokens, err := g.RefreshToken(context.Background(), "refresh")
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tokens.AccessToken)

	_, err = g.RefreshToken(context.Background(), "revoked")
	var refreshErr *apperr.AuthRefreshError
	assert.True(t, errors.As(err, &refreshErr))
}

func TestGoogleListUpcoming(t *testing.T) {
	g, _ := newGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "startTime", r.URL.Query().Get("orderBy"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[
			{"id":"running","summary":"Already started","start":{"dateTime":"2025-01-01T11:30:00Z"},"end":{"dateTime":"2025-01-01T12:30:00Z"}},
			{"id":"e1","iCalUID":"ical1","summary":"Standup","htmlLink":"https://cal/e1","start":{"dateTime":"2025-01-01T12:10:00Z"},"end":{"dateTime":"2025-01-01T12:20:00Z"}},
			{"id":"e2","summary":"Holiday","start":{"date":"2025-01-02"},"end":{"date":"2025-01-03"}}
		]}`)
	})

	events, err := g.ListUpcoming(context.Background(), tok, "primary", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "https://cal/e1", events[0].HTMLLink)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 10, 0, 0, time.UTC), events[0].Start.UTC())
	assert.True(t, events[1].AllDay)
}

func TestGoogleCreateWeeklyEvent(t *testing.T) {
	g, _ := newGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []interface{}{"RRULE:FREQ=WEEKLY"}, body["recurrence"])
		assert.Equal(t, "Asia/Bangkok", body["start"].(map[string]interface{})["timeZone"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"new","summary":"Sync","start":{"dateTime":"2025-01-02T09:00:00+07:00"},"end":{"dateTime":"2025-01-02T10:00:00+07:00"}}`)
	})

	start := time.Date(2025, 1, 2, 2, 0, 0, 0, time.UTC)
	event, err := g.CreateEvent(context.Background(), tok, "primary", models.EventInput{
		Title: "Sync", Start: start, End: start.Add(time.Hour), Recurrence: models.RecurrenceWeekly, TimeZone: "Asia/Bangkok",
	})
	require.NoError(t, err)
	assert.Equal(t, "new", event.ID)
	assert.True(t, start.Equal(event.Start))
}

func TestGoogleErrors(t *testing.T) {
	g, _ := newGoogleServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"code":404,"message":"Not Found","errors":[{"reason":"notFound"}]}}`)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"Insufficient Permission","errors":[{"reason":"insufficientPermissions"}]}}`)
	})

	err := g.DeleteEvent(context.Background(), tok, "primary", "gone")
	assert.ErrorIs(t, err, apperr.ErrEventNotFound)

	_, err = g.ListUpcoming(context.Background(), tok, "primary", 5)
	var apiErr *apperr.ProviderAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.InsufficientScope)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}
