package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraphServer(t *testing.T, graph http.HandlerFunc) *Microsoft {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"ms-access","token_type":"Bearer","expires_in":3599}`)
	})
	mux.HandleFunc("/graph/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, `outlook.timezone="UTC"`, r.Header.Get("Prefer"))
		graph(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return NewMicrosoft(OAuthConfig{ClientID: "id", ClientSecret: "secret"}, "",
		WithMicrosoftEndpoints(srv.URL+"/token", srv.URL+"/graph"),
		WithMicrosoftClock(fixedClock(now)),
	)
}

func TestMicrosoftAuthCodeURL(t *testing.T) {
	m := NewMicrosoft(OAuthConfig{ClientID: "id"}, "")
	u, err := url.Parse(m.AuthCodeURL("s"))
	require.NoError(t, err)
	assert.Equal(t, "/common/oauth2/v2.0/authorize", u.Path)
	assert.Equal(t, "offline_access Calendars.ReadWrite User.Read openid email", u.Query().Get("scope"))
}

func TestMicrosoftRefreshKeepsExpiry(t *testing.T) {
	m := newGraphServer(t, nil)
	tokens, err := m.RefreshToken(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, "ms-access", tokens.AccessToken)
	assert.False(t, tokens.ExpiresAt.IsZero())
}

func TestMicrosoftListUpcoming(t *testing.T) {
	m := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graph/me/calendarView", r.URL.Path)
		assert.Equal(t, "2025-01-01T12:00:00Z", r.URL.Query().Get("startDateTime"))
		assert.Equal(t, "3", r.URL.Query().Get("$top"))
		_, _ = io.WriteString(w, `{"value":[
			{"id":"m1","iCalUId":"ical","subject":"Review","webLink":"https://outlook/m1",
			 "start":{"dateTime":"2025-01-01T12:05:00.0000000","timeZone":"UTC"},
			 "end":{"dateTime":"2025-01-01T12:35:00.0000000","timeZone":"UTC"},
			 "location":{"displayName":"Room 1"}}
		]}`)
	})

	events, err := m.ListUpcoming(context.Background(), tok, "primary", 3)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Review", events[0].Title)
	assert.Equal(t, "Room 1", events[0].Location)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 5, 0, 0, time.UTC), events[0].Start)
}

func TestMicrosoftCreateWeeklyEvent(t *testing.T) {
	m := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graph/me/calendars/work/events", r.URL.Path)
		var body graphEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotNil(t, body.Recurrence)
		assert.Equal(t, "weekly", body.Recurrence.Pattern.Type)
		assert.Equal(t, 1, body.Recurrence.Pattern.Interval)
		assert.Equal(t, []string{"thursday"}, body.Recurrence.Pattern.DaysOfWeek)
		assert.Equal(t, "noEnd", body.Recurrence.Range.Type)
		assert.Equal(t, "2025-01-02", body.Recurrence.Range.StartDate)
		assert.Equal(t, "2025-01-02T09:00:00", body.Start.DateTime)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"created","subject":"Sync","start":{"dateTime":"2025-01-02T09:00:00.0000000","timeZone":"UTC"},"end":{"dateTime":"2025-01-02T10:00:00.0000000","timeZone":"UTC"}}`)
	})

	start := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	event, err := m.CreateEvent(context.Background(), tok, "work", models.EventInput{
		Title: "Sync", Start: start, End: start.Add(time.Hour), Recurrence: models.RecurrenceWeekly,
	})
	require.NoError(t, err)
	assert.Equal(t, "created", event.ID)
}

func TestMicrosoftErrors(t *testing.T) {
	m := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"code":"ErrorAccessDenied","message":"Access is denied."}}`)
	})

	assert.ErrorIs(t, m.DeleteEvent(context.Background(), tok, "primary", "x"), apperr.ErrEventNotFound)

	_, err := m.ListCalendars(context.Background(), tok, 10)
	var apiErr *apperr.ProviderAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.InsufficientScope)
}
