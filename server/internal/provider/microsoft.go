package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// graphListHorizon bounds calendarView, which requires an end time.
const graphListHorizon = 30 * 24 * time.Hour

type Microsoft struct {
	oauthClient
	baseURL string
}

type MicrosoftOption func(*Microsoft)

// WithMicrosoftEndpoints overrides the token and Graph endpoints.
func WithMicrosoftEndpoints(tokenURL, graphURL string) MicrosoftOption {
	return func(m *Microsoft) {
		m.config.Endpoint.TokenURL = tokenURL
		m.config.Endpoint.AuthStyle = oauth2.AuthStyleInParams
		m.baseURL = strings.TrimRight(graphURL, "/")
	}
}

func WithMicrosoftHTTPClient(client *http.Client) MicrosoftOption {
	return func(m *Microsoft) { m.httpClient = client }
}

func WithMicrosoftClock(now func() time.Time) MicrosoftOption {
	return func(m *Microsoft) { m.now = now }
}

func NewMicrosoft(cfg OAuthConfig, tenant string, opts ...MicrosoftOption) *Microsoft {
	if tenant == "" {
		tenant = constant.MICROSOFT_DEFAULT_TENANT
	}
	m := &Microsoft{
		oauthClient: oauthClient{
			name: models.ProviderMicrosoft,
			config: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Endpoint:     microsoft.AzureADEndpoint(tenant),
				RedirectURL:  cfg.RedirectURL,
				Scopes:       []string{"offline_access", "Calendars.ReadWrite", "User.Read", "openid", "email"},
			},
			now: time.Now,
		},
		baseURL: constant.GRAPH_API_URL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Microsoft) Name() models.Provider { return models.ProviderMicrosoft }

func (m *Microsoft) AuthCodeURL(state string) string {
	return m.config.AuthCodeURL(state)
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEvent struct {
	ID         string         `json:"id,omitempty"`
	ICalUID    string         `json:"iCalUId,omitempty"`
	Subject    string         `json:"subject"`
	WebLink    string         `json:"webLink,omitempty"`
	IsAllDay   bool           `json:"isAllDay,omitempty"`
	Body       *graphBody     `json:"body,omitempty"`
	Location   *graphLocation `json:"location,omitempty"`
	Start      graphDateTime  `json:"start"`
	End        graphDateTime  `json:"end"`
	Recurrence *graphRecur    `json:"recurrence,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphLocation struct {
	DisplayName string `json:"displayName"`
}

type graphRecur struct {
	Pattern struct {
		Type       string   `json:"type"`
		Interval   int      `json:"interval"`
		DaysOfWeek []string `json:"daysOfWeek,omitempty"`
	} `json:"pattern"`
	Range struct {
		Type      string `json:"type"`
		StartDate string `json:"startDate"`
	} `json:"range"`
}

type graphCalendar struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	IsDefaultCalendar bool   `json:"isDefaultCalendar"`
	CanEdit           bool   `json:"canEdit"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// calendarPath maps the generic "primary" id to the default calendar.
func calendarPath(calendarID string) string {
	if calendarID == "" || calendarID == constant.PRIMARY_CALENDAR_ID {
		return "/me"
	}
	return "/me/calendars/" + url.PathEscape(calendarID)
}

func (m *Microsoft) ListUpcoming(ctx context.Context, tokens models.Tokens, calendarID string, max int) ([]models.Event, error) {
	now := m.now().UTC()
	query := url.Values{}
	query.Set("startDateTime", now.Format(time.RFC3339))
	query.Set("endDateTime", now.Add(graphListHorizon).Format(time.RFC3339))
	query.Set("$orderby", "start/dateTime")
	query.Set("$top", strconv.Itoa(max))

	var resp struct {
		Value []graphEvent `json:"value"`
	}
	path := calendarPath(calendarID) + "/calendarView?" + query.Encode()
	if err := m.do(ctx, tokens, "list events", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Event, 0, len(resp.Value))
	for _, item := range resp.Value {
		out = append(out, fromGraphEvent(item))
	}
	return upcoming(out, now, max), nil
}

func (m *Microsoft) GetEvent(ctx context.Context, tokens models.Tokens, calendarID, eventID string) (models.Event, error) {
	var item graphEvent
	path := calendarPath(calendarID) + "/events/" + url.PathEscape(eventID)
	if err := m.do(ctx, tokens, "get event", http.MethodGet, path, nil, &item); err != nil {
		return models.Event{}, err
	}
	return fromGraphEvent(item), nil
}

func (m *Microsoft) CreateEvent(ctx context.Context, tokens models.Tokens, calendarID string, in models.EventInput) (models.Event, error) {
	tz := in.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, tz = time.UTC, "UTC"
	}
	start := in.Start.In(loc)

	body := graphEvent{
		Subject: in.Title,
		Start:   graphDateTime{DateTime: start.Format(constant.GRAPH_TIME_FORMAT), TimeZone: tz},
		End:     graphDateTime{DateTime: in.End.In(loc).Format(constant.GRAPH_TIME_FORMAT), TimeZone: tz},
	}
	if in.Description != "" {
		body.Body = &graphBody{ContentType: "text", Content: in.Description}
	}
	if in.Location != "" {
		body.Location = &graphLocation{DisplayName: in.Location}
	}
	if in.Recurrence != models.RecurrenceNone {
		body.Recurrence = graphRecurrence(in.Recurrence, start)
	}

	var item graphEvent
	if err := m.do(ctx, tokens, "create event", http.MethodPost, calendarPath(calendarID)+"/events", body, &item); err != nil {
		return models.Event{}, err
	}
	return fromGraphEvent(item), nil
}

func (m *Microsoft) DeleteEvent(ctx context.Context, tokens models.Tokens, calendarID, eventID string) error {
	path := calendarPath(calendarID) + "/events/" + url.PathEscape(eventID)
	return m.do(ctx, tokens, "delete event", http.MethodDelete, path, nil, nil)
}

func (m *Microsoft) ListCalendars(ctx context.Context, tokens models.Tokens, max int) ([]models.CalendarInfo, error) {
	var resp struct {
		Value []graphCalendar `json:"value"`
	}
	path := "/me/calendars?$top=" + strconv.Itoa(max)
	if err := m.do(ctx, tokens, "list calendars", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]models.CalendarInfo, 0, len(resp.Value))
	for _, c := range resp.Value {
		role := "reader"
		if c.CanEdit {
			role = "writer"
		}
		out = append(out, models.CalendarInfo{ID: c.ID, Name: c.Name, Primary: c.IsDefaultCalendar, Role: role})
	}
	return out, nil
}

func (m *Microsoft) do(ctx context.Context, tokens models.Tokens, operation, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "failed to marshal graph request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to build graph request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := m.authorizedClient(ctx, tokens).Do(req)
	if err != nil {
		return errors.Wrapf(err, "graph %s", operation)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if eventScoped(operation) && resp.StatusCode == http.StatusNotFound {
			return apperr.ErrEventNotFound
		}
		var gerr graphError
		_ = json.Unmarshal(raw, &gerr)
		return apperr.NewProviderAPIError(string(models.ProviderMicrosoft), operation, resp.StatusCode, gerr.Error.Code,
			fmt.Errorf("graph %s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode graph %s", operation)
	}
	return nil
}

func graphRecurrence(r models.Recurrence, start time.Time) *graphRecur {
	rec := &graphRecur{}
	rec.Pattern.Interval = 1
	switch r {
	case models.RecurrenceDaily:
		rec.Pattern.Type = "daily"
	case models.RecurrenceWeekly:
		rec.Pattern.Type = "weekly"
		rec.Pattern.DaysOfWeek = []string{strings.ToLower(start.Weekday().String())}
	}
	rec.Range.Type = "noEnd"
	rec.Range.StartDate = start.Format(constant.GRAPH_DATE_FORMAT)
	return rec
}

func fromGraphEvent(item graphEvent) models.Event {
	e := models.Event{
		ID:       item.ID,
		ICalUID:  item.ICalUID,
		Title:    item.Subject,
		HTMLLink: item.WebLink,
		AllDay:   item.IsAllDay,
		Start:    parseGraphTime(item.Start),
		End:      parseGraphTime(item.End),
	}
	if item.Location != nil {
		e.Location = item.Location.DisplayName
	}
	if item.Body != nil && item.Body.ContentType == "text" {
		e.Description = item.Body.Content
	}
	return e
}

func parseGraphTime(t graphDateTime) time.Time {
	loc := time.UTC
	if t.TimeZone != "" && t.TimeZone != "UTC" {
		if l, err := time.LoadLocation(t.TimeZone); err == nil {
			loc = l
		}
	}
	parsed, err := time.ParseInLocation(constant.GRAPH_TIME_FORMAT, t.DateTime, loc)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
