package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type Google struct {
	oauthClient
	// extra client options, used to point the API at a test server
	options []option.ClientOption
}

type GoogleOption func(*Google)

// WithGoogleEndpoints overrides the token and API endpoints.
func WithGoogleEndpoints(tokenURL, apiURL string) GoogleOption {
	return func(g *Google) {
		g.config.Endpoint = oauth2.Endpoint{
			AuthURL:   google.Endpoint.AuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		}
		g.options = append(g.options, option.WithEndpoint(apiURL))
	}
}

func WithGoogleHTTPClient(client *http.Client) GoogleOption {
	return func(g *Google) { g.httpClient = client }
}

func WithGoogleClock(now func() time.Time) GoogleOption {
	return func(g *Google) { g.now = now }
}

func NewGoogle(cfg OAuthConfig, opts ...GoogleOption) *Google {
	g := &Google{
		oauthClient: oauthClient{
			name: models.ProviderGoogle,
			config: &oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Endpoint:     google.Endpoint,
				RedirectURL:  cfg.RedirectURL,
				Scopes: []string{
					constant.GOOGLE_CALENDAR_SCOPE,
					constant.GOOGLE_OPENID_SCOPE,
					constant.GOOGLE_EMAIL_SCOPE,
				},
			},
			now: time.Now,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Google) Name() models.Provider { return models.ProviderGoogle }

func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *Google) service(ctx context.Context, tokens models.Tokens) (*calendar.Service, error) {
	opts := append([]option.ClientOption{option.WithHTTPClient(g.authorizedClient(ctx, tokens))}, g.options...)
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create calendar service")
	}
	return srv, nil
}

func (g *Google) ListUpcoming(ctx context.Context, tokens models.Tokens, calendarID string, max int) ([]models.Event, error) {
	srv, err := g.service(ctx, tokens)
	if err != nil {
		return nil, err
	}
	now := g.now()
	events, err := srv.Events.List(calendarID).ShowDeleted(false).
		SingleEvents(true).TimeMin(now.Format(time.RFC3339)).MaxResults(int64(max)).OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, googleError("list events", err)
	}

	out := make([]models.Event, 0, len(events.Items))
	for _, item := range events.Items {
		out = append(out, fromGoogleEvent(item))
	}
	return upcoming(out, now, max), nil
}

func (g *Google) GetEvent(ctx context.Context, tokens models.Tokens, calendarID, eventID string) (models.Event, error) {
	srv, err := g.service(ctx, tokens)
	if err != nil {
		return models.Event{}, err
	}
	item, err := srv.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return models.Event{}, googleError("get event", err)
	}
	return fromGoogleEvent(item), nil
}

func (g *Google) CreateEvent(ctx context.Context, tokens models.Tokens, calendarID string, in models.EventInput) (models.Event, error) {
	srv, err := g.service(ctx, tokens)
	if err != nil {
		return models.Event{}, err
	}
	body := &calendar.Event{
		Summary:     in.Title,
		Location:    in.Location,
		Description: in.Description,
		Start:       &calendar.EventDateTime{DateTime: in.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: in.End.Format(time.RFC3339)},
	}
	if rule := googleRecurrence(in.Recurrence); rule != "" {
		body.Recurrence = []string{rule}
		// recurring events need an explicit zone
		tz := in.TimeZone
		if tz == "" {
			tz = "UTC"
		}
		body.Start.TimeZone = tz
		body.End.TimeZone = tz
	}

	item, err := srv.Events.Insert(calendarID, body).Context(ctx).Do()
	if err != nil {
		return models.Event{}, googleError("create event", err)
	}
	return fromGoogleEvent(item), nil
}

func (g *Google) DeleteEvent(ctx context.Context, tokens models.Tokens, calendarID, eventID string) error {
	srv, err := g.service(ctx, tokens)
	if err != nil {
		return err
	}
	if err := srv.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return googleError("delete event", err)
	}
	return nil
}

func (g *Google) ListCalendars(ctx context.Context, tokens models.Tokens, max int) ([]models.CalendarInfo, error) {
	srv, err := g.service(ctx, tokens)
	if err != nil {
		return nil, err
	}
	list, err := srv.CalendarList.List().MaxResults(int64(max)).Context(ctx).Do()
	if err != nil {
		return nil, googleError("list calendars", err)
	}
	out := make([]models.CalendarInfo, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, models.CalendarInfo{
			ID:      item.Id,
			Name:    item.Summary,
			Primary: item.Primary,
			Role:    item.AccessRole,
		})
	}
	return out, nil
}

func googleRecurrence(r models.Recurrence) string {
	switch r {
	case models.RecurrenceDaily:
		return "RRULE:FREQ=DAILY"
	case models.RecurrenceWeekly:
		return "RRULE:FREQ=WEEKLY"
	}
	return ""
}

func fromGoogleEvent(item *calendar.Event) models.Event {
	e := models.Event{
		ID:          item.Id,
		ICalUID:     item.ICalUID,
		Title:       item.Summary,
		Location:    item.Location,
		Description: item.Description,
		HTMLLink:    item.HtmlLink,
	}
	e.Start, e.AllDay = parseGoogleTime(item.Start)
	e.End, _ = parseGoogleTime(item.End)
	return e
}

func parseGoogleTime(t *calendar.EventDateTime) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err == nil {
			return parsed, false
		}
	}
	if t.Date != "" {
		parsed, err := time.Parse(constant.GRAPH_DATE_FORMAT, t.Date)
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func googleError(operation string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return errors.Wrapf(err, "google %s", operation)
	}
	if eventScoped(operation) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone) {
		return apperr.ErrEventNotFound
	}
	reason := ""
	if len(gerr.Errors) > 0 {
		reason = gerr.Errors[0].Reason
	}
	return apperr.NewProviderAPIError(string(models.ProviderGoogle), operation, gerr.Code, reason, err)
}

func eventScoped(operation string) bool {
	return operation == "get event" || operation == "delete event"
}
