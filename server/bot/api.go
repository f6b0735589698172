package bot

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/internal/apperr"
	"github.com/sshindanai/discord-calendar-bot/server/internal/authflow"
	"github.com/sshindanai/discord-calendar-bot/server/internal/chat"
	models "github.com/sshindanai/discord-calendar-bot/server/internal/models"
)

func (b *Bot) registerRouter() {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", b.healthz).Methods(http.MethodGet)
	router.HandleFunc("/{provider}/start", b.startLink).Methods(http.MethodGet)
	router.HandleFunc("/{provider}/callback", b.completeLink).Methods(http.MethodGet)
	b.router = router
}

func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			b.logger.Error("recovered server", "error", err, "path", r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintf(w, "error: %s", err)
		}
	}()
	b.router.ServeHTTP(w, r)
}

func (b *Bot) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "ok")
}

func (b *Bot) startLink(w http.ResponseWriter, r *http.Request) {
	p, err := models.ParseProvider(mux.Vars(r)["provider"])
	if err != nil {
		http.Error(w, "Unknown provider", http.StatusNotFound)
		return
	}
	ticket := r.FormValue("ticket")
	if ticket == "" {
		http.Error(w, "ticket required", http.StatusBadRequest)
		return
	}
	payload, err := b.codec.DecodeTicket(ticket, p)
	if err != nil {
		b.logger.Warn("rejected link ticket", "provider", p, "err", err)
		http.Error(w, "This link is invalid or expired. Run /link-calendar again.", http.StatusForbidden)
		return
	}

	url, err := b.auth.Start(authflow.StartRequest{
		UserID:     payload.DiscordUserID,
		Provider:   p,
		Visibility: payload.Visibility,
		GuildID:    payload.GuildID,
		ChannelID:  payload.ChannelID,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownProvider) {
			http.Error(w, fmt.Sprintf("%s linking is not configured", p.DisplayName()), http.StatusNotFound)
			return
		}
		b.logger.Error("failed to build consent url", "provider", p, "err", err)
		http.Error(w, "Failed to start linking", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (b *Bot) completeLink(w http.ResponseWriter, r *http.Request) {
	p, err := models.ParseProvider(mux.Vars(r)["provider"])
	if err != nil {
		http.Error(w, "Unknown provider", http.StatusNotFound)
		return
	}

	result, err := b.auth.Callback(r.Context(), p, r.FormValue("code"), r.FormValue("state"))
	if err != nil {
		status := callbackStatus(err)
		if status == http.StatusInternalServerError {
			b.logger.Error("failed to complete link", "provider", p, "kind", apperr.Kind(err), "err", err)
		}
		http.Error(w, apperr.UserMessage(err, string(p)), status)
		return
	}

	b.notifyLinked(r.Context(), result)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%s Calendar linked! You can close this tab and return to Discord.", p.DisplayName())
}

func callbackStatus(err error) int {
	var exchangeErr *apperr.AuthExchangeError
	switch {
	case errors.Is(err, apperr.ErrInvalidCallbackState), errors.Is(err, apperr.ErrMissingAuthorizationCode):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.As(err, &exchangeErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// notifyLinked tells the user in Discord that the link went through. Failure
// only gets logged since the browser already shows the result.
func (b *Bot) notifyLinked(ctx context.Context, result authflow.Result) {
	content := fmt.Sprintf("Your %s calendar is linked.", result.Provider.DisplayName())
	if result.Activated {
		content += " It is now your active calendar."
	}
	if err := b.sender.SendDM(ctx, result.UserID, chat.Text(content)); err != nil {
		b.logger.Warn("failed to send link confirmation", "user_id", result.UserID, "err", err)
	}
}
