// Package apperr holds the error taxonomy shared by the auth flow, the
// schedulers and the command handlers.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sshindanai/discord-calendar-bot/server/constant"
)

var (
	ErrInvalidCallbackState     = errors.New("invalid callback state")
	ErrMissingAuthorizationCode = errors.New("missing authorization code")
	ErrNoActiveCredential       = errors.New("no active credential")
	ErrDuplicateSuppressed      = errors.New("duplicate suppressed")
	ErrEventNotFound            = errors.New("event not found")
	ErrCalendarNotLinked        = errors.New("calendar not linked")
	ErrUnknownProvider          = errors.New("unknown provider")
)

// AuthExchangeError means the provider rejected an authorization code.
type AuthExchangeError struct {
	Provider string
	Err      error
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("%s code exchange failed: %v", e.Provider, e.Err)
}

func (e *AuthExchangeError) Unwrap() error { return e.Err }

// AuthRefreshError means the provider rejected a refresh token. The grant must be
// re-linked; retrying will not help.
type AuthRefreshError struct {
	Provider string
	Err      error
}

func (e *AuthRefreshError) Error() string {
	return fmt.Sprintf("%s token refresh failed: %v", e.Provider, e.Err)
}

func (e *AuthRefreshError) Unwrap() error { return e.Err }

// ProviderAPIError is a failed calendar API call.
type ProviderAPIError struct {
	Provider          string
	Operation         string
	Status            int
	InsufficientScope bool
	Err               error
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("%s %s failed (status %d): %v", e.Provider, e.Operation, e.Status, e.Err)
}

func (e *ProviderAPIError) Unwrap() error { return e.Err }

// NewProviderAPIError classifies a status code. Scope problems are reported by
// both providers as 403, and by Graph sometimes as 401 with a scope hint.
func NewProviderAPIError(provider, operation string, status int, reason string, err error) *ProviderAPIError {
	insufficient := false
	switch status {
	case http.StatusForbidden:
		insufficient = true
	case http.StatusUnauthorized:
		insufficient = reason == "insufficientPermissions" || reason == "ErrorAccessDenied"
	}
	return &ProviderAPIError{
		Provider:          provider,
		Operation:         operation,
		Status:            status,
		InsufficientScope: insufficient,
		Err:               err,
	}
}

// Kind returns a stable label for logs.
func Kind(err error) string {
	var (
		exchangeErr *AuthExchangeError
		refreshErr  *AuthRefreshError
		apiErr      *ProviderAPIError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCallbackState):
		return "invalid_callback_state"
	case errors.Is(err, ErrMissingAuthorizationCode):
		return "missing_authorization_code"
	case errors.Is(err, ErrNoActiveCredential):
		return "no_active_credential"
	case errors.Is(err, ErrDuplicateSuppressed):
		return "duplicate_suppressed"
	case errors.Is(err, ErrEventNotFound):
		return "event_not_found"
	case errors.Is(err, ErrCalendarNotLinked):
		return "calendar_not_linked"
	case errors.Is(err, ErrUnknownProvider):
		return "unknown_provider"
	case errors.As(err, &exchangeErr):
		return "auth_exchange"
	case errors.As(err, &refreshErr):
		return "auth_refresh"
	case errors.As(err, &apiErr):
		if apiErr.InsufficientScope {
			return "provider_insufficient_scope"
		}
		return "provider_api"
	}
	return "internal"
}

// UserMessage maps an error to chat-facing text for the given provider.
func UserMessage(err error, provider string) string {
	var (
		exchangeErr *AuthExchangeError
		refreshErr  *AuthRefreshError
		apiErr      *ProviderAPIError
	)
	switch {
	case errors.Is(err, ErrNoActiveCredential):
		return fmt.Sprintf(constant.ERR_LINK_FIRST, provider)
	case errors.Is(err, ErrInvalidCallbackState):
		return constant.ERR_INVALID_STATE
	case errors.Is(err, ErrMissingAuthorizationCode):
		return constant.ERR_MISSING_CODE
	case errors.Is(err, ErrEventNotFound):
		return "Event not found."
	case errors.Is(err, ErrCalendarNotLinked):
		return "That calendar is not linked. Run `/list-calendars` to see your calendars."
	case errors.As(err, &refreshErr):
		return fmt.Sprintf(constant.ERR_RELINK, provider)
	case errors.As(err, &apiErr) && apiErr.InsufficientScope:
		return constant.ERR_WIDER_SCOPE
	case errors.As(err, &exchangeErr):
		return constant.ERR_OAUTH
	}
	return constant.ERR_GENERIC
}
