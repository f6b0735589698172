package apperr

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"wrapped sentinel", errors.Wrap(ErrNoActiveCredential, "events"), "no_active_credential"},
		{"exchange", &AuthExchangeError{Provider: "google", Err: errors.New("400")}, "auth_exchange"},
		{"refresh wrapped", errors.Wrap(&AuthRefreshError{Provider: "google", Err: errors.New("invalid_grant")}, "tick"), "auth_refresh"},
		{"scope", NewProviderAPIError("google", "list", http.StatusForbidden, "", errors.New("forbidden")), "provider_insufficient_scope"},
		{"api", NewProviderAPIError("microsoft", "list", http.StatusBadGateway, "", errors.New("bad gateway")), "provider_api"},
		{"other", errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Kind(tc.err))
		})
	}
}

func TestNewProviderAPIErrorScope(t *testing.T) {
	assert.True(t, NewProviderAPIError("google", "insert", http.StatusUnauthorized, "insufficientPermissions", nil).InsufficientScope)
	assert.False(t, NewProviderAPIError("google", "insert", http.StatusUnauthorized, "authError", nil).InsufficientScope)
}

func TestUnwrap(t *testing.T) {
	root := errors.New("invalid_grant")
	err := errors.Wrap(&AuthRefreshError{Provider: "google", Err: root}, "refresh")
	assert.True(t, errors.Is(err, root))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "No active google calendar found. Use `/link-calendar` or `/set-calendar` first.",
		UserMessage(errors.Wrap(ErrNoActiveCredential, "events"), "google"))
	assert.Equal(t, "Your microsoft link has expired or was revoked. Please run `/link-calendar` again.",
		UserMessage(&AuthRefreshError{Provider: "microsoft", Err: errors.New("invalid_grant")}, "microsoft"))
	assert.Contains(t, UserMessage(NewProviderAPIError("google", "insert", http.StatusForbidden, "", nil), "google"), "missing calendar permissions")
	assert.Equal(t, "Something went wrong talking to your calendar. Please try again later.",
		UserMessage(NewProviderAPIError("google", "list", http.StatusInternalServerError, "", nil), "google"))
}
