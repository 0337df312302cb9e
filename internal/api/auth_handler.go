package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/redisclient"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LoginStateStore remembers where to send the user after the provider redirects back
type LoginStateStore interface {
	SaveLoginState(ctx context.Context, state, callbackURL string, ttl time.Duration) error
	ConsumeLoginState(ctx context.Context, state string) (string, error)
}

// AuthSettings wires sign-in. Provider and States are nil when sign-in is disabled.
type AuthSettings struct {
	Sessions     *auth.JWTManager
	Provider     auth.IdentityProvider
	States       LoginStateStore
	StateTTL     time.Duration
	CookieSecure bool
}

func (a AuthSettings) enabled() bool {
	return a.Sessions != nil && a.Provider != nil && a.States != nil
}

// safeCallback keeps redirects on this site
func safeCallback(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	return raw
}

func (h *Handler) login(c *gin.Context) {
	if !h.authn.enabled() {
		h.writeError(c, apperr.New(apperr.Unavailable, "sign-in is not configured"))
		return
	}

	state := uuid.NewString()
	callback := safeCallback(c.Query("callbackUrl"))
	if err := h.authn.States.SaveLoginState(c.Request.Context(), state, callback, h.authn.StateTTL); err != nil {
		h.writeError(c, apperr.Wrap(apperr.Unavailable, err, "failed to start sign-in"))
		return
	}

	c.Redirect(http.StatusFound, h.authn.Provider.AuthCodeURL(state))
}

func (h *Handler) callback(c *gin.Context) {
	if !h.authn.enabled() {
		h.writeError(c, apperr.New(apperr.Unavailable, "sign-in is not configured"))
		return
	}
	ctx := c.Request.Context()

	if e := c.Query("error"); e != "" {
		h.writeError(c, apperr.New(apperr.Validation, "sign-in was cancelled: %s", e))
		return
	}
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		var missing []string
		if state == "" {
			missing = append(missing, "state")
		}
		if code == "" {
			missing = append(missing, "code")
		}
		h.writeError(c, apperr.MissingFields(missing...))
		return
	}

	target, err := h.authn.States.ConsumeLoginState(ctx, state)
	if err != nil {
		if errors.Is(err, redisclient.ErrStateNotFound) {
			h.writeError(c, apperr.New(apperr.Validation, "invalid or expired login state"))
			return
		}
		h.writeError(c, apperr.Wrap(apperr.Unavailable, err, "failed to finish sign-in"))
		return
	}

	profile, err := h.authn.Provider.Exchange(ctx, code)
	if err != nil {
		h.logger.Warn("Identity exchange failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sign-in failed"})
		return
	}

	user, err := h.svc.Users.SignIn(ctx, service.SignInProfile{
		Email: profile.Email,
		Name:  profile.Name,
		Image: profile.Picture,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, _, err := h.authn.Sessions.Sign(user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.setSessionCookie(c, token, int(h.authn.Sessions.TTL().Seconds()))
	c.Redirect(http.StatusFound, safeCallback(target))
}

func (h *Handler) session(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	user, err := h.svc.Users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			c.JSON(http.StatusOK, gin.H{"authenticated": false})
			return
		}
		h.writeError(c, err)
		return
	}

	body := gin.H{"authenticated": true, "user": user}
	if claims.ExpiresAt != nil {
		body["expires"] = claims.ExpiresAt.Time
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, value, maxAge, "/", "", h.authn.CookieSecure, true)
}
