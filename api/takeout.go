package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// takeoutTokenTTL bounds how long a signed takeout link stays valid after
// being issued, independent of the session cookie's own lifetime.
const takeoutTokenTTL = 5 * time.Minute

// takeoutClaims identifies who the export belongs to, so the unauthenticated
// download route can attribute the request without re-reading the session
// cookie.
type takeoutClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// takeoutSigner issues and verifies short-lived capability tokens for the
// data-export download link, a narrow use of JWT distinct from the opaque
// session cookie every other route authenticates with.
type takeoutSigner struct {
	secret []byte
}

func newTakeoutSigner(secret []byte) *takeoutSigner {
	return &takeoutSigner{secret: secret}
}

func (t *takeoutSigner) issue(username string) (string, error) {
	claims := takeoutClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(takeoutTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Username: username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *takeoutSigner) verify(raw string) (string, error) {
	var claims takeoutClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("api: verify takeout token: %w", err)
	}
	return claims.Username, nil
}

// handleTakeout implements GET /rest/takeout: it mints a short-lived
// capability token scoped to the caller and redirects to the unauthenticated
// download route, so the resulting link can be handed to a browser's native
// download flow without the session cookie.
func (s *Server) handleTakeout(c echo.Context) error {
	username := requestUsername(c)

	token, err := s.takeout.issue(username)
	if err != nil {
		return err
	}

	return c.Redirect(http.StatusFound, "/rest/takeout/download?token="+token)
}

// handleTakeoutDownload serves the actual ZIP once a capability token from
// handleTakeout has been verified. It deliberately doesn't require the
// session cookie: the token alone is the credential, so the download can be
// retried or followed as a plain redirect target.
func (s *Server) handleTakeoutDownload(c echo.Context) error {
	username, err := s.takeout.verify(c.QueryParam("token"))
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden)
	}

	body, err := s.store.ExportDataAsZip(c.Request().Context(), username)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("citewatch-takeout-%s.zip", uuid.NewString())
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Blob(http.StatusOK, "application/zip", body)
}
