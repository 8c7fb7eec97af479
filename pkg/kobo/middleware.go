package kobo

import (
	"context"

	"github.com/foliobooks/folio/pkg/apikeys"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type contextKey string

const contextKeyAPIKey contextKey = "kobo_api_key" //nolint:gosec

// Middleware authenticates Kobo sync routes with a device API key.
type Middleware struct {
	apiKeyService *apikeys.Service
}

func NewMiddleware(apiKeyService *apikeys.Service) *Middleware {
	return &Middleware{apiKeyService: apiKeyService}
}

// APIKeyAuth validates the API key from c.Param("apiKey") and stores it in
// the request context. Lookup also stamps the key's last-accessed time.
func (m *Middleware) APIKeyAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			keyValue := c.Param("apiKey")
			if keyValue == "" {
				return errcodes.Unauthorized("API key required")
			}

			apiKey, err := m.apiKeyService.RetrieveByKey(c.Request().Context(), keyValue)
			if err != nil {
				var codedErr *errcodes.Error
				if errors.As(err, &codedErr) {
					return errcodes.Unauthorized("Invalid API key")
				}
				return errors.WithStack(err)
			}

			ctx := context.WithValue(c.Request().Context(), contextKeyAPIKey, apiKey)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// APIKeyFromContext retrieves the authenticated API key from context.
func APIKeyFromContext(ctx context.Context) *apikeys.APIKey {
	if apiKey, ok := ctx.Value(contextKeyAPIKey).(*apikeys.APIKey); ok {
		return apiKey
	}
	return nil
}
