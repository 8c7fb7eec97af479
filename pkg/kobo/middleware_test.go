package kobo

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foliobooks/folio/pkg/apikeys"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyAuth(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	user := createSyncUser(t, db, "reader")
	apiKeyService := apikeys.NewService(db)
	apiKey, err := apiKeyService.Create(t.Context(), user.ID, "kobo clara")
	require.NoError(t, err)

	mw := NewMiddleware(apiKeyService)
	e := echo.New()

	call := func(keyValue string) (echo.Context, error) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("apiKey")
		c.SetParamValues(keyValue)

		handler := mw.APIKeyAuth()(func(c echo.Context) error {
			return nil
		})
		return c, handler(c)
	}

	c, err := call(apiKey.Key)
	require.NoError(t, err)
	fromCtx := APIKeyFromContext(c.Request().Context())
	require.NotNil(t, fromCtx)
	assert.Equal(t, user.ID, fromCtx.UserID)

	_, err = call("fk_bogus")
	require.Error(t, err)
	var codedErr *errcodes.Error
	require.True(t, errors.As(err, &codedErr))
	assert.Equal(t, http.StatusUnauthorized, codedErr.HTTPCode)

	_, err = call("")
	require.Error(t, err)
}
