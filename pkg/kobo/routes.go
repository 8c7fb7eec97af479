package kobo

import (
	"github.com/foliobooks/folio/pkg/apikeys"
	"github.com/foliobooks/folio/pkg/config"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers the device sync routes. Every route is keyed by
// the device API key embedded in the path.
func RegisterRoutes(e *echo.Echo, db *bun.DB, userConfig *config.UserConfig) {
	apiKeyService := apikeys.NewService(db)
	syncService := NewService(db)

	mw := NewMiddleware(apiKeyService)
	h := &handler{syncService: syncService, userConfig: userConfig}

	g := e.Group("/kobo/:apiKey/v1", mw.APIKeyAuth())
	g.POST("/snapshots", h.createSnapshot)
	g.GET("/snapshots/:snapshotId/unsynced", h.unsynced)
	g.GET("/snapshots/:snapshotId/changes", h.changes)
	g.DELETE("/snapshots/:snapshotId", h.deleteSnapshot)
	g.PUT("/shelf/:bookId", h.addShelfBook)
	g.DELETE("/shelf/:bookId", h.removeShelfBook)
}
