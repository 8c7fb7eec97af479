package kobo

import (
	"net/http"
	"strconv"

	"github.com/foliobooks/folio/pkg/config"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	syncService *Service
	userConfig  *config.UserConfig
}

// authorizedSnapshot loads a snapshot and checks it belongs to the device's
// user. Other users' snapshots look like they don't exist.
func (h *handler) authorizedSnapshot(c echo.Context, id string) (*LibrarySnapshot, error) {
	ctx := c.Request().Context()

	snapshot, err := h.syncService.RetrieveSnapshot(ctx, id)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	apiKey := APIKeyFromContext(ctx)
	if apiKey == nil || snapshot.UserID != apiKey.UserID {
		return nil, errcodes.NotFound("Snapshot")
	}
	return snapshot, nil
}

func (h *handler) createSnapshot(c echo.Context) error {
	ctx := c.Request().Context()

	apiKey := APIKeyFromContext(ctx)
	if apiKey == nil {
		return errcodes.Unauthorized("API key required")
	}

	snapshot, err := h.syncService.CreateSnapshot(ctx, apiKey.UserID, h.userConfig)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, toSnapshotResponse(snapshot)))
}

func (h *handler) unsynced(c echo.Context) error {
	ctx := c.Request().Context()

	params := PageQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	snapshot, err := h.authorizedSnapshot(c, c.Param("snapshotId"))
	if err != nil {
		return err
	}

	page, err := h.syncService.UnsyncedPage(ctx, snapshot.ID, params.Limit)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Books []*SnapshotBookResponse `json:"books"`
	}{toSnapshotBookResponses(page)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) changes(c echo.Context) error {
	ctx := c.Request().Context()

	params := ChangesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	current, err := h.authorizedSnapshot(c, c.Param("snapshotId"))
	if err != nil {
		return err
	}
	previous, err := h.authorizedSnapshot(c, params.Previous)
	if err != nil {
		return err
	}

	// Fast-forward past books the device already has before paging the
	// actual differences.
	if _, err := h.syncService.MarkUnchangedSynced(ctx, previous.ID, current.ID); err != nil {
		return errors.WithStack(err)
	}

	added, err := h.syncService.AddedPage(ctx, previous.ID, current.ID, params.Limit)
	if err != nil {
		return errors.WithStack(err)
	}
	removed, err := h.syncService.RemovedPage(ctx, previous.ID, current.ID, params.Limit)
	if err != nil {
		return errors.WithStack(err)
	}
	changed, err := h.syncService.ChangedPage(ctx, previous.ID, current.ID, params.Limit)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := &ChangesResponse{
		Added:   toSnapshotBookResponses(added),
		Removed: toSnapshotBookResponses(removed),
		Changed: toSnapshotBookResponses(changed),
	}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) deleteSnapshot(c echo.Context) error {
	ctx := c.Request().Context()

	snapshot, err := h.authorizedSnapshot(c, c.Param("snapshotId"))
	if err != nil {
		return err
	}

	if err := h.syncService.DeleteSnapshot(ctx, snapshot.ID); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) addShelfBook(c echo.Context) error {
	ctx := c.Request().Context()

	apiKey := APIKeyFromContext(ctx)
	if apiKey == nil {
		return errcodes.Unauthorized("API key required")
	}

	bookID, err := strconv.Atoi(c.Param("bookId"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	if err := h.syncService.AddShelfBook(ctx, apiKey.UserID, bookID); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) removeShelfBook(c echo.Context) error {
	ctx := c.Request().Context()

	apiKey := APIKeyFromContext(ctx)
	if apiKey == nil {
		return errcodes.Unauthorized("API key required")
	}

	bookID, err := strconv.Atoi(c.Param("bookId"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	if err := h.syncService.RemoveShelfBook(ctx, apiKey.UserID, bookID); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
