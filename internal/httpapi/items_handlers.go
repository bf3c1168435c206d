package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pierrevano/whatson-api-sub001/internal/item"
	"github.com/pierrevano/whatson-api-sub001/internal/store"
)

// handleItem serves one document by cross-reference id. The body is the raw
// stored document, without the internal identity key, so the change detector
// can decode it directly.
func (s *Server) handleItem(c echo.Context) error {
	itemType, err := item.ParseType(c.Param("type"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "type must be movie or tvshow")
	}

	tmdbID, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || tmdbID <= 0 {
		return fail(c, http.StatusBadRequest, "id must be a positive integer")
	}

	doc, err := s.pool.FindItemDocByTMDB(c.Request().Context(), string(itemType), tmdbID)
	if err != nil {
		if store.IsNoRows(err) {
			return failNotFound(c, "item not found")
		}
		s.logger.Error().Int64("tmdb_id", tmdbID).Err(err).Msg("item lookup failed")
		return fail(c, http.StatusInternalServerError, "item lookup failed")
	}

	return c.JSONBlob(http.StatusOK, doc)
}
