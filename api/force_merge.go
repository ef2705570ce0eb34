package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// handleForceMerge implements POST /rest/force-merge. It reports {ok:false}
// rather than erroring when a merge pass is already in flight, the same
// single-flight semantics as the reference server's force_merge.
func (s *Server) handleForceMerge(c echo.Context) error {
	ok := s.merger.ForceMerge()
	return c.JSON(http.StatusOK, map[string]bool{"ok": ok})
}
