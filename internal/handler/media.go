package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

// MediaHandler serves voucher files written by the WhatsApp adapter.
// Twilio fetches media by URL rather than accepting uploads, so the
// files must be reachable under the service's public base URL.
type MediaHandler struct {
	Dir string // directory voucher files are written to
}

// GetTicketMedia streams one voucher file. The name is restricted to a
// bare filename so the handler cannot be walked out of Dir.
func (h *MediaHandler) GetTicketMedia(c echo.Context) error {
	name := c.Param("file")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file name"})
	}
	return c.File(filepath.Join(h.Dir, name))
}
