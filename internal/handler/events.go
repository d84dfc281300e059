// Package handler exposes the service's HTTP handlers. The public
// catalog endpoints let a website or a partner list what the bots
// sell; they return sanitized data and require no authentication.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/conakrylabs/ticket-bot/internal/repository"
)

// EventCatalog is the read-only slice of the event repository the
// catalog handlers use.
type EventCatalog interface {
	ListAll(ctx context.Context) ([]repository.EventWithCategories, error)
	GetByID(ctx context.Context, eventID uint64) (*repository.EventWithCategories, error)
}

// CatalogHandler aggregates the repositories needed for unauthenticated
// catalog browsing.
type CatalogHandler struct {
	EventRepo EventCatalog // provides access to event and category data
}

// PublicCategory is one ticket tier in a catalog response.
type PublicCategory struct {
	Position  uint32 `json:"position"`
	Name      string `json:"name"`
	UnitPrice uint64 `json:"unit_price"`
	Remaining int32  `json:"remaining"`
}

// PublicEvent is an event in catalog responses. Only safe fields are
// included.
type PublicEvent struct {
	ID         uint64           `json:"id"`
	Name       string           `json:"name"`
	Date       string           `json:"date"`
	Organizer  string           `json:"organizer"`
	Location   string           `json:"location"`
	Categories []PublicCategory `json:"categories,omitempty"`
}

// GetEvents returns the full list of events on sale. Response JSON
// contains an "items" array of PublicEvent.
func (h *CatalogHandler) GetEvents(c echo.Context) error {
	ctx := c.Request().Context()
	rows, err := h.EventRepo.ListAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]PublicEvent, 0, len(rows))
	for i := range rows {
		out = append(out, toPublic(&rows[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetEvent returns one event with its categories and live remaining
// counts.
func (h *CatalogHandler) GetEvent(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	row, err := h.EventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, toPublic(row))
}

func toPublic(row *repository.EventWithCategories) PublicEvent {
	ev := row.ToModel()
	out := PublicEvent{
		ID:        ev.ID,
		Name:      ev.Name,
		Date:      ev.Date,
		Organizer: ev.Organizer,
		Location:  ev.Location,
	}
	for _, cat := range ev.Categories {
		out.Categories = append(out.Categories, PublicCategory{
			Position:  cat.Position,
			Name:      cat.Name,
			UnitPrice: cat.UnitPrice,
			Remaining: cat.Remaining,
		})
	}
	return out
}
