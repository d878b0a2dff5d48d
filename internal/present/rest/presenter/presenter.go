package presenter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/campusworks/edubase"
	"github.com/campusworks/edubase/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OK wraps a successful response.
func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, payload)
}

func BadRequest(c echo.Context, err error) error {
	fmt.Println("Bad request:", err)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	fmt.Println("Bad request:", msg)
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func NotFound(c echo.Context, msg string) error {
	fmt.Println("Not found:", msg)
	return c.JSON(http.StatusNotFound, errorResponse{Error: msg})
}

func Forbidden(c echo.Context, msg string) error {
	fmt.Println("Forbidden:", msg)
	return c.JSON(http.StatusForbidden, errorResponse{Error: msg})
}

func Conflict(c echo.Context, msg string) error {
	fmt.Println("Conflict:", msg)
	return c.JSON(http.StatusConflict, errorResponse{Error: msg})
}

func InternalError(c echo.Context, err error) error {
	fmt.Println("Internal error:", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// Error maps a usecase error onto the right status code.
func Error(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoRevisions):
		return NotFound(c, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		return Forbidden(c, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrConflict):
		return Conflict(c, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrAlreadyHasID):
		return BadRequest(c, err)
	default:
		return InternalError(c, err)
	}
}

// Entity renders an entity as its id plus the loaded fields.
func Entity(e domain.Entity) map[string]any {
	view := map[string]any{
		"id":   e.ID(),
		"kind": string(e.Kind()),
	}
	snap := e.Snapshot()
	for _, name := range snap.Names() {
		v, _ := snap.Get(name)
		view[name] = v
	}
	return view
}

func Entities(es []domain.Entity) []map[string]any {
	views := make([]map[string]any, 0, len(es))
	for _, e := range es {
		views = append(views, Entity(e))
	}
	return views
}

func Revision(rev domain.Revision) edubase.RevisionSummary {
	return edubase.RevisionSummary{
		ID:         rev.ID,
		Kind:       string(rev.Kind),
		ObjectID:   rev.ObjectID,
		Identifier: rev.Identifier,
		UserID:     rev.UserID,
		UserName:   rev.UserName,
		Comment:    rev.Comment,
		Minor:      rev.Minor,
		Deleted:    rev.Deleted,
		Time:       rev.Time,
	}
}

func Revisions(revs []domain.Revision) []edubase.RevisionSummary {
	views := make([]edubase.RevisionSummary, 0, len(revs))
	for _, rev := range revs {
		views = append(views, Revision(rev))
	}
	return views
}

func Changes(diff domain.Diff) []edubase.FieldChangeView {
	views := make([]edubase.FieldChangeView, 0, len(diff.Changes))
	for _, ch := range diff.Changes {
		view := edubase.FieldChangeView{Field: ch.Field}
		if ch.HasSource {
			view.Source = ch.Source
		}
		if ch.HasTarget {
			view.Target = ch.Target
		}
		views = append(views, view)
	}
	return views
}
