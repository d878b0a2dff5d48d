package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/campusworks/edubase"
	"github.com/campusworks/edubase/client"
	"github.com/campusworks/edubase/internal/domain"
	"github.com/campusworks/edubase/internal/present/rest/middleware"
	"github.com/campusworks/edubase/internal/present/rest/presenter"
	"github.com/campusworks/edubase/internal/service"
	"github.com/campusworks/edubase/internal/usecase"
)

type Handler struct {
	institution *usecase.InstitutionUsecase
	course      *usecase.CourseUsecase
	enroll      *usecase.EnrollUsecase
	del         *usecase.DeleteUsecase
	undo        *usecase.UndoUsecase
	restore     *usecase.RestoreUsecase
	undelete    *usecase.UndeleteUsecase
	maintenance *usecase.MaintenanceUsecase
	signal      *service.SignalService
	views       *service.ViewCache
	idp         *client.Client
}

func NewHandler(
	institution *usecase.InstitutionUsecase,
	course *usecase.CourseUsecase,
	enroll *usecase.EnrollUsecase,
	del *usecase.DeleteUsecase,
	undo *usecase.UndoUsecase,
	restore *usecase.RestoreUsecase,
	undelete *usecase.UndeleteUsecase,
	maintenance *usecase.MaintenanceUsecase,
	signal *service.SignalService,
	views *service.ViewCache,
	idp *client.Client,
) *Handler {
	return &Handler{
		institution: institution,
		course:      course,
		enroll:      enroll,
		del:         del,
		undo:        undo,
		restore:     restore,
		undelete:    undelete,
		maintenance: maintenance,
		signal:      signal,
		views:       views,
		idp:         idp,
	}
}

// decorateRevisions fills in display names for revisions written before
// actor names were recorded. Resolution is best effort; without a
// configured identity provider the summaries pass through untouched.
func (h *Handler) decorateRevisions(ctx context.Context, views []edubase.RevisionSummary) []edubase.RevisionSummary {
	if h.idp == nil {
		return views
	}
	for i := range views {
		if views[i].UserName == "" && views[i].UserID != 0 {
			views[i].UserName = h.idp.DisplayName(ctx, views[i].UserID)
		}
	}
	return views
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/institutions", h.handleInstitutionList)
	e.POST("/api/v1/institutions", h.handleInstitutionCreate)
	e.GET("/api/v1/institutions/:id", h.handleInstitutionGet)
	e.PUT("/api/v1/institutions/:id", h.handleInstitutionUpdate)
	e.GET("/api/v1/institutions/:id/history", h.handleInstitutionHistory)
	e.GET("/api/v1/institutions/:id/courses", h.handleInstitutionCourses)

	e.GET("/api/v1/courses", h.handleCourseList)
	e.POST("/api/v1/courses", h.handleCourseCreate)
	e.GET("/api/v1/courses/:id", h.handleCourseGet)
	e.PUT("/api/v1/courses/:id", h.handleCourseUpdate)
	e.GET("/api/v1/courses/:id/history", h.handleCourseHistory)
	e.POST("/api/v1/courses/:id/enlist", h.handleEnlist)
	e.POST("/api/v1/courses/:id/unenlist", h.handleUnenlist)

	e.GET("/api/v1/users/:id/courses", h.handleUserCourses)
	e.GET("/api/v1/history/:kind", h.handleHistoryByIdentifier)

	e.POST("/api/v1/actions/delete/:kind/:id", h.handleDeletePrepare)
	e.POST("/api/v1/actions/delete/:kind/:id/confirm", h.handleDeleteConfirm)
	e.GET("/api/v1/actions/undo/:kind/:id/:revision", h.handleUndoPreview)
	e.POST("/api/v1/actions/undo/:kind/:id/:revision", h.handleUndoConfirm)
	e.GET("/api/v1/actions/restore/:kind/:id/:revision", h.handleRestorePreview)
	e.POST("/api/v1/actions/restore/:kind/:id/:revision", h.handleRestoreConfirm)
	e.POST("/api/v1/actions/undelete/:kind", h.handleUndelete)

	e.POST("/api/v1/admin/reconcile", h.handleReconcile)
	e.POST("/api/v1/admin/purge-user/:id", h.handlePurgeUser)

	e.GET("/realtime", h.handleRealtime)
}

func paramID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func paramKind(c echo.Context) (domain.Kind, bool) {
	kind := domain.Kind(c.Param("kind"))
	return kind, kind.Valid()
}

func queryLimit(c echo.Context, fallback, max int) int {
	limit := fallback
	limitStr := c.QueryParam("limit")
	if limitStr != "" {
		limitInt, err := strconv.Atoi(limitStr)
		if err == nil && limitInt > 0 {
			limit = limitInt
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func requireActor(c echo.Context) (domain.Actor, error) {
	actor, ok := middleware.ActorFrom(c.Request().Context())
	if !ok {
		return domain.Actor{}, presenter.Forbidden(c, "authentication required")
	}
	return actor, nil
}

// ---- institutions

type institutionRequest struct {
	Name    *string `json:"name"`
	City    *string `json:"city"`
	Country *string `json:"country"`
	Comment string  `json:"comment"`
	Minor   bool    `json:"minor"`
}

func (req institutionRequest) entity() *domain.Institution {
	inst := domain.NewInstitution()
	if req.Name != nil {
		inst.SetName(*req.Name)
	}
	if req.City != nil {
		inst.SetCity(*req.City)
	}
	if req.Country != nil {
		inst.SetCountry(*req.Country)
	}
	return inst
}

func (h *Handler) handleInstitutionList(c echo.Context) error {
	ctx := c.Request().Context()

	entities, err := h.institution.List(ctx)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Entities(entities))
}

func (h *Handler) handleInstitutionCreate(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	var req institutionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	id, err := h.institution.Create(ctx, actor, req.entity(), req.Comment)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"id": id})
}

func (h *Handler) handleInstitutionGet(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	if body, ok := h.views.Get(domain.KindInstitution, id); ok {
		return c.JSONBlob(http.StatusOK, body)
	}

	e, err := h.institution.Get(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}

	view := presenter.Entity(e)
	if body, err := json.Marshal(view); err == nil {
		h.views.Set(domain.KindInstitution, id, body)
	}
	return presenter.OK(c, view)
}

func (h *Handler) handleInstitutionUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	var req institutionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	inst := req.entity()
	inst.SetID(id)

	changed, err := h.institution.Update(ctx, actor, inst, req.Comment, req.Minor)
	if err != nil {
		return presenter.Error(c, err)
	}
	if changed {
		h.views.Invalidate(domain.KindInstitution, id)
	}
	return presenter.OK(c, echo.Map{"changed": changed})
}

func (h *Handler) handleInstitutionHistory(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	revs, err := h.institution.History(ctx, id, queryLimit(c, 50, 500))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, h.decorateRevisions(ctx, presenter.Revisions(revs)))
}

func (h *Handler) handleInstitutionCourses(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	entities, err := h.course.ListByInstitution(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Entities(entities))
}

// ---- courses

type courseRequest struct {
	Name          *string    `json:"name"`
	Term          *string    `json:"term"`
	InstitutionID *int64     `json:"institutionId"`
	Start         *time.Time `json:"start"`
	End           *time.Time `json:"end"`
	Description   *string    `json:"description"`
	Token         *string    `json:"token"`
	Comment       string     `json:"comment"`
	Minor         bool       `json:"minor"`
}

func (req courseRequest) entity() *domain.Course {
	course := domain.NewCourse()
	if req.Name != nil {
		course.SetName(*req.Name)
	}
	if req.Term != nil {
		course.SetTerm(*req.Term)
	}
	if req.InstitutionID != nil {
		course.SetInstitutionID(*req.InstitutionID)
	}
	if req.Start != nil {
		course.SetStart(*req.Start)
	}
	if req.End != nil {
		course.SetEnd(*req.End)
	}
	if req.Description != nil {
		course.SetDescription(*req.Description)
	}
	if req.Token != nil {
		course.SetToken(*req.Token)
	}
	return course
}

func (h *Handler) handleCourseList(c echo.Context) error {
	ctx := c.Request().Context()

	entities, err := h.course.List(ctx)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Entities(entities))
}

func (h *Handler) handleCourseCreate(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	var req courseRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	id, err := h.course.Create(ctx, actor, req.entity(), req.Comment)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"id": id})
}

func (h *Handler) handleCourseGet(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	if body, ok := h.views.Get(domain.KindCourse, id); ok {
		return c.JSONBlob(http.StatusOK, body)
	}

	e, err := h.course.Get(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}

	view := presenter.Entity(e)
	if body, err := json.Marshal(view); err == nil {
		h.views.Set(domain.KindCourse, id, body)
	}
	return presenter.OK(c, view)
}

func (h *Handler) handleCourseUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	var req courseRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	course := req.entity()
	course.SetID(id)

	changed, err := h.course.Update(ctx, actor, course, req.Comment, req.Minor)
	if err != nil {
		return presenter.Error(c, err)
	}
	if changed {
		h.views.Invalidate(domain.KindCourse, id)
	}
	return presenter.OK(c, echo.Map{"changed": changed})
}

func (h *Handler) handleCourseHistory(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	revs, err := h.course.History(ctx, id, queryLimit(c, 50, 500))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, h.decorateRevisions(ctx, presenter.Revisions(revs)))
}

// ---- enrollment

type enlistRequest struct {
	Role    string  `json:"role"`
	UserIDs []int64 `json:"userIds"`
	Comment string  `json:"comment"`
}

func (h *Handler) handleEnlist(c echo.Context) error {
	return h.handleRoleChange(c, h.enroll.Enlist)
}

func (h *Handler) handleUnenlist(c echo.Context) error {
	return h.handleRoleChange(c, h.enroll.Unenlist)
}

func (h *Handler) handleRoleChange(
	c echo.Context,
	apply func(ctx context.Context, actor domain.Actor, courseID int64, role domain.Role, userIDs []int64, comment string) ([]int64, error),
) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	var req enlistRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid role")
	}

	touched, err := apply(ctx, actor, id, role, req.UserIDs, req.Comment)
	if err != nil {
		return presenter.Error(c, err)
	}
	if len(touched) > 0 {
		h.views.Invalidate(domain.KindCourse, id)
	}
	return presenter.OK(c, echo.Map{"userIds": touched, "count": len(touched)})
}

func (h *Handler) handleUserCourses(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	entities, err := h.course.ListByUser(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Entities(entities))
}

// handleHistoryByIdentifier looks up history by the external name, which
// keeps working after the live row is gone.
func (h *Handler) handleHistoryByIdentifier(c echo.Context) error {
	ctx := c.Request().Context()

	kind, ok := paramKind(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid kind")
	}

	identifier := c.QueryParam("identifier")
	if identifier == "" {
		return presenter.BadRequestMessage(c, "identifier parameter is required")
	}

	limit := queryLimit(c, 50, 500)

	var revs []domain.Revision
	var err error
	switch kind {
	case domain.KindInstitution:
		revs, err = h.institution.HistoryByName(ctx, identifier, limit)
	case domain.KindCourse:
		revs, err = h.course.HistoryByTitle(ctx, identifier, limit)
	}
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, h.decorateRevisions(ctx, presenter.Revisions(revs)))
}

// ---- delete

type deleteConfirmRequest struct {
	Token   string `json:"token"`
	Comment string `json:"comment"`
}

func deleteTicketView(ticket usecase.DeleteTicket) echo.Map {
	view := echo.Map{"state": ticket.State.String()}
	if ticket.Token != "" {
		view["token"] = ticket.Token
	}
	if ticket.Restriction != "" {
		view["restriction"] = ticket.Restriction
	}
	if ticket.Entity != nil {
		view["entity"] = presenter.Entity(ticket.Entity)
	}
	return view
}

func (h *Handler) handleDeletePrepare(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	kind, ok := paramKind(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid kind")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	ticket, err := h.del.Prepare(ctx, actor, kind, id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, deleteTicketView(ticket))
}

func (h *Handler) handleDeleteConfirm(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	kind, ok := paramKind(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid kind")
	}
	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	var req deleteConfirmRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	ticket, err := h.del.Confirm(ctx, actor, kind, id, req.Token, req.Comment)
	if err != nil {
		return presenter.Error(c, err)
	}
	if ticket.State == usecase.DeleteDone {
		h.views.Invalidate(kind, id)
	}
	return presenter.OK(c, deleteTicketView(ticket))
}

// ---- undo / restore

type revertConfirmRequest struct {
	Comment string `json:"comment"`
}

func revertOutcomeView(out usecase.RevertOutcome) echo.Map {
	view := echo.Map{"state": out.State.String()}
	if out.Revision != nil {
		view["revision"] = presenter.Revision(*out.Revision)
	}
	if out.State == usecase.RevertReady || out.State == usecase.RevertApplied {
		view["changes"] = presenter.Changes(out.Diff)
	}
	return view
}

type revertPrepareFunc func(ctx context.Context, actor domain.Actor, kind domain.Kind, objectID, revisionID int64) (usecase.RevertOutcome, error)
type revertConfirmFunc func(ctx context.Context, actor domain.Actor, kind domain.Kind, objectID, revisionID int64, comment string) (usecase.RevertOutcome, error)

func (h *Handler) handleUndoPreview(c echo.Context) error {
	return h.handleRevertPreview(c, h.undo.Prepare)
}

func (h *Handler) handleUndoConfirm(c echo.Context) error {
	return h.handleRevertConfirm(c, h.undo.Confirm)
}

func (h *Handler) handleRestorePreview(c echo.Context) error {
	return h.handleRevertPreview(c, h.restore.Prepare)
}

func (h *Handler) handleRestoreConfirm(c echo.Context) error {
	return h.handleRevertConfirm(c, h.restore.Confirm)
}

func (h *Handler) revertParams(c echo.Context) (domain.Kind, int64, int64, bool) {
	kind, ok := paramKind(c)
	if !ok {
		return kind, 0, 0, false
	}
	id, ok := paramID(c, "id")
	if !ok {
		return kind, 0, 0, false
	}
	revisionID, ok := paramID(c, "revision")
	if !ok {
		return kind, 0, 0, false
	}
	return kind, id, revisionID, true
}

func (h *Handler) handleRevertPreview(c echo.Context, prepare revertPrepareFunc) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	kind, id, revisionID, ok := h.revertParams(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid kind, id or revision")
	}

	out, err := prepare(ctx, actor, kind, id, revisionID)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, revertOutcomeView(out))
}

func (h *Handler) handleRevertConfirm(c echo.Context, confirm revertConfirmFunc) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	kind, id, revisionID, ok := h.revertParams(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid kind, id or revision")
	}

	var req revertConfirmRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	out, err := confirm(ctx, actor, kind, id, revisionID, req.Comment)
	if err != nil {
		return presenter.Error(c, err)
	}
	if out.State == usecase.RevertApplied {
		h.views.Invalidate(kind, id)
	}
	return presenter.OK(c, revertOutcomeView(out))
}

// ---- undelete

type undeleteRequest struct {
	Identifier string `json:"identifier"`
	Comment    string `json:"comment"`
}

func (h *Handler) handleUndelete(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	kind, ok := paramKind(c)
	if !ok {
		return presenter.BadRequestMessage(c, "invalid kind")
	}

	var req undeleteRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.Identifier == "" {
		return presenter.BadRequestMessage(c, "identifier is required")
	}

	out, err := h.undelete.Run(ctx, actor, kind, req.Identifier, req.Comment)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"state": out.State.String(), "identifier": out.Identifier})
}

// ---- admin

func (h *Handler) handleReconcile(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	report, err := h.maintenance.Reconcile(ctx, actor)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, report)
}

type purgeUserRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) handlePurgeUser(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := requireActor(c)
	if err != nil {
		return err
	}

	id, ok := paramID(c, "id")
	if !ok {
		return presenter.BadRequestMessage(c, "invalid id")
	}

	var req purgeUserRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	touched, err := h.maintenance.PurgeUser(ctx, actor, id, req.Comment)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"courses": touched})
}

// ---- realtime

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type string `json:"type"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	output := make(chan edubase.Event)

	go h.signal.Realtime(ctx, output)

	quit := make(chan struct{})

	go func() {
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				quit <- struct{}{}
				break
			}

			switch req.Type {
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
