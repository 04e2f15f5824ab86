package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/todolog/api/transport"
	"github.com/fastygo/todolog/domain"
	"github.com/fastygo/todolog/pkg/httpcontext"
	auditUC "github.com/fastygo/todolog/usecase/audit"
	todoUC "github.com/fastygo/todolog/usecase/todo"
)

type TodoHandler struct {
	baseHandler
	uc     *todoUC.UseCase
	audits *auditUC.UseCase
}

func NewTodoHandler(uc *todoUC.UseCase, audits *auditUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *TodoHandler {
	return &TodoHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		audits:      audits,
	}
}

// @Summary List todos
// @Tags todos
// @Router /api/v1/todos [get]
func (h *TodoHandler) ListTodos(ctx *fasthttp.RequestCtx) {
	owner := h.owner(ctx)
	if owner == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	todos, err := h.uc.List(stdCtx, owner)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	if todos == nil {
		todos = []domain.Todo{}
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewList(todos, len(todos)))
}

// @Summary Create todo
// @Tags todos
// @Router /api/v1/todos [post]
func (h *TodoHandler) CreateTodo(ctx *fasthttp.RequestCtx) {
	owner := h.owner(ctx)
	if owner == "" {
		return
	}

	var req transport.TodoCreateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, domain.ErrInvalidPayload.Message)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, err := h.uc.Create(stdCtx, owner, req.Text, req.Done)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Get todo
// @Tags todos
// @Router /api/v1/todos/{id} [get]
func (h *TodoHandler) GetTodo(ctx *fasthttp.RequestCtx) {
	owner := h.owner(ctx)
	if owner == "" {
		return
	}
	id, ok := h.todoID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	todo, err := h.uc.Get(stdCtx, owner, id)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, todo)
}

// @Summary Update todo
// @Tags todos
// @Router /api/v1/todos/{id} [put]
func (h *TodoHandler) UpdateTodo(ctx *fasthttp.RequestCtx) {
	owner := h.owner(ctx)
	if owner == "" {
		return
	}
	id, ok := h.todoID(ctx)
	if !ok {
		return
	}

	var req transport.TodoUpdateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondInvalid(ctx, domain.ErrInvalidPayload.Message)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	updated, err := h.uc.Update(stdCtx, owner, id, domain.TodoPatch{Text: req.Text, Done: req.Done})
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, updated)
}

// @Summary Toggle todo
// @Tags todos
// @Router /api/v1/todos/{id}/toggle [patch]
func (h *TodoHandler) ToggleTodo(ctx *fasthttp.RequestCtx) {
	owner := h.owner(ctx)
	if owner == "" {
		return
	}
	id, ok := h.todoID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	toggled, err := h.uc.Toggle(stdCtx, owner, id)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, toggled)
}

// @Summary Delete todo
// @Tags todos
// @Router /api/v1/todos/{id} [delete]
func (h *TodoHandler) DeleteTodo(ctx *fasthttp.RequestCtx) {
	owner := h.owner(ctx)
	if owner == "" {
		return
	}
	id, ok := h.todoID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	deleted, err := h.uc.Delete(stdCtx, owner, id)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, deleted)
}

// @Summary Todo version history
// @Tags todos
// @Router /api/v1/todos/{id}/history [get]
func (h *TodoHandler) TodoHistory(ctx *fasthttp.RequestCtx) {
	owner := h.owner(ctx)
	if owner == "" {
		return
	}
	id, ok := h.todoID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	versions, err := h.uc.History(stdCtx, owner, id)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewList(versions, len(versions)))
}

// @Summary Todo audit trail
// @Tags todos
// @Router /api/v1/todos/{id}/audit [get]
func (h *TodoHandler) TodoAudit(ctx *fasthttp.RequestCtx) {
	owner := h.owner(ctx)
	if owner == "" {
		return
	}
	id, ok := h.todoID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	limit := parseInt(string(ctx.QueryArgs().Peek("limit")), 50)
	offset := parseInt(string(ctx.QueryArgs().Peek("offset")), 0)
	records, err := h.audits.Trail(stdCtx, owner, id, limit, offset)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewList(records, len(records)))
}
