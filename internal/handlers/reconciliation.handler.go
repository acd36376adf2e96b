package handlers

import (
	"context"
	"errors"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/reconcile"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	xhttp "github.com/conciliai/reconcile-gateway/pkg/http"
	"github.com/fasthttp/router"
)

type ReconciliationService interface {
	Stats(ctx context.Context, userID string) (*reconcile.Stats, error)
	Suggestions(ctx context.Context, userID string) ([]model.MatchSuggestion, error)
	Complete(ctx context.Context, userID string) (*reconcile.Stats, error)
	ListBatches(ctx context.Context, userID string) ([]*model.ImportBatch, error)
	DeleteBatch(ctx context.Context, userID, batchID string) error
}

type ReconciliationHandler struct {
	svc ReconciliationService
}

func NewReconciliationHandler(svc ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		svc: svc,
	}
}

func RegisterReconciliationRoutes(e *router.Group, h *ReconciliationHandler) {
	e.GET("/reconciliation/stats", h.Stats)
	e.GET("/reconciliation/suggestions", h.Suggestions)
	e.POST("/reconciliation/complete", h.Complete)
	e.GET("/batches", h.ListBatches)
	e.DELETE("/batches/{id}", h.DeleteBatch)
}

func (h *ReconciliationHandler) Stats(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(ctx, uid)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, stats)
}

func (h *ReconciliationHandler) Suggestions(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	items, err := h.svc.Suggestions(ctx, uid)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	if items == nil {
		items = []model.MatchSuggestion{}
	}
	writeJSON(ctx, 200, map[string]any{"items": items})
}

func (h *ReconciliationHandler) Complete(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	stats, err := h.svc.Complete(ctx, uid)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, stats)
}

func (h *ReconciliationHandler) ListBatches(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	items, err := h.svc.ListBatches(ctx, uid)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": items})
}

func (h *ReconciliationHandler) DeleteBatch(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	if err := h.svc.DeleteBatch(ctx, uid, param(ctx, "id")); err != nil {
		if errors.Is(err, repository.ErrBatchNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "deleted"})
}
