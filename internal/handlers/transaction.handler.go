package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	xhttp "github.com/conciliai/reconcile-gateway/pkg/http"
	"github.com/fasthttp/router"
)

type TransactionService interface {
	CreateTransaction(ctx context.Context, req model.TransactionCreateRequest) (*model.Transaction, error)
	ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	Match(ctx context.Context, userID, bankID, ledgerID string) error
	Unmatch(ctx context.Context, userID, id string) error
	FlagDiscrepancy(ctx context.Context, userID, id, note string) error
	UpdateNotes(ctx context.Context, userID, id, notes string) error
}

type TransactionHandler struct {
	svc TransactionService
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{
		svc: svc,
	}
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.POST("/transactions", h.Create)
	e.GET("/transactions", h.List)
	e.POST("/transactions/match", h.Match)
	e.POST("/transactions/{id}/unmatch", h.Unmatch)
	e.POST("/transactions/{id}/discrepancy", h.FlagDiscrepancy)
	e.PUT("/transactions/{id}/notes", h.UpdateNotes)
}

type createTransactionRequest struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Source      string  `json:"source"`
}

type listTransactionsResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

func (h *TransactionHandler) Create(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	var req createTransactionRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	txn, err := h.svc.CreateTransaction(ctx, model.TransactionCreateRequest{
		UserID:      uid,
		Date:        req.Date,
		Description: req.Description,
		AmountCents: model.CentsFromFloat(req.Amount),
		Source:      model.TransactionSource(req.Source),
	})
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, txn)
}

func (h *TransactionHandler) List(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	f := model.TransactionFilter{UserID: uid}

	if v := query(ctx, "source"); v != "" {
		src := model.TransactionSource(v)
		f.Source = &src
	}
	if v := query(ctx, "status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				f.Statuses = append(f.Statuses, model.TransactionStatus(part))
			}
		}
	}
	if v := query(ctx, "batch_id"); v != "" {
		f.BatchID = &v
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.ListTransactions(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, listTransactionsResponse{Items: items, Total: total})
}

type matchRequest struct {
	BankID   string `json:"bank_id"`
	LedgerID string `json:"ledger_id"`
}

func (h *TransactionHandler) Match(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	var req matchRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	if err := h.svc.Match(ctx, uid, req.BankID, req.LedgerID); err != nil {
		switch {
		case errors.Is(err, repository.ErrTransactionNotFound):
			writeError(ctx, 404, err.Error())
		case errors.Is(err, repository.ErrSourceConflict):
			writeError(ctx, 409, err.Error())
		default:
			writeError(ctx, 500, err.Error())
		}
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "matched"})
}

func (h *TransactionHandler) Unmatch(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	if err := h.svc.Unmatch(ctx, uid, param(ctx, "id")); err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "pending"})
}

type discrepancyRequest struct {
	Note string `json:"note"`
}

func (h *TransactionHandler) FlagDiscrepancy(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	var req discrepancyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	if err := h.svc.FlagDiscrepancy(ctx, uid, param(ctx, "id"), req.Note); err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "discrepancy"})
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *TransactionHandler) UpdateNotes(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	var req notesRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	if err := h.svc.UpdateNotes(ctx, uid, param(ctx, "id"), req.Notes); err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "updated"})
}
