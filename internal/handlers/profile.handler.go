package handlers

import (
	"context"
	"errors"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	xhttp "github.com/conciliai/reconcile-gateway/pkg/http"
	"github.com/fasthttp/router"
)

type ProfileService interface {
	GetOrCreate(ctx context.Context, userID, email string) (*model.UserProfile, error)
	SetOpeningBalances(ctx context.Context, userID string, bank, ledger *model.Cents) error
}

type ProfileHandler struct {
	svc ProfileService
}

func NewProfileHandler(svc ProfileService) *ProfileHandler {
	return &ProfileHandler{
		svc: svc,
	}
}

func RegisterProfileRoutes(e *router.Group, h *ProfileHandler) {
	e.GET("/profile", h.Get)
	e.PUT("/profile/balances", h.SetBalances)
}

// Get resolves the caller's profile, provisioning on first login.
func (h *ProfileHandler) Get(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}
	email, ok := userEmail(ctx)
	if !ok {
		return
	}

	profile, err := h.svc.GetOrCreate(ctx, uid, email)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, profile)
}

type balancesRequest struct {
	InitialBankBalance   *float64 `json:"initial_bank_balance"`
	InitialLedgerBalance *float64 `json:"initial_ledger_balance"`
}

func (h *ProfileHandler) SetBalances(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	var req balancesRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	var bank, ledger *model.Cents
	if req.InitialBankBalance != nil {
		c := model.CentsFromFloat(*req.InitialBankBalance)
		bank = &c
	}
	if req.InitialLedgerBalance != nil {
		c := model.CentsFromFloat(*req.InitialLedgerBalance)
		ledger = &c
	}

	if err := h.svc.SetOpeningBalances(ctx, uid, bank, ledger); err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "updated"})
}
