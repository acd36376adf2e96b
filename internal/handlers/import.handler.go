package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/precheck"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/conciliai/reconcile-gateway/internal/services"
	xhttp "github.com/conciliai/reconcile-gateway/pkg/http"
	"github.com/fasthttp/router"
)

type ImportService interface {
	Precheck(ctx context.Context, req model.ImportRequest) (*model.ImportAttempt, error)
	Confirm(ctx context.Context, attemptID, userID string) (*model.ImportAttempt, error)
	Get(ctx context.Context, attemptID, userID string) (*model.ImportAttempt, error)
	List(ctx context.Context, userID string, limit int) ([]*model.ImportAttempt, error)
}

type ImportHandler struct {
	svc ImportService
}

func NewImportHandler(svc ImportService) *ImportHandler {
	return &ImportHandler{
		svc: svc,
	}
}

func RegisterImportRoutes(e *router.Group, h *ImportHandler) {
	e.POST("/imports/precheck", h.Precheck)
	e.POST("/imports/{id}/confirm", h.Confirm)
	e.GET("/imports/{id}", h.Get)
	e.GET("/imports", h.List)
}

type precheckTextRequest struct {
	RawText string `json:"raw_text"`
	Source  string `json:"source"`
}

// Precheck accepts either a multipart upload (fields: file, source) or a
// JSON body with pasted statement text. The response quotes the billable
// unit count; nothing is spent yet.
func (h *ImportHandler) Precheck(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	req := model.ImportRequest{UserID: uid}

	if fh, err := ctx.FormFile("file"); err == nil {
		req.Filename = fh.Filename
		req.Source = model.TransactionSource(string(ctx.FormValue("source")))

		f, err := fh.Open()
		if err != nil {
			writeError(ctx, 400, "cannot open upload: "+err.Error())
			return
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			writeError(ctx, 400, "cannot read upload: "+err.Error())
			return
		}
		req.Data = data
		req.MimeType = fh.Header.Get("Content-Type")
	} else {
		var body precheckTextRequest
		if err := readJSON(ctx, &body); err != nil {
			writeError(ctx, 400, "expected a multipart file or a JSON body: "+err.Error())
			return
		}
		req.RawText = body.RawText
		req.Source = model.TransactionSource(body.Source)
	}

	attempt, err := h.svc.Precheck(ctx, req)
	if err != nil {
		if errors.Is(err, precheck.ErrDocumentUnreadable) {
			writeError(ctx, 422, err.Error())
			return
		}
		writeError(ctx, 400, err.Error())
		return
	}

	status := 200
	if attempt.State == model.AttemptBlocked {
		// Quoted but unaffordable.
		status = 402
	}
	writeJSON(ctx, status, attempt)
}

func (h *ImportHandler) Confirm(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	attempt, err := h.svc.Confirm(ctx, param(ctx, "id"), uid)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAttemptNotFound):
			writeError(ctx, 404, err.Error())
		case errors.Is(err, services.ErrAttemptNotConfirmable):
			writeError(ctx, 409, err.Error())
		default:
			writeError(ctx, 500, err.Error())
		}
		return
	}
	writeJSON(ctx, 202, attempt)
}

func (h *ImportHandler) Get(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	attempt, err := h.svc.Get(ctx, param(ctx, "id"), uid)
	if err != nil {
		if errors.Is(err, repository.ErrAttemptNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, attempt)
}

func (h *ImportHandler) List(ctx *xhttp.RequestCtx) {
	uid, ok := userID(ctx)
	if !ok {
		return
	}

	limit := 0
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}

	items, err := h.svc.List(ctx, uid, limit)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": items})
}

/* --------------------------------- Helpers ----------------------------------- */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func param(ctx *xhttp.RequestCtx, name string) string {
	if v, ok := ctx.UserValue(name).(string); ok {
		return v
	}
	return ""
}

// userID reads the identity set by the auth proxy. Requests without it are
// rejected before touching any service.
func userID(ctx *xhttp.RequestCtx) (string, bool) {
	v := string(ctx.Request.Header.Peek("X-User-Id"))
	if v == "" {
		writeError(ctx, 401, "missing user identity")
		return "", false
	}
	return v, true
}

func userEmail(ctx *xhttp.RequestCtx) (string, bool) {
	v := string(ctx.Request.Header.Peek("X-User-Email"))
	if v == "" {
		writeError(ctx, 401, "missing user identity")
		return "", false
	}
	return v, true
}
