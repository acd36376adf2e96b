package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/conciliai/reconcile-gateway/internal/services"
	xhttp "github.com/conciliai/reconcile-gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockImportService struct {
	mock.Mock
}

func (m *MockImportService) Precheck(ctx context.Context, req model.ImportRequest) (*model.ImportAttempt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportAttempt), args.Error(1)
}

func (m *MockImportService) Confirm(ctx context.Context, attemptID, userID string) (*model.ImportAttempt, error) {
	args := m.Called(ctx, attemptID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportAttempt), args.Error(1)
}

func (m *MockImportService) Get(ctx context.Context, attemptID, userID string) (*model.ImportAttempt, error) {
	args := m.Called(ctx, attemptID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportAttempt), args.Error(1)
}

func (m *MockImportService) List(ctx context.Context, userID string, limit int) ([]*model.ImportAttempt, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ImportAttempt), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	ctx.Request.Header.Set("X-User-Id", "user-1")
	ctx.Request.Header.Set("X-User-Email", "ana@example.com")
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestImportHandler_Precheck(t *testing.T) {
	t.Run("pasted text quotes one unit", func(t *testing.T) {
		svc := new(MockImportService)
		handler := NewImportHandler(svc)

		body, _ := json.Marshal(precheckTextRequest{RawText: "SALDO ANTERIOR 1000", Source: "BANK"})

		svc.On("Precheck", mock.Anything, mock.MatchedBy(func(r model.ImportRequest) bool {
			return r.UserID == "user-1" && r.RawText != "" && r.Source == model.SourceBank
		})).Return(&model.ImportAttempt{ID: "a1", State: model.AttemptPrechecked, UnitCount: 1}, nil)

		ctx := setupTestContext("POST", "/imports/precheck", body)
		handler.Precheck(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var got model.ImportAttempt
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, model.AttemptPrechecked, got.State)
		assert.Equal(t, 1, got.UnitCount)

		svc.AssertExpectations(t)
	})

	t.Run("blocked attempt returns 402 with shortfall", func(t *testing.T) {
		svc := new(MockImportService)
		handler := NewImportHandler(svc)

		body, _ := json.Marshal(precheckTextRequest{RawText: "x", Source: "BANK"})
		svc.On("Precheck", mock.Anything, mock.Anything).
			Return(&model.ImportAttempt{ID: "a1", State: model.AttemptBlocked, UnitCount: 3, Shortfall: 2}, nil)

		ctx := setupTestContext("POST", "/imports/precheck", body)
		handler.Precheck(ctx)

		assert.Equal(t, 402, ctx.Response.StatusCode())

		var got model.ImportAttempt
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, 2, got.Shortfall)
	})

	t.Run("missing identity", func(t *testing.T) {
		svc := new(MockImportService)
		handler := NewImportHandler(svc)

		ctx := setupTestContext("POST", "/imports/precheck", []byte(`{}`))
		ctx.Request.Header.Del("X-User-Id")
		handler.Precheck(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
	})
}

func TestImportHandler_Confirm(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		svc := new(MockImportService)
		handler := NewImportHandler(svc)

		svc.On("Confirm", mock.Anything, "a1", "user-1").
			Return(&model.ImportAttempt{ID: "a1", State: model.AttemptConfirmed}, nil)

		ctx := setupTestContext("POST", "/imports/a1/confirm", nil)
		ctx.SetUserValue("id", "a1")
		handler.Confirm(ctx)

		assert.Equal(t, 202, ctx.Response.StatusCode())
	})

	t.Run("not confirmable", func(t *testing.T) {
		svc := new(MockImportService)
		handler := NewImportHandler(svc)

		svc.On("Confirm", mock.Anything, "a1", "user-1").
			Return(nil, fmt.Errorf("%w: state is BLOCKED", services.ErrAttemptNotConfirmable))

		ctx := setupTestContext("POST", "/imports/a1/confirm", nil)
		ctx.SetUserValue("id", "a1")
		handler.Confirm(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("unknown attempt", func(t *testing.T) {
		svc := new(MockImportService)
		handler := NewImportHandler(svc)

		svc.On("Confirm", mock.Anything, "nope", "user-1").
			Return(nil, repository.ErrAttemptNotFound)

		ctx := setupTestContext("POST", "/imports/nope/confirm", nil)
		ctx.SetUserValue("id", "nope")
		handler.Confirm(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}
