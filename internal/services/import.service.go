package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/conciliai/reconcile-gateway/internal/model"
	"github.com/conciliai/reconcile-gateway/internal/precheck"
	"github.com/conciliai/reconcile-gateway/internal/repository"
	"github.com/conciliai/reconcile-gateway/pkg/logger"
	"github.com/google/uuid"
)

var ErrAttemptNotConfirmable = errors.New("attempt is not awaiting confirmation")

// Publisher is the slice of the queue the import service needs.
type Publisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// ImportService drives an attempt from upload through confirmation. The
// billable part (deduction and extraction) happens on the worker side; this
// service only moves attempts up to CONFIRMED and hands them to the queue.
type ImportService struct {
	attempts *repository.AttemptRepository
	profiles *repository.ProfileRepository
	queue    Publisher
}

func NewImportService(attempts *repository.AttemptRepository, profiles *repository.ProfileRepository, queue Publisher) *ImportService {
	return &ImportService{
		attempts: attempts,
		profiles: profiles,
		queue:    queue,
	}
}

// Precheck stores the upload, counts its billable units and decides whether
// the user's credit balance covers them. No credits are spent here: the
// outcome is PRECHECKED (cost quoted, awaiting confirmation) or BLOCKED
// (shortfall reported). The balance check is advisory; the worker re-checks
// atomically at deduction time.
func (s *ImportService) Precheck(ctx context.Context, req model.ImportRequest) (*model.ImportAttempt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	attempt, err := s.attempts.Create(ctx, &model.ImportAttempt{
		ID:       uuid.NewString(),
		UserID:   req.UserID,
		Filename: req.Filename,
		MimeType: req.MimeType,
		Source:   req.Source,
		State:    model.AttemptSelected,
		Payload:  req.Data,
		RawText:  req.RawText,
	})
	if err != nil {
		return nil, err
	}

	units := 1
	if len(req.Data) > 0 {
		res, inspectErr := precheck.Inspect(req.Filename, req.MimeType, req.Data)
		if inspectErr != nil {
			if failErr := s.attempts.Fail(ctx, attempt.ID, inspectErr.Error()); failErr != nil {
				logger.Error("mark unreadable attempt failed", "attempt_id", attempt.ID, "error", failErr)
			}
			return nil, inspectErr
		}
		units = res.UnitCount
	}

	profile, err := s.profiles.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if !profile.Tier.Unlimited() && profile.CreditsRemaining < uint(units) {
		shortfall := units - int(profile.CreditsRemaining)
		err = s.attempts.Transition(ctx, attempt.ID, model.AttemptSelected, model.AttemptBlocked, map[string]interface{}{
			"unit_count": units,
			"shortfall":  shortfall,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("import blocked on credits",
			"attempt_id", attempt.ID, "units", units, "available", profile.CreditsRemaining)
		return s.attempts.Get(ctx, attempt.ID)
	}

	err = s.attempts.Transition(ctx, attempt.ID, model.AttemptSelected, model.AttemptPrechecked, map[string]interface{}{
		"unit_count": units,
	})
	if err != nil {
		return nil, err
	}
	return s.attempts.Get(ctx, attempt.ID)
}

// Confirm is the explicit user consent to spend credits. It moves the
// attempt to CONFIRMED and enqueues the extraction job; everything after
// that runs on the worker.
func (s *ImportService) Confirm(ctx context.Context, attemptID, userID string) (*model.ImportAttempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, repository.ErrAttemptNotFound
	}

	err = s.attempts.Transition(ctx, attemptID, model.AttemptPrechecked, model.AttemptConfirmed, nil)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: state is %s", ErrAttemptNotConfirmable, attempt.State)
		}
		return nil, err
	}

	job := model.ExtractionJob{AttemptID: attemptID, UserID: userID}
	if _, err := s.queue.PublishJSON(ctx, job, map[string]string{"attempt_id": attemptID}); err != nil {
		if failErr := s.attempts.Fail(ctx, attemptID, "enqueue failed: "+err.Error()); failErr != nil {
			logger.Error("mark attempt failed after enqueue error", "attempt_id", attemptID, "error", failErr)
		}
		return nil, fmt.Errorf("enqueue extraction: %w", err)
	}

	logger.Info("extraction enqueued", "attempt_id", attemptID, "units", attempt.UnitCount)
	return s.attempts.Get(ctx, attemptID)
}

func (s *ImportService) Get(ctx context.Context, attemptID, userID string) (*model.ImportAttempt, error) {
	attempt, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, repository.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *ImportService) List(ctx context.Context, userID string, limit int) ([]*model.ImportAttempt, error) {
	return s.attempts.List(ctx, userID, limit)
}
