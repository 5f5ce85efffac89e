package screenshot

import (
	"context"
	"log/slog"
	"time"
	"webshot/internal/capture"
	"webshot/internal/classify"

	"github.com/google/uuid"
	"golang.org/x/xerrors"
)

const MaxBatchSize = 10

var (
	ErrEmptyBatch    = classify.Wrap(classify.InvalidRequest, xerrors.New("urls must be a non-empty array"))
	ErrBatchTooLarge = classify.Wrap(classify.InvalidRequest, xerrors.Errorf("maximum %d urls allowed per batch", MaxBatchSize))
)

type BatchOutcome struct {
	ID string `json:"batchId"`
	// Results follow input order.
	Results        []Outcome `json:"results"`
	TotalRequested int       `json:"totalRequested"`
	TotalSucceeded int       `json:"totalSucceeded"`
	TotalFailed    int       `json:"totalFailed"`
}

// CaptureBatch captures urls one after another with a single browser, each in
// its own page. A failed item is recorded and the batch moves on; an error is
// returned only when the batch cannot start.
func (s *Service) CaptureBatch(ctx context.Context, urls []string, o capture.Options) (*BatchOutcome, error) {
	if len(urls) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(urls) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	id := uuid.NewString()
	logger := slog.With("batch", id)

	profile, err := s.config.Provider.Resolve(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to resolve browser for batch: %w", err)
	}

	config := s.config.Session
	if s.config.BatchSettleDelay > 0 {
		config.SettleDelay = s.config.BatchSettleDelay
	}
	session, err := capture.Open(ctx, s.config.Engine, profile, config)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = session.Close()
	}()

	b := &BatchOutcome{
		ID:             id,
		Results:        make([]Outcome, 0, len(urls)),
		TotalRequested: len(urls),
	}
	for i, raw := range urls {
		outcome := s.batchItem(ctx, session, raw, o)
		if outcome.Success {
			outcome.Metadata.BatchIndex = i + 1
			b.TotalSucceeded++
		} else {
			b.TotalFailed++
			logger.Warn("batch item failed", "index", i+1, "url", outcome.OriginalURL, "kind", outcome.Kind)
		}
		b.Results = append(b.Results, outcome)
	}

	logger.Info("batch finished", "requested", b.TotalRequested, "succeeded", b.TotalSucceeded, "failed", b.TotalFailed)
	return b, nil
}

func (s *Service) batchItem(ctx context.Context, session *capture.Session, raw string, o capture.Options) Outcome {
	now := time.Now()
	strategy := "automation"

	r, err := capture.NewRequest(raw, s.withDefaults(o))
	if err != nil {
		s.record(ctx, "", err, now)
		return s.failure(capture.Normalize(raw), err)
	}

	shot, err := session.Shoot(ctx, r)
	if err != nil {
		s.record(ctx, strategy, err, now)
		return s.failure(r.URL, err)
	}
	s.record(ctx, strategy, nil, now)

	return s.success(ctx, r.URL, shot, strategy)
}
