package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/risk-client/internal/metrics"
	"github.com/miradorstack/risk-client/internal/models"
	"github.com/miradorstack/risk-client/internal/normalizer"
	"github.com/miradorstack/risk-client/internal/repo"
	"github.com/miradorstack/risk-client/internal/utils"
)

// ScoringAPI defines the remote operations required by the risk service.
type ScoringAPI interface {
	Submit(ctx context.Context, record models.ClinicalRecord, mode models.Mode, identity string) (models.PredictionResult, error)
	FetchHistory(ctx context.Context, userID string, limit, offset int) ([]models.RunSummary, error)
	ListRuns(ctx context.Context, filter models.RunFilter) ([]models.RunSummary, error)
	GetRun(ctx context.Context, runID string) (models.RunDetail, error)
	CreateUser(ctx context.Context, userID string) (models.UserRecord, error)
	ListUsers(ctx context.Context, limit, offset int) ([]models.UserRecord, error)
	Health(ctx context.Context) (models.ServiceHealth, error)
	ListModels(ctx context.Context) ([]models.ModelInfo, error)
}

// IdentitySource yields the user identifier attached to persisted runs.
type IdentitySource interface {
	Get(ctx context.Context) (string, error)
}

// Submission is one normalized input together with its scoring outcome.
type Submission struct {
	Sequence   uint64
	Record     models.ClinicalRecord
	Advisories []normalizer.Advisory
	Derived    models.DerivedMeasures
	Result     models.PredictionResult
}

// BatchItem is the outcome of one input of PredictBatch.
type BatchItem struct {
	Submission Submission
	Err        error
}

// RiskService is the caller-side facade over normalization, identity and the
// scoring client. It owns logging, metrics and latest-wins result tracking.
type RiskService struct {
	logger    *slog.Logger
	scorer    ScoringAPI
	identity  IdentitySource
	latencies *utils.LatencyTracker
	pageSize  int

	seq    atomic.Uint64
	latest ResultSlot
}

// NewRiskService constructs the risk service facade.
func NewRiskService(logger *slog.Logger, scorer ScoringAPI, identity IdentitySource, pageSize int) *RiskService {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return &RiskService{
		logger:    logger,
		scorer:    scorer,
		identity:  identity,
		latencies: utils.NewLatencyTracker(1024),
		pageSize:  pageSize,
	}
}

// Predict normalizes raw, scores it in the given mode and offers the result
// to the latest-wins slot. Validation failures never reach the network.
func (s *RiskService) Predict(ctx context.Context, raw map[string]string, mode models.Mode) (Submission, error) {
	sub := Submission{Sequence: s.seq.Add(1)}
	if s.scorer == nil {
		return sub, errors.New("scoring client not configured")
	}

	rec, err := normalizer.Normalize(raw)
	if err != nil {
		metrics.ObserveValidationFailure()
		s.logger.Warn("submission rejected by validation", slog.String("mode", mode.String()), slog.Any("error", err))
		return sub, err
	}
	sub.Record = rec
	sub.Advisories = normalizer.Advisories(raw, rec)
	sub.Derived = normalizer.Derive(rec)

	var userID string
	if mode == models.ModePersisted {
		userID, err = s.currentUser(ctx)
		if err != nil {
			return sub, err
		}
	}

	op := repo.OpPredict
	if mode == models.ModePersisted {
		op = repo.OpPredictAndStore
	}

	start := time.Now()
	result, err := s.scorer.Submit(ctx, rec, mode, userID)
	s.observe(op, time.Since(start), err,
		slog.String("mode", mode.String()),
		slog.String("request_id", firstNonEmpty(result.RequestID, rec.RequestID)),
		slog.String("run_id", result.RunID),
		slog.String("user_id", userID),
	)
	if err != nil {
		return sub, err
	}

	sub.Result = result
	s.latest.Offer(sub)
	return sub, nil
}

// Latest returns the newest successful submission seen by Predict.
func (s *RiskService) Latest() (Submission, bool) {
	return s.latest.Load()
}

// PredictBatch submits every raw input concurrently, at most concurrency at
// a time. Items are returned in input order; one failure does not stop the
// others and identical inputs are submitted independently.
func (s *RiskService) PredictBatch(ctx context.Context, raws []map[string]string, mode models.Mode, concurrency int) []BatchItem {
	items := make([]BatchItem, len(raws))
	if concurrency <= 0 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, raw := range raws {
		g.Go(func() error {
			sub, err := s.Predict(ctx, raw, mode)
			items[i] = BatchItem{Submission: sub, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	s.logger.Info("batch completed", slog.Int("submitted", len(items)), slog.Int("failed", failed), slog.String("mode", mode.String()))
	return items
}

// History returns the current identity's stored runs. A non-positive limit
// uses the configured page size.
func (s *RiskService) History(ctx context.Context, limit, offset int) ([]models.RunSummary, error) {
	if s.scorer == nil {
		return nil, errors.New("scoring client not configured")
	}
	userID, err := s.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.pageSize
	}

	start := time.Now()
	runs, err := s.scorer.FetchHistory(ctx, userID, limit, offset)
	s.observe(repo.OpHistory, time.Since(start), err, slog.String("user_id", userID), slog.Int("runs", len(runs)))
	return runs, err
}

// ListRuns lists stored runs across users.
func (s *RiskService) ListRuns(ctx context.Context, filter models.RunFilter) ([]models.RunSummary, error) {
	if s.scorer == nil {
		return nil, errors.New("scoring client not configured")
	}
	if filter.Limit <= 0 {
		filter.Limit = s.pageSize
	}
	start := time.Now()
	runs, err := s.scorer.ListRuns(ctx, filter)
	s.observe(repo.OpListRuns, time.Since(start), err, slog.Int("runs", len(runs)))
	return runs, err
}

// GetRun fetches one stored run.
func (s *RiskService) GetRun(ctx context.Context, runID string) (models.RunDetail, error) {
	if s.scorer == nil {
		return models.RunDetail{}, errors.New("scoring client not configured")
	}
	start := time.Now()
	detail, err := s.scorer.GetRun(ctx, runID)
	s.observe(repo.OpGetRun, time.Since(start), err, slog.String("run_id", runID))
	return detail, err
}

// CreateUser registers a user with the run store.
func (s *RiskService) CreateUser(ctx context.Context, userID string) (models.UserRecord, error) {
	if s.scorer == nil {
		return models.UserRecord{}, errors.New("scoring client not configured")
	}
	start := time.Now()
	user, err := s.scorer.CreateUser(ctx, userID)
	s.observe(repo.OpCreateUser, time.Since(start), err, slog.String("user_id", userID))
	return user, err
}

// ListUsers lists users known to the run store.
func (s *RiskService) ListUsers(ctx context.Context, limit, offset int) ([]models.UserRecord, error) {
	if s.scorer == nil {
		return nil, errors.New("scoring client not configured")
	}
	if limit <= 0 {
		limit = s.pageSize
	}
	start := time.Now()
	users, err := s.scorer.ListUsers(ctx, limit, offset)
	s.observe(repo.OpListUsers, time.Since(start), err, slog.Int("users", len(users)))
	return users, err
}

// Health reports the scoring service health.
func (s *RiskService) Health(ctx context.Context) (models.ServiceHealth, error) {
	if s.scorer == nil {
		return models.ServiceHealth{}, errors.New("scoring client not configured")
	}
	start := time.Now()
	health, err := s.scorer.Health(ctx)
	s.observe(repo.OpHealth, time.Since(start), err)
	return health, err
}

// ListModels lists the models loaded by the scoring service.
func (s *RiskService) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	if s.scorer == nil {
		return nil, errors.New("scoring client not configured")
	}
	start := time.Now()
	list, err := s.scorer.ListModels(ctx)
	s.observe(repo.OpListModels, time.Since(start), err)
	return list, err
}

// LatencyP95 returns the current p95 latency of op.
func (s *RiskService) LatencyP95(op string) time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(op, 95)
}

func (s *RiskService) currentUser(ctx context.Context) (string, error) {
	if s.identity == nil {
		return "", errors.New("identity store not configured")
	}
	userID, err := s.identity.Get(ctx)
	if err != nil {
		s.logger.Error("identity lookup failed", slog.Any("error", err))
		return "", fmt.Errorf("resolve identity: %w", err)
	}
	return userID, nil
}

func (s *RiskService) observe(op string, duration time.Duration, err error, attrs ...slog.Attr) {
	args := make([]any, 0, len(attrs)+3)
	args = append(args, slog.String("operation", op), slog.Duration("duration", duration))
	for _, a := range attrs {
		args = append(args, a)
	}

	if err != nil {
		metrics.ObserveRequest(op, duration, metrics.OutcomeError)
		s.logger.Error("scoring service call failed", append(args, slog.Any("error", err))...)
		return
	}
	metrics.ObserveRequest(op, duration, metrics.OutcomeSuccess)
	s.latencies.Observe(op, duration)
	s.logger.Debug("scoring service call completed", args...)
	if count := s.latencies.Count(op); count >= 20 && count%20 == 0 {
		s.logger.Info("scoring latency", slog.String("operation", op), slog.Duration("p95", s.latencies.Percentile(op, 95)), slog.Int("samples", count))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
