package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/miradorstack/risk-client/internal/config"
	"github.com/miradorstack/risk-client/internal/models"
	"github.com/miradorstack/risk-client/internal/utils"
)

// Operation names used in RequestErrors and metrics labels.
const (
	OpPredict         = "predict"
	OpPredictAndStore = "predict_and_store"
	OpHistory         = "history"
	OpListRuns        = "list_runs"
	OpGetRun          = "get_run"
	OpCreateUser      = "create_user"
	OpListUsers       = "list_users"
	OpHealth          = "health"
	OpListModels      = "list_models"
)

// ScoringClient talks to the remote scoring and run-storage service. Each
// call makes exactly one HTTP request: no retries, no caching. It is safe for
// concurrent use and concurrent calls are independent of each other.
type ScoringClient struct {
	baseURL string
	paths   config.ScoringClientConfig
	timeout time.Duration
	http    *resty.Client
	newID   func() string
}

// NewScoringClient constructs a client targeting the configured scoring service.
func NewScoringClient(cfg config.ScoringClientConfig) *ScoringClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.UserHeader == "" {
		cfg.UserHeader = "X-User-ID"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &ScoringClient{
		baseURL: baseURL,
		paths:   cfg,
		timeout: timeout,
		http:    client,
		newID:   uuid.NewString,
	}
}

// Submit scores record. ModePersisted stores the run under identity and the
// result carries the server-issued run id; ModeEphemeral never does. A missing
// request id is filled with a fresh one; a present one is sent unchanged.
func (c *ScoringClient) Submit(ctx context.Context, record models.ClinicalRecord, mode models.Mode, identity string) (models.PredictionResult, error) {
	var op string
	switch mode {
	case models.ModeEphemeral:
		op = OpPredict
	case models.ModePersisted:
		op = OpPredictAndStore
	default:
		return models.PredictionResult{}, utils.NewRequestError(OpPredict, fmt.Sprintf("unsupported submission mode %s", mode), 0, nil)
	}
	if err := c.ready(op); err != nil {
		return models.PredictionResult{}, err
	}
	path := c.paths.PredictPath
	if mode == models.ModePersisted {
		path = c.paths.PredictAndStorePath
	}

	if record.RequestID == "" {
		record.RequestID = c.newID()
	}

	var result models.PredictionResult
	err := c.do(ctx, op, http.MethodPost, path, func(req *resty.Request) {
		req.SetHeader("Content-Type", "application/json").SetBody(record)
		if mode == models.ModePersisted && identity != "" {
			req.SetHeader(c.paths.UserHeader, identity)
		}
	}, decodeObject(&result))
	if err != nil {
		return models.PredictionResult{}, err
	}

	if result.PredictedLabel == "" || result.Probabilities == nil {
		return models.PredictionResult{}, utils.NewMalformedResponse(op, http.StatusOK, errors.New("missing predicted_label or probabilities"))
	}
	switch mode {
	case models.ModePersisted:
		if result.RunID == "" {
			return models.PredictionResult{}, utils.NewMalformedResponse(op, http.StatusOK, errors.New("missing run_id"))
		}
	case models.ModeEphemeral:
		result.RunID = ""
	}
	if result.RequestID == "" {
		result.RequestID = record.RequestID
	}
	return result, nil
}

// Health returns the scoring service health payload.
func (c *ScoringClient) Health(ctx context.Context) (models.ServiceHealth, error) {
	if err := c.ready(OpHealth); err != nil {
		return models.ServiceHealth{}, err
	}
	var health models.ServiceHealth
	if err := c.do(ctx, OpHealth, http.MethodGet, c.paths.HealthPath, nil, decodeObject(&health)); err != nil {
		return models.ServiceHealth{}, err
	}
	return health, nil
}

// ListModels returns the models loaded by the scoring service.
func (c *ScoringClient) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	if err := c.ready(OpListModels); err != nil {
		return nil, err
	}
	var list []models.ModelInfo
	if err := c.do(ctx, OpListModels, http.MethodGet, c.paths.ModelsPath, nil, decodeArray(&list)); err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.ModelInfo{}
	}
	return list, nil
}

func (c *ScoringClient) ready(op string) error {
	if c == nil {
		return utils.NewRequestError(op, "scoring client not initialised", 0, nil)
	}
	if c.baseURL == "" {
		return utils.NewRequestError(op, "scoring service base URL not configured", 0, nil)
	}
	return nil
}

// do performs one request and maps every failure to a *utils.RequestError.
func (c *ScoringClient) do(ctx context.Context, op, method, path string, configure func(*resty.Request), decode func([]byte) error) error {
	if path == "" {
		return utils.NewRequestError(op, fmt.Sprintf("no endpoint configured for %s", op), 0, nil)
	}

	req := c.http.R().SetContext(ctx)
	if configure != nil {
		configure(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return c.transportError(op, err)
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return utils.NewRequestError(op, errorMessage(resp.Body(), status), status, nil)
	}
	if decode == nil {
		return nil
	}
	if err := decode(resp.Body()); err != nil {
		return utils.NewMalformedResponse(op, status, err)
	}
	return nil
}

func (c *ScoringClient) transportError(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return utils.NewRequestError(op, fmt.Sprintf("request timed out after %s", c.timeout), 0, err)
	case errors.Is(err, context.Canceled):
		return utils.NewRequestError(op, "request cancelled", 0, err)
	}
	return utils.NewRequestError(op, fmt.Sprintf("scoring service unreachable: %v", err), 0, err)
}

type errorEnvelope struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// errorMessage prefers the service's structured error message and falls back
// to a status-derived one.
func errorMessage(body []byte, status int) string {
	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil && env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return fmt.Sprintf("request failed with status %d", status)
}

// decodeObject requires a JSON object body.
func decodeObject(out any) func([]byte) error {
	return func(body []byte) error {
		trimmed := strings.TrimSpace(string(body))
		if !strings.HasPrefix(trimmed, "{") {
			return fmt.Errorf("expected JSON object, got %q", preview(trimmed))
		}
		return json.Unmarshal(body, out)
	}
}

// decodeArray requires a JSON array body; null decodes to an empty result.
func decodeArray(out any) func([]byte) error {
	return func(body []byte) error {
		trimmed := strings.TrimSpace(string(body))
		if trimmed == "null" {
			return nil
		}
		if !strings.HasPrefix(trimmed, "[") {
			return fmt.Errorf("expected JSON array, got %q", preview(trimmed))
		}
		return json.Unmarshal(body, out)
	}
}

func preview(s string) string {
	const max = 64
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
