package repo

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/miradorstack/risk-client/internal/models"
	"github.com/miradorstack/risk-client/internal/utils"
)

// FetchHistory returns the runs stored for userID in the order the service
// reports them. limit and offset are forwarded verbatim. An empty history
// yields an empty, non-nil slice.
func (c *ScoringClient) FetchHistory(ctx context.Context, userID string, limit, offset int) ([]models.RunSummary, error) {
	if err := c.ready(OpHistory); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, utils.NewRequestError(OpHistory, "user id is required to fetch history", 0, nil)
	}

	var runs []models.RunSummary
	err := c.do(ctx, OpHistory, http.MethodGet, c.paths.UserRunsPath, func(req *resty.Request) {
		req.SetPathParam("userId", userID).
			SetQueryParam("limit", strconv.Itoa(limit)).
			SetQueryParam("offset", strconv.Itoa(offset))
	}, decodeArray(&runs))
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	return runs, nil
}

// ListRuns returns stored runs across users, optionally filtered.
func (c *ScoringClient) ListRuns(ctx context.Context, filter models.RunFilter) ([]models.RunSummary, error) {
	if err := c.ready(OpListRuns); err != nil {
		return nil, err
	}

	var runs []models.RunSummary
	err := c.do(ctx, OpListRuns, http.MethodGet, c.paths.RunsPath, func(req *resty.Request) {
		req.SetQueryParam("limit", strconv.Itoa(filter.Limit)).
			SetQueryParam("offset", strconv.Itoa(filter.Offset))
		if filter.Disease != "" {
			req.SetQueryParam("disease", filter.Disease)
		}
		if filter.UserID != "" {
			req.SetQueryParam("user_id", filter.UserID)
		}
	}, decodeArray(&runs))
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	return runs, nil
}

// GetRun returns one stored run including its request payload.
func (c *ScoringClient) GetRun(ctx context.Context, runID string) (models.RunDetail, error) {
	if err := c.ready(OpGetRun); err != nil {
		return models.RunDetail{}, err
	}
	if runID == "" {
		return models.RunDetail{}, utils.NewRequestError(OpGetRun, "run id is required", 0, nil)
	}

	var detail models.RunDetail
	path := strings.TrimRight(c.paths.RunsPath, "/") + "/{runId}"
	err := c.do(ctx, OpGetRun, http.MethodGet, path, func(req *resty.Request) {
		req.SetPathParam("runId", runID)
	}, decodeObject(&detail))
	if err != nil {
		return models.RunDetail{}, err
	}
	return detail, nil
}

// CreateUser registers userID with the service. Creating an existing user is
// not an error on the service side.
func (c *ScoringClient) CreateUser(ctx context.Context, userID string) (models.UserRecord, error) {
	if err := c.ready(OpCreateUser); err != nil {
		return models.UserRecord{}, err
	}

	var user models.UserRecord
	err := c.do(ctx, OpCreateUser, http.MethodPost, c.paths.UsersPath, func(req *resty.Request) {
		req.SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"user_id": userID})
	}, decodeObject(&user))
	if err != nil {
		return models.UserRecord{}, err
	}
	return user, nil
}

// ListUsers returns registered users, newest first.
func (c *ScoringClient) ListUsers(ctx context.Context, limit, offset int) ([]models.UserRecord, error) {
	if err := c.ready(OpListUsers); err != nil {
		return nil, err
	}

	var users []models.UserRecord
	err := c.do(ctx, OpListUsers, http.MethodGet, c.paths.UsersPath, func(req *resty.Request) {
		req.SetQueryParam("limit", strconv.Itoa(limit)).
			SetQueryParam("offset", strconv.Itoa(offset))
	}, decodeArray(&users))
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.UserRecord{}
	}
	return users, nil
}
