package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miradorstack/risk-client/internal/models"
	"github.com/miradorstack/risk-client/internal/utils"
)

func sampleRecord() models.ClinicalRecord {
	return models.ClinicalRecord{
		AgeYears:             45,
		SexAtBirth:           models.SexMale,
		WaistCircumferenceCM: 95,
		SystolicBPmmHg:       128,
		DiastolicBPmmHg:      82,
		FastingGlucoseMgDL:   110,
		TriglyceridesMgDL:    160,
		HDLMgDL:              45,
	}
}

const ephemeralBody = `{"request_id":"%s","disease":"t2d","predicted_label":"prediabetes",
"probabilities":{"normal":0.31,"prediabetes":0.52,"diabetes":0.17},
"suggested_next_steps":["Repeat fasting glucose"],"notes":["Screening aid only."]}`

func TestSubmitEphemeral(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || req.URL.Path != "/v1/predict/t2d" {
			t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
		}
		if req.Header.Get("X-User-ID") != "" {
			t.Fatalf("ephemeral submissions must not carry an identity")
		}
		body, _ := io.ReadAll(req.Body)
		var sent map[string]any
		if err := json.Unmarshal(body, &sent); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if sent["request_id"] != "generated-id" {
			t.Fatalf("expected generated request id, got %v", sent["request_id"])
		}
		if sent["fasting_glucose_mg_dL"] != 110.0 || sent["sex_at_birth"] != "male" {
			t.Fatalf("unexpected wire body %s", body)
		}
		if _, ok := sent["bmi"]; ok {
			t.Fatalf("absent optional fields must be omitted: %s", body)
		}
		return jsonResponse(http.StatusOK, `{"request_id":"generated-id","run_id":"stray","disease":"t2d","predicted_label":"normal","probabilities":{"normal":0.9,"prediabetes":0.1,"diabetes":0.1}}`), nil
	})

	result, err := client.Submit(context.Background(), sampleRecord(), models.ModeEphemeral, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RunID != "" || result.Persisted() {
		t.Fatalf("ephemeral result must not carry a run id, got %q", result.RunID)
	}
	if result.PredictedLabel != "normal" || result.RequestID != "generated-id" {
		t.Fatalf("unexpected result %+v", result)
	}
	if sum := result.Probabilities["normal"] + result.Probabilities["prediabetes"] + result.Probabilities["diabetes"]; sum < 1.09 || sum > 1.11 {
		t.Fatalf("probabilities must pass through unnormalised, sum=%v", sum)
	}
}

func TestSubmitKeepsCallerRequestID(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		var sent models.ClinicalRecord
		if err := json.NewDecoder(req.Body).Decode(&sent); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if sent.RequestID != "req-7" {
			t.Fatalf("expected caller request id, got %q", sent.RequestID)
		}
		return jsonResponse(http.StatusOK, fmt.Sprintf(ephemeralBody, "req-7")), nil
	})
	rec := sampleRecord()
	rec.RequestID = "req-7"
	result, err := client.Submit(context.Background(), rec, models.ModeEphemeral, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RequestID != "req-7" || len(result.SuggestedNextSteps) != 1 || len(result.Notes) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSubmitPersisted(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v1/predict-and-store/t2d" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		if got := req.Header.Get("X-User-ID"); got != "demo-user" {
			t.Fatalf("expected identity header, got %q", got)
		}
		return jsonResponse(http.StatusOK, `{"run_id":"run-1","disease":"t2d","predicted_label":"diabetes","probabilities":{"normal":0.1,"prediabetes":0.2,"diabetes":0.7}}`), nil
	})

	result, err := client.Submit(context.Background(), sampleRecord(), models.ModePersisted, "demo-user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RunID != "run-1" || !result.Persisted() {
		t.Fatalf("expected run id, got %+v", result)
	}
	if result.RequestID != "generated-id" {
		t.Fatalf("expected request id backfilled from the request, got %q", result.RequestID)
	}
}

func TestSubmitPersistedWithoutRunIDIsMalformed(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, fmt.Sprintf(ephemeralBody, "x")), nil
	})
	_, err := client.Submit(context.Background(), sampleRecord(), models.ModePersisted, "demo-user")
	if !errors.Is(err, utils.ErrMalformedResponse) || !errors.Is(err, utils.ErrRequestFailed) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestSubmitErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		message   string
		malformed bool
	}{
		{name: "structured error", status: http.StatusInternalServerError, body: `{"error":{"code":"internal","message":"boom"}}`, message: "boom"},
		{name: "unstructured error", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, message: "request failed with status 502"},
		{name: "empty error body", status: http.StatusServiceUnavailable, body: ``, message: "request failed with status 503"},
		{name: "validation rejection", status: http.StatusUnprocessableEntity, body: `{"error":{"code":"validation_error","message":"Invalid request"}}`, message: "Invalid request"},
		{name: "html success", status: http.StatusOK, body: `<html>ok</html>`, malformed: true},
		{name: "array success", status: http.StatusOK, body: `[]`, malformed: true},
		{name: "missing label", status: http.StatusOK, body: `{"disease":"t2d","probabilities":{}}`, malformed: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			})
			_, err := client.Submit(context.Background(), sampleRecord(), models.ModeEphemeral, "")
			if !errors.Is(err, utils.ErrRequestFailed) {
				t.Fatalf("expected request failure, got %v", err)
			}
			if errors.Is(err, utils.ErrMalformedResponse) != tc.malformed {
				t.Fatalf("malformed=%v expected %v: %v", errors.Is(err, utils.ErrMalformedResponse), tc.malformed, err)
			}
			if tc.message != "" && err.Error() != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, err.Error())
			}
			var reqErr *utils.RequestError
			if !errors.As(err, &reqErr) || reqErr.StatusCode != tc.status {
				t.Fatalf("expected status %d on error, got %+v", tc.status, reqErr)
			}
		})
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	_, err := client.Submit(context.Background(), sampleRecord(), models.ModePersisted, "demo-user")
	if !errors.Is(err, utils.ErrRequestFailed) || errors.Is(err, utils.ErrMalformedResponse) {
		t.Fatalf("expected plain request failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected transport cause in message, got %q", err.Error())
	}
}

func TestSubmitTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testScoringConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewScoringClient(cfg)

	start := time.Now()
	_, err := client.Submit(context.Background(), sampleRecord(), models.ModeEphemeral, "")
	if !errors.Is(err, utils.ErrRequestFailed) {
		t.Fatalf("expected request failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout message, got %q", err.Error())
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not honoured, took %s", elapsed)
	}
}

func TestSubmitSingleAttempt(t *testing.T) {
	var hits int32
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&hits, 1)
		return jsonResponse(http.StatusServiceUnavailable, `{"error":{"message":"unavailable"}}`), nil
	})
	if _, err := client.Submit(context.Background(), sampleRecord(), models.ModeEphemeral, ""); err == nil {
		t.Fatalf("expected error")
	}
	if hits != 1 {
		t.Fatalf("expected exactly one outbound request, got %d", hits)
	}
}

func TestSubmitConcurrentCallsAreIndependent(t *testing.T) {
	var hits int32
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&hits, 1)
		var sent models.ClinicalRecord
		if err := json.NewDecoder(req.Body).Decode(&sent); err != nil {
			return nil, err
		}
		return jsonResponse(http.StatusOK, fmt.Sprintf(ephemeralBody, sent.RequestID)), nil
	})

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := sampleRecord()
			rec.RequestID = fmt.Sprintf("req-%d", i)
			res, err := client.Submit(context.Background(), rec, models.ModeEphemeral, "")
			if err != nil {
				errs <- err
				return
			}
			if res.RequestID != rec.RequestID {
				errs <- fmt.Errorf("result for %s carried %s", rec.RequestID, res.RequestID)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent submit: %v", err)
	}
	if hits != n {
		t.Fatalf("identical submissions must not be coalesced, got %d requests", hits)
	}
}

func TestSubmitUnconfiguredClient(t *testing.T) {
	var client *ScoringClient
	for _, mode := range []models.Mode{models.ModeEphemeral, models.ModePersisted} {
		if _, err := client.Submit(context.Background(), sampleRecord(), mode, "user-1"); !errors.Is(err, utils.ErrRequestFailed) {
			t.Fatalf("nil client should fail as a request error in %s mode, got %v", mode, err)
		}
	}
	client = NewScoringClient(testScoringConfig(""))
	if _, err := client.Submit(context.Background(), sampleRecord(), models.ModeEphemeral, ""); !errors.Is(err, utils.ErrRequestFailed) {
		t.Fatalf("missing base url should fail as a request error, got %v", err)
	}
}

func TestNilClientGuardsEveryOperation(t *testing.T) {
	var client *ScoringClient
	ctx := context.Background()
	calls := map[string]func() error{
		OpHistory:    func() error { _, err := client.FetchHistory(ctx, "u", 10, 0); return err },
		OpListRuns:   func() error { _, err := client.ListRuns(ctx, models.RunFilter{}); return err },
		OpGetRun:     func() error { _, err := client.GetRun(ctx, "r"); return err },
		OpCreateUser: func() error { _, err := client.CreateUser(ctx, "u"); return err },
		OpListUsers:  func() error { _, err := client.ListUsers(ctx, 10, 0); return err },
		OpHealth:     func() error { _, err := client.Health(ctx); return err },
		OpListModels: func() error { _, err := client.ListModels(ctx); return err },
	}
	for op, call := range calls {
		err := call()
		var reqErr *utils.RequestError
		if !errors.As(err, &reqErr) || reqErr.Op != op {
			t.Fatalf("%s: expected request error for nil client, got %v", op, err)
		}
	}
}

func TestHealthAndModels(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/v1/health":
			return jsonResponse(http.StatusOK, `{"status":"ok","models_loaded":["t2d"]}`), nil
		case "/v1/models":
			return jsonResponse(http.StatusOK, `[{"disease":"t2d","cycle":"2017-2018","model_path":"models/t2d.joblib","num_features":21}]`), nil
		}
		t.Fatalf("unexpected path %s", req.URL.Path)
		return nil, nil
	})

	health, err := client.Health(context.Background())
	if err != nil || health.Status != "ok" || len(health.ModelsLoaded) != 1 {
		t.Fatalf("unexpected health %+v err=%v", health, err)
	}
	list, err := client.ListModels(context.Background())
	if err != nil || len(list) != 1 || list[0].NumFeatures == nil || *list[0].NumFeatures != 21 {
		t.Fatalf("unexpected models %+v err=%v", list, err)
	}
}
