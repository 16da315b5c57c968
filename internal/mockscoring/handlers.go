package mockscoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/miradorstack/risk-client/internal/models"
	"github.com/miradorstack/risk-client/internal/normalizer"
)

const (
	disease    = "t2d"
	userHeader = "X-User-ID"
)

type fieldIssue struct {
	Loc []string `json:"loc"`
	Msg string   `json:"msg"`
}

type errorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []fieldIssue `json:"details,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeError(c echo.Context, status int, code, message string, details []fieldIssue) error {
	return c.JSON(status, errorBody{Error: errorDetail{Code: code, Message: message, Details: details}})
}

func validationError(c echo.Context, details []fieldIssue) error {
	return writeError(c, http.StatusUnprocessableEntity, "validation_error", "Invalid request", details)
}

// registerRoutes mounts the scoring API on the supplied group.
func (s *Server) registerRoutes(g *echo.Group) {
	g.GET("/health", s.handleHealth)
	g.GET("/models", s.handleModels)
	g.POST("/predict/t2d", s.handlePredict)
	g.POST("/predict-and-store/t2d", s.handlePredictAndStore)
	g.GET("/runs", s.handleListRuns)
	g.GET("/runs/:runId", s.handleGetRun)
	g.POST("/users", s.handleCreateUser)
	g.GET("/users", s.handleListUsers)
	g.GET("/users/:userId/runs", s.handleUserRuns)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.ServiceHealth{Status: "ok", ModelsLoaded: []string{disease}})
}

func (s *Server) handleModels(c echo.Context) error {
	features := 0
	for _, f := range normalizer.Fields() {
		if f.Kind != normalizer.KindText {
			features++
		}
	}
	return c.JSON(http.StatusOK, []models.ModelInfo{{
		Disease:     disease,
		Cycle:       s.cfg.ModelCycle,
		ModelPath:   "mock://heuristic",
		NumFeatures: &features,
	}})
}

func (s *Server) handlePredict(c echo.Context) error {
	return s.predict(c, false)
}

func (s *Server) handlePredictAndStore(c echo.Context) error {
	return s.predict(c, true)
}

func (s *Server) predict(c echo.Context, store bool) error {
	start := s.now()

	rec, issues, err := decodeRecord(c.Request().Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return writeError(c, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large", nil)
		}
		return err
	}
	if len(issues) > 0 {
		return validationError(c, issues)
	}

	probs, label := score(rec)
	result := models.PredictionResult{
		RequestID:          rec.RequestID,
		Disease:            disease,
		PredictedLabel:     label,
		Probabilities:      probs,
		SuggestedNextSteps: nextSteps(probs[KeyDiabetes], probs[KeyPrediabetes], rec),
		Notes: []string{
			fmt.Sprintf("Heuristic stand-in for the t2d model (NHANES %s); not a trained classifier.", s.cfg.ModelCycle),
			"This output is for research/education; not a medical diagnosis.",
		},
	}

	if store {
		var owner *string
		if userID := strings.TrimSpace(c.Request().Header.Get(userHeader)); userID != "" {
			s.store.EnsureUser(userID, s.now())
			owner = &userID
		}
		payload, err := storedPayload(rec)
		if err != nil {
			return err
		}
		result.RunID = s.newID()
		s.store.AddRun(models.RunSummary{
			RunID:          result.RunID,
			CreatedAt:      s.now().UTC().Format(serverTimeLayout),
			Disease:        disease,
			PredictedLabel: label,
			Probabilities:  probs,
			ModelVersion:   "nhanes_" + s.cfg.ModelCycle,
			UserID:         owner,
		}, payload, float64(s.now().Sub(start))/float64(time.Millisecond))
	}

	return c.JSON(http.StatusOK, result)
}

// decodeRecord validates a predict body the way the production schema does:
// required numerics present, every numeric within its plausible range and
// categorical values within their closed sets.
func decodeRecord(body io.Reader) (models.ClinicalRecord, []fieldIssue, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return models.ClinicalRecord{}, nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return models.ClinicalRecord{}, []fieldIssue{{Loc: []string{"body"}, Msg: "expected a JSON object"}}, nil
	}

	var issues []fieldIssue
	for _, f := range normalizer.Fields() {
		value, present := raw[f.Name]
		missing := !present || string(value) == "null"
		switch f.Kind {
		case normalizer.KindNumeric:
			if missing {
				if f.Required {
					issues = append(issues, fieldIssue{Loc: []string{"body", f.Name}, Msg: "field required"})
				}
				continue
			}
			var v float64
			if err := json.Unmarshal(value, &v); err != nil {
				issues = append(issues, fieldIssue{Loc: []string{"body", f.Name}, Msg: "value is not a valid number"})
				continue
			}
			if v < f.Min || v > f.Max {
				issues = append(issues, fieldIssue{
					Loc: []string{"body", f.Name},
					Msg: fmt.Sprintf("value must be between %s and %s", strconv.FormatFloat(f.Min, 'f', -1, 64), strconv.FormatFloat(f.Max, 'f', -1, 64)),
				})
			}
		case normalizer.KindCategorical:
			if missing {
				if f.Name == models.FieldSexAtBirth {
					issues = append(issues, fieldIssue{Loc: []string{"body", f.Name}, Msg: "field required"})
				}
				continue
			}
			var text string
			if err := json.Unmarshal(value, &text); err != nil || !contains(f.Choices, text) {
				issues = append(issues, fieldIssue{Loc: []string{"body", f.Name}, Msg: "value must be one of " + strings.Join(f.Choices, ", ")})
			}
		}
	}
	if len(issues) > 0 {
		return models.ClinicalRecord{}, issues, nil
	}

	var rec models.ClinicalRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.ClinicalRecord{}, []fieldIssue{{Loc: []string{"body"}, Msg: err.Error()}}, nil
	}
	return rec, nil, nil
}

func contains(choices []string, v string) bool {
	for _, c := range choices {
		if c == v {
			return true
		}
	}
	return false
}

// storedPayload is the request as stored with the run, derived fields included.
func storedPayload(rec models.ClinicalRecord) (json.RawMessage, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	d := normalizer.Derive(rec)
	if d.TGToHDLRatio != nil {
		payload["tg_to_hdl_ratio"] = *d.TGToHDLRatio
	}
	if d.NonHDLCholMgDL != nil {
		payload["non_hdl_chol_mg_dL"] = *d.NonHDLCholMgDL
	}
	if d.BMI != nil {
		payload[models.FieldBMI] = *d.BMI
	}
	return json.Marshal(payload)
}

// paging reads limit and offset, clamping limit to 1..200 and offset to >= 0.
func paging(c echo.Context) (int, int, []fieldIssue) {
	var issues []fieldIssue
	read := func(name string, def int) int {
		v := c.QueryParam(name)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			issues = append(issues, fieldIssue{Loc: []string{"query", name}, Msg: "value is not a valid integer"})
			return def
		}
		return n
	}
	limit := read("limit", 50)
	offset := read("offset", 0)
	limit = max(1, min(limit, 200))
	offset = max(0, offset)
	return limit, offset, issues
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit, offset, issues := paging(c)
	if len(issues) > 0 {
		return validationError(c, issues)
	}
	return c.JSON(http.StatusOK, s.store.Runs(c.QueryParam("disease"), c.QueryParam("user_id"), limit, offset))
}

func (s *Server) handleUserRuns(c echo.Context) error {
	limit, offset, issues := paging(c)
	if len(issues) > 0 {
		return validationError(c, issues)
	}
	return c.JSON(http.StatusOK, s.store.Runs("", c.Param("userId"), limit, offset))
}

func (s *Server) handleGetRun(c echo.Context) error {
	runID := c.Param("runId")
	detail, ok := s.store.Run(runID)
	if !ok {
		return writeError(c, http.StatusNotFound, "http_error", "Run not found: "+runID, nil)
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) handleCreateUser(c echo.Context) error {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return validationError(c, []fieldIssue{{Loc: []string{"body"}, Msg: "expected a JSON object"}})
	}
	userID := strings.TrimSpace(body.UserID)
	if userID == "" || len(userID) > 100 {
		return validationError(c, []fieldIssue{{Loc: []string{"body", "user_id"}, Msg: "length must be between 1 and 100"}})
	}
	return c.JSON(http.StatusOK, s.store.EnsureUser(userID, s.now()))
}

func (s *Server) handleListUsers(c echo.Context) error {
	limit, offset, issues := paging(c)
	if len(issues) > 0 {
		return validationError(c, issues)
	}
	return c.JSON(http.StatusOK, s.store.Users(limit, offset))
}
