package mockscoring

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/miradorstack/risk-client/internal/models"
)

// serverTimeLayout mirrors the naive timestamps written by the production run store.
const serverTimeLayout = "2006-01-02 15:04:05.000000"

type storedRun struct {
	summary   models.RunSummary
	payload   json.RawMessage
	latencyMS float64
}

// Store keeps runs and users in memory, newest first. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	runs  []storedRun
	users map[string]models.UserRecord
	order []string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{users: make(map[string]models.UserRecord)}
}

// AddRun records a run at the front of the listing.
func (s *Store) AddRun(summary models.RunSummary, payload json.RawMessage, latencyMS float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append([]storedRun{{summary: summary, payload: payload, latencyMS: latencyMS}}, s.runs...)
}

// Runs lists runs newest first, optionally filtered by disease and user.
func (s *Store) Runs(disease, userID string, limit, offset int) []models.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.RunSummary{}
	skipped := 0
	for _, r := range s.runs {
		if disease != "" && r.summary.Disease != disease {
			continue
		}
		if userID != "" && (r.summary.UserID == nil || *r.summary.UserID != userID) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, r.summary)
	}
	return out
}

// Run returns one stored run.
func (s *Store) Run(runID string) (models.RunDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if r.summary.RunID == runID {
			latency := r.latencyMS
			return models.RunDetail{RunSummary: r.summary, RequestPayload: r.payload, LatencyMS: &latency}, true
		}
	}
	return models.RunDetail{}, false
}

// EnsureUser returns the existing user or creates it at now.
func (s *Store) EnsureUser(userID string, now time.Time) models.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u
	}
	rec := models.UserRecord{UserID: userID, CreatedAt: now.UTC().Format(serverTimeLayout)}
	s.users[userID] = rec
	s.order = append([]string{userID}, s.order...)
	return rec
}

// Users lists users newest first.
func (s *Store) Users(limit, offset int) []models.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.UserRecord{}
	for i := offset; i < len(s.order) && len(out) < limit; i++ {
		out = append(out, s.users[s.order[i]])
	}
	return out
}
