package mocksocrata

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atd-data-tech/socrata-metadata-pub/pkg/socrata"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
	Query  string
	// Authenticated is true when the request carried valid basic auth credentials.
	Authenticated bool
}

// Fixture is one seeded catalog asset.
type Fixture struct {
	Public   bool             `json:"public"`
	RowCount int64            `json:"row_count"`
	Asset    socrata.RawAsset `json:"asset"`
}

// Server implements a minimal Socrata surface: catalog search, SoQL count and dataset replace.
type Server struct {
	mu    sync.Mutex
	calls []Call

	username string
	password string
	appToken string

	assets []socrata.RawAsset
	public map[string]bool
	counts map[string]int64

	countFailures  map[string]int
	countDelay     time.Duration
	countInFlight  int
	countPeak      int
	countsAsNumber bool

	catalogFailure int
	replaceFailure int

	// tables stores the last replaced body per resource id.
	tables map[string][]byte
}

// New constructs an empty mock server.
func New() *Server {
	return &Server{
		public:        make(map[string]bool),
		counts:        make(map[string]int64),
		countFailures: make(map[string]int),
		tables:        make(map[string][]byte),
	}
}

// RequireBasicAuth sets the credentials that unlock private assets and SODA endpoints.
func (s *Server) RequireBasicAuth(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.password = password
}

// RequireAppToken enforces an X-App-Token header on SODA endpoints. Empty disables the check.
func (s *Server) RequireAppToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appToken = strings.TrimSpace(token)
}

// AddAsset seeds a catalog asset. Public assets show up in the anonymous view too.
func (s *Server) AddAsset(asset socrata.RawAsset, public bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = append(s.assets, asset)
	s.public[asset.Resource.ID] = public
}

// AddFixtures seeds assets and their row counts.
func (s *Server) AddFixtures(fixtures []Fixture) {
	for _, f := range fixtures {
		s.AddAsset(f.Asset, f.Public)
		s.SetRowCount(f.Asset.Resource.ID, f.RowCount)
	}
}

// LoadFixtures reads a JSON array of Fixture values.
func (s *Server) LoadFixtures(r io.Reader) error {
	var fixtures []Fixture
	if err := json.NewDecoder(r).Decode(&fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	s.AddFixtures(fixtures)
	return nil
}

func (s *Server) SetRowCount(resourceID string, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[resourceID] = n
}

// FailRowCount makes count queries for resourceID answer with status.
func (s *Server) FailRowCount(resourceID string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countFailures[resourceID] = status
}

// SetCountDelay delays every count response, useful to observe concurrency.
func (s *Server) SetCountDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countDelay = d
}

// CountsAsNumbers switches count responses from SODA 2.0 strings to numbers.
func (s *Server) CountsAsNumbers(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countsAsNumber = v
}

// FailCatalog makes catalog searches answer with status.
func (s *Server) FailCatalog(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalogFailure = status
}

// FailReplace makes replace calls answer with status.
func (s *Server) FailReplace(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceFailure = status
}

// Table returns the last body replaced into resourceID.
func (s *Server) Table(resourceID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.tables[resourceID]
	return b, ok
}

// PeakConcurrentCounts returns the highest number of simultaneous count queries seen.
func (s *Server) PeakConcurrentCounts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countPeak
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/catalog/v1", s.handleCatalog)
	mux.HandleFunc("/resource/", s.handleResource)
	return mux
}

func (s *Server) authenticated(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username == "" && s.password == "" {
		return ok
	}
	return ok && user == s.username && pass == s.password
}

func (s *Server) recordCall(r *http.Request, authenticated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Authenticated: authenticated,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	authed := s.authenticated(r)
	s.recordCall(r, authed)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, _, sent := r.BasicAuth(); sent && !authed {
		writeSODAError(w, http.StatusForbidden, "authentication_required", "invalid credentials")
		return
	}
	if strings.TrimSpace(r.URL.Query().Get("domains")) == "" {
		writeSODAError(w, http.StatusBadRequest, "invalid_request", "domains is required")
		return
	}

	s.mu.Lock()
	failure := s.catalogFailure
	results := make([]socrata.RawAsset, 0, len(s.assets))
	for _, a := range s.assets {
		if authed || s.public[a.Resource.ID] {
			results = append(results, a)
		}
	}
	s.mu.Unlock()

	if failure != 0 {
		writeSODAError(w, failure, "catalog_unavailable", "catalog search failed")
		return
	}
	total := len(results)
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(results) {
		results = results[:limit]
	}
	writeJSON(w, http.StatusOK, socrata.CatalogResponse{Results: results, ResultSetSize: total})
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	authed := s.authenticated(r)
	s.recordCall(r, authed)

	// /resource/{id}.json
	name := strings.TrimPrefix(r.URL.Path, "/resource/")
	id, ok := strings.CutSuffix(name, ".json")
	if !ok || id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if !authed {
		writeSODAError(w, http.StatusForbidden, "authentication_required", "credentials required")
		return
	}
	s.mu.Lock()
	token := s.appToken
	s.mu.Unlock()
	if token != "" && r.Header.Get("X-App-Token") != token {
		writeSODAError(w, http.StatusForbidden, "invalid_app_token", "app token mismatch")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleCount(w, r, id)
	case http.MethodPut:
		s.handleReplace(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request, id string) {
	if sel := r.URL.Query().Get("$select"); sel != "count(*) as count" {
		writeSODAError(w, http.StatusBadRequest, "query.soql.unsupported", fmt.Sprintf("unsupported $select %q", sel))
		return
	}

	s.mu.Lock()
	s.countInFlight++
	if s.countInFlight > s.countPeak {
		s.countPeak = s.countInFlight
	}
	delay := s.countDelay
	failure := s.countFailures[id]
	n, known := s.counts[id]
	asNumber := s.countsAsNumber
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.countInFlight--
		s.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if failure != 0 {
		writeSODAError(w, failure, "query.execution.failed", "count query failed")
		return
	}
	if !known {
		writeSODAError(w, http.StatusNotFound, "not_found", fmt.Sprintf("dataset %s not found", id))
		return
	}

	var count any = strconv.FormatInt(n, 10)
	if asNumber {
		count = n
	}
	writeJSON(w, http.StatusOK, []map[string]any{{"count": count}})
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request, id string) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(b, &rows); err != nil {
		writeSODAError(w, http.StatusBadRequest, "invalid_request", "body must be a JSON array")
		return
	}

	s.mu.Lock()
	failure := s.replaceFailure
	deleted := 0
	if prev, ok := s.tables[id]; ok {
		var prevRows []json.RawMessage
		if json.Unmarshal(prev, &prevRows) == nil {
			deleted = len(prevRows)
		}
	}
	if failure == 0 {
		s.tables[id] = b
	}
	s.mu.Unlock()

	if failure != 0 {
		writeSODAError(w, failure, "replace_failed", "replace rejected")
		return
	}
	writeJSON(w, http.StatusOK, socrata.ReplaceResult{RowsCreated: len(rows), RowsDeleted: deleted})
}

func writeSODAError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"code": code, "error": true, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
