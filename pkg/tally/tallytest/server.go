// Package tallytest provides an in-process fake of the remote tally gateway
// for tests.
package tallytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

// Response is a canned gateway reply
type Response struct {
	Status int
	Body   interface{}
}

// OK is the plain success reply
var OK = Response{Status: http.StatusOK, Body: map[string]interface{}{"ok": true}}

// Reject builds a refusal with a message
func Reject(status int, message string) Response {
	return Response{Status: status, Body: map[string]interface{}{"ok": false, "message": message}}
}

// Server is a scripted tally gateway. Zero-value handlers answer OK.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	verify  func(pollID, token string) Response
	vote    func(p models.SubmissionPayload) Response
	status  func() Response
	results func(pollID string) Response

	Verifications []string
	Votes         []models.SubmissionPayload
	ResultsCalls  int
}

// NewServer starts a fake gateway
func NewServer() *Server {
	s := &Server{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /verify", s.handleVerify)
	mux.HandleFunc("POST /vote", s.handleVote)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /results/full", s.handleResults)
	s.Server = httptest.NewServer(mux)
	return s
}

// OnVerify scripts the /verify reply
func (s *Server) OnVerify(fn func(pollID, token string) Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verify = fn
}

// OnVote scripts the /vote reply
func (s *Server) OnVote(fn func(p models.SubmissionPayload) Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vote = fn
}

// OnStatus scripts the /status reply
func (s *Server) OnStatus(fn func() Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = fn
}

// OnResults scripts the /results/full reply
func (s *Server) OnResults(fn func(pollID string) Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = fn
}

// StatusResponse builds a /status reply
func StatusResponse(now, endAt time.Time, closed bool) Response {
	return Response{Status: http.StatusOK, Body: map[string]interface{}{
		"ok":     true,
		"now":    now.UTC().Format(time.RFC3339),
		"endAt":  endAt.UTC().Format(time.RFC3339),
		"closed": closed,
	}}
}

// ResultsResponse builds a /results/full reply
func ResultsResponse(total int, counts map[string]map[string]int) Response {
	return Response{Status: http.StatusOK, Body: map[string]interface{}{
		"ok":         true,
		"totalVotes": total,
		"counts":     counts,
	}}
}

// VoteCount returns how many ballots were received
func (s *Server) VoteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Votes)
}

// LastVerification returns the most recent token sent to /verify
func (s *Server) LastVerification() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Verifications) == 0 {
		return ""
	}
	return s.Verifications[len(s.Verifications)-1]
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PollID string `json:"pollId"`
		Token  string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		write(w, Reject(http.StatusBadRequest, "invalid JSON"))
		return
	}

	s.mu.Lock()
	s.Verifications = append(s.Verifications, req.Token)
	fn := s.verify
	s.mu.Unlock()

	if fn == nil {
		write(w, OK)
		return
	}
	write(w, fn(req.PollID, req.Token))
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var p models.SubmissionPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		write(w, Reject(http.StatusBadRequest, "invalid JSON"))
		return
	}

	s.mu.Lock()
	s.Votes = append(s.Votes, p)
	fn := s.vote
	s.mu.Unlock()

	if fn == nil {
		write(w, OK)
		return
	}
	write(w, fn(p))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	fn := s.status
	s.mu.Unlock()

	if fn == nil {
		now := time.Now()
		write(w, StatusResponse(now, now.Add(time.Hour), false))
		return
	}
	write(w, fn())
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.ResultsCalls++
	fn := s.results
	s.mu.Unlock()

	if fn == nil {
		write(w, ResultsResponse(0, map[string]map[string]int{}))
		return
	}
	write(w, fn(r.URL.Query().Get("pollId")))
}

func write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if raw, ok := resp.Body.(string); ok {
		w.Write([]byte(raw))
		return
	}
	json.NewEncoder(w).Encode(resp.Body)
}
