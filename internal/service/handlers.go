package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/soulsync/match-engine/internal/directory"
	"github.com/soulsync/match-engine/internal/metrics"
	"github.com/soulsync/match-engine/internal/ratelimit"
	"github.com/soulsync/match-engine/internal/recommend"
	"github.com/soulsync/match-engine/internal/scoring"
	"github.com/soulsync/match-engine/internal/selector"
)

// Error codes in the response envelope.
const (
	CodeInvalidRequest      = "invalid_request"
	CodeRateLimited         = "rate_limited"
	CodeNotFound            = "not_found"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeInternal            = "internal"
)

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// CompatRequest asks for the compatibility of one user pair.
type CompatRequest struct {
	RequestID string `json:"request_id,omitempty"`
	UserA     string `json:"user_a"`
	UserB     string `json:"user_b"`
}

// CompatResponse carries a full compatibility result.
type CompatResponse struct {
	RequestID string         `json:"request_id"`
	Result    scoring.Result `json:"result"`
}

// CandidatesRequest asks for one ranked candidate page.
type CandidatesRequest struct {
	RequestID string `json:"request_id,omitempty"`
	UserID    string `json:"user_id"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	MinAge    int    `json:"min_age,omitempty"`
	MaxAge    int    `json:"max_age,omitempty"`
}

// CandidateEntry is one ranked candidate on the wire.
type CandidateEntry struct {
	UserID        string         `json:"user_id"`
	Name          string         `json:"name"`
	Age           int            `json:"age"`
	Interests     []string       `json:"interests,omitempty"`
	Compatibility scoring.Result `json:"compatibility"`
}

// CandidatesResponse carries one ranked candidate page.
type CandidatesResponse struct {
	RequestID     string           `json:"request_id"`
	Candidates    []CandidateEntry `json:"candidates"`
	HasMore       bool             `json:"has_more"`
	TotalAnalyzed int              `json:"total_analyzed"`
	Message       string           `json:"message,omitempty"`
}

// QuestionsRequest asks for the next recommended quiz questions.
type QuestionsRequest struct {
	RequestID string `json:"request_id,omitempty"`
	UserID    string `json:"user_id"`
	Count     int    `json:"count"`
}

// QuestionEntry is one recommended question on the wire.
type QuestionEntry struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Category string   `json:"category"`
	Type     string   `json:"type"`
	Weight   int      `json:"weight"`
	MinValue int      `json:"min_value,omitempty"`
	MaxValue int      `json:"max_value,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// QuestionsResponse carries a recommendation batch plus analytics.
type QuestionsResponse struct {
	RequestID string              `json:"request_id"`
	Questions []QuestionEntry     `json:"questions"`
	Analytics recommend.Analytics `json:"analytics"`
}

// ErrorResponse is the error envelope for all three operations.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
	Code      string `json:"code"`
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Service) handleCompat(msg *nats.Msg) {
	var req CompatRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.respondError(msg, "compat", "", "invalid JSON payload", CodeInvalidRequest)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.UserA == "" || req.UserB == "" {
		s.respondError(msg, "compat", req.RequestID, "user_a and user_b are required", CodeInvalidRequest)
		return
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if !s.allow(ctx, req.UserA, ratelimit.RuleCompat) {
		s.respondError(msg, "compat", req.RequestID, "too many compatibility requests", CodeRateLimited)
		return
	}

	userA, err := s.users.GetUser(ctx, req.UserA)
	if err != nil {
		s.respondUserError(msg, "compat", req.RequestID, err)
		return
	}
	userB, err := s.users.GetUser(ctx, req.UserB)
	if err != nil {
		s.respondUserError(msg, "compat", req.RequestID, err)
		return
	}

	answersA, err := s.answers.GetAnswers(ctx, req.UserA)
	if err != nil {
		s.respondError(msg, "compat", req.RequestID, "answer store unavailable", CodeUpstreamUnavailable)
		return
	}
	answersB, err := s.answers.GetAnswers(ctx, req.UserB)
	if err != nil {
		s.respondError(msg, "compat", req.RequestID, "answer store unavailable", CodeUpstreamUnavailable)
		return
	}

	result := s.scorer.Score(s.catalog.Current(),
		scoring.Profile{Answers: answersA, Interests: userA.Interests},
		scoring.Profile{Answers: answersB, Interests: userB.Interests},
	)
	metrics.CandidatesScored.Inc()

	s.respond(msg, "compat", CompatResponse{RequestID: req.RequestID, Result: result})
}

func (s *Service) handleCandidates(msg *nats.Msg) {
	var req CandidatesRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.respondError(msg, "candidates", "", "invalid JSON payload", CodeInvalidRequest)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.UserID == "" {
		s.respondError(msg, "candidates", req.RequestID, "user_id is required", CodeInvalidRequest)
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if !s.allow(ctx, req.UserID, ratelimit.RuleCandidates) {
		s.respondError(msg, "candidates", req.RequestID, "too many candidate requests", CodeRateLimited)
		return
	}

	started := time.Now()
	page, err := s.selector.FindCandidates(ctx, req.UserID, req.Limit, req.Offset,
		selector.Filters{MinAge: req.MinAge, MaxAge: req.MaxAge})
	if err != nil {
		s.respondUserError(msg, "candidates", req.RequestID, err)
		return
	}
	metrics.ScoringDuration.Observe(time.Since(started).Seconds())
	metrics.CandidatePoolSize.Observe(float64(page.TotalAnalyzed))

	resp := CandidatesResponse{
		RequestID:     req.RequestID,
		Candidates:    make([]CandidateEntry, 0, len(page.Candidates)),
		HasMore:       page.HasMore,
		TotalAnalyzed: page.TotalAnalyzed,
		Message:       page.Message,
	}
	for _, c := range page.Candidates {
		resp.Candidates = append(resp.Candidates, CandidateEntry{
			UserID:        c.User.ID,
			Name:          c.User.Name,
			Age:           c.User.Age,
			Interests:     c.User.Interests,
			Compatibility: c.Compatibility,
		})
	}

	s.respond(msg, "candidates", resp)
}

func (s *Service) handleQuestions(msg *nats.Msg) {
	var req QuestionsRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.respondError(msg, "questions", "", "invalid JSON payload", CodeInvalidRequest)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.UserID == "" {
		s.respondError(msg, "questions", req.RequestID, "user_id is required", CodeInvalidRequest)
		return
	}
	if req.Count <= 0 {
		req.Count = 5
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if !s.allow(ctx, req.UserID, ratelimit.RuleQuestions) {
		s.respondError(msg, "questions", req.RequestID, "too many recommendation requests", CodeRateLimited)
		return
	}

	res, err := s.recommender.NextQuestions(ctx, req.UserID, req.Count)
	if err != nil {
		s.respondUserError(msg, "questions", req.RequestID, err)
		return
	}

	resp := QuestionsResponse{
		RequestID: req.RequestID,
		Questions: make([]QuestionEntry, 0, len(res.Questions)),
		Analytics: res.Analytics,
	}
	for _, q := range res.Questions {
		resp.Questions = append(resp.Questions, QuestionEntry{
			ID:       q.ID,
			Text:     q.Text,
			Category: string(q.Category),
			Type:     string(q.Type),
			Weight:   q.Weight,
			MinValue: q.MinValue,
			MaxValue: q.MaxValue,
			Options:  q.Options,
		})
	}

	s.respond(msg, "questions", resp)
}

// ---------------------------------------------------------------------------
// Shared plumbing
// ---------------------------------------------------------------------------

// allow wraps the limiter; Redis failures fail open inside the limiter.
func (s *Service) allow(ctx context.Context, userID string, rule ratelimit.Rule) bool {
	allowed, _ := s.limiter.Allow(ctx, userID, rule)
	return allowed
}

func (s *Service) respond(msg *nats.Msg, op string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[engine] marshal %s response: %v", op, err)
		metrics.RequestsTotal.WithLabelValues(op, "error").Inc()
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("[engine] respond %s: %v", op, err)
		metrics.RequestsTotal.WithLabelValues(op, "error").Inc()
		return
	}
	metrics.RequestsTotal.WithLabelValues(op, "ok").Inc()
}

// respondUserError maps engine errors onto envelope codes.
func (s *Service) respondUserError(msg *nats.Msg, op, requestID string, err error) {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		s.respondError(msg, op, requestID, "user not found", CodeNotFound)
	case errors.Is(err, selector.ErrUpstream), errors.Is(err, recommend.ErrUpstream):
		s.respondError(msg, op, requestID, "backing store unavailable", CodeUpstreamUnavailable)
	default:
		log.Printf("[engine] %s request %s failed: %v", op, requestID, err)
		s.respondError(msg, op, requestID, "internal error", CodeInternal)
	}
}

func (s *Service) respondError(msg *nats.Msg, op, requestID, message, code string) {
	outcome := "error"
	switch code {
	case CodeRateLimited:
		outcome = "rate_limited"
	case CodeInvalidRequest:
		outcome = "invalid"
	}
	metrics.RequestsTotal.WithLabelValues(op, outcome).Inc()

	data, err := json.Marshal(ErrorResponse{RequestID: requestID, Error: message, Code: code})
	if err != nil {
		log.Printf("[engine] marshal %s error response: %v", op, err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("[engine] respond %s error: %v", op, err)
	}
}
