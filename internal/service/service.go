// Package service exposes the match engine over NATS request/reply. It owns
// no matching logic itself: it validates requests, applies per-user rate
// limits, delegates to the scorer, selector, and recommender, and shapes the
// JSON responses the transport layer forwards to clients.
package service

import (
	"context"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/soulsync/match-engine/internal/catalog"
	"github.com/soulsync/match-engine/internal/directory"
	"github.com/soulsync/match-engine/internal/messaging"
	"github.com/soulsync/match-engine/internal/ratelimit"
	"github.com/soulsync/match-engine/internal/recommend"
	"github.com/soulsync/match-engine/internal/scoring"
	"github.com/soulsync/match-engine/internal/selector"
)

// requestTimeout bounds one engine operation end to end, so a slow
// repository cannot stall a request indefinitely.
const requestTimeout = 10 * time.Second

// AnswerSource supplies a user's answers keyed by question ID.
type AnswerSource interface {
	GetAnswers(ctx context.Context, userID string) (map[string]string, error)
}

// UserSource supplies user records.
type UserSource interface {
	GetUser(ctx context.Context, id string) (*directory.User, error)
}

// CatalogSource supplies the current question catalog snapshot.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Service is the NATS-facing engine service.
type Service struct {
	nats        *messaging.Client
	limiter     *ratelimit.Limiter
	selector    *selector.Selector
	recommender *recommend.Recommender
	scorer      *scoring.Scorer
	users       UserSource
	answers     AnswerSource
	catalog     CatalogSource

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the engine service.
func New(natsClient *messaging.Client, limiter *ratelimit.Limiter,
	sel *selector.Selector, rec *recommend.Recommender, scorer *scoring.Scorer,
	users UserSource, answers AnswerSource, cat CatalogSource) *Service {

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		nats:        natsClient,
		limiter:     limiter,
		selector:    sel,
		recommender: rec,
		scorer:      scorer,
		users:       users,
		answers:     answers,
		catalog:     cat,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start subscribes to the engine subjects.
func (s *Service) Start() error {
	if err := s.nats.SubscribeCompatRequest(func(msg *nats.Msg) {
		go s.handleCompat(msg)
	}); err != nil {
		return err
	}
	if err := s.nats.SubscribeCandidatesRequest(func(msg *nats.Msg) {
		go s.handleCandidates(msg)
	}); err != nil {
		return err
	}
	if err := s.nats.SubscribeQuestionsRequest(func(msg *nats.Msg) {
		go s.handleQuestions(msg)
	}); err != nil {
		return err
	}

	log.Println("[engine] service started")
	return nil
}

// Stop cancels in-flight work.
func (s *Service) Stop() {
	s.cancel()
	log.Println("[engine] service stopped")
}

// opCtx derives a per-request context bounded by the request timeout.
func (s *Service) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, requestTimeout)
}
