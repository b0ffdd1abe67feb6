package payment

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/networks"
	"settlement/apps/settlement/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service is the settlement engine. Every mutating operation runs in a single
// store transaction.
type Service struct {
	store     repository.Store
	networks  *networks.Registry
	validate  *validator.Validate
	logger    *zap.Logger
	reviewers map[string]struct{}
	clock     func() time.Time
	random    io.Reader
}

type Option func(*Service)

// WithClock overrides the wall clock used for timestamps and the daily cap window.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithReviewers sets the user ids allowed to resolve disputes.
func WithReviewers(ids []string) Option {
	return func(s *Service) {
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				s.reviewers[id] = struct{}{}
			}
		}
	}
}

// WithRandom overrides the entropy source for nonces and webhook secrets.
func WithRandom(r io.Reader) Option {
	return func(s *Service) { s.random = r }
}

func WithRegistry(registry *networks.Registry) Option {
	return func(s *Service) { s.networks = registry }
}

func NewService(store repository.Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		networks:  networks.GlobalRegistry,
		validate:  validator.New(),
		logger:    logger,
		reviewers: map[string]struct{}{},
		clock:     time.Now,
		random:    rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Networks exposes the chain catalog backing route and address validation.
func (s *Service) Networks() *networks.Registry {
	return s.networks
}

// IsReviewer reports whether userID may resolve disputes.
func (s *Service) IsReviewer(userID string) bool {
	_, ok := s.reviewers[userID]
	return ok
}

// now is truncated to microseconds so values survive a Postgres round trip unchanged.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

func newID() string {
	return uuid.NewString()
}

func (s *Service) check(input any) error {
	if err := s.validate.Struct(input); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *Service) withTx(ctx context.Context, fn func(q repository.Queries) error) error {
	return s.store.WithTx(ctx, fn)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func strPtr(v string) *string {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func optional(v string) *string {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	return &v
}
