package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aimaster/apiserver/internal/db"
	"github.com/aimaster/apiserver/internal/metrics"
	"github.com/aimaster/apiserver/internal/store"
	"github.com/aimaster/apiserver/types"
)

// LookupCache remembers identifier resolutions. Implementations must treat
// identifiers case-insensitively.
type LookupCache interface {
	Get(ctx context.Context, identifier string) (int, bool, error)
	Set(ctx context.Context, identifier string, userID int) error
}

// LookupService resolves public identifiers to publish records.
type LookupService struct {
	conn  db.DBTX
	repos store.Manager
	cache LookupCache
	log   zerolog.Logger
}

// NewLookupService builds a LookupService. cache may be nil.
func NewLookupService(conn db.DBTX, repos store.Manager, cache LookupCache, log zerolog.Logger) *LookupService {
	return &LookupService{conn: conn, repos: repos, cache: cache, log: log}
}

// Resolve finds the user named by identifier and returns their publish
// record. A user who never published gets a record with nil text.
func (s *LookupService) Resolve(ctx context.Context, identifier string) (types.PublishRecord, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return types.PublishRecord{}, ErrUserNotFound
	}

	user, err := s.findUser(ctx, identifier)
	if err != nil {
		return types.PublishRecord{}, err
	}

	record, err := s.repos.Publishes(s.conn).GetByUserID(ctx, user.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		record = types.PublishRecord{UserID: user.ID}
	case err != nil:
		return types.PublishRecord{}, err
	}
	record.Username = user.DisplayName()
	return record, nil
}

// findUser tries, in order: email, username, then email local-part for
// identifiers without "@". Only email and username hits are cached: they
// cannot be shadowed by a later registration, unlike a local-part match.
func (s *LookupService) findUser(ctx context.Context, identifier string) (types.User, error) {
	users := s.repos.Users(s.conn)

	if user, ok := s.cached(ctx, users, identifier); ok {
		return user, nil
	}

	user, err := users.GetByEmail(ctx, identifier)
	if err == nil {
		s.remember(ctx, identifier, user.ID)
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	user, err = users.GetByUsername(ctx, identifier)
	if err == nil {
		s.remember(ctx, identifier, user.ID)
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	if strings.Contains(identifier, "@") {
		return types.User{}, ErrUserNotFound
	}
	user, err = users.GetByEmailLocalPart(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return user, err
}

func (s *LookupService) cached(ctx context.Context, users store.Users, identifier string) (types.User, bool) {
	if s.cache == nil {
		return types.User{}, false
	}
	userID, ok, err := s.cache.Get(ctx, identifier)
	if err != nil {
		metrics.LookupCacheTotal.WithLabelValues("error").Inc()
		s.log.Warn().Err(err).Msg("lookup cache read failed")
		return types.User{}, false
	}
	if !ok {
		metrics.LookupCacheTotal.WithLabelValues("miss").Inc()
		return types.User{}, false
	}
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		metrics.LookupCacheTotal.WithLabelValues("error").Inc()
		return types.User{}, false
	}
	metrics.LookupCacheTotal.WithLabelValues("hit").Inc()
	return user, true
}

func (s *LookupService) remember(ctx context.Context, identifier string, userID int) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, identifier, userID); err != nil {
		s.log.Warn().Err(err).Msg("lookup cache write failed")
	}
}
