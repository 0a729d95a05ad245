package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/aimaster/apiserver/internal/db"
	"github.com/aimaster/apiserver/internal/metrics"
	"github.com/aimaster/apiserver/internal/storage"
	"github.com/aimaster/apiserver/internal/store"
	"github.com/aimaster/apiserver/types"
)

const (
	flowActuar  = "actuar"
	flowActuar2 = "actuar2"

	artifactPageTitle = "Actuar"
	artifactWriteFail = "artifact write failed"
	artifactDisabled  = "artifacts disabled"
)

// ArtifactSink stores rendered pages at public URLs.
type ArtifactSink interface {
	PublishPage(ctx context.Context, key string, page storage.Page) error
	URL(key string) string
}

// EventPublisher announces successful publishes.
type EventPublisher interface {
	Publish(ctx context.Context, ev types.PublishEvent) error
}

// PermitSet holds the per-user values allowed by the two-phase flow.
type PermitSet interface {
	Replace(userID int, values []string) []string
	Contains(userID int, value string) bool
}

// PublishResult is the outcome of a publish. The record or value is always
// committed when err is nil; Artifact reports the best-effort page write
// separately.
type PublishResult struct {
	Record   types.PublishRecord
	Value    string
	Artifact types.Artifact
}

// ActuarService implements the single-value and two-phase publish flows.
type ActuarService struct {
	conn      db.DBTX
	repos     store.Manager
	permits   PermitSet
	artifacts ArtifactSink
	events    EventPublisher
	log       zerolog.Logger
	now       func() time.Time
}

// ActuarDeps lists the collaborators of ActuarService. Artifacts and Events
// are optional.
type ActuarDeps struct {
	Conn      db.DBTX
	Repos     store.Manager
	Permits   PermitSet
	Artifacts ArtifactSink
	Events    EventPublisher
	Logger    zerolog.Logger
}

func NewActuarService(deps ActuarDeps) *ActuarService {
	return &ActuarService{
		conn:      deps.Conn,
		repos:     deps.Repos,
		permits:   deps.Permits,
		artifacts: deps.Artifacts,
		events:    deps.Events,
		log:       deps.Logger,
		now:       time.Now,
	}
}

// Publish replaces the caller's published text, then writes the public page
// keyed by the caller's identifier. A failed page write does not undo the
// record.
func (s *ActuarService) Publish(ctx context.Context, userID int, text string) (PublishResult, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return PublishResult{}, err
	}

	record, err := s.repos.Publishes(s.conn).Upsert(ctx, user.ID, text)
	if err != nil {
		return PublishResult{}, err
	}
	record.Username = user.DisplayName()

	updatedAt := s.now()
	if record.UpdatedAt != nil {
		updatedAt = *record.UpdatedAt
	}
	key := "actuar/" + UserIdentifier(user) + ".html"
	artifact := s.writeArtifact(ctx, key, text, updatedAt)
	s.emit(ctx, types.PublishEvent{
		UserID:      user.ID,
		Flow:        flowActuar,
		Text:        text,
		Key:         artifact.Key,
		URL:         artifact.URL,
		PublishedAt: updatedAt,
	})
	metrics.PublishesTotal.WithLabelValues(flowActuar, artifactLabel(artifact)).Inc()

	return PublishResult{Record: record, Artifact: artifact}, nil
}

// Init replaces the caller's permit set with the sanitized values and returns
// it sorted. Any value that sanitizes to nothing rejects the whole call.
func (s *ActuarService) Init(ctx context.Context, userID int, values []string) ([]string, error) {
	sanitized := make([]string, 0, len(values))
	for _, v := range values {
		token := SanitizeToken(v)
		if token == "" {
			return nil, invalidf("invalid value %q", v)
		}
		sanitized = append(sanitized, token)
	}
	return s.permits.Replace(userID, sanitized), nil
}

// Publish2 writes the page for one permitted value. The value is sanitized
// before it is checked against the set of the latest Init.
func (s *ActuarService) Publish2(ctx context.Context, userID int, value, text string) (PublishResult, error) {
	token := SanitizeToken(value)
	if token == "" || !s.permits.Contains(userID, token) {
		metrics.PublishRejectionsTotal.Inc()
		return PublishResult{}, ErrNotInitialized
	}

	user, err := s.user(ctx, userID)
	if err != nil {
		return PublishResult{}, err
	}

	now := s.now()
	key := "actuar2/" + UserIdentifier(user) + "_" + token + ".html"
	artifact := s.writeArtifact(ctx, key, text, now)
	s.emit(ctx, types.PublishEvent{
		UserID:      user.ID,
		Flow:        flowActuar2,
		Value:       token,
		Text:        text,
		Key:         artifact.Key,
		URL:         artifact.URL,
		PublishedAt: now,
	})
	metrics.PublishesTotal.WithLabelValues(flowActuar2, artifactLabel(artifact)).Inc()

	return PublishResult{Value: token, Artifact: artifact}, nil
}

func (s *ActuarService) user(ctx context.Context, userID int) (types.User, error) {
	user, err := s.repos.Users(s.conn).GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return user, err
}

func (s *ActuarService) writeArtifact(ctx context.Context, key, text string, at time.Time) types.Artifact {
	if s.artifacts == nil {
		return types.Artifact{Key: key, Error: artifactDisabled}
	}

	artifact := types.Artifact{Key: key, URL: s.artifacts.URL(key)}
	err := s.artifacts.PublishPage(ctx, key, storage.Page{
		Title:     artifactPageTitle,
		Text:      text,
		UpdatedAt: at,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("artifact write failed")
		artifact.Error = artifactWriteFail
		return artifact
	}
	artifact.OK = true
	return artifact
}

func (s *ActuarService) emit(ctx context.Context, ev types.PublishEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Int("user_id", ev.UserID).Str("flow", ev.Flow).Msg("publish event failed")
	}
}

func artifactLabel(a types.Artifact) string {
	if a.OK {
		return "ok"
	}
	return "failed"
}
