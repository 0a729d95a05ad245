package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimaster/apiserver/internal/session"
	"github.com/aimaster/apiserver/internal/storage"
	"github.com/aimaster/apiserver/types"
)

type stubSink struct {
	mu    sync.Mutex
	pages map[string]storage.Page
	err   error
}

func newStubSink() *stubSink {
	return &stubSink{pages: make(map[string]storage.Page)}
}

func (s *stubSink) PublishPage(_ context.Context, key string, page storage.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.pages[key] = page
	return nil
}

func (s *stubSink) URL(key string) string {
	return "/static/" + key
}

type stubEvents struct {
	mu     sync.Mutex
	events []types.PublishEvent
	err    error
}

func (s *stubEvents) Publish(_ context.Context, ev types.PublishEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

type actuarFixture struct {
	svc    *ActuarService
	repos  *memStore
	sink   *stubSink
	events *stubEvents
}

func newActuarFixture(t *testing.T) actuarFixture {
	t.Helper()
	repos := newMemStore()
	sink := newStubSink()
	events := &stubEvents{}
	svc := NewActuarService(ActuarDeps{
		Repos:     repos,
		Permits:   session.NewPermitStore(),
		Artifacts: sink,
		Events:    events,
		Logger:    zerolog.Nop(),
	})
	return actuarFixture{svc: svc, repos: repos, sink: sink, events: events}
}

func (f actuarFixture) user(t *testing.T, email, username string) types.User {
	t.Helper()
	u, err := f.repos.Users(nil).Create(context.Background(), memUser(email, username))
	require.NoError(t, err)
	return u
}

func TestPublishReplacesText(t *testing.T) {
	f := newActuarFixture(t)
	alice := f.user(t, "Alice.M@example.com", "")
	ctx := context.Background()

	first, err := f.svc.Publish(ctx, alice.ID, "hola")
	require.NoError(t, err)
	second, err := f.svc.Publish(ctx, alice.ID, "adios")
	require.NoError(t, err)

	require.NotNil(t, second.Record.Text)
	assert.Equal(t, "adios", *second.Record.Text)
	assert.Equal(t, "Alice.M@example.com", second.Record.Username)
	assert.Equal(t, first.Artifact.Key, second.Artifact.Key)
	assert.Equal(t, "actuar/alicem.html", second.Artifact.Key)
	assert.Equal(t, "/static/actuar/alicem.html", second.Artifact.URL)
	assert.True(t, second.Artifact.OK)

	require.Len(t, f.sink.pages, 1)
	assert.Equal(t, "adios", f.sink.pages["actuar/alicem.html"].Text)

	rec, err := f.repos.Publishes(nil).GetByUserID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "adios", *rec.Text)

	require.Len(t, f.events.events, 2)
	assert.Equal(t, "actuar", f.events.events[1].Flow)
	assert.Equal(t, alice.ID, f.events.events[1].UserID)
}

func TestPublishSucceedsWhenArtifactFails(t *testing.T) {
	f := newActuarFixture(t)
	f.sink.err = errors.New("bucket gone")
	f.events.err = errors.New("broker down")
	alice := f.user(t, "alice@example.com", "")

	res, err := f.svc.Publish(context.Background(), alice.ID, "hola")
	require.NoError(t, err)
	assert.False(t, res.Artifact.OK)
	assert.Equal(t, "artifact write failed", res.Artifact.Error)
	require.NotNil(t, res.Record.Text)
	assert.Equal(t, "hola", *res.Record.Text)
}

func TestPublishWithoutArtifacts(t *testing.T) {
	repos := newMemStore()
	svc := NewActuarService(ActuarDeps{Repos: repos, Permits: session.NewPermitStore(), Logger: zerolog.Nop()})
	u, err := repos.Users(nil).Create(context.Background(), memUser("alice@example.com", ""))
	require.NoError(t, err)

	res, err := svc.Publish(context.Background(), u.ID, "hola")
	require.NoError(t, err)
	assert.False(t, res.Artifact.OK)
	assert.Equal(t, "artifacts disabled", res.Artifact.Error)
}

func TestPublishUnknownUser(t *testing.T) {
	f := newActuarFixture(t)
	_, err := f.svc.Publish(context.Background(), 99, "hola")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestInitThenPublish2(t *testing.T) {
	f := newActuarFixture(t)
	alice := f.user(t, "alice@example.com", "")
	ctx := context.Background()

	values, err := f.svc.Init(ctx, alice.ID, []string{"Beta", "alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, values)

	res, err := f.svc.Publish2(ctx, alice.ID, "ALPHA", "uno")
	require.NoError(t, err)
	assert.Equal(t, "alpha", res.Value)
	assert.Equal(t, "actuar2/alice_alpha.html", res.Artifact.Key)
	assert.Equal(t, "uno", f.sink.pages["actuar2/alice_alpha.html"].Text)

	_, err = f.svc.Publish2(ctx, alice.ID, "gamma", "dos")
	assert.ErrorIs(t, err, ErrNotInitialized)

	// A later init replaces the set.
	_, err = f.svc.Init(ctx, alice.ID, []string{"gamma"})
	require.NoError(t, err)
	_, err = f.svc.Publish2(ctx, alice.ID, "alpha", "tres")
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = f.svc.Publish2(ctx, alice.ID, "gamma", "tres")
	require.NoError(t, err)

	// Publish2 never touches the published text.
	_, err = f.repos.Publishes(nil).GetByUserID(ctx, alice.ID)
	assert.Error(t, err)
}

func TestPublish2WithoutInit(t *testing.T) {
	f := newActuarFixture(t)
	alice := f.user(t, "alice@example.com", "")
	bob := f.user(t, "bob@example.com", "")
	ctx := context.Background()

	_, err := f.svc.Publish2(ctx, alice.ID, "alpha", "x")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = f.svc.Init(ctx, bob.ID, []string{"alpha"})
	require.NoError(t, err)
	_, err = f.svc.Publish2(ctx, alice.ID, "alpha", "x")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = f.svc.Publish2(ctx, bob.ID, "!!!", "x")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitRejectsUnusableValues(t *testing.T) {
	f := newActuarFixture(t)
	alice := f.user(t, "alice@example.com", "")

	_, err := f.svc.Init(context.Background(), alice.ID, []string{"ok", "???"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, `invalid value "???"`, verr.Message)

	values, err := f.svc.Init(context.Background(), alice.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, values)
}
