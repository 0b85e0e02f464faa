package fingerprint

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/high-horse/fingerprint/config"
	"github.com/high-horse/fingerprint/transparency"
)

type memoryRepository struct {
	mu      sync.Mutex
	users   map[string]*User
	gallery *Gallery
	err     error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{users: make(map[string]*User), gallery: NewGallery()}
}

func (r *memoryRepository) Enroll(_ context.Context, user *User, t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.users[user.FingerprintName] = user
	r.gallery.Add(t)
	return nil
}

func (r *memoryRepository) Gallery(context.Context) (*Gallery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return NewGallery(r.gallery.Templates()...), r.err
}

func (r *memoryRepository) UserByFingerprint(_ context.Context, name string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func sessionConfig() *config.DefaultConfig {
	cfg := config.LoadDefaultConfig()
	cfg.Workers = 4
	return cfg
}

func newTestSession(cfg *config.DefaultConfig, repo Repository) *Session {
	s := NewSession(cfg, NewTemplateCreator(cfg, nil, nil), repo, nil)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestSessionEnrollAndAnalyze(t *testing.T) {
	cfg := sessionConfig()
	repo := newMemoryRepository()
	capture := whorlImage(110, 150, 1)

	s := newTestSession(cfg, repo)
	assert.Equal(t, NoFingerprint, s.State())
	require.NoError(t, s.Take(capture))
	assert.Equal(t, Taken, s.State())
	require.NoError(t, s.Process(context.Background()))
	assert.Equal(t, Processed, s.State())
	require.NotNil(t, s.Template())
	assert.False(t, s.Template().Empty())

	user, err := s.Enroll(context.Background(), "alice", Level2)
	require.NoError(t, err)
	assert.Equal(t, Done, s.State())
	assert.Equal(t, "alice1700000000000", user.FingerprintName)
	assert.Equal(t, Level2, user.AccessLevel)
	assert.Equal(t, 1, repo.gallery.Len())

	login := newTestSession(cfg, repo)
	require.NoError(t, login.Take(capture))
	require.NoError(t, login.Process(context.Background()))
	id, err := login.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, login.State())
	require.True(t, id.Matched)
	assert.Equal(t, "alice", id.User.Name)
	assert.Positive(t, id.Score)
}

func enrollCapture(t *testing.T, cfg *config.DefaultConfig, repo Repository, name string, capture image.Image) *User {
	t.Helper()
	s := newTestSession(cfg, repo)
	require.NoError(t, s.Take(capture))
	require.NoError(t, s.Process(context.Background()))
	user, err := s.Enroll(context.Background(), name, Level1)
	require.NoError(t, err)
	return user
}

func identifyCapture(t *testing.T, cfg *config.DefaultConfig, repo Repository, capture image.Image) *Identification {
	t.Helper()
	s := newTestSession(cfg, repo)
	require.NoError(t, s.Take(capture))
	require.NoError(t, s.Process(context.Background()))
	id, err := s.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Done, s.State())
	return id
}

func TestSessionAnalyzeRejectsOtherFinger(t *testing.T) {
	cfg := sessionConfig()
	repo := newMemoryRepository()
	alice, bob := whorlImage(110, 150, 1), whorlImage(160, 120, 2)

	enrollCapture(t, cfg, repo, "alice", alice)
	id := identifyCapture(t, cfg, repo, bob)
	assert.False(t, id.Matched)
	assert.Nil(t, id.User)
	assert.LessOrEqual(t, id.Score, cfg.Match.MinScore)
	id = identifyCapture(t, cfg, repo, ridgeImage(264, 264, 0.6, 10))
	assert.False(t, id.Matched)

	enrollCapture(t, cfg, repo, "bob", bob)
	id = identifyCapture(t, cfg, repo, bob)
	require.True(t, id.Matched)
	assert.Equal(t, "bob", id.User.Name)

	id = identifyCapture(t, cfg, repo, alice)
	require.True(t, id.Matched)
	assert.Equal(t, "alice", id.User.Name)

	id = identifyCapture(t, cfg, repo, whorlImage(140, 100, 0))
	assert.False(t, id.Matched)
}

func TestSessionAnalyzeEmptyGallery(t *testing.T) {
	s := newTestSession(sessionConfig(), newMemoryRepository())
	require.NoError(t, s.Take(ridgeImage(264, 264, 1.2, 9)))
	require.NoError(t, s.Process(context.Background()))

	id, err := s.Analyze(context.Background())
	require.NoError(t, err)
	assert.False(t, id.Matched)
	assert.Nil(t, id.User)
	assert.Equal(t, Done, s.State())
}

func TestSessionInvalidTransitions(t *testing.T) {
	s := newTestSession(sessionConfig(), newMemoryRepository())

	_, err := s.Enroll(context.Background(), "bob", Level1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, s.Process(context.Background()), ErrInvalidTransition)
	assert.Equal(t, NoFingerprint, s.State())

	_, err = s.Enroll(context.Background(), " ", Level1)
	assert.Error(t, err)
	_, err = s.Enroll(context.Background(), "bob", AccessLevel(7))
	assert.Error(t, err)
	assert.Error(t, s.Take(nil))
}

func TestSessionEmptyCapture(t *testing.T) {
	s := newTestSession(sessionConfig(), newMemoryRepository())
	require.NoError(t, s.Take(image.NewGray(image.Rect(0, 0, 256, 256))))
	require.NoError(t, s.Process(context.Background()))
	assert.True(t, s.Template().Empty())

	_, err := s.Enroll(context.Background(), "carol", Level3)
	assert.ErrorIs(t, err, ErrEmptyTemplate)
	assert.Equal(t, Failed, s.State())
	assert.ErrorIs(t, s.Err(), ErrEmptyTemplate)

	require.NoError(t, s.Reset())
	assert.Equal(t, NoFingerprint, s.State())
	assert.NoError(t, s.Err())
}

func TestSessionProcessFailure(t *testing.T) {
	s := newTestSession(sessionConfig(), newMemoryRepository())
	require.NoError(t, s.Take(image.NewGray(image.Rect(0, 0, 10, 10))))
	assert.Error(t, s.Process(context.Background()))
	assert.Equal(t, Failed, s.State())

	require.NoError(t, s.Take(ridgeImage(96, 96, 0, 10)))
	assert.Equal(t, Taken, s.State())
}

func TestSessionRepositoryFailure(t *testing.T) {
	repo := newMemoryRepository()
	repo.err = errors.New("disk full")
	s := newTestSession(sessionConfig(), repo)
	require.NoError(t, s.Take(ridgeImage(264, 264, 0.2, 10)))
	require.NoError(t, s.Process(context.Background()))

	_, err := s.Enroll(context.Background(), "dave", Level1)
	assert.ErrorIs(t, err, repo.err)
	assert.Equal(t, Failed, s.State())
}

func TestTemplateCreatorTransparency(t *testing.T) {
	cfg := sessionConfig()
	rec := transparency.NewRecorder(transparency.KeyFeatures, transparency.KeyFrequency)
	c := NewTemplateCreator(cfg, nil, transparency.NewLogger(rec))

	tmpl, err := c.Template(context.Background(), whorlImage(140, 100, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, tmpl.Frequency, 0.02)
	assert.ElementsMatch(t, []string{transparency.KeyFeatures, transparency.KeyFrequency}, rec.Keys())

	m := NewMatcher(cfg, nil, tmpl)
	score := m.Match(tmpl)
	assert.LessOrEqual(t, score, tmpl.Features(cfg.Match).Len())
	assert.True(t, m.IsMatch(score))
}
