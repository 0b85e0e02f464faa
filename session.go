package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/high-horse/fingerprint/config"
	"github.com/high-horse/fingerprint/enhance"
)

type State int

const (
	NoFingerprint State = iota
	Taken
	Processing
	Processed
	Enrolling
	Analyzing
	Done
	Failed
)

var stateNames = [...]string{"NoFingerprint", "Taken", "Processing", "Processed", "Enrolling", "Analyzing", "Done", "Failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

var ErrInvalidTransition = errors.New("invalid session transition")

// Repository persists enrolled users and serves the gallery for login.
type Repository interface {
	Enroll(ctx context.Context, user *User, t *Template) error
	Gallery(ctx context.Context) (*Gallery, error)
	UserByFingerprint(ctx context.Context, fingerprintName string) (*User, error)
}

// Identification is the outcome of a login attempt. Matched is false when no
// enrolled fingerprint scored above the minimum score.
type Identification struct {
	User    *User
	Score   int
	Matched bool
}

// Session walks one capture through
// NoFingerprint -> Taken -> Processing -> Processed -> Enrolling|Analyzing -> Done|Failed.
// Long running steps happen outside the lock; the intermediate state rejects
// concurrent transitions.
type Session struct {
	mu       sync.Mutex
	state    State
	capture  image.Image
	template *Template
	err      error

	cfg     *config.DefaultConfig
	creator *TemplateCreator
	repo    Repository
	logger  *zap.Logger
	now     func() time.Time
}

func NewSession(cfg *config.DefaultConfig, creator *TemplateCreator, repo Repository, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{cfg: cfg, creator: creator, repo: repo, logger: logger, now: time.Now}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err is the error that moved the session to Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Template is the processed capture, nil before Processed.
func (s *Session) Template() *Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.template
}

// Take stores a new capture. It is refused while a step is running.
func (s *Session) Take(img image.Image) error {
	if img == nil {
		return errors.New("nil capture")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Processing, Enrolling, Analyzing:
		return fmt.Errorf("%w: take while %s", ErrInvalidTransition, s.state)
	}
	s.capture, s.template, s.err = img, nil, nil
	s.state = Taken
	return nil
}

// Reset returns to NoFingerprint unless a step is running.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Processing, Enrolling, Analyzing:
		return fmt.Errorf("%w: reset while %s", ErrInvalidTransition, s.state)
	}
	s.capture, s.template, s.err = nil, nil, nil
	s.state = NoFingerprint
	return nil
}

// Process enhances the capture into a template.
func (s *Session) Process(ctx context.Context) error {
	img, err := s.begin(Taken, Processing)
	if err != nil {
		return err
	}
	t, err := s.creator.Template(ctx, img)
	if errors.Is(err, enhance.ErrNoValidRegions) {
		s.logger.Warn("capture has no ridge regions")
		err = nil
	}
	if err != nil {
		return s.fail(fmt.Errorf("failed to process fingerprint: %w", err))
	}

	s.mu.Lock()
	s.template = t
	s.state = Processed
	s.mu.Unlock()
	return nil
}

// Enroll stores the processed template for a new user.
func (s *Session) Enroll(ctx context.Context, name string, level AccessLevel) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("user name is required")
	}
	if !level.Valid() {
		return nil, fmt.Errorf("invalid access level %d", int(level))
	}
	if _, err := s.begin(Processed, Enrolling); err != nil {
		return nil, err
	}
	t := s.Template()
	if t.Empty() {
		return nil, s.fail(ErrEmptyTemplate)
	}

	now := s.now()
	user := &User{
		ID:              uuid.NewString(),
		Name:            name,
		AccessLevel:     level,
		FingerprintName: FingerprintName(name, now),
		CreatedAt:       now.UTC(),
	}
	t.Identity = user.FingerprintName
	if err := s.repo.Enroll(ctx, user, t); err != nil {
		return nil, s.fail(fmt.Errorf("failed to enroll %s: %w", name, err))
	}
	s.logger.Info("user enrolled", zap.String("user", user.Name), zap.Stringer("access_level", user.AccessLevel))
	s.finish()
	return user, nil
}

// Analyze identifies the processed capture against every enrolled template.
func (s *Session) Analyze(ctx context.Context) (*Identification, error) {
	if _, err := s.begin(Processed, Analyzing); err != nil {
		return nil, err
	}
	gallery, err := s.repo.Gallery(ctx)
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to load gallery: %w", err))
	}
	res, err := NewMatcher(s.cfg, s.logger, s.Template()).Identify(ctx, gallery)
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to scan gallery: %w", err))
	}
	id := &Identification{Score: res.Score, Matched: res.Found}
	if res.Found {
		if id.User, err = s.repo.UserByFingerprint(ctx, res.Identity); err != nil {
			return nil, s.fail(fmt.Errorf("failed to load user for %s: %w", res.Identity, err))
		}
		s.logger.Info("login granted", zap.String("user", id.User.Name), zap.Int("score", res.Score))
	} else {
		s.logger.Info("login denied", zap.Int("gallery", gallery.Len()))
	}
	s.finish()
	return id, nil
}

func (s *Session) begin(from, to State) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return nil, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, to, s.state)
	}
	s.state = to
	return s.capture, nil
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Failed
	s.err = err
	s.logger.Error("fingerprint session failed", zap.Error(err))
	return err
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Done
}
