// Package auth resolves the current user from session tokens issued by the
// external identity service. The provider is an explicit dependency with an
// Init/Teardown lifecycle instead of a process-wide client.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"domore/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	ErrNoSession    = errors.New("no session")
	ErrInvalidToken = errors.New("invalid session token")
	ErrRevoked      = errors.New("session revoked")
)

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// Session is a validated token bound to a request context.
type Session struct {
	ID        string
	User      User
	ExpiresAt time.Time
}

type EventType string

const (
	EventSignedIn  EventType = "SIGNED_IN"
	EventSignedOut EventType = "SIGNED_OUT"
)

type Event struct {
	Type      EventType
	User      User
	SessionID string
}

type Listener func(ctx context.Context, ev Event)

// Provider is what the task core needs from the identity service.
type Provider interface {
	// CurrentUser re-validates the session carried by ctx; it returns
	// ErrNoSession when there is none.
	CurrentUser(ctx context.Context) (*User, error)
	OnAuthStateChange(listener Listener) (unsubscribe func())
}

type Config struct {
	Secret   string
	Issuer   string
	Audience string
	// Leeway tolerates clock skew between us and the identity service.
	Leeway time.Duration
}

type claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider validates HS256 tokens signed with the identity service's secret.
type JWTProvider struct {
	cfg    Config
	parser *jwt.Parser
	now    func() time.Time

	mu        sync.Mutex
	started   bool
	revoked   map[string]time.Time
	seen      map[string]time.Time
	listeners map[int]Listener
	nextID    int
}

var _ Provider = (*JWTProvider)(nil)

func NewJWTProvider(cfg Config) *JWTProvider {
	p := &JWTProvider{cfg: cfg, now: time.Now}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithTimeFunc(func() time.Time { return p.now() }),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	p.parser = jwt.NewParser(opts...)
	return p
}

// WithClock replaces the time source; used by tests.
func (p *JWTProvider) WithClock(now func() time.Time) *JWTProvider {
	p.now = now
	return p
}

func (p *JWTProvider) Init() error {
	if p.cfg.Secret == "" {
		return errors.New("auth: secret is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = make(map[string]time.Time)
	p.seen = make(map[string]time.Time)
	if p.listeners == nil {
		p.listeners = make(map[int]Listener)
	}
	p.started = true
	logger.Info("Auth: provider initialised")
	return nil
}

// Teardown drops listeners and session bookkeeping.
func (p *JWTProvider) Teardown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = nil
	p.revoked = nil
	p.seen = nil
	p.started = false
	logger.Info("Auth: provider stopped")
}

func (p *JWTProvider) OnAuthStateChange(listener Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listeners == nil {
		p.listeners = make(map[int]Listener)
	}
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *JWTProvider) emit(ctx context.Context, ev Event) {
	p.mu.Lock()
	listeners := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(ctx, ev)
	}
}

// Authenticate validates a raw token. The first time a session is seen the
// provider emits EventSignedIn before returning.
func (p *JWTProvider) Authenticate(ctx context.Context, raw string) (*Session, error) {
	session, err := p.parse(raw)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil, errors.New("auth: provider not initialised")
	}
	if _, revoked := p.revoked[session.ID]; revoked {
		p.mu.Unlock()
		return nil, ErrRevoked
	}
	_, known := p.seen[session.ID]
	if !known {
		p.seen[session.ID] = session.ExpiresAt
	}
	p.mu.Unlock()

	if !known {
		logger.Info("Auth: new session", zap.String("user_id", session.User.ID))
		p.emit(ctx, Event{Type: EventSignedIn, User: session.User, SessionID: session.ID})
	}
	return session, nil
}

func (p *JWTProvider) parse(raw string) (*Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoSession
	}

	c := &claims{}
	token, err := p.parser.ParseWithClaims(raw, c, func(*jwt.Token) (any, error) {
		return []byte(p.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" || c.Email == "" {
		return nil, fmt.Errorf("%w: subject and email are required", ErrInvalidToken)
	}

	id := c.ID
	if id == "" {
		// Tokens without jti are keyed by subject and issue time.
		issued := int64(0)
		if c.IssuedAt != nil {
			issued = c.IssuedAt.Unix()
		}
		id = fmt.Sprintf("%s:%d", c.Subject, issued)
	}

	user := User{ID: c.Subject, Email: c.Email}
	if name, ok := c.UserMetadata["username"].(string); ok {
		user.Username = name
	}
	return &Session{ID: id, User: user, ExpiresAt: c.ExpiresAt.Time}, nil
}

// CurrentUser re-checks expiry and revocation for the session in ctx.
func (p *JWTProvider) CurrentUser(ctx context.Context) (*User, error) {
	session, ok := SessionFrom(ctx)
	if !ok {
		return nil, ErrNoSession
	}
	if !p.now().Before(session.ExpiresAt.Add(p.cfg.Leeway)) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidToken)
	}

	p.mu.Lock()
	_, revoked := p.revoked[session.ID]
	p.mu.Unlock()
	if revoked {
		return nil, ErrRevoked
	}

	user := session.User
	return &user, nil
}

// SignOut revokes the session in ctx until its token expires.
func (p *JWTProvider) SignOut(ctx context.Context) error {
	session, ok := SessionFrom(ctx)
	if !ok {
		return ErrNoSession
	}

	p.mu.Lock()
	if p.revoked == nil {
		p.mu.Unlock()
		return errors.New("auth: provider not initialised")
	}
	p.revoked[session.ID] = session.ExpiresAt
	delete(p.seen, session.ID)
	p.mu.Unlock()

	logger.Info("Auth: session revoked", zap.String("user_id", session.User.ID))
	p.emit(ctx, Event{Type: EventSignedOut, User: session.User, SessionID: session.ID})
	return nil
}

// Forget drops a session from the set of announced ones, so its next
// Authenticate emits EventSignedIn again.
func (p *JWTProvider) Forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.seen, sessionID)
}

// Sweep forgets revocations and sessions whose tokens have expired and
// returns how many entries were dropped.
func (p *JWTProvider) Sweep(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	dropped := 0
	cutoff := now.Add(-p.cfg.Leeway)
	for id, exp := range p.revoked {
		if exp.Before(cutoff) {
			delete(p.revoked, id)
			dropped++
		}
	}
	for id, exp := range p.seen {
		if exp.Before(cutoff) {
			delete(p.seen, id)
			dropped++
		}
	}
	return dropped
}
