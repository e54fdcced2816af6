// Package identity answers "who is the current actor" for lock ownership
// checks, either from a fixed id or from a logged-in session.
package identity

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/VenkatGGG/admin-console/internal/gateway"
)

type Provider interface {
	ActorID() string
}

// Static is a fixed actor id.
type Static string

func (s Static) ActorID() string { return strings.TrimSpace(string(s)) }

type Authenticator interface {
	Login(ctx context.Context, req gateway.LoginRequest) (gateway.LoginResponse, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (gateway.User, error)
}

var ErrNotAuthenticated = errors.New("not authenticated")

// Session keeps the logged-in user and bearer token in memory.
type Session struct {
	auth   Authenticator
	logger *log.Logger

	mu    sync.RWMutex
	user  gateway.User
	token string
}

func NewSession(auth Authenticator, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{auth: auth, logger: logger}
}

func (s *Session) Login(ctx context.Context, email, password string) (gateway.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return gateway.User{}, errors.New("email and password are required")
	}
	resp, err := s.auth.Login(ctx, gateway.LoginRequest{Email: email, Password: password})
	if err != nil {
		return gateway.User{}, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return gateway.User{}, errors.New("login response carried no token")
	}

	s.mu.Lock()
	s.user = resp.User
	s.token = resp.Token
	s.mu.Unlock()
	s.logger.Printf("session logged in: user=%s", resp.User.ID)
	return resp.User, nil
}

// Logout clears local state even when the server call fails.
func (s *Session) Logout(ctx context.Context) error {
	err := s.auth.Logout(ctx)
	s.mu.Lock()
	s.user = gateway.User{}
	s.token = ""
	s.mu.Unlock()
	if err != nil {
		s.logger.Printf("session logout call failed: err=%v", err)
	}
	return err
}

// Refresh re-reads the current user from the server.
func (s *Session) Refresh(ctx context.Context) (gateway.User, error) {
	if !s.Authenticated() {
		return gateway.User{}, ErrNotAuthenticated
	}
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return gateway.User{}, err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() gateway.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// ActorID is the logged-in user's id, or "" when logged out.
func (s *Session) ActorID() string {
	return s.User().ID
}
