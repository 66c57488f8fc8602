package client

import (
	"context"
	"errors"
	"sync"
)

type SessionState string

const (
	StateAnonymous      SessionState = "anonymous"
	StateAuthenticating SessionState = "authenticating"
	StateAuthenticated  SessionState = "authenticated"
	StateAwaitingEmail  SessionState = "awaiting-email-confirmation"
)

// ErrBusy is returned when an authentication call is already in progress.
var ErrBusy = errors.New("session: authentication in progress")

// Session tracks who is signed in on a Client.
//
//	anonymous --Login/Signup--> authenticating --ok--> authenticated
//	                                           \--confirm needed--> awaiting-email-confirmation
//	                                           \--error--> anonymous
//	authenticated --Logout--> anonymous
type Session struct {
	c *Client

	mu    sync.Mutex
	state SessionState
	user  *Profile
	email string
}

// NewSession starts authenticated when the client already carries a token.
func NewSession(c *Client) *Session {
	s := &Session{c: c, state: StateAnonymous}
	if c.Token() != "" {
		s.state = StateAuthenticated
	}
	return s
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User is nil until a login or signup has succeeded.
func (s *Session) User() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// PendingEmail is the address awaiting confirmation, if any.
func (s *Session) PendingEmail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAuthenticating {
		return ErrBusy
	}
	s.state = StateAuthenticating
	return nil
}

func (s *Session) finish(res *AuthResult, email string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		s.state, s.user, s.email = StateAnonymous, nil, ""
		s.c.SetToken("")
	case res.Status == AuthAwaitingConfirmation:
		s.state, s.user, s.email = StateAwaitingEmail, res.User, email
		s.c.SetToken("")
	default:
		s.state, s.user, s.email = StateAuthenticated, res.User, ""
		s.c.SetToken(res.Token)
	}
}

func (s *Session) Signup(ctx context.Context, username, email, password string) (SessionState, error) {
	if err := s.begin(); err != nil {
		return s.State(), err
	}
	res, err := s.c.Signup(ctx, username, email, password)
	s.finish(res, email, err)
	return s.State(), err
}

func (s *Session) Login(ctx context.Context, email, password string) (SessionState, error) {
	if err := s.begin(); err != nil {
		return s.State(), err
	}
	res, err := s.c.Login(ctx, email, password)
	s.finish(res, email, err)
	return s.State(), err
}

// Logout always ends anonymous; the server error, if any, is returned.
func (s *Session) Logout(ctx context.Context) error {
	err := s.c.Logout(ctx)
	s.mu.Lock()
	s.state, s.user, s.email = StateAnonymous, nil, ""
	s.c.SetToken("")
	s.mu.Unlock()
	return err
}
