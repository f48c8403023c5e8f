package auth

import (
	"context"
	"errors"
	"sync"

	"todola/backend/internal/models"
)

type StateListener = func(identity *models.Identity)

// Client holds the sign-in state of one app instance. Listeners see every
// transition in order, and are called once with the current identity when
// they register.
type Client struct {
	svc *Service

	mu        sync.Mutex
	session   *Session
	listeners map[int]StateListener
	nextID    int

	// transitions serializes state changes with their notifications.
	transitions sync.Mutex
}

func NewClient(svc *Service) *Client {
	return &Client{svc: svc, listeners: make(map[int]StateListener)}
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	session, err := c.svc.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setSession(session)
	identity := session.Identity
	return &identity, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	session, err := c.svc.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setSession(session)
	identity := session.Identity
	return &identity, nil
}

func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return ErrNoCurrentUser
	}
	if err := c.svc.SignOut(ctx, session.ID); err != nil && !errors.Is(err, ErrNoCurrentUser) {
		return err
	}
	c.setSession(nil)
	return nil
}

// Restore resumes a session from an access token issued earlier.
func (c *Client) Restore(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := c.svc.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	c.setSession(&Session{
		Identity:  *claims.Identity(),
		ID:        claims.SessionID,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	})
	return claims.Identity(), nil
}

func (c *Client) CurrentUser() *models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	identity := c.session.Identity
	return &identity
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Token
}

func (c *Client) OnAuthStateChange(fn StateListener) (unsubscribe func()) {
	c.transitions.Lock()
	defer c.transitions.Unlock()

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	fn(c.CurrentUser())

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) setSession(session *Session) {
	c.transitions.Lock()
	defer c.transitions.Unlock()

	c.mu.Lock()
	c.session = session
	listeners := make([]StateListener, 0, len(c.listeners))
	for i := 0; i < c.nextID; i++ {
		if fn, ok := c.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	c.mu.Unlock()

	current := c.CurrentUser()
	for _, fn := range listeners {
		fn(current)
	}
}
