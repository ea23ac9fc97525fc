package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nrana15/clio/internal/client/client"
	"github.com/nrana15/clio/internal/client/services"
	"github.com/nrana15/clio/internal/logging"
)

const (
	DefaultStepTimeout = 30 * time.Second

	queueSize      = 64
	subscriberSize = 16
)

// Unlocker gates a resumed session behind a local check such as a
// biometric prompt. A nil error unlocks.
type Unlocker interface {
	Unlock(ctx context.Context) error
}

type Machine struct {
	auth        services.AuthService
	unlocker    Unlocker
	log         logging.Logger
	stepTimeout time.Duration
	now         func() time.Time

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.RWMutex
	session Session

	subsMu sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	ch chan Transition
}

type Option func(*Machine)

func WithUnlocker(u Unlocker) Option {
	return func(m *Machine) { m.unlocker = u }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Machine) { m.log = l.With("module", "session") }
}

// WithStepTimeout bounds each applied event. Non-positive values are
// ignored.
func WithStepTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.stepTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

func New(auth services.AuthService, opts ...Option) *Machine {
	m := &Machine{
		auth:        auth,
		log:         logging.Discard(),
		stepTimeout: DefaultStepTimeout,
		now:         time.Now,
		events:      make(chan Event, queueSize),
		done:        make(chan struct{}),
		subs:        make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dispatch queues ev. A LoginRequested whose identifier is not exactly one
// valid phone number or email is rejected here and never reaches the queue.
func (m *Machine) Dispatch(ctx context.Context, ev Event) error {
	if login, ok := ev.(LoginRequested); ok {
		if err := login.Identifier.Validate(); err != nil {
			return err
		}
	}

	select {
	case <-m.done:
		return ErrClosed
	default:
	}

	select {
	case m.events <- ev:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyRevoked tells the machine the transport dropped the session after a
// failed refresh. It never blocks, so it is safe to call from a transport
// hook running on any goroutine.
func (m *Machine) NotifyRevoked(context.Context) {
	select {
	case m.events <- sessionRevoked{}:
	default:
		go func() {
			select {
			case m.events <- sessionRevoked{}:
			case <-m.done:
			}
		}()
	}
}

// Subscribe returns a channel of transitions in the order they were applied
// and a function that unsubscribes. A subscriber that falls behind loses its
// oldest undelivered transitions rather than stalling the machine.
func (m *Machine) Subscribe() (<-chan Transition, func()) {
	sub := &subscriber{ch: make(chan Transition, subscriberSize)}

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if m.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	m.subs[sub] = struct{}{}

	return sub.ch, func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		if _, ok := m.subs[sub]; ok {
			delete(m.subs, sub)
			close(sub.ch)
		}
	}
}

// Current returns a copy of the live session.
func (m *Machine) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.session
	if s.Challenge != nil {
		ch := *s.Challenge
		s.Challenge = &ch
	}
	return s
}

// Run applies queued events until ctx is cancelled or Close is called.
func (m *Machine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return nil
		case ev := <-m.events:
			m.apply(ctx, ev)
		}
	}
}

// Close stops Run and closes every subscriber channel.
func (m *Machine) Close() {
	m.closeOnce.Do(func() {
		close(m.done)

		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		m.closed = true
		for sub := range m.subs {
			close(sub.ch)
			delete(m.subs, sub)
		}
	})
}

func (m *Machine) apply(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(ctx, m.stepTimeout)
	defer cancel()

	from := m.Current().State
	m.log.Debug(ctx, "applying event", "state", from.String(), "event", fmt.Sprintf("%T", ev))

	switch e := ev.(type) {
	case Start:
		m.onStart(ctx, from)
	case LoginRequested:
		m.onLogin(ctx, from, e.Identifier)
	case OtpSubmitted:
		m.onOtp(ctx, from, e.Code)
	case LogoutRequested:
		m.onLogout(ctx)
	case PeriodicCheckRequested:
		m.onPeriodicCheck(ctx, from)
	case sessionRevoked:
		m.onRevoked(ctx, from)
	default:
		m.log.Warn(ctx, "unknown event", "event", fmt.Sprintf("%T", ev))
	}
}

func (m *Machine) onStart(ctx context.Context, from State) {
	if from != Initial {
		m.log.Debug(ctx, "start ignored", "state", from.String())
		return
	}
	m.set(Session{State: CheckingSession}, nil)

	grant, err := m.auth.Resume(ctx)
	if err != nil {
		m.log.Warn(ctx, "stored session not resumed", "error", err)
		m.set(Session{State: Unauthenticated}, newError(err))
		return
	}
	if grant == nil {
		m.set(Session{State: Unauthenticated}, nil)
		return
	}

	if m.unlocker != nil {
		if err := m.unlocker.Unlock(ctx); err != nil {
			m.log.Info(ctx, "resume locked", "error", err)
			m.set(Session{State: Unauthenticated}, &Error{Message: errorMessage(errLocked) + ": " + err.Error(), Err: errors.Join(errLocked, err)})
			return
		}
	}

	m.set(authenticated(grant), nil)
}

func (m *Machine) onLogin(ctx context.Context, from State, id client.Identifier) {
	switch from {
	case Unauthenticated, Authenticated, OtpPending:
	default:
		m.set(m.Current(), newError(errNotStarted))
		return
	}

	ch, err := m.auth.StartLogin(ctx, id)
	if err != nil {
		m.set(Session{State: Unauthenticated}, newError(err))
		return
	}
	m.set(Session{State: OtpPending, Identifier: id, Challenge: ch}, nil)
}

func (m *Machine) onOtp(ctx context.Context, from State, code string) {
	cur := m.Current()
	switch {
	case from == Authenticated:
		m.log.Debug(ctx, "otp ignored, already authenticated")
		return
	case from == Initial || from == CheckingSession:
		m.set(cur, newError(errNotStarted))
		return
	case from != OtpPending || cur.Identifier.IsZero():
		m.set(Session{State: Unauthenticated}, newError(errNoChallenge))
		return
	}

	if err := client.ValidateCode(code); err != nil {
		m.set(cur, newError(err))
		return
	}
	if cur.Challenge != nil && cur.Challenge.Expired(m.now()) {
		m.set(cur, newError(errChallengeExpired))
		return
	}

	grant, err := m.auth.CompleteLogin(ctx, cur.Identifier, code)
	if err != nil {
		if errors.Is(err, client.ErrInvalidCode) && cur.Challenge != nil && cur.Challenge.AttemptsRemaining > 0 {
			cur.Challenge.AttemptsRemaining--
		}
		m.set(cur, newError(err))
		return
	}
	m.set(authenticated(grant), nil)
}

func (m *Machine) onLogout(ctx context.Context) {
	if err := m.auth.Logout(ctx); err != nil {
		m.log.Error(ctx, "logout could not clear credentials", "error", err)
		m.set(Session{State: Unauthenticated}, newError(err))
		return
	}
	m.set(Session{State: Unauthenticated}, nil)
}

func (m *Machine) onPeriodicCheck(ctx context.Context, from State) {
	if from != Authenticated {
		return
	}
	ok, err := m.auth.IsLoggedIn(ctx)
	if err != nil {
		m.log.Debug(ctx, "periodic check failed", "error", err)
		return
	}
	if !ok {
		m.set(Session{State: Unauthenticated}, newError(errRevoked))
	}
}

func (m *Machine) onRevoked(ctx context.Context, from State) {
	if from != Authenticated {
		return
	}
	// A revocation queued behind a newer login must not end that session.
	if ok, err := m.auth.IsLoggedIn(ctx); err == nil && ok {
		m.log.Debug(ctx, "stale revocation ignored")
		return
	}
	m.log.Info(ctx, "session revoked by transport")
	m.set(Session{State: Unauthenticated}, newError(errRevoked))
}

func authenticated(g *services.Grant) Session {
	return Session{
		State:        Authenticated,
		UserID:       g.UserID,
		Identifier:   g.Identifier(),
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		ExpiresAt:    g.ExpiresAt,
	}
}

// set stores s and publishes it, with stepErr as the step's error signal.
func (m *Machine) set(s Session, stepErr *Error) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	t := Transition{State: s.State, UserID: s.UserID, Identifier: s.Identifier, Err: stepErr}
	if s.Challenge != nil {
		ch := *s.Challenge
		t.Challenge = &ch
	}
	m.publish(t)
}

func (m *Machine) publish(t Transition) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for sub := range m.subs {
		select {
		case sub.ch <- t:
			continue
		default:
		}
		// Full: drop the oldest and retry once.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- t:
		default:
			m.log.Warn(context.Background(), "transition dropped for slow subscriber", "state", t.State.String())
		}
	}
}
