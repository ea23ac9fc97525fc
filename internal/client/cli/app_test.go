package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrana15/clio/internal/client/biometric"
	"github.com/nrana15/clio/internal/client/client"
	"github.com/nrana15/clio/internal/client/config"
	"github.com/nrana15/clio/internal/client/credstore"
	"github.com/nrana15/clio/internal/client/devicetrust"
	"github.com/nrana15/clio/internal/client/services"
	"github.com/nrana15/clio/internal/client/session"
	"github.com/nrana15/clio/internal/common"
	"github.com/nrana15/clio/internal/logging"
)

const goodCode = "123456"

type fakeAuth struct {
	mu       sync.Mutex
	loggedIn bool
	logouts  int
	checks   int
}

func (f *fakeAuth) StartLogin(_ context.Context, id client.Identifier) (*client.OtpChallenge, error) {
	return &client.OtpChallenge{
		Identifier:        id,
		RequestedAt:       time.Now(),
		ExpiresInSeconds:  common.OtpLifetimeSeconds,
		AttemptsRemaining: common.OtpMaxAttempts,
		DevCode:           goodCode,
	}, nil
}

func (f *fakeAuth) CompleteLogin(_ context.Context, id client.Identifier, code string) (*services.Grant, error) {
	if code != goodCode {
		return nil, client.ErrInvalidCode
	}
	f.mu.Lock()
	f.loggedIn = true
	f.mu.Unlock()
	return &services.Grant{Record: credstore.Record{
		UserID:       "u-1",
		PhoneNumber:  id.PhoneNumber,
		Email:        id.Email,
		AccessToken:  "access",
		RefreshToken: "refresh",
	}}, nil
}

func (f *fakeAuth) Resume(context.Context) (*services.Grant, error) { return nil, nil }

func (f *fakeAuth) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = false
	f.logouts++
	return nil
}

func (f *fakeAuth) IsLoggedIn(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.loggedIn, nil
}

func (f *fakeAuth) Profile(context.Context) (*client.User, error) {
	return &client.User{ID: "u-1", PhoneNumber: "+886912345678", IsVerified: true}, nil
}

type fakeSensor struct {
	types []biometric.Type
	err   error
}

func (s *fakeSensor) Authenticate(context.Context, string) error { return s.err }

func (s *fakeSensor) AvailableTypes(context.Context) ([]biometric.Type, error) {
	return s.types, nil
}

func newTestApp(t *testing.T, auth services.AuthService, sensor biometric.Authenticator, in io.Reader, out io.Writer, probes ...devicetrust.Probe) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.CheckInterval = 10 * time.Millisecond

	log := logging.Discard()
	gate := biometric.NewGate(sensor, credstore.NewMemory(), log)
	return newApp(cfg, log, auth, gate, devicetrust.NewChecker(log, probes...), devicetrust.DefaultPolicy(), in, out)
}

func detected(k devicetrust.ThreatKind) devicetrust.Probe {
	return devicetrust.ProbeFunc{K: k, Fn: func(context.Context) (bool, error) { return true, nil }}
}

func TestRun_LoginFlow(t *testing.T) {
	auth := &fakeAuth{}
	pr, pw := io.Pipe()
	var out bytes.Buffer
	a := newTestApp(t, auth, biometric.Unavailable{}, pr, &out)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	waitFor := func(want session.State) {
		require.Eventually(t, func() bool { return a.state() == want }, 2*time.Second, 5*time.Millisecond, "waiting for %s", want)
	}

	waitFor(session.Unauthenticated)
	fmt.Fprintln(pw, "login +886912345678")
	waitFor(session.OtpPending)

	fmt.Fprintln(pw, "code 000000")
	fmt.Fprintln(pw, "code "+goodCode)
	waitFor(session.Authenticated)
	assert.Equal(t, "u-1", a.machine.Current().UserID)

	fmt.Fprintln(pw, "whoami")
	require.Eventually(t, func() bool {
		auth.mu.Lock()
		defer auth.mu.Unlock()
		return auth.checks > 0
	}, 2*time.Second, 5*time.Millisecond, "periodic check runs")

	fmt.Fprintln(pw, "logout")
	waitFor(session.Unauthenticated)
	fmt.Fprintln(pw, "exit")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	text := out.String()
	assert.Contains(t, text, "Code sent to +886912345678")
	assert.Contains(t, text, "development code: "+goodCode)
	assert.Contains(t, text, "Invalid OTP")
	assert.Contains(t, text, "Signed in as +886912345678")
	assert.Contains(t, text, "User ID: u-1")
	assert.Contains(t, text, "Signed out")
	assert.Equal(t, 1, auth.logouts)
}

func TestRun_UntrustedDeviceRefused(t *testing.T) {
	var out bytes.Buffer
	a := newTestApp(t, &fakeAuth{}, biometric.Unavailable{}, strings.NewReader("n\n"), &out, detected(devicetrust.Root))

	err := a.Run(context.Background())
	assert.ErrorIs(t, err, common.ErrDeviceUntrusted)
	assert.Contains(t, out.String(), "This device is not trusted: root detected")
	assert.Equal(t, session.Initial, a.state(), "machine never started")
}

func TestCheckDevice(t *testing.T) {
	t.Run("override", func(t *testing.T) {
		var out bytes.Buffer
		a := newTestApp(t, &fakeAuth{}, biometric.Unavailable{}, strings.NewReader("y\n"), &out, detected(devicetrust.Jailbreak))
		assert.NoError(t, a.checkDevice(context.Background()))
	})

	t.Run("warning only", func(t *testing.T) {
		var out bytes.Buffer
		a := newTestApp(t, &fakeAuth{}, biometric.Unavailable{}, strings.NewReader(""), &out, detected(devicetrust.Debugger))
		assert.NoError(t, a.checkDevice(context.Background()))
		assert.Contains(t, out.String(), "Warning: debugger detected")
		assert.NotContains(t, out.String(), "[y/N]")
	})

	t.Run("clean", func(t *testing.T) {
		var out bytes.Buffer
		a := newTestApp(t, &fakeAuth{}, biometric.Unavailable{}, strings.NewReader(""), &out)
		assert.NoError(t, a.checkDevice(context.Background()))
		assert.Empty(t, out.String())
	})
}

func TestTrust(t *testing.T) {
	var out bytes.Buffer
	a := newTestApp(t, &fakeAuth{}, biometric.Unavailable{}, strings.NewReader(""), &out, detected(devicetrust.Root), detected(devicetrust.Emulator))
	require.NoError(t, a.Trust(context.Background()))
	assert.Contains(t, out.String(), "root (blocking)")
	assert.Contains(t, out.String(), "emulator")

	out.Reset()
	a = newTestApp(t, &fakeAuth{}, biometric.Unavailable{}, strings.NewReader(""), &out)
	require.NoError(t, a.Trust(context.Background()))
	assert.Contains(t, out.String(), "No threats detected")
}

func TestBiometricCommand(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	a := newTestApp(t, &fakeAuth{}, &fakeSensor{types: []biometric.Type{biometric.Fingerprint}}, strings.NewReader(""), &out)

	require.NoError(t, a.Biometric(ctx, nil))
	assert.Contains(t, out.String(), "Biometric unlock: off")

	require.NoError(t, a.Biometric(ctx, []string{"on"}))
	enabled, err := a.gate.IsEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, a.Biometric(ctx, []string{"off"}))
	enabled, err = a.gate.IsEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	assert.Error(t, a.Biometric(ctx, []string{"maybe"}))
}

func TestBiometricCommand_NoSensor(t *testing.T) {
	var out bytes.Buffer
	a := newTestApp(t, &fakeAuth{}, biometric.Unavailable{}, strings.NewReader(""), &out)

	err := a.Biometric(context.Background(), []string{"on"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")
}

func TestCommandsOutsideTheirState(t *testing.T) {
	var out bytes.Buffer
	a := newTestApp(t, &fakeAuth{}, biometric.Unavailable{}, bufio.NewReader(strings.NewReader("")), &out)
	ctx := context.Background()

	assert.ErrorIs(t, a.Whoami(ctx), errNotSignedIn)
	assert.ErrorIs(t, a.SubmitCode(ctx, nil), errNoPendingCode)
	assert.ErrorIs(t, a.Login(ctx, []string{"12"}), client.ErrMalformedIdentifier)

	require.NoError(t, a.Status(ctx))
	assert.Contains(t, out.String(), "Initial")
}

func TestStartSessionWatcher_StopsOnCancel(t *testing.T) {
	a := newTestApp(t, &fakeAuth{}, biometric.Unavailable{}, strings.NewReader(""), io.Discard)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		a.StartSessionWatcher(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
