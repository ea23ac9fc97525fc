package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nrana15/clio/internal/client/biometric"
	"github.com/nrana15/clio/internal/client/client"
	"github.com/nrana15/clio/internal/client/config"
	"github.com/nrana15/clio/internal/client/credstore"
	"github.com/nrana15/clio/internal/client/devicetrust"
	"github.com/nrana15/clio/internal/client/services"
	"github.com/nrana15/clio/internal/client/session"
	"github.com/nrana15/clio/internal/logging"
	"github.com/nrana15/clio/internal/telemetry"
)

const serviceName = "clio-client"

type App struct {
	config  *config.Config
	logger  logging.Logger
	auth    services.AuthService
	machine *session.Machine
	gate    *biometric.Gate
	checker *devicetrust.Checker
	policy  devicetrust.Policy
	reader  *bufio.Reader
	out     io.Writer
	closers []func(context.Context) error
}

// NewApp wires the encrypted store, the transport, the biometric gate and
// the session machine from c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, c.LogLevel)

	policy, err := c.TrustPolicy()
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(ctx, serviceName, c.OtelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}

	store, err := credstore.OpenEncrypted(ctx, c.DataDir)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("error opening credential store: %w", err)
	}

	api := client.New(c.BaseURL,
		client.WithTimeout(c.RequestTimeout),
		client.WithLogger(logger),
		client.WithTokenSource(services.NewTokenSource(store)),
	)

	var authenticator biometric.Authenticator = biometric.Unavailable{}
	if c.Biometric == config.BiometricFprintd {
		authenticator = biometric.NewFprintd()
	}
	gate := biometric.NewGate(authenticator, store, logger)

	auth := services.NewAuthService(api, store, logger)
	checker := devicetrust.NewChecker(logger, devicetrust.HostProbes()...)

	a := newApp(c, logger, auth, gate, checker, policy, os.Stdin, os.Stdout)
	api.SetOnRevoked(a.machine.NotifyRevoked)
	a.closers = append(a.closers, func(context.Context) error { return store.Close() }, shutdown)
	return a, nil
}

func newApp(c *config.Config, logger logging.Logger, auth services.AuthService, gate *biometric.Gate,
	checker *devicetrust.Checker, policy devicetrust.Policy, in io.Reader, out io.Writer) *App {
	return &App{
		config: c,
		logger: logger,
		auth:   auth,
		machine: session.New(auth,
			session.WithUnlocker(gate),
			session.WithLogger(logger),
			session.WithStepTimeout(c.StepTimeout),
		),
		gate:    gate,
		checker: checker,
		policy:  policy,
		reader:  bufio.NewReader(in),
		out:     &syncWriter{w: out},
	}
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run checks the device, resumes any stored session and runs the REPL
// until the user exits, input ends or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.close()

	a.initSignalHandler(cancel)

	if err := a.checkDevice(ctx); err != nil {
		return err
	}

	transitions, unsubscribe := a.machine.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := a.machine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error(ctx, "session machine stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		a.render(transitions)
	}()
	go func() {
		defer wg.Done()
		a.StartSessionWatcher(ctx, a.config.CheckInterval)
	}()

	if err := a.machine.Dispatch(ctx, session.Start{}); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Welcome to clio (type 'help' for commands)")
	runREPL(ctx, a, a.statusLine, a.reader, a.out)

	cancel()
	a.machine.Close()
	wg.Wait()
	return nil
}

// StartSessionWatcher posts a periodic liveness check until ctx is done.
func (a *App) StartSessionWatcher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.machine.Dispatch(ctx, session.PeriodicCheckRequested{}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, fn := range a.closers {
		if err := fn(ctx); err != nil {
			a.logger.Error(ctx, "shutdown", "error", err)
		}
	}
}

// syncWriter serialises output from the REPL and the transition renderer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
