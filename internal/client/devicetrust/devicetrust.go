// Package devicetrust evaluates whether the host looks compromised before a
// session is allowed to start.
//
// A Checker runs independent probes concurrently. A probe that errors or
// panics counts as "not detected", so one broken probe never blocks the
// user. A Policy then turns the resulting Report into a block or warn
// Decision.
package devicetrust

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/nrana15/clio/internal/common"
	"github.com/nrana15/clio/internal/logging"
)

type ThreatKind string

const (
	Root         ThreatKind = "root"
	Jailbreak    ThreatKind = "jailbreak"
	Emulator     ThreatKind = "emulator"
	Debugger     ThreatKind = "debugger"
	MockLocation ThreatKind = "mock_location"
)

// AllThreats lists every kind in report order.
var AllThreats = []ThreatKind{Root, Jailbreak, Emulator, Debugger, MockLocation}

func ParseThreatKind(s string) (ThreatKind, error) {
	k := ThreatKind(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(AllThreats, k) {
		return k, nil
	}
	return "", fmt.Errorf("unknown threat kind %q", s)
}

// Probe detects one threat kind.
type Probe interface {
	Kind() ThreatKind
	Detect(ctx context.Context) (bool, error)
}

// ProbeFunc adapts a function to a Probe.
type ProbeFunc struct {
	K  ThreatKind
	Fn func(ctx context.Context) (bool, error)
}

func (p ProbeFunc) Kind() ThreatKind { return p.K }

func (p ProbeFunc) Detect(ctx context.Context) (bool, error) { return p.Fn(ctx) }

// Report is the outcome of one check.
type Report struct {
	IsSecure bool
	Threats  []ThreatKind
}

func (r Report) Has(k ThreatKind) bool {
	return slices.Contains(r.Threats, k)
}

type Checker struct {
	probes []Probe
	log    logging.Logger
}

func NewChecker(log logging.Logger, probes ...Probe) *Checker {
	return &Checker{probes: probes, log: log.With("module", "devicetrust")}
}

// Check runs every probe and waits for all of them.
func (c *Checker) Check(ctx context.Context) Report {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		detected = map[ThreatKind]struct{}{}
	)

	for _, p := range c.probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			if c.run(ctx, p) {
				mu.Lock()
				detected[p.Kind()] = struct{}{}
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	threats := make([]ThreatKind, 0, len(detected))
	for k := range detected {
		threats = append(threats, k)
	}
	sort.Slice(threats, func(i, j int) bool {
		return slices.Index(AllThreats, threats[i]) < slices.Index(AllThreats, threats[j])
	})

	return Report{IsSecure: len(threats) == 0, Threats: threats}
}

func (c *Checker) run(ctx context.Context, p Probe) (found bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn(ctx, "probe panicked", "kind", string(p.Kind()), "panic", fmt.Sprint(r))
			found = false
		}
	}()

	found, err := p.Detect(ctx)
	if err != nil {
		c.log.Warn(ctx, "probe failed", "kind", string(p.Kind()), "error", err)
		return false
	}
	return found
}

// Policy says which threat kinds block. Kinds not in the map warn.
type Policy map[ThreatKind]bool

// DefaultPolicy blocks only root and jailbreak. The other probes are prone
// to false positives on developer machines and CI runners.
func DefaultPolicy() Policy {
	return Policy{
		Root:         true,
		Jailbreak:    true,
		Emulator:     false,
		Debugger:     false,
		MockLocation: false,
	}
}

// WithBlocking returns a copy of p with the given kinds set to block.
func (p Policy) WithBlocking(kinds ...ThreatKind) Policy {
	out := make(Policy, len(p)+len(kinds))
	for k, v := range p {
		out[k] = v
	}
	for _, k := range kinds {
		out[k] = true
	}
	return out
}

type Decision struct {
	Block    bool
	Warn     bool
	Blocking []ThreatKind
	Warnings []ThreatKind
}

func (p Policy) Decide(r Report) Decision {
	var d Decision
	for _, k := range r.Threats {
		if p[k] {
			d.Blocking = append(d.Blocking, k)
		} else {
			d.Warnings = append(d.Warnings, k)
		}
	}
	d.Block = len(d.Blocking) > 0
	d.Warn = len(d.Warnings) > 0
	return d
}

// Err returns an error wrapping common.ErrDeviceUntrusted when d blocks.
func (d Decision) Err() error {
	if !d.Block {
		return nil
	}
	names := make([]string, len(d.Blocking))
	for i, k := range d.Blocking {
		names[i] = string(k)
	}
	return fmt.Errorf("%w: %s", common.ErrDeviceUntrusted, strings.Join(names, ", "))
}
