package scan

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"golang.org/x/xerrors"

	"github.com/soter-security/soter/inventory"
	"github.com/soter-security/soter/wpvulndb"
)

var ErrAlreadyRunning = xerrors.New("a scan is already running")

type Client interface {
	Plugins(slug string) (wpvulndb.Response, error)
	Themes(slug string) (wpvulndb.Response, error)
	Core(version string) (wpvulndb.Response, error)
}

type Inventory interface {
	Load() (inventory.Inventory, error)
}

type Notifier interface {
	Notify(Result) error
}

type Option func(*Scanner)

func WithMetrics(m *Metrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithProgress draws a progress bar on w while components are checked.
func WithProgress(w io.Writer) Option {
	return func(s *Scanner) { s.progress = w }
}

func withClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// Scanner checks every installed component of a site against the
// vulnerability database. Components are queried one at a time.
type Scanner struct {
	client    Client
	inventory Inventory
	notifier  Notifier
	metrics   *Metrics
	progress  io.Writer
	now       func() time.Time

	running sync.Mutex

	mu    sync.Mutex
	state State
}

func NewScanner(client Client, inv Inventory, notifier Notifier, opts ...Option) *Scanner {
	s := &Scanner{
		client:    client,
		inventory: inv,
		notifier:  notifier,
		now:       time.Now,
		state:     Idle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scanner) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Run performs one scan cycle. A component that cannot be checked is recorded
// as a failure and the cycle moves on. The result is handed to the notifier
// even when nothing was found. Calling Run while a cycle is in progress
// returns ErrAlreadyRunning.
func (s *Scanner) Run() (Result, error) {
	if !s.running.TryLock() {
		return Result{}, ErrAlreadyRunning
	}
	defer s.running.Unlock()

	s.setState(Running)
	result := Result{Findings: []Finding{}, StartedAt: s.now()}

	inv, err := s.inventory.Load()
	if err != nil {
		s.setState(Idle)
		return Result{}, xerrors.Errorf("failed to load the inventory: %w", err)
	}

	components := inv.Components()
	log.Printf("Checking %d components", len(components))

	var bar *pb.ProgressBar
	if s.progress != nil {
		bar = pb.New(len(components)).SetWriter(s.progress).Start()
	}
	for _, c := range components {
		vulns, err := s.check(c)
		if err != nil {
			log.Printf("Failed to check %s: %s", c, err)
			result.Failures = append(result.Failures, Failure{Component: c, Err: err})
		} else {
			for _, v := range vulns {
				result.Findings = append(result.Findings, Finding{Component: c, Vulnerability: v})
			}
			result.Scanned++
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	result.State = Completed
	if len(result.Failures) > 0 {
		result.State = PartialFailure
	}
	result.FinishedAt = s.now()
	log.Printf("Scan %s: %d vulnerabilities, %d failures", result.State, len(result.Findings), len(result.Failures))

	s.metrics.observeScan(result)
	if s.notifier != nil {
		if err = s.notifier.Notify(result); err != nil {
			log.Printf("Notification error: %s", err)
		}
	}

	s.setState(result.State)
	return result, nil
}

func (s *Scanner) check(c inventory.Component) ([]wpvulndb.Vulnerability, error) {
	var resp wpvulndb.Response
	var err error
	switch c.Kind {
	case wpvulndb.KindPlugin:
		resp, err = s.client.Plugins(c.Slug)
	case wpvulndb.KindTheme:
		resp, err = s.client.Themes(c.Slug)
	case wpvulndb.KindCore:
		resp, err = s.client.Core(c.Version)
	default:
		err = xerrors.Errorf("unknown component kind %q: %w", c.Kind, wpvulndb.ErrInvalidArgument)
	}
	if err != nil {
		s.metrics.observeQuery(c.Kind, "error")
		return nil, err
	}

	vulns := resp.Applicable(c.Version)
	if len(vulns) > 0 {
		s.metrics.observeQuery(c.Kind, "vulnerable")
	} else {
		s.metrics.observeQuery(c.Kind, "clear")
	}
	return vulns, nil
}
