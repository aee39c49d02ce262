package trigger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rvs/workflow-nodes/internal/model"
	"github.com/rvs/workflow-nodes/internal/node"
	"github.com/rvs/workflow-nodes/internal/runtime"
)

// State represents the current state of a watched node.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Status holds the poll state of a single node.
type Status struct {
	Node    string
	State   State
	LastRun time.Time
	Runs    int
	Error   error
}

// Result is sent on the results channel when a run completes.
type Result struct {
	Node        string
	ExecutionID string
	Items       []model.Item
	Error       error
}

// Runner executes a node of the workflow.
type Runner interface {
	Run(ctx context.Context, nodeName string, items []model.Item) (*runtime.Result, error)
}

// runTimeout is the maximum time allowed for a single run.
const runTimeout = 2 * time.Minute

const defaultInterval = 60 * time.Second

type entry struct {
	name     string
	interval time.Duration
	refresh  chan struct{}
}

// Poller re-runs registered nodes on their poll interval.
type Poller struct {
	runner   Runner
	entries  []*entry
	statuses map[string]*Status
	resultCh chan Result
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// New creates a Poller that runs nodes through r.
func New(r Runner) *Poller {
	return &Poller{
		runner:   r,
		statuses: make(map[string]*Status),
		resultCh: make(chan Result, 16),
		stopCh:   make(chan struct{}),
	}
}

// Register adds a node to be polled every interval. A non-positive
// interval uses the default of one minute.
func (p *Poller) Register(nodeName string, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if interval <= 0 {
		interval = defaultInterval
	}
	p.entries = append(p.entries, &entry{
		name:     nodeName,
		interval: interval,
		refresh:  make(chan struct{}, 1),
	})
	p.statuses[nodeName] = &Status{Node: nodeName, State: StateIdle}
}

// Start launches one polling goroutine per registered node. Each node is
// run immediately and then on every tick until Stop is called or ctx is
// done.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	entries := make([]*entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	for _, e := range entries {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.poll(ctx, e)
		}()
	}
}

// Stop halts all polling goroutines and waits for in-flight runs.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

// Results returns the channel on which run results are delivered.
func (p *Poller) Results() <-chan Result {
	return p.resultCh
}

// Refresh triggers an immediate run of a node. Refreshes of a node that
// already has one pending are coalesced.
func (p *Poller) Refresh(nodeName string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		if e.name != nodeName {
			continue
		}
		select {
		case e.refresh <- struct{}{}:
		default:
		}
	}
}

// RefreshAll triggers an immediate run of every registered node.
func (p *Poller) RefreshAll() {
	p.mu.Lock()
	names := make([]string, len(p.entries))
	for i, e := range p.entries {
		names[i] = e.name
	}
	p.mu.Unlock()

	for _, name := range names {
		p.Refresh(name)
	}
}

// Statuses returns the current status of all registered nodes, sorted by
// node name.
func (p *Poller) Statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]Status, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Node < statuses[j].Node })
	return statuses
}

func (p *Poller) poll(ctx context.Context, e *entry) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	p.runOnce(ctx, e.name)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx, e.name)
		case <-e.refresh:
			p.runOnce(ctx, e.name)
		}
	}
}

// runOnce performs a single run and sends the result without blocking.
func (p *Poller) runOnce(ctx context.Context, name string) {
	p.setStatus(name, StateRunning, nil)

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	res, err := p.runner.Run(runCtx, name, nil)
	if err != nil {
		p.setStatus(name, StateError, err)
		p.sendResult(Result{Node: name, Error: err})
		return
	}

	var items []model.Item
	for _, out := range res.Output {
		items = append(items, out...)
	}

	p.setStatus(name, StateIdle, nil)
	p.sendResult(Result{Node: name, ExecutionID: res.ExecutionID, Items: items})
}

func (p *Poller) setStatus(name string, state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state != StateRunning {
		status.Runs++
		status.LastRun = time.Now()
	}
}

func (p *Poller) sendResult(r Result) {
	select {
	case p.resultCh <- r:
	default:
		// Drop if channel is full to avoid blocking the poller.
	}
}

// IsConfigurationError reports whether a run failed on configuration, in
// which case re-running cannot succeed.
func IsConfigurationError(r Result) bool {
	return r.Error != nil && node.IsConfigurationError(r.Error)
}
