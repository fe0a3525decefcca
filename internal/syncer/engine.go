package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/expense-sync/constants"
	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/entity"
	"github.com/joseph-ayodele/expense-sync/internal/network"
	"github.com/joseph-ayodele/expense-sync/internal/remote"
	"github.com/joseph-ayodele/expense-sync/internal/repository"
	"github.com/joseph-ayodele/expense-sync/internal/session"
)

// Reachability is the part of the network monitor the engine needs.
type Reachability interface {
	IsOnline() bool
	CheckNow(ctx context.Context) constants.NetworkStatus
	OnChange(h network.Handler)
}

const (
	triggerNetwork  = "network"
	triggerManual   = "manual"
	triggerMutation = "mutation"
	triggerPeriodic = "periodic"
	triggerRequest  = "request"
)

// pass is one reconciliation run. done is closed when it finishes and err
// then holds the last error the pass recorded.
type pass struct {
	id      string
	trigger string
	done    chan struct{}
	err     error
}

// Engine keeps the local store and the remote store consistent. Mutations
// land locally and return at once; reconciliation runs on a single worker
// goroutine, one pass at a time.
type Engine struct {
	store   repository.ExpenseRepository
	remote  remote.Client
	monitor Reachability
	session session.Provider
	logger  *slog.Logger

	merge         MergePolicy
	remoteTimeout time.Duration
	syncInterval  time.Duration
	now           func() time.Time

	state atomic.Int32
	cmds  chan *pass
	stop  chan struct{}
	wg    sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	// resetMu is held shared by a pass around each local write and
	// exclusively by Reset.
	resetMu sync.RWMutex

	mu             sync.Mutex
	closed         bool
	generation     uint64
	current        *pass
	lastSyncAt     *time.Time
	lastError      error
	pendingProfile *entity.Profile
	currentProfile *entity.Profile
	pendingDeletes map[uuid.UUID]struct{}
	subs           map[int]chan Status
	nextSub        int
}

func NewEngine(
	store repository.ExpenseRepository,
	client remote.Client,
	monitor Reachability,
	sess session.Provider,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:          store,
		remote:         client,
		monitor:        monitor,
		session:        sess,
		logger:         logger,
		merge:          MergeLastWriterWins,
		remoteTimeout:  15 * time.Second,
		now:            time.Now,
		cmds:           make(chan *pass, 1),
		stop:           make(chan struct{}),
		pendingDeletes: make(map[uuid.UUID]struct{}),
		subs:           make(map[int]chan Status),
	}
	for _, o := range opts {
		o(e)
	}
	e.state.Store(int32(constants.SyncIdle))
	monitor.OnChange(e.onNetworkChange)
	return e
}

// Start launches the worker and, if configured, the periodic trigger.
// Passes run detached from ctx cancellation; use Shutdown to stop.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		base := context.WithoutCancel(ctx)

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.logger.Info("sync worker started", "merge_policy", e.merge, "remote_timeout", e.remoteTimeout)
			for p := range e.cmds {
				e.execute(base, p)
			}
			e.logger.Info("sync worker stopped")
		}()

		if e.syncInterval > 0 {
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				ticker := time.NewTicker(e.syncInterval)
				defer ticker.Stop()
				for {
					select {
					case <-e.stop:
						return
					case <-ticker.C:
						e.trigger(triggerPeriodic)
					}
				}
			}()
		}
	})
}

// Shutdown stops accepting passes and waits for the in-flight one to end,
// or for ctx to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.cmds)
		close(e.stop)
		for id, ch := range e.subs {
			delete(e.subs, id)
			close(ch)
		}
		e.mu.Unlock()
	})

	done := make(chan struct{})
	go func() { defer close(done); e.wg.Wait() }()

	select {
	case <-ctx.Done():
		e.logger.Warn("shutdown interrupted by context")
		return ctx.Err()
	case <-done:
		e.logger.Info("sync engine shut down")
		return nil
	}
}

// RequestSync starts a pass if the engine is online and idle. It never
// blocks and reports whether a pass was started; requests made while a pass
// is running are dropped.
func (e *Engine) RequestSync() bool {
	return e.trigger(triggerRequest)
}

// SyncNow re-checks reachability, then runs a pass and waits for it. When a
// pass is already running it waits for that one instead.
func (e *Engine) SyncNow(ctx context.Context) error {
	if e.monitor.CheckNow(ctx) != constants.NetworkOnline {
		e.mu.Lock()
		e.lastError = common.ErrOffline
		e.mu.Unlock()
		e.publish()
		e.logger.Warn("manual sync skipped", "error", common.ErrOffline)
		return common.ErrOffline
	}

	p, started := e.begin(triggerManual)
	if p == nil {
		if e.isClosed() {
			return common.NewAppError("ENGINE_CLOSED", "sync engine is shut down", nil)
		}
		// went offline between the probe and the gate
		return common.ErrOffline
	}
	if !started {
		e.logger.Debug("manual sync joined running pass", "pass_id", p.id)
	}

	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) trigger(reason string) bool {
	_, started := e.begin(reason)
	return started
}

// begin moves Idle -> Syncing and hands a new pass to the worker. When a
// pass is already running it returns that pass with started=false.
func (e *Engine) begin(reason string) (p *pass, started bool) {
	if !e.monitor.IsOnline() {
		e.logger.Debug("sync not started, offline", "trigger", reason)
		return nil, false
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, false
	}
	if !e.state.CompareAndSwap(int32(constants.SyncIdle), int32(constants.SyncSyncing)) {
		cur := e.current
		e.mu.Unlock()
		e.logger.Debug("sync request dropped, pass in flight", "trigger", reason)
		return cur, false
	}
	p = &pass{id: uuid.NewString(), trigger: reason, done: make(chan struct{})}
	e.current = p
	select {
	case e.cmds <- p:
	default:
		// only one pass exists at a time so the slot is always free
		e.current = nil
		e.state.Store(int32(constants.SyncIdle))
		e.mu.Unlock()
		e.logger.Error("sync worker queue unexpectedly full", "trigger", reason)
		return nil, false
	}
	e.mu.Unlock()

	e.publish()
	return p, true
}

func (e *Engine) execute(ctx context.Context, p *pass) {
	start := e.now()
	ctx = common.WithPassID(ctx, p.id)
	logger := e.logger.With("pass_id", p.id, "trigger", p.trigger)
	logger.Info("sync pass started")

	p.err = e.runPass(ctx, logger)

	e.mu.Lock()
	e.current = nil
	e.state.Store(int32(constants.SyncIdle))
	e.mu.Unlock()
	close(p.done)
	e.publish()

	logger.Info("sync pass finished", "duration", e.now().Sub(start), "error", p.err)
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) onNetworkChange(t network.Transition) {
	e.publish()
	if t.CameOnline() {
		e.logger.Info("back online, starting sync")
		e.trigger(triggerNetwork)
	}
}

// AddOffline stores a new expense locally and returns it at once. A sync is
// requested when online.
func (e *Engine) AddOffline(ctx context.Context, category string, amount decimal.Decimal, date time.Time, iconName string) (entity.Expense, error) {
	if iconName == "" {
		iconName = constants.IconFor(category)
	}
	if err := validateExpenseInput(category, amount, date, iconName); err != nil {
		return entity.Expense{}, err
	}

	exp := entity.NewExpense(category, amount, date, iconName, e.session.CurrentUserID())
	if err := e.store.Save(ctx, exp); err != nil {
		return entity.Expense{}, err
	}
	e.logger.Info("expense saved offline", "expense_id", exp.ID, "category", exp.Category)

	e.trigger(triggerMutation)
	return exp, nil
}

// UpdateOffline rewrites an existing local expense and flags it for upload.
// Unknown ids are ignored.
func (e *Engine) UpdateOffline(ctx context.Context, exp entity.Expense) error {
	if err := validateExpenseInput(exp.Category, exp.Amount, exp.Date, exp.IconName); err != nil {
		return err
	}
	exp.Touch(e.now())

	found, err := e.store.Update(ctx, exp)
	if err != nil {
		return err
	}
	if !found {
		e.logger.Warn("update ignored, expense not found locally", "expense_id", exp.ID)
		return nil
	}
	e.logger.Info("expense updated offline", "expense_id", exp.ID)

	e.trigger(triggerMutation)
	return nil
}

// DeleteOffline removes the expense locally and queues a remote delete for
// the next pass.
func (e *Engine) DeleteOffline(ctx context.Context, id uuid.UUID) error {
	n, err := e.store.Delete(ctx, id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.pendingDeletes[id] = struct{}{}
	e.mu.Unlock()
	e.logger.Info("expense deleted offline", "expense_id", id, "rows", n)

	e.trigger(triggerMutation)
	return nil
}

// LoadOffline lists cached expenses, newest date first.
func (e *Engine) LoadOffline(ctx context.Context) ([]entity.Expense, error) {
	return e.store.FetchAll(ctx)
}

// Reset clears everything tied to the signed-out user: the local store, the
// pending profile and pending deletes. A pass already running when Reset is
// called makes no further local writes and records no outcome.
func (e *Engine) Reset(ctx context.Context) error {
	e.resetMu.Lock()
	defer e.resetMu.Unlock()

	e.mu.Lock()
	e.generation++
	e.pendingProfile = nil
	e.currentProfile = nil
	e.pendingDeletes = make(map[uuid.UUID]struct{})
	e.lastError = nil
	e.lastSyncAt = nil
	e.mu.Unlock()

	err := e.store.ClearAll(ctx)
	e.publish()
	if err != nil {
		return err
	}
	e.logger.Info("sync state reset")
	return nil
}

// PendingDeletes reports how many remote deletes are waiting for a pass.
func (e *Engine) PendingDeletes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pendingDeletes)
}
