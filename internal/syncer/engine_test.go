package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/expense-sync/constants"
	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/entity"
	"github.com/joseph-ayodele/expense-sync/internal/network"
	"github.com/joseph-ayodele/expense-sync/internal/remote"
	"github.com/joseph-ayodele/expense-sync/internal/repository"
	"github.com/joseph-ayodele/expense-sync/internal/session"
)

const testUser = "user-1"

type switchProber struct {
	up atomic.Bool
}

func (p *switchProber) Probe(context.Context) error {
	if p.up.Load() {
		return nil
	}
	return errors.New("unreachable")
}

// device is one engine with its own local store, sharing a remote store with
// any other device built on the same MemoryStore.
type device struct {
	t       *testing.T
	ctx     context.Context
	store   repository.ExpenseRepository
	remote  *remote.MemoryStore
	prober  *switchProber
	monitor *network.Monitor
	session *session.Session
	engine  *Engine
}

func newDevice(t *testing.T, shared *remote.MemoryStore, opts ...Option) *device {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := repository.Open(ctx, repository.Config{Path: ":memory:"}, logger)
	require.NoError(t, err)

	prober := &switchProber{}
	prober.up.Store(true)
	monitor := network.NewMonitor(prober, network.Config{Interval: time.Hour}, logger)
	monitor.CheckNow(ctx)

	sess := session.New(logger)
	sess.SignIn(testUser)

	store := repository.NewExpenseRepository(db, logger)
	opts = append([]Option{WithRemoteTimeout(5 * time.Second)}, opts...)
	engine := NewEngine(store, shared, monitor, sess, logger, opts...)
	engine.Start(ctx)

	t.Cleanup(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Shutdown(sctx)
		monitor.Stop()
		_ = db.Close()
	})

	return &device{
		t: t, ctx: ctx, store: store, remote: shared, prober: prober,
		monitor: monitor, session: sess, engine: engine,
	}
}

func (d *device) goOffline() {
	d.prober.up.Store(false)
	d.monitor.CheckNow(d.ctx)
}

func (d *device) goOnline() {
	d.prober.up.Store(true)
	d.monitor.CheckNow(d.ctx)
}

func (d *device) waitIdle() {
	d.t.Helper()
	require.Eventually(d.t, func() bool { return !d.engine.Status().Syncing }, 5*time.Second, 5*time.Millisecond)
}

func (d *device) add(category, amount string) entity.Expense {
	d.t.Helper()
	e, err := d.engine.AddOffline(d.ctx, category, decimal.RequireFromString(amount), time.Now(), "")
	require.NoError(d.t, err)
	return e
}

func (d *device) local() []entity.Expense {
	d.t.Helper()
	all, err := d.engine.LoadOffline(d.ctx)
	require.NoError(d.t, err)
	return all
}

func (d *device) unsynced() []entity.Expense {
	d.t.Helper()
	rows, err := d.store.FetchUnsynced(d.ctx)
	require.NoError(d.t, err)
	return rows
}

func (d *device) remoteRows() []entity.Expense {
	d.t.Helper()
	rows, err := d.remote.FetchExpenses(d.ctx, testUser)
	require.NoError(d.t, err)
	return rows
}

func validProfile() entity.Profile {
	now := time.Now().UTC()
	return entity.Profile{
		ID:        uuid.NewString(),
		Email:     "sam@example.com",
		FirstName: "Sam",
		LastName:  "Doe",
		Currency:  "USD",
		Timezone:  "America/New_York",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOfflineAddSyncsWhenBackOnline(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	d.goOffline()

	e := d.add("Food", "12.50")
	assert.Equal(t, "fork.knife", e.IconName)
	assert.Equal(t, testUser, e.UserID)

	st := d.engine.Status()
	assert.False(t, st.Online)
	assert.Equal(t, constants.StatusTextOffline, st.Text())
	assert.Len(t, d.unsynced(), 1)
	assert.Empty(t, d.remoteRows())

	d.goOnline()
	require.Eventually(t, func() bool { return len(d.remoteRows()) == 1 }, 5*time.Second, 5*time.Millisecond)
	d.waitIdle()

	assert.Empty(t, d.unsynced())
	assert.Equal(t, e.ID, d.remoteRows()[0].ID)
	st = d.engine.Status()
	assert.NotNil(t, st.LastSyncAt)
	assert.NoError(t, st.LastError)
	assert.Equal(t, constants.StatusTextOnline, st.Text())
}

func TestFailedUploadKeepsRecordPending(t *testing.T) {
	shared := remote.NewMemoryStore()
	shared.SetFault(func(_ context.Context, op remote.Op, _ string) error {
		if op == remote.OpCreateExpense {
			return common.ConnectivityError("create expense", errors.New("connection reset"))
		}
		return nil
	})
	d := newDevice(t, shared)

	e := d.add("Rent", "900")
	d.waitIdle()

	err := d.engine.SyncNow(d.ctx)
	assert.ErrorIs(t, err, common.ErrConnectivity)
	assert.Len(t, d.unsynced(), 1)
	assert.Len(t, d.local(), 1)
	st := d.engine.Status()
	assert.ErrorIs(t, st.LastError, common.ErrConnectivity)
	assert.Equal(t, constants.StatusTextError, st.Text())

	shared.SetFault(nil)
	require.NoError(t, d.engine.SyncNow(d.ctx))
	assert.Empty(t, d.unsynced())
	assert.NoError(t, d.engine.Status().LastError)

	got, err := shared.FetchExpense(d.ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, e.Amount.Equal(got.Amount))
}

func TestSyncedRowsExistRemotely(t *testing.T) {
	shared := remote.NewMemoryStore()
	d := newDevice(t, shared)
	for _, c := range []string{"Food", "Transport", "Bills"} {
		d.add(c, "3.10")
	}
	require.NoError(t, d.engine.SyncNow(d.ctx))

	for _, l := range d.local() {
		require.True(t, l.Synced)
		_, err := shared.FetchExpense(d.ctx, l.ID)
		assert.NoError(t, err, "synced row %s missing remotely", l.ID)
	}
}

func TestConcurrentRequestsRunOnePass(t *testing.T) {
	shared := remote.NewMemoryStore()
	d := newDevice(t, shared)

	release := make(chan struct{})
	var downloads atomic.Int32
	shared.SetFault(func(ctx context.Context, op remote.Op, _ string) error {
		if op == remote.OpFetchExpenses {
			downloads.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
			}
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- d.engine.SyncNow(d.ctx) }()
	require.Eventually(t, func() bool { return downloads.Load() == 1 }, 5*time.Second, time.Millisecond)

	assert.True(t, d.engine.Status().Syncing)
	assert.Equal(t, constants.StatusTextSyncing, d.engine.Status().Text())
	for i := 0; i < 10; i++ {
		assert.False(t, d.engine.RequestSync(), "request during a pass must be dropped")
	}

	close(release)
	require.NoError(t, <-done)
	d.waitIdle()
	assert.EqualValues(t, 1, downloads.Load())

	assert.True(t, d.engine.RequestSync())
	d.waitIdle()
	assert.EqualValues(t, 2, downloads.Load())
}

func TestRepeatedDownloadIsIdempotent(t *testing.T) {
	shared := remote.NewMemoryStore()
	writer := newDevice(t, shared)
	writer.add("Food", "1")
	writer.add("Health", "2")
	require.NoError(t, writer.engine.SyncNow(writer.ctx))

	reader := newDevice(t, shared)
	require.NoError(t, reader.engine.SyncNow(reader.ctx))
	require.NoError(t, reader.engine.SyncNow(reader.ctx))

	assert.Len(t, reader.local(), 2)
	assert.Empty(t, reader.unsynced())
}

func TestTwoDevicesConverge(t *testing.T) {
	shared := remote.NewMemoryStore()
	a := newDevice(t, shared)
	b := newDevice(t, shared)

	ea := a.add("Shopping", "45.00")
	require.NoError(t, a.engine.SyncNow(a.ctx))

	eb := b.add("Transport", "2.75")
	require.NoError(t, b.engine.SyncNow(b.ctx))
	require.NoError(t, a.engine.SyncNow(a.ctx))

	for _, dev := range []*device{a, b} {
		ids := map[uuid.UUID]bool{}
		for _, e := range dev.local() {
			ids[e.ID] = true
			assert.True(t, e.Synced)
		}
		assert.True(t, ids[ea.ID])
		assert.True(t, ids[eb.ID])
	}
	assert.Len(t, a.remoteRows(), 2)
}

func TestEditedRecordUploadsAsUpdate(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	e := d.add("Food", "10")
	require.NoError(t, d.engine.SyncNow(d.ctx))

	e.Amount = decimal.RequireFromString("11.25")
	e.Category = string(constants.Health)
	require.NoError(t, d.engine.UpdateOffline(d.ctx, e))
	require.NoError(t, d.engine.SyncNow(d.ctx))

	got, err := d.remote.FetchExpense(d.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "11.25", got.Amount.String())
	assert.Equal(t, string(constants.Health), got.Category)
	assert.Empty(t, d.unsynced())
}

func TestUpdateUnknownExpenseIsIgnored(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	ghost := entity.NewExpense("Food", decimal.NewFromInt(1), time.Now(), "fork.knife", testUser)
	require.NoError(t, d.engine.UpdateOffline(d.ctx, ghost))
	assert.Empty(t, d.local())
}

func TestNewerServerCopyReplacesSyncedLocal(t *testing.T) {
	shared := remote.NewMemoryStore()
	a := newDevice(t, shared, WithClock(func() time.Time { return time.Now().Add(time.Hour) }))
	b := newDevice(t, shared)
	legacy := newDevice(t, shared, WithMergePolicy(MergeNone))

	e := a.add("Food", "10")
	require.NoError(t, a.engine.SyncNow(a.ctx))
	require.NoError(t, b.engine.SyncNow(b.ctx))
	require.NoError(t, legacy.engine.SyncNow(legacy.ctx))

	e.Amount = decimal.RequireFromString("20")
	require.NoError(t, a.engine.UpdateOffline(a.ctx, e))
	require.NoError(t, a.engine.SyncNow(a.ctx))

	require.NoError(t, b.engine.SyncNow(b.ctx))
	got, err := b.store.Get(b.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "20", got.Amount.String())
	assert.True(t, got.Synced)

	require.NoError(t, legacy.engine.SyncNow(legacy.ctx))
	old, err := legacy.store.Get(legacy.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", old.Amount.String())
}

func TestDeleteReachesRemote(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	e := d.add("Bills", "60")
	require.NoError(t, d.engine.SyncNow(d.ctx))

	require.NoError(t, d.engine.DeleteOffline(d.ctx, e.ID))
	require.NoError(t, d.engine.SyncNow(d.ctx))

	_, err := d.remote.FetchExpense(d.ctx, e.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, d.local())
	assert.Zero(t, d.engine.PendingDeletes())
}

func TestOfflineDeleteIsNotResurrected(t *testing.T) {
	shared := remote.NewMemoryStore()
	d := newDevice(t, shared)
	e := d.add("Bills", "60")
	require.NoError(t, d.engine.SyncNow(d.ctx))

	d.goOffline()
	require.NoError(t, d.engine.DeleteOffline(d.ctx, e.ID))
	assert.Equal(t, 1, d.engine.PendingDeletes())

	shared.SetFault(func(_ context.Context, op remote.Op, _ string) error {
		if op == remote.OpDeleteExpense {
			return common.ConnectivityError("delete expense", errors.New("timeout"))
		}
		return nil
	})
	d.goOnline()
	d.waitIdle()
	require.Error(t, d.engine.SyncNow(d.ctx))
	assert.Empty(t, d.local(), "pending delete must not be downloaded again")
	assert.Equal(t, 1, d.engine.PendingDeletes())

	shared.SetFault(nil)
	require.NoError(t, d.engine.SyncNow(d.ctx))
	assert.Zero(t, d.engine.PendingDeletes())
	assert.Empty(t, d.remoteRows())
}

func TestDeleteOfUnknownRemoteIDClears(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	require.NoError(t, d.engine.DeleteOffline(d.ctx, uuid.New()))
	require.NoError(t, d.engine.SyncNow(d.ctx))
	assert.Zero(t, d.engine.PendingDeletes())
}

func TestSyncNowOffline(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	d.prober.up.Store(false)

	err := d.engine.SyncNow(d.ctx)
	assert.ErrorIs(t, err, common.ErrOffline)
	st := d.engine.Status()
	assert.False(t, st.Online)
	assert.Equal(t, "no internet connection available", st.LastError.Error())
	assert.Nil(t, st.LastSyncAt)
}

func TestPassWithoutUserIsSkipped(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	d.session.SignOut()

	err := d.engine.SyncNow(d.ctx)
	assert.ErrorIs(t, err, common.ErrNoSession)
	assert.Nil(t, d.engine.Status().LastSyncAt)
}

func TestUploadStampsSessionUser(t *testing.T) {
	shared := remote.NewMemoryStore()
	d := newDevice(t, shared)
	d.session.SignOut()

	e := d.add("Food", "4")
	assert.Empty(t, e.UserID)
	d.waitIdle()

	d.session.SignIn(testUser)
	require.NoError(t, d.engine.SyncNow(d.ctx))
	rows := d.remoteRows()
	require.Len(t, rows, 1)
	assert.Equal(t, testUser, rows[0].UserID)
}

func TestRemoteCallsAreBounded(t *testing.T) {
	shared := remote.NewMemoryStore()
	shared.SetFault(func(ctx context.Context, op remote.Op, _ string) error {
		if op == remote.OpFetchExpenses {
			<-ctx.Done()
			return common.ConnectivityError("fetch expenses: timed out", ctx.Err())
		}
		return nil
	})
	d := newDevice(t, shared, WithRemoteTimeout(20*time.Millisecond))

	start := time.Now()
	err := d.engine.SyncNow(d.ctx)
	assert.ErrorIs(t, err, common.ErrConnectivity)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, d.engine.Status().Syncing)
}

func TestAddOfflineValidates(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	_, err := d.engine.AddOffline(d.ctx, "", decimal.NewFromInt(1), time.Now(), "")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = d.engine.AddOffline(d.ctx, "Food", decimal.NewFromInt(1), time.Time{}, "")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = d.engine.AddOffline(d.ctx, "Food", decimal.RequireFromString("12.345"), time.Now(), "")
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, d.local())

	e := d.add("Food", "12.30")
	d.waitIdle()
	e.Amount = decimal.RequireFromString("0.001")
	assert.ErrorIs(t, d.engine.UpdateOffline(d.ctx, e), common.ErrValidation)
	got, err := d.store.Get(d.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "12.3", got.Amount.String())
}

func TestSubscribeSeesPassLifecycle(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	updates, unsubscribe := d.engine.Subscribe()
	defer unsubscribe()

	require.NoError(t, d.engine.SyncNow(d.ctx))
	require.Eventually(t, func() bool {
		select {
		case st := <-updates:
			return !st.Syncing && st.LastSyncAt != nil
		default:
			return false
		}
	}, 5*time.Second, time.Millisecond)

	unsubscribe()
	_, open := <-updates
	assert.False(t, open)
}

func TestUploadFailureIsolatedToOneRecord(t *testing.T) {
	shared := remote.NewMemoryStore()
	d := newDevice(t, shared)
	d.goOffline()

	e1 := d.add("Food", "10")
	e2 := d.add("Rent", "900")
	e3 := d.add("Travel", "42.50")

	shared.SetFault(func(_ context.Context, op remote.Op, key string) error {
		if op == remote.OpCreateExpense && key == e2.ID.String() {
			return common.ConnectivityError("create expense", errors.New("connection reset"))
		}
		return nil
	})
	d.goOnline()
	d.waitIdle()

	err := d.engine.SyncNow(d.ctx)
	assert.ErrorIs(t, err, common.ErrConnectivity)

	pending := d.unsynced()
	require.Len(t, pending, 1)
	assert.Equal(t, e2.ID, pending[0].ID)

	remoteIDs := map[uuid.UUID]bool{}
	for _, r := range d.remoteRows() {
		remoteIDs[r.ID] = true
	}
	assert.Equal(t, map[uuid.UUID]bool{e1.ID: true, e3.ID: true}, remoteIDs)

	shared.SetFault(nil)
	require.NoError(t, d.engine.SyncNow(d.ctx))
	assert.Empty(t, d.unsynced())
	assert.Len(t, d.remoteRows(), 3)
}

func TestResetFencesOffRunningPass(t *testing.T) {
	shared := remote.NewMemoryStore()
	for _, amt := range []string{"5", "7.25"} {
		_, err := shared.CreateExpense(context.Background(),
			entity.NewExpense("Food", decimal.RequireFromString(amt), time.Now(), "fork.knife", testUser))
		require.NoError(t, err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var blocked atomic.Bool
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	shared.SetFault(func(_ context.Context, op remote.Op, _ string) error {
		if op == remote.OpFetchExpenses && blocked.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
		return nil
	})

	d := newDevice(t, shared)
	t.Cleanup(unblock)

	passErr := make(chan error, 1)
	go func() { passErr <- d.engine.SyncNow(d.ctx) }()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("pass never reached download")
	}

	d.session.SignOut()
	require.NoError(t, d.engine.Reset(d.ctx))
	assert.Empty(t, d.local())

	d.session.SignIn("user-2")
	fresh := d.add("Travel", "3")

	unblock()
	select {
	case err := <-passErr:
		assert.ErrorIs(t, err, common.ErrPassSuperseded)
	case <-time.After(5 * time.Second):
		t.Fatal("pass did not finish")
	}
	d.waitIdle()

	local := d.local()
	require.Len(t, local, 1)
	assert.Equal(t, fresh.ID, local[0].ID)
	assert.False(t, local[0].Synced)
	st := d.engine.Status()
	assert.Nil(t, st.LastSyncAt)
	assert.NoError(t, st.LastError)

	require.NoError(t, d.engine.SyncNow(d.ctx))
	theirs, err := shared.FetchExpenses(d.ctx, "user-2")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, fresh.ID, theirs[0].ID)
	assert.Len(t, d.local(), 1)
}

func TestResetClearsUserState(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	d.add("Food", "1")
	d.waitIdle()
	d.goOffline()
	require.NoError(t, d.engine.QueueProfile(validProfile()))
	require.NoError(t, d.engine.DeleteOffline(d.ctx, uuid.New()))

	require.NoError(t, d.engine.Reset(d.ctx))
	assert.Empty(t, d.local())
	assert.Zero(t, d.engine.PendingDeletes())
	_, pending := d.engine.PendingProfile()
	assert.False(t, pending)
	assert.Nil(t, d.engine.Status().LastSyncAt)
}

func TestShutdownStopsAcceptingPasses(t *testing.T) {
	d := newDevice(t, remote.NewMemoryStore())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.engine.Shutdown(ctx))

	assert.False(t, d.engine.RequestSync())
	assert.Error(t, d.engine.SyncNow(d.ctx))
	require.NoError(t, d.engine.Shutdown(ctx))
}
