package syncer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/entity"
)

// runPass performs one reconciliation. Remote failures are recorded and the
// pass moves on; local storage failures are logged and swallowed.
// A Reset during the pass supersedes it: the remaining steps are skipped
// and neither lastSyncAt nor lastError is recorded.
func (e *Engine) runPass(ctx context.Context, logger *slog.Logger) error {
	gen := e.currentGeneration()
	userID := e.session.CurrentUserID()
	if userID == "" {
		logger.Info("sync pass skipped, no signed-in user")
		return common.ErrNoSession
	}
	ctx = common.WithUserID(ctx, userID)

	steps := []func() error{
		func() error { return e.retryPendingProfile(ctx, logger, gen) },
		func() error { return e.flushDeletes(ctx, logger, gen) },
		func() error { return e.upload(ctx, logger, gen, userID) },
		func() error { return e.download(ctx, logger, gen, userID) },
	}

	var lastErr error
	for _, step := range steps {
		err := step()
		if errors.Is(err, common.ErrPassSuperseded) {
			logger.Info("sync pass superseded by reset")
			return err
		}
		if err != nil {
			lastErr = err
		}
	}

	now := e.now().UTC()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		logger.Info("sync pass superseded by reset")
		return common.ErrPassSuperseded
	}
	e.lastSyncAt = &now
	e.lastError = lastErr
	return lastErr
}

func (e *Engine) currentGeneration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// fenced runs write unless a Reset happened after gen was taken. Reset
// cannot start while write runs.
func (e *Engine) fenced(gen uint64, write func() error) error {
	e.resetMu.RLock()
	defer e.resetMu.RUnlock()
	if e.currentGeneration() != gen {
		return common.ErrPassSuperseded
	}
	return write()
}

func (e *Engine) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.remoteTimeout)
}

// flushDeletes replays local deletes against the remote store. An id stays
// pending until the remote confirms the delete or reports it gone.
func (e *Engine) flushDeletes(ctx context.Context, logger *slog.Logger, gen uint64) error {
	e.mu.Lock()
	ids := make([]uuid.UUID, 0, len(e.pendingDeletes))
	for id := range e.pendingDeletes {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	var lastErr error
	for _, id := range ids {
		rctx, cancel := e.remoteCtx(ctx)
		err := e.remote.DeleteExpense(rctx, id)
		cancel()

		if err != nil && !errors.Is(err, common.ErrNotFound) {
			logger.Warn("remote delete failed, will retry", "expense_id", id, "error", err)
			lastErr = err
			continue
		}
		e.mu.Lock()
		if e.generation != gen {
			e.mu.Unlock()
			return common.ErrPassSuperseded
		}
		delete(e.pendingDeletes, id)
		e.mu.Unlock()
		logger.Debug("remote delete applied", "expense_id", id)
	}
	return lastErr
}

// upload pushes every unsynced row. An id the remote already has is an
// edited record and goes through update instead.
func (e *Engine) upload(ctx context.Context, logger *slog.Logger, gen uint64, userID string) error {
	var rows []entity.Expense
	err := e.fenced(gen, func() (err error) {
		rows, err = e.store.FetchUnsynced(ctx)
		return err
	})
	if errors.Is(err, common.ErrPassSuperseded) {
		return err
	}
	if err != nil {
		logger.Error("cannot list unsynced expenses", "error", err)
		return nil
	}

	var lastErr error
	uploaded := 0
	for _, exp := range rows {
		exp.UserID = userID

		if err := e.push(ctx, exp); err != nil {
			logger.Warn("upload failed, expense stays pending", "expense_id", exp.ID, "error", err)
			lastErr = err
			continue
		}

		var ok bool
		err := e.fenced(gen, func() (err error) {
			ok, err = e.store.MarkSyncedIfUnchanged(ctx, exp.ID, exp.UpdatedAt)
			return err
		})
		switch {
		case errors.Is(err, common.ErrPassSuperseded):
			return err
		case err != nil:
			logger.Error("uploaded expense not marked synced", "expense_id", exp.ID, "error", err)
		case !ok:
			logger.Info("expense changed during upload, stays pending", "expense_id", exp.ID)
		default:
			uploaded++
		}
	}
	if len(rows) > 0 {
		logger.Info("upload finished", "pending", len(rows), "uploaded", uploaded)
	}
	return lastErr
}

func (e *Engine) push(ctx context.Context, exp entity.Expense) error {
	rctx, cancel := e.remoteCtx(ctx)
	defer cancel()

	_, err := e.remote.CreateExpense(rctx, exp)
	if errors.Is(err, common.ErrConflict) {
		_, err = e.remote.UpdateExpense(rctx, exp)
	}
	return err
}

// download pulls the user's remote rows. Ids missing locally are inserted
// as synced; shared ids are merged according to the merge policy.
func (e *Engine) download(ctx context.Context, logger *slog.Logger, gen uint64, userID string) error {
	rctx, cancel := e.remoteCtx(ctx)
	serverRows, err := e.remote.FetchExpenses(rctx, userID)
	cancel()
	if err != nil {
		logger.Warn("download failed", "error", err)
		return err
	}

	localRows, err := e.store.FetchAll(ctx)
	if err != nil {
		logger.Error("cannot list local expenses", "error", err)
		return nil
	}
	local := make(map[uuid.UUID]entity.Expense, len(localRows))
	for _, l := range localRows {
		local[l.ID] = l
	}

	e.mu.Lock()
	deleting := make(map[uuid.UUID]struct{}, len(e.pendingDeletes))
	for id := range e.pendingDeletes {
		deleting[id] = struct{}{}
	}
	e.mu.Unlock()

	inserted, replaced := 0, 0
	for _, srv := range serverRows {
		if _, ok := deleting[srv.ID]; ok {
			continue
		}

		l, exists := local[srv.ID]
		if !exists {
			err := e.fenced(gen, func() error {
				if err := e.store.Save(ctx, srv); err != nil {
					logger.Error("cannot store downloaded expense", "expense_id", srv.ID, "error", err)
					return err
				}
				if err := e.store.MarkSynced(ctx, srv.ID); err != nil {
					logger.Error("downloaded expense not marked synced", "expense_id", srv.ID, "error", err)
					return err
				}
				return nil
			})
			if errors.Is(err, common.ErrPassSuperseded) {
				return err
			}
			if err == nil {
				inserted++
			}
			continue
		}

		if e.merge != MergeLastWriterWins || !l.Synced || !srv.UpdatedAt.After(l.UpdatedAt) {
			continue
		}
		var ok bool
		err := e.fenced(gen, func() (err error) {
			ok, err = e.store.Replace(ctx, srv)
			return err
		})
		if errors.Is(err, common.ErrPassSuperseded) {
			return err
		}
		if err != nil {
			logger.Error("cannot merge server copy", "expense_id", srv.ID, "error", err)
			continue
		}
		if ok {
			replaced++
		}
	}
	logger.Info("download finished", "remote", len(serverRows), "inserted", inserted, "replaced", replaced)
	return nil
}
