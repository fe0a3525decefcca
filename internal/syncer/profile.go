package syncer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/expense-sync/internal/common"
	"github.com/joseph-ayodele/expense-sync/internal/entity"
)

// The pending profile is a single slot, not a queue: the only profile ever
// waiting is the one created at signup, and a newer one supersedes it.

// QueueProfile parks p for creation on the next pass, replacing any profile
// already waiting.
func (e *Engine) QueueProfile(p entity.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	e.mu.Lock()
	if e.pendingProfile != nil && e.pendingProfile.ID != p.ID {
		e.logger.Warn("pending profile replaced", "old_profile_id", e.pendingProfile.ID, "profile_id", p.ID)
	}
	e.pendingProfile = &p
	e.mu.Unlock()

	e.logger.Info("profile queued for sync", "profile_id", p.ID)
	e.publish()
	return nil
}

// CreateProfile creates p remotely. When offline or unreachable the profile
// is queued and the connectivity error is returned.
func (e *Engine) CreateProfile(ctx context.Context, p entity.Profile) (entity.Profile, error) {
	if err := validateProfile(p); err != nil {
		return entity.Profile{}, err
	}
	if !e.monitor.IsOnline() {
		if err := e.QueueProfile(p); err != nil {
			return entity.Profile{}, err
		}
		return entity.Profile{}, common.ErrOffline
	}

	rctx, cancel := e.remoteCtx(ctx)
	created, err := e.remote.CreateProfile(rctx, p)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrConnectivity) {
			e.logger.Warn("profile create failed, queued for retry", "profile_id", p.ID, "error", err)
			if qerr := e.QueueProfile(p); qerr != nil {
				return entity.Profile{}, qerr
			}
		}
		return entity.Profile{}, err
	}

	e.setCurrentProfile(created)
	e.logger.Info("profile created", "profile_id", created.ID)
	return created, nil
}

// UpdateProfile writes p straight to the remote; failures are not queued.
func (e *Engine) UpdateProfile(ctx context.Context, p entity.Profile) (entity.Profile, error) {
	if err := validateProfile(p); err != nil {
		return entity.Profile{}, err
	}
	p.UpdatedAt = e.now().UTC()

	rctx, cancel := e.remoteCtx(ctx)
	updated, err := e.remote.UpdateProfile(rctx, p)
	cancel()
	if err != nil {
		e.logger.Warn("profile update failed", "profile_id", p.ID, "error", err)
		return entity.Profile{}, err
	}
	e.setCurrentProfile(updated)
	return updated, nil
}

// CurrentProfile is the last profile confirmed by the remote, if any.
func (e *Engine) CurrentProfile() (entity.Profile, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentProfile == nil {
		return entity.Profile{}, false
	}
	return *e.currentProfile, true
}

// PendingProfile is the profile waiting for creation, if any.
func (e *Engine) PendingProfile() (entity.Profile, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingProfile == nil {
		return entity.Profile{}, false
	}
	return *e.pendingProfile, true
}

func (e *Engine) setCurrentProfile(p entity.Profile) {
	e.mu.Lock()
	e.currentProfile = &p
	e.mu.Unlock()
}

// retryPendingProfile creates the parked profile. A duplicate means an
// earlier attempt already landed, so the stored copy is adopted.
func (e *Engine) retryPendingProfile(ctx context.Context, logger *slog.Logger, gen uint64) error {
	e.mu.Lock()
	slot := e.pendingProfile
	e.mu.Unlock()
	if slot == nil {
		return nil
	}

	rctx, cancel := e.remoteCtx(ctx)
	defer cancel()

	confirmed, err := e.remote.CreateProfile(rctx, *slot)
	if errors.Is(err, common.ErrConflict) {
		logger.Info("pending profile already exists remotely, fetching it", "profile_id", slot.ID)
		confirmed, err = e.remote.FetchProfile(rctx, slot.ID)
	}
	if err != nil {
		logger.Warn("pending profile sync failed, kept for retry", "profile_id", slot.ID, "error", err)
		return err
	}

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		return common.ErrPassSuperseded
	}
	e.currentProfile = &confirmed
	// a newer profile queued during the call stays queued
	if e.pendingProfile == slot {
		e.pendingProfile = nil
	}
	e.mu.Unlock()
	logger.Info("pending profile synced", "profile_id", confirmed.ID)
	return nil
}
