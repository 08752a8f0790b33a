package provider

import (
	"fmt"
	"time"

	"github.com/ridge/repoindex/kv"
	"go.uber.org/zap"
)

// LastSuccessfulUpdate is the name of the atomic long holding the time of
// the last successfully applied batch
const LastSuccessfulUpdate = "last-successful-update"

// Updater tracks the time of the last successful update. The time never
// moves backwards; it is the checkpoint change replay starts from after a
// restart.
type Updater struct {
	store  *kv.Store
	last   *kv.Long
	logger *zap.Logger
}

// NewUpdater loads the checkpoint of a store
func NewUpdater(store *kv.Store, logger *zap.Logger) (*Updater, error) {
	last, err := store.Long(LastSuccessfulUpdate)
	if err != nil {
		return nil, fmt.Errorf("loading update checkpoint: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{store: store, last: last, logger: logger}, nil
}

// LastSuccessfulUpdate returns the checkpoint, or the zero time if no batch
// has been applied
func (u *Updater) LastSuccessfulUpdate() time.Time {
	ns := u.last.Get()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// Completed advances the checkpoint to ts unless it is already later, and
// commits the store
func (u *Updater) Completed(ts time.Time) error {
	ns := ts.UnixNano()
	for {
		prev := u.last.Get()
		if prev >= ns || u.last.CompareAndSet(prev, ns) {
			break
		}
	}
	lastUpdate.Set(float64(u.last.Get()) / float64(time.Second))
	if err := u.store.Commit(); err != nil {
		return fmt.Errorf("committing update at %s: %w", ts, err)
	}
	u.logger.Debug("Update committed", zap.Time("checkpoint", u.LastSuccessfulUpdate()))
	return nil
}
