package services

import (
	"context"
	"time"

	"github.com/ochairo/vulnscan/internal/domain/entities"
	"github.com/ochairo/vulnscan/internal/domain/interfaces"
	"github.com/ochairo/vulnscan/internal/domain/interfaces/gateways"
	"github.com/ochairo/vulnscan/internal/domain/interfaces/services"
)

// databaseUpdater decides whether to synchronize the vulnerability database
type databaseUpdater struct {
	database gateways.VulnerabilityDatabase
	logger   interfaces.Logger
	now      func() time.Time
}

// NewDatabaseUpdater creates an updater; now may be nil to use time.Now
func NewDatabaseUpdater(database gateways.VulnerabilityDatabase, logger interfaces.Logger, now func() time.Time) services.DatabaseUpdater {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &databaseUpdater{
		database: database,
		logger:   logger,
		now:      now,
	}
}

// Update applies schedule. Any failure is returned as *entities.SynchronizationError.
func (u *databaseUpdater) Update(ctx context.Context, schedule entities.UpdateSchedule) error {
	switch schedule {
	case entities.UpdatesAuto:
		return u.synchronize(ctx)

	case entities.UpdatesDaily:
		updated, err := u.database.LastSynchronized(ctx)
		if err != nil {
			return &entities.SynchronizationError{Err: err}
		}
		if SameLocalDay(updated, u.now()) {
			u.logger.Info("Database already updated today", interfaces.F("last_updated", updated.Format(time.RFC1123)))
			return nil
		}
		return u.synchronize(ctx)

	default:
		u.logger.Info("Database synchronization disabled")
		return nil
	}
}

func (u *databaseUpdater) synchronize(ctx context.Context) error {
	u.logger.Info("Updating database")
	if err := u.database.Synchronize(ctx); err != nil {
		return &entities.SynchronizationError{Err: err}
	}
	return nil
}

// SameLocalDay reports whether a and b fall on the same calendar date in local time.
// A zero time is never the same day as anything.
func SameLocalDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	a, b = a.Local(), b.Local()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
