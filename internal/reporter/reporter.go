// Package reporter applies transfer progress to the stored item flags.
package reporter

import (
	"context"
	"time"

	"trebleshot/internal/logging"
	"trebleshot/pkg/types"
)

// FlagUpdater is the part of the store the reporter writes to
type FlagUpdater interface {
	UpdateFlag(ctx context.Context, transferID string, itemID int64, key string, flag types.Flag) error
}

// Observer is told about every update after it was stored
type Observer interface {
	Observe(update types.ProgressUpdate)
}

// Summary describes a finished transfer from this device's point of view
type Summary struct {
	Done        int
	Interrupted int
	Bytes       uint64
	Duration    time.Duration
}

type flagKey struct {
	itemID int64
	key    string
}

// FlagReporter is the progress updater: it mutates item flags in the store
// while browsers may be reading them.
type FlagReporter struct {
	store    FlagUpdater
	observer Observer
	logger   *logging.Logger
}

// NewFlagReporter creates a reporter; observer may be nil
func NewFlagReporter(store FlagUpdater, observer Observer, logger *logging.Logger) *FlagReporter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &FlagReporter{store: store, observer: observer, logger: logger.Component("reporter")}
}

// Run applies updates until the channel is closed or ctx ends
func (r *FlagReporter) Run(ctx context.Context, updates <-chan types.ProgressUpdate) Summary {
	start := time.Now()
	last := make(map[flagKey]types.Flag)
	var bytes uint64

	summarize := func() Summary {
		s := Summary{Bytes: bytes, Duration: time.Since(start)}
		for _, flag := range last {
			switch {
			case flag.State == types.Done:
				s.Done++
			case flag.IsError():
				s.Interrupted++
			}
		}
		return s
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug().Msg("progress reporting stopped")
			return summarize()
		case update, ok := <-updates:
			if !ok {
				return summarize()
			}

			if err := r.store.UpdateFlag(ctx, update.TransferID, update.ItemID, update.Key, update.Flag); err != nil {
				r.logger.Warn().Err(err).Int64("item", update.ItemID).Msg("failed to update flag")
			}
			last[flagKey{update.ItemID, update.Key}] = update.Flag
			bytes += update.NewBytes

			if r.observer != nil {
				r.observer.Observe(update)
			}
		}
	}
}
