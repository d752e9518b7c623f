// Package app runs a complete send or receive: peer connection, signalling,
// transfer and progress reporting.
package app

import (
	"context"

	"trebleshot/internal/reporter"
	"trebleshot/internal/transport"
	"trebleshot/internal/ui"
	"trebleshot/pkg/types"
)

// completion returns a callback that delivers the first outcome to ch
func completion(ch chan<- error) func(error) {
	return func(err error) {
		select {
		case ch <- err:
		default:
		}
	}
}

// runReporter applies progress to the store until the stream closes
func runReporter(ctx context.Context, r *reporter.FlagReporter, updates <-chan types.ProgressUpdate) <-chan reporter.Summary {
	done := make(chan reporter.Summary, 1)
	go func() {
		done <- r.Run(ctx, updates)
	}()
	return done
}

// waitForExit blocks until the transfer finished, the peer connection failed
// or ctx ended. The channel is closed in every case.
func waitForExit(ctx context.Context, channel *transport.Channel, exitCh <-chan error, failures <-chan *transport.ConnectionFailureError) error {
	var err error
	select {
	case err = <-exitCh:
	case failure := <-failures:
		err = failure
		channel.Close()
		// The handler reports the close itself
		if handlerErr := <-exitCh; handlerErr == nil {
			err = nil
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	channel.Close()
	return err
}

// finishProgress waits for the reporter and prints the summary
func finishProgress(progress ui.Progress, summary <-chan reporter.Summary) reporter.Summary {
	s := <-summary
	if progress != nil {
		progress.Finish(s)
	}
	return s
}
