package sync

import "context"

// Syncer runs catalog syncs and publishes their status.
//
// Consumers that only trigger syncs or render status (the daemon, the HTTP
// server) depend on this interface rather than on *Engine.
type Syncer interface {
	// Sync fetches the catalog and applies the minimal set of content
	// changes to the store.
	//
	// Sync never returns an error: every failure is recorded in the
	// returned Report. A call made while another sync is running returns
	// immediately with Report.Suppressed set.
	//
	// Example:
	//   report := engine.Sync(ctx)
	//   if err := report.Err(); err != nil {
	//       log.Printf("sync: %v", err)
	//   }
	Sync(ctx context.Context) *Report

	// Status returns a snapshot of the current sync state.
	Status() Status

	// Subscribe registers fn to be called on every status transition.
	// The returned function removes the subscription.
	//
	// Example:
	//   stop := engine.Subscribe(func(s sync.Status) {
	//       fmt.Println(s.State)
	//   })
	//   defer stop()
	Subscribe(fn func(Status)) (unsubscribe func())
}
