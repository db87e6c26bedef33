// Package inspect serves read-only bus diagnostics over HTTP.
//
// It exposes the snapshot a schedule.World publishes at every tick boundary,
// so handlers never touch live queues. When the source can stream, /stream
// pushes each new snapshot as a datastar signal patch over SSE:
//
//	r := chi.NewRouter()
//	r.Mount("/debug/bus", inspect.Router(world, inspect.WithMaxSnapshotAge(time.Second)))
package inspect
