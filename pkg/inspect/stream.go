package inspect

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmitrymomot/tickbus/pkg/broadcast"
	"github.com/dmitrymomot/tickbus/pkg/schedule"
)

// Streamer is a Source that also pushes a snapshot at every tick boundary.
// *schedule.World implements it.
type Streamer interface {
	Subscribe(ctx context.Context) broadcast.Subscriber[schedule.Snapshot]
}

// streamSignal is the signal name snapshots are patched under.
const streamSignal = "bus"

func (h *handlers) stream(st Streamer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sub := st.Subscribe(ctx)
		defer sub.Close()

		// Streams outlive the server write timeout.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		sse := datastar.NewSSE(w, r)
		if err := patchSnapshot(sse, h.src.Snapshot()); err != nil {
			h.streamErr(ctx, err)
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub.Receive():
				if !ok {
					return
				}
				if err := patchSnapshot(sse, snap); err != nil {
					h.streamErr(ctx, err)
					return
				}
			}
		}
	}
}

func patchSnapshot(sse *datastar.ServerSentEventGenerator, snap schedule.Snapshot) error {
	data, err := json.Marshal(map[string]schedule.Snapshot{streamSignal: snap})
	if err != nil {
		return err
	}
	return sse.PatchSignals(data)
}

func (h *handlers) streamErr(ctx context.Context, err error) {
	// client went away
	if ctx.Err() != nil {
		return
	}
	h.write(ctx, err)
}
