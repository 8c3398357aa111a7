package workers

import (
	"context"
	"log/slog"
	"time"

	"roomhub/contract"
	"roomhub/observability"
	"roomhub/protocol"
	"roomhub/runtime"
)

// Reaper periodically deletes rooms that are both empty and inactive past
// the threshold. It is a safety net for rooms that were created but never
// joined; occupied rooms are never touched, however quiet. Public deletions
// fan out a directory-removal broadcast.
type Reaper struct {
	log       *slog.Logger
	registry  *runtime.RoomRegistry
	emitter   contract.Emitter
	monitor   *observability.Monitor
	interval  time.Duration
	threshold time.Duration
	clock     runtime.Clock
}

func NewReaper(log *slog.Logger, registry *runtime.RoomRegistry, emitter contract.Emitter,
	monitor *observability.Monitor, interval, threshold time.Duration, clock runtime.Clock) *Reaper {
	return &Reaper{
		log:       log,
		registry:  registry,
		emitter:   emitter,
		monitor:   monitor,
		interval:  interval,
		threshold: threshold,
		clock:     clock,
	}
}

func (w *Reaper) Run(ctx context.Context) error {
	w.log.Info("Starting room reaper", "interval", w.interval, "threshold", w.threshold)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping reaper")
			return nil
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one collection pass. The registry enumerates and deletes under
// its own lock; the fan-out below is deliberately outside it.
func (w *Reaper) Sweep() {
	swept := w.registry.SweepInactive(w.threshold, w.clock())
	for _, room := range swept {
		w.monitor.IncrRoomsDeleted()
		if room.Public {
			w.emitter.ToAll(protocol.EvtPublicRoomDeleted, room.Code)
		}
	}
	if len(swept) > 0 {
		w.log.Info("Reaper pass finished", "deleted", len(swept))
	}
}
