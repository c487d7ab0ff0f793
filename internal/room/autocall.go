package room

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// startAutoCall launches the room's call loop if the room asked for one. The
// caller holds the room lock; the loop is stopped by retire or Close. stopAuto
// is guarded by m.mu.
func (m *Manager) startAutoCall(st *roomState) {
	if !st.room.AutoCall || m.cfg.AutoCallInterval <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || st.stopAuto != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	st.stopAuto = cancel
	go m.autoCallLoop(ctx, st.room.Code, m.cfg.AutoCallInterval)

	log.Debug().
		Str("room_code", st.room.Code).
		Dur("interval", m.cfg.AutoCallInterval).
		Msg("Auto-call started")
}

func (m *Manager) autoCallLoop(ctx context.Context, code string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("room_code", code).Msg("Auto-call stopped")
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}

		var res CallResult
		err := m.mutate(ctx, code, func(st *roomState, fx *effects) error {
			// Stopped while waiting for the lock.
			if ctx.Err() != nil {
				res.Ended = true
				return nil
			}
			var err error
			res, err = m.callLocked(ctx, st, fx)
			return err
		})
		if err != nil {
			if _, ok := IsRejection(err); ok {
				return
			}
			log.Warn().Err(err).Str("room_code", code).Msg("Auto-call failed, retrying next tick")
			continue
		}
		if res.Ended {
			return
		}
	}
}
