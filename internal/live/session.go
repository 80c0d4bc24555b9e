package live

import (
	"context"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"classportal/internal/listview"
	"classportal/internal/logger"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
)

// ClientFrame is what a live view client sends to change its criteria or page.
type ClientFrame struct {
	Criteria *listview.Criteria `json:"criteria,omitempty"`
	Page     int                `json:"page,omitempty"`
}

// Session drives one websocket: it reloads on every notification, applies
// client frames and writes the rendered view after each change.
type Session struct {
	Conn   *websocket.Conn
	Notify <-chan struct{}

	// Reload fetches the collection and pushes it into the view.
	Reload func(ctx context.Context) error
	// Apply handles a client frame. Nil ignores frames.
	Apply func(ClientFrame)
	// Render returns the value written to the client.
	Render func() any
}

// Run serves the session until the client leaves or ctx ends.
// A failed reload leaves the previous rendering in place.
func (s Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan ClientFrame)
	readErr := make(chan error, 1)
	go func() {
		for {
			var f ClientFrame
			if err := wsjson.Read(ctx, s.Conn, &f); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.reload(ctx)
	if err := s.write(ctx); err != nil {
		return err
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			return err
		case <-s.Notify:
			s.reload(ctx)
		case f := <-frames:
			if s.Apply == nil {
				continue
			}
			s.Apply(f)
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
			err := s.Conn.Ping(pctx)
			pcancel()
			if err != nil {
				return err
			}
			continue
		}
		if err := s.write(ctx); err != nil {
			return err
		}
	}
}

func (s Session) reload(ctx context.Context) {
	if err := s.Reload(ctx); err != nil && ctx.Err() == nil {
		logger.Warn().Err(err).Msg("live: reload failed")
	}
}

func (s Session) write(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, s.Conn, s.Render())
}
