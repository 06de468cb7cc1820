package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/samuelfneumann/gamerl/experiment/event"
)

// errStreamClosed reports that the server stopped sending events
var errStreamClosed = errors.New("event stream closed")

// client publishes events to a single websocket. Only publish writes
// data messages; pings and the close message are control frames,
// which gorilla allows concurrently with other writes.
type client struct {
	ws     *websocket.Conn
	events <-chan event.Event
}

// sync publishes events until the stream closes, the peer disconnects
// or ctx is done. Orderly closures return nil.
func (c *client) sync(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(c.readMessages)
	group.Go(func() error {
		return c.pingPong(groupCtx)
	})
	group.Go(func() error {
		return c.publish(groupCtx)
	})
	group.Go(func() error {
		// Unblocks readMessages
		<-groupCtx.Done()
		c.close()
		return nil
	})

	err := group.Wait()
	if ctx.Err() != nil || errors.Is(err, errStreamClosed) || isClosure(err) {
		return nil
	}
	return err
}

// readMessages discards client messages. It must run for pong
// handlers to be called.
func (c *client) readMessages() error {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return fmt.Errorf("readMessages: %w", err)
		}
	}
}

func (c *client) pingPong(ctx context.Context) error {
	pinger := channerics.NewTicker(ctx.Done(), pingPeriod)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			err := c.ws.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(writeWait))
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *client) publish(ctx context.Context) error {
	var lastFrame time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case e, ok := <-c.events:
			if !ok {
				return errStreamClosed
			}

			// Drop snapshots received too quickly
			if e.Kind == event.FramePlayed {
				if time.Since(lastFrame) < snapshotResolution {
					continue
				}
				lastFrame = time.Now()
			}

			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("publish: %w", err)
			}
			if err := c.ws.WriteJSON(e); err != nil {
				return fmt.Errorf("publish: %w", err)
			}
		}
	}
}

func (c *client) close() {
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.ws.Close()
}

func isClosure(err error) bool {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return false
	}
	switch closeErr.Code {
	case websocket.CloseNormalClosure, websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived:
		return true
	default:
		return false
	}
}
