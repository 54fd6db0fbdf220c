package backend

import (
	"context"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Subscribe opens the realtime feed and delivers events to fn on a
// dedicated goroutine until the returned cancel function runs or the
// connection drops. Requires an active session.
func (c *Client) Subscribe(ctx context.Context, fn func(Event)) (func(), error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil, ErrNoSession
	}

	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/realtime/ws?token=" + session.AccessToken
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			conn.Close()
		})
	}

	go func() {
		defer cancel()
		for {
			var ev Event
			if err := conn.ReadJSON(&ev); err != nil {
				log.Debug("realtime feed closed: %v", err)
				return
			}
			fn(ev)
		}
	}()

	return cancel, nil
}
