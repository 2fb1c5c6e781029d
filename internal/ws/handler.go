// Package ws pushes the coordinator's event stream to websocket clients.
// Commands go over the REST API; this connection is server-push only.
package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"matchmaker-backend/internal/events"
)

func Handler(bus *events.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Optional filter: only events for one match.
		matchFilter := r.URL.Query().Get("match_id")

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := randID(6)
		stream := bus.Subscribe(clientID, 32)
		defer bus.Unsubscribe(clientID)

		// Reader goroutine: we expect no client messages, but reading is
		// what surfaces the close frame.
		readCtx, readDone := context.WithCancel(r.Context())
		go func() {
			defer readDone()
			for {
				if _, _, err := conn.Read(readCtx); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-readCtx.Done():
				return
			case ev, ok := <-stream:
				if !ok {
					// Dropped as a slow consumer or bus closed.
					return
				}
				if matchFilter != "" && ev.MatchID != matchFilter {
					continue
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				writeCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
				err = conn.Write(writeCtx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return
				}
			}
		}
	}
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
