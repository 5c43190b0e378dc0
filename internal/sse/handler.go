package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// writeEvent writes one text/event-stream frame.
func writeEvent(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// ServeHTTP streams change events to one client until it disconnects or its
// subscription is dropped (GET /api/events).
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "connected", map[string]string{"status": "connected"}); err != nil {
		return
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.Heartbeat {
			err = writeEvent(w, "heartbeat", map[string]int64{"ts": time.Now().Unix()})
		} else {
			err = writeEvent(w, "file."+msg.Change.Type, msg.Change)
		}
		if err != nil {
			return
		}
		flusher.Flush()
	}
}
