package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JakeFAU/contact-harvester/internal/progress"
)

// WriteEvent writes one server-sent event frame:
// "event: <kind>\ndata: <json payload>\n\n".
func WriteEvent(w io.Writer, evt progress.Event) error {
	data, err := json.Marshal(evt.Payload())
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", evt.Kind, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

// pump copies events to w until the run's terminal event closes the channel
// or the client goes away. Once workDone is closed, events still in flight
// are relayed for up to tail; the stream then ends even if the terminal
// event was dropped on the way.
func pump(
	ctx context.Context,
	w io.Writer,
	flusher http.Flusher,
	events <-chan progress.Event,
	workDone <-chan struct{},
	tail time.Duration,
) error {
	var (
		tailC <-chan time.Time
		timer *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-workDone:
			workDone = nil
			timer = time.NewTimer(tail)
			tailC = timer.C
		case <-tailC:
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := WriteEvent(w, evt); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}
