package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"codex-gateway/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// sseWriter writes server-sent events and flushes after each one so
// fragments reach the client as soon as they are produced.
type sseWriter struct {
	w *bufio.Writer
}

func (s sseWriter) event(name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if name != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s sseWriter) data(payload interface{}) error {
	return s.event("", payload)
}

func (s sseWriter) done() error {
	if _, err := s.w.WriteString("data: [DONE]\n\n"); err != nil {
		return err
	}
	return s.w.Flush()
}

// streamEvents answers with an event stream and hands every StreamEvent to
// write. The stream ends with "data: [DONE]". If the client goes away,
// cancel stops the execution and the remaining events are drained so the
// bridge can release its slot.
func streamEvents(c *fiber.Ctx, events <-chan domain.StreamEvent, cancel context.CancelFunc, write func(sseWriter, domain.StreamEvent) error) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		sse := sseWriter{w: w}

		var err error
		for ev := range events {
			if err = write(sse, ev); err != nil {
				break
			}
		}
		if err == nil {
			err = sse.done()
		}
		if err != nil {
			logrus.WithError(err).Debug("Event stream client went away")
			cancel()
			for range events {
			}
		}
	}))
}
