package server

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stopmidnight/taskboard/internal/notify"
)

// events streams hub events as server-sent events, starting with hello.
func (s *Server) events(c echo.Context) error {
	res := c.Response()

	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}

	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-store")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	sub := s.cfg.Hub.Subscribe()
	defer s.cfg.Hub.Unsubscribe(sub)

	if err := writeEvent(res, notify.NewEvent(notify.TypeHello, "", s.cfg.Now())); err != nil {
		return nil
	}

	flusher.Flush()

	ctx := c.Request().Context()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closing:
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}

			// A failed write means the client is gone.
			if err := writeEvent(res, ev); err != nil {
				return nil
			}

			flusher.Flush()
		}
	}
}

func writeEvent(res *echo.Response, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)

	_, err = res.Write(buf)

	return err
}
