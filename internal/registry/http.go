package registry

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Router builds the gin engine exposing the five HTTP endpoints, grounded
// on the teacher corpus's gin idiom (basketball-analyzer's
// webserver.go) with the MJPEG part-framing taken from
// swdee-go-rknnlite/example/stream's Stream handler, adapted to a
// multi-stream-key registry instead of one fixed demo loop.
func (r *Registry) Router() *gin.Engine {
	engine := gin.Default()

	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	engine.GET("/streams", func(c *gin.Context) {
		c.JSON(http.StatusOK, r.Keys())
	})

	// Stream keys contain a slash ("<id>/ui"), so the key is a catch-all
	// parameter; gin hands it over with its leading "/".
	engine.GET("/meta/*key", func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		s, ok := r.Get(key)
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		meta := s.Meta()
		if meta == "" {
			meta = "{}"
		}
		c.Data(http.StatusOK, "application/json", []byte(meta))
	})

	engine.GET("/snapshot/*key", func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		s, ok := r.Get(key)
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		jpeg, _ := s.Snapshot()
		if len(jpeg) == 0 {
			c.Status(http.StatusNoContent)
			return
		}
		c.Data(http.StatusOK, "image/jpeg", jpeg)
	})

	engine.GET("/video/*key", func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		s, ok := r.Get(key)
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		serveMJPEG(c, s)
	})

	return engine
}

// serveMJPEG streams one multipart/x-mixed-replace part per new JPEG until
// the client disconnects.
func serveMJPEG(c *gin.Context, s *StreamState) {
	w := c.Writer
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Connection", "close")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	cancel := c.Request.Context().Done()

	_, lastSeq := s.Snapshot()
	for {
		jpeg, seq, ok := s.WaitNext(lastSeq, cancel)
		if !ok {
			return
		}
		lastSeq = seq

		if _, err := w.Write([]byte("--frame\r\n")); err != nil {
			return
		}
		if _, err := w.Write([]byte(fmt.Sprintf("Content-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)))); err != nil {
			return
		}
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
