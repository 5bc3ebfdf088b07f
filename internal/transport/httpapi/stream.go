package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// relayNDJSON forwards an upstream NDJSON byte stream to the caller, flushing
// after every chunk. After upstream EOF the optional trailer is appended as
// one final line. Forward-only, at-most-once: an upstream read error renders
// a 500 envelope if nothing was sent yet, otherwise a terminal error line.
func (s *Server) relayNDJSON(w http.ResponseWriter, upstream io.ReadCloser, trailer []byte) {
	defer func() { _ = upstream.Close() }()

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)

	buf := make([]byte, 32*1024)
	written := false
	for {
		n, rerr := upstream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Caller went away; the request context cancels upstream.
				s.logger.Debug("stream client disconnected", zap.Error(werr))
				return
			}
			written = true
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			s.logger.Error("upstream stream failed", zap.Error(rerr))
			if !written {
				writeError(w, http.StatusInternalServerError, "upstream stream failed")
				return
			}
			line, _ := json.Marshal(envelope{Success: false, Error: "upstream stream failed"})
			_, _ = w.Write(append(line, '\n'))
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
	}

	if len(trailer) > 0 {
		_, _ = w.Write(append(trailer, '\n'))
		if flusher != nil {
			flusher.Flush()
		}
	}
}
