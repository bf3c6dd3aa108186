package fixture

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log"
	"net"
	"net/http"

	"spotlight/lib/effect"
)

const maxBody = 8 << 10

//go:embed static/index.html
var staticFS embed.FS

var indexTmpl = template.Must(template.ParseFS(staticFS, "static/index.html"))

// Handler serves the fixture's command surface.
func (f *Fixture) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", f.handleRoot)
	mux.HandleFunc("POST /effect", f.handleEffect)
	mux.HandleFunc("POST /stop", f.handleStop)
	mux.HandleFunc("GET /status", f.handleStatus)
	return mux
}

func (f *Fixture) handleRoot(w http.ResponseWriter, r *http.Request) {
	st := f.Status(f.Now())
	st.IP = localIP(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, st); err != nil {
		log.Printf("render index: %v", err)
	}
}

// readBody reads at most maxBody bytes. It writes the error response and
// returns false when the body is too large or unreadable.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Body too large")
		return nil, false
	case err != nil:
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return nil, false
	}
	return body, true
}

func (f *Fixture) handleEffect(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No body")
		return
	}
	var cmd effect.Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	e := cmd.Decode()
	f.Apply(e, f.Now())
	log.Printf("effect: %s", e)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (f *Fixture) handleStop(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req struct {
		Ring string `json:"ring"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}
	side := effect.ParseRing(req.Ring)
	f.Stop(side)
	log.Printf("stop: %s", side)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (f *Fixture) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := f.Status(f.Now())
	st.IP = localIP(r)
	writeJSON(w, http.StatusOK, st)
}

func localIP(r *http.Request) string {
	addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr)
	if !ok {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
