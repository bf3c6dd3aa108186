package controller

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
	"spotlight/lib/registry"
	"spotlight/lib/sequence"
)

const maxBody = 1 << 20

//go:embed static/index.html
var staticFS embed.FS

var indexTmpl = template.Must(template.ParseFS(staticFS, "static/index.html"))

// Handler serves the commander API.
func (c *Commander) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", c.handleRoot)
	mux.HandleFunc("GET /api/status", c.handleStatus)

	mux.HandleFunc("POST /api/spotlight/add", c.handleAddSpotlight)
	mux.HandleFunc("POST /api/spotlight/remove", c.handleRemoveSpotlight)
	mux.HandleFunc("GET /api/spotlight/list", c.handleListSpotlights)

	mux.HandleFunc("POST /api/effect/send", c.handleSendEffect)
	mux.HandleFunc("POST /api/effect/stop", c.handleStopEffect)
	mux.HandleFunc("POST /api/master", c.handleMaster)
	mux.HandleFunc("POST /api/blackout", c.handleBlackout)

	mux.HandleFunc("POST /api/sequence/load", c.handleLoadSequence)
	mux.HandleFunc("POST /api/sequence/delete", c.handleDeleteSequence)
	mux.HandleFunc("GET /api/sequence/list", c.handleListSequences)
	mux.HandleFunc("POST /api/sequence/play", c.handlePlay)
	mux.HandleFunc("POST /api/sequence/pause", c.handlePause)
	mux.HandleFunc("POST /api/sequence/resume", c.handleResume)
	mux.HandleFunc("POST /api/sequence/stop", c.handleStopSequence)
	return mux
}

type rootPage struct {
	IP        string
	Status    Status
	Sequences []sequence.Summary
}

func (c *Commander) handleRoot(w http.ResponseWriter, r *http.Request) {
	page := rootPage{IP: localIP(r), Status: c.Status(), Sequences: c.Sequences()}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, page); err != nil {
		log.Printf("render index: %v", err)
	}
}

func (c *Commander) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status
		IP string `json:"ip"`
	}{c.Status(), localIP(r)})
}

type addRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IP          string `json:"ip"`
	Protocol    string `json:"protocol"`
	InnerPixels int    `json:"innerLeds"`
	OuterPixels int    `json:"outerLeds"`
}

func (c *Commander) handleAddSpotlight(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !readJSON(w, r, &req) {
		return
	}
	proto, err := registry.ParseProtocol(req.Protocol)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d := registry.Device{
		ID:          req.ID,
		Name:        req.Name,
		Address:     req.IP,
		Protocol:    proto,
		InnerPixels: req.InnerPixels,
		OuterPixels: req.OuterPixels,
	}
	if err := c.AddDevice(r.Context(), d); err != nil {
		log.Printf("add spotlight: %v", err)
		writeError(w, http.StatusBadRequest, "Failed to add spotlight")
		return
	}
	writeSuccess(w)
}

func (c *Commander) handleRemoveSpotlight(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := c.RemoveDevice(r.Context(), req.ID); err != nil {
		writeError(w, http.StatusNotFound, "Unknown spotlight")
		return
	}
	writeSuccess(w)
}

func (c *Commander) handleListSpotlights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Devices())
}

type sendRequest struct {
	Targets []string `json:"targets"`
	effect.Command
}

func (c *Commander) handleSendEffect(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !readJSON(w, r, &req) {
		return
	}
	e := req.Decode()
	if err := c.SendEffect(r.Context(), req.Targets, e); err != nil {
		log.Printf("send %s: %v", e, err)
		writeError(w, http.StatusInternalServerError, "Failed to send effect")
		return
	}
	writeSuccess(w)
}

func (c *Commander) handleStopEffect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Targets []string `json:"targets"`
		Ring    string   `json:"ring"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := c.StopEffect(r.Context(), req.Targets, effect.ParseRing(req.Ring)); err != nil {
		log.Printf("stop: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to stop")
		return
	}
	writeSuccess(w)
}

func (c *Commander) handleMaster(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level *int `json:"level"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Level == nil {
		writeError(w, http.StatusBadRequest, "Missing level")
		return
	}
	level := c.SetMaster(*req.Level)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "master": level})
}

func (c *Commander) handleBlackout(w http.ResponseWriter, r *http.Request) {
	if err := c.Blackout(r.Context()); err != nil {
		log.Printf("blackout: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to stop")
		return
	}
	writeSuccess(w)
}

func (c *Commander) handleLoadSequence(w http.ResponseWriter, r *http.Request) {
	var seq sequence.Sequence
	if !readJSON(w, r, &seq) {
		return
	}
	if err := c.LoadSequence(r.Context(), seq); err != nil {
		log.Printf("load sequence: %v", err)
		writeError(w, http.StatusBadRequest, "Failed to load sequence")
		return
	}
	writeSuccess(w)
}

type sequenceRequest struct {
	SequenceID string `json:"sequenceId"`
}

func (c *Commander) handleDeleteSequence(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := c.DeleteSequence(r.Context(), req.SequenceID); err != nil {
		writeError(w, http.StatusNotFound, "Unknown sequence")
		return
	}
	writeSuccess(w)
}

func (c *Commander) handleListSequences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Sequences())
}

func (c *Commander) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := c.Play(r.Context(), req.SequenceID); err != nil {
		log.Printf("play: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to play sequence")
		return
	}
	writeSuccess(w)
}

func (c *Commander) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := c.Pause(r.Context()); err != nil {
		msg := "Not playing"
		if errors.Is(err, sequence.ErrAlreadyPaused) {
			msg = "Already paused"
		}
		writeError(w, http.StatusInternalServerError, msg)
		return
	}
	writeSuccess(w)
}

func (c *Commander) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := c.Resume(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Cannot resume")
		return
	}
	writeSuccess(w)
}

func (c *Commander) handleStopSequence(w http.ResponseWriter, r *http.Request) {
	if err := c.StopSequence(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Not playing")
		return
	}
	writeSuccess(w)
}

// readJSON decodes the request body into v. It writes the 400 response and
// returns false when the body is missing, too large or malformed.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Body too large")
		return false
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
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

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
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
