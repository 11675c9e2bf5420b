// Package api exposes the engine, recording and settings controls as a
// JSON API on the local HTTP server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/decred/slog"
	"github.com/yok-tottii/ezdaw/internal/audio"
	"github.com/yok-tottii/ezdaw/internal/config"
	"github.com/yok-tottii/ezdaw/internal/engine"
	"github.com/yok-tottii/ezdaw/internal/hotkey"
	"github.com/yok-tottii/ezdaw/internal/permissions"
	"github.com/yok-tottii/ezdaw/internal/recording"
)

// Handler manages API endpoints
type Handler struct {
	config   *config.Config
	engine   *engine.Handle
	recorder *recording.Manager
	opts     options
	log      slog.Logger
}

type options struct {
	log              slog.Logger
	configPath       string
	requestTimeout   time.Duration
	onHotkeyChanged  func() error // Reloads the hotkey in the running application
	onEngineChanged  func()       // Called after the engine was started, restarted or stopped
	checkPermissions func() permissions.Report
}

// Option configures a Handler
type Option func(*options)

// WithLogger sets the logger of the handler
func WithLogger(log slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithConfigPath sets the file settings are saved to
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithRequestTimeout bounds how long a request waits for the engine
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithHotkeyReload sets the callback run after the hotkey settings change
func WithHotkeyReload(f func() error) Option {
	return func(o *options) { o.onHotkeyChanged = f }
}

// WithEngineChanged sets the callback run after the engine state changes
func WithEngineChanged(f func()) Option {
	return func(o *options) { o.onEngineChanged = f }
}

// WithPermissionCheck replaces the system permission query
func WithPermissionCheck(f func() permissions.Report) Option {
	return func(o *options) { o.checkPermissions = f }
}

// New creates a new API handler
func New(cfg *config.Config, eng *engine.Handle, rec *recording.Manager, opts ...Option) *Handler {
	o := options{
		log:              slog.Disabled,
		configPath:       config.GetConfigPath(),
		requestTimeout:   5 * time.Second,
		checkPermissions: permissions.Check,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Handler{
		config:   cfg,
		engine:   eng,
		recorder: rec,
		opts:     o,
		log:      o.log,
	}
}

// RegisterRoutes registers all API routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/devices", h.handleDevices)
	mux.HandleFunc("POST /api/devices/refresh", h.handleDevicesRefresh)
	mux.HandleFunc("GET /api/engine", h.handleEngineStatus)
	mux.HandleFunc("PUT /api/engine", h.handleEngineUpdate)
	mux.HandleFunc("POST /api/engine/start", h.handleEngineStart)
	mux.HandleFunc("POST /api/engine/stop", h.handleEngineStop)
	mux.HandleFunc("GET /api/recording", h.handleRecordingState)
	mux.HandleFunc("POST /api/recording/start", h.handleRecordingStart)
	mux.HandleFunc("POST /api/recording/stop", h.handleRecordingStop)
	mux.HandleFunc("GET /api/clips", h.handleClips)
	mux.HandleFunc("GET /api/clips/{id}", h.handleClip)
	mux.HandleFunc("GET /api/clips/{id}/wav", h.handleClipWAV)
	mux.HandleFunc("DELETE /api/clips/{id}", h.handleClipDelete)
	mux.HandleFunc("GET /api/settings", h.getSettings)
	mux.HandleFunc("PUT /api/settings", h.putSettings)
	mux.HandleFunc("POST /api/hotkey/validate", h.handleHotkeyValidate)
	mux.HandleFunc("GET /api/permissions", h.handlePermissions)
	mux.Handle("GET /metrics", h.engine.MetricsHandler())
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.opts.requestTimeout)
}

func (h *Handler) engineChanged() {
	if h.opts.onEngineChanged != nil {
		h.opts.onEngineChanged()
	}
}

// writeJSON writes v with the given status code
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debugf("Unable to write response: %v", err)
	}
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
}

// statusCode maps engine and recording errors to HTTP status codes
func statusCode(err error) int {
	var cfgErr *engine.ConfigError
	var queryErr *audio.QueryError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &queryErr):
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrNotRunning),
		errors.Is(err, engine.ErrAlreadyRunning),
		errors.Is(err, recording.ErrAlreadyRecording),
		errors.Is(err, recording.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusCode(err)
	if status == http.StatusInternalServerError {
		h.log.Errorf("Request failed: %v", err)
	} else {
		h.log.Debugf("Request failed (%d): %v", status, err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// devicesResponse is the body of the device endpoints
type devicesResponse struct {
	audio.Catalog
	Selected engine.Descriptor `json:"selected"`
}

// handleDevices handles GET /api/devices
func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, devicesResponse{
		Catalog:  h.engine.Devices(),
		Selected: h.config.Descriptor(),
	})
}

// handleDevicesRefresh handles POST /api/devices/refresh
func (h *Handler) handleDevicesRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	catalog, err := h.engine.RefreshDevices(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.engineChanged()
	h.writeJSON(w, http.StatusOK, devicesResponse{
		Catalog:  catalog,
		Selected: h.config.Descriptor(),
	})
}

// handleEngineStatus handles GET /api/engine
func (h *Handler) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Status())
}

// applyDescriptor restarts the engine with desc and persists it on success
func (h *Handler) applyDescriptor(ctx context.Context, desc engine.Descriptor) error {
	if err := h.engine.Restart(ctx, desc); err != nil {
		return err
	}
	h.engineChanged()

	h.config.SetEngine(desc)
	if err := h.config.Save(h.opts.configPath); err != nil {
		h.log.Warnf("Engine restarted but settings were not saved: %v", err)
	}
	return nil
}

// handleEngineUpdate handles PUT /api/engine. Fields missing from the body
// keep their configured values.
func (h *Handler) handleEngineUpdate(w http.ResponseWriter, r *http.Request) {
	desc := h.config.Descriptor()
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.applyDescriptor(ctx, desc); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.engine.Status())
}

// handleEngineStart handles POST /api/engine/start
func (h *Handler) handleEngineStart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.engine.Start(ctx, h.config.Descriptor()); err != nil {
		h.writeError(w, err)
		return
	}
	h.engineChanged()
	h.writeJSON(w, http.StatusOK, h.engine.Status())
}

// handleEngineStop handles POST /api/engine/stop. An active recording is
// finished first so its clip is announced.
func (h *Handler) handleEngineStop(w http.ResponseWriter, r *http.Request) {
	if h.recorder.GetState() == recording.Recording {
		if _, err := h.recorder.Stop(); err != nil {
			h.log.Warnf("Unable to finish recording before stopping: %v", err)
		}
	}

	if err := h.engine.Stop(); err != nil {
		h.writeError(w, err)
		return
	}
	h.engineChanged()
	h.writeJSON(w, http.StatusOK, h.engine.Status())
}

// recordingResponse is the body of the recording endpoints
type recordingResponse struct {
	State  string           `json:"state"`
	ClipID recording.ClipID `json:"clip_id,omitzero"`
}

// handleRecordingState handles GET /api/recording
func (h *Handler) handleRecordingState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, recordingResponse{State: h.recorder.GetState().String()})
}

// handleRecordingStart handles POST /api/recording/start
func (h *Handler) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	id, err := h.recorder.Start()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.engineChanged()
	h.writeJSON(w, http.StatusOK, recordingResponse{State: h.recorder.GetState().String(), ClipID: id})
}

// handleRecordingStop handles POST /api/recording/stop
func (h *Handler) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	id, err := h.recorder.Stop()
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.engineChanged()
	h.writeJSON(w, http.StatusOK, recordingResponse{State: h.recorder.GetState().String(), ClipID: id})
}

// ClipSummary describes a clip without its samples
type ClipSummary struct {
	ID         recording.ClipID `json:"id"`
	CreatedAt  time.Time        `json:"created_at"`
	Format     audio.Format     `json:"format"`
	Frames     int              `json:"frames"`
	Samples    int              `json:"samples"`
	DurationMS int64            `json:"duration_ms"`
}

func summarize(clip *recording.Clip) ClipSummary {
	return ClipSummary{
		ID:         clip.ID,
		CreatedAt:  clip.CreatedAt,
		Format:     clip.Format,
		Frames:     clip.FrameCount(),
		Samples:    clip.SampleCount(),
		DurationMS: clip.Duration().Milliseconds(),
	}
}

// handleClips handles GET /api/clips
func (h *Handler) handleClips(w http.ResponseWriter, r *http.Request) {
	clips := h.engine.Library().List()
	summaries := make([]ClipSummary, 0, len(clips))
	for _, clip := range clips {
		summaries = append(summaries, summarize(clip))
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

// lookupClip resolves the {id} path value, writing an error response when
// it does not name a clip.
func (h *Handler) lookupClip(w http.ResponseWriter, r *http.Request) (*recording.Clip, bool) {
	id, err := recording.ParseClipID(r.PathValue("id"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return nil, false
	}
	clip, ok := h.engine.Library().Get(id)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("clip %s not found", id)})
		return nil, false
	}
	return clip, true
}

// handleClip handles GET /api/clips/{id}
func (h *Handler) handleClip(w http.ResponseWriter, r *http.Request) {
	clip, ok := h.lookupClip(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, summarize(clip))
}

// handleClipWAV handles GET /api/clips/{id}/wav
func (h *Handler) handleClipWAV(w http.ResponseWriter, r *http.Request) {
	clip, ok := h.lookupClip(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.wav"`, clip.ID))
	if err := recording.EncodeWAV(w, clip); err != nil {
		// Headers may be sent already; the client sees a truncated body.
		h.log.Errorf("Unable to encode clip %s: %v", clip.ID, err)
	}
}

// handleClipDelete handles DELETE /api/clips/{id}
func (h *Handler) handleClipDelete(w http.ResponseWriter, r *http.Request) {
	clip, ok := h.lookupClip(w, r)
	if !ok {
		return
	}
	h.engine.Library().Delete(clip.ID)
	w.WriteHeader(http.StatusNoContent)
}

// getSettings returns the current configuration
func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.config.Clone())
}

// putSettings updates the configuration. A changed engine descriptor is
// applied to the running engine and rolled back if the engine rejects it.
func (h *Handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	before := h.config.Clone()
	if err := h.config.Update(updates); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("failed to update config: %v", err)})
		return
	}

	if desc := h.config.Descriptor(); desc != before.Descriptor() && h.engine.IsRunning() {
		ctx, cancel := h.requestContext(r)
		defer cancel()
		if err := h.engine.Restart(ctx, desc); err != nil {
			h.config.SetEngine(before.Descriptor())
			h.writeError(w, err)
			return
		}
		h.engineChanged()
	}

	if err := h.config.Save(h.opts.configPath); err != nil {
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("failed to save config: %v", err)})
		return
	}

	_, hotkeyChanged := updates["hotkey"]
	_, modeChanged := updates["recording_mode"]
	if (hotkeyChanged || modeChanged) && h.opts.onHotkeyChanged != nil {
		if err := h.opts.onHotkeyChanged(); err != nil {
			h.log.Warnf("Failed to reload hotkey: %v", err)
			h.writeJSON(w, http.StatusOK, map[string]string{
				"status":  "partial",
				"message": fmt.Sprintf("Settings saved but hotkey reload failed: %v", err),
			})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
	})
}

// handleHotkeyValidate handles POST /api/hotkey/validate
func (h *Handler) handleHotkeyValidate(w http.ResponseWriter, r *http.Request) {
	var request config.HotkeyConfig
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	resp := struct {
		Valid     bool                  `json:"valid"`
		Error     string                `json:"error,omitempty"`
		Display   string                `json:"display"`
		Conflicts []hotkey.ConflictInfo `json:"conflicts"`
	}{
		Valid:     true,
		Display:   hotkey.FormatHotkey(request),
		Conflicts: hotkey.CheckConflicts(request),
	}
	if _, err := hotkey.ParseKey(request.Key); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}
	if resp.Conflicts == nil {
		resp.Conflicts = []hotkey.ConflictInfo{}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type permissionsResponse struct {
	permissions.Report
	Missing []permissions.Kind `json:"missing"`
}

func (h *Handler) handlePermissions(w http.ResponseWriter, r *http.Request) {
	report := h.opts.checkPermissions()
	missing := report.Missing()
	if missing == nil {
		missing = []permissions.Kind{}
	}
	h.writeJSON(w, http.StatusOK, permissionsResponse{Report: report, Missing: missing})
}
