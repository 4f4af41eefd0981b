package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/technosupport/hikbridge/internal/bridge"
	"github.com/technosupport/hikbridge/internal/data"
)

// DeviceHandler exposes the device registry and per-device operations.
type DeviceHandler struct {
	Repo    data.DeviceRepository
	Creds   data.CredentialRepository
	Manager *bridge.Manager
}

type deviceRequest struct {
	Name           string `json:"name"`
	Host           string `json:"host"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	VerifySSL      bool   `json:"verify_ssl"`
	RTSPPort       int    `json:"rtsp_port"`
	SetAlarmServer bool   `json:"set_alarm_server"`
	AlarmServerURL string `json:"alarm_server_url"`
	IsEnabled      *bool  `json:"is_enabled"`
}

func (req *deviceRequest) validate(requirePassword bool) string {
	if req.Name == "" {
		return "name is required"
	}
	if req.Host == "" {
		return "host is required"
	}
	if req.Username == "" {
		return "username is required"
	}
	if requirePassword && req.Password == "" {
		return "password is required"
	}
	return ""
}

func (h *DeviceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(true); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	entry := &data.DeviceEntry{
		Name:           req.Name,
		Host:           req.Host,
		Username:       req.Username,
		VerifySSL:      req.VerifySSL,
		RTSPPort:       req.RTSPPort,
		SetAlarmServer: req.SetAlarmServer,
		AlarmServerURL: req.AlarmServerURL,
		IsEnabled:      enabled,
		Status:         "unknown",
	}

	if err := h.Repo.Create(r.Context(), entry); err != nil {
		log.Printf("[ERROR] create device: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create device")
		return
	}
	if err := h.Manager.SealPassword(r.Context(), entry.ID, req.Password); err != nil {
		log.Printf("[ERROR] seal credentials for %s: %v", entry.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}

	if entry.IsEnabled {
		if _, err := h.Manager.Setup(r.Context(), entry); err != nil {
			// The entry is persisted; connection problems surface in
			// the status column rather than failing the create.
			log.Printf("[WARN] device %s created but setup failed: %v", entry.ID, err)
		}
	}

	respondJSON(w, http.StatusCreated, entry)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := data.DeviceFilter{Query: r.URL.Query().Get("q")}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = &s
	}

	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			offset = n
		}
	}

	devices, total, err := h.Repo.List(r.Context(), filter, limit, offset)
	if err != nil {
		log.Printf("[ERROR] list devices: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"total":   total,
	})
}

func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entryFromPath(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (h *DeviceHandler) Update(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entryFromPath(w, r)
	if !ok {
		return
	}

	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(false); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	entry.Name = req.Name
	entry.Host = req.Host
	entry.Username = req.Username
	entry.VerifySSL = req.VerifySSL
	entry.RTSPPort = req.RTSPPort
	entry.SetAlarmServer = req.SetAlarmServer
	entry.AlarmServerURL = req.AlarmServerURL
	if req.IsEnabled != nil {
		entry.IsEnabled = *req.IsEnabled
	}

	if err := h.Repo.Update(r.Context(), entry); err != nil {
		log.Printf("[ERROR] update device %s: %v", entry.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to update device")
		return
	}

	if req.Password != "" {
		if err := h.Manager.SealPassword(r.Context(), entry.ID, req.Password); err != nil {
			log.Printf("[ERROR] reseal credentials for %s: %v", entry.ID, err)
			respondError(w, http.StatusInternalServerError, "failed to store credentials")
			return
		}
	}

	// Connection settings may have changed; cycle a live device so the
	// new values take effect.
	if err := h.Manager.Teardown(r.Context(), entry.ID); err != nil && !errors.Is(err, bridge.ErrDeviceNotFound) {
		log.Printf("[WARN] teardown %s during update: %v", entry.ID, err)
	}
	if entry.IsEnabled {
		if _, err := h.Manager.Setup(r.Context(), entry); err != nil {
			log.Printf("[WARN] device %s updated but setup failed: %v", entry.ID, err)
		}
	}

	respondJSON(w, http.StatusOK, entry)
}

func (h *DeviceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}

	if err := h.Manager.Teardown(r.Context(), id); err != nil && !errors.Is(err, bridge.ErrDeviceNotFound) {
		log.Printf("[WARN] teardown %s during delete: %v", id, err)
	}
	if err := h.Creds.Delete(r.Context(), id); err != nil && !errors.Is(err, data.ErrCredentialNotFound) {
		log.Printf("[WARN] delete credentials for %s: %v", id, err)
	}
	if err := h.Repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "device not found")
			return
		}
		log.Printf("[ERROR] delete device %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Model returns the hardware model assembled at setup time: channels,
// cameras and supported events.
func (h *DeviceHandler) Model(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}

	handle, ok := h.Manager.Handle(id)
	if !ok {
		respondError(w, http.StatusConflict, "device is not set up")
		return
	}

	respondJSON(w, http.StatusOK, handle.Device)
}

// Diagnostics returns the device model and registry entry with network
// identifiers stripped.
func (h *DeviceHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entryFromPath(w, r)
	if !ok {
		return
	}

	payload := map[string]any{"entry": entry}
	if handle, ok := h.Manager.Handle(entry.ID); ok {
		payload["model"] = handle.Device
	}

	redacted, err := redactStruct(payload)
	if err != nil {
		log.Printf("[ERROR] build diagnostics for %s: %v", entry.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to build diagnostics")
		return
	}

	respondJSON(w, http.StatusOK, redacted)
}

func (h *DeviceHandler) Reboot(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}

	handle, ok := h.Manager.Handle(id)
	if !ok {
		respondError(w, http.StatusConflict, "device is not set up")
		return
	}

	if err := handle.Service.Reboot(r.Context()); err != nil {
		log.Printf("[ERROR] reboot %s: %v", id, err)
		respondError(w, http.StatusBadGateway, "device rejected reboot")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "rebooting"})
}

// SetHoliday toggles the device-wide holiday schedule, used to keep
// recording schedules in their holiday profile while away.
func (h *DeviceHandler) SetHoliday(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}

	handle, ok := h.Manager.Handle(id)
	if !ok {
		respondError(w, http.StatusConflict, "device is not set up")
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := handle.Service.SetHolidayMode(r.Context(), req.Enabled); err != nil {
		log.Printf("[ERROR] holiday mode on %s: %v", id, err)
		respondError(w, http.StatusBadGateway, "failed to set holiday mode")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// SetOutputPort drives an alarm output relay on the device.
func (h *DeviceHandler) SetOutputPort(w http.ResponseWriter, r *http.Request) {
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}

	handle, ok := h.Manager.Handle(id)
	if !ok {
		respondError(w, http.StatusConflict, "device is not set up")
		return
	}

	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil || port < 1 {
		respondError(w, http.StatusBadRequest, "invalid output port")
		return
	}

	var req struct {
		On bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := handle.Client.SetOutputPort(r.Context(), port, req.On); err != nil {
		log.Printf("[ERROR] output port %d on %s: %v", port, id, err)
		respondError(w, http.StatusBadGateway, "failed to switch output port")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"port": port, "on": req.On})
}

func (h *DeviceHandler) entryFromPath(w http.ResponseWriter, r *http.Request) (*data.DeviceEntry, bool) {
	id, ok := idFromPath(w, r)
	if !ok {
		return nil, false
	}

	entry, err := h.Repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "device not found")
			return nil, false
		}
		log.Printf("[ERROR] get device %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load device")
		return nil, false
	}
	return entry, true
}

func idFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid device ID")
		return uuid.Nil, false
	}
	return id, true
}
