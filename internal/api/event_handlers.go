package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/technosupport/hikbridge/internal/bridge"
	"github.com/technosupport/hikbridge/internal/device"
	"github.com/technosupport/hikbridge/internal/isapi"
	"github.com/technosupport/hikbridge/internal/state"
)

// EventHandler covers per-event arming, snapshots and active alerts.
type EventHandler struct {
	Manager *bridge.Manager
	States  *state.Store
}

type eventStateResponse struct {
	EventID   string `json:"event_id"`
	ChannelID int    `json:"channel_id"`
	UniqueID  string `json:"unique_id"`
	Enabled   bool   `json:"enabled"`
}

func (h *EventHandler) GetEventState(w http.ResponseWriter, r *http.Request) {
	svc, channelID, ok := h.serviceFromPath(w, r)
	if !ok {
		return
	}
	eventID := chi.URLParam(r, "event")

	enabled, err := svc.EventArmed(r.Context(), channelID, eventID)
	if err != nil {
		if errors.Is(err, device.ErrEventNotFound) {
			respondError(w, http.StatusNotFound, "event not supported on this channel")
			return
		}
		log.Printf("[ERROR] read event %s/%d: %v", eventID, channelID, err)
		respondError(w, http.StatusBadGateway, "failed to read event state")
		return
	}

	ev := svc.Device().EventByID(channelID, eventID)
	resp := eventStateResponse{EventID: eventID, ChannelID: channelID, Enabled: enabled}
	if ev != nil {
		resp.UniqueID = ev.UniqueID
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *EventHandler) SetEventState(w http.ResponseWriter, r *http.Request) {
	svc, channelID, ok := h.serviceFromPath(w, r)
	if !ok {
		return
	}
	eventID := chi.URLParam(r, "event")

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := svc.ArmEvent(r.Context(), channelID, eventID, req.Enabled); err != nil {
		var mutexErr *isapi.MutexError
		if errors.As(err, &mutexErr) {
			respondError(w, http.StatusConflict, mutexErr.Error())
			return
		}
		if errors.Is(err, device.ErrEventNotFound) {
			respondError(w, http.StatusNotFound, "event not supported on this channel")
			return
		}
		log.Printf("[ERROR] arm event %s/%d: %v", eventID, channelID, err)
		respondError(w, http.StatusBadGateway, "failed to change event state")
		return
	}

	// Mirror the switch so polling does not have to wait a cycle.
	if ev := svc.Device().EventByID(channelID, eventID); ev != nil {
		if err := h.States.SetSwitch(r.Context(), ev.UniqueID, req.Enabled); err != nil {
			log.Printf("[WARN] mirror switch %s: %v", ev.UniqueID, err)
		}
	}

	respondJSON(w, http.StatusOK, eventStateResponse{
		EventID:   eventID,
		ChannelID: channelID,
		Enabled:   req.Enabled,
	})
}

// Snapshot fetches a fresh still from the device, keeps it as the
// channel's stored frame and returns it.
func (h *EventHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	svc, channelID, ok := h.serviceFromPath(w, r)
	if !ok {
		return
	}

	streamType := queryInt(r, "type", 1)
	width := queryInt(r, "width", 0)
	height := queryInt(r, "height", 0)

	img, err := svc.Snapshot(r.Context(), channelID, streamType, width, height)
	if err != nil {
		if errors.Is(err, device.ErrStreamNotFound) || errors.Is(err, device.ErrChannelNotFound) {
			respondError(w, http.StatusNotFound, "stream not found")
			return
		}
		log.Printf("[ERROR] snapshot channel %d: %v", channelID, err)
		respondError(w, http.StatusBadGateway, "failed to fetch snapshot")
		return
	}

	if err := h.States.SetSnapshot(r.Context(), svc.Device().Info.SerialNo, channelID, img); err != nil {
		log.Printf("[WARN] store snapshot for channel %d: %v", channelID, err)
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func (h *EventHandler) ActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.States.ActiveAlerts(r.Context())
	if err != nil {
		log.Printf("[ERROR] list active alerts: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (h *EventHandler) serviceFromPath(w http.ResponseWriter, r *http.Request) (svc *device.Service, channelID int, ok bool) {
	id, ok := idFromPath(w, r)
	if !ok {
		return nil, 0, false
	}

	handle, found := h.Manager.Handle(id)
	if !found {
		respondError(w, http.StatusConflict, "device is not set up")
		return nil, 0, false
	}

	channelID, err := strconv.Atoi(chi.URLParam(r, "channel"))
	if err != nil || channelID < 0 {
		respondError(w, http.StatusBadRequest, "invalid channel")
		return nil, 0, false
	}

	return handle.Service, channelID, true
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
