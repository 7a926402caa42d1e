package authapi

import (
	"errors"
	"net/http"

	"bloggers/cmd/internal/auth/session"
	"bloggers/cmd/internal/web"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	cur := currentSession(r.Context())

	list, err := h.sessions.Devices(r.Context(), cur.UserID)
	if err != nil {
		web.Fail(w, r, h.log, "auth.devices.list.fail", err)
		return
	}

	out := make([]deviceResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toDeviceResponse(s))
	}
	web.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRevokeOthers(w http.ResponseWriter, r *http.Request) {
	cur := currentSession(r.Context())

	n, err := h.sessions.RevokeOthers(r.Context(), cur.UserID, cur.DeviceID)
	if err != nil {
		web.Fail(w, r, h.log, "auth.devices.revoke_others.fail", err)
		return
	}

	h.audit(r.Context(), Event{Action: "auth.devices.revoke_others", UserID: cur.UserID, DeviceID: cur.DeviceID, Meta: map[string]any{"revoked": n}})
	web.WriteStatus(w, http.StatusNoContent)
}

func (h *Handler) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	cur := currentSession(r.Context())
	deviceID := chi.URLParam(r, "deviceId")

	err := h.sessions.RevokeDevice(r.Context(), cur.UserID, deviceID)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrSessionNotFound):
		web.WriteStatus(w, http.StatusNotFound)
		return
	case errors.Is(err, session.ErrNotOwner):
		web.WriteStatus(w, http.StatusForbidden)
		return
	default:
		web.Fail(w, r, h.log, "auth.devices.revoke.fail", err)
		return
	}

	h.audit(r.Context(), Event{Action: "auth.devices.revoke", UserID: cur.UserID, DeviceID: deviceID})
	web.WriteStatus(w, http.StatusNoContent)
}
