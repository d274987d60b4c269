package api

import (
	"net/http"

	"downshot/pkg/video"
)

// VideoHandler exposes the feed binding and the websocket stream.
type VideoHandler struct {
	relay *video.Relay
}

func NewVideoHandler(r *video.Relay) *VideoHandler {
	return &VideoHandler{relay: r}
}

func (h *VideoHandler) HandleBinding(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.relay.Binding())
}

// Stream returns the websocket endpoint.
func (h *VideoHandler) Stream() http.Handler {
	return h.relay
}
