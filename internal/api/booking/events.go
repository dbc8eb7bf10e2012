package booking

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AkZcH/metro-flow-control-system/common/util"
	"github.com/AkZcH/metro-flow-control-system/internal/notify"
)

// StreamBookingEvents streams a user's booking-status events as
// server-sent events. Events published before the client connects are gone;
// there is no replay.
func (h *Handler) StreamBookingEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	h.streamTopic(w, r, notify.UserTopic(userID))
}

// StreamCapacityEvents streams capacity changes of one departure slot.
func (h *Handler) StreamCapacityEvents(w http.ResponseWriter, r *http.Request) {
	line, departure, err := slotParams(r)
	if err != nil {
		util.ErrorJson(w, err)
		return
	}
	h.streamTopic(w, r, notify.CapacityTopic(line, departure))
}

func (h *Handler) streamTopic(w http.ResponseWriter, r *http.Request, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		util.ErrorJson(w, util.NewApiError(util.KindInternal, "streaming is not supported"))
		return
	}

	sub := h.hub.Subscribe(topic)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.C():
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
