package booking

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AkZcH/metro-flow-control-system/common/util"
)

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ticketID, err := uuid.Parse(chi.URLParam(r, "ticketId"))
	if err != nil {
		util.ErrorJson(w, util.NewApiError(util.KindInvalidRequest, "ticket id must be a valid uuid"))
		return
	}

	ticket, err := h.coordinator.Cancel(ctx, ticketID)
	if err != nil {
		util.ErrorJson(w, err)
		return
	}

	response := map[string]interface{}{
		"message": "Ticket cancelled successfully",
		"data":    ticket,
	}

	util.WriteJson(w, http.StatusOK, response)
}
