package booking

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AkZcH/metro-flow-control-system/common/util"
)

func (h *Handler) GetTicketById(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ticketID, err := uuid.Parse(chi.URLParam(r, "ticketId"))
	if err != nil {
		util.ErrorJson(w, util.NewApiError(util.KindInvalidRequest, "ticket id must be a valid uuid"))
		return
	}

	ticket, err := h.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		util.ErrorJson(w, err)
		return
	}

	util.WriteJson(w, http.StatusOK, map[string]interface{}{"data": ticket})
}

func (h *Handler) GetUserTickets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := chi.URLParam(r, "userId")
	tickets, err := h.tickets.TicketsByUser(ctx, userID)
	if err != nil {
		util.ErrorJson(w, err)
		return
	}

	response := map[string]interface{}{
		"count": len(tickets),
		"data":  tickets,
	}

	util.WriteJson(w, http.StatusOK, response)
}
