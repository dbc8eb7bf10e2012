package booking

import (
	"net/http"

	"github.com/AkZcH/metro-flow-control-system/common/util"
)

type BookTicketRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	FromStation string `json:"from_station" validate:"required"`
	ToStation   string `json:"to_station" validate:"required"`
}

func (h *Handler) BookTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var data BookTicketRequest
	if err := util.ReadJsonAndValidate(w, r, &data); err != nil {
		util.ErrorJson(w, err)
		return
	}

	if h.RateLimiter != nil {
		if err := h.RateLimiter.RateLimitUserSlidingWindow(ctx, data.UserID, rateLimitWindow, rateLimitRequests); err != nil {
			util.ErrorJson(w, util.NewApiError(util.KindRateLimited, "too many booking requests, slow down"))
			return
		}
	}

	result, err := h.coordinator.Book(ctx, data.UserID, data.FromStation, data.ToStation)
	if err != nil {
		util.ErrorJson(w, err)
		return
	}

	response := map[string]interface{}{
		"message": "Ticket booked successfully",
		"data":    result,
	}

	util.WriteJson(w, http.StatusCreated, response)
}
