package booking

import (
	"net/http"

	"github.com/AkZcH/metro-flow-control-system/common/util"
)

// GetFareEstimate prices a journey without reserving capacity or creating a
// ticket.
func (h *Handler) GetFareEstimate(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		util.ErrorJson(w, util.NewApiError(util.KindInvalidRequest, "from and to query parameters are required"))
		return
	}

	route, breakdown, err := h.coordinator.Estimate(from, to)
	if err != nil {
		util.ErrorJson(w, err)
		return
	}

	response := map[string]interface{}{
		"message": "Fare estimate",
		"data": map[string]interface{}{
			"route":        route,
			"fare_details": breakdown,
		},
	}

	util.WriteJson(w, http.StatusOK, response)
}
