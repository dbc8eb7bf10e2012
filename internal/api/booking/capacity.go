package booking

import (
	"net/http"
	"time"

	"github.com/AkZcH/metro-flow-control-system/common/util"
)

// GetCapacity reads the current counters of one departure slot.
func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	line, departure, err := slotParams(r)
	if err != nil {
		util.ErrorJson(w, err)
		return
	}

	slot, err := h.ledger.Peek(ctx, line, departure)
	if err != nil {
		util.ErrorJson(w, err)
		return
	}

	response := map[string]interface{}{
		"data":              slot,
		"occupancy_percent": slot.OccupancyPercent(),
	}

	util.WriteJson(w, http.StatusOK, response)
}

func slotParams(r *http.Request) (string, time.Time, error) {
	line := r.URL.Query().Get("line")
	departureRaw := r.URL.Query().Get("departure")
	if line == "" || departureRaw == "" {
		return "", time.Time{}, util.NewApiError(util.KindInvalidRequest, "line and departure query parameters are required")
	}
	departure, err := time.Parse(time.RFC3339, departureRaw)
	if err != nil {
		return "", time.Time{}, util.NewApiError(util.KindInvalidRequest, "departure must be an RFC3339 timestamp")
	}
	return line, departure, nil
}
