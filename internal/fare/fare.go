package fare

import (
	"math"
	"time"

	"github.com/AkZcH/metro-flow-control-system/common/util"
	"github.com/AkZcH/metro-flow-control-system/internal/planner"
	"github.com/AkZcH/metro-flow-control-system/internal/topology"
)

const (
	BaseFare       = 20
	PerStationFare = 5
	InterchangeFee = 10
	FareCap        = 100
	PeakMultiplier = 1.5
)

// Breakdown is the priced fare plus the inputs that produced it, returned
// verbatim on booking and estimate responses.
type Breakdown struct {
	Fare           int  `json:"fare"`
	BaseFare       int  `json:"base_fare"`
	PerStationFare int  `json:"per_station_fare"`
	InterchangeFee int  `json:"interchange_fee"`
	TotalStations  int  `json:"total_stations"`
	IsInterchange  bool `json:"is_interchange"`
	IsPeakHour     bool `json:"is_peak_hour"`
}

type Calculator struct {
	topo *topology.Index
}

func NewCalculator(topo *topology.Index) *Calculator {
	return &Calculator{topo: topo}
}

// Price converts a planned route into a fare. The peak surcharge applies
// after the cap, so a peak-hour fare may exceed the nominal cap.
func (c *Calculator) Price(route planner.Route, at time.Time) (Breakdown, error) {
	totalStations := 0
	for _, seg := range route.Segments {
		fromIdx, okFrom := c.topo.StopIndex(seg.LineID, seg.FromStation)
		toIdx, okTo := c.topo.StopIndex(seg.LineID, seg.ToStation)
		if !okFrom || !okTo {
			return Breakdown{}, util.NewApiError(util.KindNotFound, "route segment references a station not on its line")
		}
		totalStations += abs(toIdx - fromIdx)
	}

	interchange := len(route.Segments) > 1

	fareAmount := BaseFare + PerStationFare*totalStations
	interchangeFee := 0
	if interchange {
		interchangeFee = InterchangeFee
		fareAmount += InterchangeFee
	}
	if fareAmount > FareCap {
		fareAmount = FareCap
	}

	peak := IsPeakHour(at)
	if peak {
		fareAmount = int(math.Round(float64(fareAmount) * PeakMultiplier))
	}

	return Breakdown{
		Fare:           fareAmount,
		BaseFare:       BaseFare,
		PerStationFare: PerStationFare,
		InterchangeFee: interchangeFee,
		TotalStations:  totalStations,
		IsInterchange:  interchange,
		IsPeakHour:     peak,
	}, nil
}

// IsPeakHour reports whether the hour falls in the 8-10 or 17-19 surcharge
// bands, both ends inclusive.
func IsPeakHour(at time.Time) bool {
	h := at.Hour()
	return (h >= 8 && h <= 10) || (h >= 17 && h <= 19)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
