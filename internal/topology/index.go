package topology

import (
	"fmt"
)

// Index is a read-only view over the static line topology. It answers which
// lines serve a station and where a station sits in a line's stop order.
// Station and line records are created by the admin CRUD surface elsewhere;
// the reservation subsystem only ever reads them.
type Index struct {
	lines        []*Line
	lineByID     map[string]*Line
	stationByID  map[string]Station
	stationLines map[string][]*Line
	stopIndex    map[string]map[string]int
}

func NewIndex(stations []Station, lines []Line) (*Index, error) {
	idx := &Index{
		lineByID:     make(map[string]*Line, len(lines)),
		stationByID:  make(map[string]Station, len(stations)),
		stationLines: make(map[string][]*Line),
		stopIndex:    make(map[string]map[string]int, len(lines)),
	}

	for _, s := range stations {
		if s.ID == "" {
			return nil, fmt.Errorf("station %q has no id", s.Name)
		}
		if _, dup := idx.stationByID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate station id %q", s.ID)
		}
		idx.stationByID[s.ID] = s
	}

	for i := range lines {
		line := &lines[i]
		if line.ID == "" {
			return nil, fmt.Errorf("line %q has no id", line.Name)
		}
		if _, dup := idx.lineByID[line.ID]; dup {
			return nil, fmt.Errorf("duplicate line id %q", line.ID)
		}
		if len(line.Stops) < 2 {
			return nil, fmt.Errorf("line %s needs at least two stops", line.ID)
		}
		if line.FrequencyMinutes < 1 {
			return nil, fmt.Errorf("line %s: frequency must be at least 1 minute", line.ID)
		}

		positions := make(map[string]int, len(line.Stops))
		for pos, stop := range line.Stops {
			if _, known := idx.stationByID[stop.StationID]; !known {
				return nil, fmt.Errorf("line %s references unknown station %q", line.ID, stop.StationID)
			}
			if _, dup := positions[stop.StationID]; dup {
				return nil, fmt.Errorf("line %s stops twice at station %s", line.ID, stop.StationID)
			}
			if stop.Departure <= stop.Arrival {
				return nil, fmt.Errorf("line %s stop %s: departure %s must be after arrival %s",
					line.ID, stop.StationID, stop.Departure, stop.Arrival)
			}
			if pos > 0 && stop.Arrival <= line.Stops[pos-1].Departure {
				return nil, fmt.Errorf("line %s: stop %s arrives before the previous stop departs",
					line.ID, stop.StationID)
			}
			positions[stop.StationID] = pos
			idx.stationLines[stop.StationID] = append(idx.stationLines[stop.StationID], line)
		}

		idx.lines = append(idx.lines, line)
		idx.lineByID[line.ID] = line
		idx.stopIndex[line.ID] = positions
	}

	return idx, nil
}

// Lines returns all lines in topology insertion order. Callers must not
// mutate the result.
func (idx *Index) Lines() []*Line {
	return idx.lines
}

func (idx *Index) Line(id string) (*Line, bool) {
	l, ok := idx.lineByID[id]
	return l, ok
}

func (idx *Index) Station(id string) (Station, bool) {
	s, ok := idx.stationByID[id]
	return s, ok
}

// LinesContaining lists the lines serving a station, ordered by topology
// insertion order. Route planning tie-breaks depend on this order.
func (idx *Index) LinesContaining(stationID string) []*Line {
	return idx.stationLines[stationID]
}

// StopIndex is the ordinal position of a station in a line's stop order.
func (idx *Index) StopIndex(lineID, stationID string) (int, bool) {
	positions, ok := idx.stopIndex[lineID]
	if !ok {
		return 0, false
	}
	pos, ok := positions[stationID]
	return pos, ok
}

// StopAt returns the schedule entry of a line at a station.
func (idx *Index) StopAt(lineID, stationID string) (Stop, bool) {
	pos, ok := idx.StopIndex(lineID, stationID)
	if !ok {
		return Stop{}, false
	}
	return idx.lineByID[lineID].Stops[pos], true
}
