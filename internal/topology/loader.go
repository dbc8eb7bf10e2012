package topology

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type stationDoc struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name" validate:"required"`
}

type stopDoc struct {
	Station   string `yaml:"station" validate:"required"`
	Arrival   string `yaml:"arrival" validate:"required"`
	Departure string `yaml:"departure" validate:"required"`
}

type lineDoc struct {
	ID               string    `yaml:"id" validate:"required"`
	Name             string    `yaml:"name" validate:"required"`
	FrequencyMinutes int       `yaml:"frequencyMinutes" validate:"required,gte=1"`
	Stops            []stopDoc `yaml:"stops" validate:"required,min=2,dive"`
}

type topologyDoc struct {
	Stations []stationDoc `yaml:"stations" validate:"required,min=1,dive"`
	Lines    []lineDoc    `yaml:"lines" validate:"required,min=1,dive"`
}

// Load reads the static topology snapshot exported by the admin service.
func Load(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology file: %w", err)
	}

	var doc topologyDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse topology file %s: %w", path, err)
	}
	if err := validator.New().Struct(&doc); err != nil {
		return nil, fmt.Errorf("validate topology file %s: %w", path, err)
	}

	stations := make([]Station, 0, len(doc.Stations))
	for _, s := range doc.Stations {
		stations = append(stations, Station{ID: s.ID, Name: s.Name})
	}

	lines := make([]Line, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		line := Line{
			ID:               l.ID,
			Name:             l.Name,
			FrequencyMinutes: l.FrequencyMinutes,
		}
		for _, stop := range l.Stops {
			arrival, err := ParseClock(stop.Arrival)
			if err != nil {
				return nil, fmt.Errorf("line %s stop %s arrival: %w", l.ID, stop.Station, err)
			}
			departure, err := ParseClock(stop.Departure)
			if err != nil {
				return nil, fmt.Errorf("line %s stop %s departure: %w", l.ID, stop.Station, err)
			}
			line.Stops = append(line.Stops, Stop{
				StationID: stop.Station,
				Arrival:   arrival,
				Departure: departure,
			})
		}
		lines = append(lines, line)
	}

	return NewIndex(stations, lines)
}
