package topology

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Clock is a schedule time-of-day in minutes since midnight.
type Clock int

var clockPattern = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]$`)

// ParseClock accepts strict HH:MM with leading zeros, e.g. "03:05".
func ParseClock(s string) (Clock, error) {
	if !clockPattern.MatchString(s) {
		return 0, fmt.Errorf("%q is not a valid time, use HH:MM with leading zeros", s)
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	return Clock(h*60 + m), nil
}

func (c Clock) Hour() int {
	return int(c) / 60
}

func (c Clock) Minute() int {
	return int(c) % 60
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type Station struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Stop is one scheduled halt of a line at a station.
type Stop struct {
	StationID string `json:"station"`
	Arrival   Clock  `json:"arrival"`
	Departure Clock  `json:"departure"`
}

// Line is an ordered sequence of stops. The stop order is the schedule order
// and never changes once the line is referenced by a route.
type Line struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Stops            []Stop `json:"stations"`
	FrequencyMinutes int    `json:"frequency_minutes"`
}
