package model

import "time"

// WeatherReading is one "current conditions" observation as returned by the
// weather API. A reading is never mutated after it is fetched; a refresh
// replaces it wholesale.
type WeatherReading struct {
	WindSpeed            float64 `json:"wind_spd"`
	Temperature          float64 `json:"temp"`
	FeelsLikeTemperature float64 `json:"app_temp"`
	Humidity             float64 `json:"rh"`

	IconCode    string `json:"icon"`
	Description string `json:"description"`
}

// Occurrence represents a single concrete instance of a calendar event
// (after recurrence expansion and timezone normalization).
type Occurrence struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	Summary string
	AllDay  bool

	// Start / End are in the display timezone.
	Start time.Time
	End   time.Time
}
