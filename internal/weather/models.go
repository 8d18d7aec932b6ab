package weather

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ProviderID identifies a weather data provider.
type ProviderID string

const (
	ProviderNWS            ProviderID = "nws"
	ProviderOpenMeteo      ProviderID = "openmeteo"
	ProviderWeatherAPI     ProviderID = "weatherapi"
	ProviderVisualCrossing ProviderID = "visualcrossing"
)

// Location represents a logical place for which we track weather.
// Name plus coordinates must be provided; CountryCode is optional and
// used only by the region rule.
type Location struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	CountryCode string  `json:"country_code,omitempty"`
}

// Coordinates are rounded to two decimal places (roughly 1.1 km) so that
// nearby lookups share cache entries and in-flight fetches.
const coordPrecision = 100.0

func roundCoord(v float64) float64 {
	r := math.Round(v*coordPrecision) / coordPrecision
	if r == 0 {
		// Fold negative zero so -0.001 and 0.001 share a key.
		return 0
	}
	return r
}

// Key returns a canonical string key identifying this location in the
// cache and the in-flight map. Identity is (name, rounded lat, rounded lon);
// country code is deliberately excluded.
func (l Location) Key() string {
	name := strings.ToLower(strings.TrimSpace(l.Name))
	return fmt.Sprintf("%s:%.2f:%.2f", name, roundCoord(l.Latitude), roundCoord(l.Longitude))
}

// Equal reports value equality under the same identity rule as Key.
func (l Location) Equal(other Location) bool {
	return l.Key() == other.Key()
}

// CurrentConditions is a flat record of observed values. Every field is
// independently nullable; a nil pointer means the source had no value.
type CurrentConditions struct {
	TempF         *float64 `json:"temp_f,omitempty"`
	TempC         *float64 `json:"temp_c,omitempty"`
	FeelsLikeF    *float64 `json:"feels_like_f,omitempty"`
	DewpointF     *float64 `json:"dewpoint_f,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
	WindSpeedMph  *float64 `json:"wind_speed_mph,omitempty"`
	WindGustMph   *float64 `json:"wind_gust_mph,omitempty"`
	WindDirDeg    *float64 `json:"wind_dir_deg,omitempty"`
	PressureMb    *float64 `json:"pressure_mb,omitempty"`
	VisibilityMi  *float64 `json:"visibility_mi,omitempty"`
	UVIndex       *float64 `json:"uv_index,omitempty"`
	Condition     *string  `json:"condition,omitempty"`
	WindDirection *string  `json:"wind_direction,omitempty"`
}

// HasData reports whether at least one field is populated.
func (c *CurrentConditions) HasData() bool {
	if c == nil {
		return false
	}
	return c.TempF != nil || c.TempC != nil || c.FeelsLikeF != nil ||
		c.DewpointF != nil || c.Humidity != nil || c.WindSpeedMph != nil ||
		c.WindGustMph != nil || c.WindDirDeg != nil || c.PressureMb != nil ||
		c.VisibilityMi != nil || c.UVIndex != nil || c.Condition != nil ||
		c.WindDirection != nil
}

// ForecastPeriod is one named span of a daily forecast (e.g. "Tonight").
type ForecastPeriod struct {
	Name             string     `json:"name,omitempty"`
	StartTime        *time.Time `json:"start_time,omitempty"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	HighF            *float64   `json:"high_f,omitempty"`
	LowF             *float64   `json:"low_f,omitempty"`
	TempF            *float64   `json:"temp_f,omitempty"`
	PrecipChance     *float64   `json:"precip_chance,omitempty"`
	WindSpeedMph     *float64   `json:"wind_speed_mph,omitempty"`
	WindDirection    *string    `json:"wind_direction,omitempty"`
	ShortForecast    *string    `json:"short_forecast,omitempty"`
	DetailedForecast *string    `json:"detailed_forecast,omitempty"`
	Icon             *string    `json:"icon,omitempty"`
}

// Forecast is an ordered sequence of periods, earliest first.
type Forecast struct {
	Periods     []ForecastPeriod `json:"periods"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// HasData reports whether the forecast carries any periods.
func (f *Forecast) HasData() bool {
	return f != nil && len(f.Periods) > 0
}

// HourlyForecastPeriod is one hour of an hourly forecast.
type HourlyForecastPeriod struct {
	Name          string     `json:"name,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	TempF         *float64   `json:"temp_f,omitempty"`
	PrecipChance  *float64   `json:"precip_chance,omitempty"`
	Humidity      *float64   `json:"humidity,omitempty"`
	WindSpeedMph  *float64   `json:"wind_speed_mph,omitempty"`
	ShortForecast *string    `json:"short_forecast,omitempty"`
}

// HourlyForecast is an ordered sequence of hourly periods.
type HourlyForecast struct {
	Periods     []HourlyForecastPeriod `json:"periods"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// HasData reports whether the hourly forecast carries any periods.
func (h *HourlyForecast) HasData() bool {
	return h != nil && len(h.Periods) > 0
}

// WeatherAlert is a single active hazard notice.
type WeatherAlert struct {
	ID          string     `json:"id,omitempty"`
	Event       string     `json:"event,omitempty"`
	Headline    string     `json:"headline,omitempty"`
	Description string     `json:"description,omitempty"`
	Severity    string     `json:"severity,omitempty"`
	Urgency     string     `json:"urgency,omitempty"`
	AreaDesc    string     `json:"area_desc,omitempty"`
	Onset       *time.Time `json:"onset,omitempty"`
	Expires     *time.Time `json:"expires,omitempty"`
}

// WeatherAlerts is the set of active alerts for a location.
type WeatherAlerts struct {
	Alerts []WeatherAlert `json:"alerts"`
}

// HasData reports whether any alerts are present.
func (a *WeatherAlerts) HasData() bool {
	return a != nil && len(a.Alerts) > 0
}

// SourceData wraps one provider's attempt at a full fetch. It is consumed
// only by the fusion engine and never exposed to callers directly.
type SourceData struct {
	Source  ProviderID         `json:"source"`
	Success bool               `json:"success"`
	Current *CurrentConditions `json:"current,omitempty"`
	Fcast   *Forecast          `json:"forecast,omitempty"`
	Hourly  *HourlyForecast    `json:"hourly,omitempty"`
	Alerts  *WeatherAlerts     `json:"alerts,omitempty"`
}

// DataConflict records a scalar disagreement between providers that
// exceeded the configured threshold.
type DataConflict struct {
	FieldName      string                 `json:"field_name"`
	Values         map[ProviderID]float64 `json:"values"`
	SelectedSource ProviderID             `json:"selected_source"`
	SelectedValue  float64                `json:"selected_value"`
}

// SourceAttribution records which providers contributed to a fused result.
type SourceAttribution struct {
	ContributingSources []ProviderID          `json:"contributing_sources,omitempty"`
	FailedSources       []ProviderID          `json:"failed_sources,omitempty"`
	FieldSources        map[string]ProviderID `json:"field_sources,omitempty"`
	Conflicts           []DataConflict        `json:"conflicts,omitempty"`
}

// AttributionSet groups per-kind attribution for one fused WeatherData.
type AttributionSet struct {
	Current SourceAttribution `json:"current"`
	Fcast   SourceAttribution `json:"forecast"`
	Hourly  SourceAttribution `json:"hourly"`
	Alerts  SourceAttribution `json:"alerts"`
}

// WeatherData is the externally visible aggregate. Sub-objects are always
// non-nil; a fetch that produced nothing yields empty sub-objects rather
// than a nil WeatherData so callers never special-case a missing result.
type WeatherData struct {
	Location    Location           `json:"location"`
	Current     *CurrentConditions `json:"current"`
	Fcast       *Forecast          `json:"forecast"`
	Hourly      *HourlyForecast    `json:"hourly"`
	Alerts      *WeatherAlerts     `json:"alerts"`
	Discussion  string             `json:"discussion,omitempty"`
	LastUpdated time.Time          `json:"last_updated"`
	Stale       bool               `json:"stale"`
	Attribution AttributionSet     `json:"attribution"`
}

// EmptyWeatherData returns the "no data" sentinel: all sub-objects present
// but empty.
func EmptyWeatherData(loc Location) *WeatherData {
	return &WeatherData{
		Location:    loc,
		Current:     &CurrentConditions{},
		Fcast:       &Forecast{},
		Hourly:      &HourlyForecast{},
		Alerts:      &WeatherAlerts{},
		LastUpdated: time.Now().UTC(),
	}
}

// HasData reports whether any sub-object carries data.
func (w *WeatherData) HasData() bool {
	if w == nil {
		return false
	}
	return w.Current.HasData() || w.Fcast.HasData() || w.Hourly.HasData() || w.Alerts.HasData()
}

// Float returns a pointer to v. Convenience for building records.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }

// Time returns a pointer to t.
func Time(t time.Time) *time.Time { return &t }
