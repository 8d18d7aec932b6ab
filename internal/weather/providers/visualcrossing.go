package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

// VisualCrossingProvider implements the weather.Adapter interface for the
// Visual Crossing timeline API, used as an enrichment source.
type VisualCrossingProvider struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewVisualCrossingProvider(client *http.Client, apiKey string) *VisualCrossingProvider {
	return &VisualCrossingProvider{
		apiKey:  apiKey,
		baseURL: "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newCircuit("visualcrossing"),
	}
}

func (p *VisualCrossingProvider) ID() weather.ProviderID {
	return weather.ProviderVisualCrossing
}

type vcConditions struct {
	DatetimeEpoch int64    `json:"datetimeEpoch"`
	Temp          *float64 `json:"temp"`
	FeelsLike     *float64 `json:"feelslike"`
	Dew           *float64 `json:"dew"`
	Humidity      *float64 `json:"humidity"`
	WindSpeed     *float64 `json:"windspeed"`
	WindGust      *float64 `json:"windgust"`
	WindDir       *float64 `json:"winddir"`
	Pressure      *float64 `json:"pressure"`
	Visibility    *float64 `json:"visibility"`
	UVIndex       *float64 `json:"uvindex"`
	PrecipProb    *float64 `json:"precipprob"`
	TempMax       *float64 `json:"tempmax"`
	TempMin       *float64 `json:"tempmin"`
	Conditions    string   `json:"conditions"`
}

type vcTimeline struct {
	CurrentConditions *vcConditions `json:"currentConditions"`
	Days              []struct {
		vcConditions
		Hours []vcConditions `json:"hours"`
	} `json:"days"`
	Alerts []struct {
		Event       string `json:"event"`
		Headline    string `json:"headline"`
		Description string `json:"description"`
		Onset       string `json:"onset"`
		Ends        string `json:"ends"`
	} `json:"alerts"`
}

// fetchTimeline requests the timeline document once per call; the API bundles
// current conditions, days and hours in one response.
func (p *VisualCrossingProvider) fetchTimeline(ctx context.Context, loc weather.Location, include string) (*vcTimeline, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("visualcrossing api key is not configured")
	}
	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("unitGroup", "us")
	values.Set("include", include)
	values.Set("contentType", "json")

	u := fmt.Sprintf("%s/%f,%f?%s", p.baseURL, loc.Latitude, loc.Longitude, values.Encode())
	var payload vcTimeline
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (p *VisualCrossingProvider) FetchCurrent(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error) {
	payload, err := p.fetchTimeline(ctx, loc, "current")
	if err != nil {
		return nil, err
	}
	if payload.CurrentConditions == nil {
		return nil, fmt.Errorf("%w: missing currentConditions", ErrMalformedResponse)
	}

	c := payload.CurrentConditions
	cur := &weather.CurrentConditions{
		TempF:        c.Temp,
		FeelsLikeF:   c.FeelsLike,
		DewpointF:    c.Dew,
		Humidity:     c.Humidity,
		WindSpeedMph: c.WindSpeed,
		WindGustMph:  c.WindGust,
		WindDirDeg:   c.WindDir,
		PressureMb:   c.Pressure,
		VisibilityMi: c.Visibility,
		UVIndex:      c.UVIndex,
	}
	if c.Temp != nil {
		cur.TempC = weather.Float((*c.Temp - 32) * 5 / 9)
	}
	if c.Conditions != "" {
		cur.Condition = weather.String(c.Conditions)
	}
	return cur, nil
}

func (p *VisualCrossingProvider) FetchForecast(ctx context.Context, loc weather.Location) (*weather.Forecast, error) {
	payload, err := p.fetchTimeline(ctx, loc, "days")
	if err != nil {
		return nil, err
	}

	fc := &weather.Forecast{GeneratedAt: time.Now().UTC()}
	for _, day := range payload.Days {
		start := time.Unix(day.DatetimeEpoch, 0).UTC()
		fp := weather.ForecastPeriod{
			Name:         start.Weekday().String(),
			StartTime:    weather.Time(start),
			EndTime:      weather.Time(start.Add(24 * time.Hour)),
			HighF:        day.TempMax,
			LowF:         day.TempMin,
			WindSpeedMph: day.WindSpeed,
			PrecipChance: day.PrecipProb,
		}
		if day.Conditions != "" {
			fp.ShortForecast = weather.String(day.Conditions)
		}
		fc.Periods = append(fc.Periods, fp)
	}
	return fc, nil
}

func (p *VisualCrossingProvider) FetchHourly(ctx context.Context, loc weather.Location) (*weather.HourlyForecast, error) {
	payload, err := p.fetchTimeline(ctx, loc, "hours")
	if err != nil {
		return nil, err
	}

	hf := &weather.HourlyForecast{GeneratedAt: time.Now().UTC()}
	for _, day := range payload.Days {
		for _, h := range day.Hours {
			start := time.Unix(h.DatetimeEpoch, 0).UTC()
			hp := weather.HourlyForecastPeriod{
				StartTime:    weather.Time(start),
				EndTime:      weather.Time(start.Add(time.Hour)),
				TempF:        h.Temp,
				Humidity:     h.Humidity,
				WindSpeedMph: h.WindSpeed,
				PrecipChance: h.PrecipProb,
			}
			if h.Conditions != "" {
				hp.ShortForecast = weather.String(h.Conditions)
			}
			hf.Periods = append(hf.Periods, hp)
		}
	}
	return hf, nil
}

func (p *VisualCrossingProvider) FetchAlerts(ctx context.Context, loc weather.Location) (*weather.WeatherAlerts, error) {
	payload, err := p.fetchTimeline(ctx, loc, "alerts")
	if err != nil {
		return nil, err
	}

	alerts := &weather.WeatherAlerts{}
	for _, a := range payload.Alerts {
		al := weather.WeatherAlert{
			Event:       a.Event,
			Headline:    a.Headline,
			Description: a.Description,
		}
		if ts, err := time.Parse(time.RFC3339, a.Onset); err == nil {
			al.Onset = weather.Time(ts.UTC())
		}
		if ts, err := time.Parse(time.RFC3339, a.Ends); err == nil {
			al.Expires = weather.Time(ts.UTC())
		}
		alerts.Alerts = append(alerts.Alerts, al)
	}
	return alerts, nil
}
