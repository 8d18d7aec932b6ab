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

// WeatherAPIProvider implements the weather.Adapter interface for
// WeatherAPI.com, used as an enrichment source in both regions.
type WeatherAPIProvider struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newCircuit("weatherapi"),
	}
}

func (p *WeatherAPIProvider) ID() weather.ProviderID {
	return weather.ProviderWeatherAPI
}

func (p *WeatherAPIProvider) endpoint(path string, loc weather.Location, extra url.Values) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("weatherapi api key is not configured")
	}
	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", fmt.Sprintf("%f,%f", loc.Latitude, loc.Longitude))
	for k, vs := range extra {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	return fmt.Sprintf("%s/%s?%s", p.baseURL, path, values.Encode()), nil
}

type weatherAPICurrent struct {
	LastUpdatedEpoch int64    `json:"last_updated_epoch"`
	TempF            *float64 `json:"temp_f"`
	TempC            *float64 `json:"temp_c"`
	FeelsLikeF       *float64 `json:"feelslike_f"`
	DewpointF        *float64 `json:"dewpoint_f"`
	Humidity         *float64 `json:"humidity"`
	WindMph          *float64 `json:"wind_mph"`
	GustMph          *float64 `json:"gust_mph"`
	WindDegree       *float64 `json:"wind_degree"`
	WindDir          string   `json:"wind_dir"`
	PressureMb       *float64 `json:"pressure_mb"`
	VisMiles         *float64 `json:"vis_miles"`
	UV               *float64 `json:"uv"`
	Condition        struct {
		Text string `json:"text"`
	} `json:"condition"`
}

func (c *weatherAPICurrent) toConditions() *weather.CurrentConditions {
	cur := &weather.CurrentConditions{
		TempF:        c.TempF,
		TempC:        c.TempC,
		FeelsLikeF:   c.FeelsLikeF,
		DewpointF:    c.DewpointF,
		Humidity:     c.Humidity,
		WindSpeedMph: c.WindMph,
		WindGustMph:  c.GustMph,
		WindDirDeg:   c.WindDegree,
		PressureMb:   c.PressureMb,
		VisibilityMi: c.VisMiles,
		UVIndex:      c.UV,
	}
	if c.Condition.Text != "" {
		cur.Condition = weather.String(c.Condition.Text)
	}
	if c.WindDir != "" {
		cur.WindDirection = weather.String(c.WindDir)
	}
	return cur
}

func (p *WeatherAPIProvider) FetchCurrent(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error) {
	u, err := p.endpoint("current.json", loc, nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Current weatherAPICurrent `json:"current"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Current.toConditions(), nil
}

type weatherAPIForecast struct {
	Current  weatherAPICurrent `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date      string `json:"date"`
			DateEpoch int64  `json:"date_epoch"`
			Day       struct {
				MaxTempF     *float64 `json:"maxtemp_f"`
				MinTempF     *float64 `json:"mintemp_f"`
				MaxWindMph   *float64 `json:"maxwind_mph"`
				ChanceOfRain *float64 `json:"daily_chance_of_rain"`
				Condition    struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"day"`
			Hour []struct {
				TimeEpoch    int64    `json:"time_epoch"`
				TempF        *float64 `json:"temp_f"`
				Humidity     *float64 `json:"humidity"`
				WindMph      *float64 `json:"wind_mph"`
				ChanceOfRain *float64 `json:"chance_of_rain"`
				Condition    struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Alerts struct {
		Alert []struct {
			Headline string `json:"headline"`
			Event    string `json:"event"`
			Desc     string `json:"desc"`
			Severity string `json:"severity"`
			Urgency  string `json:"urgency"`
			Areas    string `json:"areas"`
			Expires  string `json:"expires"`
		} `json:"alert"`
	} `json:"alerts"`
}

func (p *WeatherAPIProvider) fetchForecastPayload(ctx context.Context, loc weather.Location, alerts bool) (*weatherAPIForecast, error) {
	extra := url.Values{}
	extra.Set("days", "5")
	if alerts {
		extra.Set("alerts", "yes")
	}
	u, err := p.endpoint("forecast.json", loc, extra)
	if err != nil {
		return nil, err
	}
	var payload weatherAPIForecast
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, loc weather.Location) (*weather.Forecast, error) {
	payload, err := p.fetchForecastPayload(ctx, loc, false)
	if err != nil {
		return nil, err
	}

	fc := &weather.Forecast{GeneratedAt: time.Now().UTC()}
	for _, day := range payload.Forecast.ForecastDay {
		start := time.Unix(day.DateEpoch, 0).UTC()
		fp := weather.ForecastPeriod{
			Name:         start.Weekday().String(),
			StartTime:    weather.Time(start),
			EndTime:      weather.Time(start.Add(24 * time.Hour)),
			HighF:        day.Day.MaxTempF,
			LowF:         day.Day.MinTempF,
			WindSpeedMph: day.Day.MaxWindMph,
			PrecipChance: day.Day.ChanceOfRain,
		}
		if day.Day.Condition.Text != "" {
			fp.ShortForecast = weather.String(day.Day.Condition.Text)
		}
		fc.Periods = append(fc.Periods, fp)
	}
	return fc, nil
}

func (p *WeatherAPIProvider) FetchHourly(ctx context.Context, loc weather.Location) (*weather.HourlyForecast, error) {
	payload, err := p.fetchForecastPayload(ctx, loc, false)
	if err != nil {
		return nil, err
	}

	hf := &weather.HourlyForecast{GeneratedAt: time.Now().UTC()}
	for _, day := range payload.Forecast.ForecastDay {
		for _, h := range day.Hour {
			start := time.Unix(h.TimeEpoch, 0).UTC()
			hp := weather.HourlyForecastPeriod{
				StartTime:    weather.Time(start),
				EndTime:      weather.Time(start.Add(time.Hour)),
				TempF:        h.TempF,
				Humidity:     h.Humidity,
				WindSpeedMph: h.WindMph,
				PrecipChance: h.ChanceOfRain,
			}
			if h.Condition.Text != "" {
				hp.ShortForecast = weather.String(h.Condition.Text)
			}
			hf.Periods = append(hf.Periods, hp)
		}
	}
	return hf, nil
}

func (p *WeatherAPIProvider) FetchAlerts(ctx context.Context, loc weather.Location) (*weather.WeatherAlerts, error) {
	payload, err := p.fetchForecastPayload(ctx, loc, true)
	if err != nil {
		return nil, err
	}

	alerts := &weather.WeatherAlerts{}
	for _, a := range payload.Alerts.Alert {
		al := weather.WeatherAlert{
			Event:       a.Event,
			Headline:    a.Headline,
			Description: a.Desc,
			Severity:    a.Severity,
			Urgency:     a.Urgency,
			AreaDesc:    a.Areas,
		}
		if ts, err := time.Parse(time.RFC3339, a.Expires); err == nil {
			al.Expires = weather.Time(ts.UTC())
		}
		alerts.Alerts = append(alerts.Alerts, al)
	}
	return alerts, nil
}
