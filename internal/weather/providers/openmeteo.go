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

// OpenMeteoProvider implements the weather.Adapter interface for Open-Meteo.
// It is the international primary; no API key is required.
type OpenMeteoProvider struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newCircuit("openmeteo"),
	}
}

func (p *OpenMeteoProvider) ID() weather.ProviderID {
	return weather.ProviderOpenMeteo
}

func (p *OpenMeteoProvider) query(loc weather.Location) url.Values {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", loc.Latitude))
	values.Set("longitude", fmt.Sprintf("%f", loc.Longitude))
	values.Set("temperature_unit", "fahrenheit")
	values.Set("wind_speed_unit", "mph")
	values.Set("timezone", "UTC")
	values.Set("timeformat", "iso8601")
	return values
}

func (p *OpenMeteoProvider) FetchCurrent(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error) {
	values := p.query(loc)
	values.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,wind_speed_10m,wind_gusts_10m,wind_direction_10m,surface_pressure,weather_code")

	var payload struct {
		Current struct {
			Temperature         *float64 `json:"temperature_2m"`
			RelativeHumidity    *float64 `json:"relative_humidity_2m"`
			ApparentTemperature *float64 `json:"apparent_temperature"`
			WindSpeed           *float64 `json:"wind_speed_10m"`
			WindGusts           *float64 `json:"wind_gusts_10m"`
			WindDirection       *float64 `json:"wind_direction_10m"`
			SurfacePressure     *float64 `json:"surface_pressure"`
			WeatherCode         *int     `json:"weather_code"`
		} `json:"current"`
	}
	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	cur := &weather.CurrentConditions{}
	if v := payload.Current.Temperature; v != nil {
		cur.TempF = weather.Float(*v)
		cur.TempC = weather.Float((*v - 32) * 5 / 9)
	}
	if v := payload.Current.RelativeHumidity; v != nil {
		cur.Humidity = weather.Float(*v)
	}
	if v := payload.Current.ApparentTemperature; v != nil {
		cur.FeelsLikeF = weather.Float(*v)
	}
	if v := payload.Current.WindSpeed; v != nil {
		cur.WindSpeedMph = weather.Float(*v)
	}
	if v := payload.Current.WindGusts; v != nil {
		cur.WindGustMph = weather.Float(*v)
	}
	if v := payload.Current.WindDirection; v != nil {
		cur.WindDirDeg = weather.Float(*v)
	}
	if v := payload.Current.SurfacePressure; v != nil {
		cur.PressureMb = weather.Float(*v)
	}
	if v := payload.Current.WeatherCode; v != nil {
		cur.Condition = weather.String(describeWeatherCode(*v))
	}
	return cur, nil
}

func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, loc weather.Location) (*weather.Forecast, error) {
	values := p.query(loc)
	values.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_probability_max,weather_code,wind_speed_10m_max")
	values.Set("forecast_days", "7")

	var payload struct {
		Daily struct {
			Time         []string   `json:"time"`
			TempMax      []*float64 `json:"temperature_2m_max"`
			TempMin      []*float64 `json:"temperature_2m_min"`
			PrecipProb   []*float64 `json:"precipitation_probability_max"`
			WeatherCode  []*int     `json:"weather_code"`
			WindSpeedMax []*float64 `json:"wind_speed_10m_max"`
		} `json:"daily"`
	}
	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	fc := &weather.Forecast{GeneratedAt: time.Now().UTC()}
	for i, day := range payload.Daily.Time {
		start, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, fmt.Errorf("%w: bad daily time %q", ErrMalformedResponse, day)
		}
		end := start.Add(24 * time.Hour)
		fp := weather.ForecastPeriod{
			Name:      start.Weekday().String(),
			StartTime: weather.Time(start.UTC()),
			EndTime:   weather.Time(end.UTC()),
		}
		if v := at(payload.Daily.TempMax, i); v != nil {
			fp.HighF = weather.Float(*v)
		}
		if v := at(payload.Daily.TempMin, i); v != nil {
			fp.LowF = weather.Float(*v)
		}
		if v := at(payload.Daily.PrecipProb, i); v != nil {
			fp.PrecipChance = weather.Float(*v)
		}
		if v := at(payload.Daily.WindSpeedMax, i); v != nil {
			fp.WindSpeedMph = weather.Float(*v)
		}
		if v := at(payload.Daily.WeatherCode, i); v != nil {
			fp.ShortForecast = weather.String(describeWeatherCode(*v))
		}
		fc.Periods = append(fc.Periods, fp)
	}
	return fc, nil
}

func (p *OpenMeteoProvider) FetchHourly(ctx context.Context, loc weather.Location) (*weather.HourlyForecast, error) {
	values := p.query(loc)
	values.Set("hourly", "temperature_2m,precipitation_probability,relative_humidity_2m,wind_speed_10m,weather_code")
	values.Set("forecast_hours", "24")

	var payload struct {
		Hourly struct {
			Time        []string   `json:"time"`
			Temperature []*float64 `json:"temperature_2m"`
			PrecipProb  []*float64 `json:"precipitation_probability"`
			Humidity    []*float64 `json:"relative_humidity_2m"`
			WindSpeed   []*float64 `json:"wind_speed_10m"`
			WeatherCode []*int     `json:"weather_code"`
		} `json:"hourly"`
	}
	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	hf := &weather.HourlyForecast{GeneratedAt: time.Now().UTC()}
	for i, hour := range payload.Hourly.Time {
		start, err := time.Parse("2006-01-02T15:04", hour)
		if err != nil {
			return nil, fmt.Errorf("%w: bad hourly time %q", ErrMalformedResponse, hour)
		}
		end := start.Add(time.Hour)
		hp := weather.HourlyForecastPeriod{
			StartTime: weather.Time(start.UTC()),
			EndTime:   weather.Time(end.UTC()),
		}
		if v := at(payload.Hourly.Temperature, i); v != nil {
			hp.TempF = weather.Float(*v)
		}
		if v := at(payload.Hourly.PrecipProb, i); v != nil {
			hp.PrecipChance = weather.Float(*v)
		}
		if v := at(payload.Hourly.Humidity, i); v != nil {
			hp.Humidity = weather.Float(*v)
		}
		if v := at(payload.Hourly.WindSpeed, i); v != nil {
			hp.WindSpeedMph = weather.Float(*v)
		}
		if v := at(payload.Hourly.WeatherCode, i); v != nil {
			hp.ShortForecast = weather.String(describeWeatherCode(*v))
		}
		hf.Periods = append(hf.Periods, hp)
	}
	return hf, nil
}

// Open-Meteo has no alert feed.
func (p *OpenMeteoProvider) FetchAlerts(ctx context.Context, loc weather.Location) (*weather.WeatherAlerts, error) {
	return nil, weather.ErrNotSupported
}

// at indexes a parallel array defensively; Open-Meteo arrays are expected
// to be the same length as the time axis but short replies happen.
func at[T any](vals []*T, i int) *T {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

// describeWeatherCode maps WMO weather codes to a short condition text
// (simplified).
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code >= 1 && code <= 3:
		return "Partly Cloudy"
	case code == 45 || code == 48:
		return "Fog"
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return "Rain"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
