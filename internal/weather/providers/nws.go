package providers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Orinks/AccessiWeather-sub007/internal/common"
	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

// NWSProvider implements the weather.Adapter interface for the National
// Weather Service API. It is the domestic primary and the only adapter
// serving forecast discussions.
type NWSProvider struct {
	userAgent string
	baseURL   string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker

	// Gridpoint metadata is stable per location; memoize it so repeat
	// fetches cost one round trip less.
	mu     sync.Mutex
	points map[string]nwsPointProperties
}

func NewNWSProvider(client *http.Client, userAgent string) *NWSProvider {
	if userAgent == "" {
		userAgent = "AccessiWeather (github.com/Orinks/AccessiWeather-sub007)"
	}
	return &NWSProvider{
		userAgent: userAgent,
		baseURL:   "https://api.weather.gov",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: defaultBackoff(),
		},
		circuit: newCircuit("nws"),
		points:  make(map[string]nwsPointProperties),
	}
}

func (p *NWSProvider) ID() weather.ProviderID {
	return weather.ProviderNWS
}

func (p *NWSProvider) headers() map[string]string {
	return map[string]string{
		"User-Agent": p.userAgent,
		"Accept":     "application/geo+json",
	}
}

type nwsPointProperties struct {
	GridID              string `json:"gridId"`
	Forecast            string `json:"forecast"`
	ForecastHourly      string `json:"forecastHourly"`
	ObservationStations string `json:"observationStations"`
}

func (p *NWSProvider) pointMetadata(ctx context.Context, loc weather.Location) (nwsPointProperties, error) {
	key := loc.Key()
	p.mu.Lock()
	if pt, ok := p.points[key]; ok {
		p.mu.Unlock()
		return pt, nil
	}
	p.mu.Unlock()

	var payload struct {
		Properties nwsPointProperties `json:"properties"`
	}
	u := fmt.Sprintf("%s/points/%.4f,%.4f", p.baseURL, loc.Latitude, loc.Longitude)
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, p.headers(), &payload); err != nil {
		return nwsPointProperties{}, err
	}
	if payload.Properties.Forecast == "" {
		return nwsPointProperties{}, fmt.Errorf("%w: points response missing forecast URL", ErrMalformedResponse)
	}

	p.mu.Lock()
	p.points[key] = payload.Properties
	p.mu.Unlock()
	return payload.Properties, nil
}

// nwsQuantity is the NWS unit-tagged measurement wrapper.
type nwsQuantity struct {
	Value *float64 `json:"value"`
}

func (p *NWSProvider) FetchCurrent(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error) {
	pt, err := p.pointMetadata(ctx, loc)
	if err != nil {
		return nil, err
	}
	if pt.ObservationStations == "" {
		return nil, fmt.Errorf("no observation stations for %s", loc.Key())
	}

	var stations struct {
		Features []struct {
			Properties struct {
				StationIdentifier string `json:"stationIdentifier"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, pt.ObservationStations, p.headers(), &stations); err != nil {
		return nil, err
	}
	if len(stations.Features) == 0 {
		return nil, fmt.Errorf("empty station list for %s", loc.Key())
	}

	var obs struct {
		Properties struct {
			Temperature        nwsQuantity `json:"temperature"`
			Dewpoint           nwsQuantity `json:"dewpoint"`
			RelativeHumidity   nwsQuantity `json:"relativeHumidity"`
			WindSpeed          nwsQuantity `json:"windSpeed"`
			WindGust           nwsQuantity `json:"windGust"`
			WindDirection      nwsQuantity `json:"windDirection"`
			BarometricPressure nwsQuantity `json:"barometricPressure"`
			Visibility         nwsQuantity `json:"visibility"`
			TextDescription    string      `json:"textDescription"`
		} `json:"properties"`
	}
	u := fmt.Sprintf("%s/stations/%s/observations/latest", p.baseURL, stations.Features[0].Properties.StationIdentifier)
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, p.headers(), &obs); err != nil {
		return nil, err
	}

	cur := &weather.CurrentConditions{}
	if v := obs.Properties.Temperature.Value; v != nil {
		cur.TempC = weather.Float(*v)
		cur.TempF = weather.Float(common.CToF(*v))
	}
	if v := obs.Properties.Dewpoint.Value; v != nil {
		cur.DewpointF = weather.Float(common.CToF(*v))
	}
	if v := obs.Properties.RelativeHumidity.Value; v != nil {
		cur.Humidity = weather.Float(*v)
	}
	if v := obs.Properties.WindSpeed.Value; v != nil {
		// NWS reports km/h.
		cur.WindSpeedMph = weather.Float(*v * 0.621371)
	}
	if v := obs.Properties.WindGust.Value; v != nil {
		cur.WindGustMph = weather.Float(*v * 0.621371)
	}
	if v := obs.Properties.WindDirection.Value; v != nil {
		cur.WindDirDeg = weather.Float(*v)
	}
	if v := obs.Properties.BarometricPressure.Value; v != nil {
		// Pa to millibars.
		cur.PressureMb = weather.Float(*v / 100)
	}
	if v := obs.Properties.Visibility.Value; v != nil {
		// meters to miles.
		cur.VisibilityMi = weather.Float(*v / 1609.34)
	}
	if obs.Properties.TextDescription != "" {
		cur.Condition = weather.String(obs.Properties.TextDescription)
	}
	return cur, nil
}

// nwsForecastPayload covers both the daily and hourly gridpoint endpoints.
type nwsForecastPayload struct {
	Properties struct {
		GeneratedAt string `json:"generatedAt"`
		Periods     []struct {
			Name                       string  `json:"name"`
			StartTime                  string  `json:"startTime"`
			EndTime                    string  `json:"endTime"`
			Temperature                float64 `json:"temperature"`
			TemperatureUnit            string  `json:"temperatureUnit"`
			ProbabilityOfPrecipitation struct {
				Value *float64 `json:"value"`
			} `json:"probabilityOfPrecipitation"`
			RelativeHumidity struct {
				Value *float64 `json:"value"`
			} `json:"relativeHumidity"`
			WindSpeed        string `json:"windSpeed"`
			WindDirection    string `json:"windDirection"`
			Icon             string `json:"icon"`
			ShortForecast    string `json:"shortForecast"`
			DetailedForecast string `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

func (payload *nwsForecastPayload) generatedAt() time.Time {
	if ts, err := time.Parse(time.RFC3339, payload.Properties.GeneratedAt); err == nil {
		return ts.UTC()
	}
	return time.Now().UTC()
}

func parseNWSTime(s string) *time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	u := ts.UTC()
	return &u
}

func (p *NWSProvider) FetchForecast(ctx context.Context, loc weather.Location) (*weather.Forecast, error) {
	pt, err := p.pointMetadata(ctx, loc)
	if err != nil {
		return nil, err
	}

	var payload nwsForecastPayload
	if err := getJSON(ctx, p.httpCfg, p.circuit, pt.Forecast, p.headers(), &payload); err != nil {
		return nil, err
	}

	fc := &weather.Forecast{GeneratedAt: payload.generatedAt()}
	for _, per := range payload.Properties.Periods {
		fp := weather.ForecastPeriod{
			Name:      per.Name,
			StartTime: parseNWSTime(per.StartTime),
			EndTime:   parseNWSTime(per.EndTime),
			TempF:     weather.Float(per.Temperature),
		}
		if per.TemperatureUnit == "C" {
			fp.TempF = weather.Float(common.CToF(per.Temperature))
		}
		if v := per.ProbabilityOfPrecipitation.Value; v != nil {
			fp.PrecipChance = weather.Float(*v)
		}
		if v, ok := common.ParseLeadingFloat(per.WindSpeed); ok {
			fp.WindSpeedMph = weather.Float(v)
		}
		if per.WindDirection != "" {
			fp.WindDirection = weather.String(per.WindDirection)
		}
		if per.ShortForecast != "" {
			fp.ShortForecast = weather.String(per.ShortForecast)
		}
		if per.DetailedForecast != "" {
			fp.DetailedForecast = weather.String(per.DetailedForecast)
		}
		if per.Icon != "" {
			fp.Icon = weather.String(per.Icon)
		}
		fc.Periods = append(fc.Periods, fp)
	}
	return fc, nil
}

func (p *NWSProvider) FetchHourly(ctx context.Context, loc weather.Location) (*weather.HourlyForecast, error) {
	pt, err := p.pointMetadata(ctx, loc)
	if err != nil {
		return nil, err
	}
	if pt.ForecastHourly == "" {
		return nil, weather.ErrNotSupported
	}

	var payload nwsForecastPayload
	if err := getJSON(ctx, p.httpCfg, p.circuit, pt.ForecastHourly, p.headers(), &payload); err != nil {
		return nil, err
	}

	hf := &weather.HourlyForecast{GeneratedAt: payload.generatedAt()}
	for _, per := range payload.Properties.Periods {
		hp := weather.HourlyForecastPeriod{
			Name:      per.Name,
			StartTime: parseNWSTime(per.StartTime),
			EndTime:   parseNWSTime(per.EndTime),
			TempF:     weather.Float(per.Temperature),
		}
		if per.TemperatureUnit == "C" {
			hp.TempF = weather.Float(common.CToF(per.Temperature))
		}
		if v := per.ProbabilityOfPrecipitation.Value; v != nil {
			hp.PrecipChance = weather.Float(*v)
		}
		if v := per.RelativeHumidity.Value; v != nil {
			hp.Humidity = weather.Float(*v)
		}
		if v, ok := common.ParseLeadingFloat(per.WindSpeed); ok {
			hp.WindSpeedMph = weather.Float(v)
		}
		if per.ShortForecast != "" {
			hp.ShortForecast = weather.String(per.ShortForecast)
		}
		hf.Periods = append(hf.Periods, hp)
	}
	return hf, nil
}

func (p *NWSProvider) FetchAlerts(ctx context.Context, loc weather.Location) (*weather.WeatherAlerts, error) {
	var payload struct {
		Features []struct {
			Properties struct {
				ID          string `json:"id"`
				Event       string `json:"event"`
				Headline    string `json:"headline"`
				Description string `json:"description"`
				Severity    string `json:"severity"`
				Urgency     string `json:"urgency"`
				AreaDesc    string `json:"areaDesc"`
				Onset       string `json:"onset"`
				Expires     string `json:"expires"`
			} `json:"properties"`
		} `json:"features"`
	}
	u := fmt.Sprintf("%s/alerts/active?point=%.4f,%.4f", p.baseURL, loc.Latitude, loc.Longitude)
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, p.headers(), &payload); err != nil {
		return nil, err
	}

	alerts := &weather.WeatherAlerts{}
	for _, f := range payload.Features {
		alerts.Alerts = append(alerts.Alerts, weather.WeatherAlert{
			ID:          f.Properties.ID,
			Event:       f.Properties.Event,
			Headline:    f.Properties.Headline,
			Description: f.Properties.Description,
			Severity:    f.Properties.Severity,
			Urgency:     f.Properties.Urgency,
			AreaDesc:    f.Properties.AreaDesc,
			Onset:       parseNWSTime(f.Properties.Onset),
			Expires:     parseNWSTime(f.Properties.Expires),
		})
	}
	return alerts, nil
}

// FetchDiscussion retrieves the latest Area Forecast Discussion for the
// location's forecast office.
func (p *NWSProvider) FetchDiscussion(ctx context.Context, loc weather.Location) (string, error) {
	pt, err := p.pointMetadata(ctx, loc)
	if err != nil {
		return "", err
	}
	if pt.GridID == "" {
		return "", weather.ErrNotSupported
	}

	var listing struct {
		Graph []struct {
			ID string `json:"@id"`
		} `json:"@graph"`
	}
	u := fmt.Sprintf("%s/products/types/AFD/locations/%s", p.baseURL, pt.GridID)
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, p.headers(), &listing); err != nil {
		return "", err
	}
	if len(listing.Graph) == 0 {
		return "", fmt.Errorf("no forecast discussion products for %s", pt.GridID)
	}

	var product struct {
		ProductText string `json:"productText"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, listing.Graph[0].ID, p.headers(), &product); err != nil {
		return "", err
	}
	return product.ProductText, nil
}
