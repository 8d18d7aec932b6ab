package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

type stubService struct {
	data       *weather.WeatherData
	err        error
	cached     *weather.WeatherData
	lastLoc    weather.Location
	lastForced bool
	calls      int
}

func (s *stubService) GetWeather(ctx context.Context, loc weather.Location, forceRefresh bool) (*weather.WeatherData, error) {
	s.calls++
	s.lastLoc = loc
	s.lastForced = forceRefresh
	return s.data, s.err
}

func (s *stubService) GetCachedWeather(loc weather.Location) *weather.WeatherData {
	s.lastLoc = loc
	return s.cached
}

type stubResolver struct {
	loc weather.Location
	err error
}

func (r *stubResolver) Resolve(city, country string) (weather.Location, error) {
	return r.loc, r.err
}

func newTestApp(service WeatherService, resolver LocationResolver) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, service, resolver)
	return app
}

func doRequest(t *testing.T, app *fiber.App, url string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestGetWeatherWithCoordinates(t *testing.T) {
	loc := weather.Location{Name: "Philadelphia", Latitude: 39.95, Longitude: -75.17, CountryCode: "US"}
	svc := &stubService{data: weather.EmptyWeatherData(loc)}
	app := newTestApp(svc, nil)

	resp := doRequest(t, app, "/api/v1/weather?name=Philadelphia&lat=39.95&lon=-75.17&country=US")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if svc.lastLoc.Latitude != 39.95 || svc.lastLoc.CountryCode != "US" {
		t.Errorf("service received wrong location: %+v", svc.lastLoc)
	}
	if svc.lastForced {
		t.Error("refresh must default to false")
	}

	var body weather.WeatherData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Location.Name != "Philadelphia" {
		t.Errorf("unexpected body location: %+v", body.Location)
	}
}

func TestGetWeatherRefreshFlag(t *testing.T) {
	loc := weather.Location{Name: "Philadelphia", Latitude: 39.95, Longitude: -75.17}
	svc := &stubService{data: weather.EmptyWeatherData(loc)}
	app := newTestApp(svc, nil)

	resp := doRequest(t, app, "/api/v1/weather?name=Philadelphia&lat=39.95&lon=-75.17&refresh=true")
	resp.Body.Close()

	if !svc.lastForced {
		t.Error("refresh=true must force a refresh")
	}
}

func TestGetWeatherMissingName(t *testing.T) {
	app := newTestApp(&stubService{}, nil)

	resp := doRequest(t, app, "/api/v1/weather?lat=39.95&lon=-75.17")
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", resp.StatusCode)
	}
}

func TestGetWeatherBadCountry(t *testing.T) {
	app := newTestApp(&stubService{}, nil)

	resp := doRequest(t, app, "/api/v1/weather?name=Paris&lat=48.85&lon=2.35&country=France")
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for non-ISO country, got %d", resp.StatusCode)
	}
}

func TestGetWeatherBadCoordinate(t *testing.T) {
	app := newTestApp(&stubService{}, nil)

	resp := doRequest(t, app, "/api/v1/weather?name=Paris&lat=abc&lon=2.35")
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric lat, got %d", resp.StatusCode)
	}
}

func TestGetWeatherNameOnlyWithoutResolver(t *testing.T) {
	svc := &stubService{}
	app := newTestApp(svc, nil)

	resp := doRequest(t, app, "/api/v1/weather?name=Paris")
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without resolver, got %d", resp.StatusCode)
	}
	if svc.calls != 0 {
		t.Error("service must not be called when the location cannot be resolved")
	}
}

func TestGetWeatherNameOnlyWithResolver(t *testing.T) {
	loc := weather.Location{Name: "Paris", Latitude: 48.85, Longitude: 2.35, CountryCode: "FR"}
	svc := &stubService{data: weather.EmptyWeatherData(loc)}
	app := newTestApp(svc, &stubResolver{loc: loc})

	resp := doRequest(t, app, "/api/v1/weather?name=Paris&country=FR")
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if svc.lastLoc.Latitude != 48.85 {
		t.Errorf("resolved location not passed through: %+v", svc.lastLoc)
	}
}

func TestGetWeatherResolverFailure(t *testing.T) {
	app := newTestApp(&stubService{}, &stubResolver{err: errors.New("no match")})

	resp := doRequest(t, app, "/api/v1/weather?name=Nowhereville")
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 when geocoding fails, got %d", resp.StatusCode)
	}
}

func TestGetWeatherTotalFailure(t *testing.T) {
	svc := &stubService{err: weather.ErrTotalFetchFailure}
	app := newTestApp(svc, nil)

	resp := doRequest(t, app, "/api/v1/weather?name=Philadelphia&lat=39.95&lon=-75.17&refresh=true")
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 on total provider failure, got %d", resp.StatusCode)
	}
}

func TestGetCachedWeatherMiss(t *testing.T) {
	app := newTestApp(&stubService{}, nil)

	resp := doRequest(t, app, "/api/v1/weather/cached?name=Philadelphia&lat=39.95&lon=-75.17")
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on cache miss, got %d", resp.StatusCode)
	}
}

func TestGetCachedWeatherHit(t *testing.T) {
	loc := weather.Location{Name: "Philadelphia", Latitude: 39.95, Longitude: -75.17}
	svc := &stubService{cached: weather.EmptyWeatherData(loc)}
	app := newTestApp(svc, nil)

	resp := doRequest(t, app, "/api/v1/weather/cached?name=Philadelphia&lat=39.95&lon=-75.17")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if svc.calls != 0 {
		t.Error("cached endpoint must never trigger a fetch")
	}
}
