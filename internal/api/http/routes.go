package httpapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Orinks/AccessiWeather-sub007/internal/weather"
)

var validate = validator.New()

// WeatherService is the slice of the weather client the HTTP layer needs.
type WeatherService interface {
	GetWeather(ctx context.Context, loc weather.Location, forceRefresh bool) (*weather.WeatherData, error)
	GetCachedWeather(loc weather.Location) *weather.WeatherData
}

// LocationResolver geocodes name-only queries. May be nil when no geocoding
// key is configured.
type LocationResolver interface {
	Resolve(city, country string) (weather.Location, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service WeatherService, resolver LocationResolver) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		req, err := parseWeatherQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := req.toLocation(resolver)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		data, err := service.GetWeather(c.Context(), loc, req.Refresh)
		if err != nil {
			if errors.Is(err, weather.ErrTotalFetchFailure) {
				return fiber.NewError(fiber.StatusBadGateway, "all weather providers failed")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}
		return c.JSON(data)
	})

	v1.Get("/weather/cached", func(c *fiber.Ctx) error {
		req, err := parseWeatherQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := req.toLocation(resolver)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		data := service.GetCachedWeather(loc)
		if data == nil {
			return fiber.NewError(fiber.StatusNotFound, "no cached weather for requested location")
		}
		return c.JSON(data)
	})
}

// weatherQuery holds query parameters identifying a location plus fetch
// options. Either coordinates or a resolvable name must be present.
type weatherQuery struct {
	Name    string `validate:"required"`
	Lat     *float64
	Lon     *float64
	Country string `validate:"omitempty,iso3166_1_alpha2"`
	Refresh bool
}

func parseWeatherQuery(c *fiber.Ctx) (weatherQuery, error) {
	var q weatherQuery
	q.Name = c.Query("name")
	q.Country = c.Query("country")
	q.Refresh = c.QueryBool("refresh")

	if latStr := c.Query("lat"); latStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return q, errors.New("lat must be a number")
		}
		q.Lat = &lat
	}
	if lonStr := c.Query("lon"); lonStr != "" {
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return q, errors.New("lon must be a number")
		}
		q.Lon = &lon
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func (q weatherQuery) toLocation(resolver LocationResolver) (weather.Location, error) {
	if q.Lat != nil && q.Lon != nil {
		return weather.Location{
			Name:        q.Name,
			Latitude:    *q.Lat,
			Longitude:   *q.Lon,
			CountryCode: q.Country,
		}, nil
	}
	if resolver == nil {
		return weather.Location{}, errors.New("lat and lon are required (no geocoder configured)")
	}
	return resolver.Resolve(q.Name, q.Country)
}
