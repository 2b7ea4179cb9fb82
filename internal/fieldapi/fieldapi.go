// Package fieldapi fetches soil and weather data for a farm location and
// looks up indicative market prices.
package fieldapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/comigor/ecofarmcast-go/internal/config"
	"github.com/comigor/ecofarmcast-go/internal/logger"
)

// Soil holds topsoil properties at a location.
type Soil struct {
	PH           float64 `json:"ph"`
	Nitrogen     float64 `json:"N"`
	Phosphorus   float64 `json:"P"`
	Potassium    float64 `json:"K"`
	QualityIndex float64 `json:"soil_quality_index"`
}

// DefaultSoil is returned whenever the soil service cannot answer.
var DefaultSoil = Soil{PH: 6.5, Nitrogen: 50, Phosphorus: 50, Potassium: 50, QualityIndex: 20}

// Weather is the current weather at a location.
type Weather struct {
	Temperature float64 `json:"avg_temp"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windspeed"`
}

const defaultHumidity = 60

// Client queries the soil and weather services.
type Client struct {
	soilURL    string
	weatherURL string
	client     *http.Client
}

// NewClient creates a client for the endpoints in cfg.
func NewClient(cfg config.FieldDataConfig) *Client {
	return &Client{
		soilURL:    cfg.SoilURL,
		weatherURL: cfg.WeatherURL,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// Soil returns the 0-30cm mean pH and nitrogen at lat/lon. Phosphorus,
// potassium and the quality index are not served by the API and keep their
// defaults. Any failure yields DefaultSoil.
func (c *Client) Soil(ctx context.Context, lat, lon float64) Soil {
	q := url.Values{}
	q.Set("lon", formatCoord(lon))
	q.Set("lat", formatCoord(lat))
	q.Add("property", "phh2o")
	q.Add("property", "nitrogen")
	q.Set("depth", "0-30cm")
	q.Set("value", "mean")

	body, err := c.get(ctx, c.soilURL, q)
	if err != nil {
		logger.L.Warn("soil API fallback", "error", err)
		return DefaultSoil
	}

	ph := gjson.GetBytes(body, "properties.phh2o.mean")
	n := gjson.GetBytes(body, "properties.nitrogen.mean")
	if !ph.Exists() || !n.Exists() {
		logger.L.Warn("soil API fallback", "error", "missing phh2o or nitrogen in response")
		return DefaultSoil
	}

	soil := DefaultSoil
	soil.PH = ph.Float()
	soil.Nitrogen = n.Float()
	return soil
}

// Weather returns the current weather at lat/lon.
func (c *Client) Weather(ctx context.Context, lat, lon float64) (Weather, error) {
	q := url.Values{}
	q.Set("latitude", formatCoord(lat))
	q.Set("longitude", formatCoord(lon))
	q.Set("hourly", "temperature_2m,relative_humidity_2m,windspeed_10m")
	q.Set("current_weather", "true")

	body, err := c.get(ctx, c.weatherURL, q)
	if err != nil {
		return Weather{}, fmt.Errorf("weather API error: %w", err)
	}

	cur := gjson.GetBytes(body, "current_weather")
	if !cur.Exists() {
		return Weather{}, fmt.Errorf("weather API error: no current_weather in response")
	}
	w := Weather{
		Temperature: cur.Get("temperature").Float(),
		WindSpeed:   cur.Get("windspeed").Float(),
		Humidity:    defaultHumidity,
	}
	if h := cur.Get("relative_humidity"); h.Exists() {
		w.Humidity = h.Float()
	}
	return w, nil
}

func (c *Client) get(ctx context.Context, base string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
