package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"edashboard/internal/model"
)

// maxBody caps how much of a response we are willing to read.
const maxBody = 1 << 20

// Source produces a current weather reading.
type Source interface {
	Current(ctx context.Context) (model.WeatherReading, error)
}

// Client talks to the Weatherbit "current" endpoint.
type Client struct {
	client   *http.Client
	endpoint string
	lat, lon float64
	lang     string
	apiKey   string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Endpoint string
	Lat, Lon float64
	Lang     string
	APIKey   string
	Timeout  time.Duration
}

// NewClient creates a Weatherbit client. A zero Timeout means 10s.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		endpoint: opts.Endpoint,
		lat:      opts.Lat,
		lon:      opts.Lon,
		lang:     opts.Lang,
		apiKey:   opts.APIKey,
	}
}

// response mirrors the subset of the Weatherbit payload that is used.
type response struct {
	Data []struct {
		WindSpeed   float64 `json:"wind_spd"`
		Temperature float64 `json:"temp"`
		FeelsLike   float64 `json:"app_temp"`
		Humidity    float64 `json:"rh"`
		Weather     struct {
			Icon        string `json:"icon"`
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"data"`
}

// Current fetches and decodes the first element of the response's data
// array. Errors wrap one of ErrTimeout, ErrTransport, ErrStatus or
// ErrMalformed.
func (c *Client) Current(ctx context.Context) (model.WeatherReading, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return model.WeatherReading{}, fmt.Errorf("%w: endpoint: %v", ErrTransport, err)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(c.lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.lon, 'f', -1, 64))
	q.Set("lang", c.lang)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.WeatherReading{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.WeatherReading{}, fmt.Errorf("%w: %v", classifyTransport(err), redactErr(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.WeatherReading{}, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return model.WeatherReading{}, fmt.Errorf("%w: read body: %v", classifyTransport(err), err)
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return model.WeatherReading{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(r.Data) == 0 {
		return model.WeatherReading{}, fmt.Errorf("%w: empty data array", ErrMalformed)
	}

	d := r.Data[0]
	return model.WeatherReading{
		WindSpeed:            d.WindSpeed,
		Temperature:          d.Temperature,
		FeelsLikeTemperature: d.FeelsLike,
		Humidity:             d.Humidity,
		IconCode:             d.Weather.Icon,
		Description:          d.Weather.Description,
	}, nil
}

// redactErr keeps the API key out of logged url.Error messages.
func redactErr(err error, key string) error {
	ue, ok := err.(*url.Error)
	if !ok || key == "" {
		return err
	}
	if u, perr := url.Parse(ue.URL); perr == nil {
		q := u.Query()
		if q.Has("key") {
			q.Set("key", "REDACTED")
			u.RawQuery = q.Encode()
			return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
		}
	}
	return err
}
