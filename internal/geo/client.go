package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/port"
)

var geoTracer = otel.Tracer("github.com/Additional-Code/kitchen/geo")

// Module provides the configured geocoder.
var Module = fx.Provide(New)

// New returns the Baidu-backed client, or a pass-through when geocoding is disabled.
func New(cfg config.Config, logger *zap.Logger) port.Geocoder {
	if !cfg.Geo.Enabled {
		logger.Info("geocoding disabled; delivery range checks always pass")
		return Disabled{}
	}
	return NewClient(cfg.Geo, &http.Client{
		Timeout:   cfg.Geo.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// Client talks to the Baidu map web APIs.
type Client struct {
	baseURL string
	ak      string
	http    *http.Client
}

// NewClient builds a client against cfg.BaseURL using hc for transport.
func NewClient(cfg config.Geo, hc *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ak:      cfg.AK,
		http:    hc,
	}
}

// ResolveCoordinates geocodes a postal address.
func (c *Client) ResolveCoordinates(ctx context.Context, address string) (port.Coordinate, error) {
	ctx, span := geoTracer.Start(ctx, "Geo.ResolveCoordinates")
	defer span.End()

	q := url.Values{}
	q.Set("address", address)
	q.Set("output", "json")
	q.Set("ak", c.ak)

	var body struct {
		Status  apiStatus `json:"status"`
		Message string    `json:"message"`
		Result  struct {
			Location struct {
				Lng float64 `json:"lng"`
				Lat float64 `json:"lat"`
			} `json:"location"`
		} `json:"result"`
	}
	if err := c.get(ctx, "/geocoding/v3/", q, &body); err != nil {
		return port.Coordinate{}, fail(span, err)
	}
	if !body.Status.ok() {
		return port.Coordinate{}, fail(span, fmt.Errorf("%w: status %s %s", port.ErrGeocodeFailed, body.Status, body.Message))
	}
	return port.Coordinate{Lat: body.Result.Location.Lat, Lng: body.Result.Location.Lng}, nil
}

// RouteDistance plans a riding route and returns the length of the first route in meters.
func (c *Client) RouteDistance(ctx context.Context, origin, destination port.Coordinate) (int, error) {
	ctx, span := geoTracer.Start(ctx, "Geo.RouteDistance", trace.WithAttributes(
		attribute.String("origin", origin.String()),
	))
	defer span.End()

	q := url.Values{}
	q.Set("origin", origin.String())
	q.Set("destination", destination.String())
	q.Set("steps_info", "0")
	q.Set("output", "json")
	q.Set("ak", c.ak)

	var body struct {
		Status  apiStatus `json:"status"`
		Message string    `json:"message"`
		Result  struct {
			Routes []struct {
				Distance int `json:"distance"`
			} `json:"routes"`
		} `json:"result"`
	}
	if err := c.get(ctx, "/directionlite/v1/driving", q, &body); err != nil {
		return 0, fail(span, err)
	}
	if !body.Status.ok() {
		return 0, fail(span, fmt.Errorf("%w: status %s %s", port.ErrRoutePlanFailed, body.Status, body.Message))
	}
	if len(body.Result.Routes) == 0 {
		return 0, fail(span, fmt.Errorf("%w: no routes", port.ErrRoutePlanFailed))
	}
	distance := body.Result.Routes[0].Distance
	span.SetAttributes(attribute.Int("distance", distance))
	return distance, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// apiStatus accepts the status code as either a JSON number or a string.
type apiStatus string

func (s *apiStatus) UnmarshalJSON(b []byte) error {
	*s = apiStatus(bytes.Trim(b, `"`))
	return nil
}

func (s apiStatus) ok() bool { return s == "0" }

// ParseCoordinate parses "lat,lng".
func ParseCoordinate(v string) (port.Coordinate, error) {
	latStr, lngStr, found := strings.Cut(v, ",")
	if !found {
		return port.Coordinate{}, fmt.Errorf("coordinate %q: want lat,lng", v)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return port.Coordinate{}, fmt.Errorf("coordinate %q: lat: %w", v, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return port.Coordinate{}, fmt.Errorf("coordinate %q: lng: %w", v, err)
	}
	return port.Coordinate{Lat: lat, Lng: lng}, nil
}

// Disabled resolves every address to the zero coordinate at zero distance.
type Disabled struct{}

func (Disabled) ResolveCoordinates(context.Context, string) (port.Coordinate, error) {
	return port.Coordinate{}, nil
}

func (Disabled) RouteDistance(context.Context, port.Coordinate, port.Coordinate) (int, error) {
	return 0, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
