package geo_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/geo"
	"github.com/Additional-Code/kitchen/internal/port"
)

func newServer(t *testing.T, geocode, route string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/geocoding/v3/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("ak"))
		assert.Equal(t, "json", r.URL.Query().Get("output"))
		_, _ = w.Write([]byte(geocode))
	})
	mux.HandleFunc("/directionlite/v1/driving", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("steps_info"))
		assert.Equal(t, "40.056000,116.308000", r.URL.Query().Get("origin"))
		_, _ = w.Write([]byte(route))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server) *geo.Client {
	return geo.NewClient(config.Geo{BaseURL: srv.URL, AK: "secret"}, srv.Client())
}

func TestResolveAndRoute(t *testing.T) {
	srv := newServer(t,
		`{"status":0,"result":{"location":{"lng":116.31,"lat":40.05}}}`,
		`{"status":0,"result":{"routes":[{"distance":4200},{"distance":9000}]}}`,
	)
	c := newClient(srv)

	dest, err := c.ResolveCoordinates(t.Context(), "Haidian 1")
	require.NoError(t, err)
	assert.InDelta(t, 40.05, dest.Lat, 1e-9)
	assert.InDelta(t, 116.31, dest.Lng, 1e-9)

	origin, err := geo.ParseCoordinate("40.056,116.308")
	require.NoError(t, err)

	distance, err := c.RouteDistance(t.Context(), origin, dest)
	require.NoError(t, err)
	assert.Equal(t, 4200, distance)
}

func TestNonSuccessStatusesAreDistinct(t *testing.T) {
	srv := newServer(t,
		`{"status":"1","message":"internal"}`,
		`{"status":2,"message":"bad request"}`,
	)
	c := newClient(srv)

	_, err := c.ResolveCoordinates(t.Context(), "nowhere")
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrGeocodeFailed))
	assert.False(t, errors.Is(err, port.ErrRoutePlanFailed))

	_, err = c.RouteDistance(t.Context(), port.Coordinate{Lat: 40.056, Lng: 116.308}, port.Coordinate{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, port.ErrRoutePlanFailed))
}

func TestRouteWithoutRoutesFails(t *testing.T) {
	srv := newServer(t, `{}`, `{"status":0,"result":{"routes":[]}}`)

	_, err := newClient(srv).RouteDistance(t.Context(), port.Coordinate{Lat: 40.056, Lng: 116.308}, port.Coordinate{})
	assert.ErrorIs(t, err, port.ErrRoutePlanFailed)
}

func TestParseCoordinate(t *testing.T) {
	_, err := geo.ParseCoordinate("40.0")
	assert.Error(t, err)
	_, err = geo.ParseCoordinate("north,116")
	assert.Error(t, err)

	c, err := geo.ParseCoordinate(" 1.5 , 2.5 ")
	require.NoError(t, err)
	assert.Equal(t, port.Coordinate{Lat: 1.5, Lng: 2.5}, c)
}
