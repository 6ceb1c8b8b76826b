package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edashboard/internal/model"
)

const sampleBody = `{"count":1,"data":[{"wind_spd":3.5,"temp":12.4,"app_temp":11,"rh":71,
"weather":{"icon":"c02d","code":802,"description":"Scattered clouds"}}]}`

type countingSource struct {
	calls   int
	reading model.WeatherReading
	err     error
}

func (s *countingSource) Current(context.Context) (model.WeatherReading, error) {
	s.calls++
	return s.reading, s.err
}

func TestClient_Current(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got.Store(map[string]string{
			"lat":  q.Get("lat"),
			"lon":  q.Get("lon"),
			"lang": q.Get("lang"),
			"key":  q.Get("key"),
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{Endpoint: srv.URL, Lat: 55.75, Lon: 37.6, Lang: "ru", APIKey: "secret"})
	r, err := c.Current(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"lat": "55.75", "lon": "37.6", "lang": "ru", "key": "secret"}, got.Load())
	assert.Equal(t, model.WeatherReading{
		WindSpeed:            3.5,
		Temperature:          12.4,
		FeelsLikeTemperature: 11,
		Humidity:             71,
		IconCode:             "c02d",
		Description:          "Scattered clouds",
	}, r)
}

func TestClient_ErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "forbidden", http.StatusForbidden)
			},
			want: ErrStatus,
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			want: ErrMalformed,
		},
		{
			name: "missing data",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"error":"quota"}`))
			},
			want: ErrMalformed,
		},
		{
			name: "empty data",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":[]}`))
			},
			want: ErrMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(ClientOptions{Endpoint: srv.URL, APIKey: "k"})
			_, err := c.Current(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(ClientOptions{Endpoint: srv.URL, APIKey: "k", Timeout: 50 * time.Millisecond})
	_, err := c.Current(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "timeout", Kind(err))
	assert.NotContains(t, err.Error(), "key=k")
}

func TestClient_Transport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c := NewClient(ClientOptions{Endpoint: endpoint, APIKey: "k"})
	_, err := c.Current(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", Kind(nil))
	assert.Equal(t, "status", Kind(ErrStatus))
	assert.Equal(t, "malformed", Kind(errors.Join(errors.New("x"), ErrMalformed)))
	assert.Equal(t, "transport", Kind(ErrTransport))
	assert.Equal(t, "unknown", Kind(errors.New("other")))
}

func TestRefresh_Eligibility(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &countingSource{reading: model.WeatherReading{Temperature: 3}}
	r := NewRefresher(src, 15*time.Minute)

	st, err := r.Refresh(context.Background(), t0, State{})
	require.NoError(t, err)
	require.NotNil(t, st.Reading)
	assert.Equal(t, 1, src.calls, "unset state fetches")
	assert.Equal(t, t0, st.LastFetch)

	st2, err := r.Refresh(context.Background(), t0.Add(899*time.Second), st)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "fresh state must not fetch")
	assert.Equal(t, st, st2)

	st3, err := r.Refresh(context.Background(), t0.Add(900*time.Second), st)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "exactly the interval is still fresh")
	assert.Equal(t, st, st3)

	st4, err := r.Refresh(context.Background(), t0.Add(901*time.Second), st)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, t0.Add(901*time.Second), st4.LastFetch)
}

func TestRefresh_FailureKeepsState(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := State{Reading: &model.WeatherReading{Temperature: 7}, LastFetch: t0}

	for _, kind := range []error{ErrTransport, ErrMalformed, ErrTimeout} {
		src := &countingSource{err: kind}
		r := NewRefresher(src, 15*time.Minute)

		st, err := r.Refresh(context.Background(), t0.Add(time.Hour), prev)
		require.ErrorIs(t, err, kind)
		assert.Equal(t, prev, st)
		assert.Same(t, prev.Reading, st.Reading)
		assert.Equal(t, 1, src.calls)
	}
}

func TestRefresh_NetworkFailureAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"count":0}`))
	}))
	defer srv.Close()

	r := NewRefresher(NewClient(ClientOptions{Endpoint: srv.URL, APIKey: "k"}), 0)
	st, err := r.Refresh(context.Background(), time.Now(), State{})
	require.ErrorIs(t, err, ErrMalformed)
	assert.Nil(t, st.Reading)
	assert.True(t, st.LastFetch.IsZero())
}

func TestOfflineRefresher(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewOfflineRefresher(MockReading())

	st, err := r.Refresh(context.Background(), now, State{})
	require.NoError(t, err)
	require.NotNil(t, st.Reading)
	assert.Equal(t, "r01n", st.Reading.IconCode)
	assert.InDelta(t, 1.5, st.Reading.FeelsLikeTemperature, 1e-9)
	assert.InDelta(t, 86, st.Reading.Humidity, 1e-9)

	again, err := r.Refresh(context.Background(), now.Add(time.Hour), st)
	require.NoError(t, err)
	assert.Equal(t, st, again)

	assert.True(t, IsOffline(r))
	assert.False(t, IsOffline(NewRefresher(&countingSource{}, DefaultInterval)))
}
