package myclub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"go-myclub-groups/internal/fetch"
)

func newClient(t *testing.T, baseURL, key string) *Client {
	t.Helper()
	cl, err := fetch.New(fetch.Options{})
	require.NoError(t, err)
	return New(cl, baseURL, key, Identity{Caller: "go-myclub-groups", Site: "https://klubb.example", Version: "1.0.0"})
}

func TestNoCredential_NoRequests(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, "  ")
	ctx := context.Background()
	require.Equal(t, http.StatusUnauthorized, c.LoadCalendar(ctx).Status)
	require.Equal(t, http.StatusUnauthorized, c.LoadMenu(ctx).Status)
	require.Equal(t, http.StatusUnauthorized, c.LoadOtherTeamsMenu(ctx).Status)
	g, err := c.LoadGroup(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, g.Status)
	n, err := c.LoadNews(ctx)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, n.Status)
	require.Zero(t, atomic.LoadInt32(&hits))
}

func TestLoadCalendar_HeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/calendar/", r.URL.Path)
		require.Equal(t, "null", r.URL.Query().Get("limit"))
		require.Equal(t, "2", r.URL.Query().Get("version"))
		require.Equal(t, "Api-Key secret", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		require.Equal(t, "go-myclub-groups", r.Header.Get("X-MyClub-Caller"))
		require.Equal(t, "false", r.Header.Get("X-MyClub-MultiSite"))
		require.Equal(t, "https://klubb.example", r.Header.Get("X-MyClub-Site"))
		require.Equal(t, "1.0.0", r.Header.Get("X-MyClub-Version"))
		_, _ = w.Write([]byte(`{"count":1,"results":[{"uid":"a1","title":"Match","day":"2024-05-01","meet_up_time":15}]}`))
	}))
	defer srv.Close()

	env := newClient(t, srv.URL, "secret").LoadCalendar(context.Background())
	require.True(t, env.OK())
	require.Len(t, env.Result.Results, 1)
	require.Equal(t, "a1", env.Result.Results[0].UID)
	require.NotNil(t, env.Result.Results[0].MeetUpTime)
	require.Equal(t, 15, *env.Result.Results[0].MeetUpTime)
}

func TestLoadCalendar_StatusPassedThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"nope"}`))
	}))
	defer srv.Close()

	env := newClient(t, srv.URL, "secret").LoadCalendar(context.Background())
	require.Equal(t, http.StatusForbidden, env.Status)
	require.Empty(t, env.Result.Results)
}

func TestLoadCalendar_BadJSONKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	env := newClient(t, srv.URL, "secret").LoadCalendar(context.Background())
	require.Equal(t, http.StatusOK, env.Status)
	require.Empty(t, env.Result.Results)
}

func TestTransportFailureShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := newClient(t, base, "secret")
	ctx := context.Background()

	require.Equal(t, http.StatusInternalServerError, c.LoadCalendar(ctx).Status)
	require.Equal(t, http.StatusInternalServerError, c.LoadMenu(ctx).Status)
	require.Equal(t, http.StatusInternalServerError, c.LoadOtherTeamsMenu(ctx).Status)

	_, err := c.LoadGroup(ctx, "42")
	require.Error(t, err)
	_, err = c.LoadNews(ctx)
	require.Error(t, err)
}

func TestLoadGroup_ChainsThreeRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/teams/42/info/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"42","name":"P12","team_image":{"raw":{"url":"https://img.example/p12.jpg"},"caption":"Laget"}}`))
	})
	mux.HandleFunc("/teams/42/members/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "null", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"results":[{"id":"m1","name":"Anna","role":"Tränare"}]}`))
	})
	mux.HandleFunc("/teams/42/calendar/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2", r.URL.Query().Get("version"))
		_, _ = w.Write([]byte(`{"results":[{"uid":"a1","day":"2024-05-01"},{"uid":"a2","day":"2024-05-02"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	env, err := newClient(t, srv.URL, "secret").LoadGroup(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, env.OK())
	require.Equal(t, "P12", env.Result.Name)
	require.Equal(t, "https://img.example/p12.jpg", env.Result.Image.URL())
	require.Len(t, env.Result.Members, 1)
	require.Len(t, env.Result.Activities, 2)
}

func TestLoadGroup_NonOKStepDropsPartialData(t *testing.T) {
	var calendarHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/teams/42/info/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"42","name":"P12"}`))
	})
	mux.HandleFunc("/teams/42/members/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/teams/42/calendar/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calendarHits, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	env, err := newClient(t, srv.URL, "secret").LoadGroup(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, env.Status)
	require.Empty(t, env.Result.Name)
	require.Zero(t, atomic.LoadInt32(&calendarHits))
}

func TestLoadNews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/news/", r.URL.Path)
		_, _ = w.Write([]byte(`{"results":[{"id":"n1","title":"Vårcupen","text":"<p>Hej</p>"}]}`))
	}))
	defer srv.Close()

	env, err := newClient(t, srv.URL, "secret").LoadNews(context.Background())
	require.NoError(t, err)
	require.True(t, env.OK())
	require.Len(t, env.Result.Results, 1)
	require.Equal(t, "Vårcupen", env.Result.Results[0].Title)
}
