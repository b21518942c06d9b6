package pinballmap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.Client(), server.URL+"/api/v1/", server.URL+"/geo/", 1000)
	client.now = func() time.Time {
		return time.Date(2024, 6, 2, 15, 0, 0, 0, time.UTC)
	}
	client.sleep = func(context.Context, time.Duration) error { return nil }
	return client
}

func TestFetchSubmissionsForLocationMinDate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		useMinDate bool
		want       string
	}{
		{name: "automatic", useMinDate: true, want: "2024-06-01"},
		{name: "manual", useMinDate: false, want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var gotMinDate, gotID, gotPath string
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotID = r.URL.Query().Get("id")
				gotMinDate = r.URL.Query().Get("min_date_of_submission")
				w.Write([]byte(`{"user_submissions":[{"id":1,"submission_type":"new_lmx","machine_name":"Godzilla","created_at":"2024-06-01T10:00:00.000-07:00"}]}`))
			})

			subs, err := client.FetchSubmissionsForLocation(context.Background(), 874, tt.useMinDate)
			if err != nil {
				t.Fatalf("FetchSubmissionsForLocation error: %v", err)
			}
			if gotPath != "/api/v1/user_submissions/location.json" {
				t.Fatalf("path = %s", gotPath)
			}
			if gotID != "874" {
				t.Fatalf("id = %s, want 874", gotID)
			}
			if gotMinDate != tt.want {
				t.Fatalf("min_date_of_submission = %q, want %q", gotMinDate, tt.want)
			}
			if len(subs) != 1 || subs[0].MachineName != "Godzilla" || subs[0].CreatedAt.IsZero() {
				t.Fatalf("unexpected submissions: %+v", subs)
			}
		})
	}
}

func TestFetchSubmissionsForCoordinatesQuery(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api/v1/user_submissions/list_within_range.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if q.Get("lat") != "45.5" || q.Get("lon") != "-122.6" || q.Get("max_distance") != "10" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"user_submissions":[]}`))
	})

	subs, err := client.FetchSubmissionsForCoordinates(context.Background(), 45.5, -122.6, 10, false)
	if err != nil {
		t.Fatalf("FetchSubmissionsForCoordinates error: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("len(subs) = %d, want 0", len(subs))
	}
}

func TestFetchSubmissionsErrorsPayloadIsNotFound(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":"Failed to find location"}`))
	})

	_, err := client.FetchSubmissionsForLocation(context.Background(), 1, true)
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false, want true", err)
	}
}

func TestGetJSONRetriesOnTooManyRequests(t *testing.T) {
	t.Parallel()
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"user_submissions":[{"id":7}]}`))
	})

	subs, err := client.FetchSubmissionsForLocation(context.Background(), 1, false)
	if err != nil {
		t.Fatalf("FetchSubmissionsForLocation error: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != 7 {
		t.Fatalf("unexpected submissions: %+v", subs)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestGetJSONGivesUpWhenRateLimited(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchSubmissionsForLocation(context.Background(), 1, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsNotFound(err) {
		t.Fatalf("rate limit error classified as not found: %v", err)
	}
}

func TestGetJSONStatusErrors(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/locations/404.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Location(context.Background(), 404)
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false, want true", err)
	}

	_, err = client.Location(context.Background(), 1)
	if err == nil || IsNotFound(err) {
		t.Fatalf("expected non not-found error, got %v", err)
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()
	if got := retryDelay("5", 0); got != 5*time.Second {
		t.Fatalf("retryDelay(5) = %v", got)
	}
	if got := retryDelay("", 2); got != 8*time.Second {
		t.Fatalf("retryDelay(attempt 2) = %v, want 8s", got)
	}
}

func TestSearchLocationByName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		body   string
		query  string
		status MatchStatus
		id     int
		count  int
	}{
		{name: "single", query: "Ground Kontrol", body: `{"locations":[{"id":874,"name":"Ground Kontrol Classic Arcade"}]}`, status: MatchExact, id: 874},
		{name: "case insensitive", query: "ground kontrol", body: `{"locations":[{"id":1,"name":"Ground Kontrol Annex"},{"id":874,"name":"Ground Kontrol"}]}`, status: MatchExact, id: 874},
		{name: "suggestions", query: "Kontrol", body: `{"locations":[{"id":1,"name":"A"},{"id":2,"name":"B"},{"id":3,"name":"C"},{"id":4,"name":"D"},{"id":5,"name":"E"},{"id":6,"name":"F"}]}`, status: MatchSuggestions, count: 5},
		{name: "none", query: "nowhere", body: `{"locations":[]}`, status: MatchNone},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("by_location_name"); got != tt.query {
					t.Errorf("by_location_name = %q, want %q", got, tt.query)
				}
				w.Write([]byte(tt.body))
			})

			match, err := client.SearchLocationByName(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("SearchLocationByName error: %v", err)
			}
			if match.Status != tt.status {
				t.Fatalf("Status = %s, want %s", match.Status, tt.status)
			}
			if tt.status == MatchExact && match.Location.ID != tt.id {
				t.Fatalf("Location.ID = %d, want %d", match.Location.ID, tt.id)
			}
			if tt.status == MatchSuggestions && len(match.Suggestions) != tt.count {
				t.Fatalf("len(Suggestions) = %d, want %d", len(match.Suggestions), tt.count)
			}
		})
	}
}

func TestGeocodeCityName(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/geo/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("name") == "Atlantis" {
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"results":[{"name":"Portland","latitude":45.52,"longitude":-122.68,"admin1":"Oregon","country":"United States"}]}`))
	})

	coords, err := client.GeocodeCityName(context.Background(), "Portland")
	if err != nil {
		t.Fatalf("GeocodeCityName error: %v", err)
	}
	if coords.Latitude != 45.52 || coords.Longitude != -122.68 {
		t.Fatalf("unexpected coordinates: %+v", coords)
	}
	if coords.DisplayName != "Portland, Oregon, United States" {
		t.Fatalf("DisplayName = %q", coords.DisplayName)
	}

	_, err = client.GeocodeCityName(context.Background(), "Atlantis")
	if !IsNotFound(err) {
		t.Fatalf("IsNotFound(%v) = false, want true", err)
	}
}
