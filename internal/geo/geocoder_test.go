package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGeocoder(t *testing.T, handler http.HandlerFunc) *NominatimGeocoder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewNominatimGeocoder(Config{
		Endpoint:          server.URL,
		RequestsPerSecond: 1000, // テストではレート制限で待たない
		HTTPClient:        server.Client(),
	})
}

func TestGeocode_ReturnsCoordinates(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "山中湖村" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q", got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected User-Agent header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"35.4200","lon":"138.8700"}]`))
	})

	point, err := g.Geocode(context.Background(), "山中湖村")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if point == nil {
		t.Fatal("expected a point")
	}
	if point.Latitude != 35.42 {
		t.Errorf("latitude = %v, want 35.42", point.Latitude)
	}
	if point.Longitude != 138.87 {
		t.Errorf("longitude = %v, want 138.87", point.Longitude)
	}
}

func TestGeocode_NoResultsReturnsNil(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	point, err := g.Geocode(context.Background(), "存在しない場所xyz")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	// 該当なしはエラーではなくnil
	if point != nil {
		t.Errorf("expected nil point, got %+v", point)
	}
}

func TestGeocode_EmptyLocationRejected(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent for empty location")
	})

	_, err := g.Geocode(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty location")
	}
}

func TestGeocode_UpstreamErrorPropagates(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	})

	_, err := g.Geocode(context.Background(), "山中湖村")
	if err == nil {
		t.Fatal("expected error for upstream failure")
	}
}

func TestGeocode_MalformedCoordinatesRejected(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat":"not-a-number","lon":"138.87"}]`))
	})

	_, err := g.Geocode(context.Background(), "山中湖村")
	if err == nil {
		t.Fatal("expected error for malformed latitude")
	}
}
