package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"busz-backend/internal/config"
	"busz-backend/internal/monitor"
	"busz-backend/internal/station"
	"busz-backend/internal/tago"
)

func newStationTestServer(t *testing.T, upstream http.HandlerFunc) (*Server, *monitor.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)
	client := tago.NewClient(srv.URL, "test-key")

	store := monitor.NewStore(context.Background())
	resolver := monitor.NewStopResolver(store, client, nil, logger)
	stations := station.NewService(store, client, client, resolver, logger)

	conf := &config.Config{APIServerPort: "0", StopDistancePolicy: config.PolicyWarn, MaxStopDistanceM: 50}
	return NewServer(conf, logger, nil, stations, monitor.NewCollector()), store
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestStationBusesNoSession(t *testing.T) {
	s, _ := newStationTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called without a session")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/station/buses", nil)
	rr := httptest.NewRecorder()
	s.stationBusesHandler()(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "NO_ACTIVE_SESSION" {
		t.Errorf("error_code = %v", body["error_code"])
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
}

func TestStationBusesSuccess(t *testing.T) {
	s, store := newStationTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "getCrdntPrxmtSttnList"):
			w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},
				"body":{"items":{"item":{"nodeid":"DJB1","nodenm":"강남역","citycode":25,"gpslati":37.497975,"gpslong":127.027568}}}}}`))
		case strings.Contains(r.URL.Path, "getSttnAcctoArvlPrearngeInfoList"):
			w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},
				"body":{"items":{"item":[
					{"routeno":"146","arrtime":60},
					{"routeno":"9201","arrtime":211},
					{"routeno":"740","arrtime":0}
				]}}}}`))
		default:
			t.Errorf("unexpected upstream path %s", r.URL.Path)
		}
	})

	store.Create(monitor.Session{ID: "s1", Lat: 37.497928, Lng: 127.027583, BusNumber: "9201", Interval: 30})

	req := httptest.NewRequest(http.MethodPost, "/api/station/buses", nil)
	req.Header.Set("X-Session-ID", "s1")
	rr := httptest.NewRecorder()
	s.stationBusesHandler()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["total_count"] != float64(3) {
		t.Errorf("total_count = %v, want 3", body["total_count"])
	}
	buses, ok := body["buses"].([]any)
	if !ok || len(buses) != 3 {
		t.Fatalf("buses = %v", body["buses"])
	}
	first := buses[0].(map[string]any)
	if first["route_name"] != "146" {
		t.Errorf("first bus = %v, want soonest (146)", first)
	}
	last := buses[2].(map[string]any)
	if last["route_name"] != "740" {
		t.Errorf("last bus = %v, want no-data entry (740)", last)
	}
}

func TestStationBusesUpstreamFailure(t *testing.T) {
	s, store := newStationTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	store.Create(monitor.Session{ID: "s1", Lat: 37.497928, Lng: 127.027583, BusNumber: "9201", Interval: 30})

	req := httptest.NewRequest(http.MethodPost, "/api/station/buses", nil)
	req.Header.Set("X-Session-ID", "s1")
	rr := httptest.NewRecorder()
	s.stationBusesHandler()(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "TAGO_API_ERROR" {
		t.Errorf("error_code = %v", body["error_code"])
	}
}

func TestStationSearchRequiresName(t *testing.T) {
	s, _ := newStationTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called without a name")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stations/search", nil)
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "INVALID_REQUEST" {
		t.Errorf("error_code = %v", body["error_code"])
	}
}

func TestStationSearchSuccess(t *testing.T) {
	s, _ := newStationTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "getSttnInfoBySttnNm") {
			t.Errorf("unexpected upstream path %s", r.URL.Path)
			return
		}
		if got := r.URL.Query().Get("sttnNm"); got != "강남" {
			t.Errorf("sttnNm = %q", got)
		}
		w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},
			"body":{"items":{"item":{"nodeid":"DJB1","nodenm":"강남역","citycode":25,"gpslati":37.497975,"gpslong":127.027568}}}}}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/stations/search?name=강남&city_code=25", nil)
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["total_count"] != float64(1) {
		t.Errorf("total_count = %v, want 1", body["total_count"])
	}
	stations, ok := body["stations"].([]any)
	if !ok || len(stations) != 1 {
		t.Fatalf("stations = %v", body["stations"])
	}
	if first := stations[0].(map[string]any); first["station_name"] != "강남역" {
		t.Errorf("first station = %v", first)
	}
}

func TestRouteInfoSuccess(t *testing.T) {
	s, _ := newStationTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "getRouteInfoIiem") {
			t.Errorf("unexpected upstream path %s", r.URL.Path)
			return
		}
		w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},
			"body":{"items":{"item":{"routeid":"DJB30300002","routeno":"9201","routetp":"광역버스",
				"startstationname":"대전역","endstationname":"유성온천역"}}}}}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/routes/DJB30300002", nil)
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	route, ok := body["route"].(map[string]any)
	if !ok {
		t.Fatalf("route = %v", body["route"])
	}
	if route["route_name"] != "9201" || route["route_type"] != "광역버스" {
		t.Errorf("route = %v", route)
	}
}

func TestRouteInfoNotFound(t *testing.T) {
	s, _ := newStationTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"header":{"resultCode":"00","resultMsg":"OK"},
			"body":{"items":""}}}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/routes/nope", nil)
	rr := httptest.NewRecorder()
	s.router().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "ROUTE_NOT_FOUND" {
		t.Errorf("error_code = %v", body["error_code"])
	}
}
