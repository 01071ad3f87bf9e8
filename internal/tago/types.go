package tago

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"busz-backend/internal/geo"
)

// Stop is a physical transit stop as returned by the TAGO
// BusSttnInfoInqireService.
type Stop struct {
	ID       string  `json:"station_id"`
	Name     string  `json:"station_name"`
	CityCode string  `json:"city_code"`
	Lat      float64 `json:"latitude"`
	Lng      float64 `json:"longitude"`
}

func (s Stop) Position() geo.Point {
	return geo.Point{Lat: s.Lat, Lng: s.Lng}
}

// Arrival is one upstream-reported prediction of a vehicle reaching a stop.
// Seconds <= 0 means the upstream has no usable prediction.
type Arrival struct {
	StopID         string `json:"station_id"`
	StopName       string `json:"station_name"`
	RouteID        string `json:"route_id"`
	RouteName      string `json:"route_name"`
	RouteType      string `json:"route_type"`
	RemainingStops int    `json:"remaining_stations"`
	VehicleType    string `json:"vehicle_type"`
	Seconds        int    `json:"arrival_time"`
}

// Route is the detail record of a bus route (getRouteInfoIiem).
type Route struct {
	ID            string `json:"route_id"`
	Name          string `json:"route_name"`
	Type          string `json:"route_type"`
	StartStop     string `json:"start_station"`
	EndStop       string `json:"end_station"`
	UpFirstTime   string `json:"up_first_time"`
	UpLastTime    string `json:"up_last_time"`
	DownFirstTime string `json:"down_first_time"`
	DownLastTime  string `json:"down_last_time"`
}

// routeTypeNames maps TAGO route-type codes to their Korean labels.
var routeTypeNames = map[string]string{
	"1":  "일반버스",
	"2":  "좌석버스",
	"3":  "마을버스",
	"4":  "급행버스",
	"5":  "간선버스",
	"6":  "지선버스",
	"7":  "순환버스",
	"8":  "광역버스",
	"9":  "인천버스",
	"10": "경기버스",
	"11": "공항버스",
	"12": "심야버스",
}

// RouteTypeName returns the human-readable name for a route-type code,
// or the code itself when unknown.
func RouteTypeName(code string) string {
	if name, ok := routeTypeNames[code]; ok {
		return name
	}
	return code
}

// The TAGO API is inconsistent about scalar types: numeric fields arrive as
// either JSON numbers or strings depending on the endpoint and region.

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		*n = 0 // unparseable counts as "no data"
		return nil
	}
	*n = flexInt(v)
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// items wraps the TAGO "items" container: an empty string when there are no
// results, and "item" holding either a single object or an array.
type items[T any] struct {
	Item []T
}

func (it *items[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" || string(b) == `""` || string(b) == "{}" {
		return nil
	}
	var peek struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(b, &peek); err != nil {
		return err
	}
	raw := bytes.TrimSpace(peek.Item)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, &it.Item)
	}
	var single T
	if err := json.Unmarshal(raw, &single); err != nil {
		return err
	}
	it.Item = []T{single}
	return nil
}

type stopItem struct {
	NodeID   flexString `json:"nodeid"`
	NodeName flexString `json:"nodenm"`
	CityCode flexString `json:"citycode"`
	GpsLat   flexFloat  `json:"gpslati"`
	GpsLng   flexFloat  `json:"gpslong"`
}

func (s stopItem) toStop() Stop {
	return Stop{
		ID:       string(s.NodeID),
		Name:     string(s.NodeName),
		CityCode: string(s.CityCode),
		Lat:      float64(s.GpsLat),
		Lng:      float64(s.GpsLng),
	}
}

type arrivalItem struct {
	NodeID         flexString `json:"nodeid"`
	NodeName       flexString `json:"nodenm"`
	RouteID        flexString `json:"routeid"`
	RouteNo        flexString `json:"routeno"`
	RouteType      flexString `json:"routetp"`
	RemainingStops flexInt    `json:"arrprevstationcnt"`
	VehicleType    flexString `json:"vehicletp"`
	ArrTime        flexInt    `json:"arrtime"`
}

func (a arrivalItem) toArrival() Arrival {
	return Arrival{
		StopID:         string(a.NodeID),
		StopName:       string(a.NodeName),
		RouteID:        string(a.RouteID),
		RouteName:      string(a.RouteNo),
		RouteType:      string(a.RouteType),
		RemainingStops: int(a.RemainingStops),
		VehicleType:    string(a.VehicleType),
		Seconds:        int(a.ArrTime),
	}
}

type routeItem struct {
	RouteID       flexString `json:"routeid"`
	RouteNo       flexString `json:"routeno"`
	RouteType     flexString `json:"routetp"`
	StartStop     flexString `json:"startstationname"`
	EndStop       flexString `json:"endstationname"`
	UpFirstTime   flexString `json:"upfirsttime"`
	UpLastTime    flexString `json:"uplasttime"`
	DownFirstTime flexString `json:"downfirsttime"`
	DownLastTime  flexString `json:"downlasttime"`
}

func (r routeItem) toRoute() Route {
	return Route{
		ID:            string(r.RouteID),
		Name:          string(r.RouteNo),
		Type:          string(r.RouteType),
		StartStop:     string(r.StartStop),
		EndStop:       string(r.EndStop),
		UpFirstTime:   string(r.UpFirstTime),
		UpLastTime:    string(r.UpLastTime),
		DownFirstTime: string(r.DownFirstTime),
		DownLastTime:  string(r.DownLastTime),
	}
}
