package tago

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is the only failure class callers need to recognize: any network,
// decoding or upstream-status problem against the TAGO API.
type APIError struct {
	Op  string
	Err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tago %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type ClientOptions struct {
	Timeout time.Duration
}

func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout: 10 * time.Second,
	}
}

func NewClient(baseURL, apiKey string, options ...ClientOptions) *Client {
	opts := DefaultClientOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

type envelope struct {
	Response struct {
		Header struct {
			ResultCode flexString `json:"resultCode"`
			ResultMsg  flexString `json:"resultMsg"`
		} `json:"header"`
		Body json.RawMessage `json:"body"`
	} `json:"response"`
}

// get performs one TAGO request and decodes the response body into out.
// Every failure mode is wrapped in *APIError.
func (c *Client) get(ctx context.Context, op, endpoint string, params url.Values, out any) error {
	reqURL, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("parse URL: %w", err)}
	}

	params.Set("serviceKey", c.apiKey)
	params.Set("_type", "json")
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Op: op, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	if env.Response.Header.ResultCode == "" {
		return &APIError{Op: op, Err: fmt.Errorf("invalid response structure")}
	}
	if env.Response.Header.ResultCode != "00" {
		return &APIError{Op: op, Err: fmt.Errorf("upstream error: %s", env.Response.Header.ResultMsg)}
	}

	if err := json.Unmarshal(env.Response.Body, out); err != nil {
		return &APIError{Op: op, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

// FindStopsNear returns the stops around a GPS coordinate. An empty result
// is not an error.
func (c *Client) FindStopsNear(ctx context.Context, lat, lng float64) ([]Stop, error) {
	params := url.Values{}
	params.Set("gpsLati", fmt.Sprintf("%f", lat))
	params.Set("gpsLong", fmt.Sprintf("%f", lng))
	params.Set("pageNo", "1")
	params.Set("numOfRows", "10")

	var body struct {
		Items items[stopItem] `json:"items"`
	}
	if err := c.get(ctx, "stops near", "/BusSttnInfoInqireService/getCrdntPrxmtSttnList", params, &body); err != nil {
		return nil, err
	}

	stops := make([]Stop, 0, len(body.Items.Item))
	for _, it := range body.Items.Item {
		stops = append(stops, it.toStop())
	}
	return stops, nil
}

// FindStopsByName searches stops by name, optionally scoped to a city code.
func (c *Client) FindStopsByName(ctx context.Context, name, cityCode string) ([]Stop, error) {
	params := url.Values{}
	params.Set("sttnNm", name)
	if cityCode != "" {
		params.Set("cityCode", cityCode)
	}

	var body struct {
		Items items[stopItem] `json:"items"`
	}
	if err := c.get(ctx, "stops by name", "/BusSttnInfoInqireService/getSttnInfoBySttnNm", params, &body); err != nil {
		return nil, err
	}

	stops := make([]Stop, 0, len(body.Items.Item))
	for _, it := range body.Items.Item {
		stops = append(stops, it.toStop())
	}
	return stops, nil
}

// ArrivalsAt returns every predicted arrival at a stop, all routes.
func (c *Client) ArrivalsAt(ctx context.Context, stopID, cityCode string) ([]Arrival, error) {
	params := url.Values{}
	params.Set("cityCode", cityCode)
	params.Set("nodeId", stopID)

	var body struct {
		Items items[arrivalItem] `json:"items"`
	}
	if err := c.get(ctx, "arrivals", "/ArvlInfoInqireService/getSttnAcctoArvlPrearngeInfoList", params, &body); err != nil {
		return nil, err
	}

	arrivals := make([]Arrival, 0, len(body.Items.Item))
	for _, it := range body.Items.Item {
		arrivals = append(arrivals, it.toArrival())
	}
	return arrivals, nil
}

// ArrivalsForRoute returns the arrivals at a stop for one route number.
func (c *Client) ArrivalsForRoute(ctx context.Context, stopID, cityCode, routeName string) ([]Arrival, error) {
	all, err := c.ArrivalsAt(ctx, stopID, cityCode)
	if err != nil {
		return nil, err
	}
	return FilterByRoute(all, routeName), nil
}

// RouteInfo returns the detail record for a route ID.
func (c *Client) RouteInfo(ctx context.Context, routeID string) (*Route, error) {
	params := url.Values{}
	params.Set("routeId", routeID)

	var body struct {
		Items items[routeItem] `json:"items"`
	}
	if err := c.get(ctx, "route info", "/BusRouteInfoInqireService/getRouteInfoIiem", params, &body); err != nil {
		return nil, err
	}
	if len(body.Items.Item) == 0 {
		return nil, nil
	}
	route := body.Items.Item[0].toRoute()
	return &route, nil
}

// FilterByRoute keeps the arrivals whose route number matches routeName,
// ignoring surrounding whitespace.
func FilterByRoute(arrivals []Arrival, routeName string) []Arrival {
	want := strings.TrimSpace(routeName)
	filtered := make([]Arrival, 0, len(arrivals))
	for _, a := range arrivals {
		if strings.TrimSpace(a.RouteName) == want {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// FastestArrival picks the arrival with the smallest positive Seconds.
// Entries with Seconds <= 0 carry no prediction and are skipped. Ties keep
// the first entry in upstream order. Returns nil if nothing qualifies.
func FastestArrival(arrivals []Arrival) *Arrival {
	var fastest *Arrival
	for i := range arrivals {
		a := &arrivals[i]
		if a.Seconds <= 0 {
			continue
		}
		if fastest == nil || a.Seconds < fastest.Seconds {
			fastest = a
		}
	}
	return fastest
}

// NoDataMarker is the formatted value for arrivals without a prediction.
const NoDataMarker = "정보 없음"

// FormatArrivalTime renders seconds as a Korean "M분 S초" string.
func FormatArrivalTime(seconds int) string {
	if seconds <= 0 {
		return NoDataMarker
	}
	if seconds < 60 {
		return fmt.Sprintf("%d초", seconds)
	}
	minutes := seconds / 60
	remaining := seconds % 60
	if remaining == 0 {
		return fmt.Sprintf("%d분", minutes)
	}
	return fmt.Sprintf("%d분 %d초", minutes, remaining)
}
