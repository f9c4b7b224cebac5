// Package client is the presentation-side stub of the gateway. It knows the
// gateway URL and an API key, nothing about the database behind it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"toursync/internal/domain"
	"toursync/internal/events"
	"toursync/internal/gateway"
	"toursync/internal/models"

	"github.com/coder/websocket"
)

// Error is a gateway error envelope. errors.Is matches it against the
// domain sentinel for its kind.
type Error struct {
	Status  int
	Kind    domain.Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %d %s: %s", e.Status, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return domain.SentinelFor(e.Kind)
}

type Client struct {
	baseURL    string
	apiKey     string
	header     string
	httpClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		header:     "x-api-key",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SetHTTPClient replaces the transport, e.g. with an httptest server client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

func (c *Client) ListTours(ctx context.Context) ([]models.Tour, error) {
	var tours []models.Tour
	err := c.Invoke(ctx, gateway.ChannelGetTours, nil, &tours)
	return tours, err
}

func (c *Client) CreateTour(ctx context.Context, tour models.Tour) (string, error) {
	var ack models.InsertAck
	err := c.Invoke(ctx, gateway.ChannelCreateTour, tour, &ack)
	return ack.InsertedID, err
}

func (c *Client) UpdateTour(ctx context.Context, id string, patch models.Patch) (int64, error) {
	var ack models.UpdateAck
	err := c.Invoke(ctx, gateway.ChannelUpdateTour, gateway.UpdatePayload{ID: id, Data: patch}, &ack)
	return ack.ModifiedCount, err
}

func (c *Client) DeleteTour(ctx context.Context, id string) (int64, error) {
	var ack models.DeleteAck
	err := c.Invoke(ctx, gateway.ChannelDeleteTour, gateway.IDPayload{ID: id}, &ack)
	return ack.DeletedCount, err
}

func (c *Client) ListProperties(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := c.Invoke(ctx, gateway.ChannelGetProperties, nil, &properties)
	return properties, err
}

func (c *Client) CreateProperty(ctx context.Context, property models.Property) (string, error) {
	var ack models.InsertAck
	err := c.Invoke(ctx, gateway.ChannelCreateProperty, property, &ack)
	return ack.InsertedID, err
}

func (c *Client) UpdateProperty(ctx context.Context, id string, patch models.Patch) (int64, error) {
	var ack models.UpdateAck
	err := c.Invoke(ctx, gateway.ChannelUpdateProperty, gateway.UpdatePayload{ID: id, Data: patch}, &ack)
	return ack.ModifiedCount, err
}

func (c *Client) DeleteProperty(ctx context.Context, id string) (int64, error) {
	var ack models.DeleteAck
	err := c.Invoke(ctx, gateway.ChannelDeleteProperty, gateway.IDPayload{ID: id}, &ack)
	return ack.DeletedCount, err
}

func (c *Client) CleanupOldTours(ctx context.Context) (int64, error) {
	var ack models.DeleteAck
	err := c.Invoke(ctx, gateway.ChannelCleanupOldTours, nil, &ack)
	return ack.DeletedCount, err
}

func (c *Client) GetSettings(ctx context.Context) (models.Settings, error) {
	var settings models.Settings
	err := c.Invoke(ctx, gateway.ChannelGetSettings, nil, &settings)
	return settings, err
}

func (c *Client) UpdateSettings(ctx context.Context, settings models.Settings) error {
	return c.Invoke(ctx, gateway.ChannelUpdateSettings, settings, nil)
}

func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := c.Invoke(ctx, gateway.ChannelDashboardStats, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) WeeklyReport(ctx context.Context, propertyID string, week models.ReportWeek) (*models.WeeklyReport, error) {
	var report models.WeeklyReport
	req := gateway.WeeklyReportPayload{PropertyID: propertyID, Week: week}
	if err := c.Invoke(ctx, gateway.ChannelWeeklyReport, req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) MinimizeWindow(ctx context.Context) error {
	return c.Invoke(ctx, gateway.ChannelWindowMinimize, nil, nil)
}

func (c *Client) MaximizeWindow(ctx context.Context) error {
	return c.Invoke(ctx, gateway.ChannelWindowMaximize, nil, nil)
}

func (c *Client) CloseWindow(ctx context.Context) error {
	return c.Invoke(ctx, gateway.ChannelWindowClose, nil, nil)
}

// CheckForUpdates starts a check; progress arrives as update_status events.
func (c *Client) CheckForUpdates(ctx context.Context) error {
	return c.Invoke(ctx, gateway.ChannelCheckForUpdates, nil, nil)
}

// Channels lists what the gateway serves.
func (c *Client) Channels(ctx context.Context) ([]gateway.ChannelInfo, error) {
	var wrap struct {
		Channels []gateway.ChannelInfo `json:"channels"`
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/channels", nil)
	if err != nil {
		return nil, err
	}
	c.addHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrap); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	return wrap.Channels, nil
}

// Invoke calls any channel. payload nil sends an empty body; out nil
// discards the result.
func (c *Client) Invoke(ctx context.Context, ch gateway.Channel, payload, out any) error {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", ch, err)
		}
		body = data
	}

	endpoint := c.baseURL + "/api/v1/invoke/" + url.PathEscape(string(ch))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if resp.StatusCode == http.StatusAccepted || out == nil {
		return nil
	}

	var envelope gateway.Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", ch, err)
	}
	if len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", ch, err)
	}
	return nil
}

// Subscribe streams gateway events to handle until ctx ends or the
// connection drops. It returns nil when ctx ends.
func (c *Client) Subscribe(ctx context.Context, handle func(events.Event)) error {
	stream, err := c.Dial(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()
	return stream.Run(ctx, handle)
}

// Stream is an open event stream. Every event published after Dial returns
// is delivered.
type Stream struct {
	ws *websocket.Conn
}

// Dial opens the event stream.
func (c *Client) Dial(ctx context.Context) (*Stream, error) {
	wsURL, err := c.eventsURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set(c.header, c.apiKey)
	// The stream is long-lived; only ctx bounds it.
	hc := *c.httpClient
	hc.Timeout = 0
	ws, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: &hc, HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("dial event stream: %w", err)
	}
	return &Stream{ws: ws}, nil
}

// Run hands events to handle until ctx ends, returning nil then, or the
// connection drops.
func (s *Stream) Run(ctx context.Context, handle func(events.Event)) error {
	for {
		_, data, err := s.ws.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		var e events.Event
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		handle(e)
	}
}

func (s *Stream) Close() error {
	return s.ws.CloseNow()
}

func (c *Client) eventsURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/events")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set(c.header, c.apiKey)
	}
}

func decodeError(resp *http.Response) error {
	var envelope gateway.Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error == nil {
		return &Error{Status: resp.StatusCode, Kind: domain.KindInternal, Message: http.StatusText(resp.StatusCode)}
	}
	return &Error{Status: resp.StatusCode, Kind: envelope.Error.Kind, Message: envelope.Error.Message}
}
