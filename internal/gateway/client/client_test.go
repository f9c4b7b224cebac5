package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"toursync/internal/config"
	"toursync/internal/domain"
	"toursync/internal/events"
	"toursync/internal/gateway"
	"toursync/internal/models"
	"toursync/internal/service"
	"toursync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiKey = "client-test-key"

type fixture struct {
	conn   *store.MemoryConnector
	bus    *events.EventBus
	hub    *gateway.Hub
	client *Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := store.NewMemoryConnector()
	st := store.New(conn, nil)
	bus := events.NewEventBus()
	gw := gateway.New(gateway.Deps{
		Store:   st,
		Reports: service.NewReportService(st, time.UTC, nil),
		Events:  bus,
	}, nil)
	hub := gateway.NewHub(bus, nil, nil)

	cfg := config.GatewayConfig{APIKeys: []config.APIClientKey{{Key: apiKey, Name: "ctl"}}}
	ts := httptest.NewServer(gateway.NewServer(cfg, gw, hub, nil, nil).Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})

	c := New(ts.URL, apiKey)
	c.SetHTTPClient(ts.Client())
	return &fixture{conn: conn, bus: bus, hub: hub, client: c}
}

func TestPropertyTourScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	propertyID, err := f.client.CreateProperty(ctx, models.Property{
		Address: "1 Main St", Type: models.PropertyHouse, Bedrooms: 2, Bathrooms: 1, RentPrice: 1200,
	})
	require.NoError(t, err)
	require.Len(t, propertyID, 24)

	tourID, err := f.client.CreateTour(ctx, models.Tour{
		ClientName: "A. Lee",
		PropertyID: propertyID,
		TourTime:   time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	tours, err := f.client.ListTours(ctx)
	require.NoError(t, err)
	require.Len(t, tours, 1)
	assert.Equal(t, tourID, tours[0].ID)
	assert.Equal(t, "A. Lee", tours[0].ClientName)
	assert.Equal(t, propertyID, tours[0].PropertyID)
	assert.True(t, tours[0].TourTime.Equal(time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)))

	_, err = f.client.DeleteProperty(ctx, propertyID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrReferentialIntegrity))
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusConflict, gwErr.Status)

	properties, err := f.client.ListProperties(ctx)
	require.NoError(t, err)
	assert.Len(t, properties, 1)
	tours, err = f.client.ListTours(ctx)
	require.NoError(t, err)
	assert.Len(t, tours, 1)

	deleted, err := f.client.DeleteTour(ctx, tourID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = f.client.DeleteProperty(ctx, propertyID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	properties, err = f.client.ListProperties(ctx)
	require.NoError(t, err)
	assert.Empty(t, properties)
	tours, err = f.client.ListTours(ctx)
	require.NoError(t, err)
	assert.Empty(t, tours)
}

func TestTypedCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	propertyID, err := f.client.CreateProperty(ctx, models.Property{Address: "4 Pine", Type: models.PropertyCommercial, Bedrooms: 2, RentPrice: 5000})
	require.NoError(t, err)

	properties, err := f.client.ListProperties(ctx)
	require.NoError(t, err)
	require.Len(t, properties, 1)
	assert.Zero(t, properties[0].Bedrooms)

	modified, err := f.client.UpdateProperty(ctx, propertyID, models.Patch{"description": "corner unit"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	tourID, err := f.client.CreateTour(ctx, models.Tour{ClientName: "Sam", PropertyID: propertyID, TourTime: time.Now().Add(time.Hour).UTC()})
	require.NoError(t, err)
	modified, err = f.client.UpdateTour(ctx, tourID, models.Patch{"status": "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), modified)

	tours, err := f.client.ListTours(ctx)
	require.NoError(t, err)
	require.Len(t, tours, 1)
	assert.Equal(t, models.TourCancelled, tours[0].Status)

	removed, err := f.client.CleanupOldTours(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	settings, err := f.client.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), settings)
	settings.TourDurationMinutes = 45
	require.NoError(t, f.client.UpdateSettings(ctx, settings))
	settings, err = f.client.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, settings.TourDurationMinutes)

	stats, err := f.client.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalTours)
	assert.Equal(t, 1, stats.CancelledTours)

	report, err := f.client.WeeklyReport(ctx, propertyID, models.CurrentWeek)
	require.NoError(t, err)
	assert.Equal(t, propertyID, report.Property.ID)

	channels, err := f.client.Channels(ctx)
	require.NoError(t, err)
	assert.Len(t, channels, len(gateway.Channels))
}

func TestErrorsMatchSentinels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.client.DeleteTour(ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.client.DeleteTour(ctx, "ffffffffffffffffffffffff")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.client.Invoke(ctx, gateway.Channel("format-disk"), nil, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownChannel)

	f.conn.SetOperationError(fmt.Errorf("%w: dial tcp: connection refused", domain.ErrConnection))
	_, err = f.client.ListTours(ctx)
	assert.ErrorIs(t, err, domain.ErrConnection)
	assert.NotContains(t, err.Error(), "refused")

	bad := New(f.client.baseURL, "wrong")
	bad.SetHTTPClient(f.client.httpClient)
	_, err = bad.ListTours(ctx)
	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusUnauthorized, gwErr.Status)
	assert.Nil(t, errors.Unwrap(err))
}

func TestFireAndForget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.client.MinimizeWindow(ctx))
	require.NoError(t, f.client.MaximizeWindow(ctx))
	require.NoError(t, f.client.CloseWindow(ctx))
	require.NoError(t, f.client.CheckForUpdates(ctx))
}

func TestDialDeliversEventsPublishedRightAfter(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := f.client.Dial(ctx)
	require.NoError(t, err)
	defer stream.Close()
	assert.Equal(t, 1, f.hub.ConnectionCount())

	require.NoError(t, f.bus.PublishJSON(events.EventUpdateStatus, events.UpdateStatusPayload{Message: "Checking for updates..."}))

	var got events.Event
	require.NoError(t, stream.Run(ctx, func(e events.Event) {
		got = e
		cancel()
	}))
	assert.Equal(t, events.EventUpdateStatus, got.Type)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		mu  sync.Mutex
		got []events.Event
	)
	done := make(chan error, 1)
	go func() {
		done <- f.client.Subscribe(ctx, func(e events.Event) {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		})
	}()
	require.Eventually(t, func() bool { return f.hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.client.CloseWindow(context.Background()))
	require.NoError(t, f.client.CheckForUpdates(context.Background()))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, events.EventWindowCommand, got[0].Type)
	assert.Equal(t, events.EventUpdateStatus, got[1].Type)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
}

func TestEventsURL(t *testing.T) {
	u, err := New("https://gw.example.com/", "k").eventsURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://gw.example.com/api/v1/events", u)

	u, err = New("http://127.0.0.1:8787", "k").eventsURL()
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:8787/api/v1/events", u)
}
