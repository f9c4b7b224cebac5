// Package gateway is the only path from the presentation surface to the
// record store. It exposes a fixed channel set over HTTP and pushes
// asynchronous notifications over a WebSocket stream.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"toursync/internal/domain"
	"toursync/internal/events"
	"toursync/internal/metrics"
	"toursync/internal/models"

	"github.com/rs/zerolog"
)

type handlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Gateway dispatches channel invocations. It holds no database handles of
// its own, only the RecordStore contract.
type Gateway struct {
	store    domain.RecordStore
	reports  domain.ReportService
	window   domain.WindowController
	updates  domain.UpdateChecker
	events   domain.EventPublisher
	logger   zerolog.Logger
	handlers map[Channel]handlerFunc
}

type Deps struct {
	Store   domain.RecordStore
	Reports domain.ReportService
	Window  domain.WindowController
	Updates domain.UpdateChecker
	Events  domain.EventPublisher
}

func New(deps Deps, logger *zerolog.Logger) *Gateway {
	g := &Gateway{
		store:   deps.Store,
		reports: deps.Reports,
		window:  deps.Window,
		updates: deps.Updates,
		events:  deps.Events,
		logger:  zerolog.Nop(),
	}
	if logger != nil {
		g.logger = logger.With().Str("component", "gateway").Logger()
	}
	if g.events == nil {
		g.events = (*events.EventBus)(nil)
	}
	if g.window == nil {
		g.window = NewEventWindowController(g.events)
	}

	g.handlers = map[Channel]handlerFunc{
		ChannelGetTours:        g.getTours,
		ChannelCreateTour:      g.createTour,
		ChannelUpdateTour:      g.updateTour,
		ChannelDeleteTour:      g.deleteTour,
		ChannelGetProperties:   g.getProperties,
		ChannelCreateProperty:  g.createProperty,
		ChannelUpdateProperty:  g.updateProperty,
		ChannelDeleteProperty:  g.deleteProperty,
		ChannelCleanupOldTours: g.cleanupOldTours,
		ChannelGetSettings:     g.getSettings,
		ChannelUpdateSettings:  g.updateSettings,
		ChannelDashboardStats:  g.dashboardStats,
		ChannelWeeklyReport:    g.weeklyReport,
		ChannelWindowMinimize:  g.windowMinimize,
		ChannelWindowMaximize:  g.windowMaximize,
		ChannelWindowClose:     g.windowClose,
		ChannelCheckForUpdates: g.checkForUpdates,
	}
	return g
}

// Invoke runs one channel. Errors keep their domain kind; fire-and-forget
// channels return a nil result.
func (g *Gateway) Invoke(ctx context.Context, ch Channel, payload json.RawMessage) (any, error) {
	start := time.Now()
	result, err := g.invoke(ctx, ch, payload)

	label := string(ch)
	if !ch.IsValid() {
		label = "unknown"
	}
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
		g.logger.Warn().Err(err).Str("channel", label).Str("kind", outcome).Msg("invoke failed")
	}
	metrics.ObserveInvocation(label, outcome, time.Since(start))
	return result, err
}

func (g *Gateway) invoke(ctx context.Context, ch Channel, payload json.RawMessage) (any, error) {
	h, ok := g.handlers[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownChannel, ch)
	}
	return h(ctx, payload)
}

// Ready reports whether the store currently holds a connection.
func (g *Gateway) Ready() bool {
	return g.store != nil && g.store.Connected()
}

func (g *Gateway) publish(eventType string, payload any) {
	if err := g.events.PublishJSON(eventType, payload); err != nil {
		g.logger.Warn().Err(err).Str("event", eventType).Msg("publish event")
	}
}

func decode[T any](ch Channel, payload json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(payload)) == 0 {
		return v, fmt.Errorf("%w: %s requires a payload", domain.ErrValidation, ch)
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: decode %s payload: %v", domain.ErrValidation, ch, err)
	}
	return v, nil
}

func (g *Gateway) getTours(ctx context.Context, _ json.RawMessage) (any, error) {
	return g.store.ListTours(ctx)
}

func (g *Gateway) createTour(ctx context.Context, payload json.RawMessage) (any, error) {
	tour, err := decode[models.Tour](ChannelCreateTour, payload)
	if err != nil {
		return nil, err
	}
	id, err := g.store.CreateTour(ctx, tour)
	if err != nil {
		return nil, err
	}
	g.publish(events.EventTourCreated, events.RecordChangedPayload{ID: id})
	return models.InsertAck{InsertedID: id}, nil
}

func (g *Gateway) updateTour(ctx context.Context, payload json.RawMessage) (any, error) {
	req, err := decode[UpdatePayload](ChannelUpdateTour, payload)
	if err != nil {
		return nil, err
	}
	modified, err := g.store.UpdateTour(ctx, req.ID, req.Data)
	if err != nil {
		return nil, err
	}
	g.publish(events.EventTourUpdated, events.RecordChangedPayload{ID: req.ID})
	return models.UpdateAck{ModifiedCount: modified}, nil
}

func (g *Gateway) deleteTour(ctx context.Context, payload json.RawMessage) (any, error) {
	req, err := decode[IDPayload](ChannelDeleteTour, payload)
	if err != nil {
		return nil, err
	}
	deleted, err := g.store.DeleteTour(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	g.publish(events.EventTourDeleted, events.RecordChangedPayload{ID: req.ID})
	return models.DeleteAck{DeletedCount: deleted}, nil
}

func (g *Gateway) getProperties(ctx context.Context, _ json.RawMessage) (any, error) {
	return g.store.ListProperties(ctx)
}

func (g *Gateway) createProperty(ctx context.Context, payload json.RawMessage) (any, error) {
	property, err := decode[models.Property](ChannelCreateProperty, payload)
	if err != nil {
		return nil, err
	}
	id, err := g.store.CreateProperty(ctx, property)
	if err != nil {
		return nil, err
	}
	g.publish(events.EventPropertyCreated, events.RecordChangedPayload{ID: id})
	return models.InsertAck{InsertedID: id}, nil
}

func (g *Gateway) updateProperty(ctx context.Context, payload json.RawMessage) (any, error) {
	req, err := decode[UpdatePayload](ChannelUpdateProperty, payload)
	if err != nil {
		return nil, err
	}
	modified, err := g.store.UpdateProperty(ctx, req.ID, req.Data)
	if err != nil {
		return nil, err
	}
	g.publish(events.EventPropertyUpdated, events.RecordChangedPayload{ID: req.ID})
	return models.UpdateAck{ModifiedCount: modified}, nil
}

func (g *Gateway) deleteProperty(ctx context.Context, payload json.RawMessage) (any, error) {
	req, err := decode[IDPayload](ChannelDeleteProperty, payload)
	if err != nil {
		return nil, err
	}
	deleted, err := g.store.DeleteProperty(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	g.publish(events.EventPropertyDeleted, events.RecordChangedPayload{ID: req.ID})
	return models.DeleteAck{DeletedCount: deleted}, nil
}

func (g *Gateway) cleanupOldTours(ctx context.Context, _ json.RawMessage) (any, error) {
	removed, err := g.store.CleanupOldTours(ctx)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		g.publish(events.EventToursCleaned, events.ToursCleanedPayload{Removed: removed})
	}
	return models.DeleteAck{DeletedCount: removed}, nil
}

func (g *Gateway) getSettings(ctx context.Context, _ json.RawMessage) (any, error) {
	return g.store.GetSettings(ctx)
}

func (g *Gateway) updateSettings(ctx context.Context, payload json.RawMessage) (any, error) {
	settings, err := decode[models.Settings](ChannelUpdateSettings, payload)
	if err != nil {
		return nil, err
	}
	return nil, g.store.UpdateSettings(ctx, settings)
}

func (g *Gateway) dashboardStats(ctx context.Context, _ json.RawMessage) (any, error) {
	if g.reports == nil {
		return nil, fmt.Errorf("report service not configured")
	}
	return g.reports.DashboardStats(ctx)
}

func (g *Gateway) weeklyReport(ctx context.Context, payload json.RawMessage) (any, error) {
	if g.reports == nil {
		return nil, fmt.Errorf("report service not configured")
	}
	req, err := decode[WeeklyReportPayload](ChannelWeeklyReport, payload)
	if err != nil {
		return nil, err
	}
	return g.reports.WeeklyReport(ctx, req.PropertyID, req.Week)
}

func (g *Gateway) windowMinimize(context.Context, json.RawMessage) (any, error) {
	g.window.Minimize()
	return nil, nil
}

func (g *Gateway) windowMaximize(context.Context, json.RawMessage) (any, error) {
	g.window.Maximize()
	return nil, nil
}

func (g *Gateway) windowClose(context.Context, json.RawMessage) (any, error) {
	g.window.Close()
	return nil, nil
}

func (g *Gateway) checkForUpdates(ctx context.Context, _ json.RawMessage) (any, error) {
	if g.updates == nil {
		g.publish(events.EventUpdateStatus, events.UpdateStatusPayload{Message: "Update checks are disabled."})
		return nil, nil
	}
	g.updates.Check(ctx)
	return nil, nil
}
