// Package updater answers check-for-updates. It compares the running
// version with a release feed and reports the outcome as update_status
// events. Downloading and installing are left to the desktop shell.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"toursync/internal/config"
	"toursync/internal/domain"
	"toursync/internal/events"
	"toursync/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"
)

const (
	MsgChecking   = "Checking for updates..."
	MsgUpToDate   = "Up to date."
	msgAvailable  = "Update available: %s"
	msgError      = "Error in auto-updater: %s"
	maxFeedBytes  = 64 << 10
	defaultFeedTO = 15 * time.Second
)

// Release is the feed document.
type Release struct {
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type Result struct {
	Current   string
	Latest    string
	Available bool
	Release   Release
}

var _ domain.UpdateChecker = (*Checker)(nil)

type Checker struct {
	feedURL string
	current string
	timeout time.Duration
	client  *http.Client
	events  domain.EventPublisher
	logger  zerolog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

func New(cfg config.UpdatesConfig, currentVersion string, publisher domain.EventPublisher, logger *zerolog.Logger) *Checker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFeedTO
	}
	c := &Checker{
		feedURL: cfg.FeedURL,
		current: currentVersion,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		events:  publisher,
		logger:  zerolog.Nop(),
	}
	if logger != nil {
		c.logger = logger.With().Str("component", "updater").Logger()
	}
	return c
}

// Check starts a check in the background and returns at once. A check
// requested while another is running is dropped.
func (c *Checker) Check(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		c.logger.Debug().Msg("update check already running")
		return
	}

	// The caller's request ends before the check does.
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.running.Store(false)
		_, _ = c.CheckNow(ctx)
	}()
}

// Wait blocks until any running check has finished.
func (c *Checker) Wait() {
	c.wg.Wait()
}

// CheckNow runs a check synchronously, publishing the same status events
// as Check.
func (c *Checker) CheckNow(ctx context.Context) (Result, error) {
	c.status(events.UpdateStatusPayload{Message: MsgChecking})

	res, err := c.compare(ctx)
	if err != nil {
		metrics.IncUpdateCheck("error")
		c.logger.Warn().Err(err).Msg("update check failed")
		c.status(events.UpdateStatusPayload{Message: fmt.Sprintf(msgError, err.Error())})
		return Result{}, err
	}

	if res.Available {
		metrics.IncUpdateCheck("available")
		c.logger.Info().Str("current", res.Current).Str("latest", res.Latest).Msg("update available")
		c.status(events.UpdateStatusPayload{
			Message: fmt.Sprintf(msgAvailable, res.Latest),
			Version: res.Latest,
			URL:     res.Release.URL,
			Notes:   res.Release.Notes,
		})
	} else {
		metrics.IncUpdateCheck("up_to_date")
		c.status(events.UpdateStatusPayload{Message: MsgUpToDate, Version: res.Latest})
	}
	return res, nil
}

func (c *Checker) compare(ctx context.Context) (Result, error) {
	if c.feedURL == "" {
		return Result{}, fmt.Errorf("no release feed configured")
	}

	current := canonical(c.current)
	if current == "" {
		current = "v0.0.0"
	}
	if !semver.IsValid(current) {
		return Result{}, fmt.Errorf("running version %q is not semver", c.current)
	}

	release, err := c.fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	latest := canonical(release.Version)
	if !semver.IsValid(latest) {
		return Result{}, fmt.Errorf("feed version %q is not semver", release.Version)
	}

	return Result{
		Current:   current,
		Latest:    latest,
		Available: semver.Compare(latest, current) > 0,
		Release:   release,
	}, nil
}

func (c *Checker) fetch(ctx context.Context) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Release{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("release feed returned %d", resp.StatusCode)
	}
	var release Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&release); err != nil {
		return Release{}, fmt.Errorf("decode release feed: %w", err)
	}
	return release, nil
}

func (c *Checker) status(payload events.UpdateStatusPayload) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishJSON(events.EventUpdateStatus, payload); err != nil {
		c.logger.Warn().Err(err).Msg("publish update status")
	}
}

// canonical adds the "v" prefix semver expects.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
