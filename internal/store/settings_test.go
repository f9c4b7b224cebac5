package store

import (
	"context"
	"testing"

	"toursync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSettingsDefaults(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), got)
}

func TestUpdateSettings(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	want := models.DefaultSettings()
	want.CompanyName = "Acme Rentals"
	want.TourDurationMinutes = 45
	want.Notifications.Email = false
	require.NoError(t, s.UpdateSettings(ctx, want))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme Rentals", got.CompanyName)
	assert.Equal(t, 45, got.TourDurationMinutes)
	assert.False(t, got.Notifications.Email)
	assert.True(t, got.Notifications.Desktop)

	want.CompanyName = "Acme Homes"
	require.NoError(t, s.UpdateSettings(ctx, want))
	got, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme Homes", got.CompanyName)
}
