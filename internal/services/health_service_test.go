package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctsales/internal/dataset"
)

func TestHealthService_HealthCheck(t *testing.T) {
	hs := NewHealthService("1.2.3", "", newTestService(t), nil)

	status := hs.HealthCheck(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthService_ReadinessCheck(t *testing.T) {
	t.Run("ready with loaded dataset", func(t *testing.T) {
		hs := NewHealthService("1.2.3", "", newTestService(t), nil)

		status := hs.ReadinessCheck(context.Background())
		assert.Equal(t, "ready", status.Status)

		ds, ok := status.Services["dataset"].(ServiceHealth)
		require.True(t, ok)
		assert.Equal(t, "ready", ds.Status)
		assert.Equal(t, 4, ds.Rows)
	})

	t.Run("not ready with empty dataset", func(t *testing.T) {
		empty := NewDashboardServiceFromTable(dataset.NewTable(nil), nil, nil)
		hs := NewHealthService("1.2.3", "", empty, nil)

		status := hs.ReadinessCheck(context.Background())
		assert.Equal(t, "not_ready", status.Status)
	})

	t.Run("unavailable without dashboard service", func(t *testing.T) {
		hs := NewHealthService("1.2.3", "", nil, nil)

		status := hs.ReadinessCheck(context.Background())
		assert.Equal(t, "not_ready", status.Status)

		ds, ok := status.Services["dataset"].(ServiceHealth)
		require.True(t, ok)
		assert.Equal(t, "unavailable", ds.Status)
	})
}

func TestHealthService_LivenessCheck(t *testing.T) {
	hs := NewHealthService("1.2.3", "", newTestService(t), nil)

	status := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", status.Status)
	assert.Contains(t, status.Runtime, "uptime")
	assert.Contains(t, status.Runtime, "go_version")
}

func TestHealthService_Version(t *testing.T) {
	hs := NewHealthService("1.2.3", "2026-01-15T00:00:00Z", newTestService(t), nil)

	info := hs.Version()
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "2026-01-15T00:00:00Z", info["build_time"])
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "start_time")
}
