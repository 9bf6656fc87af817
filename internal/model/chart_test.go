package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChartRegion_IsExpired(t *testing.T) {
	t.Parallel()
	exp := time.Date(2026, 3, 19, 9, 0, 0, 0, time.UTC)
	r := ChartRegion{ID: "sf", ExpirationDate: exp}

	assert.False(t, r.IsExpired(exp.Add(-time.Hour)))
	assert.False(t, r.IsExpired(exp), "expiration instant itself is still current")
	assert.True(t, r.IsExpired(exp.Add(time.Second)))

	path := "/charts/sf.mbtiles"
	r.LocalPath = &path
	assert.True(t, r.IsExpired(exp.Add(time.Second)), "expiry is independent of download state")
}

func TestChartRegion_IsDownloaded(t *testing.T) {
	t.Parallel()
	r := ChartRegion{ID: "sf"}
	assert.False(t, r.IsDownloaded())
	p := "/charts/sf.mbtiles"
	r.LocalPath = &p
	assert.True(t, r.IsDownloaded())
}

func TestChartRegion_IsEffective(t *testing.T) {
	t.Parallel()
	eff := time.Date(2026, 1, 22, 9, 0, 0, 0, time.UTC)
	r := ChartRegion{EffectiveDate: eff}
	assert.False(t, r.IsEffective(eff.Add(-time.Minute)))
	assert.True(t, r.IsEffective(eff))
}

func TestDownloadState_Terminal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state DownloadState
		want  bool
	}{
		{DownloadQueued, false},
		{DownloadDownloading, false},
		{DownloadSucceeded, true},
		{DownloadFailed, true},
		{DownloadCancelled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.state.Terminal())
		})
	}
}
