package model

import (
	"time"
)

// ChartRegion is a downloadable offline bundle of chart tiles.
type ChartRegion struct {
	ID             string    `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	EffectiveDate  time.Time `json:"effective_date" yaml:"effective_date"`
	ExpirationDate time.Time `json:"expiration_date" yaml:"expiration_date"`
	FileSizeBytes  int64     `json:"file_size_bytes" yaml:"file_size_bytes"`
	URL            string    `json:"url" yaml:"url"`
	LocalPath      *string   `json:"local_path,omitempty" yaml:"-"`
}

// IsDownloaded reports whether a local copy is recorded.
func (r ChartRegion) IsDownloaded() bool {
	return r.LocalPath != nil
}

// IsExpired reports whether now is past the expiration date, regardless of
// whether the region is downloaded.
func (r ChartRegion) IsExpired(now time.Time) bool {
	return now.After(r.ExpirationDate)
}

// IsEffective reports whether the region's validity window has started.
func (r ChartRegion) IsEffective(now time.Time) bool {
	return !now.Before(r.EffectiveDate)
}

// DownloadState is the lifecycle state of a download task.
type DownloadState string

const (
	DownloadQueued      DownloadState = "queued"
	DownloadDownloading DownloadState = "downloading"
	DownloadSucceeded   DownloadState = "succeeded"
	DownloadFailed      DownloadState = "failed"
	// DownloadCancelled is a failed sub-state for explicitly cancelled tasks.
	DownloadCancelled DownloadState = "cancelled"
)

// Terminal reports whether no further transitions will happen.
func (s DownloadState) Terminal() bool {
	return s == DownloadSucceeded || s == DownloadFailed || s == DownloadCancelled
}

// RegionState is the user-facing state of a region, combining the catalog
// and any in-flight task.
type RegionState string

const (
	RegionNotDownloaded RegionState = "not_downloaded"
	RegionQueued        RegionState = "queued"
	RegionDownloading   RegionState = "downloading"
	RegionDownloaded    RegionState = "downloaded"
	RegionFailed        RegionState = "failed"
)
