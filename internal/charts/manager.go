// Package charts manages offline chart region bundles: the catalog, which
// regions are downloaded or expired, and the download tasks that fetch
// them.
//
// Region lifecycle:
//
//	not_downloaded -> queued -> downloading -> downloaded | failed
//
// A downloaded region is only re-downloaded once expired. Failed or
// cancelled downloads are retried only when asked; nothing retries on its
// own.
package charts

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/fetcher"
	"github.com/vanboompow/efb-212-sub001/internal/metrics"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// Store is the chart bookkeeping slice of the persistent store.
type Store interface {
	ListDownloadedChartPaths(ctx context.Context) (map[string]string, error)
	SetChartPath(ctx context.Context, regionID, path string) error
	ClearChartPath(ctx context.Context, regionID string) error
	SaveCatalogSnapshot(ctx context.Context, regions []model.ChartRegion) error
	LoadCatalogSnapshot(ctx context.Context) ([]model.ChartRegion, error)
}

// Downloader streams a URL to dest, writing dest+".part" and renaming on
// success.
type Downloader interface {
	DownloadFile(ctx context.Context, url, dest string, onProgress fetcher.ProgressFunc) (int64, error)
}

// Options tunes the manager.
type Options struct {
	// MaxConcurrentDownloads caps simultaneous transfers. Default 2.
	MaxConcurrentDownloads int
	// ChartDir is the root under which region bundles are stored.
	ChartDir string
	Metrics  *metrics.Metrics
}

// Manager owns the chart catalog and its download tasks.
type Manager struct {
	store  Store
	source CatalogSource
	dl     Downloader
	fs     afero.Fs
	clock  clock.Clock
	opts   Options
	log    *zap.Logger
	sem    *semaphore.Weighted

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu      sync.Mutex
	order   []string
	regions map[string]*model.ChartRegion
	failed  map[string]bool
	tasks   map[string]*Task
}

// New builds a Manager. Call LoadCatalog before anything else.
func New(store Store, source CatalogSource, dl Downloader, fsys afero.Fs, clk clock.Clock, opts Options) *Manager {
	if opts.MaxConcurrentDownloads <= 0 {
		opts.MaxConcurrentDownloads = 2
	}
	if opts.ChartDir == "" {
		opts.ChartDir = "charts"
	}
	if clk == nil {
		clk = clock.New()
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		store:   store,
		source:  source,
		dl:      dl,
		fs:      fsys,
		clock:   clk,
		opts:    opts,
		log:     zap.L().With(zap.String("component", "charts")),
		sem:     semaphore.NewWeighted(int64(opts.MaxConcurrentDownloads)),
		base:    base,
		stop:    stop,
		regions: make(map[string]*model.ChartRegion),
		failed:  make(map[string]bool),
		tasks:   make(map[string]*Task),
	}
}

// Close cancels every running task and waits for them to finish.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()
}

// LoadCatalog fetches the catalog and reconciles local paths against the
// store and the filesystem. When the source fails, the last persisted
// snapshot is served together with a FetchFailed error. Catalog dates are
// never modified.
func (m *Manager) LoadCatalog(ctx context.Context) ([]model.ChartRegion, error) {
	regions, srcErr := m.source.Regions(ctx)
	if srcErr != nil {
		if !efberr.IsFetchFailed(srcErr) {
			srcErr = efberr.Wrap(efberr.FetchFailed, "charts: load catalog", srcErr)
		}
		snap, err := m.store.LoadCatalogSnapshot(ctx)
		if err != nil || snap == nil {
			if err != nil {
				m.log.Warn("charts: catalog snapshot unavailable", zap.Error(err))
			}
			return nil, srcErr
		}
		m.log.Warn("charts: catalog source failed, using snapshot", zap.Int("regions", len(snap)), zap.Error(srcErr))
		regions = snap
	}

	regions = m.sanitize(regions)
	if srcErr == nil {
		if err := m.store.SaveCatalogSnapshot(ctx, regions); err != nil {
			m.log.Warn("charts: save catalog snapshot failed", zap.Error(err))
		}
	}

	paths, err := m.store.ListDownloadedChartPaths(ctx)
	if err != nil {
		m.log.Warn("charts: list chart paths failed, keeping known paths", zap.Error(err))
		paths = nil
	}

	m.mu.Lock()
	known := m.regions
	next := make(map[string]*model.ChartRegion, len(regions))
	order := make([]string, 0, len(regions))
	var stale []string
	for i := range regions {
		r := regions[i]
		r.LocalPath = nil
		switch p, ok := paths[r.ID]; {
		case paths == nil:
			if prev, ok := known[r.ID]; ok {
				r.LocalPath = prev.LocalPath
			}
		case ok && m.exists(p):
			r.LocalPath = &p
		case ok:
			stale = append(stale, r.ID)
		}
		next[r.ID] = &r
		order = append(order, r.ID)
	}
	m.regions = next
	m.order = order
	out := m.copyLocked()
	m.mu.Unlock()

	for _, id := range stale {
		m.log.Info("charts: recorded bundle missing on disk", zap.String("region", id))
		if err := m.store.ClearChartPath(ctx, id); err != nil {
			m.log.Warn("charts: clear stale path failed", zap.String("region", id), zap.Error(err))
		}
	}
	return out, srcErr
}

// sanitize drops unusable and duplicate catalog rows.
func (m *Manager) sanitize(regions []model.ChartRegion) []model.ChartRegion {
	seen := make(map[string]bool, len(regions))
	out := regions[:0:0]
	for _, r := range regions {
		r.ID = strings.TrimSpace(r.ID)
		switch {
		case r.ID == "" || r.URL == "":
			m.log.Warn("charts: skipping catalog row without id or url", zap.String("name", r.Name))
		case seen[r.ID]:
			m.log.Warn("charts: skipping duplicate catalog row", zap.String("region", r.ID))
		default:
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}

func (m *Manager) exists(p string) bool {
	_, err := m.fs.Stat(p)
	return err == nil
}

func (m *Manager) copyLocked() []model.ChartRegion {
	out := make([]model.ChartRegion, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneRegion(*m.regions[id]))
	}
	return out
}

func cloneRegion(r model.ChartRegion) model.ChartRegion {
	if r.LocalPath != nil {
		p := *r.LocalPath
		r.LocalPath = &p
	}
	return r
}

// Regions returns the catalog in source order.
func (m *Manager) Regions() []model.ChartRegion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyLocked()
}

// Region returns one catalog entry.
func (m *Manager) Region(id string) (model.ChartRegion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regions[id]
	if !ok {
		return model.ChartRegion{}, regionNotFound(id)
	}
	return cloneRegion(*r), nil
}

func regionNotFound(id string) error {
	return efberr.New(efberr.NotFound, "charts", "unknown region "+id)
}

// State reports the user-facing state of a region.
func (m *Manager) State(id string) model.RegionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(id)
}

func (m *Manager) stateLocked(id string) model.RegionState {
	if t, ok := m.tasks[id]; ok {
		if t.State() == model.DownloadQueued {
			return model.RegionQueued
		}
		return model.RegionDownloading
	}
	if m.failed[id] {
		return model.RegionFailed
	}
	if r, ok := m.regions[id]; ok && r.IsDownloaded() {
		return model.RegionDownloaded
	}
	return model.RegionNotDownloaded
}

// Task returns the in-flight task for a region, or nil.
func (m *Manager) Task(id string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id]
}

// ExpiredRegions lists regions past their expiration date. Nothing is
// deleted.
func (m *Manager) ExpiredRegions() []model.ChartRegion {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ChartRegion
	for _, id := range m.order {
		if r := m.regions[id]; r.IsExpired(now) {
			out = append(out, cloneRegion(*r))
		}
	}
	return out
}

// StorageUsed re-checks every recorded bundle on disk, forgets the ones
// that vanished, and sums the catalog size of the rest.
func (m *Manager) StorageUsed(ctx context.Context) int64 {
	m.mu.Lock()
	var total int64
	var missing []string
	for _, id := range m.order {
		r := m.regions[id]
		if !r.IsDownloaded() {
			continue
		}
		if _, active := m.tasks[id]; !active && !m.exists(*r.LocalPath) {
			r.LocalPath = nil
			missing = append(missing, id)
			continue
		}
		total += r.FileSizeBytes
	}
	m.mu.Unlock()

	for _, id := range missing {
		m.log.Info("charts: bundle removed out of band", zap.String("region", id))
		if err := m.store.ClearChartPath(ctx, id); err != nil {
			m.log.Warn("charts: clear chart path failed", zap.String("region", id), zap.Error(err))
		}
	}
	m.opts.Metrics.SetChartStorage(total)
	return total
}

// Download starts a download for a region, or attaches obs to the task
// already running for it. A downloaded region that has not expired is
// rejected with InvalidInput.
func (m *Manager) Download(_ context.Context, regionID string, obs Observer) (*Task, error) {
	m.mu.Lock()
	r, ok := m.regions[regionID]
	if !ok {
		m.mu.Unlock()
		return nil, regionNotFound(regionID)
	}
	if t, ok := m.tasks[regionID]; ok {
		m.mu.Unlock()
		t.observe(obs)
		return t, nil
	}
	if r.IsDownloaded() && !r.IsExpired(m.clock.Now()) {
		m.mu.Unlock()
		return nil, efberr.New(efberr.InvalidInput, "charts: download", "region "+regionID+" is already current")
	}
	if m.base.Err() != nil {
		m.mu.Unlock()
		return nil, efberr.New(efberr.InvalidInput, "charts: download", "manager closed")
	}

	ctx, cancel := context.WithCancel(m.base)
	t := newTask(regionID, cancel)
	m.tasks[regionID] = t
	delete(m.failed, regionID)
	region := cloneRegion(*r)
	m.wg.Add(1)
	m.mu.Unlock()

	t.observe(obs)
	go m.run(ctx, t, region)
	return t, nil
}

// Cancel cancels the in-flight task for a region. It reports whether a
// task was running.
func (m *Manager) Cancel(regionID string) bool {
	t := m.Task(regionID)
	if t == nil {
		return false
	}
	t.Cancel()
	return true
}

// Delete removes a region's local bundle and forgets its path. Regions
// without a bundle are left alone. A region with a download in flight is
// rejected; cancel it first.
func (m *Manager) Delete(ctx context.Context, regionID string) error {
	m.mu.Lock()
	r, ok := m.regions[regionID]
	if !ok {
		m.mu.Unlock()
		return regionNotFound(regionID)
	}
	if _, active := m.tasks[regionID]; active {
		m.mu.Unlock()
		return efberr.New(efberr.InvalidInput, "charts: delete", "download in progress for "+regionID)
	}
	delete(m.failed, regionID)
	if !r.IsDownloaded() {
		m.mu.Unlock()
		return nil
	}
	p := *r.LocalPath
	m.mu.Unlock()

	if err := m.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return efberr.Wrap(efberr.StorageUnavailable, "charts: delete", err)
	}
	if err := m.store.ClearChartPath(ctx, regionID); err != nil {
		return err
	}

	m.mu.Lock()
	if cur, ok := m.regions[regionID]; ok {
		cur.LocalPath = nil
	}
	m.mu.Unlock()
	m.log.Info("charts: region deleted", zap.String("region", regionID))
	return nil
}

// destination is <ChartDir>/<region>/<file name from URL>, without any
// .zst suffix since bundles are decompressed while downloading.
func (m *Manager) destination(r model.ChartRegion) string {
	name := r.ID + ".bundle"
	if u, err := url.Parse(r.URL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	name = strings.TrimSuffix(name, ".zst")
	return filepath.Join(m.opts.ChartDir, r.ID, name)
}

func (m *Manager) run(ctx context.Context, t *Task, r model.ChartRegion) {
	defer m.wg.Done()
	log := m.log.With(zap.String("region", r.ID), zap.String("task", t.ID))

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.finish(t, r, "", 0, ctx.Err())
		return
	}
	defer m.sem.Release(1)

	t.emit(model.DownloadDownloading, 0, nil)
	m.opts.Metrics.DownloadStarted()
	log.Info("charts: download started", zap.String("url", r.URL))

	dest := m.destination(r)
	n, err := m.dl.DownloadFile(ctx, r.URL, dest, func(written, total int64) {
		if total <= 0 {
			total = r.FileSizeBytes
		}
		if total <= 0 {
			return
		}
		// Completion is only reported once the bundle is in place.
		t.emit(model.DownloadDownloading, min(float64(written)/float64(total), 0.99), nil)
	})
	if err == nil {
		if serr := m.store.SetChartPath(context.WithoutCancel(ctx), r.ID, dest); serr != nil {
			err = serr
		}
	}
	m.finish(t, r, dest, n, err)
	m.opts.Metrics.DownloadFinished(string(t.State()), n)
}

// finish records the outcome in the manager before the terminal update is
// delivered, so observers can immediately retry.
func (m *Manager) finish(t *Task, r model.ChartRegion, dest string, n int64, err error) {
	m.mu.Lock()
	delete(m.tasks, r.ID)
	var oldPath string
	switch {
	case err == nil:
		if cur, ok := m.regions[r.ID]; ok {
			if cur.LocalPath != nil && *cur.LocalPath != dest {
				oldPath = *cur.LocalPath
			}
			d := dest
			cur.LocalPath = &d
		}
	default:
		m.failed[r.ID] = true
	}
	m.mu.Unlock()

	switch {
	case err == nil:
		if oldPath != "" {
			if rmErr := m.fs.Remove(oldPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				m.log.Warn("charts: remove superseded bundle failed", zap.String("path", oldPath), zap.Error(rmErr))
			}
		}
		m.log.Info("charts: download succeeded", zap.String("region", r.ID), zap.Int64("bytes", n))
		t.emit(model.DownloadSucceeded, 1, nil)
	case errors.Is(err, context.Canceled):
		m.log.Info("charts: download cancelled", zap.String("region", r.ID))
		t.emit(model.DownloadCancelled, t.Progress(), efberr.Wrap(efberr.FetchFailed, "charts: download "+r.ID, err))
	default:
		m.log.Warn("charts: download failed", zap.String("region", r.ID), zap.Error(err))
		if !efberr.IsFetchFailed(err) && !efberr.IsStorageUnavailable(err) {
			err = efberr.Wrap(efberr.FetchFailed, "charts: download "+r.ID, err)
		}
		t.emit(model.DownloadFailed, t.Progress(), err)
	}
}
