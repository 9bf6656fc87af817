// Package fetcher is the network collaborator: METAR retrieval from
// aviationweather.gov, chart bundle downloads over HTTP(S) or FTP, and the
// stream parsers (CSV, JSON, ZIP) the airport importers build on.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/resilience"
)

// DefaultMETARURL is the aviationweather.gov data API; %s receives the
// station identifier.
const DefaultMETARURL = "https://aviationweather.gov/api/data/metar?ids=%s&format=json"

// Options configures a Client.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	HostRates  map[string]float64
	Retry      resilience.RetryConfig
	Breaker    resilience.CircuitBreakerConfig
	// METARURL is a fmt template with one %s for the station id. A plain
	// endpoint without %s gets the aviationweather.gov query appended.
	METARURL string
	// FS receives downloads. Defaults to the OS filesystem.
	FS afero.Fs
	// OnResult observes the outcome of each upstream attempt.
	OnResult func(host string, err error)
}

// ProgressFunc reports bytes received so far and the expected total
// (-1 when the server did not say).
type ProgressFunc func(written, total int64)

// Client is the network collaborator used by the weather cache and chart
// manager.
type Client struct {
	http     *HTTPFetcher
	ftp      *FTPFetcher
	breakers *resilience.HostBreakers
	fs       afero.Fs
	metarURL string
}

// New builds a Client.
func New(opts Options) *Client {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	opts.METARURL = metarTemplate(opts.METARURL)
	brCfg := opts.Breaker
	if brCfg.ShouldTrip == nil {
		brCfg.ShouldTrip = resilience.IsTransient
	}
	breakers := resilience.NewHostBreakers(brCfg)
	return &Client{
		http: NewHTTPFetcher(HTTPOptions{
			UserAgent:  opts.UserAgent,
			Timeout:    opts.Timeout,
			RatePerSec: opts.RatePerSec,
			HostRates:  opts.HostRates,
			Retry:      opts.Retry,
			Breakers:   breakers,
			OnResult:   opts.OnResult,
		}),
		ftp:      NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
		breakers: breakers,
		fs:       opts.FS,
		metarURL: opts.METARURL,
	}
}

func metarTemplate(u string) string {
	switch {
	case u == "":
		return DefaultMETARURL
	case strings.Contains(u, "%s"):
		return u
	case strings.Contains(u, "?"):
		return u + "&ids=%s&format=json"
	default:
		return u + "?ids=%s&format=json"
	}
}

// Breakers returns the circuit state of every host contacted so far.
func (c *Client) Breakers() map[string]resilience.CircuitState {
	return c.breakers.States()
}

// FetchJSON GETs rawURL and decodes the body into v.
func (c *Client) FetchJSON(ctx context.Context, rawURL string, v any) error {
	body, _, err := c.open(ctx, rawURL)
	if err != nil {
		return classify("fetcher: get json", err)
	}
	defer body.Close() //nolint:errcheck
	if err := decodeInto(body, v); err != nil {
		return efberr.Wrap(efberr.FetchFailed, "fetcher: decode json", err)
	}
	return nil
}

// DownloadFile streams rawURL into dest on the client's filesystem and
// returns the number of bytes written. Data lands in dest+".part" and is
// renamed into place only after a complete transfer; a failed or
// cancelled transfer leaves nothing at dest. A ".zst" URL is decompressed
// on the fly and progress counts compressed bytes.
func (c *Client) DownloadFile(ctx context.Context, rawURL, dest string, onProgress ProgressFunc) (int64, error) {
	body, total, err := c.open(ctx, rawURL)
	if err != nil {
		return 0, classify("fetcher: download", err)
	}
	defer body.Close() //nolint:errcheck

	var src io.Reader = &progressReader{ctx: ctx, r: body, total: total, fn: onProgress}
	if isZstd(rawURL) {
		dec, err := zstd.NewReader(src)
		if err != nil {
			return 0, efberr.Wrap(efberr.FetchFailed, "fetcher: zstd", err)
		}
		defer dec.Close()
		src = dec
	}

	if err := c.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, efberr.Wrap(efberr.StorageUnavailable, "fetcher: create directory", err)
	}
	part := dest + ".part"
	out, err := c.fs.Create(part)
	if err != nil {
		return 0, efberr.Wrap(efberr.StorageUnavailable, "fetcher: create file", err)
	}

	n, copyErr := io.Copy(out, src)
	closeErr := out.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = efberr.Wrap(efberr.StorageUnavailable, "fetcher: close file", closeErr)
	}
	if copyErr != nil {
		_ = c.fs.Remove(part)
		if efberr.KindOf(copyErr) != efberr.KindUnknown {
			return 0, copyErr
		}
		return 0, classify("fetcher: download", copyErr)
	}
	if err := c.fs.Rename(part, dest); err != nil {
		_ = c.fs.Remove(part)
		return 0, efberr.Wrap(efberr.StorageUnavailable, "fetcher: rename file", err)
	}
	return n, nil
}

func (c *Client) open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, efberr.Wrap(efberr.InvalidInput, "fetcher: parse url", err)
	}
	switch u.Scheme {
	case "http", "https":
		return c.http.Open(ctx, rawURL)
	case "ftp":
		br := c.breakers.Get(u.Host)
		type opened struct {
			rc   io.ReadCloser
			size int64
		}
		o, err := resilience.ExecuteVal(ctx, br, func(ctx context.Context) (opened, error) {
			rc, size, err := c.ftp.Open(ctx, rawURL)
			return opened{rc, size}, err
		})
		return o.rc, o.size, err
	default:
		return nil, 0, efberr.New(efberr.InvalidInput, "fetcher: open", fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
}

func isZstd(rawURL string) bool {
	if u, err := url.Parse(rawURL); err == nil {
		return strings.HasSuffix(strings.ToLower(u.Path), ".zst")
	}
	return false
}

// classify maps a transport failure onto the error taxonomy: timeouts wrap
// ErrTimeout, connection-level failures and open circuits wrap
// ErrNetworkUnavailable, and already-tagged errors pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if efberr.KindOf(err) != efberr.KindUnknown {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return efberr.Wrap(efberr.FetchFailed, op, err)
	case resilience.IsTimeout(err):
		return fmt.Errorf("%s: %w: %w", op, efberr.ErrTimeout, err)
	case errors.Is(err, resilience.ErrCircuitOpen), isNetworkError(err):
		return fmt.Errorf("%s: %w: %w", op, efberr.ErrNetworkUnavailable, err)
	default:
		return efberr.Wrap(efberr.FetchFailed, op, err)
	}
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return resilience.IsTransient(err) && !errors.As(err, new(*resilience.TransientError))
}

type progressReader struct {
	ctx     context.Context
	r       io.Reader
	written int64
	total   int64
	fn      ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		if p.fn != nil {
			p.fn(p.written, p.total)
		}
	}
	return n, err
}
