package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/airportdata"
	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
	"github.com/vanboompow/efb-212-sub001/internal/geoindex"
	"github.com/vanboompow/efb-212-sub001/internal/model"
	"github.com/vanboompow/efb-212-sub001/internal/search"
)

const (
	datasetOurAirports = "ourairports"
	datasetFAA         = "faa"
)

var airportsCmd = &cobra.Command{
	Use:   "airports",
	Short: "Import, search and query the local airport table",
}

var (
	importDataset string
	importSource  string
)

var airportsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load airports from an OurAirports CSV or an FAA shapefile archive",
	Long:  "Reads --source (a URL or local path) and upserts every usable airport. OurAirports takes airports.csv; faa takes a zip holding the APT shapefile.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if importSource == "" {
			return eris.New("airports import: --source is required")
		}
		env, err := initEnv(ctx, "airports")
		if err != nil {
			return err
		}
		defer env.Close()

		workDir := filepath.Join(os.TempDir(), "efb-import")
		im := airportdata.NewImporter(env.Fetcher, env.Store, env.FS, workDir)

		var res *airportdata.Result
		switch importDataset {
		case datasetOurAirports:
			res, err = im.ImportOurAirports(ctx, importSource)
		case datasetFAA:
			res, err = im.ImportFAA(ctx, importSource)
		default:
			return eris.Errorf("airports import: unknown dataset %q (want %s or %s)", importDataset, datasetOurAirports, datasetFAA)
		}
		if err != nil {
			return err
		}

		zap.L().Info("airport import complete",
			zap.String("dataset", importDataset),
			zap.Int("read", res.Read),
			zap.Int("accepted", res.Accepted),
			zap.Int("skipped", res.Skipped),
			zap.Int64("upserted", res.Upserted),
		)
		return nil
	},
}

var (
	nearestLat    float64
	nearestLon    float64
	nearestCount  int
	nearestRadius float64
)

var airportsNearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "List the airports closest to a point",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "airports")
		if err != nil {
			return err
		}
		defer env.Close()

		idx, err := env.geoIndex(ctx)
		if err != nil {
			return err
		}
		p := geodesy.Coordinate{Lat: nearestLat, Lon: nearestLon}

		var matches []geoindex.Match
		if nearestRadius > 0 {
			matches, err = idx.WithinWithDistance(p, nearestRadius)
		} else {
			matches, err = idx.NearestWithDistance(p, nearestCount)
		}
		if err != nil {
			return err
		}
		formatMatches(cmd.OutOrStdout(), matches)
		return nil
	},
}

var searchLimit int

var airportsSearchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Search airports by identifier or name",
	Long:  "With a QUERY argument runs one search. Without one, reads queries line by line from stdin and debounces them like a type-ahead field, printing only results that were not superseded.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "airports")
		if err != nil {
			return err
		}
		defer env.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			airports, err := env.Store.SearchAirports(ctx, args[0], searchLimit)
			if err != nil {
				return err
			}
			formatAirports(out, airports)
			return nil
		}

		s := search.NewAirportSearch(env.Store, env.Clock, cfg.Search.Debounce())
		defer s.Close()
		return runTypeahead(cmd, s, cmd.InOrStdin(), out)
	},
}

type searchResult struct {
	query    string
	airports []model.Airport
	err      error
}

// runTypeahead feeds each input line to s and waits for the final query
// to report before returning.
func runTypeahead(cmd *cobra.Command, s *search.AirportSearch, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	results := make(chan searchResult, 16)
	cb := func(q string, airports []model.Airport, err error) {
		results <- searchResult{query: q, airports: airports, err: err}
	}

	last := ""
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		last = strings.TrimSpace(sc.Text())
		s.Query(ctx, last, searchLimit, cb)
		drainResults(out, results)
	}
	if err := sc.Err(); err != nil {
		return eris.Wrap(err, "airports search: read input")
	}
	if last == "" {
		drainResults(out, results)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-results:
			printSearchResult(out, r)
			if r.query == last {
				return r.err
			}
		}
	}
}

func drainResults(out io.Writer, results <-chan searchResult) {
	for {
		select {
		case r := <-results:
			printSearchResult(out, r)
		default:
			return
		}
	}
}

func printSearchResult(out io.Writer, r searchResult) {
	if r.query == "" {
		return
	}
	_, _ = fmt.Fprintf(out, "> %s\n", r.query)
	if r.err != nil {
		_, _ = fmt.Fprintf(out, "error: %v\n", r.err)
		return
	}
	formatAirports(out, r.airports)
}

func init() {
	airportsImportCmd.Flags().StringVar(&importDataset, "dataset", datasetOurAirports, "dataset format (ourairports or faa)")
	airportsImportCmd.Flags().StringVar(&importSource, "source", "", "URL or local path of the dataset")

	airportsNearestCmd.Flags().Float64Var(&nearestLat, "lat", 0, "latitude in decimal degrees")
	airportsNearestCmd.Flags().Float64Var(&nearestLon, "lon", 0, "longitude in decimal degrees")
	airportsNearestCmd.Flags().IntVar(&nearestCount, "count", 5, "number of airports to return")
	airportsNearestCmd.Flags().Float64Var(&nearestRadius, "radius", 0, "return every airport within this many nautical miles instead")
	_ = airportsNearestCmd.MarkFlagRequired("lat")
	_ = airportsNearestCmd.MarkFlagRequired("lon")

	airportsSearchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results per query")

	airportsCmd.AddCommand(airportsImportCmd, airportsNearestCmd, airportsSearchCmd)
	rootCmd.AddCommand(airportsCmd)
}

func formatAirports(out io.Writer, airports []model.Airport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ICAO\tNAME\tLAT\tLON\tELEV")
	for _, a := range airports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%.0f\n", a.ICAO, a.Name, a.Coordinate.Lat, a.Coordinate.Lon, a.ElevationFt)
	}
	_ = w.Flush()
}

func formatMatches(out io.Writer, matches []geoindex.Match) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ICAO\tNAME\tDIST NM\tBRG")
	for _, m := range matches {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%03.0f\n", m.Airport.ICAO, m.Airport.Name, m.DistanceNM, m.BearingDeg)
	}
	_ = w.Flush()
}
