package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/weather"
)

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Read and refresh cached METAR observations",
}

var weatherGetCmd = &cobra.Command{
	Use:   "get STATION...",
	Short: "Show cached observations without touching the network",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "weather")
		if err != nil {
			return err
		}
		defer env.Close()

		wc, err := env.weatherCache()
		if err != nil {
			return err
		}

		results := make([]weather.Result, 0, len(args))
		for _, id := range args {
			obs, ok := wc.Get(ctx, id)
			if !ok {
				results = append(results, weather.Result{StationID: id})
				continue
			}
			results = append(results, weather.Result{StationID: obs.StationID, Observation: obs, Tier: wc.Tier(*obs)})
		}
		formatWeatherResults(cmd.OutOrStdout(), results, env.Clock.Now())
		return nil
	},
}

var weatherRefreshForce bool

var weatherRefreshCmd = &cobra.Command{
	Use:   "refresh STATION...",
	Short: "Fetch observations that are missing or older than the freshness window",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "weather")
		if err != nil {
			return err
		}
		defer env.Close()

		wc, err := env.weatherCache()
		if err != nil {
			return err
		}

		results := wc.RefreshMany(ctx, args, weatherRefreshForce)
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				zap.L().Warn("weather refresh failed", zap.String("station", r.StationID), zap.Error(r.Err))
			}
		}
		formatWeatherResults(cmd.OutOrStdout(), results, env.Clock.Now())
		if failed == len(results) {
			return eris.Errorf("weather refresh: all %d stations failed", failed)
		}
		return nil
	},
}

var weatherClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached observation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "weather")
		if err != nil {
			return err
		}
		defer env.Close()

		wc, err := env.weatherCache()
		if err != nil {
			return err
		}
		if err := wc.ClearAll(ctx); err != nil {
			return eris.Wrap(err, "weather clear")
		}
		zap.L().Info("weather cache cleared")
		return nil
	},
}

func init() {
	weatherRefreshCmd.Flags().BoolVar(&weatherRefreshForce, "force", false, "fetch even when the cached entry is fresh")
	weatherCmd.AddCommand(weatherGetCmd, weatherRefreshCmd, weatherClearCmd)
	rootCmd.AddCommand(weatherCmd)
}

// formatWeatherResults writes one row per station. Stations with no
// observation show "-" in every column.
func formatWeatherResults(out io.Writer, results []weather.Result, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATION\tCATEGORY\tTIER\tAGE\tMETAR")
	_, _ = fmt.Fprintln(w, "-------\t--------\t----\t---\t-----")

	for _, r := range results {
		if r.Observation == nil {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\t-\n", r.StationID)
			continue
		}
		obs := r.Observation
		raw := "-"
		if obs.RawMETAR != nil {
			raw = *obs.RawMETAR
		}
		age := weather.Age(*obs, now).Round(time.Minute)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			obs.StationID,
			obs.FlightCategory,
			r.Tier,
			age,
			raw,
		)
	}
	_ = w.Flush()
}
