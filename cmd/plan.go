package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
	"github.com/vanboompow/efb-212-sub001/internal/model"
	"github.com/vanboompow/efb-212-sub001/internal/route"
)

var (
	planCruise float64
	planBurn   float64
)

var planCmd = &cobra.Command{
	Use:   "plan ICAO ICAO...",
	Short: "Compute legs, distance, time and fuel for a route",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "plan")
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := route.Planner{Airports: env.Store}.Plan(ctx, args, planCruise, planBurn)
		if err != nil {
			return err
		}
		formatPlan(cmd.OutOrStdout(), p)
		return nil
	},
}

func init() {
	planCmd.Flags().Float64Var(&planCruise, "cruise", 110, "cruise true airspeed in knots")
	planCmd.Flags().Float64Var(&planBurn, "burn", 8.5, "fuel burn in gallons per hour")
	rootCmd.AddCommand(planCmd)
}

func formatPlan(out io.Writer, p *model.RoutePlan) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FROM\tTO\tDIST NM\tBRG")
	for _, l := range p.Legs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%03.0f\n", l.From, l.To, l.DistanceNM, l.BearingDeg)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "total %.1f NM (%.1f SM), %s at %.0f kt, %.1f gal at %.1f gph\n",
		p.TotalDistanceNM,
		geodesy.NMToStatuteMiles(p.TotalDistanceNM),
		p.EstimatedTime.Round(time.Minute),
		p.CruiseSpeedKts,
		p.EstimatedFuelGal,
		p.BurnRateGPH,
	)
}
