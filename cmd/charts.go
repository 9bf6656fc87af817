package main

import (
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/charts"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Manage offline chart region bundles",
}

var chartsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog regions and their download state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "charts")
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.chartManager(ctx)
		if err != nil {
			return err
		}
		formatRegions(cmd.OutOrStdout(), m, m.Regions(), env.Clock.Now())
		return nil
	},
}

var chartsExpiredCmd = &cobra.Command{
	Use:   "expired",
	Short: "List downloaded regions past their expiration date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "charts")
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.chartManager(ctx)
		if err != nil {
			return err
		}
		expired := m.ExpiredRegions()
		if len(expired) == 0 {
			zap.L().Info("no expired chart regions")
			return nil
		}
		formatRegions(cmd.OutOrStdout(), m, expired, env.Clock.Now())
		return nil
	},
}

var chartsStorageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Show bytes used by downloaded regions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "charts")
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.chartManager(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d bytes\n", m.StorageUsed(ctx))
		return nil
	},
}

var chartsDownloadCmd = &cobra.Command{
	Use:   "download REGION...",
	Short: "Download region bundles and wait for them to finish",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "charts")
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.chartManager(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var mu sync.Mutex
		tasks := make([]*charts.Task, 0, len(args))
		for _, id := range args {
			t, err := m.Download(ctx, id, progressPrinter(out, &mu))
			if err != nil {
				zap.L().Warn("chart download rejected", zap.String("region", id), zap.Error(err))
				continue
			}
			tasks = append(tasks, t)
		}

		failed := len(args) - len(tasks)
		for _, t := range tasks {
			if err := t.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					t.Cancel()
					<-t.Done()
				}
				failed++
				zap.L().Error("chart download failed", zap.String("region", t.RegionID), zap.Error(t.Err()))
			}
		}
		if failed > 0 {
			return eris.Errorf("charts download: %d of %d regions failed", failed, len(args))
		}
		return nil
	},
}

// progressPrinter reports each task at whole 10% steps plus its terminal
// state.
func progressPrinter(out io.Writer, mu *sync.Mutex) charts.Observer {
	lastStep := -1
	return func(u charts.Update) {
		mu.Lock()
		defer mu.Unlock()
		if u.State.Terminal() {
			_, _ = fmt.Fprintf(out, "%s: %s\n", u.RegionID, u.State)
			return
		}
		step := int(u.Progress * 10)
		if step == lastStep {
			return
		}
		lastStep = step
		_, _ = fmt.Fprintf(out, "%s: %s %3d%%\n", u.RegionID, u.State, step*10)
	}
}

var chartsDeleteCmd = &cobra.Command{
	Use:   "delete REGION",
	Short: "Remove a downloaded region bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "charts")
		if err != nil {
			return err
		}
		defer env.Close()

		m, err := env.chartManager(ctx)
		if err != nil {
			return err
		}
		if err := m.Delete(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("chart region deleted", zap.String("region", args[0]))
		return nil
	},
}

func init() {
	chartsCmd.AddCommand(chartsListCmd, chartsExpiredCmd, chartsStorageCmd, chartsDownloadCmd, chartsDeleteCmd)
	rootCmd.AddCommand(chartsCmd)
}

// stateOf is the subset of the manager formatRegions needs.
type stateOf interface {
	State(id string) model.RegionState
}

func formatRegions(out io.Writer, m stateOf, regions []model.ChartRegion, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATE\tEFFECTIVE\tEXPIRES\tSIZE")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t---------\t-------\t----")
	for _, r := range regions {
		state := string(m.State(r.ID))
		if r.IsExpired(now) {
			state += " (expired)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Name,
			state,
			r.EffectiveDate.Format("2006-01-02"),
			r.ExpirationDate.Format("2006-01-02"),
			humanBytes(r.FileSizeBytes),
		)
	}
	_ = w.Flush()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
