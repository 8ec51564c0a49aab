package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/okian/nilcore/internal/simulate"
	"github.com/okian/nilcore/pkg/logger"
)

// ErrInvariantsViolated is returned when a simulation finds broken invariants.
var ErrInvariantsViolated = eris.New("simulation found invariant violations")

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive synthetic load against a running server",
	Long: `Generate athletes and deals, call a running server concurrently and verify
what it answers: the daily recalculation limit, tier classification, the
leaderboard ordering and single-winner reconsideration.

Examples:
  nilctl simulate --url http://localhost:9080
  nilctl simulate --athletes 200 --deals 500 --workers 16 --rate 0`,
	RunE: runSimulate,
}

func init() {
	d := simulate.DefaultConfig()
	f := simulateCmd.Flags()
	f.String("url", d.BaseURL, "base URL of the server")
	f.Int("athletes", d.Athletes, "number of synthetic athletes")
	f.Int("deals", d.Deals, "number of deals to score")
	f.Int("workers", d.Workers, "concurrent workers")
	f.Float64("rate", d.Rate, "client request rate per second (0 = unlimited)")
	f.Int("contend", d.Contend, "concurrent reconsider attempts per response")
	f.Uint64("seed", d.Seed, "generator seed")
	f.Duration("timeout", d.Timeout, "HTTP request timeout")
	f.Bool("verbose", false, "log each violation")

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := cmd.Flags()
	sc := simulate.DefaultConfig()
	sc.BaseURL, _ = f.GetString("url")
	sc.Athletes, _ = f.GetInt("athletes")
	sc.Deals, _ = f.GetInt("deals")
	sc.Workers, _ = f.GetInt("workers")
	sc.Rate, _ = f.GetFloat64("rate")
	sc.Contend, _ = f.GetInt("contend")
	sc.Seed, _ = f.GetUint64("seed")
	sc.Timeout, _ = f.GetDuration("timeout")
	sc.Verbose, _ = f.GetBool("verbose")

	stats, err := simulate.NewRunner(sc, logger.Get().Named("simulate")).Run(ctx)
	if err != nil {
		return err
	}
	if err := writeJSON(cmd, stats); err != nil {
		return err
	}
	if !stats.OK() {
		return eris.Wrapf(ErrInvariantsViolated, "%d violations, %d failed requests", len(stats.Violations), stats.Failed)
	}
	return nil
}
