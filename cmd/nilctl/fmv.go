package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/ratelimit"
)

var fmvCmd = &cobra.Command{
	Use:   "fmv",
	Short: "Calculate an athlete's FMV offline",
	Long: `Calculate fair-market value from a signals file, as a first computation.

The optional cohort file is a JSON array of {"athleteId","score"} peers used
for the percentile rank; without it the percentile is reported as -1.

Examples:
  nilctl fmv --signals athlete.json
  nilctl fmv --signals athlete.json --cohort peers.json`,
	RunE: runFMV,
}

func init() {
	f := fmvCmd.Flags()
	f.String("signals", "", "signals JSON file (required)")
	f.String("cohort", "", "peers JSON file")
	_ = fmvCmd.MarkFlagRequired("signals")

	rootCmd.AddCommand(fmvCmd)
}

func runFMV(cmd *cobra.Command, _ []string) error {
	signalsPath, _ := cmd.Flags().GetString("signals")
	cohortPath, _ := cmd.Flags().GetString("cohort")

	var signals fmv.Signals
	if err := readJSON(cmd, signalsPath, &signals); err != nil {
		return err
	}
	var peers []fmv.Peer
	if cohortPath != "" {
		if err := readJSON(cmd, cohortPath, &peers); err != nil {
			return err
		}
	}

	var opts []fmv.Option
	if cfg != nil {
		opts = append(opts, fmv.WithLimiter(ratelimit.New(ratelimit.WithDailyLimit(cfg.DailyLimit))))
	}
	res, err := fmv.NewEngine(opts...).Calculate(fmv.Request{Signals: signals, Cohort: peers, Trigger: fmv.TriggerInitial})
	if err != nil {
		return eris.Wrap(err, "calculate fmv")
	}
	return writeJSON(cmd, res)
}
