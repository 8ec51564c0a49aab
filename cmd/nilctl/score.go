package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/okian/nilcore/internal/domain/compliance"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a deal offline",
	Long: `Score one deal version against a compliance table without a server.

The deal and athlete files hold the same JSON the API accepts under "deal"
and "athlete". Nothing is stored.

Examples:
  nilctl score --deal deal.json --athlete athlete.json
  nilctl score --deal deal.json --athlete athlete.json --version v1`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("deal", "", "deal JSON file (required)")
	f.String("athlete", "", "athlete context JSON file (required)")
	f.String("version", "", "score version (default from config)")
	_ = scoreCmd.MarkFlagRequired("deal")
	_ = scoreCmd.MarkFlagRequired("athlete")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	dealPath, _ := cmd.Flags().GetString("deal")
	athletePath, _ := cmd.Flags().GetString("athlete")
	version, _ := cmd.Flags().GetString("version")
	if version == "" && cfg != nil {
		version = cfg.ScoreVersion
	}

	var (
		deal    compliance.Deal
		athlete compliance.AthleteContext
	)
	if err := readJSON(cmd, dealPath, &deal); err != nil {
		return err
	}
	if err := readJSON(cmd, athletePath, &athlete); err != nil {
		return err
	}

	res, err := compliance.NewEngine().Score(deal, athlete, version)
	if err != nil {
		return eris.Wrap(err, "score deal")
	}
	return writeJSON(cmd, res)
}
