package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/okian/nilcore/internal/domain/reconsider"
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Check a reconsideration window",
	Long: `Report whether a declined or rejected response could be reconsidered,
and how long its 48 hour window has left.

Examples:
  nilctl window --responded-at 2025-09-01T10:00:00Z
  nilctl window --responded-at 2025-09-01T10:00:00Z --now 2025-09-02T09:00:00Z --status rejected
  nilctl window --responded-at 2025-09-01T10:00:00Z --reconsidered`,
	RunE: runWindow,
}

func init() {
	f := windowCmd.Flags()
	f.String("responded-at", "", "RFC3339 time of the decision (required)")
	f.String("now", "", "RFC3339 evaluation time (default: current time)")
	f.String("status", string(reconsider.StatusDeclined), "current status of the response")
	f.String("kind", string(reconsider.KindDealInvite), "deal_invite or match")
	f.Bool("reconsidered", false, "the response was already reconsidered once")
	_ = windowCmd.MarkFlagRequired("responded-at")

	rootCmd.AddCommand(windowCmd)
}

func runWindow(cmd *cobra.Command, _ []string) error {
	raw, _ := cmd.Flags().GetString("responded-at")
	respondedAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return eris.Wrapf(err, "parse --responded-at %q", raw)
	}
	now := time.Now().UTC()
	if raw, _ := cmd.Flags().GetString("now"); raw != "" {
		if now, err = time.Parse(time.RFC3339, raw); err != nil {
			return eris.Wrapf(err, "parse --now %q", raw)
		}
	}
	status, _ := cmd.Flags().GetString("status")
	kind, _ := cmd.Flags().GetString("kind")
	used, _ := cmd.Flags().GetBool("reconsidered")

	rec := reconsider.Record{
		ID:          "cli",
		Kind:        reconsider.Kind(kind),
		Status:      reconsider.Status(status),
		RespondedAt: &respondedAt,
	}
	if used {
		rec.History = append(rec.History, reconsider.HistoryEntry{Status: reconsider.TagReconsidered, At: respondedAt})
	}
	return writeJSON(cmd, reconsider.CanReconsider(rec, now))
}
