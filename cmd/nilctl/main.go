// Command nilctl scores deals and FMV offline, inspects reconsideration
// windows and drives synthetic load against a running server.
package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/okian/nilcore/internal/config"
	"github.com/okian/nilcore/pkg/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "nilctl",
	Short:         "NIL compliance and valuation toolkit",
	Long:          "Scores deals and athlete fair-market value with the same engines the server runs, checks reconsideration windows and load-tests a running server.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr())); err != nil {
			return eris.Wrap(err, "init logger")
		}

		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(cmd.Context(), path)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		level := cfg.LogLevel
		if l, _ := cmd.Flags().GetString("log-level"); l != "" {
			level = l
		}
		if err := logger.SetLevelString(level); err != nil {
			return eris.Wrapf(err, "log level %q", level)
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML config file (overrides NILCORE_CONFIG)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("nilctl: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// readJSON decodes the file at path into v. A path of "-" reads stdin.
func readJSON(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return eris.Wrapf(err, "decode %s", path)
	}
	return nil
}

// writeJSON prints v indented to the command's output.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
