package cli

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List the candidate sign-in endpoints in priority order",
	Run:   runEndpoints,
}

func init() {
	rootCmd.AddCommand(endpointsCmd)
}

func runEndpoints(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "#\tNAME\tMETHOD\tTIMEOUT\tURL")
	for i, ep := range cfg.Endpoints {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, ep.Name, ep.Method, ep.Timeout, ep.URL)
	}
	_ = w.Flush()
}
