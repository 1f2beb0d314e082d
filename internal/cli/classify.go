package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/arcsign/internal/classify"
	"github.com/vietddude/arcsign/internal/core/domain"
	"github.com/vietddude/arcsign/internal/signin"
)

var statusCode int

var classifyCmd = &cobra.Command{
	Use:   "classify [file|-]",
	Short: "Classify a saved response body and print the verdict",
	Args:  cobra.MaximumNArgs(1),
	Run:   runClassify,
}

func init() {
	classifyCmd.Flags().IntVar(&statusCode, "status", 200, "HTTP status code of the saved response")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	body, err := readBody(cmd.InOrStdin(), args)
	if err != nil {
		slog.Error("Failed to read body", "error", err)
		os.Exit(1)
	}

	sample := domain.ResponseSample{StatusCode: statusCode, Body: string(body)}
	verdict := signin.NewClassifier(cfg.Markers).Classify(sample)
	badge, badgeFound := classify.PageStatus(sample.Body)

	if err := printVerdict(cmd.OutOrStdout(), verdict, badge, badgeFound); err != nil {
		slog.Error("Failed to write verdict", "error", err)
		os.Exit(1)
	}
}

// readBody reads the named file, or in when no file or "-" is given.
func readBody(in io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(args[0])
}

func printVerdict(out io.Writer, v classify.Verdict, badge domain.Outcome, badgeFound bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "OUTCOME\t%s\n", v.Outcome)
	_, _ = fmt.Fprintf(w, "RULE\t%s\n", orDash(v.Rule))
	_, _ = fmt.Fprintf(w, "REASON\t%s\n", orDash(v.Reason))
	if badgeFound {
		_, _ = fmt.Fprintf(w, "BADGE\t%s\n", badge)
	} else {
		_, _ = fmt.Fprintln(w, "BADGE\t-")
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
