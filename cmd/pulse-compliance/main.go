package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:           "pulse-compliance",
	Short:         "Pulse license compliance controller",
	Long:          `pulse-compliance evaluates the installation's license, escalates restriction levels while it is out of compliance and sends the matching notifications.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.AddCommand(versionCmd, evaluateCmd, statusCmd, dismissCmd, cleanupCmd, serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pulse-compliance %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Fprintf(out, "Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Fprintf(out, "Commit: %s\n", GitCommit)
		}
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Check the license once and send any notifications that are due",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.ctrl.Evaluate(cmd.Context())
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), result)
		}
		printResult(cmd.OutOrStdout(), result)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persisted compliance state without contacting the verifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		snap := a.ctrl.Snapshot(cmd.Context())
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), snap)
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

var dismissCmd = &cobra.Command{
	Use:   "dismiss",
	Short: "Hide in-product license notices for the snooze window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		until, err := a.ctrl.DismissNotice(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.board.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clear notices: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Notices dismissed until %s\n", until.Format("2006-01-02 15:04 MST"))
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete all persisted compliance state (for uninstall)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ctrl.Cleanup(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Compliance state removed")
		return nil
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, r compliance.Result) {
	behavior := r.Behavior()
	fmt.Fprintf(w, "State:       %s\n", r.State)
	fmt.Fprintf(w, "Level:       %s\n", r.Level)
	fmt.Fprintf(w, "Days:        %d\n", r.DaysElapsed)
	fmt.Fprintf(w, "Operations:  %s\n", behavior.Operations)
	if r.Transition.FailOpen {
		fmt.Fprintln(w, "Verifier:    unavailable, treated as valid for this check")
	}
	if r.Transition.Changed {
		fmt.Fprintf(w, "Transition:  %s -> %s\n", r.Transition.From, r.Transition.To)
	}
	if len(r.Notified) > 0 {
		names := make([]string, len(r.Notified))
		for i, ch := range r.Notified {
			names[i] = string(ch)
		}
		fmt.Fprintf(w, "Notified:    %s\n", strings.Join(names, ", "))
	}
}

func printSnapshot(w io.Writer, s compliance.Snapshot) {
	fmt.Fprintf(w, "State:       %s\n", s.State)
	fmt.Fprintf(w, "Level:       %s\n", s.Level)
	fmt.Fprintf(w, "Days:        %d\n", s.DaysElapsed)
	if s.LastChangedAt != nil {
		fmt.Fprintf(w, "Since:       %s\n", s.LastChangedAt)
	}
	for key, record := range s.Ledger {
		var sent []string
		if record.InProductSentAt != nil {
			sent = append(sent, "in_product "+record.InProductSentAt.String())
		}
		if record.EmailSentAt != nil {
			sent = append(sent, "email "+record.EmailSentAt.String())
		}
		fmt.Fprintf(w, "Sent:        %s (%s)\n", key, strings.Join(sent, ", "))
	}
	if s.NoticeSuppressedUntil != nil {
		fmt.Fprintf(w, "Dismissed:   until %s\n", s.NoticeSuppressedUntil.Format("2006-01-02 15:04 MST"))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
