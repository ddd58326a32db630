package main

import (
	"fmt"
	"runtime"

	"github.com/praetorian-inc/aobscan/pkg/rule"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Print the aobscan build, the Go toolchain it was built with, and the size of the builtin rule pack",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	rules, err := rule.NewLoader().LoadBuiltinRules()
	if err != nil {
		return fmt.Errorf("loading builtin rules: %w", err)
	}
	rulesets, err := rule.NewLoader().LoadBuiltinRulesets()
	if err != nil {
		return fmt.Errorf("loading builtin rulesets: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "aobscan %s (commit %s)\n", version, commit)
	fmt.Fprintf(out, "Built with %s for %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "Builtin rules: %d in %d rulesets\n", len(rules), len(rulesets))
	return nil
}
