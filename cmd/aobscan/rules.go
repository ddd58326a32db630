package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/praetorian-inc/aobscan/pkg/rule"
	"github.com/praetorian-inc/aobscan/pkg/types"
	"github.com/spf13/cobra"
)

var (
	rulesPath    string
	outputFormat string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage detection rules",
	Long:  "Commands for listing and checking detection rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available rules",
	Long:  "Display all available detection rules with their IDs, names, and signatures",
	RunE:  runRulesList,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check rules against their examples",
	Long: `Compile every rule and scan its examples. A rule fails when its signature
does not compile, has no concrete byte, misses one of its examples, or matches
one of its negative examples. Without --rules the builtin rulesets are checked
as well.`,
	RunE: runRulesCheck,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
	rulesCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to custom rules file or directory")
	rulesListCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	rules, err := loadRulesForCommand(rulesPath)
	if err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		return outputRulesJSON(cmd, rules)
	case "table":
		return outputRulesTable(cmd, rules)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	rules, err := loadRulesForCommand(rulesPath)
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range rules {
		if err := rule.ValidateRule(r); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s: %v\n", r.ID, err)
			errs = append(errs, err)
			continue
		}
		if verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "ok    %s\n", r.ID)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d rules checked, %d failed\n", len(rules), len(errs))

	// Builtin rulesets must only reference builtin rules.
	if rulesPath == "" {
		rulesetErrs, err := checkBuiltinRulesets(cmd, rules)
		if err != nil {
			return err
		}
		errs = append(errs, rulesetErrs...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("rule check failed: %w", errors.Join(errs...))
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func loadRulesForCommand(path string) ([]*types.Rule, error) {
	loader := rule.NewLoader()

	if path != "" {
		rules, err := loader.LoadRulesPath(path)
		if err != nil {
			return nil, fmt.Errorf("loading rules from %s: %w", path, err)
		}
		return rules, nil
	}

	rules, err := loader.LoadBuiltinRules()
	if err != nil {
		return nil, fmt.Errorf("loading builtin rules: %w", err)
	}
	return rules, nil
}

func checkBuiltinRulesets(cmd *cobra.Command, rules []*types.Rule) ([]error, error) {
	rulesets, err := rule.NewLoader().LoadBuiltinRulesets()
	if err != nil {
		return nil, fmt.Errorf("loading builtin rulesets: %w", err)
	}

	known := make(map[string]bool, len(rules))
	for _, r := range rules {
		known[r.ID] = true
	}

	var errs []error
	for _, rs := range rulesets {
		if err := rule.ValidateRuleset(rs, known); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL  ruleset %s: %v\n", rs.ID, err)
			errs = append(errs, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rulesets checked, %d failed\n", len(rulesets), len(errs))
	return errs, nil
}

func outputRulesJSON(cmd *cobra.Command, rules []*types.Rule) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(rules)
}

func outputRulesTable(cmd *cobra.Command, rules []*types.Rule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tSignature\tOffset\tCategories\n")
	fmt.Fprintf(w, "--\t----\t---------\t------\t----------\n")

	for _, r := range rules {
		categories := ""
		if len(r.Categories) > 0 {
			categories = r.Categories[0]
			if len(r.Categories) > 1 {
				categories += fmt.Sprintf(" (+%d)", len(r.Categories)-1)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.Name, r.Signature, r.Offset, categories)
	}

	return nil
}
