package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/praetorian-inc/aobscan/pkg/datastore"
	"github.com/praetorian-inc/aobscan/pkg/rule"
	"github.com/praetorian-inc/aobscan/pkg/store"
	"github.com/praetorian-inc/aobscan/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	reportDatastore string
	reportFormat    string
	reportColor     string
	reportMaxBytes  int
)

// styles holds color formatters for the human report
type styles struct {
	findingHeading *color.Color
	id             *color.Color
	ruleName       *color.Color
	heading        *color.Color
	match          *color.Color
	metadata       *color.Color
}

// newStyles creates color formatters for report output
// enabled=false respects --color=never and the NO_COLOR env var
func newStyles(enabled bool) *styles {
	s := &styles{
		findingHeading: color.New(color.Bold, color.FgHiWhite),
		id:             color.New(color.FgHiGreen),
		ruleName:       color.New(color.Bold, color.FgHiBlue),
		heading:        color.New(color.Bold),
		match:          color.New(color.FgYellow),
		metadata:       color.New(color.FgHiBlue),
	}

	if !enabled {
		s.findingHeading.DisableColor()
		s.id.DisableColor()
		s.ruleName.DisableColor()
		s.heading.DisableColor()
		s.match.DisableColor()
		s.metadata.DisableColor()
	}

	return s
}

// snippetParts holds separated snippet components for colored output.
// Every part is already rendered as hex.
type snippetParts struct {
	prefix   string // "..." if truncated at start
	before   string
	matching string
	after    string
	suffix   string // "..." if truncated at end
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from scan results",
	Long:  "Read findings from a datastore and output a summary report",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatastore, "datastore", "aobscan.db", "Path to datastore file or directory")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().IntVar(&reportMaxBytes, "snippet-bytes", 48, "Maximum snippet bytes shown per match")
}

func runReport(cmd *cobra.Command, args []string) error {
	storePath, err := resolveDatastore(reportDatastore)
	if err != nil {
		return err
	}

	s, err := store.New(store.Config{
		Path: storePath,
	})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer s.Close()

	findings, err := s.GetFindings()
	if err != nil {
		return fmt.Errorf("retrieving findings: %w", err)
	}

	switch reportFormat {
	case "json":
		return outputReportJSON(cmd, findings)
	case "human":
		return outputReportHuman(cmd, s, findings)
	case "sarif":
		return outputReportSARIF(cmd, s, findings)
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// resolveDatastore maps the --datastore flag to a database file. A directory
// holds its database as datastore.db.
func resolveDatastore(path string) (string, error) {
	if path == store.MemoryPath {
		return "", fmt.Errorf("cannot report from in-memory store")
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("datastore not found: %s", path)
	}
	if info.IsDir() {
		if !datastore.IsDatastore(path) {
			return "", fmt.Errorf("not a datastore: %s", path)
		}
		return filepath.Join(path, datastore.DatabaseName), nil
	}
	return path, nil
}

// formatSnippetWithParts renders a snippet as hex, keeping at most maxBytes
// bytes centered on the matched window.
func formatSnippetWithParts(before, matching, after []byte, maxBytes int) snippetParts {
	total := len(before) + len(matching) + len(after)

	if total <= maxBytes {
		return snippetParts{
			before:   types.HexDump(before),
			matching: types.HexDump(matching),
			after:    types.HexDump(after),
		}
	}

	// Match alone exceeds the budget
	if len(matching) >= maxBytes {
		return snippetParts{
			prefix:   "...",
			matching: types.HexDump(matching[:maxBytes]),
			suffix:   "...",
		}
	}

	half := (maxBytes - len(matching)) / 2
	keepBefore := min(half, len(before))
	keepAfter := min(maxBytes-len(matching)-keepBefore, len(after))
	// Give unused room on the right back to the left
	keepBefore = min(maxBytes-len(matching)-keepAfter, len(before))

	parts := snippetParts{
		before:   types.HexDump(before[len(before)-keepBefore:]),
		matching: types.HexDump(matching),
		after:    types.HexDump(after[:keepAfter]),
	}
	if keepBefore < len(before) {
		parts.prefix = "..."
	}
	if keepAfter < len(after) {
		parts.suffix = "..."
	}
	return parts
}

// join concatenates non-empty hex parts with single spaces.
func (p snippetParts) join(highlight func(a ...any) string) string {
	out := p.prefix
	for _, part := range []string{p.before, highlight(p.matching), p.after} {
		if part == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += part
	}
	if p.suffix != "" {
		out += " " + p.suffix
	}
	return out
}

func outputReportJSON(cmd *cobra.Command, findings []*types.Finding) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(findings)
}

func outputReportHuman(cmd *cobra.Command, s store.Store, findings []*types.Finding) error {
	out := cmd.OutOrStdout()

	switch reportColor {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default: // "auto"
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd())) || os.Getenv("NO_COLOR") != ""
	}
	st := newStyles(!color.NoColor)

	if len(findings) == 0 {
		fmt.Fprintf(out, "No findings.\n")
		return nil
	}

	for i, f := range findings {
		fmt.Fprintf(out, "%s (%s %s)\n",
			st.findingHeading.Sprintf("Finding %d/%d", i+1, len(findings)),
			st.heading.Sprint("id"),
			st.id.Sprint(f.ID))

		ruleName := f.RuleID
		if len(f.Matches) > 0 && f.Matches[0].RuleName != "" {
			ruleName = f.Matches[0].RuleName
		}
		fmt.Fprintf(out, "%s %s (%s)\n", st.heading.Sprint("Rule:"), st.ruleName.Sprint(ruleName), f.RuleID)
		fmt.Fprintf(out, "%s %s\n", st.heading.Sprint("Bytes:"), st.match.Sprint(types.HexDump(f.Window)))
		fmt.Fprintf(out, "%s %08x\n", st.heading.Sprint("CRC-32:"), f.Checksum)

		shown := f.Matches
		if len(shown) > 3 {
			fmt.Fprintf(out, "Showing 3/%d matches:\n", len(f.Matches))
			shown = shown[:3]
		}

		for k, match := range shown {
			fmt.Fprintf(out, "\n    %s (%s %s)\n",
				st.heading.Sprintf("Match %d/%d", k+1, len(f.Matches)),
				st.heading.Sprint("id"),
				st.id.Sprint(match.StructuralID))

			prov, err := s.GetProvenance(match.BlobID)
			if err == nil && prov != nil {
				fmt.Fprintf(out, "    %s %s\n",
					st.heading.Sprint("Source:"),
					st.metadata.Sprint(prov.Path()))
			}

			fmt.Fprintf(out, "    %s %s\n",
				st.heading.Sprint("Blob:"),
				st.metadata.Sprint(match.BlobID.Hex()))

			fmt.Fprintf(out, "    %s %s (bytes %d-%d)\n",
				st.heading.Sprint("Position:"),
				hexPosition(match.Position),
				match.Location.Offset.Start, match.Location.Offset.End)

			parts := formatSnippetWithParts(match.Snippet.Before, match.Snippet.Matching, match.Snippet.After, reportMaxBytes)
			if snippet := parts.join(st.match.Sprint); snippet != "" {
				fmt.Fprintf(out, "\n        %s\n", snippet)
			}
		}

		fmt.Fprintf(out, "\n\n")
	}

	return nil
}

// outputReportSARIF emits every stored match. Rule metadata comes from the
// builtin rules; rules not found there are described by ID and name only.
func outputReportSARIF(cmd *cobra.Command, s store.Store, findings []*types.Finding) error {
	builtin, err := rule.NewLoader().LoadBuiltinRules()
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	known := make(map[string]*types.Rule, len(builtin))
	for _, r := range builtin {
		known[r.ID] = r
	}

	var rules []*types.Rule
	var matches []*types.Match
	seen := make(map[string]bool)
	for _, f := range findings {
		for _, m := range f.Matches {
			matches = append(matches, m)
			if seen[m.RuleID] {
				continue
			}
			seen[m.RuleID] = true
			if r, ok := known[m.RuleID]; ok {
				rules = append(rules, r)
			} else {
				rules = append(rules, &types.Rule{ID: m.RuleID, Name: m.RuleName})
			}
		}
	}

	return outputSARIF(cmd, s, rules, matches)
}
