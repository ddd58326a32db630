package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/praetorian-inc/aobscan/pkg/datastore"
	"github.com/praetorian-inc/aobscan/pkg/enum"
	"github.com/praetorian-inc/aobscan/pkg/matcher"
	"github.com/praetorian-inc/aobscan/pkg/rule"
	"github.com/praetorian-inc/aobscan/pkg/sarif"
	"github.com/praetorian-inc/aobscan/pkg/store"
	"github.com/praetorian-inc/aobscan/pkg/types"
	"github.com/spf13/cobra"
)

var (
	scanRulesPath     string
	scanRuleset       string
	scanRulesInclude  string
	scanRulesExclude  string
	scanOutputPath    string
	scanDatastore     string
	scanStoreBlobs    bool
	scanOutputFormat  string
	scanGit           bool
	scanGitHistory    bool
	scanExtract       string
	scanMaxFileSize   int64
	scanIncludeHidden bool
	scanContextBytes  int
	scanMaxMatches    int
	scanIncremental   bool
	scanWorkers       int
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a target for byte signatures",
	Long:  "Scan a file, directory, or git repository for byte signatures using detection rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRulesPath, "rules", "", "Path to custom rules file or directory")
	scanCmd.Flags().StringVar(&scanRuleset, "ruleset", "", "Builtin ruleset ID or path to a ruleset file")
	scanCmd.Flags().StringVar(&scanRulesInclude, "rules-include", "", "Include rules matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanRulesExclude, "rules-exclude", "", "Exclude rules matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanOutputPath, "output", "aobscan.db", "Output database path (\":memory:\" to keep results in memory)")
	scanCmd.Flags().StringVar(&scanDatastore, "datastore", "", "Datastore directory to write instead of --output")
	scanCmd.Flags().BoolVar(&scanStoreBlobs, "store-blobs", false, "Keep the content of matching blobs in the datastore")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: json, sarif, human")
	scanCmd.Flags().BoolVar(&scanGit, "git", false, "Treat target as git repository")
	scanCmd.Flags().BoolVar(&scanGitHistory, "git-history", false, "Scan every commit reachable from HEAD, not just the tip")
	scanCmd.Flags().StringVar(&scanExtract, "extract", "", "Archive types to expand: zip,jar,war,apk,7z or all")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes)")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	scanCmd.Flags().IntVar(&scanContextBytes, "context-bytes", 16, "Bytes of context before/after matches (0 to disable)")
	scanCmd.Flags().IntVar(&scanMaxMatches, "max-matches", 0, "Maximum matches per rule per blob (0 for unlimited)")
	scanCmd.Flags().BoolVar(&scanIncremental, "incremental", false, "Skip already-scanned blobs")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Concurrent file readers (0 for the number of CPUs)")
}

// scanStats counts what a scan produced. The enumerator calls back from
// several goroutines, so every field is guarded by mu.
type scanStats struct {
	mu       sync.Mutex
	blobs    int
	skipped  int
	matches  int
	findings int
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]
	logger := newLogger(cmd)

	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target does not exist: %s", target)
	}

	if scanGitHistory && !scanGit {
		warnf(cmd, "--git-history has no effect without --git")
	}

	rules, err := loadRules(scanRulesPath, scanRuleset, scanRulesInclude, scanRulesExclude)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	if len(rules) == 0 {
		return fmt.Errorf("loading rules: no rules selected")
	}
	logger.Log("loaded %d rules", len(rules))

	m, err := matcher.NewAnchor(matcher.Config{
		Rules:             rules,
		ContextBytes:      scanContextBytes,
		MaxMatchesPerRule: scanMaxMatches,
	})
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}
	defer m.Close()

	s, blobs, location, err := openScanStore()
	if err != nil {
		return err
	}
	defer s.Close()

	for _, r := range m.Rules() {
		if err := s.AddRule(r); err != nil {
			return fmt.Errorf("storing rule: %w", err)
		}
	}

	enumerator := createEnumerator(target, scanGit)

	var stats scanStats
	ctx := context.Background()

	err = enumerator.Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		if scanIncremental {
			exists, err := s.BlobExists(blobID)
			if err != nil {
				return fmt.Errorf("checking blob: %w", err)
			}
			if exists {
				stats.mu.Lock()
				stats.skipped++
				stats.mu.Unlock()
				return nil
			}
		}

		result, err := m.MatchDetailed(content, blobID)
		if err != nil {
			return fmt.Errorf("matching content: %w", err)
		}
		if result.Summary.TruncatedRules > 0 {
			logger.Log("%s: %d rules hit the match limit", prov.Path(), result.Summary.TruncatedRules)
		}

		stats.mu.Lock()
		defer stats.mu.Unlock()
		stats.blobs++

		if err := s.AddBlob(blobID, int64(len(content))); err != nil {
			return fmt.Errorf("storing blob: %w", err)
		}
		if err := s.AddProvenance(blobID, prov); err != nil {
			return fmt.Errorf("storing provenance: %w", err)
		}

		if blobs != nil && len(result.Matches) > 0 {
			if _, err := blobs.Store(content); err != nil {
				return fmt.Errorf("storing blob content: %w", err)
			}
		}

		for _, match := range result.Matches {
			stats.matches++
			if err := s.AddMatch(match); err != nil {
				return fmt.Errorf("storing match: %w", err)
			}

			// A finding is keyed by rule and matched bytes, so the same
			// hit in several blobs is reported once.
			exists, err := s.FindingExists(match.FindingID)
			if err != nil {
				return fmt.Errorf("checking finding: %w", err)
			}
			if !exists {
				stats.findings++
				if err := s.AddFinding(types.NewFinding(match)); err != nil {
					return fmt.Errorf("storing finding: %w", err)
				}
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	// Keep stdout pure JSON for machine formats.
	summary := cmd.OutOrStdout()
	if scanOutputFormat == "json" || scanOutputFormat == "sarif" {
		summary = cmd.ErrOrStderr()
	}
	if !quiet {
		if scanIncremental {
			fmt.Fprintf(summary, "Scan complete: %d blobs, %d matches, %d findings (%d blobs skipped)\n", stats.blobs, stats.matches, stats.findings, stats.skipped)
		} else {
			fmt.Fprintf(summary, "Scan complete: %d blobs, %d matches, %d findings\n", stats.blobs, stats.matches, stats.findings)
		}
		if location != store.MemoryPath {
			fmt.Fprintf(summary, "Results stored in: %s\n", location)
		}
	}

	switch scanOutputFormat {
	case "json":
		matches, err := s.GetAllMatches()
		if err != nil {
			return fmt.Errorf("retrieving matches: %w", err)
		}
		return outputMatches(cmd, matches)
	case "sarif":
		matches, err := s.GetAllMatches()
		if err != nil {
			return fmt.Errorf("retrieving matches: %w", err)
		}
		return outputSARIF(cmd, s, rules, matches)
	case "human":
		findings, err := s.GetFindings()
		if err != nil {
			return fmt.Errorf("retrieving findings: %w", err)
		}
		return outputFindings(cmd, findings)
	default:
		return fmt.Errorf("unknown output format: %s", scanOutputFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// openScanStore opens the datastore directory when --datastore is set and
// the --output database otherwise. The blob store is nil unless blobs are
// kept.
func openScanStore() (store.Store, *datastore.BlobStore, string, error) {
	if scanDatastore != "" {
		ds, err := datastore.Open(scanDatastore, datastore.Options{StoreBlobs: scanStoreBlobs})
		if err != nil {
			return nil, nil, "", fmt.Errorf("opening datastore: %w", err)
		}
		var blobs *datastore.BlobStore
		if scanStoreBlobs {
			blobs = ds.BlobStore
		}
		return ds.Store, blobs, scanDatastore, nil
	}

	if scanStoreBlobs {
		return nil, nil, "", fmt.Errorf("--store-blobs requires --datastore")
	}
	s, err := store.New(store.Config{
		Path: scanOutputPath,
	})
	if err != nil {
		return nil, nil, "", fmt.Errorf("creating store: %w", err)
	}
	return s, nil, scanOutputPath, nil
}

// loadRules resolves the rule set for a scan: custom rules from path or the
// builtin rules, narrowed to a ruleset and then to the include and exclude
// patterns. Custom rules are validated before use.
func loadRules(path, ruleset, include, exclude string) ([]*types.Rule, error) {
	loader := rule.NewLoader()

	var rules []*types.Rule
	var err error

	if path != "" {
		rules, err = loader.LoadRulesPath(path)
		if err != nil {
			return nil, err
		}
		if err := rule.ValidateRules(rules); err != nil {
			return nil, err
		}
	} else {
		rules, err = loader.LoadBuiltinRules()
		if err != nil {
			return nil, err
		}
	}

	if ruleset != "" {
		rs, err := resolveRuleset(loader, ruleset)
		if err != nil {
			return nil, err
		}
		rules, err = rule.SelectRuleset(rules, rs)
		if err != nil {
			return nil, err
		}
	}

	if include != "" || exclude != "" {
		config := rule.FilterConfig{
			Include: rule.ParsePatterns(include),
			Exclude: rule.ParsePatterns(exclude),
		}
		rules, err = rule.Filter(rules, config)
		if err != nil {
			return nil, fmt.Errorf("filtering rules: %w", err)
		}
	}

	return rules, nil
}

// resolveRuleset treats name as a ruleset file when it exists on disk and as
// a builtin ruleset ID otherwise.
func resolveRuleset(loader *rule.Loader, name string) (*types.Ruleset, error) {
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return loader.LoadRulesetFile(name)
	}

	rulesets, err := loader.LoadBuiltinRulesets()
	if err != nil {
		return nil, err
	}
	for _, rs := range rulesets {
		if rs.ID == name {
			return rs, nil
		}
	}
	return nil, fmt.Errorf("unknown ruleset: %s", name)
}

func createEnumerator(target string, useGit bool) enum.Enumerator {
	config := enum.Config{
		Root:            target,
		IncludeHidden:   scanIncludeHidden,
		MaxFileSize:     scanMaxFileSize,
		FollowSymlinks:  false,
		ExtractArchives: scanExtract,
		Workers:         scanWorkers,
	}

	if useGit {
		e := enum.NewGitEnumerator(config)
		e.History = scanGitHistory
		return e
	}

	return enum.NewFilesystemEnumerator(config)
}

func outputMatches(cmd *cobra.Command, matches []*types.Match) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(matches)
}

func outputFindings(cmd *cobra.Command, findings []*types.Finding) error {
	out := cmd.OutOrStdout()
	if len(findings) == 0 {
		fmt.Fprintf(out, "\nNo findings.\n")
		return nil
	}

	fmt.Fprintf(out, "\nFindings:\n")
	for i, f := range findings {
		fmt.Fprintf(out, "%d. Rule: %s (%d matches)\n", i+1, f.RuleID, len(f.Matches))
		if len(f.Matches) > 0 {
			fmt.Fprintf(out, "   First at: %s\n", hexPosition(f.Matches[0].Position))
		}
		fmt.Fprintf(out, "   Bytes: %s\n", types.HexDump(f.Window))
	}
	return nil
}

// outputSARIF outputs matches in SARIF 2.1.0 format
func outputSARIF(cmd *cobra.Command, s store.Store, rules []*types.Rule, matches []*types.Match) error {
	report := sarif.NewReport()

	for _, r := range rules {
		report.AddRule(r)
	}

	// Cache provenance by blob ID to avoid repeated queries
	provenanceCache := make(map[types.BlobID]string)

	for _, match := range matches {
		filePath, ok := provenanceCache[match.BlobID]
		if !ok {
			prov, err := s.GetProvenance(match.BlobID)
			if err != nil {
				warnf(cmd, "no provenance for blob %s: %v", match.BlobID.Hex(), err)
				filePath = match.BlobID.Hex()
			} else {
				filePath = prov.Path()
			}
			provenanceCache[match.BlobID] = filePath
		}

		report.AddResult(match, filePath)
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}

	if _, err := cmd.OutOrStdout().Write(jsonBytes); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}

	return nil
}
