package scanner

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/praetorian-inc/aobscan/pkg/matcher"
	"github.com/praetorian-inc/aobscan/pkg/rule"
	"github.com/praetorian-inc/aobscan/pkg/signature"
	"github.com/praetorian-inc/aobscan/pkg/store"
	"github.com/praetorian-inc/aobscan/pkg/types"
)

// DefaultContextBytes is the number of bytes kept on each side of a match.
const DefaultContextBytes = 16

var (
	// cachedBuiltinRules holds builtin rules loaded once per process
	cachedBuiltinRules []*types.Rule
	cachedRulesErr     error
	cacheOnce          sync.Once
)

// loadBuiltinRulesCached loads builtin rules once and caches them
func loadBuiltinRulesCached() ([]*types.Rule, error) {
	cacheOnce.Do(func() {
		loader := rule.NewLoader()
		cachedBuiltinRules, cachedRulesErr = loader.LoadBuiltinRules()
	})
	return cachedBuiltinRules, cachedRulesErr
}

// Core wraps the matcher and store for scanning operations.
// Methods may be called from multiple goroutines.
type Core struct {
	matcher matcher.Matcher
	rules   []*types.Rule
	store   *store.MemoryStore
	logger  DebugLogger
}

// NewCore creates a new Core scanner with the given rules
// rulesJSON can be:
// - "" or "builtin" to load builtin rules (cached)
// - JSON string with custom rules array
func NewCore(rulesJSON string, logger DebugLogger) (*Core, error) {
	if logger == nil {
		logger = NoopLogger{}
	}

	logger.Log("NewCore starting...")

	// Parse or load rules
	var rules []*types.Rule
	if rulesJSON == "" || rulesJSON == "builtin" {
		logger.Log("Loading builtin rules (cached)...")
		var err error
		rules, err = loadBuiltinRulesCached()
		if err != nil {
			logger.Log("loadBuiltinRulesCached failed: %v", err)
			return nil, err
		}
		logger.Log("Loaded %d builtin rules", len(rules))
	} else {
		logger.Log("Parsing custom rules JSON...")
		if err := json.Unmarshal([]byte(rulesJSON), &rules); err != nil {
			logger.Log("JSON unmarshal failed: %v", err)
			return nil, fmt.Errorf("parsing rules: %w", err)
		}
		if err := rule.ValidateRules(rules); err != nil {
			logger.Log("rule validation failed: %v", err)
			return nil, err
		}
		for _, r := range rules {
			r.StructuralID = r.ComputeStructuralID()
		}
		logger.Log("Parsed %d custom rules", len(rules))
	}

	// Create matcher
	logger.Log("Creating matcher with %d rules...", len(rules))
	m, err := matcher.New(matcher.Config{
		Rules:        rules,
		ContextBytes: DefaultContextBytes,
	})
	if err != nil {
		logger.Log("matcher.New failed: %v", err)
		return nil, err
	}
	logger.Log("Matcher created successfully")

	s := store.NewMemory()
	for _, r := range rules {
		if err := s.AddRule(r); err != nil {
			m.Close()
			return nil, err
		}
	}

	logger.Log("NewCore complete")
	return &Core{
		matcher: m,
		rules:   rules,
		store:   s,
		logger:  logger,
	}, nil
}

// Rules returns the rules the core scans with.
func (c *Core) Rules() []*types.Rule {
	return c.rules
}

// Scan scans a single content buffer
func (c *Core) Scan(content []byte, source string) (*ScanResult, error) {
	return c.scan(ContentItem{Source: source, Content: content})
}

func (c *Core) scan(item ContentItem) (*ScanResult, error) {
	blobID := types.ComputeBlobID(item.Content)
	matches, err := c.matcher.MatchWithBlobID(item.Content, blobID)
	if err != nil {
		return nil, err
	}
	c.logger.Log("scanned %s: %d bytes, %d matches", item.Source, len(item.Content), len(matches))

	if err := c.record(item, blobID, matches); err != nil {
		return nil, err
	}

	return &ScanResult{
		Source:  item.Source,
		BlobID:  blobID,
		Matches: matches,
	}, nil
}

// record stores the blob, its provenance, matches and findings.
func (c *Core) record(item ContentItem, blobID types.BlobID, matches []*types.Match) error {
	if err := c.store.AddBlob(blobID, int64(len(item.Content))); err != nil {
		return err
	}

	payload := map[string]any{"source": item.Source}
	for k, v := range item.Metadata {
		payload[k] = v
	}
	if err := c.store.AddProvenance(blobID, types.ExtendedProvenance{Payload: payload}); err != nil {
		return err
	}

	for _, match := range matches {
		if err := c.store.AddMatch(match); err != nil {
			return err
		}
		if err := c.store.AddFinding(types.NewFinding(match)); err != nil {
			return err
		}
	}
	return nil
}

// ScanBatch scans multiple content items. Items that fail to scan are
// skipped. Total counts each match location once, so an item repeated in
// the batch does not inflate it.
func (c *Core) ScanBatch(items []ContentItem) (*BatchScanResult, error) {
	results := []ScanResult{}
	dedup := matcher.NewDeduplicator()
	total := 0

	for _, item := range items {
		result, err := c.scan(item)
		if err != nil {
			c.logger.Log("skipping %s: %v", item.Source, err)
			continue
		}

		for _, match := range result.Matches {
			if !dedup.Seen(match) {
				total++
			}
		}
		results = append(results, *result)
	}

	return &BatchScanResult{
		Results: results,
		Total:   total,
	}, nil
}

// Find searches content for a single ad-hoc signature and reports the first
// match. It returns signature.ErrNoAnchor for a signature made only of
// wildcards, and a signature.ErrInvalidSignature error for malformed text.
func (c *Core) Find(content []byte, sig string, offset int) (*FindResult, error) {
	return Find(content, sig, offset)
}

// Find is Core.Find without a rule set.
func Find(content []byte, sig string, offset int) (*FindResult, error) {
	compiled, err := signature.Compile(sig, offset)
	if err != nil {
		return nil, err
	}

	pos, found, err := signature.Scan(content, compiled)
	if err != nil {
		return nil, err
	}

	return &FindResult{
		Signature: compiled.String(),
		Offset:    offset,
		Found:     found,
		Position:  pos,
	}, nil
}

// Findings returns the findings recorded by every scan so far.
func (c *Core) Findings() ([]*types.Finding, error) {
	return c.store.GetFindings()
}

// Provenance returns every source a blob was scanned under.
func (c *Core) Provenance(blobID types.BlobID) ([]types.Provenance, error) {
	return c.store.GetAllProvenance(blobID)
}

// Close releases scanner resources
func (c *Core) Close() {
	if c.matcher != nil {
		c.matcher.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// GetBuiltinRules returns the built-in rules (cached)
func GetBuiltinRules() ([]*types.Rule, error) {
	return loadBuiltinRulesCached()
}
