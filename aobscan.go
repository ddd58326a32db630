// Package aobscan finds array-of-bytes (AOB) signatures in binary content.
//
// A signature is text such as "48 8B 05 ?? ?? ?? ?? C3": pairs of hex digits
// for concrete bytes and "??" for bytes that may hold anything. Whitespace
// between pairs is optional. A scan reports the first window of the buffer
// that satisfies every concrete byte, plus the signature's offset.
//
// # Single Signature
//
//	sig, err := aobscan.Compile("7F 45 4C 46 ?? ?? 01", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pos, found, err := aobscan.Scan(buf, sig)
//
// # Rule Sets
//
// A Scanner runs many named rules over the same content and reports every
// occurrence of each:
//
//	scanner, err := aobscan.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	matches, err := scanner.ScanFile("/bin/ls")
//	for _, match := range matches {
//	    fmt.Printf("%s at 0x%X\n", match.RuleName, match.Position)
//	}
package aobscan

import (
	"fmt"
	"os"
	"sync"

	"github.com/praetorian-inc/aobscan/pkg/matcher"
	"github.com/praetorian-inc/aobscan/pkg/rule"
	"github.com/praetorian-inc/aobscan/pkg/signature"
	"github.com/praetorian-inc/aobscan/pkg/types"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/aobscan" without subpackages.
type (
	// Match represents a single signature hit.
	Match = types.Match

	// Rule is a named signature with an offset.
	Rule = types.Rule

	// Finding groups matches of one rule over identical bytes.
	Finding = types.Finding

	// Location describes where a match was found within content.
	Location = types.Location

	// Snippet contains the matched bytes with surrounding context.
	Snippet = types.Snippet

	// Signature is a compiled AOB signature.
	Signature = signature.Signature

	// InvalidLengthError reports signature text with an odd number of
	// non-whitespace characters.
	InvalidLengthError = signature.InvalidLengthError

	// InvalidStringError reports a pair that is neither hex nor a wildcard.
	InvalidStringError = signature.InvalidStringError
)

var (
	// ErrInvalidSignature is wrapped by every compile error.
	ErrInvalidSignature = signature.ErrInvalidSignature

	// ErrNoAnchor is returned when scanning with a signature made only of
	// wildcards.
	ErrNoAnchor = signature.ErrNoAnchor
)

// Compile parses signature text. See signature.Compile.
func Compile(text string, offset int) (*Signature, error) {
	return signature.Compile(text, offset)
}

// MustCompile is like Compile but panics on invalid text.
func MustCompile(text string, offset int) *Signature {
	return signature.MustCompile(text, offset)
}

// Scan returns the first position of sig in buf, offset applied.
func Scan(buf []byte, sig *Signature) (pos int, found bool, err error) {
	return signature.Scan(buf, sig)
}

// Format returns signature text in canonical form.
func Format(text string) (string, error) {
	return signature.Format(text)
}

// Find compiles text and scans buf once.
//
// Example:
//
//	pos, found, err := aobscan.Find(buf, "E8 ?? ?? ?? ??", 1)
func Find(buf []byte, text string, offset int) (pos int, found bool, err error) {
	sig, err := signature.Compile(text, offset)
	if err != nil {
		return 0, false, err
	}
	return signature.Scan(buf, sig)
}

// Scanner runs a rule set over content.
type Scanner struct {
	matcher *matcher.AnchorMatcher
	config  *scannerConfig
	mu      sync.RWMutex
}

// scannerConfig holds scanner configuration.
type scannerConfig struct {
	rules        []*types.Rule
	contextBytes int
	maxMatches   int
	dedupe       bool
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithRules uses custom rules instead of builtin rules.
func WithRules(rules []*Rule) Option {
	return func(c *scannerConfig) {
		c.rules = rules
	}
}

// WithContextBytes sets how many bytes before and after each match are kept
// in its snippet. Default is 16.
func WithContextBytes(n int) Option {
	return func(c *scannerConfig) {
		c.contextBytes = n
	}
}

// WithMaxMatches caps the matches reported per rule for one buffer.
// Zero, the default, means no limit.
func WithMaxMatches(n int) Option {
	return func(c *scannerConfig) {
		c.maxMatches = n
	}
}

// WithDedupe drops matches whose rule and matched bytes were already
// reported at an earlier position of the same buffer.
func WithDedupe() Option {
	return func(c *scannerConfig) {
		c.dedupe = true
	}
}

// NewScanner creates a new Scanner with the given options.
//
// By default, the scanner:
//   - Uses all builtin rules
//   - Keeps 16 bytes of context around matches
//   - Reports every match
//
// Custom rules passed with WithRules are validated first, including their
// examples.
func NewScanner(opts ...Option) (*Scanner, error) {
	config := &scannerConfig{
		contextBytes: 16,
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.rules == nil {
		rules, err := LoadBuiltinRules()
		if err != nil {
			return nil, fmt.Errorf("loading builtin rules: %w", err)
		}
		config.rules = rules
	} else if err := rule.ValidateRules(config.rules); err != nil {
		return nil, fmt.Errorf("validating rules: %w", err)
	}

	m, err := matcher.NewAnchor(matcher.Config{
		Rules:             config.rules,
		ContextBytes:      config.contextBytes,
		MaxMatchesPerRule: config.maxMatches,
		Dedupe:            config.dedupe,
	})
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}

	return &Scanner{
		matcher: m,
		config:  config,
	}, nil
}

// ScanBytes scans content against every rule and returns matches sorted by
// position.
func (s *Scanner) ScanBytes(content []byte) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.matcher == nil {
		return nil, fmt.Errorf("scanner is closed")
	}
	return s.matcher.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// ScanFile reads and scans a file.
func (s *Scanner) ScanFile(path string) ([]*Match, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return s.ScanBytes(content)
}

// Close releases scanner resources.
func (s *Scanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.matcher != nil {
		s.matcher.Close()
		s.matcher = nil
	}
	return nil
}

// RuleCount returns the number of rules loaded.
func (s *Scanner) RuleCount() int {
	return len(s.config.rules)
}

// Rules returns a copy of the loaded rules.
func (s *Scanner) Rules() []*Rule {
	rules := make([]*Rule, len(s.config.rules))
	copy(rules, s.config.rules)
	return rules
}

// LoadRulesFromFile loads rules from a YAML file or a directory of YAML
// files. Use this with WithRules to create a scanner with custom rules.
func LoadRulesFromFile(path string) ([]*Rule, error) {
	return rule.NewLoader().LoadRulesPath(path)
}

// LoadBuiltinRules returns all builtin rules.
// This can be used to inspect available rules or create a subset.
//
// Example:
//
//	rules, err := aobscan.LoadBuiltinRules()
//	if err != nil {
//	    return err
//	}
//
//	var x64 []*aobscan.Rule
//	for _, r := range rules {
//	    if strings.HasPrefix(r.ID, "aob.x64.") {
//	        x64 = append(x64, r)
//	    }
//	}
//	scanner, err := aobscan.NewScanner(aobscan.WithRules(x64))
func LoadBuiltinRules() ([]*Rule, error) {
	return rule.NewLoader().LoadBuiltinRules()
}
