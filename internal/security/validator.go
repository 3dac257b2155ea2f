// Package security validates user input against prompt-injection and
// content-attack patterns, and sanitizes model output.
//
// Note: no filter is perfect. The patterns catch common attempts but
// sophisticated attacks may bypass detection; system prompt hardening and
// output sanitization provide further layers.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"unicode"
)

var (
	// ErrEmptyInput indicates an empty or whitespace-only input.
	ErrEmptyInput = errors.New("input cannot be empty")

	// ErrInputTooLong indicates the input exceeds the configured maximum.
	ErrInputTooLong = errors.New("input exceeds maximum length")

	// ErrPolicyViolation covers every pattern-based rejection. The message is
	// deliberately generic: naming the matched rule would aid evasion.
	ErrPolicyViolation = errors.New("input violates security policies")
)

// injectionPatterns match prompt-injection attempts: instruction overrides,
// role-play coercion and prompt-disclosure probes.
var injectionPatterns = []string{
	`(?i)ignore\s+(previous|above|all|prior)\s+instructions?`,
	`(?i)disregard\s+(previous|above|all|prior)\s+instructions?`,
	`(?i)forget\s+(previous|above|all|prior)\s+instructions?`,
	`(?i)system\s*:\s*`,
	`(?i)override\s+(all\s+)?instructions?`,
	`(?i)new\s+instructions?`,
	`(?i)you\s+are\s+now`,
	`(?i)act\s+as\s+if`,
	`(?i)pretend\s+to\s+be`,
	`(?i)simulate\s+being`,
	`(?i)roleplay\s+as`,
	`(?i)reveal\s+(the\s+)?(prompt|instruction|system)`,
	`(?i)show\s+(me\s+)?(the\s+)?(prompt|instruction|system)`,
	`(?i)what\s+(is|are)\s+your\s+(system\s+)?(instructions|rules|prompts)(\s*\?|$)`,
	`(?i)your\s+(system\s+)?(instructions|rules|prompts)(\s*\?|$)`,
	`(?i)bypass\s+security`,
	`(?i)disable\s+safety`,
}

// suspiciousPatterns match content attacks: script/markup injection and
// SQL-shaped payloads.
var suspiciousPatterns = []string{
	`(?i)<script`,
	`(?i)javascript:`,
	`(?i)onerror\s*=`,
	`(?i)onclick\s*=`,
	`(?i)SELECT\s+.*\s+FROM`,
	`(?i)DROP\s+TABLE`,
	`(?i)INSERT\s+INTO`,
	`(?i)DELETE\s+FROM`,
	`(?i)<\s*iframe`,
	`(?i)eval\s*\(`,
	`(?i)exec\s*\(`,
}

// maxSpecialCharRatio bounds the share of non-alphanumeric, non-space
// characters; beyond it the input is treated as a potential encoding attack.
const maxSpecialCharRatio = 0.3

// Validator checks user input for security threats.
// Safe for concurrent use; the compiled patterns are immutable.
type Validator struct {
	injection  []*regexp.Regexp
	suspicious []*regexp.Regexp
}

// NewValidator compiles the default pattern set.
func NewValidator() *Validator {
	return &Validator{
		injection:  compileAll(injectionPatterns),
		suspicious: compileAll(suspiciousPatterns),
	}
}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// ValidateInput checks one input against the length bound and all patterns.
// maxLength bounds characters, not bytes, so multi-byte text is not
// penalized. Length and emptiness produce descriptive errors; pattern and
// ratio matches all map to the generic ErrPolicyViolation.
func (v *Validator) ValidateInput(input string, maxLength int) error {
	runes := []rune(input)
	if len(runes) > maxLength {
		return fmt.Errorf("%w of %d characters", ErrInputTooLong, maxLength)
	}

	if !hasContent(runes) {
		return ErrEmptyInput
	}

	for _, re := range v.injection {
		if re.MatchString(input) {
			return ErrPolicyViolation
		}
	}
	for _, re := range v.suspicious {
		if re.MatchString(input) {
			return ErrPolicyViolation
		}
	}

	special := 0
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if float64(special)/float64(len(runes)) > maxSpecialCharRatio {
		return ErrPolicyViolation
	}

	return nil
}

func hasContent(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

// Marker blocks stripped from model output to prevent leaking internal
// context that a confused model might echo back.
var sanitizeMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?is)\[SYSTEM\].*?\[/SYSTEM\]`),
	regexp.MustCompile(`(?is)\[INTERNAL\].*?\[/INTERNAL\]`),
}

// SanitizeOutput removes internal marker blocks from model output and trims
// surrounding whitespace.
func (v *Validator) SanitizeOutput(output string) string {
	for _, re := range sanitizeMarkers {
		output = re.ReplaceAllString(output, "")
	}
	return trimSpace(output)
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
