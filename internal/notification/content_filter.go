package notification

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// RiskLevel is the aggregated severity bucket assigned to content after
// running all safety detectors.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the string representation of RiskLevel.
func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ContentValidationResult is the outcome of content safety validation.
// SanitizedTitle and SanitizedBody are only populated by
// ValidateNotification when sanitization changed the input.
type ContentValidationResult struct {
	IsValid        bool
	SanitizedText  string
	SanitizedTitle string
	SanitizedBody  string
	Violations     []string
	RiskLevel      RiskLevel
}

// FilterConfig configures the content safety detectors. Each detector is
// independently toggled.
type FilterConfig struct {
	MaxLength       int
	MaxURLs         int
	CheckLength     bool
	CheckProfanity  bool
	CheckSpam       bool
	CheckPhishing   bool
	CheckLinks      bool
	SanitizeContent bool
	// BlockedWords extends the built-in profanity block-list
	BlockedWords []string
	// BlockedHosts extends the built-in URL host denylist
	BlockedHosts []string
}

// DefaultFilterConfig returns the configuration used when the caller does
// not supply one.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MaxLength:       1000,
		MaxURLs:         3,
		CheckLength:     true,
		CheckProfanity:  true,
		CheckSpam:       true,
		CheckPhishing:   true,
		CheckLinks:      true,
		SanitizeContent: true,
	}
}

// FilterStats are running counters persisted until explicit reset.
type FilterStats struct {
	Validations int64
	Violations  int64
	Blocked     int64
	Sanitized   int64
}

// Built-in word and host lists. Config lists extend, never replace, these.
var (
	baseProfanityWords = []string{
		"damn", "hell", "crap", "bastard", "bitch", "shit", "fuck", "asshole",
	}

	baseBlockedHosts = []string{
		"malware.example.com", "phishing.example.net",
	}

	urlShortenerHosts = map[string]bool{
		"bit.ly": true, "tinyurl.com": true, "t.co": true, "goo.gl": true,
		"is.gd": true, "ow.ly": true, "buff.ly": true, "rb.gy": true,
	}

	suspiciousURLTerms = []string{"phish", "malware", "virus"}
)

var (
	urlPattern  = regexp.MustCompile(`https?://[^\s<>"']+`)
	wordPattern = regexp.MustCompile(`[a-zA-Z']+`)

	spamPatterns = []*regexp.Regexp{
		// urgency phrasing
		regexp.MustCompile(`(?i)\b(buy now|act now|order now|limited time|don't wait|hurry up|while supplies last)\b`),
		// currency amounts
		regexp.MustCompile(`(?i)([$€£]\s?\d[\d,.]*|\b\d[\d,.]*\s?(dollars|usd|eur)\b)`),
		// winner phrasing
		regexp.MustCompile(`(?i)\b(you (have )?won|winner|congratulations.{0,30}(prize|reward)|claim your (prize|reward|gift))\b`),
	}

	// credential/account terms paired with urgency/expiry terms
	phishingPattern = regexp.MustCompile(
		`(?i)\b(account|password|credentials?|login|log in|verify|bank|billing)\b[\s\S]{0,80}\b(urgent|immediately|expires?|expiring|expired|suspend\w*|locked|within \d+ (hours?|minutes?|days?))\b`)
)

// maxWordRepeats is the per-word repetition budget; exceeding it flags spam.
const maxWordRepeats = 5

// ContentSafetyFilter validates and sanitizes notification text before it
// reaches any provider. Safe for concurrent use.
type ContentSafetyFilter struct {
	cfg         FilterConfig
	profanityRe *regexp.Regexp
	log         *slog.Logger

	mu    sync.Mutex
	stats FilterStats
}

// NewContentSafetyFilter creates a filter with the given configuration.
func NewContentSafetyFilter(cfg FilterConfig, log *slog.Logger) *ContentSafetyFilter {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultFilterConfig().MaxLength
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = DefaultFilterConfig().MaxURLs
	}

	words := make([]string, 0, len(baseProfanityWords)+len(cfg.BlockedWords))
	for _, w := range append(append([]string{}, baseProfanityWords...), cfg.BlockedWords...) {
		w = strings.TrimSpace(strings.ToLower(w))
		if w != "" {
			words = append(words, regexp.QuoteMeta(w))
		}
	}
	// whole-word, case-insensitive profanity matcher
	profanityRe := regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)

	return &ContentSafetyFilter{
		cfg:         cfg,
		profanityRe: profanityRe,
		log:         log,
	}
}

// Validate runs all enabled detectors against text and, when sanitization
// is enabled, produces a cleaned-up version. Content is rejected iff any
// violation exists and the aggregated risk is High or above; lower risk is
// recorded but non-blocking.
func (f *ContentSafetyFilter) Validate(text string) ContentValidationResult {
	violations, risk := f.detect(text)

	result := ContentValidationResult{
		IsValid:    !(len(violations) > 0 && risk >= RiskHigh),
		Violations: violations,
		RiskLevel:  risk,
	}

	sanitizedCount := int64(0)
	if f.cfg.SanitizeContent {
		if sanitized := f.sanitize(text); sanitized != text {
			result.SanitizedText = sanitized
			sanitizedCount = 1
		}
	}

	f.mu.Lock()
	f.stats.Validations++
	f.stats.Violations += int64(len(violations))
	if !result.IsValid {
		f.stats.Blocked++
	}
	f.stats.Sanitized += sanitizedCount
	f.mu.Unlock()

	return result
}

// ValidateNotification validates the title, body, and each data value of a
// notification. Violations are prefixed by field name and the risk level is
// the maximum across all fields.
func (f *ContentSafetyFilter) ValidateNotification(title, body string, data map[string]string) ContentValidationResult {
	result := ContentValidationResult{RiskLevel: RiskNone}

	collect := func(field, text string) string {
		violations, risk := f.detect(text)
		for _, v := range violations {
			result.Violations = append(result.Violations, field+": "+v)
		}
		if risk > result.RiskLevel {
			result.RiskLevel = risk
		}
		if f.cfg.SanitizeContent {
			if sanitized := f.sanitize(text); sanitized != text {
				return sanitized
			}
		}
		return ""
	}

	result.SanitizedTitle = collect("title", title)
	result.SanitizedBody = collect("body", body)
	for key, value := range data {
		collect(fmt.Sprintf("data[%s]", key), value)
	}

	result.IsValid = !(len(result.Violations) > 0 && result.RiskLevel >= RiskHigh)
	sanitizedCount := int64(0)
	if result.SanitizedTitle != "" || result.SanitizedBody != "" {
		sanitizedCount = 1
	}

	f.mu.Lock()
	f.stats.Validations++
	f.stats.Violations += int64(len(result.Violations))
	if !result.IsValid {
		f.stats.Blocked++
	}
	f.stats.Sanitized += sanitizedCount
	f.mu.Unlock()

	return result
}

// detect runs the enabled detectors and returns the violations and the
// maximum risk level observed.
func (f *ContentSafetyFilter) detect(text string) (violations []string, risk RiskLevel) {
	raise := func(v string, r RiskLevel) {
		violations = append(violations, v)
		if r > risk {
			risk = r
		}
	}

	if f.cfg.CheckLength && len(text) > f.cfg.MaxLength {
		raise(fmt.Sprintf("exceeds maximum length of %d characters", f.cfg.MaxLength), RiskLow)
	}

	if f.cfg.CheckProfanity && f.profanityRe.MatchString(text) {
		raise("contains blocked words", RiskMedium)
	}

	if f.cfg.CheckSpam {
		for _, re := range spamPatterns {
			if re.MatchString(text) {
				raise("matches spam pattern", RiskHigh)
				break
			}
		}
		if word, count := mostRepeatedWord(text); count > maxWordRepeats {
			raise(fmt.Sprintf("word %q repeated %d times", word, count), RiskHigh)
		}
	}

	if f.cfg.CheckPhishing && phishingPattern.MatchString(text) {
		raise("matches phishing pattern", RiskCritical)
	}

	if f.cfg.CheckLinks {
		urls := urlPattern.FindAllString(text, -1)
		if len(urls) > f.cfg.MaxURLs {
			raise(fmt.Sprintf("contains %d URLs, maximum is %d", len(urls), f.cfg.MaxURLs), RiskHigh)
		}
		for _, raw := range urls {
			if f.isSuspiciousURL(raw) {
				raise("contains suspicious URL", RiskHigh)
			}
		}
	}

	return violations, risk
}

// isSuspiciousURL checks one URL against the host denylist, known
// shorteners, and suspicious term substrings. An unparseable URL is itself
// treated as suspicious.
func (f *ContentSafetyFilter) isSuspiciousURL(raw string) bool {
	lowered := strings.ToLower(raw)
	for _, term := range suspiciousURLTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return true
	}
	host := strings.ToLower(parsed.Hostname())

	if urlShortenerHosts[host] {
		return true
	}
	for _, blocked := range baseBlockedHosts {
		if host == blocked {
			return true
		}
	}
	for _, blocked := range f.cfg.BlockedHosts {
		if host == strings.ToLower(blocked) {
			return true
		}
	}
	return false
}

// sanitize masks profanity with equal-length asterisks, replaces suspicious
// URLs with a placeholder, collapses whitespace, and hard-truncates to the
// configured maximum length with an ellipsis marker.
func (f *ContentSafetyFilter) sanitize(text string) string {
	out := f.profanityRe.ReplaceAllStringFunc(text, func(match string) string {
		return strings.Repeat("*", len(match))
	})

	out = urlPattern.ReplaceAllStringFunc(out, func(raw string) string {
		if f.isSuspiciousURL(raw) {
			return "[link removed]"
		}
		return raw
	})

	out = strings.Join(strings.Fields(out), " ")

	return truncateWithEllipsis(out, f.cfg.MaxLength)
}

// mostRepeatedWord returns the most frequent word in text and its count.
func mostRepeatedWord(text string) (string, int) {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		counts[w]++
		if counts[w] > bestCount {
			best, bestCount = w, counts[w]
		}
	}
	return best, bestCount
}

// GetStats returns a snapshot of the running counters.
func (f *ContentSafetyFilter) GetStats() FilterStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// ResetStats zeroes the running counters.
func (f *ContentSafetyFilter) ResetStats() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = FilterStats{}
}
