package notification

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilter() *ContentSafetyFilter {
	return NewContentSafetyFilter(DefaultFilterConfig(), nil)
}

func TestFilterAcceptsCleanContent(t *testing.T) {
	f := newTestFilter()

	result := f.Validate("alice commented on your post")
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Violations)
	assert.Equal(t, RiskNone, result.RiskLevel)
	assert.Empty(t, result.SanitizedText, "clean content needs no sanitization")
}

func TestFilterBlocksSpamContent(t *testing.T) {
	f := newTestFilter()

	result := f.Validate("Buy now! Limited time! $100 off!")
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.Violations)
	assert.GreaterOrEqual(t, result.RiskLevel, RiskHigh)
}

func TestFilterFlagsExcessiveWordRepetition(t *testing.T) {
	f := newTestFilter()

	result := f.Validate(strings.Repeat("free ", 6) + "stuff")
	assert.False(t, result.IsValid)
	require.NotEmpty(t, result.Violations)
	assert.Contains(t, result.Violations[0], "repeated")
}

func TestFilterAllowsRepetitionWithinBudget(t *testing.T) {
	f := newTestFilter()

	result := f.Validate(strings.Repeat("free ", 5) + "stuff")
	assert.True(t, result.IsValid)
}

func TestFilterProfanityIsMediumRiskAndMasked(t *testing.T) {
	f := newTestFilter()

	result := f.Validate("this is damn annoying")
	// Medium risk alone does not block
	assert.True(t, result.IsValid)
	assert.NotEmpty(t, result.Violations)
	assert.Equal(t, RiskMedium, result.RiskLevel)
	assert.Equal(t, "this is **** annoying", result.SanitizedText)
}

func TestFilterProfanityMatchesWholeWordsOnly(t *testing.T) {
	f := newTestFilter()

	result := f.Validate("the shellfish special")
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Violations, "substrings inside larger words must not match")
}

func TestFilterBlocksPhishingAsCritical(t *testing.T) {
	f := newTestFilter()

	result := f.Validate("Your account will be suspended, verify your password immediately")
	assert.False(t, result.IsValid)
	assert.Equal(t, RiskCritical, result.RiskLevel)
}

func TestFilterLengthViolationIsLowRiskNonBlocking(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.MaxLength = 20
	f := NewContentSafetyFilter(cfg, nil)

	result := f.Validate(strings.Repeat("a", 21))
	assert.True(t, result.IsValid, "length alone is low risk and never blocks")
	assert.NotEmpty(t, result.Violations)
	assert.Equal(t, RiskLow, result.RiskLevel)
	assert.LessOrEqual(t, len(result.SanitizedText), 20)
	assert.True(t, strings.HasSuffix(result.SanitizedText, "..."))
}

func TestFilterSanitizeTruncationKeepsValidUTF8(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.MaxLength = 20
	f := NewContentSafetyFilter(cfg, nil)

	result := f.Validate(strings.Repeat("å", 15))
	assert.True(t, result.IsValid)
	assert.True(t, utf8.ValidString(result.SanitizedText), "truncation must not split a rune")
	assert.LessOrEqual(t, len(result.SanitizedText), 20)
	assert.True(t, strings.HasSuffix(result.SanitizedText, "..."))
}

func TestFilterURLChecks(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantValid bool
	}{
		{"single plain url", "see https://example.com/post/1", true},
		{"too many urls", "https://a.com https://b.com https://c.com https://d.com", false},
		{"shortener url", "click https://bit.ly/x", false},
		{"suspicious term", "get https://safe-malware-scanner.example.com/dl", false},
		{"blocked host", "visit https://malware.example.com/payload", false},
	}

	f := newTestFilter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.Validate(tt.text)
			assert.Equal(t, tt.wantValid, result.IsValid)
		})
	}
}

func TestFilterSanitizeRemovesSuspiciousURLs(t *testing.T) {
	f := newTestFilter()

	result := f.Validate("click https://bit.ly/x now")
	assert.Equal(t, "click [link removed] now", result.SanitizedText)
}

func TestFilterSanitizeCollapsesWhitespace(t *testing.T) {
	f := newTestFilter()

	result := f.Validate("hello    world\n\ttabs")
	assert.Equal(t, "hello world tabs", result.SanitizedText)
}

func TestFilterCustomBlockedWordsAndHosts(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.BlockedWords = []string{"yapplrsux"}
	cfg.BlockedHosts = []string{"evil.example.org"}
	f := NewContentSafetyFilter(cfg, nil)

	result := f.Validate("yapplrsux so much")
	assert.NotEmpty(t, result.Violations)
	assert.Equal(t, "********* so much", result.SanitizedText)

	result = f.Validate("go to https://evil.example.org/x")
	assert.False(t, result.IsValid)
}

func TestValidateNotificationFieldPrefixesAndMaxRisk(t *testing.T) {
	f := newTestFilter()

	result := f.ValidateNotification(
		"damn title",
		"Your account password expires immediately",
		map[string]string{"note": "Buy now! Limited time offer"},
	)

	assert.False(t, result.IsValid)
	assert.Equal(t, RiskCritical, result.RiskLevel, "risk is the maximum across fields")

	var hasTitle, hasBody, hasData bool
	for _, v := range result.Violations {
		switch {
		case strings.HasPrefix(v, "title: "):
			hasTitle = true
		case strings.HasPrefix(v, "body: "):
			hasBody = true
		case strings.HasPrefix(v, "data[note]: "):
			hasData = true
		}
	}
	assert.True(t, hasTitle)
	assert.True(t, hasBody)
	assert.True(t, hasData)
}

func TestValidateNotificationSanitizesTitleAndBody(t *testing.T) {
	f := newTestFilter()

	result := f.ValidateNotification("a damn title", "a hell of a body", nil)
	assert.True(t, result.IsValid, "profanity alone stays below the blocking threshold")
	assert.Equal(t, "a **** title", result.SanitizedTitle)
	assert.Equal(t, "a **** of a body", result.SanitizedBody)
}

func TestFilterStatsAccumulateAndReset(t *testing.T) {
	f := newTestFilter()

	f.Validate("clean text")
	f.Validate("Buy now! Limited time! $100 off!")
	f.Validate("damn")

	stats := f.GetStats()
	assert.Equal(t, int64(3), stats.Validations)
	assert.GreaterOrEqual(t, stats.Violations, int64(2))
	assert.Equal(t, int64(1), stats.Blocked)
	assert.Equal(t, int64(1), stats.Sanitized)

	f.ResetStats()
	assert.Equal(t, FilterStats{}, f.GetStats())
}

func TestFilterDisabledDetectors(t *testing.T) {
	f := NewContentSafetyFilter(FilterConfig{
		MaxLength: 1000, MaxURLs: 3,
		// every detector off
	}, nil)

	result := f.Validate("Buy now! damn https://bit.ly/x " + strings.Repeat("spam ", 10))
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Violations)
}
