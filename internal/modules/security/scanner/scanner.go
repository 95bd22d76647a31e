package scanner

import (
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Category names an attack class recognized by the scanner.
type Category string

const (
	CategorySQLInjection     Category = "sql_injection"
	CategoryXSS              Category = "xss"
	CategoryCommandInjection Category = "command_injection"
	CategoryPathTraversal    Category = "path_traversal"
	CategoryOversizedPayload Category = "oversized_payload"
	CategorySuspiciousFields Category = "suspicious_fields"
	CategoryProxyUsage       Category = "proxy_usage"
	CategoryBruteForce       Category = "brute_force"
)

// RiskLevel buckets the cumulative risk score of a request.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

const defaultMaxBodyBytes = 1 << 20

// signature binds an attack category to the regexes that recognize it.
type signature struct {
	category Category
	patterns []*regexp.Regexp
}

var signatures = []signature{
	{
		category: CategorySQLInjection,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|UNION)\b.*\b(FROM|INTO|WHERE|SET|VALUES)\b`),
			// The trailing operand quote is optional: the classic tautology
			// payload ends mid-string ("' OR '1'='1") and must still match.
			regexp.MustCompile(`(?i)\b(OR|AND)\s+\d+\s*=\s*\d+|\b(OR|AND)\s+'[^']*'\s*=\s*'[^']*|\b(OR|AND)\s+"[^"]*"\s*=\s*"[^"]*`),
			regexp.MustCompile(`(?i)\bUNION(\s+(ALL|DISTINCT))?\s+SELECT\b`),
			regexp.MustCompile(`(?i)\b(EXEC|EXECUTE)\s*\(|\bSP_EXECUTESQL\b`),
		},
	},
	{
		category: CategoryXSS,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
			regexp.MustCompile(`(?i)javascript:`),
			regexp.MustCompile(`(?i)\bon\w+\s*=`),
			regexp.MustCompile(`(?i)<(iframe|object|embed)[^>]*>`),
		},
	},
	{
		category: CategoryCommandInjection,
		patterns: []*regexp.Regexp{
			regexp.MustCompile("(?i)[;&|`]\\s*(rm|del|format|shutdown|reboot|cat|ls|dir|whoami|id|pwd)\\b"),
			regexp.MustCompile(`\$\([^)]*\)`),
			regexp.MustCompile(`\$\{[^}]*\}`),
			regexp.MustCompile(`\|\|`),
		},
	},
	{
		category: CategoryPathTraversal,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(\.\.[/\\]){2,}`),
			regexp.MustCompile(`\.\.[/\\]`),
			regexp.MustCompile(`/[a-zA-Z]:[/\\]`),
			regexp.MustCompile(`(?i)%2e%2f%2e%5c|%c0%af`),
		},
	},
}

// riskScores weighs each category. The brute-force and proxy entries are
// scored here so gate-level findings fold into the same scale.
var riskScores = map[Category]int{
	CategorySQLInjection:     10,
	CategoryCommandInjection: 9,
	CategoryXSS:              8,
	CategoryPathTraversal:    7,
	CategoryBruteForce:       6,
	CategoryOversizedPayload: 5,
	CategorySuspiciousFields: 4,
	CategoryProxyUsage:       3,
}

var (
	suspiciousFieldNames = []string{"admin", "sudo", "root", "secret", "api_key", "private_key"}
	legitimateFieldNames = []string{"password", "token", "email", "username", "first_name", "last_name", "phone", "user_code"}
	proxyHeaders         = []string{"X-Forwarded-For", "X-Real-Ip", "Via", "Forwarded"}
)

// RequestComponents is the normalized view of a request handed to the
// scanner, decoupled from any HTTP framework.
type RequestComponents struct {
	Body     map[string]interface{}
	BodySize int64
	Query    url.Values
	Params   map[string]string
	Headers  http.Header
}

// Analysis is the outcome of scanning one request. Categories holds each
// attack class found at least once, in detection order.
type Analysis struct {
	IsAttack   bool                  `json:"is_attack"`
	Categories []Category            `json:"categories"`
	RiskLevel  RiskLevel             `json:"risk_level"`
	Score      int                   `json:"score"`
	Details    map[string][]Category `json:"details,omitempty"`
}

// Scanner matches request components against a fixed signature table. The
// table is package state compiled once at load; Scanner itself only carries
// the body size limit, so a single value is safe for concurrent use.
type Scanner struct {
	maxBodyBytes int64
}

func New(maxBodyBytes int64) *Scanner {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Scanner{maxBodyBytes: maxBodyBytes}
}

// Scan inspects every component against every signature. It never stops at
// the first hit: the full category list feeds the risk score, and a request
// combining two attack classes must rank above either one alone.
func (s *Scanner) Scan(rc RequestComponents) *Analysis {
	a := &Analysis{Details: make(map[string][]Category)}

	components := map[string]string{
		"body":    componentToString(rc.Body),
		"query":   queryToString(rc.Query),
		"params":  componentToString(rc.Params),
		"headers": headersToString(rc.Headers),
	}
	for name, text := range components {
		if text == "" {
			continue
		}
		for _, sig := range signatures {
			for _, p := range sig.patterns {
				if p.MatchString(text) {
					a.record(name, sig.category)
					break
				}
			}
		}
	}

	s.scanBody(rc, a)
	scanProxyHeaders(rc.Headers, a)

	a.Score = scoreCategories(a.Categories)
	a.RiskLevel = levelFor(a.Score)
	if len(a.Details) == 0 {
		a.Details = nil
	}
	return a
}

// ScoreWith recomputes the analysis after folding in extra categories found
// outside the signature table, such as a concurrent brute-force verdict.
func (a *Analysis) ScoreWith(extra ...Category) {
	for _, c := range extra {
		a.record("context", c)
	}
	a.Score = scoreCategories(a.Categories)
	a.RiskLevel = levelFor(a.Score)
}

func (s *Scanner) scanBody(rc RequestComponents, a *Analysis) {
	if rc.BodySize > s.maxBodyBytes {
		a.record("body", CategoryOversizedPayload)
	}
	if rc.Body == nil {
		return
	}
	for key := range rc.Body {
		lower := strings.ToLower(key)
		if !containsAny(lower, suspiciousFieldNames) {
			continue
		}
		if containsAny(lower, legitimateFieldNames) {
			continue
		}
		a.record("body", CategorySuspiciousFields)
		break
	}
}

func scanProxyHeaders(h http.Header, a *Analysis) {
	for _, name := range proxyHeaders {
		if h.Get(name) != "" {
			a.record("headers", CategoryProxyUsage)
			return
		}
	}
}

func (a *Analysis) record(component string, c Category) {
	a.Details[component] = append(a.Details[component], c)
	for _, existing := range a.Categories {
		if existing == c {
			return
		}
	}
	a.Categories = append(a.Categories, c)
	if c != CategoryProxyUsage {
		a.IsAttack = true
	}
}

func scoreCategories(categories []Category) int {
	total := 0
	for _, c := range categories {
		if w, ok := riskScores[c]; ok {
			total += w
		} else {
			total++
		}
	}
	return total
}

func levelFor(score int) RiskLevel {
	switch {
	case score >= 15:
		return RiskCritical
	case score >= 10:
		return RiskHigh
	case score >= 6:
		return RiskMedium
	default:
		return RiskLow
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func componentToString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}:
		if len(val) == 0 {
			return ""
		}
	case map[string]string:
		if len(val) == 0 {
			return ""
		}
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(buf)
}

// queryToString keeps values unescaped so encoded payloads do not slip
// past the signature table.
func queryToString(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	var b strings.Builder
	for key, values := range q {
		for _, v := range values {
			b.WriteString(key)
			b.WriteString("=")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func headersToString(h http.Header) string {
	if len(h) == 0 {
		return ""
	}
	var b strings.Builder
	for name, values := range h {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(values, ","))
		b.WriteString("\n")
	}
	return b.String()
}
