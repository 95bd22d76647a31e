package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/gate"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/scanner"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

// AuditFunc lets the gate middleware append to the login trail without
// depending on the auth module.
type AuditFunc func(c *gin.Context, outcome, detail string)

// Headers excluded from signature scanning. Tokens and cookies are opaque
// blobs that trip the patterns without being request input.
var skipScanHeaders = map[string]struct{}{
	"Authorization": {},
	"Cookie":        {},
}

// SecurityGate scans the request against the attack-signature table and
// enforces lockouts before the handler ever sees the payload. The body is
// buffered and restored so binding downstream still works.
func SecurityGate(g *gate.Gate, maxBodyBytes int64, audit AuditFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, identifier := buildComponents(c, maxBodyBytes)

		ip := c.ClientIP()
		decision := g.Admit(c.Request.Context(), rc, ip, identifier, ip)
		switch decision.Verdict {
		case gate.VerdictSecurityViolation:
			if audit != nil {
				audit(c, "attack_blocked", string(decision.Analysis.RiskLevel))
			}
			response.SecurityViolation(c)
		case gate.VerdictRateLimited:
			if audit != nil {
				audit(c, "locked_out", identifier)
			}
			response.TooManyRequests(c, decision.RetryAfter)
		default:
			c.Next()
		}
	}
}

// buildComponents normalizes the request for the scanner and pulls the
// credential identifier out of the body when there is one.
func buildComponents(c *gin.Context, maxBodyBytes int64) (scanner.RequestComponents, string) {
	rc := scanner.RequestComponents{
		Query:   c.Request.URL.Query(),
		Headers: scannableHeaders(c.Request.Header),
	}
	if len(c.Params) > 0 {
		rc.Params = make(map[string]string, len(c.Params))
		for _, p := range c.Params {
			rc.Params[p.Key] = p.Value
		}
	}

	if c.Request.Body == nil {
		return rc, ""
	}

	// Read one byte past the limit so truncation is distinguishable from an
	// exact fit.
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		return rc, ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	rc.BodySize = int64(len(raw))
	if cl := c.Request.ContentLength; cl > rc.BodySize {
		rc.BodySize = cl
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err == nil {
		rc.Body = body
	}

	identifier, _ := rc.Body["email"].(string)
	return rc, identifier
}

func scannableHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		if _, skip := skipScanHeaders[name]; skip {
			continue
		}
		out[name] = values
	}
	return out
}
