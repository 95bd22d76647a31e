package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/models"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/gate"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/guard"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/scanner"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/cache"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/token"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeValidator struct {
	claims  *token.Claims
	session *models.Session
	err     error
	gotRaw  string
}

func (f *fakeValidator) ValidateAccess(_ context.Context, raw string) (*token.Claims, *models.Session, error) {
	f.gotRaw = raw
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.claims, f.session, nil
}

func TestAuthRejectsMissingToken(t *testing.T) {
	v := &fakeValidator{err: errors.New("nope")}
	r := gin.New()
	r.GET("/protected", Auth(v), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, v.gotRaw, "validator must not run without a token")
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	v := &fakeValidator{err: errors.New("nope")}
	r := gin.New()
	r.GET("/protected", Auth(v), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "garbage", v.gotRaw)
}

func TestAuthPopulatesContext(t *testing.T) {
	v := &fakeValidator{
		claims: &token.Claims{
			TokenType:   token.TypeAccess,
			Permissions: []string{"sessions:read"},
			RegisteredClaims: jwtlib.RegisteredClaims{
				Subject: "user-1",
			},
		},
		session: &models.Session{Base: models.Base{ID: "sess-1"}},
	}
	r := gin.New()
	r.GET("/protected", Auth(v), func(c *gin.Context) {
		assert.Equal(t, "user-1", CurrentUserID(c))
		assert.Equal(t, "sess-1", CurrentSessionID(c))
		assert.Equal(t, "tok", CurrentToken(c))
		require.NotNil(t, CurrentClaims(c))
		assert.True(t, IsAuthenticated(c))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermission(t *testing.T) {
	v := &fakeValidator{
		claims: &token.Claims{
			Permissions: []string{"sessions:read"},
			RegisteredClaims: jwtlib.RegisteredClaims{
				Subject: "user-1",
			},
		},
		session: &models.Session{Base: models.Base{ID: "sess-1"}},
	}
	r := gin.New()
	r.GET("/ok", Auth(v), RequirePermission("sessions:read"), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/denied", Auth(v), RequirePermission("sessions:admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	for path, want := range map[string]int{"/ok": http.StatusOK, "/denied": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer tok")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, path)
	}
}

func newGateRouter(t *testing.T) (*gin.Engine, *guard.BruteForceGuard) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := cache.NewRedis(rdb)

	g := guard.New(store, zap.NewNop(), 5, 15*time.Minute, 30*time.Minute)
	gt := gate.New(scanner.New(0), g, store, zap.NewNop(), true)

	r := gin.New()
	r.POST("/login", SecurityGate(gt, 1<<20, nil), func(c *gin.Context) {
		// The handler must still be able to bind the buffered body.
		var dto struct {
			Email string `json:"email"`
		}
		require.NoError(t, c.ShouldBindJSON(&dto))
		c.JSON(http.StatusOK, gin.H{"email": dto.Email})
	})
	return r, g
}

func TestSecurityGatePassesBenignRequests(t *testing.T) {
	r, _ := newGateRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"alice@example.com","password":"hunter2hunter2"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alice@example.com", body["email"])
}

func TestSecurityGateBlocksInjection(t *testing.T) {
	r, _ := newGateRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"a@b.com' OR '1'='1","password":"x"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSecurityGateEnforcesLockout(t *testing.T) {
	r, g := newGateRouter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.RecordFailure(ctx, "alice@example.com")
	}

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"email":"alice@example.com","password":"hunter2"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestNoStoreHeaders(t *testing.T) {
	r := gin.New()
	r.Use(NoStore())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}
