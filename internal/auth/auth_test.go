package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s *stubRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	s.revoked[tokenID] = true
	return nil
}

func (s *stubRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[tokenID], nil
}

func newProtectedRouter(issuer *Issuer, revocations *stubRevocations) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RequireLogin(issuer, revocations, zap.NewNop()), func(c *gin.Context) {
		userID, _ := GetUserID(c.Request.Context())
		c.String(http.StatusOK, userID+":"+GetUsername(c.Request.Context()))
	})
	return router
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	issuer := NewIssuer(testSecret, "plantid", time.Hour)

	token, err := issuer.Issue("42", "fern")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Parse(token.Value)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "42" || claims.Username != "fern" || claims.ID != token.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejectsWrongAudienceAndExpiry(t *testing.T) {
	other := NewIssuer(testSecret, "someone-else", time.Hour)
	token, err := other.Issue("1", "a")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewIssuer(testSecret, "plantid", time.Hour).Parse(token.Value); err == nil {
		t.Fatal("expected audience mismatch to fail")
	}

	expired := NewIssuer(testSecret, "", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue("1", "a")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewIssuer(testSecret, "", time.Minute).Parse(old.Value); err == nil {
		t.Fatal("expected expired token to fail")
	}
}

func TestRequireLoginRedirectsBrowsersWithoutSession(t *testing.T) {
	router := newProtectedRouter(NewIssuer(testSecret, "", time.Hour), &stubRevocations{revoked: map[string]bool{}})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusFound || resp.Header().Get("Location") != LoginPath {
		t.Fatalf("expected redirect to login, got %d %q", resp.Code, resp.Header().Get("Location"))
	}
}

func TestRequireLoginAcceptsCookie(t *testing.T) {
	issuer := NewIssuer(testSecret, "", time.Hour)
	router := newProtectedRouter(issuer, &stubRevocations{revoked: map[string]bool{}})
	token, _ := issuer.Issue("7", "ivy")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token.Value})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || resp.Body.String() != "7:ivy" {
		t.Fatalf("expected authenticated response, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestRequireLoginRejectsBadBearerWith401(t *testing.T) {
	router := newProtectedRouter(NewIssuer(testSecret, "", time.Hour), &stubRevocations{revoked: map[string]bool{}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestRequireLoginRejectsRevokedToken(t *testing.T) {
	issuer := NewIssuer(testSecret, "", time.Hour)
	revocations := &stubRevocations{revoked: map[string]bool{}}
	router := newProtectedRouter(issuer, revocations)
	token, _ := issuer.Issue("7", "ivy")
	_ = revocations.Revoke(context.Background(), token.ID, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token.Value)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", resp.Code)
	}
}

func TestRequireLoginRejectsWhenRevocationCheckFails(t *testing.T) {
	issuer := NewIssuer(testSecret, "", time.Hour)
	revocations := &stubRevocations{revoked: map[string]bool{}, err: errors.New("redis down")}
	router := newProtectedRouter(issuer, revocations)
	token, _ := issuer.Issue("7", "ivy")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token.Value})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound || resp.Header().Get("Location") != LoginPath {
		t.Fatalf("expected redirect to login, got %d %q", resp.Code, resp.Header().Get("Location"))
	}
}

func TestParseActiveRequestHonoursRevocation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := NewIssuer(testSecret, "", time.Hour)
	revocations := &stubRevocations{revoked: map[string]bool{}}
	token, _ := issuer.Issue("7", "ivy")

	newContext := func() *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, LoginPath, nil)
		c.Request.AddCookie(&http.Cookie{Name: CookieName, Value: token.Value})
		return c
	}

	if claims, ok := ParseActiveRequest(newContext(), issuer, revocations, zap.NewNop()); !ok || claims.Username != "ivy" {
		t.Fatalf("expected active session, got %+v %t", claims, ok)
	}

	_ = revocations.Revoke(context.Background(), token.ID, time.Hour)
	if _, ok := ParseActiveRequest(newContext(), issuer, revocations, zap.NewNop()); ok {
		t.Fatal("expected revoked session to be inactive")
	}
	if _, ok := ParseRequest(newContext(), issuer); !ok {
		t.Fatal("expected ParseRequest to ignore revocation")
	}

	revocations.err = errors.New("redis down")
	delete(revocations.revoked, token.ID)
	if _, ok := ParseActiveRequest(newContext(), issuer, revocations, zap.NewNop()); ok {
		t.Fatal("expected failed lookup to count as revoked")
	}
}
