package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "studentdash-test"
)

func TestIssueAndParse(t *testing.T) {
	token, exp, err := Issue("u1", RoleStudent, testIssuer, testKey, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}
	claims, err := Parse(token, testKey, testIssuer)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "u1" || claims.Role != RoleStudent {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := Parse(token, "other-key", testIssuer); err == nil {
		t.Fatal("expected signature failure")
	}
	if _, err := Parse(token, testKey, "someone-else"); err == nil {
		t.Fatal("expected issuer mismatch")
	}
	expired, _, _ := Issue("u1", RoleStudent, testIssuer, testKey, -time.Minute)
	if _, err := Parse(expired, testKey, testIssuer); err == nil {
		t.Fatal("expected expired token to fail")
	}
	anonymous, _, _ := Issue("", RoleStudent, testIssuer, testKey, time.Hour)
	if _, err := Parse(anonymous, testKey, testIssuer); err == nil {
		t.Fatal("expected token without subject to fail")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Bearer(testKey, testIssuer), RequireRole(RoleStudent), func(c *gin.Context) {
		c.String(http.StatusOK, StudentID(c))
	})

	student, _, _ := Issue("u1", RoleStudent, testIssuer, testKey, time.Hour)
	admin, _, _ := Issue("staff", RoleAdmin, testIssuer, testKey, time.Hour)

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer abc", http.StatusUnauthorized, ""},
		{"wrong role", "Bearer " + admin, http.StatusForbidden, ""},
		{"student", "Bearer " + student, http.StatusOK, "u1"},
		{"lowercase scheme", "bearer " + student, http.StatusOK, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.code {
				t.Fatalf("code = %d, want %d", w.Code, tt.code)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Fatalf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}
