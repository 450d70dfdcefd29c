package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func identityEcho() (http.Handler, *Identity) {
	var got Identity
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return h, &got
}

func TestRequireUserMissingHeader(t *testing.T) {
	h, _ := identityEcho()
	rec := httptest.NewRecorder()
	RequireUser(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUserPassesIdentity(t *testing.T) {
	h, got := identityEcho()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set(HeaderUserRole, "customer")

	rec := httptest.NewRecorder()
	RequireUser(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Identity{UserID: "u1", Role: "customer"}, *got)
}

func TestRequireAdminRejectsCustomer(t *testing.T) {
	h, _ := identityEcho()
	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set(HeaderUserRole, "customer")

	rec := httptest.NewRecorder()
	RequireAdmin(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAdminAllowsAdmin(t *testing.T) {
	h, got := identityEcho()
	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set(HeaderUserID, "ops-1")
	req.Header.Set(HeaderUserRole, "admin")

	rec := httptest.NewRecorder()
	RequireAdmin(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", got.Role)
}
