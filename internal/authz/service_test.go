package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	return svc
}

func TestGrantAndRevokeCustomRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("auditor", "/api/v1/admin/orders/:id", "get"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}

	allow, err := svc.Authorize("Auditor", "/api/v1/admin/orders/ORD000042", "GET")
	if err != nil || !allow {
		t.Fatalf("auditor should read orders: %v %v", allow, err)
	}
	allow, err = svc.Authorize("auditor", "/api/v1/admin/orders/ORD000042", "PATCH")
	if err != nil || allow {
		t.Fatalf("auditor must not patch orders: %v %v", allow, err)
	}

	if err := svc.RevokeRolePolicy("auditor", "/admin/orders/:id", "GET"); err != nil {
		t.Fatalf("revoke role policy failed: %v", err)
	}
	policies, err := svc.GetRolePolicies("auditor")
	if err != nil || len(policies) != 0 {
		t.Fatalf("expected no policies after revoke, got %v %v", policies, err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	var auditor *RoleInfo
	for i := range roles {
		if roles[i].Name == "auditor" {
			auditor = &roles[i]
		}
	}
	if auditor == nil || auditor.Builtin {
		t.Fatalf("auditor should be listed as a custom role: %+v", roles)
	}
}

func TestAuthorizeRejectsUnknownRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	for _, role := range []string{"", "  ", "buyer", "__anchor__"} {
		allow, err := svc.Authorize(role, "/admin/orders/1", "GET")
		if err != nil {
			t.Fatalf("authorize %q failed: %v", role, err)
		}
		if allow {
			t.Fatalf("role %q should be denied", role)
		}
	}
	if err := svc.GrantRolePolicy("__anchor__", "/admin/*", "*"); !errors.Is(err, ErrRoleReserved) {
		t.Fatalf("anchor role must be reserved, got %v", err)
	}
	if err := svc.GrantRolePolicy("auditor", "/admin/*", " "); !errors.Is(err, ErrActionRequired) {
		t.Fatalf("blank action must be rejected, got %v", err)
	}

	var nilService *Service
	if _, err := nilService.Authorize("operator", "/admin/orders/1", "GET"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("nil service should be unavailable, got %v", err)
	}
}

func TestBuiltinPoliciesCannotBeRevoked(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	err := svc.RevokeRolePolicy("vendor", "/api/v1/vendor/sub-orders/:id/status", "patch")
	if !errors.Is(err, ErrBuiltinPolicy) {
		t.Fatalf("expected ErrBuiltinPolicy, got %v", err)
	}
	allow, err := svc.Authorize("vendor", "/api/v1/vendor/sub-orders/9/status", "PATCH")
	if err != nil || !allow {
		t.Fatalf("vendor should keep its builtin policy: %v %v", allow, err)
	}
}

func TestEffectivePoliciesFollowInheritance(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	policies, err := svc.EffectivePolicies("operator")
	if err != nil {
		t.Fatalf("effective policies failed: %v", err)
	}
	inherited := 0
	own := 0
	for _, policy := range policies {
		if !policy.Builtin {
			t.Fatalf("seeded policies should be builtin: %+v", policy)
		}
		switch policy.Inherits {
		case "vendor":
			inherited++
		case "":
			own++
		}
	}
	if own != 1 || inherited != 3 {
		t.Fatalf("operator should hold 1 own and 3 inherited policies, got %d/%d: %+v", own, inherited, policies)
	}

	direct, err := svc.GetRolePolicies("operator")
	if err != nil || len(direct) != 1 || direct[0].Object != "/admin/*" {
		t.Fatalf("direct policies should exclude inherited ones: %+v %v", direct, err)
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "admin/orders", want: "/admin/orders"},
		{in: "/api/v1", want: "/"},
		{in: "/api/v10/orders", want: "/api/v10/orders"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	// 重复引导不应报错
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	found := map[string]RoleInfo{}
	for _, role := range roles {
		found[role.Name] = role
	}
	if !found["vendor"].Builtin || !found["operator"].Builtin {
		t.Fatalf("builtin roles missing: %+v", roles)
	}
	if inherits := found["operator"].Inherits; len(inherits) != 1 || inherits[0] != "vendor" {
		t.Fatalf("operator should inherit vendor: %+v", found["operator"])
	}

	cases := []struct {
		role   string
		object string
		action string
		want   bool
	}{
		{role: "vendor", object: "/api/v1/vendor/sub-orders", action: "GET", want: true},
		{role: "vendor", object: "/api/v1/vendor/sub-orders/7", action: "GET", want: true},
		{role: "vendor", object: "/api/v1/vendor/sub-orders/7/status", action: "PATCH", want: true},
		{role: "vendor", object: "/api/v1/vendor/sub-orders/7", action: "DELETE", want: false},
		{role: "vendor", object: "/api/v1/admin/orders/7", action: "GET", want: false},
		{role: "vendor", object: "/api/v1/admin/orders/7/dispatch", action: "POST", want: false},
		{role: "operator", object: "/api/v1/admin/orders/7", action: "PATCH", want: true},
		{role: "operator", object: "/api/v1/admin/orders/7/dispatch", action: "POST", want: true},
		{role: "operator", object: "/api/v1/admin/sub-orders/3/status", action: "PATCH", want: true},
		{role: "operator", object: "/api/v1/vendor/sub-orders", action: "GET", want: true},
	}
	for _, tc := range cases {
		allow, err := svc.Authorize(tc.role, tc.object, tc.action)
		if err != nil {
			t.Fatalf("authorize %s %s %s failed: %v", tc.role, tc.action, tc.object, err)
		}
		if allow != tc.want {
			t.Fatalf("authorize %s %s %s want=%v got=%v", tc.role, tc.action, tc.object, tc.want, allow)
		}
	}
}
