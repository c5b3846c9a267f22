package authz

import (
	"fmt"

	"github.com/bazaar-next/internal/constants"
)

// RoleSeed 预置角色：供应商只能碰自己的子订单路由，运营继承供应商并管理全部后台路由
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.StaffRoleVendor,
			Policies: []Policy{
				{Object: "/vendor/sub-orders", Action: "GET"},
				{Object: "/vendor/sub-orders/:id", Action: "GET"},
				{Object: "/vendor/sub-orders/:id/status", Action: "PATCH"},
			},
		},
		{
			Role:     constants.StaffRoleOperator,
			Inherits: []string{constants.StaffRoleVendor},
			Policies: []Policy{
				{Object: "/admin/*", Action: "*"},
			},
		},
	}
}

func isBuiltinRole(name string) bool {
	for _, seed := range BuiltinRoleSeeds() {
		if seed.Role == name {
			return true
		}
	}
	return false
}

func isBuiltinPolicy(role, object, action string) bool {
	for _, seed := range BuiltinRoleSeeds() {
		if seed.Role != role {
			continue
		}
		for _, policy := range seed.Policies {
			if NormalizeObject(policy.Object) == object && NormalizeAction(policy.Action) == action {
				return true
			}
		}
	}
	return false
}

// BootstrapBuiltinRoles 写入预置角色、继承关系与策略，可重复执行
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	for _, seed := range BuiltinRoleSeeds() {
		subject, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}
		if err := s.ensureRole(subject); err != nil {
			return fmt.Errorf("create builtin role %s failed: %w", seed.Role, err)
		}
		for _, parent := range seed.Inherits {
			parentSubject, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", subject, parentSubject); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			if _, err := s.enforcer.AddPolicy(subject, NormalizeObject(policy.Object), NormalizeAction(policy.Action)); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
