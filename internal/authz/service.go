package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "casbin_rule"
	rolePrefix      = "role:"
	roleAnchor      = "role:__anchor__"
)

var (
	ErrUnavailable    = errors.New("authz service unavailable")
	ErrRoleRequired   = errors.New("role is required")
	ErrRoleReserved   = errors.New("reserved role is not allowed")
	ErrActionRequired = errors.New("action is required")
	ErrBuiltinPolicy  = errors.New("builtin policy cannot be revoked")
)

// 员工令牌只带角色，请求主体就是角色本身；operator 通过 g 继承 vendor
const staffRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// Policy 角色的一条路由策略，Role 不带内部前缀
type Policy struct {
	Role     string `json:"role"`
	Object   string `json:"object"`
	Action   string `json:"action"`
	Builtin  bool   `json:"builtin"`
	Inherits string `json:"inherited_from,omitempty"`
}

// RoleInfo 角色概要
type RoleInfo struct {
	Name     string   `json:"name"`
	Builtin  bool     `json:"builtin"`
	Inherits []string `json:"inherits"`
}

// Service 员工路由授权。
// 路由级判定只看角色；供应商只能访问自己的子订单由 service 层按 vendor_id 收敛。
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 基于 gorm 适配器创建授权服务，策略持久化在 casbin_rule 表
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter failed: %w", err)
	}
	m, err := model.NewModelFromString(staffRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model failed: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer failed: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy failed: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	return nil
}

// Authorize 判定角色能否以 act 访问路由 obj；未知角色与保留角色直接拒绝
func (s *Service) Authorize(role, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	subject, err := NormalizeRole(role)
	if err != nil || subject == roleAnchor {
		return false, nil
	}
	return s.enforcer.Enforce(subject, NormalizeObject(obj), NormalizeAction(act))
}

func (s *Service) ensureRole(subject string) error {
	exists, err := s.enforcer.HasNamedGroupingPolicy("g", subject, roleAnchor)
	if err != nil {
		return fmt.Errorf("check role failed: %w", err)
	}
	if exists {
		return nil
	}
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", subject, roleAnchor); err != nil {
		return fmt.Errorf("create role failed: %w", err)
	}
	return nil
}

// parents 角色的直接父角色
func (s *Service) parents(subject string) ([]string, error) {
	rules, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0, subject)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule) >= 2 && rule[1] != roleAnchor {
			out = append(out, rule[1])
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListRoles 列出全部角色及其继承关系
func (s *Service) ListRoles() ([]RoleInfo, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 0)
	if err != nil {
		return nil, fmt.Errorf("list roles failed: %w", err)
	}
	seen := make(map[string]struct{})
	for _, rule := range rules {
		for _, name := range rule {
			if strings.HasPrefix(name, rolePrefix) && name != roleAnchor {
				seen[name] = struct{}{}
			}
		}
	}
	subjects := make([]string, 0, len(seen))
	for subject := range seen {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	roles := make([]RoleInfo, 0, len(subjects))
	for _, subject := range subjects {
		parents, err := s.parents(subject)
		if err != nil {
			return nil, fmt.Errorf("list role parents failed: %w", err)
		}
		inherits := make([]string, 0, len(parents))
		for _, parent := range parents {
			inherits = append(inherits, displayRole(parent))
		}
		name := displayRole(subject)
		roles = append(roles, RoleInfo{Name: name, Builtin: isBuiltinRole(name), Inherits: inherits})
	}
	return roles, nil
}

// GrantRolePolicy 为角色授予路由策略，角色不存在时自动创建
func (s *Service) GrantRolePolicy(role, object, action string) error {
	if err := s.ready(); err != nil {
		return err
	}
	subject, err := NormalizeRole(role)
	if err != nil {
		return err
	}
	if subject == roleAnchor {
		return ErrRoleReserved
	}
	act := NormalizeAction(action)
	if act == "" {
		return ErrActionRequired
	}
	if err := s.ensureRole(subject); err != nil {
		return err
	}
	if _, err := s.enforcer.AddPolicy(subject, NormalizeObject(object), act); err != nil {
		return fmt.Errorf("grant policy failed: %w", err)
	}
	return nil
}

// RevokeRolePolicy 撤销角色策略；预置策略不可撤销
func (s *Service) RevokeRolePolicy(role, object, action string) error {
	if err := s.ready(); err != nil {
		return err
	}
	subject, err := NormalizeRole(role)
	if err != nil {
		return err
	}
	act := NormalizeAction(action)
	if act == "" {
		return ErrActionRequired
	}
	obj := NormalizeObject(object)
	if isBuiltinPolicy(displayRole(subject), obj, act) {
		return ErrBuiltinPolicy
	}
	if _, err := s.enforcer.RemovePolicy(subject, obj, act); err != nil {
		return fmt.Errorf("revoke policy failed: %w", err)
	}
	return nil
}

// GetRolePolicies 角色自身直接持有的策略
func (s *Service) GetRolePolicies(role string) ([]Policy, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	subject, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	return s.directPolicies(subject, "")
}

// EffectivePolicies 角色实际生效的策略，包含沿继承链得到的部分
func (s *Service) EffectivePolicies(role string) ([]Policy, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	subject, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}

	var out []Policy
	visited := map[string]bool{}
	queue := []string{subject}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		via := ""
		if current != subject {
			via = displayRole(current)
		}
		policies, err := s.directPolicies(current, via)
		if err != nil {
			return nil, err
		}
		out = append(out, policies...)

		parents, err := s.parents(current)
		if err != nil {
			return nil, fmt.Errorf("resolve role parents failed: %w", err)
		}
		queue = append(queue, parents...)
	}
	return out, nil
}

func (s *Service) directPolicies(subject, inheritedFrom string) ([]Policy, error) {
	rules, err := s.enforcer.GetFilteredPolicy(0, subject)
	if err != nil {
		return nil, fmt.Errorf("get role policies failed: %w", err)
	}
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		name := displayRole(rule[0])
		obj := NormalizeObject(rule[1])
		act := NormalizeAction(rule[2])
		policies = append(policies, Policy{
			Role:     name,
			Object:   obj,
			Action:   act,
			Builtin:  isBuiltinPolicy(name, obj, act),
			Inherits: inheritedFrom,
		})
	}
	return policies, nil
}

func displayRole(subject string) string {
	return strings.TrimPrefix(subject, rolePrefix)
}

// NormalizeRole 角色名转为 casbin 主体（加 role: 前缀）
func NormalizeRole(role string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(role), " ", "_")
	normalized = strings.TrimPrefix(normalized, rolePrefix)
	if normalized == "" {
		return "", ErrRoleRequired
	}
	return rolePrefix + strings.ToLower(normalized), nil
}

// NormalizeObject 统一资源路径，去掉 /api/v1 前缀
func NormalizeObject(object string) string {
	normalized := strings.TrimSpace(object)
	if normalized == "" {
		return "/"
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if normalized == apiV1Prefix {
		return "/"
	}
	if strings.HasPrefix(normalized, apiV1Prefix+"/") {
		return strings.TrimPrefix(normalized, apiV1Prefix)
	}
	return normalized
}

// NormalizeAction 统一授权动作
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
