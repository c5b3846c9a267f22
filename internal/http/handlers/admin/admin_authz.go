package admin

import (
	"net/url"
	"strings"

	handlershared "github.com/bazaar-next/internal/http/handlers/shared"
	"github.com/bazaar-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

type authzPolicyPayload struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// GetAuthzMe 获取当前员工权限快照
func (h *Handler) GetAuthzMe(c *gin.Context) {
	actor, ok := getStaffActor(c)
	if !ok {
		return
	}

	policies, err := h.AuthzService.EffectivePolicies(actor.Role)
	if err != nil {
		handlershared.RespondMappedError(c, err, authzErrorRules, response.CodeInternal, "error.role_policies_fetch_failed")
		return
	}

	response.Success(c, gin.H{
		"subject":   actor.Subject,
		"role":      actor.Role,
		"vendor_id": actor.VendorID,
		"policies":  policies,
	})
}

// ListAuthzRoles 获取角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		handlershared.RespondMappedError(c, err, authzErrorRules, response.CodeInternal, "error.authz_unavailable")
		return
	}
	response.Success(c, roles)
}

// GetAuthzRolePolicies 获取角色策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role := decodeRoleParam(c.Param("role"))
	if strings.TrimSpace(role) == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		handlershared.RespondMappedError(c, err, authzErrorRules, response.CodeInternal, "error.role_policies_fetch_failed")
		return
	}
	response.Success(c, policies)
}

// GrantAuthzPolicy 授予角色策略
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	h.changeAuthzPolicy(c, true)
}

// RevokeAuthzPolicy 撤销角色策略
func (h *Handler) RevokeAuthzPolicy(c *gin.Context) {
	h.changeAuthzPolicy(c, false)
}

func (h *Handler) changeAuthzPolicy(c *gin.Context, grant bool) {
	actor, ok := getStaffActor(c)
	if !ok {
		return
	}
	var req authzPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	var err error
	event := "admin_authz_policy_granted"
	if grant {
		err = h.AuthzService.GrantRolePolicy(req.Role, req.Object, req.Action)
	} else {
		event = "admin_authz_policy_revoked"
		err = h.AuthzService.RevokeRolePolicy(req.Role, req.Object, req.Action)
	}
	if err != nil {
		handlershared.RespondMappedError(c, err, authzErrorRules, response.CodeInternal, "error.internal")
		return
	}

	requestLog(c).Infow(event,
		"operator", actor.Subject,
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
	)
	response.Success(c, nil)
}

func decodeRoleParam(raw string) string {
	decoded, err := url.PathUnescape(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(decoded)
}
