package middlewares

import (
	"log/slog"
	"net/http"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gin-gonic/gin"
)

// r = request (role, route template, method)
// g lets admin inherit every user permission
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// defaultPolicies: users read leads and manage their own session,
// admins additionally write leads, import files and manage accounts.
var defaultPolicies = [][]string{
	{"user", "/auth/*", "^(GET|POST)$"},
	{"user", "/dashboard", "^GET$"},
	{"user", "/leads", "^GET$"},
	{"user", "/leads/*", "^GET$"},
	{"admin", "/leads", "^POST$"},
	{"admin", "/leads/import", "^POST$"},
	{"admin", "/leads/import/*", "^POST$"},
	{"admin", "/users", "^(GET|POST)$"},
	{"admin", "/users/:username", "^DELETE$"},
}

// NewEnforcer builds the in-process RBAC enforcer with the built-in policy set.
func NewEnforcer() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	if _, err := enforcer.AddPolicies(defaultPolicies); err != nil {
		return nil, err
	}
	if _, err := enforcer.AddGroupingPolicy("admin", "user"); err != nil {
		return nil, err
	}

	return enforcer, nil
}

// Authorize checks the caller's role against the matched route template.
// Must run after RequireAuth.
func Authorize(enforcer *casbin.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok {
			abortUnauthorized(c, "Missing identity context")
			return
		}

		obj := c.FullPath()
		act := c.Request.Method

		permit, err := enforcer.Enforce(role, obj, act)
		if err != nil {
			slog.Default().ErrorContext(c.Request.Context(), "permission check failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "internal_error",
					"message": "Permission check failed",
				},
			})
			return
		}

		if !permit {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":      "forbidden",
					"message":   "Your role is not allowed to " + act + " " + obj,
					"requestId": c.GetString(CtxRequestID),
				},
			})
			return
		}

		c.Next()
	}
}
