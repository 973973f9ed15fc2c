package models

import "github.com/golang-jwt/jwt/v5"

// TenantContext scopes every query to one school and identifies the acting
// user. It is threaded explicitly through services and repositories instead of
// being recovered from ambient session state.
type TenantContext struct {
	SchoolID    string `json:"school_id"`
	ActorUserID string `json:"actor_user_id"`
}

// Valid reports whether the tenant carries the minimum required scope.
func (t TenantContext) Valid() bool {
	return t.SchoolID != ""
}

// SessionClaims are the JWT claims the identity collaborator issues; only the
// fields the coverage engine needs are read.
type SessionClaims struct {
	UserID   string `json:"user_id"`
	SchoolID string `json:"school_id"`
	FullName string `json:"full_name"`
	jwt.RegisteredClaims
}

// Tenant projects the claims onto a tenant context.
func (c *SessionClaims) Tenant() TenantContext {
	if c == nil {
		return TenantContext{}
	}
	return TenantContext{SchoolID: c.SchoolID, ActorUserID: c.UserID}
}

// Pagination is the shared page metadata attached to list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
