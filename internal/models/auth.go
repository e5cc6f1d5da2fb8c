package models

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the console roles recognised by this service.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleRegistrar  UserRole = "REGISTRAR"
)

// Permission is a single typed capability carried in the access token.
type Permission string

// Permissions used by the enrollment workflow routes.
const (
	PermissionApplicantsRead     Permission = "applicants:read"
	PermissionApplicantsReview   Permission = "applicants:review"
	PermissionBatchesRead        Permission = "batches:read"
	PermissionEnrollmentsApprove Permission = "enrollments:approve"
	PermissionPaymentsProcess    Permission = "payments:process"
)

var knownPermissions = map[Permission]struct{}{
	PermissionApplicantsRead:     {},
	PermissionApplicantsReview:   {},
	PermissionBatchesRead:        {},
	PermissionEnrollmentsApprove: {},
	PermissionPaymentsProcess:    {},
}

// PermissionSet is the validated permission model for a session. It is built
// once when the token is validated; malformed payloads are rejected there
// instead of being coerced downstream.
type PermissionSet map[Permission]struct{}

// NewPermissionSet validates raw permission strings into a PermissionSet.
func NewPermissionSet(raw []string) (PermissionSet, error) {
	set := make(PermissionSet, len(raw))
	for _, r := range raw {
		p := Permission(r)
		if _, ok := knownPermissions[p]; !ok {
			return nil, fmt.Errorf("unknown permission %q", r)
		}
		set[p] = struct{}{}
	}
	return set, nil
}

// Has reports whether the set grants the permission.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// JWTClaims represents the JWT payload for access tokens issued by the
// console's identity service. This service only validates them.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Role        UserRole `json:"role"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// AuthContext is the validated session attached to request contexts.
type AuthContext struct {
	Claims      *JWTClaims
	Permissions PermissionSet
}
