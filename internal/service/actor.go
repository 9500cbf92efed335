package service

import "strings"

// Roles recognised by the result lifecycle.
const (
	RoleTeacher     = "teacher"
	RoleExamOfficer = "exam_officer"
	RoleAdmin       = "admin"
)

// CapabilityApproveResults gates every approval, rejection, publication and
// verification decision. Carried in JWT claims and re-checked in the services
// so the contract never trusts route wiring alone.
const CapabilityApproveResults = "can_approve_results"

// Actor represents the authenticated user performing an operation.
type Actor struct {
	ID           uint
	Role         string
	Capabilities []string
}

// HasCapability reports whether the actor carries the named capability.
func (a Actor) HasCapability(name string) bool {
	for _, capability := range a.Capabilities {
		if strings.EqualFold(strings.TrimSpace(capability), name) {
			return true
		}
	}

	return false
}

// CanApproveResults reports whether the actor may decide approval outcomes.
func (a Actor) CanApproveResults() bool {
	role := strings.ToLower(strings.TrimSpace(a.Role))
	if role != RoleExamOfficer && role != RoleAdmin {
		return false
	}

	return a.HasCapability(CapabilityApproveResults)
}
