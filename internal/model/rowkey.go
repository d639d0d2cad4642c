package model

import "fmt"

// RowKey identifies one lane of the scheduling grid: a project, a user, or both.
// Equality is structural, so RowKey can be used directly as a map key.
type RowKey struct {
	Project string `json:"project,omitempty"`
	Owner   string `json:"owner,omitempty"`
}

// ProjectRow returns the summary lane of a project.
func ProjectRow(projectSID string) RowKey {
	return RowKey{Project: projectSID}
}

// MemberRow returns the lane of one user on one project.
func MemberRow(projectSID, ownerSID string) RowKey {
	return RowKey{Project: projectSID, Owner: ownerSID}
}

// OwnerRow returns the summary lane of a user.
func OwnerRow(ownerSID string) RowKey {
	return RowKey{Owner: ownerSID}
}

// IsZero reports whether neither side is bound. A zero RowKey used as a
// filter matches everything; it is never a valid lane.
func (k RowKey) IsZero() bool {
	return k.Project == "" && k.Owner == ""
}

// IsFull reports whether both sides are bound.
func (k RowKey) IsFull() bool {
	return k.Project != "" && k.Owner != ""
}

// Matches reports whether an allocation on (project, owner) falls in this lane.
// Unbound sides match anything.
func (k RowKey) Matches(project, owner string) bool {
	if k.Project != "" && k.Project != project {
		return false
	}
	if k.Owner != "" && k.Owner != owner {
		return false
	}
	return true
}

func (k RowKey) String() string {
	switch {
	case k.IsFull():
		return fmt.Sprintf("%s/%s", k.Project, k.Owner)
	case k.Project != "":
		return k.Project
	case k.Owner != "":
		return "@" + k.Owner
	default:
		return "*"
	}
}
