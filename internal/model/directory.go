package model

import (
	"fmt"
	"sort"
	"strings"
)

// Entity is the directory's read-only view of a project, user or client.
type Entity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ColorTag string `json:"color_tag,omitempty"`
	// GroupID is the client of a project; empty for users and clients.
	GroupID string `json:"group_id,omitempty"`
}

// SortEntities orders entities by name, then id, which is the stable row order.
func SortEntities(es []Entity) {
	sort.SliceStable(es, func(i, j int) bool {
		ni, nj := strings.ToLower(es[i].Name), strings.ToLower(es[j].Name)
		if ni != nj {
			return ni < nj
		}
		return es[i].ID < es[j].ID
	})
}

// Client groups projects in the planning grid.
type Client struct {
	Key         string `json:"key"`
	SID         string `json:"sid"`
	DisplayName string `json:"display_name"`
}

func (c *Client) SetKey(key string) { c.Key = key }
func (c *Client) GetKey() string    { return c.Key }

// GenerateClientKey generates a database key for a client using its SID.
func GenerateClientKey(sid string) string {
	return fmt.Sprintf("%s:%s", PrefixClient, sid)
}

// NewClient creates a new client.
func NewClient(sid, displayName string) *Client {
	return &Client{Key: GenerateClientKey(sid), SID: sid, DisplayName: displayName}
}

// Entity returns the directory view of the client.
func (c *Client) Entity() Entity {
	return Entity{ID: c.SID, Name: c.DisplayName}
}

// User is a person time belongs to.
type User struct {
	Key         string `json:"key"`
	SID         string `json:"sid"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color,omitempty"`
}

func (u *User) SetKey(key string) { u.Key = key }
func (u *User) GetKey() string    { return u.Key }

// GenerateUserKey generates a database key for a user using its SID.
func GenerateUserKey(sid string) string {
	return fmt.Sprintf("%s:%s", PrefixUser, sid)
}

// NewUser creates a new user.
func NewUser(sid, displayName, color string) *User {
	return &User{Key: GenerateUserKey(sid), SID: sid, DisplayName: displayName, Color: color}
}

// Entity returns the directory view of the user.
func (u *User) Entity() Entity {
	return Entity{ID: u.SID, Name: u.DisplayName, ColorTag: u.Color}
}

// Membership says a user works on a project.
type Membership struct {
	Key        string `json:"key"`
	ProjectSID string `json:"project_sid"`
	UserSID    string `json:"user_sid"`
}

func (m *Membership) SetKey(key string) { m.Key = key }
func (m *Membership) GetKey() string    { return m.Key }

// GenerateMembershipKey generates a key that sorts memberships under their project.
func GenerateMembershipKey(projectSID, userSID string) string {
	return fmt.Sprintf("%s:%s:%s", PrefixMembership, projectSID, userSID)
}

// NewMembership creates a new membership.
func NewMembership(projectSID, userSID string) *Membership {
	return &Membership{
		Key:        GenerateMembershipKey(projectSID, userSID),
		ProjectSID: projectSID,
		UserSID:    userSID,
	}
}
