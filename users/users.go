package users

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RoleType is a marketplace role tag. A user may hold several.
type RoleType string

const (
	RoleAdmin  RoleType = "ADMIN"  // Platform administrator
	RoleBroker RoleType = "BROKER" // Buys from farmers, manages sales and baskets
	RoleFarmer RoleType = "FARMER" // Lists produce
)

// RolePriority is the first-match order used to pick a dominant role.
var RolePriority = []RoleType{RoleAdmin, RoleBroker, RoleFarmer}

// ParseRole maps a raw tag to a RoleType, case insensitive.
func ParseRole(raw string) (RoleType, bool) {
	role := RoleType(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case RoleAdmin, RoleBroker, RoleFarmer:
		return role, true
	}
	return "", false
}

// Roles is a set of role tags kept in first-seen order.
type Roles []RoleType

// NewRoles builds a Roles set, dropping duplicates and unknown tags.
func NewRoles(roles ...RoleType) Roles {
	var set Roles
	for _, r := range roles {
		role, ok := ParseRole(string(r))
		if !ok || set.Has(role) {
			continue
		}
		set = append(set, role)
	}
	return set
}

func (r Roles) Has(role RoleType) bool {
	for _, v := range r {
		if v == role {
			return true
		}
	}
	return false
}

// Primary returns the dominant role by RolePriority.
func (r Roles) Primary() (RoleType, bool) {
	for _, role := range RolePriority {
		if r.Has(role) {
			return role, true
		}
	}
	return "", false
}

// UnmarshalJSON accepts an array of tags or a single (optionally comma separated) string,
// which older API payloads send.
func (r *Roles) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		var single *string
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return fmt.Errorf("roles: expected array or string: %w", err)
		}
		if single != nil {
			list = strings.Split(*single, ",")
		}
	}

	tags := make([]RoleType, 0, len(list))
	for _, v := range list {
		tags = append(tags, RoleType(v))
	}
	*r = NewRoles(tags...)
	return nil
}

// Status is the account state reported by the identity service.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusPending Status = "PENDING"
	StatusBlocked Status = "BLOCKED"
)

// Profile is the cached projection of the authenticated identity.
type Profile struct {
	ID        string `json:"id"`
	Phone     string `json:"phone"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Region    string `json:"region,omitempty"`
	Roles     Roles  `json:"roles"`
	Status    Status `json:"status,omitempty"`
}

// HasRole reports whether p holds role. A nil profile holds no roles.
func HasRole(p *Profile, role RoleType) bool {
	return p.HasRole(role)
}

func (p *Profile) HasRole(role RoleType) bool {
	if p == nil {
		return false
	}
	return p.Roles.Has(role)
}

func (p *Profile) IsAdmin() bool  { return p.HasRole(RoleAdmin) }
func (p *Profile) IsBroker() bool { return p.HasRole(RoleBroker) }
func (p *Profile) IsFarmer() bool { return p.HasRole(RoleFarmer) }

// PrimaryRole returns the dominant role, ADMIN over BROKER over FARMER.
func (p *Profile) PrimaryRole() (RoleType, bool) {
	if p == nil {
		return "", false
	}
	return p.Roles.Primary()
}

func (p *Profile) IsBlocked() bool {
	return p != nil && Status(strings.ToUpper(string(p.Status))) == StatusBlocked
}

func (p *Profile) FullName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
