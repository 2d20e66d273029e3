// Package identity defines the authenticated principal returned by the
// Bridgemark marketplace API and the partial-update patch applied when a
// profile is edited.
//
// The JSON field names match the remote API exactly; the same shape is
// used for the persisted profile blob, so a stored identity round-trips
// through any token store without translation.
package identity

import (
	"encoding/json"

	"github.com/bridgemark/bmauth/role"
)

// Identity is the profile and role claims of one authenticated
// principal. Optional fields are zero-valued when the API omits them.
type Identity struct {
	UserID      int    `json:"userId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	RoleIDs     string `json:"roleIds"`
	RoleName    string `json:"roleName"`
	PartnerID   int    `json:"partnerId,omitempty"`
	FranchiseID int    `json:"franchiseId,omitempty"`
	AdmissionID int    `json:"admissionId,omitempty"`
	MobileNo    string `json:"mobileNo,omitempty"`
}

// Roles parses the comma-separated RoleIDs claim into a [role.Set].
// The wire string is the source of truth; the set is derived on demand.
func (id *Identity) Roles() role.Set {
	if id == nil {
		return role.Set{}
	}
	return role.Parse(id.RoleIDs)
}

// Clone returns a copy of the identity, or nil for a nil receiver.
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

// Encode serializes the identity for persistence.
func (id *Identity) Encode() (string, error) {
	raw, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode deserializes a persisted identity blob. A corrupt or empty
// blob yields nil rather than an error: a damaged profile cache is
// treated as an absent one.
func Decode(raw string) *Identity {
	if raw == "" {
		return nil
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil
	}
	return &id
}

// Patch is a partial profile update. Nil fields are left untouched by
// [Identity.Apply]; non-nil fields overwrite, including overwriting with
// a zero value.
type Patch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Avatar    *string
	RoleName  *string
	MobileNo  *string
	PartnerID *int
}

// Apply merges the patch into the identity in place. Applying to a nil
// identity is a no-op.
func (id *Identity) Apply(p Patch) {
	if id == nil {
		return
	}
	if p.FirstName != nil {
		id.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		id.LastName = *p.LastName
	}
	if p.Email != nil {
		id.Email = *p.Email
	}
	if p.Avatar != nil {
		id.Avatar = *p.Avatar
	}
	if p.RoleName != nil {
		id.RoleName = *p.RoleName
	}
	if p.MobileNo != nil {
		id.MobileNo = *p.MobileNo
	}
	if p.PartnerID != nil {
		id.PartnerID = *p.PartnerID
	}
}
