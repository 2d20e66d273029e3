package bmauth

import "github.com/bridgemark/bmauth/identity"

// Credential is a transient username/password pair. It is never
// persisted and should not be retained after Login returns.
type Credential struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

// RoleTarget is the role a login surface demands, independent of which
// roles the identity actually holds.
type RoleTarget string

const (
	// TargetUser is the consumer-facing login surface.
	TargetUser RoleTarget = "user"
	// TargetPartner is the partner-facing login surface.
	TargetPartner RoleTarget = "partner"
)

// LoginResult is the outcome of an accepted role-gated login.
type LoginResult struct {
	// Identity is the authenticated principal.
	Identity *identity.Identity
	// Route is the navigation target: the role's landing route, or the
	// deep-link route derived from a pending entry recorded before
	// login. The embedding application performs the navigation.
	Route string
}

// Status is the session state machine's phase.
type Status uint8

const (
	// StatusIdle is the rest state, signed in or out.
	StatusIdle Status = iota
	// StatusLoading is set while a login call is in flight.
	StatusLoading
	// StatusError is set after a failed login; the failure message is
	// available through Session.Err.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// authenticateResponse is the wire shape of POST /api/User/authenticate.
type authenticateResponse struct {
	IsSuccess     bool                `json:"isSuccess"`
	FailureReason string              `json:"failureReason,omitempty"`
	Output        *authenticateOutput `json:"output,omitempty"`
}

// authenticateOutput carries the identity fields plus the token pair.
// Role membership stays a comma-separated string at this boundary.
type authenticateOutput struct {
	UserID                 int    `json:"userId"`
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	Email                  string `json:"email,omitempty"`
	Avatar                 string `json:"avatar,omitempty"`
	Role                   string `json:"role,omitempty"`
	RoleIDs                string `json:"roleIds"`
	RoleName               string `json:"roleName"`
	PartnerID              int    `json:"partnerId,omitempty"`
	FranchiseID            int    `json:"franchiseId,omitempty"`
	AdmissionID            int    `json:"admissionId,omitempty"`
	MobileNo               string `json:"mobileNo,omitempty"`
	Token                  string `json:"token"`
	RefreshToken           string `json:"refreshToken"`
	RefreshTokenExpiryTime string `json:"refreshTokenExpiryTime,omitempty"`
}

func (o *authenticateOutput) asIdentity() *identity.Identity {
	return &identity.Identity{
		UserID:      o.UserID,
		FirstName:   o.FirstName,
		LastName:    o.LastName,
		Email:       o.Email,
		Avatar:      o.Avatar,
		RoleIDs:     o.RoleIDs,
		RoleName:    o.RoleName,
		PartnerID:   o.PartnerID,
		FranchiseID: o.FranchiseID,
		AdmissionID: o.AdmissionID,
		MobileNo:    o.MobileNo,
	}
}

// refreshRequest / refreshResponse are the wire shapes of POST /auth/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
