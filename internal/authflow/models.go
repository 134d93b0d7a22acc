package authflow

import (
	"time"

	"github.com/medisoc/portal-client/internal/api"
)

// FlowState names a position in one of the authentication flows.
type FlowState string

const (
	// Login flow states (admin and member share the login flow slot;
	// only the admin flow passes through StateOTPPending).
	StateAnonymous     FlowState = "anonymous"
	StateOTPPending    FlowState = "otp_pending"
	StateAuthenticated FlowState = "authenticated"

	// Registration flow states. Registration is independent of login and
	// never produces a session; it ends in a pending application.
	RegStateEmpty      FlowState = "empty"
	RegStateOTPPending FlowState = "otp_pending"
	RegStateSubmitted  FlowState = "submitted"
)

// Roles of an authenticated principal. They double as the role-scoped
// storage keys for the session store.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Session is the durable proof of authentication: a bearer token plus the
// profile the backend issued with it. The profile is an open-ended record
// because the backend may add display fields without a contract change.
type Session struct {
	PrincipalID string
	Token       string
	Role        string
	Profile     map[string]any
}

// PendingAuth marks a login that has passed its first factor and is waiting
// on OTP confirmation. It is superseded, never merged, by a new login.
type PendingAuth struct {
	PrincipalID string
	Deadline    time.Time
	Channel     string
}

// Expired reports whether the OTP window has closed as of now.
func (p *PendingAuth) Expired(now time.Time) bool {
	return now.After(p.Deadline)
}

// RegistrationDraft is the self-registration form plus its attached
// document, held entirely client-side until submission.
type RegistrationDraft struct {
	Name           string
	Email          string
	Phone          string
	Speciality     string
	Qualifications []string
	Document       api.Document
	AgreeWithTerms bool
}

// FieldErrors maps a form field name to its validation message.
type FieldErrors map[string]string

// Result is the uniform outcome of every flow operation. Operations never
// return a Go error: transport and validation failures are normalized into
// Success=false with a human-readable message, so callers branch on Success
// alone.
type Result struct {
	Success bool
	Message string
}

// MemberLoginResult adds the forced-password-change flag to the login
// outcome. The flag is advisory routing information, not an authentication
// gate; the session is valid either way.
type MemberLoginResult struct {
	Result
	RequiresPasswordChange bool
}

// RegisterResult adds field-scoped validation errors to the registration
// outcome. FieldErrors is non-empty only for local validation failures,
// which short-circuit before any network call.
type RegisterResult struct {
	Result
	FieldErrors FieldErrors
}

// ProfileResult carries a freshly fetched profile record.
type ProfileResult struct {
	Result
	Profile map[string]any
}
