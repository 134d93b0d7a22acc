package authflow

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/medisoc/portal-client/internal/api"
	"github.com/medisoc/portal-client/internal/sessionstore"
)

// Backend is the REST surface the controller drives. *api.Client is the
// production implementation; tests substitute scripted fakes.
type Backend interface {
	AdminLogin(ctx context.Context, adminID, password string) (*api.StatusReply, error)
	AdminVerifyOTP(ctx context.Context, adminID, code string) (*api.AdminVerifyReply, error)
	MemberLogin(ctx context.Context, uniqueID, password string) (*api.MemberLoginReply, error)
	MemberChangePassword(ctx context.Context, token, uniqueID, currentPassword, newPassword string) (*api.StatusReply, error)
	MemberRegister(ctx context.Context, form api.RegisterForm) (*api.RegisterReply, error)
	MemberVerifyOTP(ctx context.Context, email, code string) (*api.StatusReply, error)
	MemberResendOTP(ctx context.Context, email string) (*api.StatusReply, error)
	MemberProfile(ctx context.Context, token string) (*api.ProfileReply, error)
}

// Options tune the controller. Zero values fall back to the defaults.
type Options struct {
	// OTPWindow is how long a delivered OTP stays usable locally.
	OTPWindow time.Duration

	// MaxDocumentBytes caps the registration document size.
	MaxDocumentBytes int64
}

const (
	defaultOTPWindow   = 300 * time.Second
	defaultMaxDocBytes = 5 << 20
)

const (
	genericFailure = "Unable to reach the server. Please try again."
	expiredSession = "Your session has expired. Please sign in again."
)

// Controller drives the three portal authentication flows: admin login with
// OTP, member login with optional forced password change, and member
// self-registration with OTP verification. It owns the transient PendingAuth,
// the persisted Session and the flow states; everything else reads from it.
//
// State only advances when a backend response arrives, never optimistically.
// The controller does not deduplicate concurrent submissions of the same
// flow step; callers disable the submit control while a request is in
// flight.
type Controller struct {
	backend Backend
	store   sessionstore.Store

	otpWindow   time.Duration
	maxDocBytes int64
	now         func() time.Time

	mu       sync.Mutex
	state    FlowState
	regState FlowState
	session  *Session
	pending  *PendingAuth
	regEmail string
}

// New builds a controller and restores any persisted session so a restart
// behaves like a page reload. A stored admin session wins over a stored
// member session when both exist.
func New(backend Backend, store sessionstore.Store, opts Options) *Controller {
	if opts.OTPWindow <= 0 {
		opts.OTPWindow = defaultOTPWindow
	}
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = defaultMaxDocBytes
	}

	c := &Controller{
		backend:     backend,
		store:       store,
		otpWindow:   opts.OTPWindow,
		maxDocBytes: opts.MaxDocumentBytes,
		now:         time.Now,
		state:       StateAnonymous,
		regState:    RegStateEmpty,
	}
	c.restore()
	return c
}

func (c *Controller) restore() {
	for _, role := range []string{RoleAdmin, RoleMember} {
		rec, err := c.store.Load(role)
		if err != nil {
			log.Printf("[authflow] restore %s session: %v", role, err)
			continue
		}
		if rec == nil || rec.Token == "" {
			continue
		}
		c.session = &Session{
			PrincipalID: rec.PrincipalID,
			Token:       rec.Token,
			Role:        role,
			Profile:     rec.Profile,
		}
		c.state = StateAuthenticated
		return
	}
}

// State returns the login flow state.
func (c *Controller) State() FlowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RegistrationState returns the self-registration flow state.
func (c *Controller) RegistrationState() FlowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regState
}

// CurrentSession returns a copy of the active session, or nil when
// anonymous.
func (c *Controller) CurrentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// PendingOTP returns a copy of the pending first-factor state, or nil.
func (c *Controller) PendingOTP() *PendingAuth {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	p := *c.pending
	return &p
}

// RegistrationEmail returns the email the registration flow is verifying.
func (c *Controller) RegistrationEmail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regEmail
}

// LoginAdmin submits the admin's first factor. On success the flow moves to
// otp_pending; no token exists yet, so nothing is persisted here.
func (c *Controller) LoginAdmin(ctx context.Context, adminID, password string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if adminID == "" || password == "" {
		return Result{Message: "Admin ID and password are required."}
	}

	reply, err := c.backend.AdminLogin(ctx, adminID, password)
	if err != nil {
		return c.normalize("admin login", err)
	}
	if !reply.Success {
		return Result{Message: msgOr(reply.Message, "Login failed.")}
	}

	c.state = StateOTPPending
	c.pending = &PendingAuth{
		PrincipalID: adminID,
		Deadline:    c.now().Add(c.otpWindow),
		Channel:     "email",
	}
	return Result{Success: true, Message: msgOr(reply.Message, "OTP sent to your registered email.")}
}

// VerifyAdminOTP exchanges the OTP for a session. An expired OTP window
// fails locally without a network call; the flow stays in otp_pending so the
// caller can route back to login.
func (c *Controller) VerifyAdminOTP(ctx context.Context, adminID, code string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil && c.pending.Expired(c.now()) {
		return Result{Message: "Your OTP has expired. Please log in again."}
	}

	reply, err := c.backend.AdminVerifyOTP(ctx, adminID, code)
	if err != nil {
		return c.normalize("admin otp verify", err)
	}
	if !reply.Success || reply.Token == "" {
		// PendingAuth stays so the admin can retry the code.
		return Result{Message: msgOr(reply.Message, "OTP verification failed.")}
	}

	c.session = &Session{
		PrincipalID: adminID,
		Token:       reply.Token,
		Role:        RoleAdmin,
		Profile:     reply.Admin,
	}
	c.pending = nil
	c.state = StateAuthenticated
	c.persistLocked()

	return Result{Success: true, Message: msgOr(reply.Message, "Welcome back.")}
}

// LoginMember authenticates a member in a single step. The
// requiresPasswordChange flag is passed through for routing; the session is
// valid regardless.
func (c *Controller) LoginMember(ctx context.Context, uniqueID, password string) MemberLoginResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if uniqueID == "" || password == "" {
		return MemberLoginResult{Result: Result{Message: "Member ID and password are required."}}
	}

	reply, err := c.backend.MemberLogin(ctx, uniqueID, password)
	if err != nil {
		return MemberLoginResult{Result: c.normalize("member login", err)}
	}
	if !reply.Success || reply.Token == "" {
		return MemberLoginResult{Result: Result{Message: msgOr(reply.Message, "Login failed.")}}
	}

	c.session = &Session{
		PrincipalID: uniqueID,
		Token:       reply.Token,
		Role:        RoleMember,
		Profile:     reply.Member,
	}
	c.pending = nil
	c.state = StateAuthenticated
	c.persistLocked()

	return MemberLoginResult{
		Result:                 Result{Success: true, Message: msgOr(reply.Message, "Welcome back.")},
		RequiresPasswordChange: reply.RequiresPasswordChange,
	}
}

// ChangePassword replaces the member's password. The policy check runs
// first and skips the network entirely on failure. The backend issues no
// fresh token here, so a successful change invalidates the local session and
// the member must log in again.
func (c *Controller) ChangePassword(ctx context.Context, uniqueID, currentPassword, newPassword string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg := ValidatePassword(newPassword); msg != "" {
		return Result{Message: msg}
	}

	var token string
	if c.session != nil && c.session.Role == RoleMember {
		token = c.session.Token
	}

	reply, err := c.backend.MemberChangePassword(ctx, token, uniqueID, currentPassword, newPassword)
	if err != nil {
		return c.normalize("change password", err)
	}
	if !reply.Success {
		return Result{Message: msgOr(reply.Message, "Password change failed.")}
	}

	c.clearSessionLocked()
	return Result{Success: true, Message: msgOr(reply.Message, "Password changed. Please log in again.")}
}

// Register validates the draft locally and, only when it is fully valid,
// submits the multipart registration. A locally invalid draft produces
// field errors and zero network traffic.
func (c *Controller) Register(ctx context.Context, draft RegistrationDraft) RegisterResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if errs := draft.Validate(c.maxDocBytes); len(errs) > 0 {
		return RegisterResult{
			Result:      Result{Message: "Please fix the highlighted fields."},
			FieldErrors: errs,
		}
	}

	form := api.RegisterForm{
		Name:           cleanName(draft.Name),
		Email:          cleanEmail(draft.Email),
		Phone:          cleanName(draft.Phone),
		Speciality:     cleanName(draft.Speciality),
		Qualification:  draft.Qualifications,
		AgreeWithTerms: draft.AgreeWithTerms,
		Document:       draft.Document,
	}

	reply, err := c.backend.MemberRegister(ctx, form)
	if err != nil {
		return RegisterResult{Result: c.normalize("register", err)}
	}
	if !reply.Success {
		return RegisterResult{Result: Result{Message: msgOr(reply.Message, "Registration failed.")}}
	}

	c.regState = RegStateOTPPending
	c.regEmail = msgOr(reply.Email, form.Email)
	return RegisterResult{Result: Result{Success: true, Message: msgOr(reply.Message, "OTP sent to your email.")}}
}

// VerifyRegistrationOTP confirms the registration email. Success is
// terminal: the application now waits on admin review, and no session is
// created.
func (c *Controller) VerifyRegistrationOTP(ctx context.Context, email, code string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.backend.MemberVerifyOTP(ctx, email, code)
	if err != nil {
		return c.normalize("registration otp verify", err)
	}
	if !reply.Success {
		return Result{Message: msgOr(reply.Message, "OTP verification failed.")}
	}

	c.regState = RegStateSubmitted
	return Result{Success: true, Message: msgOr(reply.Message, "Registration submitted for review.")}
}

// ResendOTP asks for a fresh registration OTP. It never changes flow state,
// and the controller imposes no local rate limit; that belongs to the
// backend.
func (c *Controller) ResendOTP(ctx context.Context, email string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	reply, err := c.backend.MemberResendOTP(ctx, email)
	if err != nil {
		return c.normalize("resend otp", err)
	}
	if !reply.Success {
		return Result{Message: msgOr(reply.Message, "Could not resend the OTP.")}
	}
	return Result{Success: true, Message: msgOr(reply.Message, "A new OTP is on its way.")}
}

// RefreshProfile re-fetches the member profile with the stored token. A 401
// here means the token died server-side, which triggers the same transition
// as an explicit logout.
func (c *Controller) RefreshProfile(ctx context.Context) ProfileResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.Role != RoleMember {
		return ProfileResult{Result: Result{Message: "Sign in as a member first."}}
	}

	reply, err := c.backend.MemberProfile(ctx, c.session.Token)
	if err != nil {
		return ProfileResult{Result: c.normalize("profile refresh", err)}
	}
	if !reply.Success {
		return ProfileResult{Result: Result{Message: msgOr(reply.Message, "Could not load your profile.")}}
	}

	c.session.Profile = reply.Member
	c.persistLocked()
	return ProfileResult{
		Result:  Result{Success: true},
		Profile: reply.Member,
	}
}

// Logout clears the session and any pending OTP state unconditionally. It
// is idempotent: logging out while anonymous is a successful no-op.
func (c *Controller) Logout() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearSessionLocked()
	return Result{Success: true, Message: "Logged out."}
}

// persistLocked writes the current session under its role key. A storage
// failure does not fail the flow: the in-memory session stays authoritative.
func (c *Controller) persistLocked() {
	if c.session == nil {
		return
	}
	rec := sessionstore.Record{
		PrincipalID: c.session.PrincipalID,
		Token:       c.session.Token,
		Profile:     c.session.Profile,
	}
	if err := c.store.Save(c.session.Role, rec); err != nil {
		log.Printf("[authflow] persist %s session: %v", c.session.Role, err)
	}
}

func (c *Controller) clearSessionLocked() {
	c.session = nil
	c.pending = nil
	c.state = StateAnonymous
	for _, role := range []string{RoleAdmin, RoleMember} {
		if err := c.store.Clear(role); err != nil {
			log.Printf("[authflow] clear %s session: %v", role, err)
		}
	}
}

// normalize converts a transport-level error into the uniform result shape.
// An authorization rejection additionally tears down the local session,
// the cross-cutting 401 policy.
func (c *Controller) normalize(op string, err error) Result {
	if errors.Is(err, api.ErrUnauthorized) {
		c.clearSessionLocked()
		return Result{Message: expiredSession}
	}
	log.Printf("[authflow] %s: %v", op, err)
	return Result{Message: genericFailure}
}

func msgOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
