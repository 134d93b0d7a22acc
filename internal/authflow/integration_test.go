package authflow_test

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/medisoc/portal-client/internal/api"
	"github.com/medisoc/portal-client/internal/authflow"
	"github.com/medisoc/portal-client/internal/sessionstore"
	"github.com/medisoc/portal-client/internal/stubserver"
)

// testServer is the shared httptest server for all integration tests.
var testServer *httptest.Server

// stub is the backend double behind testServer; tests read delivered OTPs
// from it.
var stub *stubserver.Server

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	var err error
	stub, err = stubserver.New("integration-test-secret")
	if err != nil {
		panic(err)
	}
	if err := stub.SeedAdmin("A1", "Admin One", "a1@medisoc.example", "AdminPass1!"); err != nil {
		panic(err)
	}
	if err := stub.SeedMember("M1", "Dr. One", "m1@medisoc.example", "MemberPass1!", true); err != nil {
		panic(err)
	}

	// Mount the portal routes the way the devserver does.
	r := chi.NewRouter()
	r.Use(stubserver.CORSMiddleware)
	r.Mount("/admin", stub.AdminRoutes())
	r.Mount("/member", stub.MemberRoutes())

	testServer = httptest.NewServer(r)
	defer testServer.Close()

	os.Exit(m.Run())
}

// newController wires a real API client against the stub server with a
// fresh in-memory store.
func newController(t *testing.T) (*authflow.Controller, *sessionstore.MemStore) {
	t.Helper()
	store := sessionstore.NewMemStore()
	client := api.NewClient(testServer.URL, 10*time.Second)
	return authflow.New(client, store, authflow.Options{}), store
}

func TestAdminLoginOTPFlow(t *testing.T) {
	c, store := newController(t)
	ctx := context.Background()

	if res := c.LoginAdmin(ctx, "A1", "wrong-password"); res.Success {
		t.Fatal("expected bad credentials to fail")
	}
	if c.State() != authflow.StateAnonymous {
		t.Fatalf("expected anonymous after failed login, got %s", c.State())
	}

	if res := c.LoginAdmin(ctx, "A1", "AdminPass1!"); !res.Success {
		t.Fatalf("login failed: %+v", res)
	}
	if rec, _ := store.Load(authflow.RoleAdmin); rec != nil {
		t.Fatal("no token may exist before OTP verification")
	}

	if res := c.VerifyAdminOTP(ctx, "A1", "000000"); res.Success {
		t.Fatal("expected a wrong OTP to fail")
	}
	if c.State() != authflow.StateOTPPending {
		t.Fatalf("expected otp_pending after wrong OTP, got %s", c.State())
	}

	code, ok := stub.LatestOTP("admin:A1")
	if !ok {
		t.Fatal("stub did not record an OTP")
	}
	if res := c.VerifyAdminOTP(ctx, "A1", code); !res.Success {
		t.Fatalf("verify failed: %+v", res)
	}

	session := c.CurrentSession()
	if session == nil || session.Role != authflow.RoleAdmin || session.Token == "" {
		t.Fatalf("unexpected session %+v", session)
	}
	if session.Profile["adminId"] != "A1" {
		t.Errorf("expected the admin profile, got %v", session.Profile)
	}

	if res := c.Logout(); !res.Success {
		t.Fatalf("logout failed: %+v", res)
	}
	if rec, _ := store.Load(authflow.RoleAdmin); rec != nil {
		t.Error("logout must clear the persisted session")
	}
}

func TestExpiredAdminOTPRejectedByBackend(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()

	if res := c.LoginAdmin(ctx, "A1", "AdminPass1!"); !res.Success {
		t.Fatalf("login failed: %+v", res)
	}
	code, _ := stub.LatestOTP("admin:A1")
	if err := stub.ExpireOTP("admin:A1"); err != nil {
		t.Fatalf("expire otp: %v", err)
	}

	res := c.VerifyAdminOTP(ctx, "A1", code)
	if res.Success {
		t.Fatal("expected an expired OTP to fail")
	}
	if c.State() != authflow.StateOTPPending {
		t.Errorf("expected otp_pending, got %s", c.State())
	}
}

func TestMemberLoginChangePasswordRelogin(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()

	res := c.LoginMember(ctx, "M1", "MemberPass1!")
	if !res.Success {
		t.Fatalf("login failed: %+v", res)
	}
	if !res.RequiresPasswordChange {
		t.Fatal("seeded member should require a password change")
	}

	change := c.ChangePassword(ctx, "M1", "MemberPass1!", "Fresh!Pass9")
	if !change.Success {
		t.Fatalf("change password failed: %+v", change)
	}
	if c.CurrentSession() != nil {
		t.Fatal("expected the session to be invalidated after a password change")
	}

	// Old credentials are dead, new ones work and the flag is cleared.
	if res := c.LoginMember(ctx, "M1", "MemberPass1!"); res.Success {
		t.Fatal("old password must no longer work")
	}
	res = c.LoginMember(ctx, "M1", "Fresh!Pass9")
	if !res.Success {
		t.Fatalf("re-login failed: %+v", res)
	}
	if res.RequiresPasswordChange {
		t.Error("password change flag should be cleared after a change")
	}

	profile := c.RefreshProfile(ctx)
	if !profile.Success {
		t.Fatalf("profile refresh failed: %+v", profile)
	}
	if profile.Profile["uniqueId"] != "M1" {
		t.Errorf("unexpected profile %v", profile.Profile)
	}
}

func TestRegistrationEndToEnd(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()

	draft := authflow.RegistrationDraft{
		Name:           "Dr. New Applicant",
		Email:          "applicant@medisoc.example",
		Phone:          "9000000001",
		Speciality:     "Dermatology",
		Qualifications: []string{"MBBS", "MD"},
		Document: api.Document{
			FileName:    "license.png",
			ContentType: "image/png",
			Data:        []byte("png-bytes"),
		},
		AgreeWithTerms: true,
	}

	res := c.Register(ctx, draft)
	if !res.Success {
		t.Fatalf("register failed: %+v (%v)", res.Result, res.FieldErrors)
	}
	if c.RegistrationState() != authflow.RegStateOTPPending {
		t.Fatalf("expected otp_pending, got %s", c.RegistrationState())
	}

	// A duplicate submission is rejected by the backend and leaves a fresh
	// controller in its empty state.
	dup, _ := newController(t)
	if res := dup.Register(ctx, draft); res.Success {
		t.Fatal("expected duplicate email to fail")
	} else if dup.RegistrationState() != authflow.RegStateEmpty {
		t.Errorf("expected empty, got %s", dup.RegistrationState())
	}

	email := c.RegistrationEmail()
	if res := c.ResendOTP(ctx, email); !res.Success {
		t.Fatalf("resend failed: %+v", res)
	}

	code, ok := stub.LatestOTP("reg:" + email)
	if !ok {
		t.Fatal("stub did not record a registration OTP")
	}
	if res := c.VerifyRegistrationOTP(ctx, email, code); !res.Success {
		t.Fatalf("verify failed: %+v", res)
	}
	if c.RegistrationState() != authflow.RegStateSubmitted {
		t.Errorf("expected submitted, got %s", c.RegistrationState())
	}
	if c.CurrentSession() != nil {
		t.Error("registration must not authenticate the applicant")
	}
}
