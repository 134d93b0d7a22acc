package stubserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/medisoc/portal-client/internal/stubserver"
)

func newStub(t *testing.T) (*stubserver.Server, *httptest.Server) {
	t.Helper()
	srv, err := stubserver.New("handler-test-secret")
	if err != nil {
		t.Fatalf("stubserver.New: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body map[string]any) map[string]any {
	t.Helper()
	payload, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", url, err)
	}
	return out
}

func TestAdminOTPLifecycle(t *testing.T) {
	srv, ts := newStub(t)
	if err := srv.SeedAdmin("A9", "Admin Nine", "a9@medisoc.example", "AdminPass9!"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out := postJSON(t, ts.URL+"/admin/login", map[string]any{"adminId": "A9", "password": "AdminPass9!"})
	if out["success"] != true {
		t.Fatalf("login failed: %v", out)
	}

	code, ok := srv.LatestOTP("admin:A9")
	if !ok || len(code) != 6 {
		t.Fatalf("expected a 6-digit OTP, got %q", code)
	}

	out = postJSON(t, ts.URL+"/admin/verify-otp", map[string]any{"adminId": "A9", "otp": code})
	if out["success"] != true || out["token"] == "" {
		t.Fatalf("verify failed: %v", out)
	}
	admin, _ := out["admin"].(map[string]any)
	if admin["adminId"] != "A9" {
		t.Errorf("unexpected admin payload %v", out["admin"])
	}

	// The code is single-use.
	out = postJSON(t, ts.URL+"/admin/verify-otp", map[string]any{"adminId": "A9", "otp": code})
	if out["success"] != false {
		t.Errorf("expected a consumed OTP to fail, got %v", out)
	}
}

func TestExpiredOTPReported(t *testing.T) {
	srv, ts := newStub(t)
	srv.SeedAdmin("A9", "Admin Nine", "a9@medisoc.example", "AdminPass9!")

	postJSON(t, ts.URL+"/admin/login", map[string]any{"adminId": "A9", "password": "AdminPass9!"})
	code, _ := srv.LatestOTP("admin:A9")
	if err := srv.ExpireOTP("admin:A9"); err != nil {
		t.Fatalf("expire: %v", err)
	}

	out := postJSON(t, ts.URL+"/admin/verify-otp", map[string]any{"adminId": "A9", "otp": code})
	if out["success"] != false {
		t.Fatalf("expected failure, got %v", out)
	}
	if msg, _ := out["message"].(string); msg != "OTP expired. Please log in again." {
		t.Errorf("unexpected message %q", msg)
	}
}

func registerBody(t *testing.T, email string, docSize int) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	w.WriteField("name", "Dr. Applicant")
	w.WriteField("email", email)
	w.WriteField("phone", "9000000000")
	w.WriteField("speciality", "Radiology")
	w.WriteField("qualification", "MBBS")
	w.WriteField("agreeWithTerms", "true")

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="documentImage"; filename="doc.pdf"`)
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create document part: %v", err)
	}
	part.Write(bytes.Repeat([]byte("x"), docSize))
	w.Close()
	return body, w.FormDataContentType()
}

func TestRegisterThenVerify(t *testing.T) {
	srv, ts := newStub(t)

	body, contentType := registerBody(t, "new@medisoc.example", 128)
	resp, err := http.Post(ts.URL+"/member/register", contentType, body)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if out["success"] != true || out["email"] != "new@medisoc.example" {
		t.Fatalf("register failed: %v", out)
	}

	// Duplicate email is refused.
	body, contentType = registerBody(t, "new@medisoc.example", 128)
	resp, err = http.Post(ts.URL+"/member/register", contentType, body)
	if err != nil {
		t.Fatalf("register duplicate: %v", err)
	}
	json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if out["success"] != false {
		t.Fatalf("expected duplicate rejection, got %v", out)
	}

	code, ok := srv.LatestOTP("reg:new@medisoc.example")
	if !ok {
		t.Fatal("no registration OTP recorded")
	}
	out = postJSON(t, ts.URL+"/member/verify-otp", map[string]any{"email": "new@medisoc.example", "otp": code})
	if out["success"] != true {
		t.Fatalf("verify failed: %v", out)
	}
}

func TestResendOTPRateLimited(t *testing.T) {
	_, ts := newStub(t)

	body, contentType := registerBody(t, "limited@medisoc.example", 64)
	resp, err := http.Post(ts.URL+"/member/register", contentType, body)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp.Body.Close()

	// Burst of 3 passes, the 4th immediate request is throttled.
	for i := 0; i < 3; i++ {
		out := postJSON(t, ts.URL+"/member/resend-otp", map[string]any{"email": "limited@medisoc.example"})
		if out["success"] != true {
			t.Fatalf("resend %d failed: %v", i+1, out)
		}
	}
	out := postJSON(t, ts.URL+"/member/resend-otp", map[string]any{"email": "limited@medisoc.example"})
	if out["success"] != false {
		t.Fatalf("expected the 4th resend to be throttled, got %v", out)
	}
}

func TestProfileRequiresBearer(t *testing.T) {
	srv, ts := newStub(t)
	srv.SeedMember("M9", "Dr. Nine", "m9@medisoc.example", "MemberPass9!", false)

	resp, err := http.Get(ts.URL + "/member/profile")
	if err != nil {
		t.Fatalf("GET profile: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.StatusCode)
	}

	out := postJSON(t, ts.URL+"/member/login", map[string]any{"uniqueId": "M9", "password": "MemberPass9!"})
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatalf("login failed: %v", out)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/member/profile", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET profile with token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var profile map[string]any
	json.NewDecoder(resp.Body).Decode(&profile)
	member, _ := profile["member"].(map[string]any)
	if member["uniqueId"] != "M9" {
		t.Errorf("unexpected profile %v", profile)
	}
}
