package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnauthorized is returned when the backend rejects the bearer token.
// Callers treat it as "the session is no longer valid".
var ErrUnauthorized = errors.New("backend rejected the bearer token")

// Client is an HTTP client for the member portal REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a portal API client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AdminLogin posts the first-factor admin credentials. A successful reply
// means an OTP has been sent; no token is issued at this stage.
func (c *Client) AdminLogin(ctx context.Context, adminID, password string) (*StatusReply, error) {
	var out StatusReply
	err := c.postJSON(ctx, "/admin/login", "", map[string]string{
		"adminId":  adminID,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminVerifyOTP exchanges the admin OTP for a bearer token and profile.
func (c *Client) AdminVerifyOTP(ctx context.Context, adminID, code string) (*AdminVerifyReply, error) {
	var out AdminVerifyReply
	err := c.postJSON(ctx, "/admin/verify-otp", "", map[string]string{
		"adminId": adminID,
		"otp":     code,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MemberLogin authenticates a member. There is no OTP step; a successful
// reply carries the token, the profile and the forced-password-change flag.
func (c *Client) MemberLogin(ctx context.Context, uniqueID, password string) (*MemberLoginReply, error) {
	var out MemberLoginReply
	err := c.postJSON(ctx, "/member/login", "", map[string]string{
		"uniqueId": uniqueID,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MemberChangePassword replaces the member's password. The current password
// authenticates the request; the token is attached when present.
func (c *Client) MemberChangePassword(ctx context.Context, token, uniqueID, currentPassword, newPassword string) (*StatusReply, error) {
	var out StatusReply
	err := c.postJSON(ctx, "/member/change-password", token, map[string]string{
		"uniqueId":        uniqueID,
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MemberRegister submits the registration form and its document as multipart.
func (c *Client) MemberRegister(ctx context.Context, form RegisterForm) (*RegisterReply, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := map[string]string{
		"name":           form.Name,
		"email":          form.Email,
		"phone":          form.Phone,
		"speciality":     form.Speciality,
		"agreeWithTerms": strconv.FormatBool(form.AgreeWithTerms),
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("writing form field %s: %w", name, err)
		}
	}
	for _, q := range form.Qualification {
		if err := w.WriteField("qualification", q); err != nil {
			return nil, fmt.Errorf("writing qualification field: %w", err)
		}
	}

	part, err := filePart(w, "documentImage", form.Document)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(form.Document.Data); err != nil {
		return nil, fmt.Errorf("writing document part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/member/register", "", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out RegisterReply
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MemberVerifyOTP confirms the registration OTP for an email address.
func (c *Client) MemberVerifyOTP(ctx context.Context, email, code string) (*StatusReply, error) {
	var out StatusReply
	err := c.postJSON(ctx, "/member/verify-otp", "", map[string]string{
		"email": email,
		"otp":   code,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MemberResendOTP asks the backend to deliver a fresh registration OTP.
func (c *Client) MemberResendOTP(ctx context.Context, email string) (*StatusReply, error) {
	var out StatusReply
	err := c.postJSON(ctx, "/member/resend-otp", "", map[string]string{
		"email": email,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MemberProfile fetches the authenticated member's profile.
func (c *Client) MemberProfile(ctx context.Context, token string) (*ProfileReply, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/member/profile", token, nil)
	if err != nil {
		return nil, err
	}

	var out ProfileReply
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// filePart creates the multipart section for the uploaded document with an
// explicit Content-Type, which mime/multipart's CreateFormFile does not allow.
func filePart(w *multipart.Writer, field string, doc Document) (io.Writer, error) {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, doc.FileName))
	h.Set("Content-Type", doc.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating document part: %w", err)
	}
	return part, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, token, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// do executes the request and decodes the JSON envelope into out. The portal
// reports domain failures inside the envelope, so any status with a JSON body
// decodes normally; 401 is the exception and maps to ErrUnauthorized.
func (c *Client) do(req *http.Request, out any) error {
	LogRequest(req.Method, req.URL.Path)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		LogError(req.URL.Path, err)
		return fmt.Errorf("portal request: %w", err)
	}
	defer resp.Body.Close()

	LogResponse(req.URL.Path, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}
