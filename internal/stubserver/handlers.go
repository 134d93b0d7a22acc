package stubserver

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// fail writes the portal's domain-failure envelope. Domain failures are
// HTTP 200 with success=false; only auth-token problems use 401.
func fail(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": false,
		"message": message,
	})
}

// AdminLoginHandler checks the admin's first factor and sends an OTP.
func (s *Server) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminID  string `json:"adminId"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, "Invalid request format.")
		return
	}
	if req.AdminID == "" || req.Password == "" {
		fail(w, "Admin ID and password are required.")
		return
	}

	var admin Admin
	if err := s.db.First(&admin, "admin_id = ?", req.AdminID).Error; err != nil {
		fail(w, "Invalid admin ID or password.")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.HashedPassword), []byte(req.Password)) != nil {
		fail(w, "Invalid admin ID or password.")
		return
	}

	if _, err := s.issueOTP("admin:" + admin.AdminID); err != nil {
		fail(w, "Could not send the OTP. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "OTP sent to your registered email.",
	})
}

// AdminVerifyOTPHandler exchanges a valid OTP for a bearer token and the
// admin profile.
func (s *Server) AdminVerifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminID string `json:"adminId"`
		OTP     string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, "Invalid request format.")
		return
	}

	switch s.checkOTP("admin:"+req.AdminID, req.OTP) {
	case otpMissing:
		fail(w, "No pending login for this admin ID. Please log in again.")
		return
	case otpExpired:
		fail(w, "OTP expired. Please log in again.")
		return
	case otpWrong:
		fail(w, "Invalid OTP.")
		return
	}

	var admin Admin
	if err := s.db.First(&admin, "admin_id = ?", req.AdminID).Error; err != nil {
		fail(w, "Admin account not found.")
		return
	}
	token, err := s.signToken(admin.AdminID, "admin")
	if err != nil {
		fail(w, "Could not issue a session token.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"admin":   admin,
		"message": "Login successful.",
	})
}

// MemberLoginHandler authenticates a member in one step and reports whether
// the issued credentials still need a password change.
func (s *Server) MemberLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UniqueID string `json:"uniqueId"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, "Invalid request format.")
		return
	}

	var member Member
	if err := s.db.First(&member, "unique_id = ?", req.UniqueID).Error; err != nil {
		fail(w, "Invalid member ID or password.")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(member.HashedPassword), []byte(req.Password)) != nil {
		fail(w, "Invalid member ID or password.")
		return
	}

	token, err := s.signToken(member.UniqueID, "member")
	if err != nil {
		fail(w, "Could not issue a session token.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":                true,
		"token":                  token,
		"member":                 member,
		"requiresPasswordChange": member.RequirePasswordChange,
		"message":                "Login successful.",
	})
}

// MemberChangePasswordHandler replaces the member password after verifying
// the current one. No new token is issued; existing sessions stay valid
// until logout.
func (s *Server) MemberChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UniqueID        string `json:"uniqueId"`
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, "Invalid request format.")
		return
	}
	if len(req.NewPassword) < 8 {
		fail(w, "New password must be at least 8 characters.")
		return
	}

	var member Member
	if err := s.db.First(&member, "unique_id = ?", req.UniqueID).Error; err != nil {
		fail(w, "Invalid member ID or password.")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(member.HashedPassword), []byte(req.CurrentPassword)) != nil {
		fail(w, "Current password is incorrect.")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		fail(w, "Could not update the password.")
		return
	}
	updates := map[string]any{
		"hashed_password":         string(hashed),
		"require_password_change": false,
	}
	if err := s.db.Model(&member).Updates(updates).Error; err != nil {
		fail(w, "Could not update the password.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password changed successfully. Please log in again.",
	})
}

// MemberRegisterHandler accepts the multipart registration form, stores the
// application and sends a verification OTP to the supplied email.
func (s *Server) MemberRegisterHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		fail(w, "Invalid registration form.")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	phone := strings.TrimSpace(r.FormValue("phone"))
	speciality := strings.TrimSpace(r.FormValue("speciality"))
	qualifications := r.Form["qualification"]

	if name == "" || email == "" || phone == "" || speciality == "" || len(qualifications) == 0 {
		fail(w, "All registration fields are required.")
		return
	}
	if r.FormValue("agreeWithTerms") != "true" {
		fail(w, "You must agree to the terms to register.")
		return
	}

	file, header, err := r.FormFile("documentImage")
	if err != nil {
		fail(w, "Supporting document is required.")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
		fail(w, "Document must be an image or a PDF.")
		return
	}
	if header.Size > s.maxDocBytes {
		fail(w, "Document is too large.")
		return
	}

	var count int64
	s.db.Model(&Member{}).Where("email = ?", email).Count(&count)
	if count == 0 {
		s.db.Model(&Application{}).Where("email = ?", email).Count(&count)
	}
	if count > 0 {
		fail(w, "This email is already registered.")
		return
	}

	app := Application{
		ID:            uuid.NewString(),
		Name:          name,
		Email:         email,
		Phone:         phone,
		Speciality:    speciality,
		Qualification: strings.Join(qualifications, ","),
		DocumentName:  header.Filename,
		DocumentSize:  header.Size,
		Status:        StatusOTPPending,
	}
	if err := s.db.Create(&app).Error; err != nil {
		fail(w, "Could not save your registration. Please try again.")
		return
	}

	if _, err := s.issueOTP("reg:" + email); err != nil {
		fail(w, "Could not send the OTP. Please try again.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"email":   email,
		"message": "OTP sent to your email for verification.",
	})
}

// MemberVerifyOTPHandler confirms the registration email and queues the
// application for admin review.
func (s *Server) MemberVerifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, "Invalid request format.")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	switch s.checkOTP("reg:"+email, req.OTP) {
	case otpMissing:
		fail(w, "No pending registration for this email.")
		return
	case otpExpired:
		fail(w, "OTP expired. Please request a new one.")
		return
	case otpWrong:
		fail(w, "Invalid OTP.")
		return
	}

	if err := s.db.Model(&Application{}).
		Where("email = ?", email).
		Update("status", StatusPendingReview).Error; err != nil {
		fail(w, "Could not update your registration.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email verified. Your registration is awaiting admin review.",
	})
}

// MemberResendOTPHandler re-issues the registration OTP, rate limited per
// email address.
func (s *Server) MemberResendOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, "Invalid request format.")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if !s.resendLimiter(email).Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"success": false,
			"message": "Too many OTP requests. Please wait before retrying.",
		})
		return
	}

	var app Application
	if err := s.db.First(&app, "email = ? AND status = ?", email, StatusOTPPending).Error; err != nil {
		fail(w, "No pending registration for this email.")
		return
	}

	if _, err := s.issueOTP("reg:" + email); err != nil {
		fail(w, "Could not send the OTP. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "A new OTP has been sent to your email.",
	})
}

// MemberProfileHandler returns the authenticated member's profile. The
// bearer middleware has already placed the subject in the context.
func (s *Server) MemberProfileHandler(w http.ResponseWriter, r *http.Request) {
	subject, ok := subjectFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"success": false,
			"message": "Missing authentication.",
		})
		return
	}

	var member Member
	if err := s.db.First(&member, "unique_id = ?", subject).Error; err != nil {
		fail(w, "Member not found.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"member":  member,
	})
}
