package api

// StatusReply is the minimal envelope every portal endpoint returns.
type StatusReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// AdminVerifyReply is returned by POST /admin/verify-otp.
type AdminVerifyReply struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Token   string         `json:"token"`
	Admin   map[string]any `json:"admin"`
}

// MemberLoginReply is returned by POST /member/login.
type MemberLoginReply struct {
	Success                bool           `json:"success"`
	Message                string         `json:"message"`
	Token                  string         `json:"token"`
	Member                 map[string]any `json:"member"`
	RequiresPasswordChange bool           `json:"requiresPasswordChange"`
}

// RegisterReply is returned by POST /member/register.
type RegisterReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Email   string `json:"email"`
}

// ProfileReply is returned by GET /member/profile.
type ProfileReply struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Member  map[string]any `json:"member"`
}

// Document is the uploaded registration attachment.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// RegisterForm carries the multipart fields of POST /member/register.
type RegisterForm struct {
	Name           string
	Email          string
	Phone          string
	Speciality     string
	Qualification  []string
	AgreeWithTerms bool
	Document       Document
}
