package stubserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// AdminRoutes returns the /admin subrouter.
func (s *Server) AdminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", s.AdminLoginHandler)
	r.Post("/verify-otp", s.AdminVerifyOTPHandler)
	return r
}

// MemberRoutes returns the /member subrouter.
func (s *Server) MemberRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", s.MemberLoginHandler)
	r.Post("/change-password", s.MemberChangePasswordHandler)
	r.Post("/register", s.MemberRegisterHandler)
	r.Post("/verify-otp", s.MemberVerifyOTPHandler)
	r.Post("/resend-otp", s.MemberResendOTPHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.BearerAuth)
		r.Get("/profile", s.MemberProfileHandler)
	})

	return r
}

// Router assembles the full portal API surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Mount("/admin", s.AdminRoutes())
	r.Mount("/member", s.MemberRoutes())
	return r
}
