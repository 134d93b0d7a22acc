package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/medisoc/portal-client/internal/stubserver"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Portal stub backend is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}
	secret := os.Getenv("STUB_TOKEN_SECRET")
	if secret == "" {
		secret = "dev-only-secret"
	}

	srv, err := stubserver.New(secret)
	if err != nil {
		log.Fatal("Failed to start stub server: ", err)
	}

	// Seed accounts so the flows are usable out of the box. OTPs are
	// printed to this process's log in place of email delivery.
	if err := srv.SeedAdmin("ADM001", "Console Admin", "admin@medisoc.example", "Adm1n!Pass"); err != nil {
		log.Fatal("Failed to seed admin: ", err)
	}
	if err := srv.SeedMember("MS-1001", "Dr. A. Seeded", "member@medisoc.example", "Memb3r!Pass", true); err != nil {
		log.Fatal("Failed to seed member: ", err)
	}

	r := chi.NewRouter()
	r.Use(stubserver.CORSMiddleware)
	r.Get("/", RootHandler)
	r.Mount("/admin", srv.AdminRoutes())
	r.Mount("/member", srv.MemberRoutes())

	fmt.Printf("Stub backend listening on port :%s...\n", port)
	http.ListenAndServe("0.0.0.0:"+port, r)
}
