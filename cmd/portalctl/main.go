// portalctl drives the portal authentication flows from the command line:
// log in as an admin or member, verify OTPs, register a new member and
// inspect the stored session. It talks to whatever backend PORTAL_BASE_URL
// points at (the devserver by default).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/medisoc/portal-client/internal/api"
	"github.com/medisoc/portal-client/internal/authflow"
	"github.com/medisoc/portal-client/internal/config"
	"github.com/medisoc/portal-client/internal/sessionstore"
)

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: portalctl <command> [flags]

Commands:
  admin-login      -id <adminId> -password <password>
  admin-verify     -id <adminId> -otp <code>
  member-login     -id <uniqueId> -password <password>
  change-password  -id <uniqueId> -current <password> -new <password>
  register         -name <n> -email <e> -phone <p> -speciality <s>
                   -qualifications <csv> -document <path> -agree
  verify-email     -email <e> -otp <code>
  resend-otp       -email <e>
  whoami
  logout`)
	os.Exit(2)
}

func main() {
	_ = godotenv.Load(".env.local")

	if len(os.Args) < 2 {
		usage()
	}
	command := os.Args[1]
	args := os.Args[2:]

	cfg, err := config.Load(os.Getenv("PORTAL_CONFIG"))
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	store, err := sessionstore.OpenSQLite(cfg.SessionDBPath)
	if err != nil {
		log.Fatal("Failed to open session store: ", err)
	}

	client := api.NewClient(cfg.BaseURL, cfg.RequestTimeout())
	controller := authflow.New(client, store, authflow.Options{
		OTPWindow:        cfg.OTPWindow(),
		MaxDocumentBytes: cfg.MaxDocumentBytes,
	})

	ctx := context.Background()

	switch command {
	case "admin-login":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		id := fs.String("id", "", "admin ID")
		password := fs.String("password", "", "admin password")
		fs.Parse(args)
		report(controller.LoginAdmin(ctx, *id, *password))

	case "admin-verify":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		id := fs.String("id", "", "admin ID")
		otp := fs.String("otp", "", "6-digit OTP")
		fs.Parse(args)
		report(controller.VerifyAdminOTP(ctx, *id, *otp))

	case "member-login":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		id := fs.String("id", "", "member unique ID")
		password := fs.String("password", "", "member password")
		fs.Parse(args)
		res := controller.LoginMember(ctx, *id, *password)
		report(res.Result)
		if res.Success && res.RequiresPasswordChange {
			fmt.Println("Your password must be changed before continuing (run change-password).")
		}

	case "change-password":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		id := fs.String("id", "", "member unique ID")
		current := fs.String("current", "", "current password")
		newPass := fs.String("new", "", "new password")
		fs.Parse(args)
		report(controller.ChangePassword(ctx, *id, *current, *newPass))

	case "register":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		name := fs.String("name", "", "full name")
		email := fs.String("email", "", "email address")
		phone := fs.String("phone", "", "phone number")
		speciality := fs.String("speciality", "", "medical speciality")
		quals := fs.String("qualifications", "", "comma-separated qualifications (e.g. MBBS,MD)")
		document := fs.String("document", "", "path to supporting document (image or PDF)")
		agree := fs.Bool("agree", false, "agree with the terms")
		fs.Parse(args)

		draft := authflow.RegistrationDraft{
			Name:           *name,
			Email:          *email,
			Phone:          *phone,
			Speciality:     *speciality,
			AgreeWithTerms: *agree,
		}
		if *quals != "" {
			draft.Qualifications = strings.Split(*quals, ",")
		}
		if *document != "" {
			data, err := os.ReadFile(*document)
			if err != nil {
				log.Fatal("Failed to read document: ", err)
			}
			draft.Document = api.Document{
				FileName:    filepath.Base(*document),
				ContentType: documentContentType(*document),
				Data:        data,
			}
		}

		res := controller.Register(ctx, draft)
		report(res.Result)
		for field, msg := range res.FieldErrors {
			fmt.Printf("  %s: %s\n", field, msg)
		}

	case "verify-email":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		email := fs.String("email", "", "registration email")
		otp := fs.String("otp", "", "6-digit OTP")
		fs.Parse(args)
		report(controller.VerifyRegistrationOTP(ctx, *email, *otp))

	case "resend-otp":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		email := fs.String("email", "", "registration email")
		fs.Parse(args)
		report(controller.ResendOTP(ctx, *email))

	case "whoami":
		session := controller.CurrentSession()
		if session == nil {
			fmt.Println("Not signed in.")
			return
		}
		fmt.Printf("Signed in as %s (%s)\n", session.PrincipalID, session.Role)
		for key, value := range session.Profile {
			fmt.Printf("  %s: %v\n", key, value)
		}

	case "logout":
		report(controller.Logout())

	default:
		usage()
	}
}

func report(res authflow.Result) {
	if res.Success {
		fmt.Println("OK:", res.Message)
		return
	}
	fmt.Println("FAILED:", res.Message)
}

func documentContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
