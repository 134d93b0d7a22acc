package authflow

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// PasswordSpecialChars is the set of symbols that satisfy the
// special-character rule of the password policy.
const PasswordSpecialChars = "!@#$%^&*()-_=+[]{}|;:'\",.<>/?`~"

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ValidatePassword checks a new password against the portal policy and
// returns an empty string when it passes, or the first violation message.
// The check runs before any network call; a weak password never leaves
// the client.
func ValidatePassword(pw string) string {
	if len(pw) < MinPasswordLength {
		return fmt.Sprintf("Password must be at least %d characters long.", MinPasswordLength)
	}

	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			special = true
		}
	}

	switch {
	case !upper:
		return "Password must contain at least one uppercase letter."
	case !lower:
		return "Password must contain at least one lowercase letter."
	case !digit:
		return "Password must contain at least one digit."
	case !special:
		return "Password must contain at least one special character."
	}
	return ""
}

// Qualifications lists the accepted qualification values on the
// registration form.
var Qualifications = []string{"MBBS", "MD", "MS", "DNB", "DM", "MCh", "Diploma", "Other"}

func qualificationAllowed(q string) bool {
	for _, allowed := range Qualifications {
		if q == allowed {
			return true
		}
	}
	return false
}

// Validate checks the draft invariants locally and returns field-scoped
// errors. An empty map means the draft may be submitted.
func (d RegistrationDraft) Validate(maxDocBytes int64) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(d.Name) == "" {
		errs["name"] = "Name is required."
	}
	if strings.TrimSpace(d.Email) == "" {
		errs["email"] = "Email is required."
	} else if _, err := mail.ParseAddress(strings.TrimSpace(d.Email)); err != nil {
		errs["email"] = "Enter a valid email address."
	}
	if strings.TrimSpace(d.Phone) == "" {
		errs["phone"] = "Phone number is required."
	}
	if strings.TrimSpace(d.Speciality) == "" {
		errs["speciality"] = "Speciality is required."
	}

	if len(d.Qualifications) == 0 {
		errs["qualification"] = "Select at least one qualification."
	} else {
		for _, q := range d.Qualifications {
			if !qualificationAllowed(q) {
				errs["qualification"] = fmt.Sprintf("Unknown qualification %q.", q)
				break
			}
		}
	}

	switch {
	case len(d.Document.Data) == 0:
		errs["documentImage"] = "Attach your supporting document."
	case !allowedDocumentType(d.Document.ContentType):
		errs["documentImage"] = "Document must be an image or a PDF."
	case int64(len(d.Document.Data)) > maxDocBytes:
		errs["documentImage"] = fmt.Sprintf("Document must be %d MB or smaller.", maxDocBytes>>20)
	}

	if !d.AgreeWithTerms {
		errs["agreeWithTerms"] = "You must agree to the terms to register."
	}

	return errs
}

func allowedDocumentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}

// cleanName trims and NFC-normalizes a user-entered text field so the
// backend receives one canonical byte representation per name.
func cleanName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// cleanEmail trims and case-folds an email address. A fresh Caser per call:
// Casers are stateful and must not be shared.
func cleanEmail(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
