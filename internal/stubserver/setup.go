// Package stubserver is an in-process double of the member portal backend.
// It implements the documented REST endpoints against an in-memory SQLite
// database, close enough to the real thing for local development and for
// integration-testing the client flows end to end.
package stubserver

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Server holds the stub backend's state.
type Server struct {
	db          *gorm.DB
	secret      []byte
	otpTTL      time.Duration
	maxDocBytes int64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a stub server with a fresh in-memory database. secret signs
// the issued bearer tokens.
func New(secret string) (*Server, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening stub db: %w", err)
	}

	// A second pooled connection would see its own empty :memory: database.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrapping stub db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Admin{}, &Member{}, &Application{}, &OTP{}); err != nil {
		return nil, fmt.Errorf("migrating stub db: %w", err)
	}

	return &Server{
		db:          db,
		secret:      []byte(secret),
		otpTTL:      5 * time.Minute,
		maxDocBytes: 5 << 20,
		limiters:    make(map[string]*rate.Limiter),
	}, nil
}

// SeedAdmin inserts an admin account with a bcrypt-hashed password.
func (s *Server) SeedAdmin(adminID, name, email, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}
	admin := Admin{
		AdminID:        adminID,
		Name:           name,
		Email:          email,
		HashedPassword: string(hashed),
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}
	return nil
}

// SeedMember inserts a member account. requireChange marks the account as
// carrying society-issued initial credentials.
func (s *Server) SeedMember(uniqueID, name, email, password string, requireChange bool) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing member password: %w", err)
	}
	member := Member{
		UniqueID:              uniqueID,
		Name:                  name,
		Email:                 email,
		Phone:                 "0000000000",
		Speciality:            "General Medicine",
		HashedPassword:        string(hashed),
		RequirePasswordChange: requireChange,
	}
	if err := s.db.Create(&member).Error; err != nil {
		return fmt.Errorf("seeding member: %w", err)
	}
	return nil
}

// issueOTP generates a 6-digit code for a key, replacing any earlier code.
// Delivery is a log line; there is no real mail here.
func (s *Server) issueOTP(key string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	row := OTP{Key: key, Code: code, ExpiresAt: time.Now().Add(s.otpTTL)}
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return "", fmt.Errorf("storing otp: %w", err)
	}

	log.Printf("[stubserver] OTP for %s: %s", key, code)
	return code, nil
}

// LatestOTP exposes the current code for a key so tests can read what the
// "email" delivered.
func (s *Server) LatestOTP(key string) (string, bool) {
	var row OTP
	if err := s.db.First(&row, "key = ?", key).Error; err != nil {
		return "", false
	}
	return row.Code, true
}

// ExpireOTP forces the code for a key into the past.
func (s *Server) ExpireOTP(key string) error {
	return s.db.Model(&OTP{}).
		Where("key = ?", key).
		Update("expires_at", time.Now().Add(-time.Minute)).Error
}

// otpState is the outcome of checking a submitted code.
type otpState int

const (
	otpOK otpState = iota
	otpMissing
	otpExpired
	otpWrong
)

func (s *Server) checkOTP(key, code string) otpState {
	var row OTP
	if err := s.db.First(&row, "key = ?", key).Error; err != nil {
		return otpMissing
	}
	if time.Now().After(row.ExpiresAt) {
		return otpExpired
	}
	if row.Code != code {
		return otpWrong
	}
	s.db.Delete(&OTP{}, "key = ?", key)
	return otpOK
}

// signToken issues an HS256 bearer token for a principal.
func (s *Server) signToken(subject, role string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"jti":  uuid.NewString(),
		"iat":  jwt.NewNumericDate(time.Now()),
		"exp":  jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// parseToken validates a bearer token and returns its subject and role.
func (s *Server) parseToken(tokenString string) (subject, role string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("parsing token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token claims")
	}
	subject, _ = claims["sub"].(string)
	role, _ = claims["role"].(string)
	return subject, role, nil
}

// resendLimiter returns the per-email limiter for the resend endpoint:
// burst of 3, then one request every 30 seconds.
func (s *Server) resendLimiter(email string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[email]
	if !ok {
		lim = rate.NewLimiter(rate.Every(30*time.Second), 3)
		s.limiters[email] = lim
	}
	return lim
}
