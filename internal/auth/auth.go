// Package auth holds the singleton moderator credential and the bearer
// tokens that guard the administrative endpoints.
package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/pbkdf2"
	"gorm.io/gorm"

	"github.com/sujalbistaa/driftbottle/internal/models"
)

const (
	adminRowID   = 1
	pbkdf2Iters  = 10000
	pbkdf2KeyLen = 64
	tokenTTL     = 24 * time.Hour
	tokenIssuer  = "driftbottle"
	tokenSubject = "admin-auth"
	saltLen      = 16
)

// ErrAlreadyInitialized is returned when the admin password is set twice.
var ErrAlreadyInitialized = errors.New("admin password already set")

// Claims is the token payload for moderator sessions.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Admin manages the single moderator credential row and its tokens.
type Admin struct {
	db     *gorm.DB
	secret []byte
}

// New returns an Admin signing tokens with secret.
func New(db *gorm.DB, secret string) *Admin {
	return &Admin{db: db, secret: []byte(secret)}
}

// Initialized reports whether the admin password has been set.
func (a *Admin) Initialized() (bool, error) {
	var count int64
	err := a.db.Model(&models.Admin{}).Where("id = ?", adminRowID).Count(&count).Error
	return count > 0, err
}

// SetPassword stores the moderator password. It may only be called once;
// a second call fails with ErrAlreadyInitialized.
func (a *Admin) SetPassword(password string) error {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	hash := pbkdf2.Key([]byte(password), salt, pbkdf2Iters, pbkdf2KeyLen, sha512.New)

	return a.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Admin{}).Where("id = ?", adminRowID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyInitialized
		}
		return tx.Create(&models.Admin{
			ID:           adminRowID,
			PasswordHash: hex.EncodeToString(hash),
			Salt:         hex.EncodeToString(salt),
		}).Error
	})
}

// CheckPassword reports whether password matches the stored credential.
// An unset credential always fails.
func (a *Admin) CheckPassword(password string) (bool, error) {
	var row models.Admin
	err := a.db.First(&row, "id = ?", adminRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	salt, err := hex.DecodeString(row.Salt)
	if err != nil {
		return false, err
	}
	hash := pbkdf2.Key([]byte(password), salt, pbkdf2Iters, pbkdf2KeyLen, sha512.New)
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(hash)), []byte(row.PasswordHash)) == 1, nil
}

// GenerateToken issues a signed moderator session token valid for 24h.
func (a *Admin) GenerateToken() (string, error) {
	claims := &Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
			Subject:   tokenSubject,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken checks the signature, expiry and role of a session token.
func (a *Admin) ValidateToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Role != "admin" {
		return errors.New("invalid token")
	}
	return nil
}
