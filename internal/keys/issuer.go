// Package keys implements the per-IP+device, day-scoped, single-use
// submission credential protocol.
//
// The key value is a deterministic hash of ip+userAgent+day rather than a
// random token: re-requesting a key on the same day from the same device is
// an idempotent upsert that resets the used flag. This is a known weak
// security tradeoff the public contract depends on, not something to fix.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/driftbottle/internal/models"
)

// ErrUploadLimit is returned when the caller's IP already created a record
// today; key issuance is refused before a credential ever exists.
var ErrUploadLimit = errors.New("upload limit reached for today")

// Issuer owns the keys table and the daily upload limit check.
type Issuer struct {
	db  *gorm.DB
	now func() time.Time
}

// NewIssuer returns an Issuer backed by the given database handle.
func NewIssuer(db *gorm.DB) *Issuer {
	return &Issuer{db: db, now: time.Now}
}

// Generate derives the deterministic key value for an ip, user agent and
// calendar day (UTC, formatted 2006-01-02).
func Generate(ip, userAgent, day string) string {
	sum := sha256.Sum256([]byte(ip + userAgent + day))
	return hex.EncodeToString(sum[:])
}

// Issue hands out today's key for the caller, refusing with ErrUploadLimit
// when the IP has already submitted a record today. Re-issuing overwrites
// the existing row and resets used, invalidating a prior unconsumed flow
// only by overwrite.
func (i *Issuer) Issue(ip, userAgent string) (string, error) {
	start, end := i.dayRange()
	var n int64
	err := i.db.Model(&models.Record{}).
		Where("uploader_ip = ? AND upload_time >= ? AND upload_time < ?", ip, start, end).
		Count(&n).Error
	if err != nil {
		return "", err
	}
	if n > 0 {
		return "", ErrUploadLimit
	}

	day := i.day()
	key := models.Key{
		Key:        Generate(ip, userAgent, day),
		IP:         ip,
		UserAgent:  userAgent,
		CreateDate: day,
		Used:       false,
	}
	err = i.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"ip", "user_agent", "create_date", "used"}),
	}).Create(&key).Error
	if err != nil {
		return "", err
	}
	return key.Key, nil
}

// Validate reports whether a key row exists with exactly matching
// (key, ip, userAgent), is unused, and was created today. A mismatch or a
// day rollover is a boundary condition, not an error.
func (i *Issuer) Validate(key, ip, userAgent string) (bool, error) {
	var row models.Key
	err := i.db.
		Where("key = ? AND ip = ? AND user_agent = ? AND used = ?", key, ip, userAgent, false).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return row.CreateDate == i.day(), nil
}

// Consume marks the key used and reports whether a row was actually updated.
// Consuming an already-used or missing key is a no-op returning false.
func (i *Issuer) Consume(key string) (bool, error) {
	res := i.db.Model(&models.Key{}).
		Where("key = ? AND used = ?", key, false).
		Update("used", true)
	return res.RowsAffected > 0, res.Error
}

func (i *Issuer) day() string {
	return i.now().UTC().Format("2006-01-02")
}

func (i *Issuer) dayRange() (time.Time, time.Time) {
	t := i.now().UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
