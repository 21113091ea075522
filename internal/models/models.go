package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the moderation state of a record or comment.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// Valid reports whether s is one of the known moderation states.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// ReviewOutcome reports whether s is a state a moderator may assign.
func (s Status) ReviewOutcome() bool {
	return s == StatusApproved || s == StatusRejected
}

// Record is a single anonymous submission ("bottle").
//
// OriginalText and OriginalTitle hold the content as it stood at the last
// approval; they are snapshotted on approval and only backfilled (never
// overwritten) by an edit. Fantasy must always equal the number of linked
// RecordFile rows.
type Record struct {
	ID            string       `gorm:"primaryKey" json:"id"`
	Text          string       `json:"text"`
	Title         string       `json:"title"`
	OriginalText  string       `json:"originalText"`
	OriginalTitle string       `json:"originalTitle"`
	UploadTime    time.Time    `gorm:"not null" json:"uploadTime"`
	UploaderIP    string       `gorm:"index" json:"uploaderIP"`
	Status        Status       `gorm:"not null;default:pending;index" json:"status"`
	Carrier       int          `gorm:"not null;default:0" json:"carrier"`
	Fantasy       int          `gorm:"not null;default:0" json:"fantasy"`
	Files         []RecordFile `gorm:"foreignKey:RecordID" json:"-"`
	Filenames     []string     `gorm:"-" json:"filenames"`
}

// RecordFile links one stored media file to its owning record.
type RecordFile struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	RecordID string `gorm:"not null;index" json:"recordId"`
	Filename string `gorm:"not null" json:"filename"`
}

// Comment is attached to an approved record and independently moderated.
type Comment struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	RecordID    string    `gorm:"not null;index" json:"recordId"`
	Content     string    `gorm:"not null" json:"content"`
	CommenterIP string    `json:"commenterIP"`
	CommentTime time.Time `gorm:"not null" json:"commentTime"`
	Status      Status    `gorm:"not null;default:pending;index" json:"status"`
}

// Key is a day-scoped, IP+device-bound, single-use submission credential.
// The key value is deterministic (hash of ip+userAgent+day), so re-requesting
// on the same day upserts the same row and resets Used.
type Key struct {
	Key        string `gorm:"primaryKey" json:"key"`
	IP         string `gorm:"not null" json:"ip"`
	UserAgent  string `gorm:"not null" json:"userAgent"`
	CreateDate string `gorm:"not null" json:"createDate"`
	Used       bool   `gorm:"not null;default:false" json:"used"`
}

// Admin is the singleton moderator credential row.
type Admin struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	PasswordHash string `gorm:"not null" json:"-"`
	Salt         string `gorm:"not null" json:"-"`
}

// NewID returns a fresh record/comment identifier: a millisecond timestamp
// in base36 plus a random suffix. Unique by construction; a primary key
// violation on insert is treated as an internal error.
func NewID() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return ts + "-" + suffix
}
