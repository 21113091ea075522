package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sujalbistaa/driftbottle/internal/models"
)

// Comments owns the comments table. It holds a non-owning reference to the
// records table: a comment can only be created against a currently approved
// record, but later un-approving the record does not touch its comments.
type Comments struct {
	db *gorm.DB
}

// NewComments returns a comment store over the given database handle.
func NewComments(db *gorm.DB) *Comments {
	return &Comments{db: db}
}

// Add creates a pending comment on an approved record. The approval check
// happens at write time inside the same transaction as the insert.
func (c *Comments) Add(recordID, content, commenterIP string) (*models.Comment, error) {
	comment := models.Comment{
		ID:          models.NewID(),
		RecordID:    recordID,
		Content:     content,
		CommenterIP: commenterIP,
		CommentTime: time.Now().UTC(),
		Status:      models.StatusPending,
	}

	err := c.db.Transaction(func(tx *gorm.DB) error {
		var rec models.Record
		err := tx.Select("id").
			Where("id = ? AND status = ?", recordID, models.StatusApproved).
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotApproved
		}
		if err != nil {
			return err
		}
		return tx.Create(&comment).Error
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// Review flips a comment to approved or rejected. Moderation only changes
// status, never content.
func (c *Comments) Review(id string, status models.Status) error {
	if !status.ReviewOutcome() {
		return ErrInvalidStatus
	}
	res := c.db.Model(&models.Comment{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a comment outright. There is no soft delete.
func (c *Comments) Delete(id string) error {
	res := c.db.Where("id = ?", id).Delete(&models.Comment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches one comment regardless of status.
func (c *Comments) Get(id string) (*models.Comment, error) {
	var comment models.Comment
	err := c.db.First(&comment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ApprovedFor returns the publicly visible comments of a record, oldest
// first. The filter is on the comment's own status only.
func (c *Comments) ApprovedFor(recordID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := c.db.
		Where("record_id = ? AND status = ?", recordID, models.StatusApproved).
		Order("comment_time asc").
		Find(&comments).Error
	return comments, err
}

// ListPending returns comments awaiting review, oldest first.
// Administrative read.
func (c *Comments) ListPending() ([]models.Comment, error) {
	var comments []models.Comment
	err := c.db.
		Where("status = ?", models.StatusPending).
		Order("comment_time asc").
		Find(&comments).Error
	return comments, err
}
