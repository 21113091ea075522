package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sujalbistaa/driftbottle/internal/models"
)

func newTestComments(t *testing.T) (*Comments, *Records, *gorm.DB) {
	t.Helper()
	records, _, db := newTestRecords(t)
	return NewComments(db), records, db
}

func approvedRecord(t *testing.T, records *Records) *models.Record {
	t.Helper()
	rec, err := records.Create("text", "title", "1.2.3.4", 0, nil)
	require.NoError(t, err)
	require.NoError(t, records.Review(rec.ID, models.StatusApproved))
	return rec
}

func TestAddCommentRequiresApprovedRecord(t *testing.T) {
	comments, records, _ := newTestComments(t)

	pending, err := records.Create("text", "title", "1.2.3.4", 0, nil)
	require.NoError(t, err)

	_, err = comments.Add(pending.ID, "hi", "5.6.7.8")
	assert.ErrorIs(t, err, ErrRecordNotApproved)

	_, err = comments.Add("missing", "hi", "5.6.7.8")
	assert.ErrorIs(t, err, ErrRecordNotApproved)

	rejected, err := records.Create("text", "title", "2.2.2.2", 0, nil)
	require.NoError(t, err)
	require.NoError(t, records.Review(rejected.ID, models.StatusRejected))
	_, err = comments.Add(rejected.ID, "hi", "5.6.7.8")
	assert.ErrorIs(t, err, ErrRecordNotApproved)
}

func TestAddCommentStartsPending(t *testing.T) {
	comments, records, _ := newTestComments(t)
	rec := approvedRecord(t, records)

	comment, err := comments.Add(rec.ID, "first!", "5.6.7.8")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, comment.Status)
	assert.Equal(t, rec.ID, comment.RecordID)
	assert.Equal(t, "first!", comment.Content)
	assert.NotEmpty(t, comment.ID)
}

func TestApprovedForFiltersAndOrders(t *testing.T) {
	comments, records, db := newTestComments(t)
	rec := approvedRecord(t, records)

	// Insert directly to control timestamps and statuses.
	base := time.Now().UTC()
	rows := []models.Comment{
		{ID: models.NewID(), RecordID: rec.ID, Content: "newest", CommentTime: base.Add(2 * time.Minute), Status: models.StatusApproved},
		{ID: models.NewID(), RecordID: rec.ID, Content: "oldest", CommentTime: base, Status: models.StatusApproved},
		{ID: models.NewID(), RecordID: rec.ID, Content: "hidden", CommentTime: base.Add(time.Minute), Status: models.StatusPending},
		{ID: models.NewID(), RecordID: rec.ID, Content: "gone", CommentTime: base.Add(time.Minute), Status: models.StatusRejected},
		{ID: models.NewID(), RecordID: "other-record", Content: "elsewhere", CommentTime: base, Status: models.StatusApproved},
	}
	for i := range rows {
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	got, err := comments.ApprovedFor(rec.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "oldest", got[0].Content, "chronological read order, oldest first")
	assert.Equal(t, "newest", got[1].Content)
}

func TestReviewComment(t *testing.T) {
	comments, records, _ := newTestComments(t)
	rec := approvedRecord(t, records)

	comment, err := comments.Add(rec.ID, "hello", "5.6.7.8")
	require.NoError(t, err)

	assert.ErrorIs(t, comments.Review(comment.ID, models.Status("bogus")), ErrInvalidStatus)
	assert.ErrorIs(t, comments.Review("missing", models.StatusApproved), ErrNotFound)

	require.NoError(t, comments.Review(comment.ID, models.StatusApproved))
	got, err := comments.Get(comment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, "hello", got.Content, "moderation never mutates content")
}

func TestPendingCommentsOldestFirst(t *testing.T) {
	comments, records, _ := newTestComments(t)
	rec := approvedRecord(t, records)

	first, err := comments.Add(rec.ID, "one", "5.6.7.8")
	require.NoError(t, err)
	second, err := comments.Add(rec.ID, "two", "5.6.7.8")
	require.NoError(t, err)
	require.NoError(t, comments.Review(second.ID, models.StatusApproved))

	got, err := comments.ListPending()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, first.ID, got[0].ID)
}

func TestDeleteCommentIsHard(t *testing.T) {
	comments, records, db := newTestComments(t)
	rec := approvedRecord(t, records)

	comment, err := comments.Add(rec.ID, "bye", "5.6.7.8")
	require.NoError(t, err)

	require.NoError(t, comments.Delete(comment.ID))
	assert.ErrorIs(t, comments.Delete(comment.ID), ErrNotFound)

	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&n).Error)
	assert.Zero(t, n)
}
