package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/driftbottle/internal/models"
)

// fakeLocker records stores and removes in memory. failAt > 0 makes the
// n-th Store call fail, for exercising rollback.
type fakeLocker struct {
	stored  []string
	removed []string
	calls   int
	failAt  int
}

func (f *fakeLocker) Store(ip, name string, data []byte) (string, error) {
	f.calls++
	if f.failAt > 0 && f.calls >= f.failAt {
		return "", errors.New("disk full")
	}
	n := fmt.Sprintf("%s-%d%s", ip, f.calls, filepath.Ext(name))
	f.stored = append(f.stored, n)
	return n, nil
}

func (f *fakeLocker) Remove(name string) error {
	f.removed = append(f.removed, name)
	return nil
}

func newTestRecords(t *testing.T) (*Records, *fakeLocker, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Record{}, &models.RecordFile{}, &models.Comment{}))
	locker := &fakeLocker{}
	return NewRecords(db, locker), locker, db
}

func refCount(t *testing.T, db *gorm.DB, id string) int {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.RecordFile{}).Where("record_id = ?", id).Count(&n).Error)
	return int(n)
}

func TestCreateRecord(t *testing.T) {
	records, _, db := newTestRecords(t)

	rec, err := records.Create("hello sea", "a bottle", "1.2.3.4", 0, []Upload{
		{Name: "one.png", Data: []byte("png1")},
		{Name: "two.jpg", Data: []byte("jpg2")},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Equal(t, "hello sea", rec.OriginalText)
	assert.Equal(t, "a bottle", rec.OriginalTitle)
	assert.Equal(t, 2, rec.Fantasy)
	assert.Len(t, rec.Filenames, 2)
	assert.Equal(t, rec.Fantasy, refCount(t, db, rec.ID))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.UploadTime.IsZero())
}

func TestCreateRollsBackOnFileFailure(t *testing.T) {
	records, locker, db := newTestRecords(t)
	locker.failAt = 2 // first file succeeds, second fails

	_, err := records.Create("text", "title", "1.2.3.4", 0, []Upload{
		{Name: "one.png", Data: []byte("a")},
		{Name: "two.png", Data: []byte("b")},
	})
	require.Error(t, err)

	var n int64
	require.NoError(t, db.Model(&models.Record{}).Count(&n).Error)
	assert.Zero(t, n, "record row must be rolled back")
	require.NoError(t, db.Model(&models.RecordFile{}).Count(&n).Error)
	assert.Zero(t, n, "file refs must be rolled back")
	assert.Equal(t, locker.stored, locker.removed, "written files must be compensated")
}

func TestReviewApprovedSnapshotsOriginals(t *testing.T) {
	records, _, _ := newTestRecords(t)

	rec, err := records.Create("v1", "t1", "1.2.3.4", 0, nil)
	require.NoError(t, err)

	require.NoError(t, records.Review(rec.ID, models.StatusApproved))

	got, err := records.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, got.Text, got.OriginalText)
	assert.Equal(t, got.Title, got.OriginalTitle)
}

func TestReviewRejectedLeavesContent(t *testing.T) {
	records, _, db := newTestRecords(t)

	rec, err := records.Create("v1", "t1", "1.2.3.4", 0, nil)
	require.NoError(t, err)

	// Simulate drift between current and snapshotted content.
	require.NoError(t, db.Model(&models.Record{}).Where("id = ?", rec.ID).
		Update("text", "v2").Error)

	require.NoError(t, records.Review(rec.ID, models.StatusRejected))

	got, err := records.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "v2", got.Text)
	assert.Equal(t, "v1", got.OriginalText, "rejection must not snapshot")
}

func TestReviewErrors(t *testing.T) {
	records, _, _ := newTestRecords(t)

	rec, err := records.Create("v1", "t1", "1.2.3.4", 0, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, records.Review(rec.ID, models.Status("published")), ErrInvalidStatus)
	assert.ErrorIs(t, records.Review(rec.ID, models.StatusPending), ErrInvalidStatus)
	assert.ErrorIs(t, records.Review("missing", models.StatusApproved), ErrNotFound)
}

func TestEditResetsToPending(t *testing.T) {
	records, _, _ := newTestRecords(t)

	rec, err := records.Create("v1", "t1", "1.2.3.4", 0, nil)
	require.NoError(t, err)
	require.NoError(t, records.Review(rec.ID, models.StatusApproved))

	text := "v2"
	got, err := records.Edit(rec.ID, RecordEdit{Text: &text}, "1.2.3.4")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, got.Status, "any edit re-enters moderation")
	assert.Equal(t, "v2", got.Text)
	assert.Equal(t, "v1", got.OriginalText, "non-empty snapshot is never overwritten by edit")
	assert.Equal(t, "t1", got.Title)
}

func TestEditBackfillsEmptySnapshot(t *testing.T) {
	records, _, db := newTestRecords(t)

	rec, err := records.Create("v1", "t1", "1.2.3.4", 0, nil)
	require.NoError(t, err)
	require.NoError(t, records.Review(rec.ID, models.StatusApproved))

	// Clear the snapshot to exercise the backfill path.
	require.NoError(t, db.Model(&models.Record{}).Where("id = ?", rec.ID).
		Updates(map[string]interface{}{"original_text": "", "original_title": ""}).Error)

	text := "v2"
	got, err := records.Edit(rec.ID, RecordEdit{Text: &text}, "1.2.3.4")
	require.NoError(t, err)

	assert.Equal(t, "v1", got.OriginalText, "backfill copies the pre-edit content")
	assert.Equal(t, "t1", got.OriginalTitle)
	assert.Equal(t, "v2", got.Text)
}

func TestEditGuards(t *testing.T) {
	records, _, _ := newTestRecords(t)
	text := "v2"

	pending, err := records.Create("v1", "t1", "1.2.3.4", 0, nil)
	require.NoError(t, err)

	locked, err := records.Create("v1", "t1", "1.2.3.4", 1, nil)
	require.NoError(t, err)
	require.NoError(t, records.Review(locked.ID, models.StatusApproved))

	rejected, err := records.Create("v1", "t1", "1.2.3.4", 0, nil)
	require.NoError(t, err)
	require.NoError(t, records.Review(rejected.ID, models.StatusRejected))

	tests := []struct {
		name string
		id   string
	}{
		{"pending record", pending.ID},
		{"carrier locked", locked.ID},
		{"rejected record", rejected.ID},
		{"missing record", "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := records.Edit(tt.id, RecordEdit{Text: &text}, "1.2.3.4")
			assert.ErrorIs(t, err, ErrNotEditable)
		})
	}

	// Guarded records stay untouched.
	got, err := records.Get(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Text)
	assert.Equal(t, models.StatusPending, got.Status)
}

func TestEditReplacesImages(t *testing.T) {
	records, locker, db := newTestRecords(t)

	rec, err := records.Create("v1", "t1", "1.2.3.4", 0, []Upload{
		{Name: "old.png", Data: []byte("old")},
	})
	require.NoError(t, err)
	require.NoError(t, records.Review(rec.ID, models.StatusApproved))
	oldName := rec.Filenames[0]

	got, err := records.Edit(rec.ID, RecordEdit{Images: []Upload{
		{Name: "new1.png", Data: []byte("n1")},
		{Name: "new2.png", Data: []byte("n2")},
	}}, "1.2.3.4")
	require.NoError(t, err)

	assert.Equal(t, 2, got.Fantasy)
	assert.Len(t, got.Filenames, 2)
	assert.NotContains(t, got.Filenames, oldName)
	assert.Equal(t, got.Fantasy, refCount(t, db, rec.ID))
	// Old files stay on disk, orphaned.
	assert.NotContains(t, locker.removed, oldName)
}

func TestEditFantasyOverride(t *testing.T) {
	records, _, _ := newTestRecords(t)

	rec, err := records.Create("v1", "t1", "1.2.3.4", 0, nil)
	require.NoError(t, err)
	require.NoError(t, records.Review(rec.ID, models.StatusApproved))

	n := 7
	got, err := records.Edit(rec.ID, RecordEdit{Fantasy: &n}, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Fantasy)
}

func TestDeleteCascades(t *testing.T) {
	records, locker, db := newTestRecords(t)

	rec, err := records.Create("v1", "t1", "1.2.3.4", 0, []Upload{
		{Name: "a.png", Data: []byte("a")},
		{Name: "b.png", Data: []byte("b")},
	})
	require.NoError(t, err)

	require.NoError(t, records.Delete(rec.ID))

	_, err = records.Get(rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, refCount(t, db, rec.ID))
	assert.ElementsMatch(t, rec.Filenames, locker.removed)

	assert.ErrorIs(t, records.Delete(rec.ID), ErrNotFound)
}

func TestVisibilityFilter(t *testing.T) {
	records, _, _ := newTestRecords(t)

	approved, err := records.Create("a", "", "1.1.1.1", 0, nil)
	require.NoError(t, err)
	require.NoError(t, records.Review(approved.ID, models.StatusApproved))

	pending, err := records.Create("p", "", "2.2.2.2", 0, nil)
	require.NoError(t, err)

	rejected, err := records.Create("r", "", "3.3.3.3", 0, nil)
	require.NoError(t, err)
	require.NoError(t, records.Review(rejected.ID, models.StatusRejected))

	pub, err := records.ListApproved()
	require.NoError(t, err)
	require.Len(t, pub, 1)
	assert.Equal(t, approved.ID, pub[0].ID)

	pend, err := records.ListPending()
	require.NoError(t, err)
	require.Len(t, pend, 1)
	assert.Equal(t, pending.ID, pend[0].ID)

	all, err := records.ListAll()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Random selection never leaks non-approved records.
	for i := 0; i < 10; i++ {
		got, err := records.RandomApproved()
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, got.Status)
	}
}

func TestRandomApprovedEmpty(t *testing.T) {
	records, _, _ := newTestRecords(t)

	_, err := records.Create("p", "", "1.1.1.1", 0, nil)
	require.NoError(t, err)

	_, err = records.RandomApproved()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadTimeImmutableAcrossEdit(t *testing.T) {
	records, _, _ := newTestRecords(t)

	rec, err := records.Create("v1", "t1", "1.2.3.4", 0, nil)
	require.NoError(t, err)
	require.NoError(t, records.Review(rec.ID, models.StatusApproved))

	time.Sleep(5 * time.Millisecond)
	text := "v2"
	got, err := records.Edit(rec.ID, RecordEdit{Text: &text}, "1.2.3.4")
	require.NoError(t, err)
	assert.WithinDuration(t, rec.UploadTime, got.UploadTime, time.Second)
	assert.Equal(t, rec.UploaderIP, got.UploaderIP)
}
