// Package store holds the moderation-gated content stores. Public reads
// filter strictly on status=approved; administrative reads bypass the
// filter. Every multi-statement mutation runs in a single transaction.
package store

import (
	"errors"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"github.com/sujalbistaa/driftbottle/internal/models"
)

// Locker is the slice of the media locker the record store needs.
type Locker interface {
	Store(ip, originalName string, data []byte) (string, error)
	Remove(name string) error
}

// Upload is one client-supplied file pending persistence.
type Upload struct {
	Name string
	Data []byte
}

// RecordEdit carries the optional fields of an edit request. Nil pointers
// mean "not supplied"; Images replaces the whole media set when non-empty.
type RecordEdit struct {
	Text    *string
	Title   *string
	Images  []Upload
	Fantasy *int
}

// Records owns the records and record_files tables.
type Records struct {
	db    *gorm.DB
	files Locker
}

// NewRecords returns a record store using files for media persistence.
func NewRecords(db *gorm.DB, files Locker) *Records {
	return &Records{db: db, files: files}
}

// Create persists a new pending record together with its files. The row
// insert, every file write and every file ref insert succeed or fail as one
// unit: on error the transaction rolls back and any files already written
// are removed again.
func (r *Records) Create(text, title, uploaderIP string, carrier int, uploads []Upload) (*models.Record, error) {
	rec := models.Record{
		ID:            models.NewID(),
		Text:          text,
		Title:         title,
		OriginalText:  text,
		OriginalTitle: title,
		UploadTime:    time.Now().UTC(),
		UploaderIP:    uploaderIP,
		Status:        models.StatusPending,
		Carrier:       carrier,
		Fantasy:       len(uploads),
	}

	saved := make([]string, 0, len(uploads))
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		for _, up := range uploads {
			name, err := r.files.Store(uploaderIP, up.Name, up.Data)
			if err != nil {
				return err
			}
			saved = append(saved, name)
			if err := tx.Create(&models.RecordFile{RecordID: rec.ID, Filename: name}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, name := range saved {
			_ = r.files.Remove(name)
		}
		return nil, err
	}

	rec.Filenames = saved
	return &rec, nil
}

// Review flips a record to approved or rejected. Approval snapshots the
// current text and title into the originals; rejection touches the status
// only, preserving content for a re-edit-and-resubmit flow.
func (r *Records) Review(id string, status models.Status) error {
	if !status.ReviewOutcome() {
		return ErrInvalidStatus
	}

	q := r.db.Model(&models.Record{}).Where("id = ?", id)
	var res *gorm.DB
	if status == models.StatusApproved {
		res = q.Updates(map[string]interface{}{
			"status":         status,
			"original_text":  gorm.Expr("text"),
			"original_title": gorm.Expr("title"),
		})
	} else {
		res = q.Update("status", status)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Edit applies an edit to an approved, editable (carrier==0) record. Any
// edit sends the record back to pending. Supplied images replace the whole
// ref set (old files stay on disk, orphaned); otherwise an explicit fantasy
// override is honored. The snapshot fields are only backfilled when empty,
// never overwritten; Review owns the per-cycle overwrite.
func (r *Records) Edit(id string, edit RecordEdit, uploaderIP string) (*models.Record, error) {
	saved := make([]string, 0, len(edit.Images))
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var rec models.Record
		err := tx.Where("id = ? AND carrier = 0 AND status = ?", id, models.StatusApproved).
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotEditable
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"status": models.StatusPending}
		if edit.Text != nil {
			updates["text"] = *edit.Text
		}
		if edit.Title != nil {
			updates["title"] = *edit.Title
		}
		if rec.OriginalText == "" && rec.Text != "" {
			updates["original_text"] = rec.Text
		}
		if rec.OriginalTitle == "" && rec.Title != "" {
			updates["original_title"] = rec.Title
		}

		if len(edit.Images) > 0 {
			if err := tx.Where("record_id = ?", id).Delete(&models.RecordFile{}).Error; err != nil {
				return err
			}
			for _, up := range edit.Images {
				name, err := r.files.Store(uploaderIP, up.Name, up.Data)
				if err != nil {
					return err
				}
				saved = append(saved, name)
				if err := tx.Create(&models.RecordFile{RecordID: id, Filename: name}).Error; err != nil {
					return err
				}
			}
			updates["fantasy"] = len(edit.Images)
		} else if edit.Fantasy != nil {
			updates["fantasy"] = *edit.Fantasy
		}

		return tx.Model(&models.Record{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		for _, name := range saved {
			_ = r.files.Remove(name)
		}
		return nil, err
	}

	return r.Get(id)
}

// Get fetches one record with its filenames, regardless of status.
func (r *Records) Get(id string) (*models.Record, error) {
	var rec models.Record
	err := r.db.First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadFilenames(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// RandomApproved returns one approved record chosen uniformly, or
// ErrNotFound when none exist. Count-then-offset keeps it to two round
// trips; the offset scan is O(N) at the storage layer, fine at this scale.
func (r *Records) RandomApproved() (*models.Record, error) {
	var count int64
	err := r.db.Model(&models.Record{}).
		Where("status = ?", models.StatusApproved).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	var rec models.Record
	err = r.db.Where("status = ?", models.StatusApproved).
		Offset(rand.Intn(int(count))).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	if err := r.loadFilenames(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the record and its file refs in one transaction, then
// best-effort deletes the files from disk. A missing file is not an error.
func (r *Records) Delete(id string) error {
	var filenames []string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.RecordFile{}).
			Where("record_id = ?", id).
			Pluck("filename", &filenames).Error
		if err != nil {
			return err
		}
		if err := tx.Where("record_id = ?", id).Delete(&models.RecordFile{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Record{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, name := range filenames {
		_ = r.files.Remove(name)
	}
	return nil
}

// ListAll returns every record, any status. Administrative read.
func (r *Records) ListAll() ([]models.Record, error) {
	return r.list(r.db)
}

// ListPending returns records awaiting review. Administrative read.
func (r *Records) ListPending() ([]models.Record, error) {
	return r.list(r.db.Where("status = ?", models.StatusPending))
}

// ListApproved returns the publicly visible records.
func (r *Records) ListApproved() ([]models.Record, error) {
	return r.list(r.db.Where("status = ?", models.StatusApproved))
}

func (r *Records) list(q *gorm.DB) ([]models.Record, error) {
	var recs []models.Record
	if err := q.Order("upload_time desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	for i := range recs {
		if err := r.loadFilenames(&recs[i]); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (r *Records) loadFilenames(rec *models.Record) error {
	filenames := make([]string, 0, rec.Fantasy)
	err := r.db.Model(&models.RecordFile{}).
		Where("record_id = ?", rec.ID).
		Order("id").
		Pluck("filename", &filenames).Error
	if err != nil {
		return err
	}
	rec.Filenames = filenames
	return nil
}
