package store

import "errors"

var (
	// ErrNotFound means the id matched no row.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidStatus means a review was requested with a status other
	// than approved or rejected.
	ErrInvalidStatus = errors.New("invalid review status")

	// ErrNotEditable means the record is missing, carrier-locked, or not
	// currently approved.
	ErrNotEditable = errors.New("record not found, not editable, or not approved")

	// ErrRecordNotApproved means a comment targeted a record that is
	// missing or not approved.
	ErrRecordNotApproved = errors.New("record not found or not approved")
)
