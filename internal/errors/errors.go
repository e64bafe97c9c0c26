package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int64
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int64) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrContactNotFound is a sentinel error
type ErrContactNotFound struct {
	ContactID int64
}

func (e *ErrContactNotFound) Error() string {
	return fmt.Sprintf("contact with ID %d not found", e.ContactID)
}

func NewContactNotFound(id int64) error {
	return &ErrContactNotFound{ContactID: id}
}

// ValidationError reports malformed input on a create/update request.
// No state change happens when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidStateError reports an operation attempted against a campaign whose
// current status forbids it (edit/send/delete on the wrong status).
type InvalidStateError struct {
	CampaignID int64
	Status     string
	Op         string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s campaign %d in status %q", e.Op, e.CampaignID, e.Status)
}

func NewInvalidState(campaignID int64, status, op string) error {
	return &InvalidStateError{CampaignID: campaignID, Status: status, Op: op}
}

// ContactInUseError reports a contact deletion blocked by existing
// email status rows referencing it.
type ContactInUseError struct {
	ContactID  int64
	References int
}

func (e *ContactInUseError) Error() string {
	return fmt.Sprintf("contact %d is referenced by %d campaign recipient rows", e.ContactID, e.References)
}

func NewContactInUse(contactID int64, references int) error {
	return &ContactInUseError{ContactID: contactID, References: references}
}

func IsNotFound(err error) bool {
	var c *ErrCampaignNotFound
	var ct *ErrContactNotFound
	return errors.As(err, &c) || errors.As(err, &ct)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsInvalidState(err error) bool {
	var s *InvalidStateError
	return errors.As(err, &s)
}

func IsContactInUse(err error) bool {
	var c *ContactInUseError
	return errors.As(err, &c)
}
