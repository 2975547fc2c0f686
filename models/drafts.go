package models

import "github.com/72rs3/pharmacy-assistant-sub000/utils"

// Draft records back the embedded sub-forms. They are owned by the
// conversation controller, reset after a successful submit or an explicit
// cancel, and each knows how to validate itself before any network call.

// IntakeDraft is the triage form collected before escalating to a pharmacist.
type IntakeDraft struct {
	Name        string `json:"name" validate:"required"`
	Phone       string `json:"phone" validate:"required,e164"`
	MainConcern string `json:"main_concern" validate:"required,min=1,max=200"`
}

func (d *IntakeDraft) Validate() error {
	return utils.ValidateStruct(d)
}

// Slot is one bookable interval offered by the appointment service.
type Slot struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Booked bool   `json:"booked"`
	Status string `json:"status,omitempty"`
}

// AppointmentDraft backs the booking sub-form. Slots caches the last
// fetched list for the chosen date so the form can re-render it.
type AppointmentDraft struct {
	Name          string `json:"name" validate:"required"`
	Phone         string `json:"phone" validate:"required,e164"`
	Date          string `json:"date" validate:"required,date"`
	ScheduledTime string `json:"scheduled_time" validate:"required,hhmm"`
	Reason        string `json:"reason,omitempty" validate:"max=200"`
	Slots         []Slot `json:"slots,omitempty"`
}

func (d *AppointmentDraft) Validate() error {
	return utils.ValidateStruct(d)
}

// RxOrderDraft backs the prescription-order sub-form.
type RxOrderDraft struct {
	MedicineID string `json:"medicine_id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required,e164"`
	Address    string `json:"address" validate:"required,min=5,max=300"`
	Qty        int    `json:"qty"`
	Notes      string `json:"notes,omitempty" validate:"max=300"`
}

func (d *RxOrderDraft) Validate() error {
	if err := utils.ValidateStruct(d); err != nil {
		return err
	}
	if d.Qty < 0 {
		return &utils.ValidationError{Field: "Qty", Message: "must not be negative"}
	}
	return nil
}

// UploadDraft remembers which medicine a prescription upload is for, so the
// controller can offer to place the order right after the upload succeeds.
type UploadDraft struct {
	MedicineID string `json:"medicine_id,omitempty"`
}

// PrescriptionFile is one file selected for upload.
type PrescriptionFile struct {
	Name        string
	ContentType string
	Data        []byte
}
