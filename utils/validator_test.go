package utils

import (
	"errors"
	"fmt"
	"testing"
)

type intakeForm struct {
	Name    string `validate:"required"`
	Phone   string `validate:"required,e164"`
	Concern string `validate:"required,min=1,max=200"`
}

func TestValidateStruct_Required(t *testing.T) {
	err := ValidateStruct(&intakeForm{Phone: "+15551234567", Concern: "headache"})
	if err == nil {
		t.Fatalf("expected error for missing name, got nil")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "Name" {
		t.Fatalf("expected validation error on Name, got %v", err)
	}
}

func TestValidateStruct_E164(t *testing.T) {
	cases := []struct {
		phone string
		ok    bool
	}{
		{"+15551234567", true},
		{"+6281224123199", true},
		{"5551234567", false},
		{"+0551234567", false},
		{"+1555", false},
		{"+1 555 123 4567", false},
	}
	for _, c := range cases {
		err := ValidateStruct(&intakeForm{Name: "Ana", Phone: c.phone, Concern: "headache"})
		if c.ok && err != nil {
			t.Fatalf("phone %q: expected valid, got %v", c.phone, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("phone %q: expected rejection, got nil", c.phone)
		}
	}
}

func TestValidateStruct_MaxLen(t *testing.T) {
	long := ""
	for i := 0; i < 201; i++ {
		long += "x"
	}
	err := ValidateStruct(&intakeForm{Name: "Ana", Phone: "+15551234567", Concern: long})
	if err == nil {
		t.Fatalf("expected max length rejection, got nil")
	}
}

func TestValidateStruct_DateAndTime(t *testing.T) {
	type booking struct {
		Date string `validate:"required,date"`
		Time string `validate:"required,hhmm"`
	}
	if err := ValidateStruct(&booking{Date: "2025-03-10", Time: "14:30"}); err != nil {
		t.Fatalf("expected valid booking, got %v", err)
	}
	if err := ValidateStruct(&booking{Date: "10/03/2025", Time: "14:30"}); err == nil {
		t.Fatalf("expected date format rejection, got nil")
	}
	if err := ValidateStruct(&booking{Date: "2025-03-10", Time: "25:00"}); err == nil {
		t.Fatalf("expected time format rejection, got nil")
	}
}

func TestIsValidationError_Wrapped(t *testing.T) {
	err := fmt.Errorf("submit intake: %w", &ValidationError{Field: "Phone", Message: "is required"})
	if !IsValidationError(err) {
		t.Fatalf("expected wrapped validation error to be detected")
	}
	if IsValidationError(errors.New("boom")) {
		t.Fatalf("plain error misdetected as validation error")
	}
}
