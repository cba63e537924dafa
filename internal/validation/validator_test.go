// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package validation

import (
	"strings"
	"testing"
)

type bookingRequest struct {
	ClassID      string   `validate:"required"`
	StudentCount int      `validate:"min=1,max=50"`
	StudentNames []string `validate:"required,dive,notblank"`
}

func TestValidateStruct_Valid(t *testing.T) {
	req := bookingRequest{
		ClassID:      "c1",
		StudentCount: 2,
		StudentNames: []string{"Ada", "Grace"},
	}
	if err := ValidateStruct(&req); err != nil {
		t.Errorf("Expected valid struct, got: %v", err)
	}
}

func TestValidateStruct_MissingRequired(t *testing.T) {
	req := bookingRequest{StudentCount: 1, StudentNames: []string{"Ada"}}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("Expected validation error")
	}

	errs := err.Errors()
	if len(errs) != 1 {
		t.Fatalf("Expected 1 error, got %d: %v", len(errs), err)
	}
	if errs[0].Field() != "ClassID" || errs[0].Tag() != "required" {
		t.Errorf("Unexpected error: field=%s tag=%s", errs[0].Field(), errs[0].Tag())
	}
}

func TestValidateStruct_NotBlank(t *testing.T) {
	req := bookingRequest{
		ClassID:      "c1",
		StudentCount: 2,
		StudentNames: []string{"Ada", "   "},
	}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("Expected notblank violation")
	}
	if !strings.Contains(err.Error(), "must not be blank") {
		t.Errorf("Unexpected message: %v", err)
	}
}

func TestValidateStruct_MinBound(t *testing.T) {
	req := bookingRequest{ClassID: "c1", StudentCount: 0, StudentNames: []string{"Ada"}}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("Expected min violation")
	}
	if !strings.Contains(err.Error(), "at least 1") {
		t.Errorf("Unexpected message: %v", err)
	}
}

func TestToAPIError_SingleError(t *testing.T) {
	req := bookingRequest{StudentCount: 1, StudentNames: []string{"Ada"}}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("Expected validation error")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Expected VALIDATION_ERROR code, got %s", apiErr.Code)
	}
	if apiErr.Details["field"] != "ClassID" {
		t.Errorf("Expected field detail, got %v", apiErr.Details)
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	req := bookingRequest{StudentCount: 0, StudentNames: []string{""}}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	if len(err.Errors()) < 2 {
		t.Fatalf("Expected multiple errors, got %d", len(err.Errors()))
	}

	apiErr := err.ToAPIError()
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Errorf("Expected fields detail for multiple errors, got %v", apiErr.Details)
	}
}
