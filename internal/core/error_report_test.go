package core

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

var sampleReport = []ErrorReportEntry{
	{Row: 2, Field: "name", Value: "", Message: "required field is empty"},
	{Row: 5, Field: "description", Value: "has, comma and \"quotes\"", Message: "Description exceeds 20 characters"},
}

func TestWriteErrorReportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteErrorReportCSV(&buf, sampleReport); err != nil {
		t.Fatalf("WriteErrorReportCSV: %v", err)
	}

	want := "Row,Field,Value,Error\n" +
		"2,name,,required field is empty\n" +
		"5,description,\"has, comma and \"\"quotes\"\"\",Description exceeds 20 characters\n"
	if got := buf.String(); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriteErrorReportCSV_ReadsBackThroughParse(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteErrorReportCSV(&buf, sampleReport); err != nil {
		t.Fatalf("WriteErrorReportCSV: %v", err)
	}

	res := Parse(buf.String())
	if res.Failed() {
		t.Fatalf("report does not parse: %v", res.Errors)
	}
	if got := res.Rows[1]["Value"]; got != sampleReport[1].Value {
		t.Errorf("Value = %q, want %q", got, sampleReport[1].Value)
	}
}

func TestWriteErrorReportXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteErrorReportXLSX(&buf, sampleReport); err != nil {
		t.Fatalf("WriteErrorReportXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Errors")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	want := [][]string{
		{"Row", "Field", "Value", "Error"},
		{"2", "name", "", "required field is empty"},
		{"5", "description", "has, comma and \"quotes\"", "Description exceeds 20 characters"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestValidationReport(t *testing.T) {
	records := []ImportRecord{
		{RowIndex: 1, Status: StatusValid},
		{RowIndex: 2, Status: StatusInvalid, Errors: []FieldError{
			{Field: "name", Message: "required field is empty"},
			{Field: "criticality", Value: "Urgent", Message: "Criticality must be one of: Low, Medium, High, Mission Critical"},
		}},
		{RowIndex: 4, Status: StatusInvalid, Errors: []FieldError{
			{Field: "annualCost", Value: "abc", Message: "Annual Cost must be a number"},
		}},
	}

	want := []ErrorReportEntry{
		{Row: 2, Field: "name", Message: "required field is empty"},
		{Row: 2, Field: "criticality", Value: "Urgent", Message: "Criticality must be one of: Low, Medium, High, Mission Critical"},
		{Row: 4, Field: "annualCost", Value: "abc", Message: "Annual Cost must be a number"},
	}
	if diff := cmp.Diff(want, ValidationReport(records)); diff != "" {
		t.Errorf("ValidationReport() mismatch (-want +got):\n%s", diff)
	}

	if got := ValidationReport(nil); got == nil || len(got) != 0 {
		t.Errorf("ValidationReport(nil) = %#v, want empty slice", got)
	}
}
