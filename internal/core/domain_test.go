package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPayableDraftValidate(t *testing.T) {
	good := PayableDraft{
		Company: "Acme",
		Amount:  Cents(10000),
		DueDate: NewDate(2024, 3, 5),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name  string
		mod   func(d *PayableDraft)
		field string
		cause error
	}{
		{"blank company", func(d *PayableDraft) { d.Company = "   " }, "company", ErrEmptyCompany},
		{"long company", func(d *PayableDraft) { d.Company = strings.Repeat("a", 201) }, "company", ErrCompanyTooLong},
		{"zero amount", func(d *PayableDraft) { d.Amount = Money{} }, "amount", ErrInvalidAmount},
		{"negative amount", func(d *PayableDraft) { d.Amount = Cents(-1) }, "amount", ErrInvalidAmount},
		{"missing due date", func(d *PayableDraft) { d.DueDate = Date{} }, "dueDate", ErrInvalidDate},
		{"long note", func(d *PayableDraft) { d.Note = strings.Repeat("n", 501) }, "note", ErrNoteTooLong},
		{"bad status", func(d *PayableDraft) { d.Status = "late" }, "status", ErrInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := good
			tc.mod(&d)
			err := d.Validate()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !errors.Is(err, tc.cause) {
				t.Fatalf("expected cause %v, got %v", tc.cause, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("expected field %q, got %v", tc.field, err)
			}
		})
	}
}

func TestPayableDraftNormalize(t *testing.T) {
	d := PayableDraft{Company: "  Acme ", Note: " luz "}.Normalize()
	if d.Company != "Acme" || d.Note != "luz" || d.Status != StatusDue {
		t.Fatalf("unexpected normalized draft %+v", d)
	}
}

func TestInflowDraftValidate(t *testing.T) {
	good := InflowDraft{Date: NewDate(2024, 3, 10), Amount: Cents(25000), Category: CategoryPix}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Category = "Cheque"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	bad = good
	bad.Date = Date{}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"due", StatusDue, true},
		{"PAID", StatusPaid, true},
		{"à pagar", StatusDue, true},
		{"pago", StatusPaid, true},
		{"overdue", "", false},
	}
	for _, tc := range cases {
		got, err := ParseStatus(tc.in)
		if tc.ok != (err == nil) || got != tc.want {
			t.Errorf("ParseStatus(%q) = %q, %v", tc.in, got, err)
		}
	}
	if StatusDue.Toggle() != StatusPaid || StatusPaid.Toggle() != StatusDue {
		t.Fatal("toggle should flip status")
	}
}

func TestParseCategory(t *testing.T) {
	cases := map[string]Category{
		"pix":      CategoryPix,
		"Voucher":  CategoryVoucher,
		"Débito":   CategoryDebit,
		"credito":  CategoryCredit,
		"Dinheiro": CategoryCash,
		"cash":     CategoryCash,
	}
	for in, want := range cases {
		got, err := ParseCategory(in)
		if err != nil || got != want {
			t.Errorf("ParseCategory(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseCategory("boleto"); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestPayableJSONUsesLegacyLabels(t *testing.T) {
	var p Payable
	in := `{"id":"x","company":"Acme","amount":"100,00","dueDate":"2024-03-05","status":"pago"}`
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusPaid || p.Amount.Cents != 10000 || p.DueDate != NewDate(2024, 3, 5) {
		t.Fatalf("unexpected payable %+v", p)
	}

	// unknown labels survive decoding and fail validation instead
	if err := json.Unmarshal([]byte(`{"id":"x","status":"late"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Status != "late" {
		t.Fatalf("expected raw status, got %q", p.Status)
	}
}

func TestPayablePatchApply(t *testing.T) {
	rec := Payable{
		ID:        "p1",
		Company:   "Acme",
		Amount:    Cents(10000),
		DueDate:   NewDate(2024, 3, 5),
		Status:    StatusDue,
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	company := " Globex "
	paid := StatusPaid
	got, err := PayablePatch{Company: &company, Status: &paid}.Apply(rec)
	if err != nil {
		t.Fatal(err)
	}
	if got.Company != "Globex" || got.Status != StatusPaid {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.ID != rec.ID || !got.CreatedAt.Equal(rec.CreatedAt) || got.Amount != rec.Amount {
		t.Fatalf("untouched fields changed: %+v", got)
	}

	zero := Money{}
	back, err := PayablePatch{Amount: &zero}.Apply(rec)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if back != rec {
		t.Fatalf("record should be returned unchanged on error")
	}
	if !(PayablePatch{}).IsEmpty() {
		t.Fatal("empty patch should report empty")
	}
}

func TestInflowPatchApply(t *testing.T) {
	rec := Inflow{ID: "i1", Date: NewDate(2024, 3, 10), Amount: Cents(100), Category: CategoryPix}
	cash := CategoryCash
	got, err := InflowPatch{Category: &cash}.Apply(rec)
	if err != nil || got.Category != CategoryCash {
		t.Fatalf("got %+v, %v", got, err)
	}
	bad := Category("Cheque")
	if _, err := (InflowPatch{Category: &bad}).Apply(rec); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPayableDescription(t *testing.T) {
	if got := (Payable{Company: "Acme"}).Description(); got != "Acme" {
		t.Fatalf("got %q", got)
	}
	if got := (Payable{Company: "Acme", Note: "energia"}).Description(); got != "Acme - energia" {
		t.Fatalf("got %q", got)
	}
}
