package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	StatusDue  Status = "due"
	StatusPaid Status = "paid"
)

const (
	CategoryVoucher Category = "Voucher"
	CategoryDebit   Category = "Debit"
	CategoryCredit  Category = "Credit"
	CategoryPix     Category = "Pix"
	CategoryCash    Category = "Cash"
)

const (
	maxCompanyLen = 200
	maxNoteLen    = 500
)

// Categories lists every inflow category in display order.
var Categories = []Category{CategoryVoucher, CategoryDebit, CategoryCredit, CategoryPix, CategoryCash}

type (
	// Money is an amount in integer cents.
	Money struct {
		Cents int64
	}

	// Status is the stored lifecycle state of a payable. Overdue is derived
	// at read time and never stored.
	Status string

	// Category labels where an inflow came from.
	Category string

	Payable struct {
		ID        string    `json:"id"`
		Company   string    `json:"company"`
		Amount    Money     `json:"amount"`
		DueDate   Date      `json:"dueDate"`
		Note      string    `json:"note"`
		Status    Status    `json:"status"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Inflow struct {
		ID        string    `json:"id"`
		Date      Date      `json:"date"`
		Amount    Money     `json:"amount"`
		Category  Category  `json:"category"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// PayableDraft is user input for a new payable.
	PayableDraft struct {
		Company string
		Amount  Money
		DueDate Date
		Note    string
		Status  Status // defaults to StatusDue
	}

	InflowDraft struct {
		Date     Date
		Amount   Money
		Category Category
	}

	// PayablePatch holds the fields an update changes; nil fields are kept.
	PayablePatch struct {
		Company *string
		Amount  *Money
		DueDate *Date
		Note    *string
		Status  *Status
	}

	InflowPatch struct {
		Date     *Date
		Amount   *Money
		Category *Category
	}

	// Snapshot is both collections at a point in time, in the export shape.
	Snapshot struct {
		Payables   []Payable `json:"contas"`
		Inflows    []Inflow  `json:"entradas"`
		ExportedAt time.Time `json:"dataExportacao"`
	}
)

// ParseStatus accepts "due" and "paid" plus the Portuguese labels used by
// older exports ("à pagar", "pago").
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "due", "à pagar", "a pagar":
		return StatusDue, nil
	case "paid", "pago":
		return StatusPaid, nil
	}
	return "", ErrInvalidStatus
}

func (s Status) Valid() bool { return s == StatusDue || s == StatusPaid }

// Toggle flips due and paid.
func (s Status) Toggle() Status {
	if s == StatusPaid {
		return StatusDue
	}
	return StatusPaid
}

// UnmarshalText normalizes known labels and keeps anything else verbatim
// so Validate can report it.
func (s *Status) UnmarshalText(b []byte) error {
	if v, err := ParseStatus(string(b)); err == nil {
		*s = v
		return nil
	}
	*s = Status(b)
	return nil
}

// ParseCategory matches a category case-insensitively, including the
// Portuguese names Débito, Crédito and Dinheiro.
func ParseCategory(s string) (Category, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if v == strings.ToLower(string(c)) {
			return c, nil
		}
	}
	switch v {
	case "débito", "debito":
		return CategoryDebit, nil
	case "crédito", "credito":
		return CategoryCredit, nil
	case "dinheiro":
		return CategoryCash, nil
	}
	return "", ErrInvalidCategory
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c *Category) UnmarshalText(b []byte) error {
	if v, err := ParseCategory(string(b)); err == nil {
		*c = v
		return nil
	}
	*c = Category(b)
	return nil
}

func validatePayable(company string, amount Money, due Date, note string, status Status) error {
	if strings.TrimSpace(company) == "" {
		return Invalid("company", ErrEmptyCompany)
	}
	if utf8.RuneCountInString(company) > maxCompanyLen {
		return Invalid("company", ErrCompanyTooLong)
	}
	if err := amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if err := due.Validate(); err != nil {
		return Invalid("dueDate", err)
	}
	if utf8.RuneCountInString(note) > maxNoteLen {
		return Invalid("note", ErrNoteTooLong)
	}
	if !status.Valid() {
		return Invalid("status", ErrInvalidStatus)
	}
	return nil
}

func validateInflow(date Date, amount Money, category Category) error {
	if err := date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if err := amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	if !category.Valid() {
		return Invalid("category", ErrInvalidCategory)
	}
	return nil
}

// Normalize trims text fields and fills the default status.
func (d PayableDraft) Normalize() PayableDraft {
	d.Company = strings.TrimSpace(d.Company)
	d.Note = strings.TrimSpace(d.Note)
	if d.Status == "" {
		d.Status = StatusDue
	}
	return d
}

func (d PayableDraft) Validate() error {
	n := d.Normalize()
	return validatePayable(n.Company, n.Amount, n.DueDate, n.Note, n.Status)
}

func (d InflowDraft) Validate() error {
	return validateInflow(d.Date, d.Amount, d.Category)
}

func (p Payable) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return Invalid("id", ErrMissingID)
	}
	return validatePayable(p.Company, p.Amount, p.DueDate, p.Note, p.Status)
}

func (i Inflow) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return Invalid("id", ErrMissingID)
	}
	return validateInflow(i.Date, i.Amount, i.Category)
}

// Description joins company and note the way exports show them.
func (p Payable) Description() string {
	if p.Note == "" {
		return p.Company
	}
	return p.Company + " - " + p.Note
}

func (p PayablePatch) IsEmpty() bool {
	return p.Company == nil && p.Amount == nil && p.DueDate == nil && p.Note == nil && p.Status == nil
}

// Apply merges the patch into rec and validates the result. rec is returned
// unchanged on error.
func (p PayablePatch) Apply(rec Payable) (Payable, error) {
	merged := rec
	if p.Company != nil {
		merged.Company = strings.TrimSpace(*p.Company)
	}
	if p.Amount != nil {
		merged.Amount = *p.Amount
	}
	if p.DueDate != nil {
		merged.DueDate = *p.DueDate
	}
	if p.Note != nil {
		merged.Note = strings.TrimSpace(*p.Note)
	}
	if p.Status != nil {
		merged.Status = *p.Status
	}
	if err := merged.Validate(); err != nil {
		return rec, err
	}
	return merged, nil
}

func (p InflowPatch) IsEmpty() bool {
	return p.Date == nil && p.Amount == nil && p.Category == nil
}

func (p InflowPatch) Apply(rec Inflow) (Inflow, error) {
	merged := rec
	if p.Date != nil {
		merged.Date = *p.Date
	}
	if p.Amount != nil {
		merged.Amount = *p.Amount
	}
	if p.Category != nil {
		merged.Category = *p.Category
	}
	if err := merged.Validate(); err != nil {
		return rec, err
	}
	return merged, nil
}
