// Package export serializes a snapshot to CSV and JSON and parses JSON
// exports back for the import path.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"financeiro/internal/core"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

const (
	TypePayable     = "Payable"
	TypeInflow      = "Inflow"
	noStatus        = "-"
	filenamePrefix  = "controle_financeiro_"
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeJSON = "application/json; charset=utf-8"
)

// Header is the fixed CSV header row.
var Header = []string{"Type", "Date", "Amount", "Description", "Status"}

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return ContentTypeCSV
	}
	return ContentTypeJSON
}

// Filename returns "controle_financeiro_YYYY-MM-DD.<format>".
func Filename(f Format, day core.Date) string {
	return filenamePrefix + day.String() + "." + string(f)
}

// Rows returns the CSV records without the header: payables first, then
// inflows, each in snapshot order.
func Rows(snap core.Snapshot) [][]string {
	rows := make([][]string, 0, len(snap.Payables)+len(snap.Inflows))
	for _, p := range snap.Payables {
		rows = append(rows, []string{TypePayable, p.DueDate.String(), p.Amount.Plain(), p.Description(), string(p.Status)})
	}
	for _, i := range snap.Inflows {
		rows = append(rows, []string{TypeInflow, i.Date.String(), i.Amount.Plain(), string(i.Category), noStatus})
	}
	return rows
}

// WriteCSV writes the header and all rows. Fields holding commas, quotes or
// line breaks are quoted and embedded quotes doubled.
func WriteCSV(w io.Writer, snap core.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(Rows(snap)); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func CSV(snap core.Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, snap); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// JSON returns the snapshot pretty-printed with two-space indentation and
// the export timestamp in UTC.
func JSON(snap core.Snapshot) ([]byte, error) {
	snap.ExportedAt = snap.ExportedAt.UTC()
	if snap.Payables == nil {
		snap.Payables = []core.Payable{}
	}
	if snap.Inflows == nil {
		snap.Inflows = []core.Inflow{}
	}
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return out, nil
}

// Write encodes snap in format f.
func Write(w io.Writer, f Format, snap core.Snapshot) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, snap)
	case FormatJSON:
		out, err := JSON(snap)
		if err != nil {
			return err
		}
		_, err = w.Write(append(out, '\n'))
		return err
	}
	return fmt.Errorf("unknown export format %q", f)
}

// ImportSet is a decoded export. A nil collection was absent from the
// document, which is different from an empty array.
type ImportSet struct {
	Payables   []core.Payable
	Inflows    []core.Inflow
	ExportedAt time.Time
}

// Snapshot returns the set as a snapshot with absent collections empty.
func (s ImportSet) Snapshot() core.Snapshot {
	snap := core.Snapshot{Payables: s.Payables, Inflows: s.Inflows, ExportedAt: s.ExportedAt}
	if snap.Payables == nil {
		snap.Payables = []core.Payable{}
	}
	if snap.Inflows == nil {
		snap.Inflows = []core.Inflow{}
	}
	return snap
}

// Validate checks every record and rejects duplicated ids within a
// collection. Errors name the offending field as contas[k] or entradas[k].
func (s ImportSet) Validate() error {
	if err := validateRecords(s.Payables, "contas", func(p core.Payable) string { return p.ID }, core.Payable.Validate); err != nil {
		return err
	}
	return validateRecords(s.Inflows, "entradas", func(i core.Inflow) string { return i.ID }, core.Inflow.Validate)
}

func validateRecords[T any](items []T, field string, id func(T) string, validate func(T) error) error {
	seen := make(map[string]struct{}, len(items))
	for k, item := range items {
		if err := validate(item); err != nil {
			return fmt.Errorf("%s[%d]: %w", field, k, err)
		}
		if _, dup := seen[id(item)]; dup {
			return core.Invalid(fmt.Sprintf("%s[%d].id", field, k), core.ErrDuplicateID)
		}
		seen[id(item)] = struct{}{}
	}
	return nil
}

type document struct {
	Payables   *[]payableRecord `json:"contas"`
	Inflows    *[]inflowRecord  `json:"entradas"`
	ExportedAt string           `json:"dataExportacao"`
}

// payableRecord reads both current and Portuguese field names.
type payableRecord struct {
	ID        string      `json:"id"`
	Company   string      `json:"company"`
	Amount    *core.Money `json:"amount"`
	DueDate   core.Date   `json:"dueDate"`
	Note      *string     `json:"note"`
	Status    core.Status `json:"status"`
	CreatedAt string      `json:"createdAt"`

	Empresa        string      `json:"empresa"`
	Valor          *core.Money `json:"valor"`
	DataVencimento core.Date   `json:"dataVencimento"`
	Especificacao  string      `json:"especificacao"`
	DataCriacao    string      `json:"dataCriacao"`
}

type inflowRecord struct {
	ID        string        `json:"id"`
	Date      core.Date     `json:"date"`
	Amount    *core.Money   `json:"amount"`
	Category  core.Category `json:"category"`
	CreatedAt string        `json:"createdAt"`

	DataEntrada core.Date     `json:"dataEntrada"`
	Valor       *core.Money   `json:"valor"`
	TipoEntrada core.Category `json:"tipoEntrada"`
	DataCriacao string        `json:"dataCriacao"`
}

// ParseJSON decodes an export document. Records are not validated here;
// malformed JSON or field values yield a core.ValidationError.
func ParseJSON(data []byte) (ImportSet, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportSet{}, core.Invalid("document", err)
	}

	var set ImportSet
	if doc.ExportedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, doc.ExportedAt)
		if err != nil {
			return ImportSet{}, core.Invalid("dataExportacao", err)
		}
		set.ExportedAt = t.UTC()
	}

	if doc.Payables != nil {
		set.Payables = make([]core.Payable, 0, len(*doc.Payables))
		for k, r := range *doc.Payables {
			p, err := r.payable()
			if err != nil {
				return ImportSet{}, core.Invalid(fmt.Sprintf("contas[%d].createdAt", k), err)
			}
			set.Payables = append(set.Payables, p)
		}
	}
	if doc.Inflows != nil {
		set.Inflows = make([]core.Inflow, 0, len(*doc.Inflows))
		for k, r := range *doc.Inflows {
			i, err := r.inflow()
			if err != nil {
				return ImportSet{}, core.Invalid(fmt.Sprintf("entradas[%d].createdAt", k), err)
			}
			set.Inflows = append(set.Inflows, i)
		}
	}
	return set, nil
}

func (r payableRecord) payable() (core.Payable, error) {
	p := core.Payable{
		ID:      r.ID,
		Company: first(r.Company, r.Empresa),
		DueDate: r.DueDate,
		Status:  r.Status,
	}
	if p.DueDate.IsZero() {
		p.DueDate = r.DataVencimento
	}
	if r.Amount != nil {
		p.Amount = *r.Amount
	} else if r.Valor != nil {
		p.Amount = *r.Valor
	}
	if r.Note != nil {
		p.Note = *r.Note
	} else {
		p.Note = r.Especificacao
	}
	created, err := parseTimestamp(first(r.CreatedAt, r.DataCriacao))
	if err != nil {
		return core.Payable{}, err
	}
	p.CreatedAt = created
	return p, nil
}

func (r inflowRecord) inflow() (core.Inflow, error) {
	i := core.Inflow{
		ID:       r.ID,
		Date:     r.Date,
		Category: r.Category,
	}
	if i.Date.IsZero() {
		i.Date = r.DataEntrada
	}
	if i.Category == "" {
		i.Category = r.TipoEntrada
	}
	if r.Amount != nil {
		i.Amount = *r.Amount
	} else if r.Valor != nil {
		i.Amount = *r.Valor
	}
	created, err := parseTimestamp(first(r.CreatedAt, r.DataCriacao))
	if err != nil {
		return core.Inflow{}, err
	}
	i.CreatedAt = created
	return i, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
