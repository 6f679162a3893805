package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financeiro/internal/core"
)

func snapshot() core.Snapshot {
	created := time.Date(2024, 3, 1, 9, 30, 15, 123000000, time.UTC)
	return core.Snapshot{
		Payables: []core.Payable{
			{ID: "p1", Company: "Acme", Amount: core.Cents(10000), DueDate: core.NewDate(2024, 3, 5), Status: core.StatusDue, CreatedAt: created},
			{ID: "p2", Company: `Padaria "Pão Quente", Ltda`, Amount: core.Cents(1999), DueDate: core.NewDate(2024, 3, 7), Note: "pães\nfrios", Status: core.StatusPaid, CreatedAt: created},
		},
		Inflows: []core.Inflow{
			{ID: "i1", Date: core.NewDate(2024, 3, 10), Amount: core.Cents(25000), Category: core.CategoryPix, CreatedAt: created},
		},
		ExportedAt: time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC),
	}
}

func TestCSVHeaderAndRows(t *testing.T) {
	out, err := CSV(snapshot())
	require.NoError(t, err)

	lines := strings.SplitN(out, "\n", 2)
	assert.Equal(t, "Type,Date,Amount,Description,Status", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Payable,2024-03-05,100.00,Acme,due\n"))
	assert.Contains(t, out, "Inflow,2024-03-10,250.00,Pix,-\n")
}

func TestCSVEscapesQuotesAndDelimiters(t *testing.T) {
	out, err := CSV(snapshot())
	require.NoError(t, err)

	assert.Contains(t, out, `"Padaria ""Pão Quente"", Ltda - pães`+"\n"+`frios"`)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Payable", "2024-03-07", "19.99", "Padaria \"Pão Quente\", Ltda - pães\nfrios", "paid"}, records[2])
	for _, r := range records {
		assert.Len(t, r, 5)
	}
}

func TestCSVEmptySnapshot(t *testing.T) {
	out, err := CSV(core.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, "Type,Date,Amount,Description,Status\n", out)
}

func TestJSONShape(t *testing.T) {
	out, err := JSON(snapshot())
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Len(t, doc, 3)
	assert.Contains(t, doc, "contas")
	assert.Contains(t, doc, "entradas")
	assert.JSONEq(t, `"2024-03-15T18:00:00Z"`, string(doc["dataExportacao"]))
	assert.True(t, bytes.HasPrefix(out, []byte("{\n  \"contas\": [")), "expected two-space indentation")

	empty, err := JSON(core.Snapshot{})
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"contas": []`)
}

func TestJSONRoundTrip(t *testing.T) {
	snap := snapshot()
	out, err := JSON(snap)
	require.NoError(t, err)

	set, err := ParseJSON(out)
	require.NoError(t, err)
	assert.Equal(t, snap.Payables, set.Payables)
	assert.Equal(t, snap.Inflows, set.Inflows)
	assert.True(t, snap.ExportedAt.Equal(set.ExportedAt))
}

func TestParseJSONLegacyDocument(t *testing.T) {
	legacy := `{
	  "contas": [{
	    "empresa": "Fornecedor X", "valor": "150.5", "dataVencimento": "2024-05-01",
	    "especificacao": "mercadoria", "status": "à pagar", "id": "lq2x9k3abc",
	    "dataCriacao": "2024-04-20T13:45:00.000Z"
	  }],
	  "entradas": [{
	    "dataEntrada": "2024-04-21", "valor": 89.9, "tipoEntrada": "Débito",
	    "id": "lq2xa0zzz", "dataCriacao": "2024-04-21T10:00:00.000Z"
	  }],
	  "dataExportacao": "2024-04-22T08:00:00.000Z"
	}`

	set, err := ParseJSON([]byte(legacy))
	require.NoError(t, err)
	require.Len(t, set.Payables, 1)
	require.Len(t, set.Inflows, 1)

	p := set.Payables[0]
	assert.Equal(t, "Fornecedor X", p.Company)
	assert.Equal(t, int64(15050), p.Amount.Cents)
	assert.Equal(t, core.NewDate(2024, 5, 1), p.DueDate)
	assert.Equal(t, "mercadoria", p.Note)
	assert.Equal(t, core.StatusDue, p.Status)
	assert.NoError(t, p.Validate())

	i := set.Inflows[0]
	assert.Equal(t, core.CategoryDebit, i.Category)
	assert.Equal(t, int64(8990), i.Amount.Cents)
	assert.Equal(t, core.NewDate(2024, 4, 21), i.Date)
	assert.Equal(t, time.Date(2024, 4, 21, 10, 0, 0, 0, time.UTC), i.CreatedAt)
	assert.NoError(t, i.Validate())
}

func TestParseJSONMissingCollection(t *testing.T) {
	set, err := ParseJSON([]byte(`{"entradas": []}`))
	require.NoError(t, err)
	assert.Nil(t, set.Payables)
	assert.NotNil(t, set.Inflows)
	assert.NotNil(t, set.Snapshot().Payables)
}

func TestParseJSONRejectsMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"contas": [{"valor": "abc"}]}`,
		`{"entradas": [{"dataEntrada": "ontem"}]}`,
		`{"contas": [{"dataCriacao": "yesterday"}]}`,
		`{"dataExportacao": "soon"}`,
	}
	for _, in := range cases {
		_, err := ParseJSON([]byte(in))
		assert.ErrorIs(t, err, core.ErrValidation, in)
	}
}

func TestFilename(t *testing.T) {
	day := core.NewDate(2024, 3, 5)
	assert.Equal(t, "controle_financeiro_2024-03-05.csv", Filename(FormatCSV, day))
	assert.Equal(t, "controle_financeiro_2024-03-05.json", Filename(FormatJSON, day))
}

func TestWriteFormats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, snapshot()))
	assert.True(t, strings.HasPrefix(buf.String(), "Type,"))

	buf.Reset()
	require.NoError(t, Write(&buf, FormatJSON, snapshot()))
	assert.True(t, json.Valid(buf.Bytes()))

	_, err := ParseFormat("xml")
	assert.Error(t, err)
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
}

func TestImportSetValidate(t *testing.T) {
	snap := snapshot()
	require.NoError(t, ImportSet{Payables: snap.Payables, Inflows: snap.Inflows}.Validate())
	require.NoError(t, ImportSet{}.Validate())

	negative := slices.Clone(snap.Payables)
	negative[0].Amount = core.Cents(-100)
	err := ImportSet{Payables: negative}.Validate()
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.Contains(t, err.Error(), "contas[0]")

	dup := []core.Inflow{snap.Inflows[0], snap.Inflows[0]}
	err = ImportSet{Inflows: dup}.Validate()
	assert.ErrorIs(t, err, core.ErrDuplicateID)
	assert.Contains(t, err.Error(), "entradas[1].id")

	// ids only need to be unique within their own collection
	shared := slices.Clone(snap.Inflows)
	shared[0].ID = snap.Payables[0].ID
	assert.NoError(t, ImportSet{Payables: snap.Payables, Inflows: shared}.Validate())
}
