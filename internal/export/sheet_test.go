package export

import (
	"bytes"
	"testing"

	"github.com/cgillinger/facebook-stats/internal/domain"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// trimRow drops trailing empty cells, which spreadsheets do not store.
func trimRow(row []string) []string {
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}

func readXLSX(t *testing.T, b []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	for i := range rows {
		rows[i] = trimRow(rows[i])
	}
	return rows
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"csv", FormatCSV, false},
		{" XLSX ", FormatXLSX, false},
		{"xls", "", true},
		{"json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
	assert.Contains(t, FormatXLSX.ContentType(), "spreadsheetml")
}

func TestAccountsXLSXMatchesCSV(t *testing.T) {
	table := mapping.DefaultTable()
	selected := domain.NewFieldSet(domain.FieldLikes, domain.FieldReach, domain.FieldPostCount, domain.FieldPostsPerDay)
	summaries := []domain.AccountSummary{
		{Key: "a", Name: "Alfa", AccountID: "123456789012345678", PostCount: 2, PostsPerDay: 0.5,
			Values: map[domain.Field]float64{domain.FieldLikes: 10, domain.FieldReach: 300, domain.FieldPostCount: 2}},
		{Key: "b", Name: "Beta, AB", PostCount: 1, PostsPerDay: 1,
			Values: map[domain.Field]float64{domain.FieldPostCount: 1}},
	}
	sheet := AccountsSheet(table, view.Accounts(summaries), view.Totals(summaries, selected), selected)

	var csvBuf, xlsxBuf bytes.Buffer
	require.NoError(t, sheet.Write(&csvBuf, FormatCSV))
	require.NoError(t, sheet.Write(&xlsxBuf, FormatXLSX))

	want := readAll(t, csvBuf.Bytes())
	got := readXLSX(t, xlsxBuf.Bytes())
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, trimRow(want[i]), got[i], "row %d", i)
	}
	assert.Equal(t, "123456789012345678", got[1][1], "ids keep every digit")
}

func TestXLSXCellTypes(t *testing.T) {
	sheet := &Sheet{
		Header: []string{"Namn", "Id", "Reaktioner"},
		Rows:   [][]Cell{{Text("Alfa"), Text("007"), Number(12.5)}},
	}
	var buf bytes.Buffer
	require.NoError(t, sheet.Write(&buf, FormatXLSX))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	id, err := f.GetCellValue(SheetName, "B2")
	require.NoError(t, err)
	assert.Equal(t, "007", id)

	likes, err := f.GetCellValue(SheetName, "C2")
	require.NoError(t, err)
	assert.Equal(t, "12.5", likes)

	typ, err := f.GetCellType(SheetName, "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeNumber, typ)
}

func TestPostsXLSX(t *testing.T) {
	table := mapping.DefaultTable()
	values := map[domain.Field]domain.Value{
		domain.FieldPostID:    domain.ParseValue("99"),
		domain.FieldAccountID: domain.ParseValue("1"),
		domain.FieldTitle:     domain.ParseValue("Hej"),
		domain.FieldLikes:     domain.ParseValue("4"),
		domain.FieldShares:    domain.ParseValue("1"),
	}
	posts := []domain.Post{{AccountKey: "a", Row: domain.NewRow(values, domain.Origin{})}}
	rows := view.Posts(posts, []domain.AccountSummary{{Key: "a", Name: "Alfa"}})
	selected := domain.NewFieldSet(domain.FieldEngagementTotal, domain.FieldLikes)

	var buf bytes.Buffer
	require.NoError(t, PostsSheet(table, rows, selected).Write(&buf, FormatXLSX))
	got := readXLSX(t, buf.Bytes())

	require.Len(t, got, 2)
	assert.Equal(t, "Reaktioner", got[0][7])
	assert.Equal(t, []string{"Alfa", "", "", "Hej", "", "https://www.facebook.com/1/posts/99", "5", "4"}, got[1])
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, (&Sheet{}).Write(&buf, Format("pdf")))
}
