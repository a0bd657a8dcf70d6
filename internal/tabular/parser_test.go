package tabular_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ecomsync/feedsync/internal/tabular"
)

func parseString(t *testing.T, data string, opts tabular.Options) *tabular.Table {
	t.Helper()
	table, err := tabular.Parse(strings.NewReader(data), opts)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return table
}

func TestParseNormalizesHeaders(t *testing.T) {
	t.Parallel()

	table := parseString(t, "  Product Name ,Price (EUR),SKU##,\nWidget,9.99,W1,x\n",
		tabular.Options{Delimiter: ',', HasHeader: true})

	want := []string{"product_name", "price_eur", "sku", "unnamed_column"}
	if len(table.Headers) != len(want) {
		t.Fatalf("expected %d headers, got %v", len(want), table.Headers)
	}
	for i, h := range want {
		if table.Headers[i] != h {
			t.Errorf("header %d: expected %q, got %q", i, h, table.Headers[i])
		}
	}
}

func TestParseDeduplicatesHeaders(t *testing.T) {
	t.Parallel()

	table := parseString(t, "SKU,sku,SKU ,Name\na,b,c,d\n",
		tabular.Options{Delimiter: ',', HasHeader: true})

	want := []string{"sku", "sku_1", "sku_2", "name"}
	for i, h := range want {
		if table.Headers[i] != h {
			t.Errorf("header %d: expected %q, got %q", i, h, table.Headers[i])
		}
	}

	seen := map[string]bool{}
	for _, h := range table.Headers {
		if seen[h] {
			t.Fatalf("duplicate header after normalization: %q", h)
		}
		seen[h] = true
	}
}

func TestParseToleratesRaggedRows(t *testing.T) {
	t.Parallel()

	table := parseString(t, "sku,name,price\nW1,Widget\nW2,Gadget,19.99,extra\n",
		tabular.Options{Delimiter: ',', HasHeader: true})

	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["price"] != "" {
		t.Errorf("short row must be padded, got %q", table.Rows[0]["price"])
	}
	if table.Rows[1]["price"] != "19.99" {
		t.Errorf("long row must be truncated to headers, got %q", table.Rows[1]["price"])
	}
}

func TestParsePreservesRowOrder(t *testing.T) {
	t.Parallel()

	table := parseString(t, "sku\nA\nB\nC\n", tabular.Options{Delimiter: ',', HasHeader: true})
	got := []string{table.Rows[0]["sku"], table.Rows[1]["sku"], table.Rows[2]["sku"]}
	if got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Errorf("rows out of order: %v", got)
	}
}

// countingReader tracks how far the parser actually read.
type countingReader struct {
	r    io.Reader
	read int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	return n, err
}

func TestParseRowLimitStopsEarly(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("sku,name\n")
	for i := 0; i < 10000; i++ {
		b.WriteString("W1,Widget with a reasonably long descriptive name\n")
	}

	src := &countingReader{r: strings.NewReader(b.String())}
	table, err := tabular.Parse(src, tabular.Options{Delimiter: ',', HasHeader: true, RowLimit: 3})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("expected exactly 3 rows, got %d", len(table.Rows))
	}
	if src.read >= b.Len() {
		t.Error("parser drained the stream despite the row limit")
	}
}

func TestParseSemicolonDelimiter(t *testing.T) {
	t.Parallel()

	table := parseString(t, "sku;price\nW1;9,99\n", tabular.Options{Delimiter: ';', HasHeader: true})
	if table.Rows[0]["price"] != "9,99" {
		t.Errorf("expected decimal-comma value intact, got %q", table.Rows[0]["price"])
	}
}

func TestParseHeaderlessFile(t *testing.T) {
	t.Parallel()

	table := parseString(t, "W1,Widget\n", tabular.Options{Delimiter: ','})
	if table.Headers[0] != "column_1" || table.Headers[1] != "column_2" {
		t.Errorf("expected synthetic headers, got %v", table.Headers)
	}
	if table.Rows[0]["column_1"] != "W1" {
		t.Errorf("unexpected cell: %q", table.Rows[0]["column_1"])
	}
}

func TestParseLatin1(t *testing.T) {
	t.Parallel()

	// "Größe" in ISO-8859-1.
	data := "name\nGr\xf6\xdfe\n"
	table, err := tabular.Parse(strings.NewReader(data),
		tabular.Options{Delimiter: ',', HasHeader: true, Encoding: "latin-1"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if table.Rows[0]["name"] != "Größe" {
		t.Errorf("expected decoded value, got %q", table.Rows[0]["name"])
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		table    *tabular.Table
		required string
		wantErr  error
	}{
		{
			name:    "no headers",
			table:   &tabular.Table{},
			wantErr: tabular.ErrNoHeaders,
		},
		{
			name:    "no rows",
			table:   &tabular.Table{Headers: []string{"sku"}},
			wantErr: tabular.ErrNoRows,
		},
		{
			name: "duplicate headers",
			table: &tabular.Table{
				Headers: []string{"sku", "sku"},
				Rows:    []tabular.Row{{"sku": "a"}},
			},
			wantErr: tabular.ErrDuplicateHeaders,
		},
		{
			name: "missing required column",
			table: &tabular.Table{
				Headers: []string{"name"},
				Rows:    []tabular.Row{{"name": "x"}},
			},
			required: "sku",
		},
		{
			name: "ok",
			table: &tabular.Table{
				Headers: []string{"sku", "name"},
				Rows:    []tabular.Row{{"sku": "a", "name": "x"}},
			},
			required: "sku",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := tabular.Validate(c.table, c.required)
			switch {
			case c.wantErr != nil:
				if !errors.Is(err, c.wantErr) {
					t.Errorf("expected %v, got %v", c.wantErr, err)
				}
			case c.name == "missing required column":
				if err == nil {
					t.Error("expected error for missing required column")
				}
			default:
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			}
		})
	}
}
