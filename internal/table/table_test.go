package table

import (
	"bytes"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapscale/internal/fixture"
	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// originalLayout is the uid/production/production_user/branch column layout.
var originalLayout = Options{Columns: Columns{
	ID:       "uid",
	Value:    "production",
	Override: "production_user",
	Lineage:  "branch",
}}

const sampleCSV = `uid,production,production_user,branch
0,1,,[]
1,0.5,0.25,[0]
2,0.2,,"[0, 1]"
3,0.1,NaN,[0]
4,0.1,0.18,"[0, 1, 2]"
5,0.05,,"[0, 1, 2, 4]"
6,0.01,None,"[0, 1, 2, 4, 5]"
`

func TestReadCSV_OriginalLayout(t *testing.T) {
	got, err := Read(strings.NewReader(sampleCSV), FormatCSV, originalLayout)
	require.NoError(t, err)
	assert.Equal(t, fixture.Sample(), got)
}

func TestReadCSV_DelimitedLineage(t *testing.T) {
	in := "id,value,override,lineage\na,1,,\nb,2,3,a\nc,4,,a|b\n"

	got, err := Read(strings.NewReader(in), FormatCSV, Options{})
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())

	assert.Equal(t, []string{}, got.Nodes[0].Lineage)
	assert.Equal(t, []string{"a"}, got.Nodes[1].Lineage)
	assert.Equal(t, []string{"a", "b"}, got.Nodes[2].Lineage)
	assert.Nil(t, got.Nodes[0].Override)
	require.NotNil(t, got.Nodes[1].Override)
	assert.Equal(t, 3.0, *got.Nodes[1].Override)
}

func TestReadCSV_MissingColumns(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		opts   Options
		column string
		row    int
	}{
		{
			name:   "empty input",
			input:  "",
			column: "id",
			row:    -1,
		},
		{
			name:   "no lineage column",
			input:  "id,value,override\na,1,\n",
			column: "lineage",
			row:    -1,
		},
		{
			name:   "no override column",
			input:  "id,value,lineage\na,1,\n",
			column: "override",
			row:    -1,
		},
		{
			name:   "blank value",
			input:  "id,value,override,lineage\na,1,,\nb,,,a\n",
			column: "value",
			row:    1,
		},
		{
			name:   "blank id",
			input:  "id,value,override,lineage\n,1,,\n",
			column: "id",
			row:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), FormatCSV, tt.opts)
			require.Error(t, err)

			var mce *propagate.MissingColumnError
			require.True(t, errors.As(err, &mce), "expected MissingColumnError, got %v", err)
			assert.Equal(t, tt.column, mce.Column)
			assert.Equal(t, tt.row, mce.Row)
		})
	}
}

func TestReadCSV_AllowMissingOverride(t *testing.T) {
	got, err := Read(strings.NewReader("id,value,lineage\na,1,\nb,2,a\n"), FormatCSV, Options{AllowMissingOverride: true})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.Nil(t, got.Nodes[1].Override)
}

func TestReadCSV_InvalidNumber(t *testing.T) {
	_, err := Read(strings.NewReader("id,value,override,lineage\na,lots,,\n"), FormatCSV, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0: invalid value")
}

func TestReadJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name: "array",
			input: `[
				{"id": 0, "value": 1, "override": null, "lineage": []},
				{"id": 1, "value": 0.5, "override": 0.25, "lineage": [0]},
				{"id": 2, "value": 0.2, "override": null, "lineage": [0, 1]},
				{"id": 3, "value": 0.1, "override": null, "lineage": [0]},
				{"id": 4, "value": 0.1, "override": 0.18, "lineage": [0, 1, 2]},
				{"id": 5, "value": 0.05, "override": null, "lineage": [0, 1, 2, 4]},
				{"id": 6, "value": 0.01, "override": null, "lineage": [0, 1, 2, 4, 5]}
			]`,
		},
		{
			name: "nodes object with string ids",
			input: `{"nodes": [
				{"id": "0", "value": 1, "override": null, "lineage": []},
				{"id": "1", "value": 0.5, "override": 0.25, "lineage": ["0"]},
				{"id": "2", "value": 0.2, "override": null, "lineage": "0|1"},
				{"id": "3", "value": 0.1, "override": null, "lineage": ["0"]},
				{"id": "4", "value": 0.1, "override": 0.18, "lineage": ["0", "1", "2"]},
				{"id": "5", "value": 0.05, "override": null, "lineage": ["0", "1", "2", "4"]},
				{"id": "6", "value": 0.01, "override": null, "lineage": ["0", "1", "2", "4", "5"]}
			]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(strings.NewReader(tt.input), FormatJSON, Options{})
			require.NoError(t, err)
			assert.Equal(t, fixture.Sample(), got)
		})
	}
}

func TestReadJSON_MissingOverrideKey(t *testing.T) {
	in := `[{"id": "a", "value": 1, "lineage": []}]`

	_, err := Read(strings.NewReader(in), FormatJSON, Options{})
	assert.ErrorIs(t, err, propagate.ErrMissingColumn)

	got, err := Read(strings.NewReader(in), FormatJSON, Options{AllowMissingOverride: true})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestReadYAML(t *testing.T) {
	in := `
- {uid: 0, production: 1, production_user: null, branch: []}
- {uid: 1, production: 0.5, production_user: 0.25, branch: [0]}
- {uid: 2, production: 0.2, production_user: null, branch: [0, 1]}
- {uid: 3, production: 0.1, production_user: .nan, branch: [0]}
- {uid: 4, production: 0.1, production_user: 0.18, branch: [0, 1, 2]}
- {uid: 5, production: 0.05, production_user: ~, branch: [0, 1, 2, 4]}
- {uid: 6, production: 0.01, production_user: null, branch: [0, 1, 2, 4, 5]}
`
	got, err := Read(strings.NewReader(in), FormatYAML, originalLayout)
	require.NoError(t, err)
	assert.Equal(t, fixture.Sample(), got)
}

func TestWriteRead_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, format, fixture.Sample(), originalLayout))

			got, err := Read(&buf, format, originalLayout)
			require.NoError(t, err)
			assert.Equal(t, fixture.Sample(), got)
		})
	}
}

func TestWriteCSV_Layout(t *testing.T) {
	var buf bytes.Buffer
	tbl := propagate.NewTable(
		propagate.Node{ID: "a", Value: 1},
		propagate.Node{ID: "b", Value: 0.5, Override: propagate.Float(0.25), Lineage: []string{"a"}},
	)
	require.NoError(t, Write(&buf, FormatCSV, tbl, Options{}))
	assert.Equal(t, "id,value,override,lineage\na,1,,\nb,0.5,0.25,a\n", buf.String())
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	got, err := ReadFile(path, FormatAuto, originalLayout)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Len())

	_, err = ReadFile(filepath.Join(dir, "nodes.txt"), FormatAuto, originalLayout)
	assert.ErrorContains(t, err, "cannot infer table format")

	_, err = ReadFile(filepath.Join(dir, "missing.csv"), FormatAuto, originalLayout)
	assert.ErrorContains(t, err, "failed to open table")
}

func TestRead_SniffsFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"csv", "id,value,override,lineage\na,1,,\nb,2,4,a\n"},
		{"json array", "  \n[{\"id\": \"a\", \"value\": 1, \"override\": null, \"lineage\": []}, {\"id\": \"b\", \"value\": 2, \"override\": 4, \"lineage\": [\"a\"]}]"},
		{"json object", `{"nodes": [{"id": "a", "value": 1, "override": null, "lineage": ""}, {"id": "b", "value": 2, "override": 4, "lineage": "a"}]}`},
		{"yaml", "- {id: a, value: 1, override: null, lineage: []}\n- {id: b, value: 2, override: 4, lineage: [a]}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(strings.NewReader(tt.input), FormatAuto, Options{})
			require.NoError(t, err)
			require.Equal(t, 2, got.Len())
			assert.Equal(t, []string{"a"}, got.Nodes[1].Lineage)
			require.NotNil(t, got.Nodes[1].Override)
			assert.Equal(t, 4.0, *got.Nodes[1].Override)
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatAuto, false},
		{"CSV", FormatCSV, false},
		{"json", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"parquet", "", true},
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
}

func TestParseLineage(t *testing.T) {
	tests := []struct {
		name  string
		input any
		sep   string
		want  []string
	}{
		{"nil", nil, "", []string{}},
		{"blank", "  ", "", []string{}},
		{"empty json", "[]", "", []string{}},
		{"json ints", "[0, 1, 2]", "", []string{"0", "1", "2"}},
		{"single-quoted strings", "['a', 'b']", "", []string{"a", "b"}},
		{"pipe", "a|b|c", "", []string{"a", "b", "c"}},
		{"custom separator", "a > b", ">", []string{"a", "b"}},
		{"list", []any{1, "x"}, "", []string{"1", "x"}},
		{"float ids", []any{3.0}, "", []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLineage(tt.input, tt.sep)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLineage("[0, 1", "")
	assert.Error(t, err)
}

func TestParseOverride(t *testing.T) {
	for _, blank := range []any{nil, "", "null", "NaN", "NA", "None", "<NA>"} {
		got, err := ParseOverride(blank)
		require.NoError(t, err)
		assert.Nil(t, got, "%v should mean no override", blank)
	}

	got, err := ParseOverride("0.18")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 0.18, *got)

	_, err = ParseOverride("abc")
	assert.Error(t, err)
}

type fixedDecimal struct{ v float64 }

func (d fixedDecimal) Float64() float64 { return d.v }

func TestParseFloat_NumericTypes(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  float64
	}{
		{"int", int(3), 3},
		{"int8", int8(-2), -2},
		{"int16", int16(300), 300},
		{"int32", int32(7), 7},
		{"int64", int64(9), 9},
		{"uint", uint(4), 4},
		{"uint8", uint8(8), 8},
		{"uint16", uint16(16), 16},
		{"uint32", uint32(32), 32},
		{"uint64", uint64(64), 64},
		{"float32", float32(0.5), 0.5},
		{"float64", 0.18, 0.18},
		{"big int", big.NewInt(1 << 40), 1 << 40},
		{"decimal", fixedDecimal{0.25}, 0.25},
		{"string", " 0.1 ", 0.1},
		{"bytes", []byte("2.5"), 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFloat(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFloat(struct{}{})
	assert.ErrorContains(t, err, "unsupported numeric type")
}

func TestParseID_NumericTypes(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"int8", int8(1), "1"},
		{"int16", int16(12), "12"},
		{"uint8", uint8(3), "3"},
		{"uint", uint(40), "40"},
		{"float32", float32(2), "2"},
		{"float64", 3.0, "3"},
		{"big int", new(big.Int).Lsh(big.NewInt(1), 70), "1180591620717411303424"},
		{"decimal", fixedDecimal{5}, "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseID(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
