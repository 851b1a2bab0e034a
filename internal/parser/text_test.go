package parser

import (
	"strings"
	"testing"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// row is a record type used to observe the raw decoded fields.
type row struct{ f fields }

func (row) Shape() domain.Shape { return "test" }

// fourFieldLayout keeps every field verbatim so decoding can be checked apart
// from any shipped layout's field rules.
var fourFieldLayout = lineLayout{minFields: 4, build: func(f fields) (domain.Record, bool) {
	if _, ok := f.number(3); !ok {
		return nil, false
	}
	return row{f: f}, true
}}

func TestDecodeLines_JumplineToken(t *testing.T) {
	records, err := decodeLines("bridges", "Ponte Rio-Niterói;Fechada;pulalinha;99", fourFieldLayout)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0].(row).f
	assert.Equal(t, fields{"Ponte Rio-Niterói", "Fechada", "\n", "99"}, got)
}

func TestDecodeLines_DropsMalformedLines(t *testing.T) {
	payload := strings.Join([]string{
		"A;b;c;1",
		"too;short",
		"",
		"B;b;c;not-a-number",
		"   ",
		"C;b;c;2,5",
		"D;b;c;3;extra",
	}, "\n")

	records, err := decodeLines("test", payload, fourFieldLayout)
	require.NoError(t, err)

	var names []string
	for _, r := range records {
		names = append(names, r.(row).f.text(0))
	}
	assert.Equal(t, []string{"A", "C", "D"}, names)
}

func TestDecodeLines_NoUsableData(t *testing.T) {
	tests := map[string]string{
		"empty":       "",
		"whitespace":  " \n\r\n ",
		"all dropped": "x;y\nz;w;v;nan-ish",
		"bom only":    "\ufeff",
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			records, err := decodeLines("rain", payload, fourFieldLayout)
			assert.Empty(t, records)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrParsingFailed)
			assert.Equal(t, domain.KindParsingFailed, domain.KindOf(err))
		})
	}
}

func TestDecodeLines_CRLFAndBOM(t *testing.T) {
	records, err := decodeLines("test", "\ufeffA;b;c;1\r\nB;b;c;2\r\n", fourFieldLayout)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", records[0].(row).f.text(0))
	assert.Equal(t, "2", records[1].(row).f.text(3))
}

func TestUnescape_OrderIndependent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Aviso pulalinha Linha pontoevirgula Vermelha", "Aviso \n Linha ; Vermelha"},
		{"Linha pontoevirgula Amarela pulalinha fechada", "Linha ; Amarela \n fechada"},
		{"PULALINHA PontoEVirgula PulaLinha", "\n ; \n"},
		{"nothing to do", "nothing to do"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unescape(tt.in))
	}
}

func TestDecodeLines_EscapedSeparatorDoesNotSplit(t *testing.T) {
	records, err := decodeLines("test", "Rua A pontoevirgula esquina;b;c;1", fourFieldLayout)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Rua A ; esquina", records[0].(row).f.text(0))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{"12,5", 12.5, true},
		{` "12,5" `, 12.5, true},
		{"'-43.2'", -43.2, true},
		{"\t7\t", 7, true},
		{"", 0, false},
		{`""`, 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"05:40", 340, true},
		{"18:20:59", 1100, true},
		{"06h15", 375, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"1230", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseClock(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseGeo(t *testing.T) {
	assert.Equal(t, &domain.Geo{Lat: -22.9, Lon: -43.2}, parseGeo("-22,9", "-43.2"))
	assert.Nil(t, parseGeo("", "-43.2"))
	assert.Nil(t, parseGeo("-22.9", "x"))
	assert.Nil(t, parseGeo("0", "0"))
	assert.Nil(t, parseGeo("95", "10"))
	assert.Nil(t, parseGeo("10", "190"))
}
