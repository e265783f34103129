package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slimsayari/woocommerce-typesense-search/internal/domain"
)

func TestDecimalParam(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{"empty", "", nil},
		{"whitespace", "  ", nil},
		{"malformed", "abc", nil},
		{"negative", "-5", nil},
		{"zero", "0", f(0)},
		{"integer", "20", f(20)},
		{"decimal", "19.99", f(19.99)},
		{"padded", " 80 ", f(80)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecimalParam(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestBoolParam(t *testing.T) {
	assert.True(t, BoolParam("1"))
	assert.True(t, BoolParam("true"))
	assert.True(t, BoolParam("YES"))
	assert.True(t, BoolParam("on"))
	assert.False(t, BoolParam(""))
	assert.False(t, BoolParam("0"))
	assert.False(t, BoolParam("false"))
	assert.False(t, BoolParam("garbage"))
}

func TestSortParam_UnknownFallsBackToRelevance(t *testing.T) {
	assert.Equal(t, domain.SortPriceAsc, SortParam("price_asc"))
	assert.Equal(t, domain.SortRelevance, SortParam(""))
	assert.Equal(t, domain.SortRelevance, SortParam("price_sideways"))
}

func TestPageParam(t *testing.T) {
	assert.Equal(t, 1, PageParam(""))
	assert.Equal(t, 1, PageParam("0"))
	assert.Equal(t, 1, PageParam("-3"))
	assert.Equal(t, 1, PageParam("abc"))
	assert.Equal(t, 7, PageParam("7"))
}

func TestPerPageParam(t *testing.T) {
	assert.Equal(t, DefaultPerPage, PerPageParam(""))
	assert.Equal(t, DefaultPerPage, PerPageParam("0"))
	assert.Equal(t, DefaultPerPage, PerPageParam("101"))
	assert.Equal(t, 24, PerPageParam("24"))
	assert.Equal(t, 100, PerPageParam("100"))
}

func TestAttributeSelectionsParam(t *testing.T) {
	got := AttributeSelectionsParam([]string{
		"Couleur:rouge|bleu",
		"Taille:m",
	})
	require.Len(t, got, 2)
	assert.Equal(t, []string{"rouge", "bleu"}, got["Couleur"])
	assert.Equal(t, []string{"m"}, got["Taille"])
}

func TestAttributeSelectionsParam_SkipsMalformedEntries(t *testing.T) {
	got := AttributeSelectionsParam([]string{
		"no-separator",
		":missing-label",
		"Couleur:",
		"Taille: m | l ",
	})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"m", "l"}, got["Taille"])
}

func TestAttributeSelectionsParam_EmptyInputIsNil(t *testing.T) {
	assert.Nil(t, AttributeSelectionsParam(nil))
	assert.Nil(t, AttributeSelectionsParam([]string{"", "broken"}))
}

func TestCSVParam(t *testing.T) {
	assert.Nil(t, CSVParam(""))
	assert.Nil(t, CSVParam(" , ,"))
	assert.Equal(t, []string{"chaussures", "sacs"}, CSVParam("chaussures, sacs"))
}

func f(v float64) *float64 { return &v }
