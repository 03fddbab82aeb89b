package record

import (
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storefront/internal/domain"
)

func sampleLines() []domain.CartLine {
	return []domain.CartLine{
		{
			ProductID:         101,
			VariantAttributes: domain.Attributes{},
			Quantity:          2,
			Price:             decimal.RequireFromString("9.99"),
			Currency:          "USD",
			Name:              "Mug; large & \"blue\"",
		},
		{
			ProductID:         202,
			VariantAttributes: domain.Attributes{"Size": "M", "Color": "Red"},
			Quantity:          1,
			Price:             decimal.RequireFromString("25"),
			Currency:          "USD",
		},
	}
}

func assertSameLines(t *testing.T, want, got []domain.CartLine) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ProductID, got[i].ProductID)
		assert.True(t, want[i].VariantAttributes.Equal(got[i].VariantAttributes))
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.True(t, want[i].Price.Equal(got[i].Price), "price %s != %s", want[i].Price, got[i].Price)
		assert.Equal(t, want[i].Currency, got[i].Currency)
		assert.Equal(t, want[i].Name, got[i].Name)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	lines := sampleLines()

	encoded, err := Encode(lines)
	require.NoError(t, err)
	assert.NotContains(t, encoded, ";")
	assert.NotContains(t, encoded, " ")
	assert.NotContains(t, encoded, `"`)

	var got []domain.CartLine
	require.NoError(t, Decode(encoded, &got))
	assertSameLines(t, lines, got)
}

func TestDecode_RawJSON(t *testing.T) {
	var got []domain.CartLine
	raw := `[{"productId":101,"quantity":2,"price":9.99,"currency":"USD","variantAttributes":{}}]`

	require.NoError(t, Decode(raw, &got))
	require.Len(t, got, 1)
	assert.Equal(t, domain.ProductID(101), got[0].ProductID)
	assert.Equal(t, "9.99", got[0].Price.String())
}

func TestDecode_FormEncoded(t *testing.T) {
	raw := `[{"productId":5,"quantity":1,"price":"1.50","currency":"EUR","name":"Two words"}]`
	var got []domain.CartLine

	require.NoError(t, Decode(url.QueryEscape(raw), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Two words", got[0].Name)
}

func TestEncode_PlusAndSpaceSurviveFormDecoding(t *testing.T) {
	lines := []domain.CartLine{{
		ProductID:         7,
		VariantAttributes: domain.Attributes{"Size": "XL+", "Color": "Navy Blue"},
		Quantity:          1,
		Price:             decimal.NewFromInt(3),
		Currency:          "USD",
		Name:              "C++ Primer",
	}}

	encoded, err := Encode(lines)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "+")
	assert.Contains(t, encoded, "%2B")
	assert.Contains(t, encoded, "%20")

	formDecoded, err := url.QueryUnescape(encoded)
	require.NoError(t, err)
	pathDecoded, err := url.PathUnescape(encoded)
	require.NoError(t, err)
	assert.Equal(t, formDecoded, pathDecoded)

	var got []domain.CartLine
	require.NoError(t, Decode(encoded, &got))
	assertSameLines(t, lines, got)
}

func TestDecode_FormEncodedAttributes(t *testing.T) {
	raw := `[{"productId":7,"quantity":1,"price":"3","currency":"USD","name":"C++ Primer",` +
		`"variantAttributes":{"Color":"Navy Blue","Size":"XL+"}}]`
	var got []domain.CartLine

	require.NoError(t, Decode(url.QueryEscape(raw), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "C++ Primer", got[0].Name)
	assert.True(t, got[0].VariantAttributes.Equal(domain.Attributes{"Color": "Navy Blue", "Size": "XL+"}),
		"attributes %v", got[0].VariantAttributes)
}

func TestDecode_Corrupt(t *testing.T) {
	for _, value := range []string{"not json", "%E0%A4%A", `{"productId":`, `"just a string"`} {
		var got []domain.CartLine
		err := Decode(value, &got)
		assert.ErrorIs(t, err, ErrCorrupt, value)
	}
}

func TestDecode_EmptyIsNoop(t *testing.T) {
	var got []domain.CartLine
	require.NoError(t, Decode("   ", &got))
	assert.Nil(t, got)
}
