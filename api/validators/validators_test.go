package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type lineBody struct {
	ID  string `json:"id" validate:"required"`
	Qty int    `json:"qty" validate:"gt=0"`
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"id":"a","qty":1,"name":"Mug"}`))
	var dest lineBody
	err := DecodeJSONBody(req, &dest)
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestDecodeStorefrontBodyIgnoresDisplayFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"id":"a","qty":2,"name":"Mug","image":"mug.png"}`))
	var dest lineBody
	require.NoError(t, DecodeStorefrontBody(req, &dest))
	require.Equal(t, 2, dest.Qty)
}

func TestDecodeReportsFieldMessages(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"qty":0}`))
	var dest lineBody
	err := DecodeStorefrontBody(req, &dest)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "is required", details["id"])
	require.Equal(t, "must be greater than 0", details["qty"])
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=30", nil)
	v, err := ParseQueryInt(req, "limit", 25, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 30, v)

	v, err = ParseQueryInt(httptest.NewRequest("GET", "/", nil), "limit", 25, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 25, v)

	_, err = ParseQueryInt(httptest.NewRequest("GET", "/?limit=abc", nil), "limit", 25, 1, 100)
	require.Error(t, err)

	_, err = ParseQueryInt(httptest.NewRequest("GET", "/?limit=500", nil), "limit", 25, 1, 100)
	require.Error(t, err)
	require.Equal(t, "limit is out of range", pkgerrors.As(err).Message())
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "ref_1", SanitizeString("  ref_1 ", 10))
	require.Equal(t, "abc", SanitizeString("abcdef", 3))
	require.Equal(t, "abcdef", SanitizeString("abcdef", 0))
	require.Equal(t, "12 Awolowo Rd", SanitizeString("12 Awolowo\x00 Rd\n", 0))
	// "é" is two bytes; a cut through it drops the whole character.
	require.Equal(t, "Caf", SanitizeString("Café", 4))
}
