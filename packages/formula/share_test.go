package formula

import (
	"encoding/base64"
	"net/url"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShareRoundTrip(t *testing.T) {
	states := []State{
		{
			Templates: []string{"max(a, b, c)", "r1×2÷3", "sin(x)"},
			Variables: map[string]string{"a": "1", "b": "2, 3", "x": "30"},
			UseDegree: true,
		},
		{
			Templates: []string{"1"},
			Variables: map[string]string{},
		},
		{
			Templates: []string{"x < y && \"quoted\""},
			Variables: map[string]string{"x": "=&?#"},
		},
	}
	for _, state := range states {
		decoded, err := DecodeShare(EncodeShare(state))
		require.NoError(t, err)
		assert.Equal(t, state, decoded)

		decoded, err = ParseShareQuery("https://example.com/calc?" + QueryString(state))
		require.NoError(t, err)
		assert.Equal(t, state, decoded)
	}
}

func TestQueryStringOrder(t *testing.T) {
	q := QueryString(State{Templates: []string{"1"}})
	require.True(t, strings.HasPrefix(q, "f="))
	assert.Less(t, strings.Index(q, "&v="), strings.Index(q, "&o="))

	values, err := url.ParseQuery(q)
	require.NoError(t, err)
	opts, err := base64.StdEncoding.DecodeString(values.Get(ParamOptions))
	require.NoError(t, err)
	assert.JSONEq(t, `{"useDegree":false}`, string(opts))
	vars, err := base64.StdEncoding.DecodeString(values.Get(ParamVariables))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(vars))
}

func TestDecodeShareLegacyFormulas(t *testing.T) {
	legacy := base64.StdEncoding.EncodeToString([]byte("1+2,r1*x"))
	state, err := DecodeShare(url.Values{ParamFormulas: {legacy}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1+2", "r1*x"}, state.Templates)
	assert.Nil(t, state.Variables)
	assert.False(t, state.UseDegree)
}

func TestDecodeShareLenientBase64(t *testing.T) {
	raw := []byte(`{"x":">>>"}`)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		state, err := DecodeShare(url.Values{ParamVariables: {enc.EncodeToString(raw)}})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"x": ">>>"}, state.Variables)
	}

	// '+' decoded to a blank by an unescaped query
	std := base64.StdEncoding.EncodeToString(raw)
	require.Contains(t, std, "+")
	state, err := DecodeShare(url.Values{ParamVariables: {strings.ReplaceAll(std, "+", " ")}})
	require.NoError(t, err)
	assert.Equal(t, ">>>", state.Variables["x"])
}

func TestDecodeShareNonStringVariables(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(`{"a":2.5,"b":true,"c":null,"d":"7"}`))
	state, err := DecodeShare(url.Values{ParamVariables: {raw}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2.5", "b": "true", "c": "null", "d": "7"}, state.Variables)
}

func TestDecodeShareInvalidParams(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	good := EncodeShare(State{Templates: []string{"a*2"}, UseDegree: true})
	values := url.Values{
		ParamFormulas:  {good.Get(ParamFormulas)},
		ParamVariables: {"!!!not base64"},
		ParamOptions:   {base64.StdEncoding.EncodeToString([]byte("[1]"))},
	}
	state, err := DecodeShare(values)
	require.Error(t, err)
	assert.Equal(t, []string{"a*2"}, state.Templates, "valid parameters still apply")
	assert.Nil(t, state.Variables)
	assert.False(t, state.UseDegree)
	assert.Contains(t, err.Error(), `"v"`)
	assert.Contains(t, err.Error(), `"o"`)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, InvalidArgument, appErr.Code)

	_, err = DecodeShare(url.Values{ParamVariables: {base64.StdEncoding.EncodeToString([]byte(`"x"`))}})
	assert.Error(t, err)
	_, err = DecodeShare(url.Values{ParamVariables: {base64.StdEncoding.EncodeToString([]byte(`null`))}})
	assert.Error(t, err)

	_, err = ParseShareQuery("?f=%zz")
	assert.Error(t, err)

	state, err = DecodeShare(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, State{}, state)
}

func TestShareLoadsIntoSheet(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "webtool.formula")
	defer teardown()
	//
	state, err := ParseShareQuery(QueryString(State{
		Templates: []string{"sin(x)", "r1×4"},
		Variables: map[string]string{"x": "30"},
		UseDegree: true,
	}))
	require.NoError(t, err)

	sheet := NewSheet()
	sheet.Load(state)
	results := sheet.Evaluate()
	require.Len(t, results, 2)
	assert.InDelta(t, 2.0, results[1].Value, 1e-9)
}
