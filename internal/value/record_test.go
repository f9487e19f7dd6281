package value

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormToAPI(t *testing.T) {
	t.Run("blank strings become null", func(t *testing.T) {
		out := FormToAPI(Record{
			"optionalNumber":  String(""),
			"optionalNumber2": String("   "),
		})

		assert.True(t, out["optionalNumber"].IsNull())
		assert.True(t, out["optionalNumber2"].IsNull())
	})

	t.Run("numeric strings are trimmed and parsed", func(t *testing.T) {
		out := FormToAPI(Record{"mandatoryNumber": String(" 3 ")})

		n, ok := out["mandatoryNumber"].Float()
		require.True(t, ok, "expected a number, got %#v", out["mandatoryNumber"])
		assert.Equal(t, 3.0, n)
	})

	t.Run("non-numeric strings pass through trimmed", func(t *testing.T) {
		out := FormToAPI(Record{"mandatoryNumber": String("abc"), "name": String("  Alpha ")})

		s, ok := out["mandatoryNumber"].Str()
		require.True(t, ok)
		assert.Equal(t, "abc", s)

		name, _ := out["name"].Str()
		assert.Equal(t, "Alpha", name)
	})

	t.Run("non-finite spellings are not coerced", func(t *testing.T) {
		out := FormToAPI(Record{"a": String("Infinity"), "b": String("NaN"), "c": String("1e400")})

		for _, k := range []string{"a", "b", "c"} {
			assert.Equal(t, KindString, out[k].Kind(), "field %s", k)
		}
	})

	t.Run("non-string values are preserved", func(t *testing.T) {
		in := Record{
			"bool":   Bool(true),
			"num":    Number(4),
			"nested": Raw(json.RawMessage(`{"a":1}`)),
			"null":   Null(),
		}
		out := FormToAPI(in)

		assert.True(t, out.Equal(in), "got %#v", out)
	})
}

func TestAPIToForm(t *testing.T) {
	t.Run("nullish becomes empty string", func(t *testing.T) {
		out := APIToForm([]string{"a", "b", "c"}, Record{"a": Number(1), "b": Null()})

		want := FormValues{"a": "1", "b": "", "c": ""}
		if diff := cmp.Diff(want, out); diff != "" {
			t.Errorf("APIToForm mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("fields outside the shape are dropped", func(t *testing.T) {
		out := APIToForm([]string{"name"}, Record{"name": String("A"), "_id": String("x")})

		assert.Equal(t, FormValues{"name": "A"}, out)
	})

	t.Run("numbers use shortest round-trip text", func(t *testing.T) {
		tests := []struct {
			in   float64
			want string
		}{
			{0, "0"},
			{3, "3"},
			{-2.5, "-2.5"},
			{0.1, "0.1"},
			{1e20, "100000000000000000000"},
			{1e21, "1e+21"},
			{1.5e-7, "1.5e-7"},
			{123456.789, "123456.789"},
		}
		for _, tt := range tests {
			out := APIToForm([]string{"n"}, Record{"n": Number(tt.in)})
			assert.Equal(t, tt.want, out["n"], "formatting %v", tt.in)
		}
	})
}

func TestAPIToStorage(t *testing.T) {
	out := APIToStorage(Record{
		"optionalNumber":         Null(),
		"optionalPositiveNumber": Number(0),
		"name":                   String("A"),
	})

	_, present := out["optionalNumber"]
	assert.False(t, present, "null field should be absent in storage shape")

	zero, ok := out["optionalPositiveNumber"].Float()
	require.True(t, ok, "a stored zero must stay distinguishable from blank")
	assert.Equal(t, 0.0, zero)
	assert.Len(t, out, 2)
}

func TestFormRoundTrip(t *testing.T) {
	shape := []string{"name", "mandatoryNumber", "uniqueNumber", "optionalNumber", "optionalPositiveNumber"}
	records := []Record{
		{
			"name":                   String("A"),
			"mandatoryNumber":        Number(1),
			"uniqueNumber":           Number(10),
			"optionalNumber":         Null(),
			"optionalPositiveNumber": Null(),
		},
		{
			"name":                   String("B"),
			"mandatoryNumber":        Number(-3.25),
			"uniqueNumber":           Number(0.1),
			"optionalNumber":         Number(0),
			"optionalPositiveNumber": Number(42),
		},
	}

	for _, r := range records {
		back := FormToAPI(APIToForm(shape, r).Record())
		if !back.Equal(r) {
			t.Errorf("round trip changed record:\nwant %#v\ngot  %#v", r, back)
		}
	}
}

func TestValueJSON(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"a":null,"b":1.5,"c":"x","d":true,"e":[1,2]}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, KindNull, rec["a"].Kind())
	assert.Equal(t, KindNumber, rec["b"].Kind())
	assert.Equal(t, KindString, rec["c"].Kind())
	assert.Equal(t, KindBool, rec["d"].Kind())
	assert.Equal(t, KindRaw, rec["e"].Kind())

	out, err := json.Marshal(Record{"n": Number(2), "z": Null()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2,"z":null}`, string(out))

	_, err = json.Marshal(Record{"bad": Number(math.NaN())})
	assert.Error(t, err)
}
