package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
)

func TestCallTable(t *testing.T) {
	tests := []struct {
		name  string
		fn    string
		value any
		args  []any
		want  any
	}{
		{"upper", "string.upper", "hello", nil, "HELLO"},
		{"lower", "string.lower", "HeLLo", nil, "hello"},
		{"trim", "string.trim", "  x  ", nil, "x"},
		{"replace regex", "string.replace", "a1b2", []any{`\d`, "#"}, "a#b#"},
		{"truncate", "string.truncate", "abcdef", []any{3}, "abc..."},
		{"truncate short", "string.truncate", "ab", []any{3}, "ab"},
		{"padLeft", "string.padLeft", "7", []any{3, "0"}, "007"},
		{"slugify", "string.slugify", "Hello, World!", nil, "hello-world"},
		{"camelCase", "string.camelCase", "user_name_id", nil, "userNameId"},
		{"snakeCase", "string.snakeCase", "userNameID", nil, "user_name_id"},
		{"kebabCase", "string.kebabCase", "UserName", nil, "user-name"},
		{"jamo full", "string.jamoDecompose", "한", nil, "ㅎㅏㄴ"},
		{"jamo initials", "string.jamoInitials", "한국", nil, "ㅎㄱ"},
		{"jamo passthrough", "string.jamoDecompose", "abc", nil, "abc"},

		{"parseInt", "number.parseInt", "42", nil, int64(42)},
		{"parseFloat", "number.parseFloat", "3.5", nil, 3.5},
		{"round digits", "number.round", 3.14159, []any{2}, 3.14},
		{"floor", "number.floor", 3.9, nil, 3.0},
		{"ceil", "number.ceil", 3.1, nil, 4.0},
		{"abs", "number.abs", -5.0, nil, 5.0},
		{"fixed", "number.fixed", 3.14159, []any{2}, "3.14"},
		{"percent", "number.percent", 0.256, []any{1}, "25.6%"},
		{"currency", "number.currency", 1234567.5, []any{"KRW", 0}, "KRW 1,234,568"},
		{"humanBytes", "number.humanBytes", 2048, nil, "2.0 KiB"},
		{"clamp", "number.clamp", 15.0, []any{0, 10}, 10.0},

		{"array first", "array.first", []any{1, 2, 3}, nil, 1},
		{"array last", "array.last", []any{1, 2, 3}, nil, 3},
		{"array sum", "array.sum", []any{1, 2, 3}, nil, 6.0},
		{"array avg", "array.avg", []any{2, 4}, nil, 3.0},
		{"array min", "array.min", []any{3, 1, 2}, nil, 1},
		{"array max", "array.max", []any{3, 1, 2}, nil, 3},
		{"array unique", "array.unique", []any{1, 1, 2}, nil, []any{1, 2}},
		{"array compact", "array.compact", []any{1, nil, "", 2}, nil, []any{1, 2}},
		{"array flatten", "array.flatten", []any{1, []any{2, 3}}, nil, []any{1, 2, 3}},

		{"ifNull hit", "conditional.ifNull", nil, []any{"fallback"}, "fallback"},
		{"ifNull miss", "conditional.ifNull", "x", []any{"fallback"}, "x"},
		{"ifEmpty", "conditional.ifEmpty", "", []any{"d"}, "d"},
		{"ifElse true", "conditional.ifElse", true, []any{"a", "b"}, "a"},
		{"ifElse falsy", "conditional.ifElse", 0, []any{"a", "b"}, "b"},
		{"inRange", "conditional.inRange", 5, []any{1, 10}, true},
		{"inArray", "conditional.inArray", "b", []any{[]any{"a", "b"}}, true},

		{"base64 round", "encoding.base64Encode", "hi", nil, "aGk="},
		{"urlEncode", "encoding.urlEncode", "a b", nil, "a+b"},
		{"jsonStringify", "encoding.jsonStringify", map[string]any{"a": 1}, nil, `{"a":1}`},

		{"sha256", "hash.sha256", "abc", nil,
			"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},

		{"email ok", "validator.email", "a@b.co", nil, true},
		{"email bad", "validator.email", "not-an-email", nil, false},
		{"url ok", "validator.url", "https://example.com/x", nil, true},
		{"uuid ok", "validator.uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil, true},
		{"uuid bad", "validator.uuid", "nope", nil, false},
		{"luhn ok", "validator.creditCard", "4111 1111 1111 1111", nil, true},
		{"luhn bad", "validator.creditCard", "4111111111111112", nil, false},
		{"ipv4", "validator.ipv4", "10.0.0.1", nil, true},
		{"ipv6", "validator.ipv6", "::1", nil, true},
		{"postal KR", "validator.postalCode", "06236", []any{"KR"}, true},
		{"validator null is false", "validator.email", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Call(tt.fn, tt.value, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNullFlowsThrough(t *testing.T) {
	for _, fn := range []string{"string.upper", "number.round", "date.toMillis", "hash.md5"} {
		got, err := Call(fn, nil, nil)
		require.NoError(t, err, fn)
		assert.Nil(t, got, fn)
	}
}

func TestDateFunctions(t *testing.T) {
	t.Run("format with token pattern", func(t *testing.T) {
		got, err := Call("date.format", "2024-03-15T10:30:00Z", []any{"YYYY/MM/DD HH:mm"})
		require.NoError(t, err)
		assert.Equal(t, "2024/03/15 10:30", got)
	})

	t.Run("parse with explicit pattern", func(t *testing.T) {
		got, err := Call("date.parse", "15/03/2024", []any{"DD/MM/YYYY"})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("addDays", func(t *testing.T) {
		got, err := Call("date.addDays", "2024-01-30", []any{3})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("diff in days", func(t *testing.T) {
		got, err := Call("date.diff", "2024-03-15", []any{"2024-03-10", "days"})
		require.NoError(t, err)
		assert.Equal(t, int64(5), got)
	})

	t.Run("millis round trip", func(t *testing.T) {
		ms, err := Call("date.toMillis", "2024-03-15T00:00:00Z", nil)
		require.NoError(t, err)
		back, err := Call("date.fromMillis", ms, nil)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), back)
	})

	t.Run("unparseable input", func(t *testing.T) {
		_, err := Call("date.parse", "not a date", nil)
		assert.True(t, errdefs.IsValidation(err))
	})
}

func TestObjectFunctions(t *testing.T) {
	obj := map[string]any{"a": 1, "b": 2, "c": map[string]any{"d": 3}}

	got, err := Call("object.pick", obj, []any{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "c": map[string]any{"d": 3}}, got)

	got, err = Call("object.omit", obj, []any{"b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, got)

	got, err = Call("object.get", obj, []any{"c.d"})
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	got, err = Call("object.get", obj, []any{"c.x", "def"})
	require.NoError(t, err)
	assert.Equal(t, "def", got)

	got, err = Call("object.deepMerge",
		map[string]any{"a": map[string]any{"x": 1}, "b": 1},
		[]any{map[string]any{"a": map[string]any{"y": 2}, "b": 2}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"x": 1, "y": 2}, "b": 2}, got)

	got, err = Call("object.mapValues", map[string]any{"k": "v"}, []any{"string.upper"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "V"}, got)
}

func TestArrayStructured(t *testing.T) {
	items := []any{
		map[string]any{"name": "b", "n": 2},
		map[string]any{"name": "a", "n": 1},
		map[string]any{"name": "a", "n": 3},
	}

	sorted, err := Call("array.sort", items, []any{"n", "desc"})
	require.NoError(t, err)
	first := sorted.([]any)[0].(map[string]any)
	assert.Equal(t, 3, first["n"])

	grouped, err := Call("array.groupBy", items, []any{"name"})
	require.NoError(t, err)
	groups := grouped.(map[string]any)
	assert.Len(t, groups["a"], 2)
	assert.Len(t, groups["b"], 1)

	chunked, err := Call("array.chunk", []any{1, 2, 3, 4, 5}, []any{2})
	require.NoError(t, err)
	assert.Len(t, chunked, 3)

	diff, err := Call("array.diff", []any{1, 2, 3}, []any{[]any{2}})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 3}, diff)
}

func TestArity(t *testing.T) {
	_, err := Call("string.replace", "x", []any{"only-one"})
	assert.True(t, errdefs.IsValidation(err))

	_, err = Call("string.upper", "x", []any{"extra"})
	assert.True(t, errdefs.IsValidation(err))

	_, err = Call("no.such", "x", nil)
	assert.True(t, errdefs.IsValidation(err))
}

func TestLookupMetadata(t *testing.T) {
	f, err := Lookup("string.replace")
	require.NoError(t, err)
	assert.Equal(t, 2, f.MinArgs)
	assert.Equal(t, 2, f.MaxArgs)
	assert.Equal(t, "string.replace", f.FullName())

	assert.NotEmpty(t, Names())
}

func TestNumberRandom(t *testing.T) {
	for i := 0; i < 20; i++ {
		got, err := Call("number.random", nil, []any{10.0, 20.0})
		require.NoError(t, err)
		f, ok := got.(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, f, 10.0)
		assert.Less(t, f, 20.0)
	}

	// Defaults to the unit interval.
	got, err := Call("number.random", nil, nil)
	require.NoError(t, err)
	f := got.(float64)
	assert.GreaterOrEqual(t, f, 0.0)
	assert.Less(t, f, 1.0)

	_, err = Call("number.random", nil, []any{20.0, 10.0})
	require.Error(t, err)
}
