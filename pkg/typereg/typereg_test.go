package typereg

import (
	"testing"

	"github.com/nineking424/nificdc-sub002/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		name string
		from UniversalType
		to   UniversalType
		want bool
	}{
		{"identical", TypeString, TypeString, true},
		{"numeric widening", TypeInteger, TypeLong, true},
		{"numeric widening to decimal", TypeLong, TypeDecimal, true},
		{"numeric narrowing is compatible but lossy", TypeLong, TypeInteger, true},
		{"string to text", TypeString, TypeText, true},
		{"text to string", TypeText, TypeString, true},
		{"datetime family", TypeDate, TypeTimestamp, true},
		{"anything to json", TypeObject, TypeJSON, true},
		{"binary to json", TypeBinary, TypeJSON, true},
		{"string to integer", TypeString, TypeInteger, false},
		{"boolean to numeric", TypeBoolean, TypeInteger, false},
		{"datetime to text", TypeDatetime, TypeString, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCompatible(tt.from, tt.to))
		})
	}
}

func TestIsLossy(t *testing.T) {
	assert.True(t, IsLossy(TypeLong, TypeInteger))
	assert.True(t, IsLossy(TypeText, TypeString))
	assert.True(t, IsLossy(TypeTimestamp, TypeDatetime))
	assert.False(t, IsLossy(TypeInteger, TypeLong))
	assert.False(t, IsLossy(TypeString, TypeString))
}

func TestUniversalRoundTrip(t *testing.T) {
	// Round-trippable families: integer, text, datetime without tz.
	roundTrip := []UniversalType{
		TypeString, TypeText, TypeInteger, TypeLong,
		TypeDate, TypeTime, TypeDatetime, TypeBoolean,
	}
	for _, u := range roundTrip {
		native := FromUniversal(types.SystemPostgres, u)
		back := ToUniversal(types.SystemPostgres, native)
		assert.Equal(t, CategoryOf(u), CategoryOf(back), "category preserved for %s via %s", u, native)
	}

	// Exact round trip where the native type is unambiguous.
	assert.Equal(t, TypeLong, ToUniversal(types.SystemPostgres, FromUniversal(types.SystemPostgres, TypeLong)))
	assert.Equal(t, TypeText, ToUniversal(types.SystemPostgres, FromUniversal(types.SystemPostgres, TypeText)))
	assert.Equal(t, TypeDatetime, ToUniversal(types.SystemPostgres, FromUniversal(types.SystemPostgres, TypeDatetime)))
}

func TestToUniversalStripsLength(t *testing.T) {
	assert.Equal(t, TypeString, ToUniversal(types.SystemMySQL, "VARCHAR(255)"))
	assert.Equal(t, TypeDecimal, ToUniversal(types.SystemPostgres, "numeric(10,2)"))
}

func TestToUniversalFallback(t *testing.T) {
	assert.Equal(t, TypeJSON, ToUniversal(types.SystemDocument, "whatever"))
	assert.Equal(t, TypeString, ToUniversal(types.SystemPostgres, "whatever"))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"exact", "user_id", "user_id", 1.0, 1.0},
		{"normalised equal", "user_id", "UserID", 1.0, 1.0},
		{"containment", "customer_email", "email", 0.8, 1.0},
		{"near match", "usr_id", "user_id", 0.5, 1.0},
		{"unrelated", "zzzz", "email", 0.0, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestSimilarityBounds(t *testing.T) {
	pairs := [][2]string{{"a", "b"}, {"abc", ""}, {"name", "first_name"}, {"x", "x"}}
	for _, p := range pairs {
		s := Similarity(p[0], p[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
