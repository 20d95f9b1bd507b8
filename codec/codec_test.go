package codec

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	cases := []struct {
		name string
		vt   ValueType
		v    interface{}
	}{
		{"string", TypeString, "hello world"},
		{"empty string", TypeString, ""},
		{"long positive", TypeLong, int64(42)},
		{"long negative", TypeLong, int64(-42)},
		{"long zero", TypeLong, int64(0)},
		{"long min", TypeLong, int64(-9223372036854775808)},
		{"long max", TypeLong, int64(9223372036854775807)},
		{"double positive", TypeDouble, 3.14},
		{"double negative", TypeDouble, -3.14},
		{"double zero", TypeDouble, 0.0},
		{"bool true", TypeBoolean, true},
		{"bool false", TypeBoolean, false},
		{"keyword", TypeKeyword, ":person/name"},
		{"uuid", TypeUUID, uuid.New()},
		{"instant", TypeInstant, now},
		{"ref", TypeRef, int64(1001)},
		{"bytes", TypeBytes, []byte{0x01, 0x02, 0x03}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			enc, err := Encode(c.v, c.vt)
			require.NoError(t, err)
			dec, err := Decode(c.vt, enc)
			require.NoError(t, err)
			switch c.vt {
			case TypeInstant:
				require.True(t, c.v.(time.Time).Equal(dec.(time.Time)))
			default:
				require.Equal(t, c.v, dec)
			}
		})
	}
}

func TestEncodeLongOrderPreserving(t *testing.T) {
	vals := []int64{-100, -2, -1, 0, 1, 2, 100}
	var encoded [][]byte
	for _, v := range vals {
		e, err := Encode(v, TypeLong)
		require.NoError(t, err)
		encoded = append(encoded, e)
	}
	for i := 1; i < len(encoded); i++ {
		require.True(t, string(encoded[i-1]) < string(encoded[i]),
			"encode(%d) should sort before encode(%d)", vals[i-1], vals[i])
	}
}

func TestEncodeDoubleOrderPreserving(t *testing.T) {
	vals := []float64{-100.5, -2.2, -1.0, 0.0, 1.0, 2.2, 100.5}
	var encoded [][]byte
	for _, v := range vals {
		e, err := Encode(v, TypeDouble)
		require.NoError(t, err)
		encoded = append(encoded, e)
	}
	for i := 1; i < len(encoded); i++ {
		require.True(t, string(encoded[i-1]) < string(encoded[i]),
			"encode(%v) should sort before encode(%v)", vals[i-1], vals[i])
	}
}

func TestEncodeStringOrderPreserving(t *testing.T) {
	vals := []string{"alice", "bob", "bobby", "zebra"}
	var encoded [][]byte
	for _, v := range vals {
		e, err := Encode(v, TypeString)
		require.NoError(t, err)
		encoded = append(encoded, e)
	}
	for i := 1; i < len(encoded); i++ {
		require.True(t, string(encoded[i-1]) < string(encoded[i]),
			"encode(%q) should sort before encode(%q)", vals[i-1], vals[i])
	}
}

func TestEncodeShortStringSortsBeforeLongerPrefixedString(t *testing.T) {
	short, err := Encode("bob", TypeString)
	require.NoError(t, err)
	long, err := Encode("bobby", TypeString)
	require.NoError(t, err)
	require.True(t, string(short) < string(long))
}

func TestEncodeRejectsWrongGoType(t *testing.T) {
	_, err := Encode(42, TypeString)
	require.Error(t, err)

	_, err = Encode("not a long", TypeLong)
	require.Error(t, err)
}

func TestTupleRoundTrip(t *testing.T) {
	components := []interface{}{"alice", int64(30), nil}
	types := []ValueType{TypeString, TypeLong, TypeString}

	enc, err := EncodeTuple(components, types)
	require.NoError(t, err)

	values, decTypes, err := DecodeTuple(enc)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"alice", int64(30), nil}, values)
	require.Equal(t, TypeString, decTypes[0])
	require.Equal(t, TypeLong, decTypes[1])
	require.Equal(t, typeNil, decTypes[2])
}

func TestTupleNilComponentSortsLowest(t *testing.T) {
	withNil, err := EncodeTuple([]interface{}{nil}, []ValueType{TypeString})
	require.NoError(t, err)
	withValue, err := EncodeTuple([]interface{}{"a"}, []ValueType{TypeString})
	require.NoError(t, err)
	require.True(t, string(withNil) < string(withValue))
}

func TestTupleComponentCountMismatch(t *testing.T) {
	_, err := EncodeTuple([]interface{}{"a", "b"}, []ValueType{TypeString})
	require.Error(t, err)
}

func TestIsOversize(t *testing.T) {
	small := make([]byte, MaxInlineKeyBytes)
	big := make([]byte, MaxInlineKeyBytes+1)
	require.False(t, IsOversize(small))
	require.True(t, IsOversize(big))
}

func TestGiantKeyIsStableAndDistinguishesContent(t *testing.T) {
	a := GiantKey([]byte("some large payload"))
	b := GiantKey([]byte("some large payload"))
	c := GiantKey([]byte("a different payload"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
