package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTaggedRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		tag     Tag
		payload uint16
	}{
		{TagInteger, 0},
		{TagInteger, 1234},
		{TagList, 65535},
		{TagCode, 1},
		{TagString, 42},
		{TagLocal, 3},
		{TagBuiltin, uint16(opAdd)},
	} {
		c := EncodeTagged(tc.tag, tc.payload)
		require.False(t, c.IsNumber(), "tagged cell must never be read as NUMBER")
		gotTag, gotPayload := c.Decode()
		assert.Equal(t, tc.tag, gotTag)
		assert.Equal(t, tc.payload, gotPayload)
	}
}

func TestEncodeNumberPassesThroughOrdinaryFloats(t *testing.T) {
	for _, f := range []float32{0, 1, -1, 3.5, 1e30, -1e-10} {
		c := EncodeNumber(f)
		require.True(t, c.IsNumber())
		assert.Equal(t, f, c.Float())
	}
}

func TestEncodeNumberCanonicalizesNaN(t *testing.T) {
	c := EncodeNumber(float32(math.NaN()))
	assert.True(t, c.IsNumber(), "the reserved arithmetic NaN pattern must still read as NUMBER")
}

func TestNilIsFalsyAndOthersAreTruthy(t *testing.T) {
	assert.False(t, Nil.Truthy())
	assert.True(t, Nil.IsNil())

	one, err := NewInteger(1)
	require.NoError(t, err)
	assert.True(t, one.Truthy())

	zero := EncodeNumber(0)
	assert.False(t, zero.Truthy())

	nonzero := EncodeNumber(1)
	assert.True(t, nonzero.Truthy())
}

func TestNewIntegerRangeChecked(t *testing.T) {
	_, err := NewInteger(32768)
	require.Error(t, err)
	var rangeErr ValueRangeError
	require.ErrorAs(t, err, &rangeErr)

	_, err = NewInteger(-32769)
	require.Error(t, err)
}
