package repo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pkordes/tripplanner/internal/repo"
)

func TestToDecimalDocument_NumbersBecomeDecimal128(t *testing.T) {
	v, err := repo.ToDecimalDocument([]byte(`{"lat":35.76470000,"n":3,"tags":[1.5,"x",null,true]}`))
	require.NoError(t, err)

	doc, ok := v.(bson.D)
	require.True(t, ok, "objects convert to ordered documents")
	require.Len(t, doc, 3)
	assert.Equal(t, "lat", doc[0].Key)

	lat, ok := doc[0].Value.(primitive.Decimal128)
	require.True(t, ok)
	assert.Equal(t, "35.76470000", lat.String())

	tags := doc[2].Value.(bson.A)
	assert.IsType(t, primitive.Decimal128{}, tags[0])
	assert.Equal(t, "x", tags[1])
	assert.Nil(t, tags[2])
	assert.Equal(t, true, tags[3])
}

func TestToDecimalDocument_RejectsMalformed(t *testing.T) {
	_, err := repo.ToDecimalDocument([]byte(`{"a":`))
	assert.Error(t, err)

	_, err = repo.ToDecimalDocument([]byte(`{"a":1} {"b":2}`))
	assert.Error(t, err)
}

func TestDecimalDocument_RoundTripIsLossless(t *testing.T) {
	inputs := []string{
		`{"title":"Osaka","days":[{"day":1,"schedules":[{"id":"1-0","lat":34.4320024,"lng":135.2303939,"cost":"0"}]}]}`,
		`{"price":0.1,"big":12345678901234567890,"neg":-0.000001,"exp":1.5e+300}`,
		`[]`,
		`{"nested":{"deeper":{"x":[[1],[2.50]]}},"s":"quote \" and \\ and 한글"}`,
	}
	for _, in := range inputs {
		v, err := repo.ToDecimalDocument([]byte(in))
		require.NoError(t, err, in)

		out, err := repo.FromDecimalDocument(v)
		require.NoError(t, err, in)

		assert.JSONEq(t, in, string(out))
	}
}

func TestFromDecimalDocument_KeepsNumberText(t *testing.T) {
	v, err := repo.ToDecimalDocument([]byte(`{"lat":35.76470000}`))
	require.NoError(t, err)

	out, err := repo.FromDecimalDocument(v)

	require.NoError(t, err)
	assert.Equal(t, `{"lat":35.76470000}`, string(out))
}
