package mongofam_test

import (
	"errors"
	"math"
	"testing"

	"github.com/maxbolgarin/mongofam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const testPeer = "db-1.example.net:27017"

type testDoc struct {
	ID int `bson:"_id"`
	X  int `bson:"x"`
}

func marshalReply(t *testing.T, reply bson.D) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(reply)
	require.NoError(t, err)
	return raw
}

func TestInterpretWriteConcernError(t *testing.T) {
	reply := marshalReply(t, bson.D{
		{Key: "ok", Value: 1},
		{Key: "value", Value: bson.D{{Key: "_id", Value: 7}, {Key: "x", Value: 1}}},
		{Key: "writeConcernError", Value: bson.D{
			{Key: "code", Value: 64},
			{Key: "errmsg", Value: "waiting for replication timed out"},
		}},
	})

	res, err := mongofam.Interpret[testDoc](reply, testPeer)
	require.Error(t, err)
	assert.Nil(t, res)

	var wce *mongofam.WriteConcernException
	require.True(t, errors.As(err, &wce))
	assert.Equal(t, 64, wce.WriteConcernError.Code)
	assert.Equal(t, "waiting for replication timed out", wce.WriteConcernError.Message)
	assert.False(t, wce.WriteConcernError.HasDetails())
	assert.Equal(t, testPeer, wce.Address)

	assert.ErrorIs(t, err, mongofam.ErrWriteConcern)
	assert.ErrorIs(t, err, mongofam.ErrWriteConcernFailed)
	assert.NotErrorIs(t, err, mongofam.ErrDecode)
	assert.Contains(t, err.Error(), testPeer)
	assert.Contains(t, err.Error(), "waiting for replication timed out")
}

func TestInterpretWriteConcernErrorDoesNotDecode(t *testing.T) {
	values := map[string]any{
		"document": bson.D{{Key: "_id", Value: 7}},
		"null":     nil,
		"scalar":   "oops",
	}
	for name, value := range values {
		t.Run(name, func(t *testing.T) {
			reply := marshalReply(t, bson.D{
				{Key: "value", Value: value},
				{Key: "writeConcernError", Value: bson.D{
					{Key: "code", Value: 100},
					{Key: "errmsg", Value: "Not enough data-bearing nodes"},
				}},
			})

			decoded := false
			found, err := mongofam.InterpretReply(reply, testPeer, &bson.M{}, func(bson.Raw, any) error {
				decoded = true
				return nil
			})
			assert.False(t, found)
			assert.False(t, decoded)
			assert.ErrorIs(t, err, mongofam.ErrUnsatisfiableWriteConcern)
		})
	}
}

func TestInterpretWriteConcernResult(t *testing.T) {
	wceDoc := bson.D{
		{Key: "code", Value: 64},
		{Key: "errmsg", Value: "waiting for replication timed out"},
		{Key: "errInfo", Value: bson.D{{Key: "wtimeout", Value: true}}},
	}

	t.Run("LastErrorObject", func(t *testing.T) {
		reply := marshalReply(t, bson.D{
			{Key: "lastErrorObject", Value: bson.D{{Key: "n", Value: 1}, {Key: "updatedExisting", Value: true}}},
			{Key: "writeConcernError", Value: wceDoc},
		})

		_, err := mongofam.Interpret[testDoc](reply, testPeer)
		var wce *mongofam.WriteConcernException
		require.ErrorAs(t, err, &wce)

		assert.True(t, wce.Result.Acknowledged)
		assert.Equal(t, 1, wce.Result.MatchedCount)
		assert.True(t, wce.Result.UpdatedExisting)
		assert.Nil(t, wce.Result.UpsertedID)

		require.True(t, wce.WriteConcernError.HasDetails())
		assert.True(t, wce.WriteConcernError.Details.Lookup("wtimeout").Boolean())
	})

	t.Run("NoLastErrorObject", func(t *testing.T) {
		reply := marshalReply(t, bson.D{
			{Key: "writeConcernError", Value: wceDoc},
		})

		_, err := mongofam.Interpret[testDoc](reply, testPeer)
		var wce *mongofam.WriteConcernException
		require.ErrorAs(t, err, &wce)

		assert.Equal(t, mongofam.AcknowledgedResult(0, false, nil), wce.Result)
	})

	t.Run("Upserted", func(t *testing.T) {
		id := bson.NewObjectID()
		reply := marshalReply(t, bson.D{
			{Key: "lastErrorObject", Value: bson.D{
				{Key: "n", Value: int64(1)},
				{Key: "updatedExisting", Value: false},
				{Key: "upserted", Value: id},
			}},
			{Key: "writeConcernError", Value: wceDoc},
		})

		_, err := mongofam.Interpret[testDoc](reply, testPeer)
		var wce *mongofam.WriteConcernException
		require.ErrorAs(t, err, &wce)

		assert.Equal(t, 1, wce.Result.MatchedCount)
		assert.False(t, wce.Result.UpdatedExisting)
		require.NotNil(t, wce.Result.UpsertedID)
		assert.Equal(t, id, wce.Result.UpsertedID.ObjectID())
	})

	t.Run("NumericCoercion", func(t *testing.T) {
		reply := marshalReply(t, bson.D{
			{Key: "lastErrorObject", Value: bson.D{{Key: "n", Value: 3.0}}},
			{Key: "writeConcernError", Value: bson.D{
				{Key: "code", Value: int64(79)},
				{Key: "errmsg", Value: "unrecognized getLastError mode"},
			}},
		})

		_, err := mongofam.Interpret[testDoc](reply, testPeer)
		var wce *mongofam.WriteConcernException
		require.ErrorAs(t, err, &wce)

		assert.Equal(t, 79, wce.WriteConcernError.Code)
		assert.Equal(t, 3, wce.Result.MatchedCount)
		assert.ErrorIs(t, err, mongofam.ErrUnknownReplWriteConcern)
	})

	t.Run("NumberKinds", func(t *testing.T) {
		mustDecimal := func(s string) bson.Decimal128 {
			d, err := bson.ParseDecimal128(s)
			require.NoError(t, err)
			return d
		}
		tests := []struct {
			name string
			n    any
			want int
		}{
			{name: "Decimal", n: mustDecimal("2"), want: 2},
			{name: "DecimalFraction", n: mustDecimal("2.9"), want: 2},
			{name: "DecimalNaN", n: mustDecimal("NaN"), want: 0},
			{name: "DecimalHuge", n: mustDecimal("1E+40"), want: math.MaxInt32},
			{name: "DoubleFraction", n: -2.9, want: -2},
			{name: "DoubleNaN", n: math.NaN(), want: 0},
			{name: "DoubleHuge", n: 1e20, want: math.MaxInt32},
			{name: "DoubleTiny", n: -1e20, want: math.MinInt32},
			{name: "DoubleInf", n: math.Inf(1), want: math.MaxInt32},
			{name: "NotNumber", n: "1", want: 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				reply := marshalReply(t, bson.D{
					{Key: "lastErrorObject", Value: bson.D{{Key: "n", Value: tt.n}}},
					{Key: "writeConcernError", Value: bson.D{
						{Key: "code", Value: mustDecimal("64")},
						{Key: "errmsg", Value: "waiting for replication timed out"},
					}},
				})

				_, err := mongofam.Interpret[testDoc](reply, testPeer)
				var wce *mongofam.WriteConcernException
				require.ErrorAs(t, err, &wce)
				assert.Equal(t, 64, wce.WriteConcernError.Code)
				assert.Equal(t, tt.want, wce.Result.MatchedCount)
			})
		}
	})

	t.Run("UnknownCode", func(t *testing.T) {
		reply := marshalReply(t, bson.D{
			{Key: "writeConcernError", Value: bson.D{
				{Key: "code", Value: 424242},
				{Key: "errmsg", Value: "something new"},
			}},
		})

		_, err := mongofam.Interpret[testDoc](reply, "")
		assert.ErrorIs(t, err, mongofam.ErrWriteConcern)
		assert.Contains(t, err.Error(), "unknown server")

		var wcErr mongofam.WriteConcernError
		require.ErrorAs(t, err, &wcErr)
		assert.Equal(t, 424242, wcErr.Code)
	})
}

func TestInterpretValue(t *testing.T) {
	t.Run("Document", func(t *testing.T) {
		reply := marshalReply(t, bson.D{
			{Key: "lastErrorObject", Value: bson.D{{Key: "n", Value: 1}, {Key: "updatedExisting", Value: true}}},
			{Key: "value", Value: bson.D{{Key: "_id", Value: 7}, {Key: "x", Value: 1}}},
			{Key: "ok", Value: 1.0},
		})

		res, err := mongofam.Interpret[testDoc](reply, testPeer)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, testDoc{ID: 7, X: 1}, *res)
	})

	t.Run("Map", func(t *testing.T) {
		reply := marshalReply(t, bson.D{
			{Key: "value", Value: bson.D{{Key: "_id", Value: int32(7)}, {Key: "x", Value: int32(1)}}},
		})

		res, err := mongofam.Interpret[bson.M](reply, testPeer)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, bson.M{"_id": int32(7), "x": int32(1)}, *res)
	})

	noValue := map[string]bson.D{
		"Absent": {{Key: "ok", Value: 1}},
		"Null":   {{Key: "value", Value: nil}, {Key: "ok", Value: 1}},
		"Scalar": {{Key: "value", Value: 42}, {Key: "ok", Value: 1}},
		"Array":  {{Key: "value", Value: bson.A{1, 2}}, {Key: "ok", Value: 1}},
	}
	for name, doc := range noValue {
		t.Run(name, func(t *testing.T) {
			reply := marshalReply(t, doc)

			decoded := false
			found, err := mongofam.InterpretReply(reply, testPeer, &testDoc{}, func(bson.Raw, any) error {
				decoded = true
				return nil
			})
			require.NoError(t, err)
			assert.False(t, found)
			assert.False(t, decoded)

			res, err := mongofam.Interpret[testDoc](reply, testPeer)
			require.NoError(t, err)
			assert.Nil(t, res)
		})
	}

	t.Run("DecodeError", func(t *testing.T) {
		type strictDoc struct {
			X string `bson:"x"`
		}
		reply := marshalReply(t, bson.D{
			{Key: "value", Value: bson.D{{Key: "x", Value: 1}}},
		})

		res, err := mongofam.Interpret[strictDoc](reply, testPeer)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, mongofam.ErrDecode)
		assert.NotErrorIs(t, err, mongofam.ErrWriteConcern)
	})

	t.Run("DecoderError", func(t *testing.T) {
		reply := marshalReply(t, bson.D{
			{Key: "value", Value: bson.D{{Key: "x", Value: 1}}},
		})
		errBoom := errors.New("boom")

		found, err := mongofam.InterpretReply(reply, testPeer, &testDoc{}, func(bson.Raw, any) error {
			return errBoom
		})
		assert.False(t, found)
		assert.ErrorIs(t, err, mongofam.ErrDecode)
		assert.ErrorIs(t, err, errBoom)
	})
}

func TestInterpretIsIdempotent(t *testing.T) {
	replies := []bson.Raw{
		marshalReply(t, bson.D{{Key: "value", Value: bson.D{{Key: "_id", Value: 1}, {Key: "x", Value: 2}}}}),
		marshalReply(t, bson.D{{Key: "value", Value: nil}}),
		marshalReply(t, bson.D{
			{Key: "lastErrorObject", Value: bson.D{{Key: "n", Value: 1}}},
			{Key: "writeConcernError", Value: bson.D{{Key: "code", Value: 64}, {Key: "errmsg", Value: "timeout"}}},
		}),
	}

	for _, reply := range replies {
		res1, err1 := mongofam.Interpret[testDoc](reply, testPeer)
		res2, err2 := mongofam.Interpret[testDoc](reply, testPeer)
		assert.Equal(t, res1, res2)
		assert.Equal(t, err1, err2)
	}
}

func TestInterpretMalformedReply(t *testing.T) {
	tests := []struct {
		name  string
		reply bson.Raw
	}{
		{
			name:  "Empty",
			reply: nil,
		},
		{
			name:  "Truncated",
			reply: bson.Raw{0x10, 0x00, 0x00, 0x00, 0x08},
		},
		{
			name:  "WriteConcernErrorNotDocument",
			reply: marshalReply(t, bson.D{{Key: "writeConcernError", Value: "failed"}}),
		},
		{
			name:  "MissingCode",
			reply: marshalReply(t, bson.D{{Key: "writeConcernError", Value: bson.D{{Key: "errmsg", Value: "x"}}}}),
		},
		{
			name:  "CodeNotNumber",
			reply: marshalReply(t, bson.D{{Key: "writeConcernError", Value: bson.D{{Key: "code", Value: "64"}, {Key: "errmsg", Value: "x"}}}}),
		},
		{
			name:  "MissingErrmsg",
			reply: marshalReply(t, bson.D{{Key: "writeConcernError", Value: bson.D{{Key: "code", Value: 64}}}}),
		},
		{
			name:  "ErrmsgNotString",
			reply: marshalReply(t, bson.D{{Key: "writeConcernError", Value: bson.D{{Key: "code", Value: 64}, {Key: "errmsg", Value: 1}}}}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := mongofam.Interpret[testDoc](tt.reply, testPeer)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, mongofam.ErrMalformedReply)
			assert.ErrorIs(t, err, mongofam.ErrBadServer)
			assert.NotErrorIs(t, err, mongofam.ErrWriteConcern)
		})
	}
}

func TestReplyResult(t *testing.T) {
	reply := marshalReply(t, bson.D{
		{Key: "lastErrorObject", Value: bson.D{{Key: "n", Value: 1}, {Key: "updatedExisting", Value: true}}},
		{Key: "value", Value: bson.D{{Key: "_id", Value: 1}}},
	})
	assert.Equal(t, mongofam.AcknowledgedResult(1, true, nil), mongofam.ReplyResult(reply))

	reply = marshalReply(t, bson.D{{Key: "value", Value: nil}})
	assert.Equal(t, mongofam.AcknowledgedResult(0, false, nil), mongofam.ReplyResult(reply))

	assert.False(t, mongofam.UnacknowledgedResult().Acknowledged)
	assert.Equal(t, "unacknowledged", mongofam.UnacknowledgedResult().String())
	assert.Equal(t, "n=1 updatedExisting=true", mongofam.AcknowledgedResult(1, true, nil).String())
}
