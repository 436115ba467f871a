package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("bad field")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.True(t, IsPermanent(fwrap(err)))
}

func fwrap(err error) error { return errors.Join(errors.New("handler"), err) }

func TestJSONHook(t *testing.T) {
	h := JSONHook(16)
	ctx := context.Background()

	_, _, _, err := h.BeforeHandle(ctx, "t", kafka.Message{}, nil)
	assert.True(t, IsPermanent(err))

	_, _, _, err = h.BeforeHandle(ctx, "t", kafka.Message{}, []byte(`{"token":"BTCUSDT","x":1}`))
	assert.True(t, IsPermanent(err))

	_, _, _, err = h.BeforeHandle(ctx, "t", kafka.Message{}, []byte(`{not json`))
	assert.True(t, IsPermanent(err))

	_, _, data, err := h.BeforeHandle(ctx, "t", kafka.Message{}, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestTraceHook(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "correlation_id", Value: []byte("abc")}}}
	ctx, _, _, err := TraceHook().BeforeHandle(context.Background(), "t", km, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceIDFrom(ctx))
	assert.Equal(t, "", TraceIDFrom(context.Background()))
}

func TestHookChainRecoversPanic(t *testing.T) {
	var errSeen error
	chain := NewHookChain(
		HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("boom")
		}},
		HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, _ []byte, err error) { errSeen = err }},
	)
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	require.Error(t, err)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, CodePanic, he.Code)
	assert.Equal(t, err, errSeen)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}
