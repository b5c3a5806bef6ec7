package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusPublishFanOut(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()

	count := 0
	sub := SubscriberFunc(func(ctx context.Context, event Event) error {
		count++
		return nil
	})
	_, err := bus.Register(sub)
	require.NoError(t, err)

	attr := Attribution{InvocationName: "greeter", Depth: 0, SeqNo: 1}
	require.NoError(t, bus.Publish(ctx, NewUserMessageEvent(attr, "say hi")))
	require.NoError(t, bus.Publish(ctx, NewStatusEvent(attr, "done")))
	require.Equal(t, 2, count)
}

func TestBusRegisterNil(t *testing.T) {
	bus := NewBus()
	_, err := bus.Register(nil)
	require.Error(t, err)
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewBus()
	ctx := context.Background()
	count := 0
	sub := SubscriberFunc(func(ctx context.Context, event Event) error {
		count++
		return nil
	})
	subscription, err := bus.Register(sub)
	require.NoError(t, err)

	attr := Attribution{InvocationName: "greeter", Depth: 0, SeqNo: 1}
	require.NoError(t, bus.Publish(ctx, NewUserMessageEvent(attr, "say hi")))
	require.NoError(t, subscription.Close())
	require.NoError(t, bus.Publish(ctx, NewStatusEvent(attr, "done")))
	require.Equal(t, 1, count)
}

func TestTruncateArgsAndResult(t *testing.T) {
	short := "ok"
	require.Equal(t, short, TruncateArgs(short))
	require.Equal(t, short, TruncateResult(short))

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	truncatedArgs := TruncateArgs(string(long))
	require.Less(t, len(truncatedArgs), len(long))

	truncatedResult := TruncateResult(string(long))
	require.Contains(t, truncatedResult, "bytes omitted")
}

func TestToolResultEventBounds(t *testing.T) {
	attr := Attribution{InvocationName: "greeter", Depth: 0, SeqNo: 1}

	short := NewToolResultEvent(attr, "echo", "call-1", "ok", 5, false)
	require.False(t, short.Bounds.Truncated)
	require.Equal(t, 2, short.Bounds.TotalBytes)
	require.Equal(t, 2, short.Bounds.TruncatedBytes)

	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'a'
	}
	big := NewToolResultEvent(attr, "echo", "call-2", string(long), 5, false)
	require.True(t, big.Bounds.Truncated)
	require.Equal(t, 5000, big.Bounds.TotalBytes)
	require.Less(t, big.Bounds.TruncatedBytes, big.Bounds.TotalBytes)
}
