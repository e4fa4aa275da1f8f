package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingEvent struct{ N int }
type otherEvent struct{}

func TestSubscribePublish(t *testing.T) {
	Use(New())
	defer Use(nil)

	var got []int
	unsub := Subscribe(func(ctx context.Context, e pingEvent) {
		got = append(got, e.N)
	})

	Publish(context.Background(), pingEvent{N: 1})
	Publish(context.Background(), otherEvent{})
	Publish(context.Background(), pingEvent{N: 2})

	require.Equal(t, []int{1, 2}, got)

	unsub()
	Publish(context.Background(), pingEvent{N: 3})
	assert.Equal(t, []int{1, 2}, got)
}

func TestPublish_NoBusInstalled(t *testing.T) {
	Use(nil)
	// Must not panic.
	Publish(context.Background(), pingEvent{N: 1})
	unsub := Subscribe(func(ctx context.Context, e pingEvent) {})
	unsub()
}

func TestMultipleHandlersSameType(t *testing.T) {
	Use(New())
	defer Use(nil)

	var a, b int
	unsubA := Subscribe(func(ctx context.Context, e pingEvent) { a++ })
	defer unsubA()
	unsubB := Subscribe(func(ctx context.Context, e pingEvent) { b++ })

	Publish(context.Background(), pingEvent{})
	unsubB()
	Publish(context.Background(), pingEvent{})

	assert.Equal(t, 2, a)
	assert.Equal(t, 1, b)
}
