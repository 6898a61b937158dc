package opend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryReturnsSameClientForSameEndpoint(t *testing.T) {
	built := 0
	registry := NewRegistry(func(host string, port int) Client {
		built++
		return &stubClient{}
	})

	first := registry.Acquire("127.0.0.1", 11111)
	second := registry.Acquire("127.0.0.1", 11111)
	require.Same(t, first, second)
	require.Equal(t, 1, built)
}

func TestRegistryDistinguishesEndpoints(t *testing.T) {
	registry := NewRegistry(func(host string, port int) Client {
		return &stubClient{}
	})

	a := registry.Acquire("127.0.0.1", 11111)
	b := registry.Acquire("127.0.0.1", 11112)
	c := registry.Acquire("10.0.0.2", 11111)
	require.NotSame(t, a, b)
	require.NotSame(t, a, c)
	require.NotSame(t, b, c)
}

func TestRegistryClear(t *testing.T) {
	built := 0
	registry := NewRegistry(func(host string, port int) Client {
		built++
		return &stubClient{}
	})

	registry.Acquire("127.0.0.1", 11111)
	registry.Clear()
	registry.Acquire("127.0.0.1", 11111)
	require.Equal(t, 2, built)
}
