package ptt

import "testing"

import "github.com/stretchr/testify/require"

func TestMutualExclusion(t *testing.T) {
	a := NewArbiter()

	res, st := a.Acquire("A")
	require.Equal(t, Granted, res)
	require.True(t, st.Held)
	require.Equal(t, "A", st.Owner)

	res2, st2 := a.Acquire("B")
	require.Equal(t, Busy, res2)
	require.Equal(t, "A", st2.Owner)

	a.Release("B") // no-op, B never held it
	require.True(t, a.Current().Held)

	a.Release("A")
	require.False(t, a.Current().Held)

	res3, st3 := a.Acquire("B")
	require.Equal(t, Granted, res3)
	require.Equal(t, "B", st3.Owner)
}

func TestFeedReceivesTransitionsInOrder(t *testing.T) {
	a := NewArbiter()
	ch := a.Subscribe()
	defer a.Unsubscribe(ch)

	a.Acquire("A")
	a.Release("A")
	a.Acquire("B")

	first := <-ch
	require.True(t, first.Held)
	require.Equal(t, "A", first.Owner)

	second := <-ch
	require.False(t, second.Held)

	third := <-ch
	require.True(t, third.Held)
	require.Equal(t, "B", third.Owner)
}
