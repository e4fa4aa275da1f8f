package gqlerr

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPath_Append_DoesNotShareBacking(t *testing.T) {
	base := Path{"obj"}
	a := base.Append("a")
	b := base.Append("b")
	require.Equal(t, Path{"obj", "a"}, a)
	require.Equal(t, Path{"obj", "b"}, b)
}

func TestPath_String(t *testing.T) {
	require.Equal(t, "objs[1].a", Path{"objs", 1, "a"}.String())
	require.Equal(t, "", Path{}.String())
}

func TestList_AddAt_KeepsExtensions(t *testing.T) {
	l := NewList()
	l.AddAt(Path{"a"}, &Error{Message: "denied", Extensions: map[string]any{"code": "FORBIDDEN"}})
	l.AddAt(Path{"b"}, errors.New("plain"))

	errs := l.Drain()
	require.Len(t, errs, 2)
	require.Equal(t, "denied", errs[0].Message)
	require.Equal(t, Path{"a"}, errs[0].Path)
	require.Equal(t, "FORBIDDEN", errs[0].Extensions["code"])
	require.Equal(t, "plain", errs[1].Message)
}

func TestList_NoDeduplication(t *testing.T) {
	l := NewList()
	l.AddAt(Path{"items", 0}, errors.New("boom"))
	l.AddAt(Path{"items", 1}, errors.New("boom"))
	require.Equal(t, 2, l.Len())
}

func TestList_ConcurrentAdd(t *testing.T) {
	l := NewList()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.AddAt(Path{"f", i}, errors.New("x"))
		}(i)
	}
	wg.Wait()
	require.Equal(t, 50, len(l.Drain()))
}
