package workflow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_ThreadLocks_SerializesSameThread(t *testing.T) {
	l := newThreadLocks()

	unlock := l.Lock("a")

	acquired := make(chan struct{})
	go func() {
		u := l.Lock("a")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock not acquired after release")
	}
}

func Test_ThreadLocks_DifferentThreadsDoNotBlock(t *testing.T) {
	l := newThreadLocks()

	unlockA := l.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		l.Lock("b")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on other thread blocked")
	}
}

func Test_ThreadLocks_ReleasesEntries(t *testing.T) {
	l := newThreadLocks()

	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock := l.Lock("a")
			counter++
			unlock()
		}()
	}

	wg.Wait()

	require.Equal(t, 50, counter)
	require.Zero(t, l.len())
}
