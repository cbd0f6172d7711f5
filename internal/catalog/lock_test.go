package catalog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFairRWLock_MultipleReaders(t *testing.T) {
	var f FairRWLock
	f.RLock()
	f.RLock()
	// Two concurrent readers must not deadlock each other.
	f.RUnlock()
	f.RUnlock()
}

func TestFairRWLock_WriterExcludesReaders(t *testing.T) {
	var f FairRWLock
	f.Lock()

	acquired := make(chan struct{})
	go func() {
		f.RLock()
		close(acquired)
		f.RUnlock()
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired lock while writer held it")
	case <-time.After(30 * time.Millisecond):
	}

	f.Unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired lock after writer released it")
	}
}

func TestFairRWLock_FIFOOrdering(t *testing.T) {
	var f FairRWLock
	f.Lock() // held by "main"

	var mu sync.Mutex
	var order []string

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		f.Lock()
		mu.Lock()
		order = append(order, "writer2")
		mu.Unlock()
		f.Unlock()
	}()
	time.Sleep(10 * time.Millisecond) // ensure writer2 queues first

	go func() {
		defer wg.Done()
		f.RLock()
		mu.Lock()
		order = append(order, "reader")
		mu.Unlock()
		f.RUnlock()
	}()
	time.Sleep(10 * time.Millisecond) // ensure reader queues behind writer2

	f.Unlock() // release "main", admits queue in FIFO order
	wg.Wait()

	assert.Equal(t, []string{"writer2", "reader"}, order)
}

func TestFairRWLock_ReaderBatchAdmittedTogether(t *testing.T) {
	var f FairRWLock
	f.Lock()

	var wg sync.WaitGroup
	wg.Add(3)
	start := make(chan struct{})
	acquiredCount := 0
	var mu sync.Mutex

	for i := 0; i < 3; i++ {
		go func() {
			defer wg.Done()
			<-start
			f.RLock()
			mu.Lock()
			acquiredCount++
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			f.RUnlock()
		}()
	}
	close(start)
	time.Sleep(10 * time.Millisecond)
	f.Unlock()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, acquiredCount)
}
