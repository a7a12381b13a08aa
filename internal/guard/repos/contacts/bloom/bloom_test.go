package bloom

import (
	"fmt"
	"sync"
	"testing"
)

func TestFactory_New_Basic(t *testing.T) {
	bf := NewFactory().New(128, 0.01)
	if bf == nil {
		t.Fatalf("expected non-nil bloom filter")
	}

	key := []byte("+15551234")
	if bf.MightContain(key) {
		t.Fatalf("unexpected positive before add")
	}
	bf.Add(key)
	if !bf.MightContain(key) {
		t.Fatalf("expected maybe after add")
	}
}

func TestFactory_New_Defaults(t *testing.T) {
	// capacity=0 and invalid fp → defaults apply; filter still usable
	bf := NewFactory().New(0, 0)
	key := []byte("1234")
	bf.Add(key)
	if !bf.MightContain(key) {
		t.Fatalf("expected maybe after add with default-sized bloom")
	}
}

func TestSize(t *testing.T) {
	// n=1, p=1% → m≈10, k≈7
	if m, k := size(1, 0.01); m < 10 || k != 7 {
		t.Fatalf("n=1,p=0.01: got m=%d k=%d; want m>=10 k=7", m, k)
	}
	m, k := size(1_000_000, 0.01)
	if m < 9_500_000 || m > 9_700_000 || k != 7 {
		t.Fatalf("n=1e6,p=0.01: unexpected m=%d k=%d", m, k)
	}
	if _, k := size(10_000, 0.5); k != 1 {
		t.Fatalf("p=0.5: k=%d; want 1", k)
	}
	// invalid p falls back to the default rate
	m1, k1 := size(100, 1.0)
	m2, k2 := size(100, defaultFPRate)
	if m1 != m2 || k1 != k2 {
		t.Fatalf("p>=1 default: got (%d,%d); want (%d,%d)", m1, k1, m2, k2)
	}
}

func TestFilter_NoFalseNegatives(t *testing.T) {
	bf := NewFactory().New(1000, 0.01)
	for i := 0; i < 1000; i++ {
		bf.Add([]byte(fmt.Sprintf("+1555%07d", i)))
	}
	for i := 0; i < 1000; i++ {
		if !bf.MightContain([]byte(fmt.Sprintf("+1555%07d", i))) {
			t.Fatalf("false negative for %d", i)
		}
	}
}

func TestFilter_ConcurrentReadsDuringWrites(t *testing.T) {
	f := NewFactory().New(256, 0.01)

	var wg sync.WaitGroup
	done := make(chan struct{})
	keys := [][]byte{[]byte("1"), []byte("22"), []byte("333")}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10_000; i++ {
			f.Add(keys[i%3])
		}
		close(done)
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					_ = f.MightContain([]byte("missing"))
				}
			}
		}()
	}

	wg.Wait()
}
