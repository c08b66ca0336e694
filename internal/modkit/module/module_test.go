package module

import (
	"sync"
	"testing"
)

type publisher interface{ Publish() string }

type pub struct{}

func (pub) Publish() string { return "ok" }

func TestRegistry(t *testing.T) {
	t.Cleanup(Reset)

	Register("orders", pub{})
	if p, ok := PortsAs[publisher]("orders"); !ok || p.Publish() != "ok" {
		t.Fatal("registered port not found")
	}
	if _, ok := PortsAs[int]("orders"); ok {
		t.Fatal("type mismatch must report false")
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Register("processor", pub{})
			_, _ = PortsAs[publisher]("processor")
		}()
	}
	wg.Wait()

	if got := Names(); len(got) != 2 || got[0] != "orders" || got[1] != "processor" {
		t.Fatalf("Names() = %v", got)
	}

	Reset()
	if _, ok := PortsAs[publisher]("orders"); ok {
		t.Fatal("Reset must clear the registry")
	}
}
