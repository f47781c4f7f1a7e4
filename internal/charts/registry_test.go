package charts

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeWidget counts lifecycle calls.
type fakeWidget struct {
	id        string
	updates   int
	destroyed bool
	failNext  bool
	live      *int
}

func (f *fakeWidget) Update(cfg Config) error {
	if f.destroyed {
		return ErrDestroyed
	}
	if f.failNext {
		f.failNext = false
		return errors.New("refused")
	}
	f.updates++
	return nil
}

func (f *fakeWidget) Render(int) string { return f.id }

func (f *fakeWidget) Destroy() {
	if !f.destroyed {
		f.destroyed = true
		*f.live--
	}
}

type fakeFactory struct {
	mu      sync.Mutex
	live    int
	created []*fakeWidget
	fail    bool
}

func (ff *fakeFactory) New(id string, cfg Config) (Widget, error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.fail {
		return nil, errors.New("no canvas")
	}
	w := &fakeWidget{id: id, live: &ff.live}
	ff.live++
	ff.created = append(ff.created, w)
	return w, nil
}

func barConfig() Config {
	return Config{Kind: KindBar, Labels: []string{"a"}, Series: []Series{{Values: []int{1}}}}
}

func TestUpsertUpdatesInPlace(t *testing.T) {
	ff := &fakeFactory{}
	r := NewRegistry(ff.New)

	for i := 0; i < 3; i++ {
		if err := r.Upsert("status", barConfig()); err != nil {
			t.Fatal(err)
		}
	}
	if len(ff.created) != 1 || ff.live != 1 || r.Len() != 1 {
		t.Fatalf("created=%d live=%d len=%d, want one instance", len(ff.created), ff.live, r.Len())
	}
	if ff.created[0].updates != 2 {
		t.Errorf("expected 2 in-place updates, got %d", ff.created[0].updates)
	}
}

func TestUpsertRecreatesWhenUpdateRefused(t *testing.T) {
	ff := &fakeFactory{}
	r := NewRegistry(ff.New)
	_ = r.Upsert("weekly", barConfig())
	ff.created[0].failNext = true

	if err := r.Upsert("weekly", barConfig()); err != nil {
		t.Fatal(err)
	}
	if len(ff.created) != 2 || ff.live != 1 || r.Len() != 1 {
		t.Fatalf("created=%d live=%d len=%d", len(ff.created), ff.live, r.Len())
	}
	if !ff.created[0].destroyed {
		t.Error("refused widget must be destroyed")
	}
	if w, _ := r.Get("weekly"); w != Widget(ff.created[1]) {
		t.Error("registry should hold the new instance")
	}
}

func TestDestroyAllThenUpsert(t *testing.T) {
	ff := &fakeFactory{}
	r := NewRegistry(ff.New)
	for _, id := range AdminCharts {
		_ = r.Upsert(id, barConfig())
	}

	r.DestroyAll()
	if r.Len() != 0 || ff.live != 0 || len(r.IDs()) != 0 {
		t.Fatalf("DestroyAll left len=%d live=%d", r.Len(), ff.live)
	}

	if err := r.Upsert(IDStatus, barConfig()); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 1 || ff.live != 1 || len(ff.created) != len(AdminCharts)+1 {
		t.Errorf("expected exactly one fresh instance, len=%d live=%d created=%d", r.Len(), ff.live, len(ff.created))
	}
	if ff.created[len(ff.created)-1].updates != 0 {
		t.Error("a fresh instance must be created, not an old one updated")
	}
}

func TestReleaseUnregistersFirst(t *testing.T) {
	ff := &fakeFactory{}
	r := NewRegistry(ff.New)
	_ = r.Upsert("radar", barConfig())

	r.Release("radar")
	if _, ok := r.Get("radar"); ok {
		t.Error("released widget still registered")
	}
	if _, ok := r.Render("radar", 40); ok {
		t.Error("released widget still renderable")
	}
	r.Release("radar") // no-op
	if ff.live != 0 {
		t.Errorf("live = %d", ff.live)
	}
}

func TestFactoryError(t *testing.T) {
	ff := &fakeFactory{fail: true}
	r := NewRegistry(ff.New)
	if err := r.Upsert("status", barConfig()); err == nil {
		t.Fatal("expected factory error")
	}
	if r.Len() != 0 {
		t.Error("failed creation must not register anything")
	}
}

func TestIDsKeepCreationOrder(t *testing.T) {
	r := NewRegistry(nil)
	for _, id := range UserCharts {
		cfg := barConfig()
		if err := r.Upsert(id, cfg); err != nil {
			t.Fatal(err)
		}
	}
	if fmt.Sprint(r.IDs()) != fmt.Sprint(UserCharts) {
		t.Errorf("IDs = %v", r.IDs())
	}
	if r.Created() != len(UserCharts) {
		t.Errorf("Created = %d", r.Created())
	}
}

func TestConcurrentUpsertKeepsOneInstance(t *testing.T) {
	ff := &fakeFactory{}
	r := NewRegistry(ff.New)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Upsert("status", barConfig())
		}()
	}
	wg.Wait()
	if len(ff.created) != 1 || r.Len() != 1 {
		t.Errorf("created=%d len=%d", len(ff.created), r.Len())
	}
}
