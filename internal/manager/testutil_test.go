package manager

import (
	"context"
	"sync"
	"time"

	"styled/internal/backend"
	"styled/internal/kernel"
	"styled/pkg/types"
)

// fakeBackend is a scriptable backend for manager and dispatcher tests.
type fakeBackend struct {
	mu           sync.Mutex
	kind         backend.Kind
	probeOK      bool
	loadErr      error
	loadDelay    time.Duration
	processErr   error
	loadCalls    int
	unloadCalls  int
	processCalls int
	loaded       map[string]bool
}

func newFakeBackend(kind backend.Kind) *fakeBackend {
	return &fakeBackend{kind: kind, probeOK: true, loaded: map[string]bool{}}
}

func (f *fakeBackend) Kind() backend.Kind         { return f.kind }
func (f *fakeBackend) Probe(context.Context) bool { return f.probeOK }

func (f *fakeBackend) LoadStyle(_ context.Context, style types.Style) error {
	if f.loadDelay > 0 {
		time.Sleep(f.loadDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded[style.ID] = true
	return nil
}

func (f *fakeBackend) UnloadStyle(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloadCalls++
	delete(f.loaded, id)
	return nil
}

func (f *fakeBackend) Process(_ context.Context, req types.ProcessRequest) (*types.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCalls++
	if f.processErr != nil {
		return nil, f.processErr
	}
	return kernel.Stylize(req.Image, req.StyleID, req.Strength), nil
}

func (f *fakeBackend) Close() error { return nil }

func testRegistry() []types.Style {
	return []types.Style{
		{ID: "van_gogh_starry_night", Name: "Van Gogh - Starry Night", InputWidth: 256, InputHeight: 256},
		{ID: "picasso_cubist", Name: "Picasso - Cubist", InputWidth: 256, InputHeight: 256},
		{ID: "cyberpunk_neon", Name: "Cyberpunk Neon", InputWidth: 256, InputHeight: 256},
	}
}

func testImage(w, h int) *types.Image {
	img := types.NewImage(w, h)
	for i := range img.Pix {
		img.Pix[i] = byte(i % 251)
	}
	return img
}
