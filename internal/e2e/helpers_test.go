package e2e

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"styled/internal/backend"
	"styled/internal/httpapi"
	"styled/internal/manager"
	"styled/internal/registry"
)

// newServer wires the real registry, manager and dispatcher over the CPU
// backend, the same way main does minus GPU and WASM.
func newServer(t *testing.T, maxResident int) (*httptest.Server, *manager.Manager) {
	t.Helper()
	log := zerolog.Nop()
	backends := []backend.Backend{backend.NewCPUBackend(log)}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:    registry.Builtin(),
		Backends:    backends,
		MaxResident: maxResident,
		Logger:      log,
	})
	disp := manager.NewDispatcher(context.Background(), mgr, backends, log)
	srv := httptest.NewServer(httpapi.NewMux(disp))
	t.Cleanup(srv.Close)
	return srv, mgr
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 7), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostPNG(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "image/png", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpDelete(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete %s: %v", url, err)
	}
	_ = resp.Body.Close()
	return resp
}
