package blackbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	cleanup := func() { _ = ln.Close() }
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port, cleanup
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	bbDir := filepath.Dir(thisFile)
	return filepath.Dir(filepath.Dir(bbDir))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	root := projectRootFromThisFile(t)
	outDir := t.TempDir()
	binPath := filepath.Join(outDir, "styled")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/styled")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18080
}

// startServer launches the daemon with the GPU backend disabled so the run
// is deterministic on any machine, and waits for /healthz.
func startServer(t *testing.T, bin string, port int, extraArgs ...string) *serverProc {
	t.Helper()
	addr := fmt.Sprintf(":%d", port)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	args := append([]string{"--addr", addr, "--disable-gpu"}, extraArgs...)
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			_ = cmd.Process.Kill()
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	sp := &serverProc{cmd: cmd, base: base}
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	return sp
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postPNG(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "image/png", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, port)

	// /healthz
	resp, body := get(t, sp.base+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz %d %s", resp.StatusCode, string(body))
	}

	// /styles serves the builtin catalog when no registry URL is given
	resp, body = get(t, sp.base+"/styles")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/styles %d %s", resp.StatusCode, string(body))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("/styles content-type=%s", ct)
	}
	var stylesResp struct {
		Styles []struct {
			ID string `json:"id"`
		} `json:"styles"`
	}
	if err := json.Unmarshal(body, &stylesResp); err != nil {
		t.Fatalf("/styles json: %v body=%s", err, string(body))
	}
	if len(stylesResp.Styles) != 5 {
		t.Fatalf("expected 5 styles, got %d", len(stylesResp.Styles))
	}

	// /readyz is 200 as soon as the CPU backend probes
	resp, body = get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz %d %s", resp.StatusCode, string(body))
	}

	// /process returns a stylized PNG served by the CPU backend
	resp, body = postPNG(t, sp.base+"/process?style="+stylesResp.Styles[0].ID+"&strength=70", smallPNG(t))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/process %d %s", resp.StatusCode, string(body))
	}
	if got := resp.Header.Get("X-Backend"); got != "cpu" {
		t.Fatalf("X-Backend = %q", got)
	}
	if _, err := png.Decode(bytes.NewReader(body)); err != nil {
		t.Fatalf("/process response not a png: %v", err)
	}

	// /status reflects the processed request
	resp, body = get(t, sp.base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, string(body))
	}
	var statusResp struct {
		ProcessedTotal map[string]uint64 `json:"processed_total"`
	}
	if err := json.Unmarshal(body, &statusResp); err != nil {
		t.Fatalf("/status json: %v body=%s", err, string(body))
	}
	if statusResp.ProcessedTotal["cpu"] < 1 {
		t.Fatalf("expected cpu processed >=1, got %v", statusResp.ProcessedTotal)
	}
}

func TestBlackbox_Process_MissingStyle_400(t *testing.T) {
	bin := buildBinary(t)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, port)

	resp, body := postPNG(t, sp.base+"/process", smallPNG(t))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", resp.StatusCode, string(body))
	}
}

func TestBlackbox_FileRegistryCatalog(t *testing.T) {
	bin := buildBinary(t)
	catalog := filepath.Join(t.TempDir(), "catalog.json")
	body := `[{"id":"van_gogh_starry_night","name":"Van Gogh - Starry Night","size_mb":2.4}]`
	if err := os.WriteFile(catalog, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, port, "--registry-url", catalog)

	resp, raw := get(t, sp.base+"/styles")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/styles %d %s", resp.StatusCode, string(raw))
	}
	var stylesResp struct {
		Styles []struct {
			ID string `json:"id"`
		} `json:"styles"`
	}
	if err := json.Unmarshal(raw, &stylesResp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(stylesResp.Styles) != 1 || stylesResp.Styles[0].ID != "van_gogh_starry_night" {
		t.Fatalf("unexpected styles: %s", string(raw))
	}
}
