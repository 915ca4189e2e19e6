package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ultidisk/internal/config"
	"ultidisk/internal/testsupport"
)

// fakeDevice serves the subset of the REST API the CLI uses.
type fakeDevice struct {
	mu       sync.Mutex
	uniqueID string
	images   map[string]string
	power    map[string]bool
	uploads  map[string][]byte
	requests []string
}

func newFakeDevice(t *testing.T) (*fakeDevice, *httptest.Server) {
	t.Helper()
	dev := &fakeDevice{
		uniqueID: "8D2A1F",
		images:   map[string]string{},
		power:    map[string]bool{"a": true, "b": true},
		uploads:  map[string][]byte{},
	}
	srv := httptest.NewServer(dev)
	t.Cleanup(srv.Close)
	return dev, srv
}

func (f *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	path := r.URL.Path
	switch {
	case path == "/v1/version":
		writeBody(w, map[string]any{"version": "0.1", "errors": []string{}})
	case path == "/v1/info":
		writeBody(w, map[string]any{"product": "Ultimate 64", "unique_id": f.uniqueID, "errors": []string{}})
	case path == "/v1/drives":
		var list []map[string]any
		for _, d := range []string{"a", "b"} {
			image := f.images[d]
			list = append(list, map[string]any{d: map[string]any{
				"enabled":    f.power[d],
				"bus_id":     map[string]int{"a": 8, "b": 9}[d],
				"type":       "1541",
				"image_file": filepath.Base(image),
				"image_path": filepath.Dir(image),
			}})
			if image == "" {
				delete(list[len(list)-1][d].(map[string]any), "image_file")
				delete(list[len(list)-1][d].(map[string]any), "image_path")
			}
		}
		writeBody(w, map[string]any{"drives": list, "errors": []string{}})
	case strings.HasPrefix(path, "/v1/drives/"):
		drive, action, _ := strings.Cut(strings.TrimPrefix(path, "/v1/drives/"), ":")
		switch action {
		case "mount":
			if r.Method == http.MethodPost {
				file, header, err := r.FormFile("file")
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				data, _ := io.ReadAll(file)
				f.uploads[drive] = data
				f.images[drive] = "/Temp/" + header.Filename
			} else {
				f.images[drive] = r.URL.Query().Get("image")
			}
		case "remove":
			delete(f.images, drive)
		case "on":
			f.power[drive] = true
		case "off":
			f.power[drive] = false
		default:
			http.NotFound(w, r)
			return
		}
		writeBody(w, map[string]any{"errors": []string{}})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeDevice) upload(drive string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[drive]
}

func (f *fakeDevice) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func writeBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type cliTestEnv struct {
	cfg        *config.Config
	device     *fakeDevice
	configPath string
	diskDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	dev, srv := newFakeDevice(t)
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(srv.URL))
	cfg.FTP.Host = ""
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	diskDir := filepath.Join(base, "disks")
	testsupport.WriteTree(t, diskDir, "zak/Zak1.d64", "zak/Zak2.d64", "Elite.d64", "notes.txt")

	return &cliTestEnv{cfg: cfg, device: dev, configPath: configPath, diskDir: diskDir}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, errOut, err := runCLI(t, args, env.configPath)
	if err != nil {
		t.Fatalf("ultidisk %s: %v\nstderr: %s", strings.Join(args, " "), err, errOut)
	}
	return out
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func decodeJSON[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return v
}

