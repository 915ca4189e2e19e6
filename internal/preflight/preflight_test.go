package preflight

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"ultidisk/internal/source"
	"ultidisk/internal/testsupport"
	"ultidisk/internal/ultimate"
)

type fakeProber struct {
	version    string
	id         string
	versionErr error
	idErr      error
}

func (f fakeProber) Version(context.Context) (string, error)  { return f.version, f.versionErr }
func (f fakeProber) DeviceID(context.Context) (string, error) { return f.id, f.idErr }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDevice_OK(t *testing.T) {
	result := CheckDevice(context.Background(), fakeProber{version: "0.1", id: "8D2A1F"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "8D2A1F") {
		t.Fatalf("detail should name the device: %q", result.Detail)
	}
}

func TestCheckDevice_Unauthorized(t *testing.T) {
	err := &ultimate.APIError{Method: http.MethodGet, Path: "/v1/version", StatusCode: http.StatusForbidden}
	result := CheckDevice(context.Background(), fakeProber{versionErr: err})
	if result.Passed {
		t.Fatal("expected failure for rejected password")
	}
	if !strings.Contains(result.Detail, "password") {
		t.Fatalf("expected password hint, got %q", result.Detail)
	}
}

func TestCheckDevice_MissingIdentity(t *testing.T) {
	result := CheckDevice(context.Background(), fakeProber{version: "0.1", idErr: ultimate.ErrNoDeviceID})
	if result.Passed {
		t.Fatal("expected failure without device identity")
	}
}

func TestCheckDeviceFromConfig_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Password") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/v1/version":
			_, _ = w.Write([]byte(`{"version":"0.1","errors":[]}`))
		case "/v1/info":
			_, _ = w.Write([]byte(`{"product":"Ultimate 64","unique_id":"8D2A1F","errors":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithBaseURL(srv.URL), testsupport.WithPassword("secret"))
	if result := CheckDeviceFromConfig(context.Background(), cfg); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	cfg = testsupport.NewConfig(t, testsupport.WithBaseURL(srv.URL), testsupport.WithPassword("wrong"))
	if result := CheckDeviceFromConfig(context.Background(), cfg); result.Passed {
		t.Fatal("expected failure for wrong password")
	}
}

func TestCheckFTP_MissingHost(t *testing.T) {
	if result := CheckFTP(context.Background(), source.FTPConfig{}); result.Passed {
		t.Fatal("expected failure for missing host")
	}
}

func TestCheckFTP_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	result := CheckFTP(context.Background(), source.FTPConfig{Host: "127.0.0.1", Port: port})
	if result.Passed {
		t.Fatal("expected failure for closed port")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsDirectoriesAndDevice(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.FTP.Host = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	var names []string
	for _, r := range results {
		names = append(names, r.Name)
		if strings.HasSuffix(r.Name, "directory") && !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if !slices.Contains(names, "Device API") {
		t.Fatalf("expected device check, got %v", names)
	}
	if slices.Contains(names, "FTP") {
		t.Fatalf("FTP check should be skipped without a host")
	}
}

