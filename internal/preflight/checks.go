package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"ultidisk/internal/config"
	"ultidisk/internal/logging"
	"ultidisk/internal/source"
	"ultidisk/internal/ultimate"
)

const checkTimeout = 5 * time.Second

// DeviceProber is the part of the REST client a device check needs.
type DeviceProber interface {
	Version(ctx context.Context) (string, error)
	DeviceID(ctx context.Context) (string, error)
}

// CheckDevice verifies the REST API answers and reports a device identity.
func CheckDevice(ctx context.Context, prober DeviceProber) Result {
	const name = "Device API"

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	version, err := prober.Version(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeDeviceError(err)}
	}
	id, err := prober.DeviceID(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("API %s reachable, identity unavailable (%s)", version, summarizeDeviceError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("API %s, device %s", version, id)}
}

// CheckDeviceFromConfig builds a client from cfg and runs CheckDevice.
func CheckDeviceFromConfig(ctx context.Context, cfg *config.Config) Result {
	if cfg == nil || strings.TrimSpace(cfg.Device.BaseURL) == "" {
		return Result{Name: "Device API", Detail: "missing base_url"}
	}
	client := ultimate.NewFromConfig(cfg, logging.NewNop(), ultimate.WithReadRetries(0, 0))
	return CheckDevice(ctx, client)
}

// CheckFTP verifies the FTP service accepts a login and answers PWD.
func CheckFTP(ctx context.Context, cfg source.FTPConfig) Result {
	const name = "FTP"

	if strings.TrimSpace(cfg.Host) == "" {
		return Result{Name: name, Detail: "missing host"}
	}
	if cfg.Timeout <= 0 || cfg.Timeout > checkTimeout {
		cfg.Timeout = checkTimeout
	}
	cfg.MaxRetries = 1

	client, err := source.NewFTP(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer client.Close()

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	dir, err := client.Ping(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", client.ID(), summarizeDeviceError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (cwd %s)", client.ID(), dir)}
}

// CheckFTPFromConfig maps cfg onto CheckFTP.
func CheckFTPFromConfig(ctx context.Context, cfg *config.Config) Result {
	return CheckFTP(ctx, source.FTPConfigFrom(cfg))
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeDeviceError produces a human-readable summary for failed checks.
func summarizeDeviceError(err error) string {
	if errors.Is(err, ultimate.ErrUnauthorized) {
		return "password rejected (check device.password)"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out (device unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (device unreachable)"
	}
	return err.Error()
}
