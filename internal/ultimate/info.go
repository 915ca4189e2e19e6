package ultimate

import (
	"context"
	"errors"
	"strings"
)

// ErrNoDeviceID reports a device that did not disclose a unique id.
var ErrNoDeviceID = errors.New("device did not report a unique id")

// Info is the subset of /v1/info this client reads.
type Info struct {
	Product         string `json:"product"`
	FirmwareVersion string `json:"firmware_version"`
	FPGAVersion     string `json:"fpga_version,omitempty"`
	Hostname        string `json:"hostname,omitempty"`
	UniqueID        string `json:"unique_id"`
}

// Info fetches device identity.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	err := c.getJSON(ctx, "/v1/info", &info)
	return info, err
}

// Version returns the REST API version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, "/v1/version", &resp); err != nil {
		return "", err
	}
	return resp.Version, nil
}

// DeviceID returns the device's unique id.
func (c *Client) DeviceID(ctx context.Context) (string, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(info.UniqueID)
	if id == "" {
		return "", ErrNoDeviceID
	}
	return id, nil
}
