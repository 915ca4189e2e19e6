package ultimate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"ultidisk/internal/diskentry"
	"ultidisk/internal/drives"
)

func drivePath(d drives.Drive, action string) string {
	return fmt.Sprintf("/v1/drives/%s:%s", url.PathEscape(string(d)), action)
}

// Mount inserts an image into drive d. Without a file the image path is
// mounted from the device's own storage; with a file the bytes are uploaded.
func (c *Client) Mount(ctx context.Context, d drives.Drive, image string, file diskentry.Handle) error {
	if file == nil {
		return c.put(ctx, drivePath(d, "mount"), url.Values{"image": {diskentry.NormalizePath(image)}})
	}
	return c.upload(ctx, d, image, file)
}

func (c *Client) upload(ctx context.Context, d drives.Drive, image string, file diskentry.Handle) error {
	imageType := diskentry.ImageType(image)
	if imageType == "" {
		imageType = diskentry.ImageType(file.Name())
	}
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name(), err)
	}
	defer rc.Close()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", file.Name())
	if err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("read %s: %w", file.Name(), err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}

	query := url.Values{"type": {imageType}, "mode": {"readwrite"}}
	req, err := c.newRequest(ctx, http.MethodPost, drivePath(d, "mount"), query, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.do(req, nil)
}

// Unmount ejects drive d.
func (c *Client) Unmount(ctx context.Context, d drives.Drive) error {
	return c.put(ctx, drivePath(d, "remove"), nil)
}

// SetPower switches drive d on or off.
func (c *Client) SetPower(ctx context.Context, d drives.Drive, on bool) error {
	action := "off"
	if on {
		action = "on"
	}
	return c.put(ctx, drivePath(d, action), nil)
}

type drivesResponse struct {
	Drives []map[string]json.RawMessage `json:"drives"`
}

// Drives polls the drive-status feed.
func (c *Client) Drives(ctx context.Context) (drives.Snapshot, error) {
	var resp drivesResponse
	if err := c.getJSON(ctx, "/v1/drives", &resp); err != nil {
		return drives.Snapshot{}, err
	}
	var snap drives.Snapshot
	for _, item := range resp.Drives {
		for name, raw := range item {
			var remote drives.RemoteDrive
			if err := json.Unmarshal(raw, &remote); err != nil {
				return drives.Snapshot{}, fmt.Errorf("decode drive %s: %w", name, err)
			}
			switch drives.Drive(name) {
			case drives.DriveA:
				snap.A = remote
			case drives.DriveB:
				snap.B = remote
			}
		}
	}
	return snap, nil
}
