package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxSnapshotSize caps a downloaded camera frame.
const maxSnapshotSize = 10 << 20

var errSnapshotStatus = errors.New("unexpected snapshot status")

// SnapshotSource returns the latest JPEG frame of a camera.
type SnapshotSource interface {
	Snapshot(ctx context.Context, camera string) ([]byte, error)
}

// Frigate fetches snapshots from a Frigate NVR.
type Frigate struct {
	baseURL string
	height  int
	client  *http.Client
}

// NewFrigate creates a snapshot source for the given Frigate base URL.
func NewFrigate(baseURL string, height int, client *http.Client) *Frigate {
	if client == nil {
		client = http.DefaultClient
	}

	return &Frigate{
		baseURL: strings.TrimRight(baseURL, "/"),
		height:  height,
		client:  client,
	}
}

// Snapshot implements SnapshotSource.
func (f *Frigate) Snapshot(ctx context.Context, camera string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/api/%s/latest.jpg?h=%s",
		f.baseURL, url.PathEscape(camera), strconv.Itoa(f.height))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", errSnapshotStatus, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	return data, nil
}
