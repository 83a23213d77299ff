package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/disintegration/imaging"
)

// maxImageBytes bounds how much of a remote image we'll download to
// validate it decodes cleanly before handing the URL to an adapter's
// native upload path. Oversized or corrupt images are rejected rather than
// forwarded to a platform that would reject them anyway after a slow
// download.
const maxImageBytes = 8 << 20 // 8 MiB

// ValidateImageAttachment downloads up to maxImageBytes of url and confirms
// it decodes as a real image (via imaging/golang.org/x/image's registered
// codecs) before the router lets an adapter attempt a native upload. It
// returns the decoded byte count purely for logging; the decoded image
// itself is discarded — adapters fetch/re-upload on their own terms.
func ValidateImageAttachment(ctx context.Context, url string, httpClient *http.Client) (int, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build image validation request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch image for validation: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("image validation fetch returned status %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxImageBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return 0, fmt.Errorf("read image for validation: %w", err)
	}
	if len(data) > maxImageBytes {
		return 0, fmt.Errorf("image exceeds %d byte validation limit", maxImageBytes)
	}

	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return 0, fmt.Errorf("image failed to decode, rejecting attachment: %w", err)
	}
	return len(data), nil
}
