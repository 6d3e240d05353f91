package pinning

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Pin describes content retained in the content-addressed store.
type Pin struct {
	ContentID string `json:"content_id"`
	URL       string `json:"url"`
}

// Store is a content-addressed pinning backend. Upload reports fractional
// progress in [0,1] through onProgress; values are non-decreasing but the
// final call is not guaranteed to be exactly 1.0, so a successful return is
// the only completion signal. Remove is best-effort by contract: callers in a
// delete flow log its failure and move on.
type Store interface {
	Upload(ctx context.Context, name, mimeType string, r io.Reader, size int64, onProgress func(float64)) (*Pin, error)
	Remove(ctx context.Context, cid string) error
	URLFor(cid string) string
}

// NewStore selects a pinning backend by name: "pinata" for the hosted IPFS
// service, "minio" for self-hosted object storage.
func NewStore(ctx context.Context, backend string, pinata PinataConfig, minio MinIOConfig) (Store, error) {
	switch backend {
	case "", "pinata":
		return NewPinataClient(pinata), nil
	case "minio":
		return NewMinIOStore(ctx, minio)
	default:
		return nil, fmt.Errorf("unknown pinning backend %q", backend)
	}
}

const minCIDLength = 9

// IsValidCID is a cheap shape check, not a cryptographic verification. It
// only exists to avoid building URLs from obviously garbage input.
func IsValidCID(cid string) bool {
	if len(cid) < minCIDLength {
		return false
	}
	return !strings.ContainsAny(cid, " \t\r\n/")
}

// progressReader counts bytes flowing through it and reports a clamped,
// non-decreasing fraction of total.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	fn    func(float64)
	last  float64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.fn != nil && p.total > 0 {
			frac := float64(p.read) / float64(p.total)
			if frac > 1 {
				frac = 1
			}
			if frac >= p.last {
				p.last = frac
				p.fn(frac)
			}
		}
	}
	return n, err
}
