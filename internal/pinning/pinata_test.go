package pinning_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"blockvault/internal/pinning"
	"blockvault/pkg/faults"

	"github.com/stretchr/testify/assert"
)

func newTestClient(srv *httptest.Server) *pinning.PinataClient {
	return pinning.NewPinataClient(pinning.PinataConfig{
		APIKey:     "key",
		SecretKey:  "secret",
		Endpoint:   srv.URL,
		GatewayURL: "https://gateway.test/ipfs/",
	})
}

func TestPinataUpload_Success(t *testing.T) {
	var gotMetadata, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("pinata_api_key"))
		assert.Equal(t, "secret", r.Header.Get("pinata_secret_api_key"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		gotMetadata = r.FormValue("pinataMetadata")

		f, hdr, err := r.FormFile("file")
		assert.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "a.txt", hdr.Filename)
		body, _ := io.ReadAll(f)
		gotFile = string(body)

		w.Write([]byte(`{"IpfsHash":"Qm123456789"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)

	var fractions []float64
	content := "hello pinata"
	pin, err := c.Upload(context.Background(), "a.txt", "text/plain",
		strings.NewReader(content), int64(len(content)),
		func(p float64) { fractions = append(fractions, p) })

	assert.NoError(t, err)
	assert.Equal(t, "Qm123456789", pin.ContentID)
	assert.Equal(t, "https://gateway.test/ipfs/Qm123456789", pin.URL)
	assert.Equal(t, content, gotFile)
	assert.Contains(t, gotMetadata, `"name":"a.txt"`)

	// progress fractions are non-decreasing and clamped to [0,1]
	last := 0.0
	for _, p := range fractions {
		assert.GreaterOrEqual(t, p, last)
		assert.LessOrEqual(t, p, 1.0)
		last = p
	}
}

func TestPinataUpload_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Upload(context.Background(), "a.txt", "text/plain", strings.NewReader("x"), 1, nil)
	assert.Error(t, err)
	assert.Equal(t, faults.RemoteUnavailable, faults.KindOf(err))
	assert.Contains(t, err.Error(), "rate limited")
}

func TestPinataRemove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/pinning/unpin/Qm123456789", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	assert.NoError(t, c.Remove(context.Background(), "Qm123456789"))
}

func TestPinataRemove_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not pinned", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	err := c.Remove(context.Background(), "Qm123456789")
	assert.Error(t, err)
	assert.Equal(t, faults.RemoteUnavailable, faults.KindOf(err))
}

func TestIsValidCID(t *testing.T) {
	assert.True(t, pinning.IsValidCID("Qm123456789"))
	assert.True(t, pinning.IsValidCID("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"))
	assert.False(t, pinning.IsValidCID(""))
	assert.False(t, pinning.IsValidCID("short"))
	assert.False(t, pinning.IsValidCID("has space in it"))
	assert.False(t, pinning.IsValidCID("../../etc/passwd"))
}
