package pinning

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"blockvault/pkg/faults"
)

type PinataConfig struct {
	APIKey     string `env:"PINATA_API_KEY"`
	SecretKey  string `env:"PINATA_SECRET_API_KEY"`
	Endpoint   string `env:"PINATA_API_URL" env-default:"https://api.pinata.cloud"`
	GatewayURL string `env:"IPFS_GATEWAY_URL" env-default:"https://gateway.pinata.cloud/ipfs/"`
}

// PinataClient pins content through the Pinata HTTP API. The remote service
// is responsible for the atomicity of a single upload call; a failure here
// never leaves a partial pin attributable to this client.
type PinataClient struct {
	cfg  PinataConfig
	http *http.Client
}

func NewPinataClient(cfg PinataConfig) *PinataClient {
	return &PinataClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 10 * time.Minute},
	}
}

type pinataMetadata struct {
	Name      string         `json:"name"`
	Keyvalues map[string]any `json:"keyvalues"`
}

type pinataOptions struct {
	CidVersion        int  `json:"cidVersion"`
	WrapWithDirectory bool `json:"wrapWithDirectory"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

func (c *PinataClient) Upload(ctx context.Context, name, mimeType string, r io.Reader, size int64, onProgress func(float64)) (*Pin, error) {
	const op = "pinning.Upload"

	metadata, err := json.Marshal(pinataMetadata{
		Name: name,
		Keyvalues: map[string]any{
			"size": size,
			"type": mimeType,
		},
	})
	if err != nil {
		return nil, faults.Wrap(faults.Validation, op, err)
	}
	options, _ := json.Marshal(pinataOptions{CidVersion: 1})

	src := &progressReader{r: r, total: size, fn: onProgress}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writePinParts(mw, name, mimeType, metadata, options, src)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/pinning/pinFileToIPFS", pr)
	if err != nil {
		return nil, faults.Wrap(faults.RemoteUnavailable, op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, faults.Wrap(faults.RemoteUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, faults.New(faults.RemoteUnavailable, op,
			fmt.Sprintf("pinata returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, faults.Wrap(faults.RemoteUnavailable, op, err)
	}
	if out.IpfsHash == "" {
		return nil, faults.New(faults.RemoteUnavailable, op, "pinata response has no IpfsHash")
	}

	return &Pin{ContentID: out.IpfsHash, URL: c.URLFor(out.IpfsHash)}, nil
}

func writePinParts(mw *multipart.Writer, name, mimeType string, metadata, options []byte, src io.Reader) error {
	if err := mw.WriteField("pinataMetadata", string(metadata)); err != nil {
		return err
	}
	if err := mw.WriteField("pinataOptions", string(options)); err != nil {
		return err
	}

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if mimeType != "" {
		hdr.Set("Content-Type", mimeType)
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, src)
	return err
}

func (c *PinataClient) Remove(ctx context.Context, cid string) error {
	const op = "pinning.Remove"

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.Endpoint+"/pinning/unpin/"+cid, nil)
	if err != nil {
		return faults.Wrap(faults.RemoteUnavailable, op, err)
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return faults.Wrap(faults.RemoteUnavailable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return faults.New(faults.RemoteUnavailable, op,
			fmt.Sprintf("pinata returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return nil
}

func (c *PinataClient) URLFor(cid string) string {
	return c.cfg.GatewayURL + cid
}

func (c *PinataClient) setAuth(req *http.Request) {
	req.Header.Set("pinata_api_key", c.cfg.APIKey)
	req.Header.Set("pinata_secret_api_key", c.cfg.SecretKey)
}
