package pinning

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ticketbay/tb-projector/internal/adapter"
)

// Uploader defines the interface for the content-addressed upload sink.
// Both methods return an ipfs:// URI for the pinned content.
type Uploader interface {
	// PinFile pins a binary blob under the given filename
	PinFile(ctx context.Context, filename string, data []byte) (string, error)

	// PinJSON pins a JSON document. The document is canonicalized (JCS)
	// before pinning so semantically identical documents repin to the
	// same CID.
	PinJSON(ctx context.Context, document interface{}) (string, error)
}

// Config holds the pinning gateway configuration
type Config struct {
	APIURL string // e.g. https://api.pinata.cloud
	JWT    string
}

type pinataUploader struct {
	httpClient adapter.HTTPClient
	json       adapter.JSON
	canonical  func([]byte) ([]byte, error)
	config     Config
}

// NewPinataUploader creates an Uploader backed by a Pinata-compatible
// pinning API
func NewPinataUploader(httpClient adapter.HTTPClient, json adapter.JSON, canonical func([]byte) ([]byte, error), cfg Config) Uploader {
	return &pinataUploader{
		httpClient: httpClient,
		json:       json,
		canonical:  canonical,
		config:     cfg,
	}
}

// pinResponse is the subset of the pinning API response we consume
type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

func (u *pinataUploader) PinFile(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	contentType := mimetype.Detect(data).String()
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write multipart: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart: %w", err)
	}

	body, err := u.post(ctx, "/pinning/pinFileToIPFS", writer.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}

	return u.toURI(body)
}

func (u *pinataUploader) PinJSON(ctx context.Context, document interface{}) (string, error) {
	raw, err := u.json.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	canonical, err := u.canonical(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize document: %w", err)
	}

	body, err := u.post(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(canonical))
	if err != nil {
		return "", err
	}

	return u.toURI(body)
}

func (u *pinataUploader) post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	url := strings.TrimSuffix(u.config.APIURL, "/") + path
	headers := map[string]string{
		"Authorization": "Bearer " + u.config.JWT,
	}

	resp, err := u.httpClient.Post(ctx, url, contentType, headers, body)
	if err != nil {
		return nil, fmt.Errorf("pinning request failed: %w", err)
	}
	return resp, nil
}

func (u *pinataUploader) toURI(body []byte) (string, error) {
	var resp pinResponse
	if err := u.json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode pinning response: %w", err)
	}
	if resp.IpfsHash == "" {
		return "", fmt.Errorf("pinning response missing IpfsHash")
	}
	return "ipfs://" + resp.IpfsHash, nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}
