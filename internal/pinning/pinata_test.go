package pinning

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/gowebpki/jcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbay/tb-projector/internal/adapter"
)

// fakeHTTPClient captures POST requests and answers with a canned response
type fakeHTTPClient struct {
	url         string
	contentType string
	headers     map[string]string
	body        []byte
	response    []byte
	err         error
}

func (f *fakeHTTPClient) Post(_ context.Context, url, contentType string, headers map[string]string, body io.Reader) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.url = url
	f.contentType = contentType
	f.headers = headers
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return f.response, nil
}

func (f *fakeHTTPClient) Get(context.Context, string, int64) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeHTTPClient) Head(context.Context, string) (*http.Response, error) {
	return nil, fmt.Errorf("not implemented")
}

func newTestUploader(client *fakeHTTPClient) Uploader {
	return NewPinataUploader(client, adapter.NewJSON(), jcs.Transform, Config{
		APIURL: "https://api.pinata.cloud",
		JWT:    "test-jwt",
	})
}

func TestPinFile(t *testing.T) {
	client := &fakeHTTPClient{response: []byte(`{"IpfsHash":"QmFile"}`)}
	u := newTestUploader(client)

	// PNG magic bytes so the part gets a sniffed content type
	uri, err := u.PinFile(context.Background(), "poster.png", []byte("\x89PNG\r\n\x1a\n rest"))
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmFile", uri)

	assert.Equal(t, "https://api.pinata.cloud/pinning/pinFileToIPFS", client.url)
	assert.Equal(t, "Bearer test-jwt", client.headers["Authorization"])

	mediaType, params, err := mime.ParseMediaType(client.contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	reader := multipart.NewReader(strings.NewReader(string(client.body)), params["boundary"])
	part, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "file", part.FormName())
	assert.Equal(t, "poster.png", part.FileName())
	assert.Equal(t, "image/png", part.Header.Get("Content-Type"))
}

func TestPinJSON_Canonicalized(t *testing.T) {
	client := &fakeHTTPClient{response: []byte(`{"IpfsHash":"QmDoc"}`)}
	u := newTestUploader(client)

	uri, err := u.PinJSON(context.Background(), map[string]interface{}{
		"name":  "Front Row",
		"image": "ipfs://img",
	})
	require.NoError(t, err)
	assert.Equal(t, "ipfs://QmDoc", uri)

	assert.Equal(t, "https://api.pinata.cloud/pinning/pinJSONToIPFS", client.url)
	assert.Equal(t, "application/json", client.contentType)

	// JCS orders keys lexicographically, so equal documents repin to the
	// same CID regardless of field order in the source
	assert.Equal(t, `{"image":"ipfs://img","name":"Front Row"}`, string(client.body))
}

func TestPin_MissingHash(t *testing.T) {
	client := &fakeHTTPClient{response: []byte(`{}`)}
	u := newTestUploader(client)

	_, err := u.PinFile(context.Background(), "a.bin", []byte{1})
	assert.Error(t, err)
}

func TestPin_TransportError(t *testing.T) {
	client := &fakeHTTPClient{err: assert.AnError}
	u := newTestUploader(client)

	_, err := u.PinJSON(context.Background(), map[string]string{"a": "b"})
	assert.Error(t, err)
}

func TestEscapeQuotes(t *testing.T) {
	assert.Equal(t, `a\"b\\c`, escapeQuotes(`a"b\c`))
}
