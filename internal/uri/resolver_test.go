package uri

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHTTPClient answers HEAD probes from a set of reachable URLs
type fakeHTTPClient struct {
	reachable map[string]bool
}

func (f *fakeHTTPClient) Head(_ context.Context, url string) (*http.Response, error) {
	if f.reachable[url] {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(""))}, nil
	}
	return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(strings.NewReader(""))}, nil
}

func (f *fakeHTTPClient) Get(context.Context, string, int64) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeHTTPClient) Post(context.Context, string, string, map[string]string, io.Reader) ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

func TestResolve_HTTPPassthrough(t *testing.T) {
	r := NewResolver(&fakeHTTPClient{}, &Config{IPFSGateways: []string{"https://ipfs.io"}})

	resolved, err := r.Resolve(context.Background(), "https://example.com/meta.json")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/meta.json", resolved)
}

func TestResolve_IPFSScheme(t *testing.T) {
	client := &fakeHTTPClient{reachable: map[string]bool{
		"https://gateway.pinata.cloud/ipfs/QmXyz": true,
	}}
	r := NewResolver(client, &Config{IPFSGateways: []string{
		"https://ipfs.io",
		"https://gateway.pinata.cloud",
	}})

	resolved, err := r.Resolve(context.Background(), "ipfs://QmXyz")
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.pinata.cloud/ipfs/QmXyz", resolved)
}

func TestResolve_DeadGatewayURLRewritten(t *testing.T) {
	client := &fakeHTTPClient{reachable: map[string]bool{
		"https://ipfs.io/ipfs/QmXyz": true,
	}}
	r := NewResolver(client, &Config{IPFSGateways: []string{"https://ipfs.io"}})

	// A gateway URL baked into stored metadata is re-resolved against the
	// configured gateways
	resolved, err := r.Resolve(context.Background(), "https://dead.gateway.example/ipfs/QmXyz")
	require.NoError(t, err)
	assert.Equal(t, "https://ipfs.io/ipfs/QmXyz", resolved)
}

func TestResolve_NoReachableGateway(t *testing.T) {
	r := NewResolver(&fakeHTTPClient{}, &Config{IPFSGateways: []string{"https://ipfs.io"}})

	_, err := r.Resolve(context.Background(), "ipfs://QmXyz")
	assert.Error(t, err)
}

func TestResolve_NoGatewaysConfigured(t *testing.T) {
	r := NewResolver(&fakeHTTPClient{}, &Config{})

	_, err := r.Resolve(context.Background(), "ipfs://QmXyz")
	assert.Error(t, err)
}
