package fetch

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
	"github.com/kadena-community/pact-toolbox-sub005/prelude"
)

func TestStripTopLevelRemovesArchiveWrapperDir(t *testing.T) {
	require.Equal(t, "coin.pact", stripTopLevel("kadena-contracts-main/coin.pact"))
	require.Equal(t, "root/coin.pact", stripTopLevel("kadena-contracts-main/root/coin.pact"))
	require.Equal(t, "", stripTopLevel("kadena-contracts-main"))
}

func buildTarGz(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestExtractTarGzStripsTopLevelAndWritesFiles(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"kadena-contracts-main/root/coin/coin.pact": "(module coin GOVERNANCE)",
	})
	destDir := t.TempDir()

	require.NoError(t, extractTarGz(bytes.NewReader(archive), destDir))

	data, err := os.ReadFile(filepath.Join(destDir, "root", "coin", "coin.pact"))
	require.NoError(t, err)
	require.Equal(t, "(module coin GOVERNANCE)", string(data))
}

// TestExtractTarGzRefusesPathEscape covers the zip-slip guard: an entry
// whose stripped name would resolve outside destDir is silently skipped.
func TestExtractTarGzRefusesPathEscape(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"wrapper/../../escape.pact": "malicious",
		"wrapper/safe.pact":         "fine",
	})
	destDir := t.TempDir()

	require.NoError(t, extractTarGz(bytes.NewReader(archive), destDir))

	_, err := os.Stat(filepath.Join(filepath.Dir(destDir), "escape.pact"))
	require.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(filepath.Join(destDir, "safe.pact"))
	require.NoError(t, err)
	require.Equal(t, "fine", string(data))
}

type stubHTTPClient struct {
	statusCode int
	body       []byte
}

func (s stubHTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	return &http.Response{
		StatusCode: s.statusCode,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}, nil
}

func (s stubHTTPClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	return nil, nil
}

func TestFetchExtractsArchiveOnSuccess(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"kadena-contracts-main/coin.pact": "(module coin GOVERNANCE)",
	})
	client := stubHTTPClient{statusCode: http.StatusOK, body: archive}
	f := New(client, pactlog.NewNop(), nil)

	destDir := filepath.Join(t.TempDir(), "scratch")
	parsed := prelude.ParsedURI{Provider: "github", Owner: "kadena-io", Repo: "kadena-contracts", Ref: "main"}

	require.NoError(t, f.Fetch(context.Background(), parsed, destDir, false))

	data, err := os.ReadFile(filepath.Join(destDir, "coin.pact"))
	require.NoError(t, err)
	require.Equal(t, "(module coin GOVERNANCE)", string(data))
}

func TestFetchNon2xxIsError(t *testing.T) {
	client := stubHTTPClient{statusCode: http.StatusNotFound, body: nil}
	f := New(client, pactlog.NewNop(), nil)

	parsed := prelude.ParsedURI{Provider: "github", Owner: "kadena-io", Repo: "missing", Ref: "main"}
	err := f.Fetch(context.Background(), parsed, t.TempDir(), false)
	require.Error(t, err)
}

func TestFetchUnknownProviderIsError(t *testing.T) {
	f := New(stubHTTPClient{}, pactlog.NewNop(), nil)
	parsed := prelude.ParsedURI{Provider: "bitbucket", Owner: "a", Repo: "b"}
	err := f.Fetch(context.Background(), parsed, t.TempDir(), false)
	require.Error(t, err)
}

// TestFetchForceClearsExistingDestDir ensures a stale file from a previous
// fetch doesn't survive when force=true.
func TestFetchForceClearsExistingDestDir(t *testing.T) {
	destDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "stale.txt"), []byte("old"), 0o644))

	archive := buildTarGz(t, map[string]string{"wrapper/coin.pact": "new"})
	client := stubHTTPClient{statusCode: http.StatusOK, body: archive}
	f := New(client, pactlog.NewNop(), nil)

	parsed := prelude.ParsedURI{Provider: "github", Owner: "kadena-io", Repo: "kadena-contracts", Ref: "main"}
	require.NoError(t, f.Fetch(context.Background(), parsed, destDir, true))

	_, err := os.Stat(filepath.Join(destDir, "stale.txt"))
	require.True(t, os.IsNotExist(err))
}

// TestFetchAgainstHTTPTestServer exercises Fetch end-to-end against an httptest server
// instead of a stub, covering the real httpclient wiring path.
func TestFetchAgainstHTTPTestServer(t *testing.T) {
	archive := buildTarGz(t, map[string]string{"wrapper/coin.pact": "served"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	providers := map[string]urlTemplate{
		"test": func(owner, repo, ref string) (string, string) { return srv.URL, ref },
	}
	f := New(realGetClient{}, pactlog.NewNop(), providers)

	destDir := t.TempDir()
	parsed := prelude.ParsedURI{Provider: "test", Owner: "x", Repo: "y"}
	require.NoError(t, f.Fetch(context.Background(), parsed, destDir, false))

	data, err := os.ReadFile(filepath.Join(destDir, "coin.pact"))
	require.NoError(t, err)
	require.Equal(t, "served", string(data))
}

type realGetClient struct{}

func (realGetClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}

func (realGetClient) Post(ctx context.Context, url, contentType string, body io.Reader) (*http.Response, error) {
	return nil, nil
}
