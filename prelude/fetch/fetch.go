// Package fetch implements the Git-Archive Fetcher leaf component:
// resolving "provider:owner/repo[/subpath][#ref]" into a materialized
// local directory tree. Rather than shelling out to git or vendoring a
// full git-protocol client, this fetches the provider's tarball-archive
// endpoint over HTTP and unpacks it — the HTTP Client leaf component in
// spec.md's dependency table is exactly this fetcher's one dependency,
// which only makes sense if resolution is archive-over-HTTP rather than
// git-wire-protocol.
package fetch

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/kadena-community/pact-toolbox-sub005/httpclient"
	"github.com/kadena-community/pact-toolbox-sub005/pacterrors"
	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
	"github.com/kadena-community/pact-toolbox-sub005/prelude"
)

// urlTemplate builds a provider's tarball-archive download URL. ref may be
// empty, in which case the built-in templates substitute "main".
type urlTemplate func(owner, repo, ref string) (string, string)

// defaultProviders is the built-in registry of supported providers. Each
// template returns the archive URL plus the ref actually used (for
// defaulting), matching the two providers the spec's example URIs exercise.
var defaultProviders = map[string]urlTemplate{
	"github": func(owner, repo, ref string) (string, string) {
		if ref == "" {
			ref = "main"
		}
		return fmt.Sprintf("https://codeload.github.com/%s/%s/tar.gz/refs/heads/%s", owner, repo, ref), ref
	},
	"gitlab": func(owner, repo, ref string) (string, string) {
		if ref == "" {
			ref = "main"
		}
		return fmt.Sprintf("https://gitlab.com/%s/%s/-/archive/%s/%s-%s.tar.gz", owner, repo, ref, repo, ref), ref
	},
}

// Fetcher resolves a parsed provider URI into a materialized directory.
type Fetcher interface {
	// Fetch downloads and extracts the repository named by parsed into
	// destDir. If force is true and destDir already exists, its contents
	// are replaced.
	Fetch(ctx context.Context, parsed prelude.ParsedURI, destDir string, force bool) error
}

type archiveFetcher struct {
	client    httpclient.Client
	logger    pactlog.Logger
	providers map[string]urlTemplate
}

// New builds a Fetcher using client for downloads. providers, if non-nil,
// overrides/extends the built-in github/gitlab templates — useful for
// self-hosted Gitea/Gitlab instances.
func New(client httpclient.Client, logger pactlog.Logger, providers map[string]urlTemplate) Fetcher {
	merged := make(map[string]urlTemplate, len(defaultProviders)+len(providers))
	for k, v := range defaultProviders {
		merged[k] = v
	}
	for k, v := range providers {
		merged[k] = v
	}
	return &archiveFetcher{client: client, logger: logger, providers: merged}
}

func (f *archiveFetcher) Fetch(ctx context.Context, parsed prelude.ParsedURI, destDir string, force bool) error {
	tmpl, ok := f.providers[parsed.Provider]
	if !ok {
		return pacterrors.Wrapf(pacterrors.ErrPreludeDownloadFailed, "unknown prelude provider %q", parsed.Provider)
	}
	url, resolvedRef := tmpl(parsed.Owner, parsed.Repo, parsed.Ref)

	if force {
		if err := os.RemoveAll(destDir); err != nil {
			return pacterrors.Wrapf(pacterrors.ErrPreludeDownloadFailed, "clearing %s: %v", destDir, err)
		}
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return pacterrors.Wrapf(pacterrors.ErrPreludeDownloadFailed, "creating %s: %v", destDir, err)
	}

	f.logger.Info("fetching prelude archive", "provider", parsed.Provider, "owner", parsed.Owner, "repo", parsed.Repo, "ref", resolvedRef, "url", url)

	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return pacterrors.Wrapf(pacterrors.ErrPreludeDownloadFailed, "downloading %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return pacterrors.Wrapf(pacterrors.ErrPreludeDownloadFailed, "downloading %s: status %d", url, resp.StatusCode)
	}

	if err := extractTarGz(resp.Body, destDir); err != nil {
		return pacterrors.Wrapf(pacterrors.ErrPreludeDownloadFailed, "extracting %s: %v", url, err)
	}
	return nil
}

// extractTarGz unpacks a gzip-compressed tarball into destDir, stripping
// the single top-level directory component every GitHub/GitLab archive
// wraps its contents in (e.g. "repo-main/file.pact" -> "file.pact").
func extractTarGz(r io.Reader, destDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		name := stripTopLevel(hdr.Name)
		if name == "" {
			continue
		}
		target := filepath.Join(destDir, filepath.FromSlash(name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			// Refuse to extract outside destDir (zip-slip style guard).
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

func stripTopLevel(name string) string {
	name = strings.TrimPrefix(name, "./")
	idx := strings.IndexByte(name, '/')
	if idx < 0 {
		return ""
	}
	return name[idx+1:]
}
