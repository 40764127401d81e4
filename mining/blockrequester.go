package mining

import (
	"bytes"
	"context"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/kadena-community/pact-toolbox-sub005/httpclient"
	"github.com/kadena-community/pact-toolbox-sub005/pacterrors"
	"github.com/kadena-community/pact-toolbox-sub005/pactlog"
)

// BlockRequester is a thin POST wrapper around the mining endpoint's
// /make-blocks route, per spec.md §4.2.
type BlockRequester interface {
	RequestBlocks(ctx context.Context, chains []ChainId, count int) error
}

type httpBlockRequester struct {
	client         httpclient.Client
	miningClientURL string
	logger         pactlog.Logger
}

// NewBlockRequester builds a BlockRequester that POSTs to
// "<miningClientURL>/make-blocks".
func NewBlockRequester(client httpclient.Client, miningClientURL string, logger pactlog.Logger) BlockRequester {
	return &httpBlockRequester{client: client, miningClientURL: miningClientURL, logger: logger}
}

func (r *httpBlockRequester) RequestBlocks(ctx context.Context, chains []ChainId, count int) error {
	if len(chains) == 0 {
		return nil
	}

	body := make(map[string]int, len(chains))
	for _, c := range chains {
		body[c.String()] = count
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return pacterrors.Wrap(err, "marshaling make-blocks body")
	}

	resp, err := r.client.Post(ctx, r.miningClientURL+"/make-blocks", "application/json", bytes.NewReader(payload))
	if err != nil {
		// Transport errors are re-raised, per spec.md §4.2.
		return pacterrors.Wrapf(pacterrors.ErrMiningRequestFailed, "POST /make-blocks: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Non-200 is logged as a warning and treated as non-fatal; the
		// error returned here carries ErrMiningRequestFailed so callers
		// that want to distinguish transport failures from a warned
		// status can use errors.Is, but per spec.md §7 this kind never
		// invalidates scheduler state and workers simply continue.
		r.logger.Warn("make-blocks returned non-200", "status", resp.StatusCode, "chains", chains, "count", count)
		return pacterrors.Wrapf(pacterrors.ErrMiningRequestFailed, "POST /make-blocks: status %d", resp.StatusCode)
	}
	return nil
}
