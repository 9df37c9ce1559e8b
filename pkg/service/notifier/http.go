package notifier

import (
	"context"
	"io"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/utils/safe"
)

const maxErrorBody = 4 << 10

var ErrUnexpectedStatus = goerr.New("unexpected HTTP status")

func defaultHTTPClient() *http.Client {
	return cleanhttp.DefaultPooledClient()
}

// do sends req and fails on any non-2xx status. The response body is
// returned for 2xx responses.
func do(ctx context.Context, client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send request", goerr.V("url", req.URL.Redacted()))
	}
	defer safe.Drain(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, goerr.Wrap(ErrUnexpectedStatus, "request was rejected",
			goerr.V("url", req.URL.Redacted()),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read response", goerr.V("url", req.URL.Redacted()))
	}
	return body, nil
}
