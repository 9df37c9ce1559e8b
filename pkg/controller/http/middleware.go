package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/magpipe/recurra/pkg/utils/errutil"
	"github.com/magpipe/recurra/pkg/utils/safe"
)

const (
	signatureHeader = "X-Recurra-Signature"
	timestampHeader = "X-Recurra-Timestamp"

	// Signed requests older than this are rejected as replays
	signatureMaxAge = 5 * time.Minute
)

// computeSignature returns the v0 signature of body sent at timestamp
func computeSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// verifySignature checks an ingestion request signature
func verifySignature(secret, timestamp, signature string, body []byte, now time.Time) error {
	if timestamp == "" {
		return goerr.New("missing timestamp")
	}
	if signature == "" {
		return goerr.New("missing signature")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return goerr.Wrap(err, "invalid timestamp")
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > signatureMaxAge || age < -signatureMaxAge {
		return goerr.New("timestamp out of range", goerr.V("timestamp", timestamp), goerr.V("now", now.Unix()))
	}

	if !hmac.Equal([]byte(computeSignature(secret, timestamp, body)), []byte(signature)) {
		return goerr.New("signature mismatch")
	}
	return nil
}

// signatureMiddleware verifies the HMAC signature of the request body and
// restores the body for the next handler
func signatureMiddleware(secret string, clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
			safe.Close(ctx, r.Body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}

			timestamp := r.Header.Get(timestampHeader)
			signature := r.Header.Get(signatureHeader)
			if err := verifySignature(secret, timestamp, signature, body, clock()); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "signature verification failed"), http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

// tokenMiddleware accepts requests bearing the configured API token
func tokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				errutil.HandleHTTP(r.Context(), w, goerr.New("authentication required"), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
