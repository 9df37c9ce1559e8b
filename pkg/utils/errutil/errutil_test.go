package errutil_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/magpipe/recurra/pkg/utils/errutil"
)

func TestHandleReturnsSameError(t *testing.T) {
	gt.NoError(t, errutil.Handle(context.Background(), nil, "nothing"))

	err := goerr.New("boom", goerr.V("key", "value"))
	gt.Value(t, errutil.Handle(context.Background(), err, "failed")).Equal(err)
}

func TestHandleHTTP(t *testing.T) {
	w := httptest.NewRecorder()
	errutil.HandleHTTP(context.Background(), w, goerr.New("rule not found"), http.StatusNotFound)

	gt.Number(t, w.Code).Equal(http.StatusNotFound)
	gt.String(t, w.Header().Get("Content-Type")).Equal("application/json")

	var body map[string]string
	gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &body)).Required()
	gt.Value(t, body["error"]).Equal("rule not found")
}
