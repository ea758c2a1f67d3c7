package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ardanlabs/statechain/foundation/web"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type request struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=1"`
}

func TestApp(t *testing.T) {
	app := web.NewApp(make(chan os.Signal, 1))

	echo := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var req request
		if err := web.Decode(r, &req); err != nil {
			fe := web.GetFieldErrors(err)
			return web.Respond(ctx, w, fe.Fields(), http.StatusBadRequest)
		}

		resp := map[string]string{
			"name":  req.Name,
			"param": web.Param(r, "id"),
			"trace": web.GetTraceID(ctx),
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
	app.Handle(http.MethodPost, "v1", "/echo/:id", echo)

	t.Log("Given the need to route and decode requests.")
	{
		t.Logf("\tTest 0:\tWhen the body is valid.")
		{
			r := httptest.NewRequest(http.MethodPost, "/v1/echo/42", strings.NewReader(`{"name":"bill","count":2}`))
			w := httptest.NewRecorder()
			app.ServeHTTP(w, r)

			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould receive a status code of 200, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a status code of 200.", success)

			var got map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to unmarshal the response: %v", failed, err)
			}

			if got["name"] != "bill" || got["param"] != "42" || got["trace"] == "" {
				t.Fatalf("\t%s\tTest 0:\tShould get the name, param and trace id: %v", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould get the name, param and trace id.", success)
		}

		t.Logf("\tTest 1:\tWhen the body fails validation.")
		{
			r := httptest.NewRequest(http.MethodPost, "/v1/echo/42", strings.NewReader(`{"count":0}`))
			w := httptest.NewRecorder()
			app.ServeHTTP(w, r)

			var got map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to unmarshal the response: %v", failed, err)
			}

			if w.Code != http.StatusBadRequest || got["name"] == "" || got["count"] == "" {
				t.Fatalf("\t%s\tTest 1:\tShould report both fields by json name: %v", failed, got)
			}
			t.Logf("\t%s\tTest 1:\tShould report both fields by json name.", success)
		}
	}
}
