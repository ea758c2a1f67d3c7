package mid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ardanlabs/statechain/business/web/mid"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestCors(t *testing.T) {
	next := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	serve := func(origins []string, origin string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodOptions, "/v1/accounts", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		w := httptest.NewRecorder()

		if err := mid.Cors(origins...)(next)(context.Background(), w, r); err != nil {
			t.Fatalf("\t%s\tShould be able to serve the request: %v", failed, err)
		}
		return w
	}

	t.Log("Given the need to answer cross origin requests.")
	{
		t.Logf("\tTest 0:\tWhen every origin is allowed.")
		{
			w := serve([]string{"*"}, "http://wallet.example")
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Fatalf("\t%s\tTest 0:\tShould allow any origin, got %q.", failed, got)
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
				t.Fatalf("\t%s\tTest 0:\tShould list the served methods, got %q.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould allow any origin.", success)
		}

		t.Logf("\tTest 1:\tWhen the origin is on the list.")
		{
			w := serve([]string{"http://wallet.example"}, "http://wallet.example")
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://wallet.example" {
				t.Fatalf("\t%s\tTest 1:\tShould echo the origin, got %q.", failed, got)
			}
			if got := w.Header().Get("Vary"); got != "Origin" {
				t.Fatalf("\t%s\tTest 1:\tShould vary on the origin, got %q.", failed, got)
			}
			t.Logf("\t%s\tTest 1:\tShould echo the origin.", success)
		}

		t.Logf("\tTest 2:\tWhen the origin is not on the list.")
		{
			w := serve([]string{"http://wallet.example"}, "http://other.example")
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
				t.Fatalf("\t%s\tTest 2:\tShould set no CORS headers, got %q.", failed, got)
			}
			if w.Code != http.StatusNoContent {
				t.Fatalf("\t%s\tTest 2:\tShould still call the handler, got %d.", failed, w.Code)
			}
			t.Logf("\t%s\tTest 2:\tShould set no CORS headers.", success)
		}
	}
}
