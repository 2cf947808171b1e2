package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/statechain/business/sys/validate"
	"github.com/ardanlabs/statechain/business/web/errs"
	"github.com/ardanlabs/statechain/business/web/mid"
	"github.com/ardanlabs/statechain/foundation/web"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Errors(t *testing.T) {
	t.Log("Given the need to turn handler errors into responses.")
	{
		log := zap.NewNop().Sugar()
		app := web.NewApp(make(chan os.Signal, 1), mid.Logger(log), mid.Errors(log), mid.Metrics(), mid.Cors("*"), mid.Panics())

		app.Handle(http.MethodGet, "", "/trusted", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			return errs.NotFound(errors.New("block not found"))
		})
		app.Handle(http.MethodGet, "", "/fields", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			return validate.FieldErrors{{Field: "to", Error: "to is required"}}
		})
		app.Handle(http.MethodGet, "", "/panic", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			panic("boom")
		})

		tt := []struct {
			name   string
			path   string
			status int
			msg    string
			field  string
		}{
			{"trusted", "/trusted", http.StatusNotFound, "block not found", ""},
			{"fields", "/fields", http.StatusBadRequest, "data validation error", "to"},
			{"panic", "/panic", http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), ""},
		}

		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling a %s error.", testID, tst.name)
			{
				w := httptest.NewRecorder()
				app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tst.path, nil))

				var resp errs.Response
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould get an error document: %v", failed, testID, err)
				}

				if w.Code != tst.status || resp.Error != tst.msg {
					t.Fatalf("\t%s\tTest %d:\tShould respond %d %q, got %d %q.", failed, testID, tst.status, tst.msg, w.Code, resp.Error)
				}
				t.Logf("\t%s\tTest %d:\tShould respond %d.", success, testID, tst.status)

				if tst.field != "" {
					if _, exists := resp.Fields[tst.field]; !exists {
						t.Fatalf("\t%s\tTest %d:\tShould name the failing field.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould name the failing field.", success, testID)
				}

				if w.Header().Get("Access-Control-Allow-Origin") != "*" {
					t.Fatalf("\t%s\tTest %d:\tShould set the CORS headers.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould set the CORS headers.", success, testID)
			}
		}
	}
}
