package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/clubhub/core"
	"github.com/trezcool/clubhub/core/checkin"
	"github.com/trezcool/clubhub/core/event"
	logsvc "github.com/trezcool/clubhub/services/logger"
	qrsvc "github.com/trezcool/clubhub/services/qrcode"
	inmemdb "github.com/trezcool/clubhub/storage/database/inmem"
)

type testApp struct {
	server   *Server
	repo     event.Repository
	registry *checkin.Registry
}

var errMobileDisabled = errors.New("mobile rendering disabled")

// mobileless renders every environment but the mobile deep links.
type mobileless struct {
	enc checkin.Encoder
}

func (m mobileless) Encode(ctx context.Context, content string, opts checkin.EncodeOptions) (checkin.Image, error) {
	if strings.HasPrefix(content, "clubhub://") {
		return checkin.Image{}, errMobileDisabled
	}
	return m.enc.Encode(ctx, content, opts)
}

func setup(t *testing.T) testApp {
	t.Helper()
	conf := &core.Config{
		AppName:    "ClubHub",
		TestMode:   true,
		Pagination: core.PaginationConfig{DefaultPageSize: 2, MaxPageSize: 3},
	}
	logger := logsvc.NewDiscardLogger()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	event.InitValidators(validate, translator)

	repo := inmemdb.NewEventRepository(inmemdb.Open())
	registry := checkin.NewRegistry(checkin.DefaultSettings(), checkin.Deps{
		Encoder: mobileless{enc: qrsvc.NewEncoder()},
		Logger:  logger,
		Clock:   clock.NewMock(),
	})
	t.Cleanup(registry.CloseAll)

	server := NewServer(Deps{
		Conf:       conf,
		Logger:     logger,
		EventSvc:   event.NewService(repo, logger),
		Registry:   registry,
		Validate:   validate,
		Translator: translator,
	})
	return testApp{server: server, repo: repo, registry: registry}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func (app testApp) do(method, path string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, data...)
	app.server.ServeHTTP(rec, req)
	return rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarshall(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, app.do(method, tt.path, tt.body))
		})
	}
}
