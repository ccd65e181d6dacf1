package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"marginanalyzer/internal/api"
	"marginanalyzer/internal/config"
	"marginanalyzer/internal/history"
	"marginanalyzer/internal/pipeline"
	"marginanalyzer/internal/server"
	"marginanalyzer/internal/store"
)

const (
	salesCSV = "商品编码,商品名称,门店名称,一级分类,订货数量,商品单价,销售日期\n" +
		"SP001,商品A,门店1,分类1,10,100.00,2025-01-02\n" +
		"SP002,商品B,门店2,分类2,2,50,2025-01-01\n"
	purchaseCSV = "商品编码,商品名称,采购价\nSP001,商品A,60.00\n"
)

type testEnv struct {
	dir        string
	configPath string
	handler    http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	backend, err := store.NewJSONBackend(filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	cfg := config.DefaultConfig()
	cfg.Export.Path = filepath.Join(dir, "exports")
	runner := pipeline.NewRunner(history.New(backend), backend, pipeline.OptionsFromConfig(cfg, dir))
	runner.LoadState(context.Background())

	configPath := filepath.Join(dir, "config.toml")
	srv := server.NewServer(api.Deps{
		Runner:     runner,
		Config:     cfg,
		ConfigPath: configPath,
		BaseDir:    dir,
		UploadDir:  filepath.Join(dir, "uploads"),
		Storage:    store.KindJSON,
		Version:    "test",
	}, true, nil)
	return &testEnv{dir: dir, configPath: configPath, handler: srv.Handler()}
}

type upload struct {
	field, name, content string
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (e *testEnv) calculate(t *testing.T) map[string]interface{} {
	t.Helper()
	rec := e.do(multipartRequest(t, http.MethodPost, "/api/calculate", nil,
		upload{"sales", "sales.csv", salesCSV},
		upload{"purchase", "purchase.csv", purchaseCSV},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("calculate status=%d body=%s", rec.Code, rec.Body.String())
	}
	return decode(t, rec)
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	body := decode(t, rec)
	if body["storage"] != "json" || body["version"] != "test" || body["rememberHistory"] != true {
		t.Fatalf("unexpected status: %v", body)
	}
}

func TestCalculate_SummaryAndOneTimeDownload(t *testing.T) {
	env := newTestEnv(t)
	body := env.calculate(t)

	if body["status"] != "succeeded" {
		t.Fatalf("status=%v", body["status"])
	}
	totals := body["totals"].(map[string]interface{})
	if totals["sales"] != "1100" || totals["margin"] != "500" {
		t.Fatalf("totals=%v", totals)
	}
	reportPath := body["reportPath"].(string)
	if !strings.HasSuffix(reportPath, filepath.Join("销售数据_2025-01", "销售毛利分析报告_2025-01-02.xlsx")) {
		t.Fatalf("reportPath=%s", reportPath)
	}

	url := body["downloadUrl"].(string)
	rec := env.get(url)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "spreadsheetml") || rec.Body.Len() == 0 {
		t.Fatalf("unexpected download response: %v", rec.Header())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "filename*=UTF-8''") {
		t.Fatalf("Content-Disposition=%s", rec.Header().Get("Content-Disposition"))
	}

	if rec := env.get(url); rec.Code != http.StatusNotFound {
		t.Fatalf("second download status=%d, want 404", rec.Code)
	}
	// 报表在导出目录中保留
	if _, err := os.Stat(reportPath); err != nil {
		t.Fatalf("report removed after download: %v", err)
	}
	// 上传暂存已清理
	entries, _ := os.ReadDir(filepath.Join(env.dir, "uploads"))
	if len(entries) != 0 {
		t.Fatalf("uploads not cleaned: %d entries", len(entries))
	}
}

func TestCalculate_ValidationErrorIs422(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(multipartRequest(t, http.MethodPost, "/api/calculate", nil,
		upload{"sales", "sales.csv", "商品编码,订货数量\nSP001,1\n"},
	))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["kind"] != "validation" {
		t.Fatalf("kind=%v", body["kind"])
	}
	missing, _ := body["missing"].([]interface{})
	if len(missing) != 1 {
		t.Fatalf("missing=%v", body["missing"])
	}
}

func TestCalculate_DataErrorIs422(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(multipartRequest(t, http.MethodPost, "/api/calculate", nil,
		upload{"sales", "sales.csv", "商品编码,订货数量,商品单价\nSP001,abc,1\n"},
	))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["row"] != float64(2) {
		t.Fatalf("row=%v", body["row"])
	}
}

func TestCalculate_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(multipartRequest(t, http.MethodPost, "/api/calculate", nil,
		upload{"purchase", "purchase.csv", purchaseCSV},
	))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing sales: status=%d", rec.Code)
	}

	rec = env.do(multipartRequest(t, http.MethodPost, "/api/calculate",
		map[string]string{"analysisType": "weekly"},
		upload{"sales", "sales.csv", salesCSV},
	))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad analysis type: status=%d", rec.Code)
	}
}

func TestCalculateStream(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(multipartRequest(t, http.MethodPost, "/api/calculate/stream",
		map[string]string{"analysisType": "monthly"},
		upload{"sales", "sales.csv", salesCSV},
		upload{"purchase", "purchase.csv", purchaseCSV},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/event-stream") {
		t.Fatalf("Content-Type=%s", rec.Header().Get("Content-Type"))
	}

	var events []map[string]interface{}
	for _, chunk := range strings.Split(rec.Body.String(), "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if !strings.HasPrefix(chunk, "data: ") {
			continue
		}
		var e map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(chunk, "data: ")), &e); err != nil {
			t.Fatalf("bad event %q: %v", chunk, err)
		}
		events = append(events, e)
	}
	if len(events) < 3 || events[0]["type"] != "start" {
		t.Fatalf("events=%v", events)
	}
	last := events[len(events)-1]
	if last["type"] != "done" {
		t.Fatalf("last=%v", last)
	}
	data := last["data"].(map[string]interface{})
	if url, _ := data["downloadUrl"].(string); !strings.HasPrefix(url, "/api/export/download/") {
		t.Fatalf("downloadUrl=%v", data["downloadUrl"])
	}
}

func TestConfig_PatchPersists(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/config", strings.NewReader(`{"topN": 5, "analysisType": "yearly"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rec.Code, rec.Body.String())
	}

	body := decode(t, env.get("/api/config"))
	export := body["export"].(map[string]interface{})
	if export["topN"] != float64(5) || export["analysisType"] != "yearly" {
		t.Fatalf("export=%v", export)
	}

	saved, _, err := config.LoadConfigWithInfo(env.configPath)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if saved.Export.TopN != 5 {
		t.Fatalf("saved TopN=%d", saved.Export.TopN)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/config", strings.NewReader(`{"analysisType": "weekly"}`))
	req.Header.Set("Content-Type", "application/json")
	if rec := env.do(req); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid patch status=%d", rec.Code)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(multipartRequest(t, http.MethodPost, "/api/history/merge", nil,
		upload{"file", "purchase.csv", purchaseCSV},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("merge status=%d body=%s", rec.Code, rec.Body.String())
	}
	merge := decode(t, rec)["merge"].(map[string]interface{})
	if merge["added"] != float64(1) {
		t.Fatalf("merge=%v", merge)
	}

	list := decode(t, env.get("/api/history?keyword=sp0"))
	if records := list["records"].([]interface{}); len(records) != 1 {
		t.Fatalf("records=%v", records)
	}
	if list := decode(t, env.get("/api/history?keyword=none")); len(list["records"].([]interface{})) != 0 {
		t.Fatalf("expected no matches")
	}

	rec = env.get("/api/history/export")
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Fatalf("export status=%d", rec.Code)
	}

	rec = env.do(multipartRequest(t, http.MethodPost, "/api/history/load", nil,
		upload{"file", "history.csv", "商品编码,采购价,建单时间\nSP009,9.9,2024-12-01\n"},
	))
	if rec.Code != http.StatusOK || decode(t, rec)["records"] != float64(1) {
		t.Fatalf("load status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rec.Code)
	}
	if list := decode(t, env.get("/api/history")); len(list["records"].([]interface{})) != 0 {
		t.Fatalf("history not cleared")
	}
}

func TestRollupsAndRuns(t *testing.T) {
	env := newTestEnv(t)
	env.calculate(t)

	rollups := decode(t, env.get("/api/rollups"))
	monthly := rollups["monthly"].([]interface{})
	if len(monthly) != 1 || monthly[0].(map[string]interface{})["period"] != "2025-01" {
		t.Fatalf("monthly=%v", monthly)
	}

	runs := decode(t, env.get("/api/runs?limit=5"))["runs"].([]interface{})
	if len(runs) != 1 || runs[0].(map[string]interface{})["status"] != "succeeded" {
		t.Fatalf("runs=%v", runs)
	}
	if rec := env.get("/api/runs?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d", rec.Code)
	}

	if rec := env.do(httptest.NewRequest(http.MethodDelete, "/api/rollups", nil)); rec.Code != http.StatusOK {
		t.Fatalf("reset status=%d", rec.Code)
	}
	rollups = decode(t, env.get("/api/rollups"))
	if len(rollups["monthly"].([]interface{})) != 0 {
		t.Fatalf("rollups not reset: %v", rollups)
	}
}

func TestTemplates(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/api/templates/sales")
	if rec.Code != http.StatusOK || rec.Body.Len() == 0 {
		t.Fatalf("sales template status=%d", rec.Code)
	}
	if rec := env.get("/api/templates/unknown"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown template status=%d", rec.Code)
	}
}

func TestCheck(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(multipartRequest(t, http.MethodPost, "/api/check",
		map[string]string{"schema": "purchase_latest"},
		upload{"file", "purchase.csv", purchaseCSV},
	))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if body := decode(t, rec); body["ok"] != true {
		t.Fatalf("check=%v", body)
	}

	rec = env.do(multipartRequest(t, http.MethodPost, "/api/check", nil,
		upload{"file", "sales.xls", "legacy"},
	))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unsupported format status=%d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/calculate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := env.do(req)
	if rec.Code >= 300 {
		t.Fatalf("preflight status=%d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin=%q", got)
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := server.NewServer(api.Deps{Runner: pipeline.NewRunner(nil, nil, pipeline.Options{})}, true, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
