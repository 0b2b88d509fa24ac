package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/api/router"
	"resume-agent-go/internal/config"
	"resume-agent-go/internal/processor"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInvoker 固定吐出一份结构化画像
type fakeInvoker struct {
	response string
	err      error
}

func (f *fakeInvoker) Invoke(_ context.Context, _, _ string, _ []types.ModelConfig) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeExtractor struct{}

func (fakeExtractor) Allowed(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".pdf") || strings.HasSuffix(name, ".docx") || strings.HasSuffix(name, ".doc")
}

func (fakeExtractor) Extract(_ context.Context, _ string, _ []byte) (string, error) {
	return strings.Repeat("Ahmed Khan SAP FICO Lead with 12 years of experience. ", 3), nil
}

type fakeStore struct {
	rows  []models.Resume
	count int64
}

func (f *fakeStore) SaveResume(_ context.Context, resume *models.Resume) error {
	f.rows = append(f.rows, *resume)
	return nil
}

func (f *fakeStore) GetByRawTextMD5(_ context.Context, _ string) (*models.Resume, error) {
	return nil, nil
}

func (f *fakeStore) CountResumes(_ context.Context) (int64, error) {
	return f.count, nil
}

func (f *fakeStore) ListRecent(_ context.Context, _ int) ([]models.Resume, error) {
	return f.rows, nil
}

func (f *fakeStore) KeywordSearch(_ context.Context, _ string, _ int) ([]models.Resume, error) {
	return f.rows, nil
}

func profileJSON(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"name":        "Ahmed Khan",
		"email":       "ahmed.khan@mail.com",
		"erp_systems": []string{"SAP"},
	})
	require.NoError(t, err)
	return string(data)
}

func newTestEngine(t *testing.T, store *fakeStore, invoker processor.ModelInvoker, apiKey string) *server.Hertz {
	t.Helper()
	gateway := &config.GatewayConfig{
		Models:      []types.ModelConfig{{Model: "llama3:8b", Temperature: 0.1, MaxTokens: 1500}},
		SearchModel: types.ModelConfig{Model: "llama3:8b", Temperature: 0.1, MaxTokens: 2000},
	}
	resumes := processor.NewResumeService(invoker, gateway, fakeExtractor{}, store, nil, nil, nil)
	searches := processor.NewSearchService(invoker, gateway, store)

	cfg := config.DefaultConfig()
	cfg.Server.APIKey = apiKey

	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(h, cfg, handler.NewResumeHandler(resumes, searches))
	return h
}

func multipartFile(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHandleUploadSuccess(t *testing.T) {
	store := &fakeStore{}
	h := newTestEngine(t, store, &fakeInvoker{response: profileJSON(t)}, "")

	body, contentType := multipartFile(t, "file", "ahmed.pdf", []byte("%PDF-fake"))
	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/resume/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	var result processor.UploadResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.NotEmpty(t, result.ResumeID)
	assert.Equal(t, "Ahmed Khan", result.Profile.Name)
	assert.Len(t, store.rows, 1, "画像应落库")
}

func TestHandleUploadMissingFile(t *testing.T) {
	h := newTestEngine(t, &fakeStore{}, &fakeInvoker{response: profileJSON(t)}, "")

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/resume/upload", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code, "缺少文件应返回400")
}

func TestHandleUploadUnsupportedType(t *testing.T) {
	h := newTestEngine(t, &fakeStore{}, &fakeInvoker{response: profileJSON(t)}, "")

	body, contentType := multipartFile(t, "file", "photo.png", []byte("not a resume"))
	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/resume/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code, "不支持的扩展名应返回400")
}

func TestHandleUploadGatewayUnavailable(t *testing.T) {
	invoker := &fakeInvoker{err: &types.AllModelsExhaustedError{Reasons: []string{"网关不可达"}}}
	h := newTestEngine(t, &fakeStore{}, invoker, "")

	body, contentType := multipartFile(t, "file", "ahmed.pdf", []byte("%PDF-fake"))
	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/resume/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code, "模型耗尽应返回503")
	assert.Contains(t, resp.Body.String(), "网关不可达", "响应应附最后失败原因")
}

func TestHandleSearchValidation(t *testing.T) {
	h := newTestEngine(t, &fakeStore{}, &fakeInvoker{}, "")

	payload := strings.NewReader(`{"query": ""}`)
	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/search",
		&ut.Body{Body: payload, Len: payload.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code, "空query应返回400")
}

func TestHandleSearchEmptyStore(t *testing.T) {
	h := newTestEngine(t, &fakeStore{}, &fakeInvoker{}, "")

	payload := strings.NewReader(`{"query": "SAP"}`)
	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/search",
		&ut.Body{Body: payload, Len: payload.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	var result struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, 0, result.Count)
}

func TestHandleStats(t *testing.T) {
	h := newTestEngine(t, &fakeStore{count: 17}, &fakeInvoker{}, "")

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var result struct {
		TotalResumes int64 `json:"total_resumes"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, int64(17), result.TotalResumes)
}

func TestAPIKeyGuard(t *testing.T) {
	h := newTestEngine(t, &fakeStore{count: 3}, &fakeInvoker{}, "secret-key")

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code, "无令牌应被拒绝")

	resp = ut.PerformRequest(h.Engine, "GET", "/api/v1/stats", nil,
		ut.Header{Key: "Authorization", Value: "Bearer secret-key"})
	assert.Equal(t, http.StatusOK, resp.Code, "正确令牌应放行")

	resp = ut.PerformRequest(h.Engine, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code, "健康检查不受鉴权约束")
}
