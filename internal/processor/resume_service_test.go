package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInvoker 按脚本顺序吐出补全或错误
type fakeInvoker struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeInvoker) Invoke(_ context.Context, _, _ string, _ []types.ModelConfig) (string, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return "", &types.AllModelsExhaustedError{Reasons: []string{"脚本耗尽"}}
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Allowed(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".pdf")
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ []byte) (string, error) {
	return f.text, f.err
}

type fakeStore struct {
	saved    []*models.Resume
	byMD5    map[string]*models.Resume
	count    int64
	countErr error
	recent   []models.Resume
	keyword  []models.Resume
}

func newFakeStore() *fakeStore {
	return &fakeStore{byMD5: make(map[string]*models.Resume)}
}

func (f *fakeStore) SaveResume(_ context.Context, resume *models.Resume) error {
	f.saved = append(f.saved, resume)
	f.byMD5[resume.RawTextMD5] = resume
	return nil
}

func (f *fakeStore) GetByRawTextMD5(_ context.Context, md5sum string) (*models.Resume, error) {
	return f.byMD5[md5sum], nil
}

func (f *fakeStore) CountResumes(_ context.Context) (int64, error) {
	return f.count, f.countErr
}

func (f *fakeStore) ListRecent(_ context.Context, _ int) ([]models.Resume, error) {
	return f.recent, nil
}

func (f *fakeStore) KeywordSearch(_ context.Context, _ string, _ int) ([]models.Resume, error) {
	return f.keyword, nil
}

type fakeCache struct {
	md5s        map[string]bool
	cachedCount int64
	hasCount    bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{md5s: make(map[string]bool)}
}

func (f *fakeCache) IsDuplicateText(_ context.Context, md5Hex string) (bool, error) {
	return f.md5s[md5Hex], nil
}

func (f *fakeCache) AddRawTextMD5(_ context.Context, md5Hex string) error {
	f.md5s[md5Hex] = true
	return nil
}

func (f *fakeCache) GetCachedResumeCount(_ context.Context) (int64, bool) {
	return f.cachedCount, f.hasCount
}

func (f *fakeCache) SetCachedResumeCount(_ context.Context, count int64) error {
	f.cachedCount = count
	f.hasCount = true
	return nil
}

func (f *fakeCache) InvalidateResumeCount(_ context.Context) error {
	f.hasCount = false
	return nil
}

type fakeObjects struct {
	originals map[string][]byte
	docs      map[string]string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{originals: make(map[string][]byte), docs: make(map[string]string)}
}

func (f *fakeObjects) UploadOriginal(_ context.Context, objectName string, data []byte, _ string) (string, error) {
	f.originals[objectName] = data
	return "resume-originals/" + objectName, nil
}

func (f *fakeObjects) UploadProfileDoc(_ context.Context, objectName string, _ *types.CandidateProfile, rawText string) (string, error) {
	f.docs[objectName] = rawText
	return "resume-docs/" + objectName, nil
}

type fakePublisher struct {
	parsed []*storage.ResumeParsedEvent
	syncs  []*storage.ATSSyncEvent
}

func (f *fakePublisher) PublishParsed(_ context.Context, event *storage.ResumeParsedEvent) error {
	f.parsed = append(f.parsed, event)
	return nil
}

func (f *fakePublisher) PublishATSSync(_ context.Context, event *storage.ATSSyncEvent) error {
	f.syncs = append(f.syncs, event)
	return nil
}

func validCompletion(t *testing.T) string {
	t.Helper()
	payload := map[string]interface{}{
		"name":                   "Ahmed Khan",
		"email":                  "ahmed.khan@mail.com",
		"phone":                  "971501234567",
		"location":               "Dubai, UAE",
		"summary":                "SAP FICO lead",
		"total_years_experience": "12",
		"current_role":           "SAP FICO Lead",
		"erp_systems":            []string{"SAP"},
		"erp_modules":            []string{"FICO"},
		"technical_skills":       []string{"ABAP"},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

func newTestService(invoker ModelInvoker, store *fakeStore, cache *fakeCache, objects *fakeObjects, publisher *fakePublisher) *ResumeService {
	gateway := &config.GatewayConfig{Models: []types.ModelConfig{{Model: "llama3:8b", Temperature: 0.1, MaxTokens: 1500}}}
	var cacheDep DedupCache
	if cache != nil {
		cacheDep = cache
	}
	var objectsDep ObjectStore
	if objects != nil {
		objectsDep = objects
	}
	var publisherDep EventPublisher
	if publisher != nil {
		publisherDep = publisher
	}
	return NewResumeService(invoker, gateway, &fakeExtractor{text: sampleResumeText()}, store, cacheDep, objectsDep, publisherDep)
}

func sampleResumeText() string {
	return strings.Repeat("Ahmed Khan, SAP FICO Lead at Emirates Steel. 12 years of SAP experience. ", 3)
}

func TestParseTextSinglePass(t *testing.T) {
	invoker := &fakeInvoker{responses: []string{validCompletion(t)}}
	svc := newTestService(invoker, newFakeStore(), nil, nil, nil)

	profile, err := svc.ParseText(context.Background(), sampleResumeText())
	require.NoError(t, err, "单次解析不应失败")

	assert.Equal(t, 1, invoker.calls, "短文本应只调用一次模型")
	assert.Equal(t, "Ahmed Khan", profile.Name)
	assert.Equal(t, []string{"FICO", "FI", "CO", "Financial Accounting", "Controlling"}, profile.ERPModules, "FICO应展开为细分模块")
	assert.Greater(t, profile.CompletenessScore, 0, "画像应被评分")
}

func TestParseTextShrinkRetry(t *testing.T) {
	invoker := &fakeInvoker{
		errs:      []error{&types.AllModelsExhaustedError{Reasons: []string{"超时"}}, nil},
		responses: []string{"", validCompletion(t)},
	}
	svc := newTestService(invoker, newFakeStore(), nil, nil, nil)

	profile, err := svc.ParseText(context.Background(), sampleResumeText())
	require.NoError(t, err, "第二个预算应成功")
	assert.Equal(t, 2, invoker.calls, "首次失败后应收缩预算重试")
	assert.Equal(t, "Ahmed Khan", profile.Name)
}

func TestParseTextUnparsableTreatedAsRetryable(t *testing.T) {
	invoker := &fakeInvoker{responses: []string{"对不起，我无法处理这份简历。", validCompletion(t)}}
	svc := newTestService(invoker, newFakeStore(), nil, nil, nil)

	profile, err := svc.ParseText(context.Background(), sampleResumeText())
	require.NoError(t, err, "不可解析的输出应触发重试而非直接失败")
	assert.Equal(t, 2, invoker.calls)
	assert.Equal(t, "ahmed.khan@mail.com", profile.Email)
}

func TestParseTextAllBudgetsExhausted(t *testing.T) {
	terminal := &types.AllModelsExhaustedError{Reasons: []string{"网关不可达", "最后原因"}}
	invoker := &fakeInvoker{errs: []error{terminal, terminal, terminal, terminal}}
	svc := newTestService(invoker, newFakeStore(), nil, nil, nil)

	_, err := svc.ParseText(context.Background(), sampleResumeText())
	require.Error(t, err, "预算耗尽后应上抛终止错误")

	var exhausted *types.AllModelsExhaustedError
	require.ErrorAs(t, err, &exhausted, "终止错误应保留类型")
	assert.Equal(t, "最后原因", exhausted.LastReason())
	assert.Equal(t, 4, invoker.calls, "四档预算各尝试一次")
}

func TestParseTextNoIdentityFails(t *testing.T) {
	empty := `{"summary": "a resume with nothing identifying"}`
	invoker := &fakeInvoker{responses: []string{empty, empty, empty, empty}}
	svc := newTestService(invoker, newFakeStore(), nil, nil, nil)

	_, err := svc.ParseText(context.Background(), sampleResumeText())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnparsableOutput, "无识别字段的结果应视为输出不可用")
}

func TestProcessUploadPersistsAndPublishes(t *testing.T) {
	invoker := &fakeInvoker{responses: []string{validCompletion(t)}}
	store := newFakeStore()
	cache := newFakeCache()
	objects := newFakeObjects()
	publisher := &fakePublisher{}
	svc := newTestService(invoker, store, cache, objects, publisher)

	result, err := svc.ProcessUpload(context.Background(), "ahmed.pdf", []byte("%PDF-fake"))
	require.NoError(t, err)
	require.NotEmpty(t, result.ResumeID)
	assert.False(t, result.Duplicate)

	require.Len(t, store.saved, 1, "画像应落库一次")
	row := store.saved[0]
	assert.Equal(t, "ahmed.pdf", row.OriginalFilename)
	assert.NotEmpty(t, row.RawTextMD5)
	assert.Equal(t, "resume-originals/"+result.ResumeID+".pdf", row.OriginalFileOSS)
	assert.Equal(t, "resume-docs/resume_"+result.ResumeID+".txt", row.ProfileDocOSS)

	assert.True(t, cache.md5s[row.RawTextMD5], "原文MD5应写入去重集合")
	require.Len(t, publisher.parsed, 1, "应广播解析事件")
	assert.Equal(t, result.ResumeID, publisher.parsed[0].ResumeID)
	require.Len(t, publisher.syncs, 1, "应投递ATS同步任务")
	assert.Equal(t, result.ResumeID, publisher.syncs[0].ResumeID)
}

func TestProcessUploadDuplicateShortCircuits(t *testing.T) {
	invoker := &fakeInvoker{responses: []string{validCompletion(t)}}
	store := newFakeStore()
	cache := newFakeCache()
	svc := newTestService(invoker, store, cache, newFakeObjects(), &fakePublisher{})

	first, err := svc.ProcessUpload(context.Background(), "ahmed.pdf", []byte("%PDF-fake"))
	require.NoError(t, err)

	second, err := svc.ProcessUpload(context.Background(), "ahmed-again.pdf", []byte("%PDF-fake"))
	require.NoError(t, err)

	assert.True(t, second.Duplicate, "相同原文应命中查重")
	assert.Equal(t, first.ResumeID, second.ResumeID, "应返回已有记录的标识")
	assert.Equal(t, 1, invoker.calls, "重复上传不应再次调用模型")
	assert.Len(t, store.saved, 1, "重复上传不应再次落库")
}

func TestProcessUploadExtractionFailure(t *testing.T) {
	gateway := &config.GatewayConfig{Models: []types.ModelConfig{{Model: "llama3:8b"}}}
	svc := NewResumeService(&fakeInvoker{}, gateway,
		&fakeExtractor{err: fmt.Errorf("空白扫描件: %w", types.ErrExtractionFailed)},
		newFakeStore(), nil, nil, nil)

	_, err := svc.ProcessUpload(context.Background(), "scan.pdf", []byte("%PDF-fake"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrExtractionFailed), "提取失败应原样上抛，不进入重试")
}

func TestStatsCacheFlow(t *testing.T) {
	store := newFakeStore()
	store.count = 42
	cache := newFakeCache()
	svc := newTestService(&fakeInvoker{}, store, cache, nil, nil)

	count, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.True(t, cache.hasCount, "未命中后应回填缓存")

	store.countErr = errors.New("数据库不可用")
	count, err = svc.Stats(context.Background())
	require.NoError(t, err, "缓存命中时不应触达数据库")
	assert.Equal(t, int64(42), count)
}
