package processor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var processorTracer = otel.Tracer("resume-agent-go/processor")

// parserVersion 抽取管线版本号，随画像落库便于回溯
const parserVersion = "2.1"

// ProfileStore 画像持久化依赖
type ProfileStore interface {
	SaveResume(ctx context.Context, resume *models.Resume) error
	GetByRawTextMD5(ctx context.Context, md5sum string) (*models.Resume, error)
	CountResumes(ctx context.Context) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]models.Resume, error)
	KeywordSearch(ctx context.Context, query string, limit int) ([]models.Resume, error)
}

// DedupCache 去重集合与计数缓存依赖，可为nil（降级运行）
type DedupCache interface {
	IsDuplicateText(ctx context.Context, md5Hex string) (bool, error)
	AddRawTextMD5(ctx context.Context, md5Hex string) error
	GetCachedResumeCount(ctx context.Context) (int64, bool)
	SetCachedResumeCount(ctx context.Context, count int64) error
	InvalidateResumeCount(ctx context.Context) error
}

// ObjectStore 对象存储依赖，可为nil（归档降级）
type ObjectStore interface {
	UploadOriginal(ctx context.Context, objectName string, data []byte, contentType string) (string, error)
	UploadProfileDoc(ctx context.Context, objectName string, profile *types.CandidateProfile, rawText string) (string, error)
}

// EventPublisher 事件发布依赖，可为nil（广播降级）
type EventPublisher interface {
	PublishParsed(ctx context.Context, event *storage.ResumeParsedEvent) error
	PublishATSSync(ctx context.Context, event *storage.ATSSyncEvent) error
}

// ModelInvoker 模型调用依赖
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt, systemInstruction string, configs []types.ModelConfig) (string, error)
}

// TextExtractor 文档文本提取依赖
type TextExtractor interface {
	Allowed(filename string) bool
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// UploadResult 一次简历上传的处理结果
type UploadResult struct {
	ResumeID  string                  `json:"resume_id"`
	Duplicate bool                    `json:"duplicate"`
	Profile   *types.CandidateProfile `json:"profile"`
}

// ResumeService 简历解析编排器
// 串起文本提取、分块、模型调用、JSON恢复、合并、增强、评分与持久化
type ResumeService struct {
	invoker   ModelInvoker
	models    []types.ModelConfig
	extractor TextExtractor
	prompts   *parser.PromptBuilder
	chunker   *parser.Chunker
	merger    *parser.Merger
	enricher  *parser.Enricher
	scorer    *parser.Scorer

	store     ProfileStore
	cache     DedupCache
	objects   ObjectStore
	publisher EventPublisher
}

// NewResumeService 创建解析编排器
// cache/objects/publisher 允许为nil，对应能力降级
func NewResumeService(
	invoker ModelInvoker,
	gateway *config.GatewayConfig,
	extractor TextExtractor,
	store ProfileStore,
	cache DedupCache,
	objects ObjectStore,
	publisher EventPublisher,
) *ResumeService {
	normalizer := parser.NewTextNormalizer()
	return &ResumeService{
		invoker:   invoker,
		models:    gateway.Models,
		extractor: extractor,
		prompts:   parser.NewPromptBuilder(),
		chunker:   parser.NewChunker(),
		merger:    parser.NewMerger(normalizer),
		enricher:  parser.NewEnricher(normalizer),
		scorer:    parser.NewScorer(),
		store:     store,
		cache:     cache,
		objects:   objects,
		publisher: publisher,
	}
}

// AllowedFile 判断文件名是否在支持的简历格式之列
func (s *ResumeService) AllowedFile(filename string) bool {
	return s.extractor.Allowed(filename)
}

// ProcessUpload 处理一次简历文件上传：提取、查重、解析、落库、归档、广播
func (s *ResumeService) ProcessUpload(ctx context.Context, filename string, data []byte) (*UploadResult, error) {
	ctx, span := processorTracer.Start(ctx, "resume.ProcessUpload")
	defer span.End()
	span.SetAttributes(
		attribute.String("resume.filename", filename),
		attribute.Int("resume.file_size", len(data)),
	)

	rawText, err := s.extractor.Extract(ctx, filename, data)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeParse)
		return nil, err
	}

	// 原文MD5查重：Redis集合短路，MySQL唯一索引兜底
	sum := md5.Sum([]byte(rawText))
	textMD5 := hex.EncodeToString(sum[:])
	if existing := s.findDuplicate(ctx, textMD5); existing != nil {
		span.SetAttributes(attribute.Bool("resume.duplicate", true))
		profile, perr := existing.ToProfile()
		if perr != nil {
			return nil, fmt.Errorf("还原已有画像失败: %w", perr)
		}
		log.Info().Str("resume_id", existing.ResumeID).Msg("命中重复简历，跳过解析")
		return &UploadResult{ResumeID: existing.ResumeID, Duplicate: true, Profile: profile}, nil
	}

	profile, err := s.ParseText(ctx, rawText)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeModel)
		return nil, err
	}

	resumeID := uuid.NewString()
	row, err := models.FromProfile(resumeID, profile)
	if err != nil {
		return nil, fmt.Errorf("画像落行失败: %w", err)
	}
	row.RawTextMD5 = textMD5
	row.OriginalFilename = filename
	row.ParserVersion = parserVersion

	// 对象归档尽力而为，失败不阻断落库
	if s.objects != nil {
		if ossPath, uerr := s.objects.UploadOriginal(ctx, resumeID+strings.ToLower(filepath.Ext(filename)), data, contentTypeFor(filename)); uerr != nil {
			log.Warn().Err(uerr).Str("resume_id", resumeID).Msg("归档原始简历失败")
		} else {
			row.OriginalFileOSS = ossPath
		}
		if docPath, uerr := s.objects.UploadProfileDoc(ctx, "resume_"+resumeID+".txt", profile, rawText); uerr != nil {
			log.Warn().Err(uerr).Str("resume_id", resumeID).Msg("导出画像文档失败")
		} else {
			row.ProfileDocOSS = docPath
		}
	}

	if err := s.store.SaveResume(ctx, row); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}

	if s.cache != nil {
		if cerr := s.cache.AddRawTextMD5(ctx, textMD5); cerr != nil {
			log.Warn().Err(cerr).Msg("写入MD5去重集合失败")
		}
		if cerr := s.cache.InvalidateResumeCount(ctx); cerr != nil {
			log.Warn().Err(cerr).Msg("失效简历计数缓存失败")
		}
	}

	s.publishEvents(ctx, resumeID, filename, profile)

	span.SetAttributes(
		attribute.String("resume.id", resumeID),
		attribute.Int("resume.completeness_score", profile.CompletenessScore),
	)
	log.Info().
		Str("resume_id", resumeID).
		Str("name", tracing.MaskPII(profile.Name)).
		Int("score", profile.CompletenessScore).
		Msg("简历解析完成")
	return &UploadResult{ResumeID: resumeID, Profile: profile}, nil
}

// ParseText 对已提取的简历文本执行完整解析管线
// 外层按预算序列收缩重试：全部模型失败或输出不可解析时换用更小的文本预算再试，
// 预算耗尽后上抛最后一次的终止错误
func (s *ResumeService) ParseText(ctx context.Context, rawText string) (*types.CandidateProfile, error) {
	ctx, span := processorTracer.Start(ctx, "resume.ParseText")
	defer span.End()
	span.SetAttributes(attribute.Int("resume.text_length", len(rawText)))

	var lastErr error
	for attempt, budget := range constants.ShrinkBudgets {
		profile, err := s.parseOnce(ctx, rawText, budget)
		if err == nil {
			span.SetAttributes(attribute.Int("resume.parse_attempts", attempt+1))
			return profile, nil
		}
		lastErr = err
		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Int("budget", budget).
			Msg("解析尝试失败，收缩预算重试")

		if ctx.Err() != nil {
			break
		}
	}

	tracing.RecordError(span, lastErr, tracing.ErrorTypeModel)
	return nil, lastErr
}

// parseOnce 在给定文本预算下执行一次分块、调用、恢复、合并与增强
func (s *ResumeService) parseOnce(ctx context.Context, rawText string, budget int) (*types.CandidateProfile, error) {
	plan := s.chunker.Decide(rawText, budget)

	// 块间串行调用，保持按块序合并
	results := make([]map[string]interface{}, 0, len(plan.Chunks))
	for _, chunk := range plan.Chunks {
		prompt := s.prompts.BuildExtraction(chunk.Text)
		raw, err := s.invoker.Invoke(ctx, prompt, parser.SystemInstruction, s.models)
		if err != nil {
			return nil, fmt.Errorf("块 %s 调用失败: %w", chunk.Label, err)
		}

		parsed, partial, err := llm.Decode(raw)
		if err != nil {
			// 恢复失败等同于模型调用失败，交给外层收缩重试
			return nil, fmt.Errorf("块 %s 输出恢复失败: %w", chunk.Label, err)
		}
		if partial {
			log.Warn().Str("chunk", chunk.Label).Msg("块输出仅部分恢复")
		}
		results = append(results, parsed)
	}

	merged := s.merger.Merge(results)
	enhanced := s.enricher.Enhance(merged, rawText)

	profile := parser.ProfileFromMap(enhanced)
	if !profile.HasIdentity() {
		return nil, fmt.Errorf("解析结果缺少可识别字段: %w", types.ErrUnparsableOutput)
	}
	profile.CompletenessScore = s.scorer.Score(profile)
	return profile, nil
}

// Stats 返回简历总数，优先读缓存，未命中回源MySQL并回填
func (s *ResumeService) Stats(ctx context.Context) (int64, error) {
	if s.cache != nil {
		if count, ok := s.cache.GetCachedResumeCount(ctx); ok {
			return count, nil
		}
	}

	count, err := s.store.CountResumes(ctx)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if cerr := s.cache.SetCachedResumeCount(ctx, count); cerr != nil {
			log.Warn().Err(cerr).Msg("回填简历计数缓存失败")
		}
	}
	return count, nil
}

// findDuplicate 按原文MD5查重，Redis未命中或降级时以MySQL为准
func (s *ResumeService) findDuplicate(ctx context.Context, textMD5 string) *models.Resume {
	if s.cache != nil {
		dup, err := s.cache.IsDuplicateText(ctx, textMD5)
		if err != nil {
			log.Warn().Err(err).Msg("查询MD5去重集合失败")
		} else if !dup {
			return nil
		}
	}

	existing, err := s.store.GetByRawTextMD5(ctx, textMD5)
	if err != nil {
		log.Warn().Err(err).Msg("按MD5查询已有简历失败")
		return nil
	}
	return existing
}

// publishEvents 解析成功后广播事件并投递ATS同步任务，均尽力而为
func (s *ResumeService) publishEvents(ctx context.Context, resumeID, filename string, profile *types.CandidateProfile) {
	if s.publisher == nil {
		return
	}

	parsedEvent := &storage.ResumeParsedEvent{
		ResumeID:          resumeID,
		Name:              profile.Name,
		Email:             profile.Email,
		CompletenessScore: profile.CompletenessScore,
		OriginalFilename:  filename,
		ParsedAt:          time.Now().Format(time.RFC3339),
	}
	if err := s.publisher.PublishParsed(ctx, parsedEvent); err != nil {
		log.Warn().Err(err).Str("resume_id", resumeID).Msg("广播解析事件失败")
	}

	if err := s.publisher.PublishATSSync(ctx, &storage.ATSSyncEvent{ResumeID: resumeID, Attempt: 1}); err != nil {
		log.Warn().Err(err).Str("resume_id", resumeID).Msg("投递ATS同步任务失败")
	}
}

// contentTypeFor 按扩展名推断上传内容类型
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	default:
		return "application/octet-stream"
	}
}
