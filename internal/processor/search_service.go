package processor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// skillsSummaryLimit 候选人摘要中技能串的截断长度
const skillsSummaryLimit = 80

// SearchResult 一条搜索命中，携带模型给出的相关度与理由
type SearchResult struct {
	ResumeID       string                  `json:"resume_id"`
	RelevanceScore int                     `json:"relevance_score"`
	MatchReason    string                  `json:"match_reason"`
	Profile        *types.CandidateProfile `json:"profile"`
}

// SearchService 两段式候选人搜索
// 首选让模型对候选人摘要排序打分，模型不可用或输出不可解析时退回存储侧关键词过滤
type SearchService struct {
	invoker     ModelInvoker
	searchModel types.ModelConfig
	prompts     *parser.PromptBuilder
	store       ProfileStore
}

// NewSearchService 创建搜索服务
func NewSearchService(invoker ModelInvoker, gateway *config.GatewayConfig, store ProfileStore) *SearchService {
	return &SearchService{
		invoker:     invoker,
		searchModel: gateway.SearchModel,
		prompts:     parser.NewPromptBuilder(),
		store:       store,
	}
}

// Search 按自然语言查询返回排序后的候选人列表
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	ctx, span := processorTracer.Start(ctx, "search.Search")
	defer span.End()
	span.SetAttributes(attribute.String("search.query", tracing.TruncateString(query, 200)))

	if limit <= 0 {
		limit = constants.MaxSummaryCandidates
	}

	resumes, err := s.store.ListRecent(ctx, constants.MaxSummaryCandidates)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	if len(resumes) == 0 {
		return []SearchResult{}, nil
	}

	results, err := s.rankWithModel(ctx, query, resumes, limit)
	if err != nil {
		// 模型排序不可用，退回关键词兜底
		log.Warn().Err(err).Msg("模型排序失败，退回关键词搜索")
		span.SetAttributes(attribute.Bool("search.keyword_fallback", true))
		return s.keywordFallback(ctx, query, limit)
	}
	if len(results) == 0 {
		// 模型给出空排序或全部序号越界，同样退回兜底
		log.Warn().Str("query", tracing.TruncateString(query, 80)).Msg("模型排序为空，退回关键词搜索")
		span.SetAttributes(attribute.Bool("search.keyword_fallback", true))
		return s.keywordFallback(ctx, query, limit)
	}

	span.SetAttributes(attribute.Int("search.result_count", len(results)))
	return results, nil
}

// rankWithModel 让模型对候选人摘要排序并打分
func (s *SearchService) rankWithModel(ctx context.Context, query string, resumes []models.Resume, limit int) ([]SearchResult, error) {
	summaries := make([]string, 0, len(resumes))
	for i, r := range resumes {
		summaries = append(summaries, candidateSummary(i+1, &r))
	}

	prompt := s.prompts.BuildSearch(query, summaries)
	raw, err := s.invoker.Invoke(ctx, prompt, parser.SearchSystemInstruction, []types.ModelConfig{s.searchModel})
	if err != nil {
		return nil, err
	}

	items, err := llm.DecodeArray(raw)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		number := intValue(obj["candidate_number"])
		if number < 1 || number > len(resumes) {
			// 模型偶尔引用不存在的序号，丢弃
			continue
		}

		row := resumes[number-1]
		profile, perr := row.ToProfile()
		if perr != nil {
			log.Warn().Err(perr).Str("resume_id", row.ResumeID).Msg("还原候选人画像失败，跳过")
			continue
		}
		results = append(results, SearchResult{
			ResumeID:       row.ResumeID,
			RelevanceScore: intValue(obj["score"]),
			MatchReason:    stringField(obj["reason"]),
			Profile:        profile,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// keywordFallback 存储侧关键词过滤，固定相关度分数
func (s *SearchService) keywordFallback(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	rows, err := s.store.KeywordSearch(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("关键词兜底搜索失败: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		profile, perr := row.ToProfile()
		if perr != nil {
			log.Warn().Err(perr).Str("resume_id", row.ResumeID).Msg("还原候选人画像失败，跳过")
			continue
		}
		results = append(results, SearchResult{
			ResumeID:       row.ResumeID,
			RelevanceScore: constants.KeywordMatchScore,
			MatchReason:    "Keyword match: " + query,
			Profile:        profile,
		})
	}
	return results, nil
}

// candidateSummary 渲染送入搜索提示词的单行候选人摘要
func candidateSummary(number int, r *models.Resume) string {
	skills := r.SkillsText
	if len(skills) > skillsSummaryLimit {
		skills = skills[:skillsSummaryLimit]
	}

	years := r.TotalYearsExperience
	if strings.TrimSpace(years) == "" {
		years = "?"
	}

	return fmt.Sprintf("%d. %s | %s | ERP: %s | Modules: %s | Skills: %s | %s yrs",
		number, r.Name, r.CurrentRole, r.ERPSystemsText, r.ERPModulesText, skills, years)
}

// intValue 宽松取整：模型输出的数字可能是float64或字符串
func intValue(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		var parsed int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &parsed); err == nil {
			return parsed
		}
	}
	return 0
}

func stringField(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
