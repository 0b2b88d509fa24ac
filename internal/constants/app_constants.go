package constants

import "time"

const (
	// MinViableTextLength 提取文本的最小可用长度，低于此值视为提取失败
	MinViableTextLength = 50

	// MaxSummaryCandidates 单次搜索提示词中最多携带的候选人摘要数
	MaxSummaryCandidates = 30

	// KeywordMatchScore 关键词兜底搜索的固定相关度分数
	KeywordMatchScore = 70

	// TruncationMarker 首尾截断时插入的中段省略标记，随提示词送入模型，保持英文
	TruncationMarker = "\n\n[... middle content omitted ...]\n\n"

	// Redis键
	RawTextMD5SetKey     = "resumes:text_md5s" // 已解析原文MD5集合，用于重复上传短路
	ResumeCountCacheKey  = "resumes:count"     // 简历总数缓存
	ResumeCountCacheTTL  = 5 * time.Minute
	RawTextMD5ExpireDays = 365
)

// ShrinkBudgets 外层收缩重试的文本预算序列（字符数）
// 首次解析使用首个预算，全部模型失败后依次换用更小预算再试
var ShrinkBudgets = []int{9000, 7000, 5500, 4500}
