package parser

import (
	"sort"
	"strings"
	"unicode/utf8"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/types"
)

// sectionFamily 章节关键词族，按扫描优先级排列
type sectionFamily struct {
	name     string
	keywords []string
}

// 行扫描时逐族匹配，同族只记录首次命中的字符偏移
var sectionFamilies = []sectionFamily{
	{"summary", []string{"summary", "objective", "profile"}},
	{"experience", []string{"experience", "employment", "work history"}},
	{"projects", []string{"projects", "project experience"}},
	{"education", []string{"education", "academic", "qualification"}},
	{"skills", []string{"skills", "technical skills", "competencies"}},
	{"certifications", []string{"certifications", "certificates", "certification"}},
}

// Chunker 决定简历文本的送入策略：整体单次、首尾截断或按章节多块
type Chunker struct{}

// NewChunker 创建分块器
func NewChunker() *Chunker {
	return &Chunker{}
}

// Decide 按文本长度与预算产出分块计划
//   - 长度不超过预算：整体单次送入
//   - 超出预算但不超过1.5倍：保留头部约1/3预算与尾部剩余预算，丢弃中段
//     （联系方式集中在头部，最近的经历集中在尾部）
//   - 超过1.5倍：按章节关键词切出主题块，逐块送入后合并
func (c *Chunker) Decide(text string, maxLength int) types.ChunkPlan {
	if len(text) <= maxLength {
		return types.ChunkPlan{
			Mode:   types.ChunkSinglePass,
			Chunks: []types.ResumeChunk{{Label: "full", Text: text}},
		}
	}

	if len(text) <= maxLength+maxLength/2 {
		return types.ChunkPlan{
			Mode:   types.ChunkTruncated,
			Chunks: []types.ResumeChunk{{Label: "head+tail", Text: c.truncateHeadTail(text, maxLength)}},
		}
	}

	chunks := c.splitBySections(text, maxLength)
	if len(chunks) == 0 {
		// 未识别出任何章节时退化为首尾截断
		return types.ChunkPlan{
			Mode:   types.ChunkTruncated,
			Chunks: []types.ResumeChunk{{Label: "head+tail", Text: c.truncateHeadTail(text, maxLength)}},
		}
	}
	return types.ChunkPlan{Mode: types.ChunkMulti, Chunks: chunks}
}

// truncateHeadTail 保留头部约1/3预算与尾部剩余预算，中间以省略标记连接
func (c *Chunker) truncateHeadTail(text string, maxLength int) string {
	headLen := maxLength / 3
	tailLen := maxLength - headLen - len(constants.TruncationMarker)
	if tailLen < 0 {
		tailLen = 0
	}
	if headLen+tailLen >= len(text) {
		return text
	}
	head := text[:cutBeforeRune(text, headLen)]
	tail := text[cutAfterRune(text, len(text)-tailLen):]
	return head + constants.TruncationMarker + tail
}

// sectionHit 单个章节族的首次命中位置
type sectionHit struct {
	name   string
	offset int
}

// locateSections 逐行扫描，记录每个章节族首个关键词命中的字符偏移
func (c *Chunker) locateSections(text string) []sectionHit {
	found := make(map[string]int, len(sectionFamilies))

	// 偏移量必须以原文本计量，逐行小写只用于匹配
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		for _, family := range sectionFamilies {
			if _, ok := found[family.name]; ok {
				continue
			}
			for _, kw := range family.keywords {
				if strings.Contains(lower, kw) {
					found[family.name] = offset
					break
				}
			}
		}
		offset += len(line) + 1
	}

	hits := make([]sectionHit, 0, len(found))
	for name, off := range found {
		hits = append(hits, sectionHit{name: name, offset: off})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })
	return hits
}

// splitBySections 基于章节偏移构造有序不重叠的主题块：
//   - 文件头+概述+技能+证书 拼成一块（截断到预算）
//   - 工作经历块，超预算时偏向尾部（最近经历），剩余较多时再补一块早期经历
//   - 项目块、教育块各一块
func (c *Chunker) splitBySections(text string, maxLength int) []types.ResumeChunk {
	hits := c.locateSections(text)
	if len(hits) == 0 {
		return nil
	}

	// 每个章节的区间到下一个章节为止，最后一个到文末
	spans := make(map[string]string, len(hits))
	for i, hit := range hits {
		end := len(text)
		if i+1 < len(hits) {
			end = hits[i+1].offset
		}
		spans[hit.name] = text[hit.offset:end]
	}
	header := text[:hits[0].offset]

	var chunks []types.ResumeChunk

	intro := header + spans["summary"] + spans["skills"] + spans["certifications"]
	if strings.TrimSpace(intro) != "" {
		chunks = append(chunks, types.ResumeChunk{Label: "header+skills", Text: capText(intro, maxLength)})
	}

	if exp := spans["experience"]; exp != "" {
		if len(exp) <= maxLength {
			chunks = append(chunks, types.ResumeChunk{Label: "experience", Text: exp})
		} else {
			cut := cutAfterRune(exp, len(exp)-maxLength)
			recent := exp[cut:]
			chunks = append(chunks, types.ResumeChunk{Label: "experience", Text: recent})
			earlier := exp[:cut]
			if len(earlier) > maxLength/2 {
				chunks = append(chunks, types.ResumeChunk{Label: "experience_early", Text: capText(earlier, maxLength)})
			}
		}
	}

	if projects := spans["projects"]; strings.TrimSpace(projects) != "" {
		chunks = append(chunks, types.ResumeChunk{Label: "projects", Text: capText(projects, maxLength)})
	}
	if education := spans["education"]; strings.TrimSpace(education) != "" {
		chunks = append(chunks, types.ResumeChunk{Label: "education", Text: capText(education, maxLength)})
	}

	return chunks
}

func capText(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	return s[:cutBeforeRune(s, maxLength)]
}

// cutBeforeRune 把前缀切点回退到rune起始，避免切断多字节字符
func cutBeforeRune(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// cutAfterRune 把后缀切点前进到rune起始，避免切断多字节字符
func cutAfterRune(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
