package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// 兜底抽取所用的正则，全部预编译
var (
	emailRe    = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phoneRe    = regexp.MustCompile(`[+(]?[1-9][0-9 .\-()]{8,}[0-9]`)
	linkedinRe = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com/in/[\w-]+`)
	yearsRe    = regexp.MustCompile(`(\d+)\+?\s*(?:years?|yrs?)`)
	yearRe     = regexp.MustCompile(`\d{4}`)
	digitRe    = regexp.MustCompile(`\d`)
)

// TextNormalizer 基于正则的兜底抽取层
// 模型漏抽标量字段时从原文回填，另负责数组成员的字符串归一
type TextNormalizer struct{}

// NewTextNormalizer 创建兜底抽取器
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{}
}

// ExtractEmail 从原文中抽取首个邮箱地址，未找到返回空串
func (n *TextNormalizer) ExtractEmail(text string) string {
	return emailRe.FindString(text)
}

// ExtractPhone 从原文中抽取首个电话号码，只保留末尾最多12位数字
func (n *TextNormalizer) ExtractPhone(text string) string {
	match := phoneRe.FindString(text)
	if match == "" {
		return ""
	}
	digits := strings.Join(digitRe.FindAllString(match, -1), "")
	if len(digits) > 12 {
		digits = digits[len(digits)-12:]
	}
	return digits
}

// ExtractLinkedIn 从原文中抽取首个LinkedIn个人主页链接
func (n *TextNormalizer) ExtractLinkedIn(text string) string {
	return linkedinRe.FindString(text)
}

// ExtractYearsExperience 从原文中抽取工作年限
// 取所有 "N years/yrs" 匹配中的最大值，未找到返回空串
func (n *TextNormalizer) ExtractYearsExperience(text string) string {
	matches := yearsRe.FindAllStringSubmatch(strings.ToLower(text), -1)
	maxYears := 0
	found := false
	for _, m := range matches {
		if v, err := strconv.Atoi(m[1]); err == nil {
			found = true
			if v > maxYears {
				maxYears = v
			}
		}
	}
	if !found {
		return ""
	}
	return strconv.Itoa(maxYears)
}

// YearsFromRanges 年限的次级兜底：累加各段起止年份区间的跨度
// 入参为 "起始日期 结束日期" 形式的区间串，用于原文中没有
// "N years" 字样但工作经历带年份区间的简历
func (n *TextNormalizer) YearsFromRanges(ranges []string) string {
	total := 0
	for _, r := range ranges {
		years := yearRe.FindAllString(r, -1)
		if len(years) < 2 {
			continue
		}
		first, err1 := strconv.Atoi(years[0])
		last, err2 := strconv.Atoi(years[len(years)-1])
		if err1 != nil || err2 != nil {
			continue
		}
		if span := last - first; span > 0 {
			total += span
		}
	}
	if total <= 0 {
		return ""
	}
	return strconv.Itoa(total)
}

// CleanStringArray 把模型输出的异构数组归一为去重后的字符串切片
// 对象成员按 Title/title 键取值，其余成员直接字符串化；
// 去重大小写不敏感，保留首次出现的写法和顺序
func (n *TextNormalizer) CleanStringArray(items []interface{}) []string {
	if len(items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool, len(items))
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		switch v := item.(type) {
		case string:
			s = v
		case map[string]interface{}:
			if title, ok := v["Title"].(string); ok {
				s = title
			} else if title, ok := v["title"].(string); ok {
				s = title
			} else {
				s = fmt.Sprintf("%v", v)
			}
		default:
			s = fmt.Sprintf("%v", v)
		}

		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, s)
	}
	return cleaned
}

// DedupStrings 大小写不敏感去重，保留首次出现的写法
func (n *TextNormalizer) DedupStrings(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
