package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"
)

// 模型输出中常见的装饰物：Markdown代码围栏与推理标签
var (
	fenceOpenRe = regexp.MustCompile("```json\\s*")
	fenceRe     = regexp.MustCompile("```\\s*")
	thinkRe     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkingRe  = regexp.MustCompile(`(?s)<thinking>.*?</thinking>`)
)

// truncationStep 渐进截断恢复的步长（字节）
const truncationStep = 100

// cleanDecorations 剥离代码围栏和推理块
func cleanDecorations(raw string) string {
	s := fenceOpenRe.ReplaceAllString(raw, "")
	s = fenceRe.ReplaceAllString(s, "")
	s = thinkRe.ReplaceAllString(s, "")
	s = thinkingRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// FixJSONString 清理模型输出中的围栏和推理块，并截取首个 '{' 到最后一个 '}' 之间的子串
// 找不到完整对象结构时返回空串
func FixJSONString(raw string) string {
	s := cleanDecorations(raw)
	if s == "" {
		return ""
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// balanceBrackets 为开闭不平衡的JSON按嵌套顺序补齐缺失的 '}' 与 ']'
// 扫描时跳过字符串字面量内部的括号字符，遇到不匹配的闭合符直接忽略
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Decode 将不可靠的模型输出恢复为JSON对象，分四个阶段依次尝试：
//  1. 原文直接解析
//  2. 清理围栏/推理块并截取对象子串后解析
//  3. 从首个 '{' 取到串尾并补齐缺失的闭合括号后解析
//  4. 渐进截断：从尾部按固定步长收缩，找到能解析且以 '}' 结尾的最长前缀，作为部分结果接受
//
// 第二个返回值标记结果是否来自阶段4的部分恢复
// 空白输入立即失败，不进入阶段2-4
func Decode(raw string) (map[string]interface{}, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, false, fmt.Errorf("%w: 输入为空", types.ErrUnparsableOutput)
	}

	// 阶段1：直接解析
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &result); err == nil {
		return result, false, nil
	}

	cleaned := cleanDecorations(raw)
	start := strings.Index(cleaned, "{")
	if start == -1 {
		return nil, false, fmt.Errorf("%w: 清理后未找到JSON对象", types.ErrUnparsableOutput)
	}

	// 阶段2：截取对象子串后解析
	fixed := ""
	if end := strings.LastIndex(cleaned, "}"); end > start {
		fixed = cleaned[start : end+1]
		if err := json.Unmarshal([]byte(fixed), &result); err == nil {
			return result, false, nil
		}
	}

	// 阶段3：对截断的尾部补齐闭合括号后解析
	tail := cleaned[start:]
	if err := json.Unmarshal([]byte(balanceBrackets(tail)), &result); err == nil {
		return result, false, nil
	}

	// 阶段4：渐进截断，接受最长可解析前缀
	if fixed == "" {
		fixed = tail
	}
	for i := len(fixed); i > truncationStep; i -= truncationStep {
		candidate := strings.TrimRight(fixed[:i], " \t\r\n")
		if !strings.HasSuffix(candidate, "}") {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			logger.Warn().
				Int("recovered_chars", i).
				Int("total_chars", len(fixed)).
				Msg("JSON部分恢复成功")
			return result, true, nil
		}
	}

	return nil, false, fmt.Errorf("%w: 所有恢复阶段均失败", types.ErrUnparsableOutput)
}

// DecodeArray 将模型输出恢复为JSON数组，用于搜索结果解析
// 与 Decode 的恢复逻辑一致，但针对数组结构截取 '[' 到 ']'
func DecodeArray(raw string) ([]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: 输入为空", types.ErrUnparsableOutput)
	}

	var result []interface{}
	if err := json.Unmarshal([]byte(raw), &result); err == nil {
		return result, nil
	}

	cleaned := cleanDecorations(raw)
	start := strings.Index(cleaned, "[")
	if start == -1 {
		return nil, fmt.Errorf("%w: 清理后未找到JSON数组", types.ErrUnparsableOutput)
	}

	if end := strings.LastIndex(cleaned, "]"); end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &result); err == nil {
			return result, nil
		}
	}

	balanced := balanceBrackets(cleaned[start:])
	if err := json.Unmarshal([]byte(balanced), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnparsableOutput, err)
	}
	return result, nil
}
