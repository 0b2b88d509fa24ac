package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200

	// MaxSQLLength SQL语句最大长度
	MaxSQLLength = 500

	// MaxResumeLength 简历内容最大长度
	MaxResumeLength = 150

	// MaxPromptLength 提示词内容最大长度
	MaxPromptLength = 200
)

// maskPIILookup 需要掩码处理的属性名关键字
var maskPIILookup = map[string]bool{
	"email":    true,
	"phone":    true,
	"name":     true,
	"linkedin": true,
	"address":  true,
	"token":    true,
	"secret":   true,
	"姓名":       true,
	"地址":       true,
}

// SafeAttributeValue 确保span属性值安全：敏感字段掩码，超长内容截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for keyword := range maskPIILookup {
		if strings.Contains(lowerName, keyword) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息进行掩码处理
// 短值保留首尾各1个字符，长值保留首尾各2个字符
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)

	if length <= 1 {
		return "*"
	}
	if length <= 4 {
		if length == 2 {
			return string(runes[0:1]) + "*"
		}
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}

	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 截断字符串，保留首尾、中间以省略号连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeResumeContent 安全处理简历原文内容
func SafeResumeContent(content string) string {
	return TruncateString(content, MaxResumeLength)
}

// SafePrompt 安全处理提示词内容
func SafePrompt(prompt string) string {
	return TruncateString(prompt, MaxPromptLength)
}
