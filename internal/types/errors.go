package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExtractionFailed 文档文本不可用（过短或无法提取），直接上抛，核心内不重试
	ErrExtractionFailed = errors.New("文档文本提取失败或内容过短")

	// ErrEmptyCompletion 模型返回了空补全，按单次调用失败处理
	ErrEmptyCompletion = errors.New("模型返回空内容")

	// ErrUnparsableOutput 所有JSON恢复阶段均失败
	ErrUnparsableOutput = errors.New("模型输出无法解析为JSON")
)

// ModelCallError 单次模型调用失败，仅在本地记录后推进到下一个配置，不单独上抛
type ModelCallError struct {
	Model  string
	Reason string
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("模型 %s 调用失败: %s", e.Model, e.Reason)
}

// AllModelsExhaustedError 候选模型列表全部耗尽
// Reasons 按尝试顺序记录每个配置的失败原因
type AllModelsExhaustedError struct {
	Reasons []string
}

func (e *AllModelsExhaustedError) Error() string {
	return fmt.Sprintf("全部候选模型均失败: [%s]", strings.Join(e.Reasons, "; "))
}

// LastReason 返回最后一次失败的原因，用于终止错误的归因
func (e *AllModelsExhaustedError) LastReason() string {
	if len(e.Reasons) == 0 {
		return ""
	}
	return e.Reasons[len(e.Reasons)-1]
}
