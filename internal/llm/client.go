package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var llmTracer = otel.Tracer("resume-agent-go/llm")

const (
	// chatCompletionsPath 网关的聊天补全路径（OpenAI兼容）
	chatCompletionsPath = "/api/chat/completions"

	// transientUpstreamMarker 网关500响应体中标识上游模型暂不可用的特征串
	transientUpstreamMarker = "Ollama: 500"
)

// Client 模型网关客户端
// 按序尝试候选模型配置，单个配置失败只记录原因并推进，全部耗尽才报错
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	// 瞬时错误后的退避间隔，测试中可置零
	transientBackoff time.Duration
}

// Option 客户端可选配置
type Option func(*Client)

// WithHTTPClient 替换底层HTTP客户端（测试注入用）
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTransientBackoff 设置瞬时错误后的退避间隔
func WithTransientBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.transientBackoff = d
	}
}

// NewClient 创建模型网关客户端，timeout为单次调用的整体超时
func NewClient(baseURL, token string, timeout time.Duration, options ...Option) *Client {
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		token:            token,
		httpClient:       &http.Client{Timeout: timeout},
		transientBackoff: time.Second,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// chatMessage OpenAI风格的对话消息
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest 网关请求体
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// chatResponse 网关响应体，需兼容两种形态：
// OpenAI风格的 choices[0].message.content 以及备用网关风格的顶层 response 字段
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Response string `json:"response"`
}

// Invoke 依次尝试候选模型配置，返回首个成功的非空补全
// 超时、非2xx、空补全、上游瞬时错误均不上抛，仅记录原因后推进到下一配置；
// 全部耗尽时返回 AllModelsExhaustedError，按尝试顺序附带各配置的失败原因
func (c *Client) Invoke(ctx context.Context, prompt, systemInstruction string, configs []types.ModelConfig) (string, error) {
	ctx, span := llmTracer.Start(ctx, "llm.Invoke", trace.WithAttributes(
		attribute.Int("llm.candidate_count", len(configs)),
		attribute.String("llm.prompt_preview", tracing.SafePrompt(prompt)),
	))
	defer span.End()

	if len(configs) == 0 {
		err := &types.AllModelsExhaustedError{Reasons: []string{"候选模型列表为空"}}
		tracing.RecordError(span, err, tracing.ErrorTypeModel)
		return "", err
	}

	var reasons []string
	for idx, cfg := range configs {
		logger.Debug().
			Str("model", cfg.Model).
			Int("attempt", idx+1).
			Int("total", len(configs)).
			Msg("调用模型网关")

		content, transient, err := c.callOnce(ctx, prompt, systemInstruction, cfg)
		if err == nil {
			span.SetAttributes(attribute.String("llm.model_used", cfg.Model))
			return content, nil
		}

		reasons = append(reasons, (&types.ModelCallError{Model: cfg.Model, Reason: err.Error()}).Error())
		logger.Warn().
			Str("model", cfg.Model).
			Err(err).
			Msg("模型调用失败，推进到下一候选")

		if transient && c.transientBackoff > 0 {
			select {
			case <-time.After(c.transientBackoff):
			case <-ctx.Done():
				reasons = append(reasons, fmt.Sprintf("上下文取消: %v", ctx.Err()))
				exhausted := &types.AllModelsExhaustedError{Reasons: reasons}
				tracing.RecordError(span, exhausted, tracing.ErrorTypeModel)
				return "", exhausted
			}
		}
	}

	exhausted := &types.AllModelsExhaustedError{Reasons: reasons}
	tracing.RecordError(span, exhausted, tracing.ErrorTypeModel)
	return "", exhausted
}

// callOnce 对单个模型配置发起一次网关调用
// 第二个返回值标记该失败是否为可短暂退避的瞬时错误
func (c *Client) callOnce(ctx context.Context, prompt, systemInstruction string, cfg types.ModelConfig) (string, bool, error) {
	payload := chatRequest{
		Model: cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
		Stream:      false,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", false, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", false, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode == http.StatusInternalServerError {
		detail := string(bodyBytes)
		if strings.Contains(detail, transientUpstreamMarker) {
			return "", true, fmt.Errorf("上游模型暂不可用: %s", tracing.TruncateString(detail, 100))
		}
		return "", false, fmt.Errorf("网关返回500: %s", tracing.TruncateString(detail, 100))
	}
	if httpResp.StatusCode/100 != 2 {
		return "", false, fmt.Errorf("网关返回状态 %d", httpResp.StatusCode)
	}

	var resp chatResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return "", false, fmt.Errorf("解析网关响应失败: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	} else if resp.Response != "" {
		content = resp.Response
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", false, types.ErrEmptyCompletion
	}

	return content, false, nil
}
