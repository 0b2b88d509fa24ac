package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"resume-agent-go/internal/constants"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/types"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/nguyenthenguyen/docx"
)

// AllowedExtensions 可接收的简历文件扩展名
var AllowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
}

// docx正文XML中的段落结束与标签
var (
	docxParaRe = regexp.MustCompile(`</w:p>`)
	docxTagRe  = regexp.MustCompile(`<[^>]+>`)
)

// TextExtractor 简历文档文本提取器，PDF走eino解析器，Word走docx库
type TextExtractor struct {
	pdfParser *pdf.PDFParser
	timeout   time.Duration
}

// NewTextExtractor 初始化文本提取器
// PDF解析配置为不按页切分，整个文档作为单个连续字符串返回
func NewTextExtractor(ctx context.Context) (*TextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}
	return &TextExtractor{
		pdfParser: p,
		timeout:   30 * time.Second,
	}, nil
}

// Allowed 判断文件名的扩展名是否可接收
func (t *TextExtractor) Allowed(filename string) bool {
	return AllowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Extract 从文档字节流中提取纯文本
// 提取结果短于最小可用长度时返回 ErrExtractionFailed，调用方不重试
func (t *TextExtractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var text string
	var err error
	switch ext {
	case ".pdf":
		text, err = t.extractPDF(ctx, filename, data)
	case ".docx", ".doc":
		text, err = t.extractDocx(data)
	default:
		return "", fmt.Errorf("%w: 不支持的文件类型 %s", types.ErrExtractionFailed, ext)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrExtractionFailed, err)
	}

	text = strings.TrimSpace(text)
	if len(text) < constants.MinViableTextLength {
		return "", fmt.Errorf("%w: 提取文本仅 %d 字符", types.ErrExtractionFailed, len(text))
	}

	logger.Debug().
		Str("filename", filename).
		Int("text_length", len(text)).
		Msg("文档文本提取完成")
	return text, nil
}

// extractPDF 用eino PDF解析器提取全文
func (t *TextExtractor) extractPDF(ctx context.Context, uri string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	docs, err := t.pdfParser.Parse(ctx, bytes.NewReader(data), einoParser.WithURI(uri))
	if err != nil {
		return "", fmt.Errorf("PDF解析失败: %w", err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("PDF解析无结果: %s", uri)
	}

	var sb strings.Builder
	for i, doc := range docs {
		sb.WriteString(doc.Content)
		if i < len(docs)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String(), nil
}

// extractDocx 从Word文档提取正文，段落换行，其余XML标签剥除
func (t *TextExtractor) extractDocx(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("Word文档解析失败: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	content = docxParaRe.ReplaceAllString(content, "\n")
	content = docxTagRe.ReplaceAllString(content, "")
	return content, nil
}
