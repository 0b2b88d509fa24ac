package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/types"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// profileDocRawTextLimit 画像文档末尾附带的简历原文上限（字符）
const profileDocRawTextLimit = 3000

// MinIO 对象存储适配器，保存原始简历文件与可检索画像文档
type MinIO struct {
	client          *minio.Client
	cfg             *config.MinIOConfig
	originalsBucket string
	docsBucket      string
}

// NewMinIO 创建MinIO客户端并确保存储桶存在
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	originalsBucket := cfg.OriginalsBucket
	if originalsBucket == "" {
		originalsBucket = "resume-originals"
	}
	docsBucket := cfg.DocsBucket
	if docsBucket == "" {
		docsBucket = "resume-docs"
	}

	m := &MinIO{
		client:          client,
		cfg:             cfg,
		originalsBucket: originalsBucket,
		docsBucket:      docsBucket,
	}

	if err := m.ensureBucketExists(originalsBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保原始简历存储桶 %s 存在失败: %w", originalsBucket, err)
	}
	if err := m.ensureBucketExists(docsBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保画像文档存储桶 %s 存在失败: %w", docsBucket, err)
	}

	log.Info().Str("endpoint", cfg.Endpoint).
		Str("originals_bucket", originalsBucket).
		Str("docs_bucket", docsBucket).
		Msg("MinIO客户端初始化完成")
	return m, nil
}

// ensureBucketExists 确保存储桶存在，不存在则创建
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		log.Info().Str("bucket", bucketName).Msg("存储桶已创建")
	}
	return nil
}

// UploadOriginal 上传原始简历文件，返回 bucket/object 形式的存储路径
func (m *MinIO) UploadOriginal(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, m.originalsBucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传原始简历 %s 失败: %w", objectName, err)
	}
	return fmt.Sprintf("%s/%s", m.originalsBucket, objectName), nil
}

// UploadProfileDoc 把画像渲染成纯文本文档写入文档桶，返回存储路径
// 文档按固定字段行排布，末尾附简历原文片段，便于外部全文检索
func (m *MinIO) UploadProfileDoc(ctx context.Context, objectName string, profile *types.CandidateProfile, rawText string) (string, error) {
	content := RenderProfileDoc(profile, rawText)
	_, err := m.client.PutObject(ctx, m.docsBucket, objectName,
		strings.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("上传画像文档 %s 失败: %w", objectName, err)
	}
	return fmt.Sprintf("%s/%s", m.docsBucket, objectName), nil
}

// DownloadOriginal 取回原始简历文件
func (m *MinIO) DownloadOriginal(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.originalsBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("下载原始简历 %s 失败: %w", objectName, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("读取原始简历 %s 失败: %w", objectName, err)
	}
	return buf.Bytes(), nil
}

// RenderProfileDoc 渲染可检索画像文档的文本内容
func RenderProfileDoc(p *types.CandidateProfile, rawText string) string {
	if len(rawText) > profileDocRawTextLimit {
		rawText = rawText[:profileDocRawTextLimit]
	}

	var b strings.Builder
	writeField := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			value = "N/A"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}

	name := p.Name
	if strings.TrimSpace(name) == "" {
		name = "Unknown"
	}
	fmt.Fprintf(&b, "CANDIDATE: %s\n", name)
	writeField("EMAIL", p.Email)
	writeField("PHONE", p.Phone)
	writeField("LOCATION", p.Location)
	writeField("CURRENT ROLE", p.CurrentRole)
	writeField("CURRENT COMPANY", p.CurrentCompany)
	writeField("EXPERIENCE", yearsLabel(p.TotalYearsExperience))
	writeField("ERP SYSTEMS", strings.Join(p.ERPSystems, ", "))
	writeField("ERP MODULES", strings.Join(p.ERPModules, ", "))
	writeField("TECHNICAL SKILLS", strings.Join(p.TechnicalSkills, ", "))
	writeField("CERTIFICATIONS", strings.Join(p.Certifications, ", "))
	fmt.Fprintf(&b, "SUMMARY:\n%s\n", p.Summary)
	fmt.Fprintf(&b, "FULL RESUME TEXT:\n%s\n", rawText)
	return b.String()
}

func yearsLabel(years string) string {
	if strings.TrimSpace(years) == "" {
		return ""
	}
	return years + " years"
}
