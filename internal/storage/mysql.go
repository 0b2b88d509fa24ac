package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/storage/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("resume-agent-go/storage/mysql")

// gormSpanKey GORM上下文中暂存span的键
type gormSpanKey struct{}

// gormTracingPlugin 为GORM CRUD操作注册OpenTelemetry追踪回调
type gormTracingPlugin struct {
	dbName string
}

func (p *gormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 为增删改查各阶段注册前后回调
func (p *gormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	return nil
}

func (p *gormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		newCtx, span := mysqlTracer.Start(ctx, fmt.Sprintf("%s %s", operation, tableName),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

func (p *gormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 记录不存在属于正常业务分支，不算错误
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			span.RecordError(db.Error)
			span.SetStatus(codes.Error, db.Error.Error())
		}
	}
}

// MySQL 画像存储，基于GORM
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel gormlogger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = gormlogger.Silent
	case 2:
		logLevel = gormlogger.Error
	case 3:
		logLevel = gormlogger.Warn
	default:
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := db.Use(&gormTracingPlugin{dbName: cfg.Database}); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := db.AutoMigrate(&models.Resume{}); err != nil {
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return &MySQL{db: db, cfg: cfg}, nil
}

// DB 返回GORM连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveResume 持久化一份画像行
func (m *MySQL) SaveResume(ctx context.Context, resume *models.Resume) error {
	if err := m.db.WithContext(ctx).Create(resume).Error; err != nil {
		return fmt.Errorf("写入简历记录失败: %w", err)
	}
	return nil
}

// UpdateATSFields 回填外部ATS同步结果
func (m *MySQL) UpdateATSFields(ctx context.Context, resumeID, atsUserID, atsResumeURL string) error {
	err := m.db.WithContext(ctx).Model(&models.Resume{}).
		Where("resume_id = ?", resumeID).
		Updates(map[string]interface{}{
			"ats_user_id":    atsUserID,
			"ats_resume_url": atsResumeURL,
		}).Error
	if err != nil {
		return fmt.Errorf("回填ATS字段失败: %w", err)
	}
	return nil
}

// GetByID 按主键取画像行
func (m *MySQL) GetByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	var resume models.Resume
	err := m.db.WithContext(ctx).First(&resume, "resume_id = ?", resumeID).Error
	if err != nil {
		return nil, err
	}
	return &resume, nil
}

// GetByRawTextMD5 按原文MD5查重复提交，未找到返回(nil, nil)
func (m *MySQL) GetByRawTextMD5(ctx context.Context, md5sum string) (*models.Resume, error) {
	var resume models.Resume
	err := m.db.WithContext(ctx).First(&resume, "raw_text_md5 = ?", md5sum).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("按MD5查询失败: %w", err)
	}
	return &resume, nil
}

// CountResumes 统计已存画像总数
func (m *MySQL) CountResumes(ctx context.Context) (int64, error) {
	var count int64
	if err := m.db.WithContext(ctx).Model(&models.Resume{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计简历总数失败: %w", err)
	}
	return count, nil
}

// ListRecent 按创建时间倒序取最近的画像行
func (m *MySQL) ListRecent(ctx context.Context, limit int) ([]models.Resume, error) {
	var resumes []models.Resume
	err := m.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&resumes).Error
	if err != nil {
		return nil, fmt.Errorf("查询简历列表失败: %w", err)
	}
	return resumes, nil
}

// KeywordSearch 存储侧朴素关键词过滤，大小写不敏感LIKE，命中任一检索列即返回
// 作为模型排序不可用时的兜底检索
func (m *MySQL) KeywordSearch(ctx context.Context, query string, limit int) ([]models.Resume, error) {
	pattern := "%" + query + "%"
	var resumes []models.Resume
	err := m.db.WithContext(ctx).
		Where(
			m.db.Where("name LIKE ?", pattern).
				Or("current_role LIKE ?", pattern).
				Or("erp_systems_text LIKE ?", pattern).
				Or("erp_modules_text LIKE ?", pattern).
				Or("skills_text LIKE ?", pattern).
				Or("location LIKE ?", pattern).
				Or("summary LIKE ?", pattern).
				Or("current_company LIKE ?", pattern),
		).
		Order("created_at DESC").
		Limit(limit).
		Find(&resumes).Error
	if err != nil {
		return nil, fmt.Errorf("关键词检索失败: %w", err)
	}
	return resumes, nil
}
