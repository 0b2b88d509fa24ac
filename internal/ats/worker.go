package ats

import (
	"context"
	"encoding/json"
	"time"

	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/storage/models"

	"github.com/rs/zerolog/log"
)

// syncTimeout 单条同步任务的总时限
const syncTimeout = 2 * time.Minute

// ResumeStore 同步任务需要的持久化操作
type ResumeStore interface {
	GetByID(ctx context.Context, resumeID string) (*models.Resume, error)
	UpdateATSFields(ctx context.Context, resumeID, atsUserID, atsResumeURL string) error
}

// Worker 消费ATS同步队列，把画像推送到外部平台并回填同步结果
// 同步整体尽力而为：失败只记日志并确认消息，不无限重投
type Worker struct {
	client *Client
	store  ResumeStore
	mq     *storage.RabbitMQ

	queue    string
	prefetch int
}

// NewWorker 创建同步消费者
func NewWorker(client *Client, store ResumeStore, mq *storage.RabbitMQ, queue string, prefetch int) *Worker {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Worker{client: client, store: store, mq: mq, queue: queue, prefetch: prefetch}
}

// Start 启动消费协程，返回的stop通道关闭后停止消费
func (w *Worker) Start() (chan struct{}, error) {
	return w.mq.StartConsumer(w.queue, w.prefetch, w.handle)
}

func (w *Worker) handle(body []byte) bool {
	var event storage.ATSSyncEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error().Err(err).Msg("ATS同步消息格式不合法，丢弃")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if err := w.syncOne(ctx, event.ResumeID); err != nil {
		// 外部平台不稳定属常态，吞掉错误避免消息风暴
		log.Warn().Err(err).Str("resume_id", event.ResumeID).Msg("ATS同步失败")
	}
	return true
}

func (w *Worker) syncOne(ctx context.Context, resumeID string) error {
	row, err := w.store.GetByID(ctx, resumeID)
	if err != nil {
		return err
	}

	profile, err := row.ToProfile()
	if err != nil {
		return err
	}

	outcome, err := w.client.Sync(ctx, profile)
	if err != nil {
		return err
	}

	if err := w.store.UpdateATSFields(ctx, resumeID, outcome.UserID, outcome.ResumeURL); err != nil {
		return err
	}

	log.Info().
		Str("resume_id", resumeID).
		Str("ats_user_id", outcome.UserID).
		Msg("ATS同步完成")
	return nil
}
