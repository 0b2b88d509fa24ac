package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"resume-agent-go/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// ResumeParsedEvent 解析成功后广播的事件，供下游订阅
type ResumeParsedEvent struct {
	ResumeID          string `json:"resume_id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	CompletenessScore int    `json:"completeness_score"`
	OriginalFilename  string `json:"original_filename"`
	ParsedAt          string `json:"parsed_at"`
}

// ATSSyncEvent 投递给ATS同步队列的任务消息
type ATSSyncEvent struct {
	ResumeID string `json:"resume_id"`
	Attempt  int    `json:"attempt"`
}

// RabbitMQ 消息队列适配器，管理连接、通道池与拓扑声明
type RabbitMQ struct {
	conn         *amqp.Connection
	channelPool  sync.Pool
	publishMutex sync.Mutex
	cfg          *config.RabbitMQConfig
}

// NewRabbitMQ 创建RabbitMQ客户端并声明交换机与队列拓扑
func NewRabbitMQ(cfg *config.RabbitMQConfig) (*RabbitMQ, error) {
	if cfg == nil {
		return nil, fmt.Errorf("RabbitMQ配置不能为空")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("RabbitMQ URL配置不能为空")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("无法连接到RabbitMQ服务器 (%s): %w", cfg.URL, err)
	}

	mq := &RabbitMQ{conn: conn, cfg: cfg}
	mq.channelPool = sync.Pool{
		New: func() interface{} {
			ch, poolErr := conn.Channel()
			if poolErr != nil {
				log.Error().Err(poolErr).Msg("创建RabbitMQ通道失败")
				return nil
			}
			return ch
		},
	}

	if err := mq.setupTopology(); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info().Str("url", cfg.URL).Msg("成功连接到RabbitMQ服务器")
	return mq, nil
}

// setupTopology 声明事件交换机、ATS同步队列及其绑定
func (r *RabbitMQ) setupTopology() error {
	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	err := ch.ExchangeDeclare(
		r.cfg.ResumeEventsExchange, // exchange名称
		"topic",                    // exchange类型
		true,                       // 持久化
		false,                      // 自动删除
		false,                      // 内部专用
		false,                      // 非阻塞
		nil,                        // 参数
	)
	if err != nil {
		return fmt.Errorf("声明exchange失败: %w", err)
	}

	_, err = ch.QueueDeclare(
		r.cfg.ATSSyncQueue, // 队列名称
		true,               // 持久化
		false,              // 自动删除
		false,              // 独占
		false,              // 非阻塞
		nil,                // 参数
	)
	if err != nil {
		return fmt.Errorf("声明队列失败: %w", err)
	}

	err = ch.QueueBind(
		r.cfg.ATSSyncQueue,
		r.cfg.ATSSyncRoutingKey,
		r.cfg.ResumeEventsExchange,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("绑定队列到exchange失败: %w", err)
	}
	return nil
}

func (r *RabbitMQ) getChannel() *amqp.Channel {
	ch := r.channelPool.Get()
	if ch == nil {
		newCh, err := r.conn.Channel()
		if err != nil {
			log.Error().Err(err).Msg("创建新RabbitMQ通道失败")
			return nil
		}
		return newCh
	}
	return ch.(*amqp.Channel)
}

func (r *RabbitMQ) putChannel(ch *amqp.Channel) {
	if ch != nil {
		r.channelPool.Put(ch)
	}
}

// Close 关闭连接
func (r *RabbitMQ) Close() error {
	return r.conn.Close()
}

// PublishParsed 广播解析成功事件
func (r *RabbitMQ) PublishParsed(ctx context.Context, event *ResumeParsedEvent) error {
	return r.publishJSON(ctx, r.cfg.ParsedRoutingKey, event)
}

// PublishATSSync 投递ATS同步任务
func (r *RabbitMQ) PublishATSSync(ctx context.Context, event *ATSSyncEvent) error {
	return r.publishJSON(ctx, r.cfg.ATSSyncRoutingKey, event)
}

// publishJSON 把消息序列化为JSON并以持久化投递模式发布到事件交换机
func (r *RabbitMQ) publishJSON(ctx context.Context, routingKey string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}

	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	ch := r.getChannel()
	if ch == nil {
		return fmt.Errorf("无法获取RabbitMQ通道")
	}
	defer r.putChannel(ch)

	return ch.PublishWithContext(
		ctx,
		r.cfg.ResumeEventsExchange,
		routingKey,
		false, // 强制
		false, // 立即
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

// StartConsumer 启动消费者协程，handler返回true时Ack，false时Nack并重新入队
// 返回的stop通道关闭后消费者退出
func (r *RabbitMQ) StartConsumer(queueName string, prefetchCount int, handler func([]byte) bool) (chan struct{}, error) {
	stopCh := make(chan struct{})

	ch := r.getChannel()
	if ch == nil {
		return nil, fmt.Errorf("无法获取RabbitMQ通道")
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		r.putChannel(ch)
		return nil, fmt.Errorf("设置QoS失败: %w", err)
	}

	deliveries, err := ch.Consume(
		queueName, // 队列
		"",        // 消费者标签，留空由server生成唯一标签
		false,     // 自动确认
		false,     // 独占
		false,     // 非本地
		false,     // 非阻塞
		nil,       // 参数
	)
	if err != nil {
		r.putChannel(ch)
		return nil, fmt.Errorf("注册消费者失败: %w", err)
	}

	go func() {
		defer r.putChannel(ch)
		defer log.Info().Str("queue", queueName).Msg("RabbitMQ消费者已停止")

		log.Info().Str("queue", queueName).Int("prefetch", prefetchCount).Msg("RabbitMQ消费者已启动")

		for {
			select {
			case <-stopCh:
				return
			case delivery, ok := <-deliveries:
				if !ok {
					log.Warn().Msg("RabbitMQ通道已关闭")
					return
				}

				if handler(delivery.Body) {
					if err := delivery.Ack(false); err != nil {
						log.Error().Err(err).Msg("确认消息失败")
					}
				} else {
					// 处理失败，拒绝并重新入队
					if err := delivery.Nack(false, true); err != nil {
						log.Error().Err(err).Msg("拒绝消息失败")
					}
				}
			}
		}
	}()

	return stopCh, nil
}
