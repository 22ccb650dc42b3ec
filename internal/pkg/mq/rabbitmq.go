// internal/pkg/mq/rabbitmq.go
package mq

import (
	"context"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// AMQPHeaderCarrier 让 amqp.Table 满足 propagation.TextMapCarrier
type AMQPHeaderCarrier amqp.Table

func (c AMQPHeaderCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c AMQPHeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c AMQPHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

var _ propagation.TextMapCarrier = AMQPHeaderCarrier(nil)

// RabbitMQ 持有一条连接和一个 channel，并负责声明交换机与队列
type RabbitMQ struct {
	Conn     *amqp.Connection
	Channel  *amqp.Channel
	Exchange string
	Queue    string
}

// NewRabbitMQ 建立连接并声明 direct 交换机、持久化队列及其绑定
func NewRabbitMQ(url, exchange, queue string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open rabbitmq channel")
	}

	r := &RabbitMQ{Conn: conn, Channel: ch, Exchange: exchange, Queue: queue}
	if err := r.setup(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) setup() error {
	if err := r.Channel.ExchangeDeclare(
		r.Exchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return errors.Wrapf(err, "declare exchange %s", r.Exchange)
	}
	if _, err := r.Channel.QueueDeclare(
		r.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return errors.Wrapf(err, "declare queue %s", r.Queue)
	}
	if err := r.Channel.QueueBind(r.Queue, r.Queue, r.Exchange, false, nil); err != nil {
		return errors.Wrapf(err, "bind queue %s", r.Queue)
	}
	return nil
}

// Publish 以持久化消息发送到交换机，routing key 为队列名
func (r *RabbitMQ) Publish(ctx context.Context, messageID string, body []byte) error {
	ctx, span := otel.Tracer("mq.rabbitmq").Start(ctx, "rabbitmq.publish "+r.Exchange,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", r.Exchange),
			attribute.String("messaging.message.id", messageID),
		),
	)
	defer span.End()

	headers := amqp.Table{}
	otel.GetTextMapPropagator().Inject(ctx, AMQPHeaderCarrier(headers))

	err := r.Channel.PublishWithContext(ctx, r.Exchange, r.Queue,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Headers:      headers,
			Body:         body,
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrap(err, "publish to rabbitmq")
	}
	return nil
}

// Consume 开始手动 ack 模式的消费
func (r *RabbitMQ) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	if err := r.Channel.Qos(10, 0, false); err != nil {
		return nil, errors.Wrap(err, "set qos")
	}
	deliveries, err := r.Channel.Consume(r.Queue, consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "consume queue %s", r.Queue)
	}
	return deliveries, nil
}

// ExtractAMQPTraceContext 从消息头恢复上游链路上下文
func ExtractAMQPTraceContext(ctx context.Context, headers amqp.Table) context.Context {
	if headers == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, AMQPHeaderCarrier(headers))
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		_ = r.Channel.Close()
	}
	if r.Conn != nil {
		_ = r.Conn.Close()
	}
}
