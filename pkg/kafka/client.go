// Package kafka provides the ingestion task queue. A single consumer group
// member drains the topic, which serializes index writes: the store has a
// single-writer durability model and relies on the queue for it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"wattson/internal/config"
	"wattson/pkg/database"
	"wattson/pkg/log"
	"wattson/pkg/tasks"
)

// maxAttempts bounds redelivery of a failing ingestion task before its
// offset is committed anyway.
const maxAttempts = 3

// TaskProcessor handles one ingestion task. Decouples the consumer from the
// concrete pipeline.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestionTask) error
}

var producer *kafka.Writer

// InitProducer initializes the Kafka producer.
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka producer initialized successfully")
}

// ProduceIngestionTask enqueues one ingestion task.
func ProduceIngestionTask(task tasks.IngestionTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return producer.WriteMessages(context.Background(), kafka.Message{Value: taskBytes})
}

// StartConsumer runs the ingestion consumer loop until the context is
// canceled. Failed tasks are retried via redelivery; after maxAttempts
// failures (tracked in Redis) the offset is committed to unblock the queue.
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "wattson-ingestion",
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})

	log.Infof("Kafka consumer started, listening on topic '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("failed to fetch message from Kafka", err)
			break
		}

		var task tasks.IngestionTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("unparseable Kafka message: %v, value: %s", err, string(m.Value))
			// Malformed payload, commit so it does not block the queue.
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("failed to commit malformed message: %v", err)
			}
			continue
		}

		log.Infof("processing ingestion task: doc=%s size=%d", task.DocName, task.Size)
		if err := processor.Process(ctx, task); err != nil {
			log.Errorf("ingestion task failed: doc=%s error: %v", task.DocName, err)
			attemptsKey := fmt.Sprintf("ingest:attempts:%s", task.DocName)
			attempts, incErr := database.RDB.Incr(ctx, attemptsKey).Result()
			if incErr != nil {
				// Redis unavailable: leave the offset so Kafka redelivers.
				continue
			}
			_ = database.RDB.Expire(ctx, attemptsKey, 24*time.Hour).Err()
			if attempts >= maxAttempts {
				log.Errorf("ingestion task failed %d times, giving up: doc=%s", attempts, task.DocName)
				if err := r.CommitMessages(ctx, m); err != nil {
					log.Errorf("failed to commit Kafka offset: %v", err)
				}
			}
			continue
		}

		log.Infof("ingestion task succeeded: doc=%s", task.DocName)
		_ = database.RDB.Del(ctx, fmt.Sprintf("ingest:attempts:%s", task.DocName)).Err()
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("failed to commit Kafka offset: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("failed to close Kafka consumer: %v", err)
	}
}
