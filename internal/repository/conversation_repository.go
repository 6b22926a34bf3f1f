package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"wattson/internal/model"
)

// historyLimit caps the stored conversation at the most recent turns.
const historyLimit = 20

// historyTTL expires idle conversations.
const historyTTL = 7 * 24 * time.Hour

// ConversationRepository stores per-user advice conversation history.
type ConversationRepository interface {
	GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error)
	AppendTurn(ctx context.Context, userID uint, question, answer string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository creates a ConversationRepository backed by
// Redis.
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func conversationKey(userID uint) string {
	return fmt.Sprintf("conversation:%d", userID)
}

// GetHistory returns the stored messages, empty when there are none yet.
func (r *redisConversationRepository) GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, conversationKey(userID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// AppendTurn appends a question/answer pair, trimming to the most recent
// historyLimit messages.
func (r *redisConversationRepository) AppendTurn(ctx context.Context, userID uint, question, answer string) error {
	history, err := r.GetHistory(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	history = append(history,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	jsonData, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, conversationKey(userID), jsonData, historyTTL).Err(); err != nil {
		return fmt.Errorf("set conversation history: %w", err)
	}
	return nil
}
