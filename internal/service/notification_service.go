package service

import (
	"context"
	"encoding/json"
	"fmt"
	"learnhub_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NotificationMessage 写入通知队列的消息，由独立的发送服务消费
type NotificationMessage struct {
	Type        string    `json:"type"`
	UserID      uint      `json:"userId"`
	CourseID    uint      `json:"courseId"`
	CourseTitle string    `json:"courseTitle"`
	CreatedAt   time.Time `json:"createdAt"`
}

const NotificationTypeEnrollment = "enrollment.created"

// RedisNotifier 把通知推入 Redis 列表
type RedisNotifier struct {
	Client *redis.Client
	Queue  string
}

func NewRedisNotifier(client *redis.Client, queue string) *RedisNotifier {
	return &RedisNotifier{Client: client, Queue: queue}
}

func (n *RedisNotifier) NotifyEnrollment(ctx context.Context, userID uint, notification EnrollmentNotification) error {
	payload, err := json.Marshal(NotificationMessage{
		Type:        NotificationTypeEnrollment,
		UserID:      userID,
		CourseID:    notification.CourseID,
		CourseTitle: notification.CourseTitle,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return err
	}
	if err := n.Client.LPush(ctx, n.Queue, payload).Err(); err != nil {
		return fmt.Errorf("push notification to %s: %w", n.Queue, err)
	}
	return nil
}

// LogNotifier 未启用 Redis 时只记录日志
type LogNotifier struct{}

func (LogNotifier) NotifyEnrollment(ctx context.Context, userID uint, notification EnrollmentNotification) error {
	logger.Log.Info("Enrollment notification",
		zap.Uint("userId", userID),
		zap.Uint("courseId", notification.CourseID),
		zap.String("courseTitle", notification.CourseTitle))
	return nil
}
