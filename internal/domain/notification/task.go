package notification

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeDeliverNotification is the asynq task type for pushing a stored notification.
const TaskTypeDeliverNotification = "notification:deliver"

// DeliverNotificationPayload is the serialized payload for a deliver task.
type DeliverNotificationPayload struct {
	NotificationID ID `json:"notification_id"`
}

// NewDeliverNotificationTask creates a new asynq task for delivering a notification.
func NewDeliverNotificationTask(id ID) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliverNotificationPayload{NotificationID: id})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeDeliverNotification, payload), nil
}

// ParseDeliverNotificationPayload deserializes the task payload.
func ParseDeliverNotificationPayload(data []byte) (*DeliverNotificationPayload, error) {
	var p DeliverNotificationPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	if p.NotificationID == "" {
		return nil, fmt.Errorf("task payload missing notification_id")
	}
	return &p, nil
}
