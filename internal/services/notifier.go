package services

import (
	"context"

	"github.com/yukikurage/task-chat-api/internal/constants"
	"github.com/yukikurage/task-chat-api/internal/metrics"
	"github.com/yukikurage/task-chat-api/internal/models"
	"github.com/yukikurage/task-chat-api/internal/notify"
	"go.uber.org/zap"
)

// NewMessageEvent is the payload of a task chat notification.
type NewMessageEvent struct {
	ChannelID uint64 `json:"channel_id"`
}

// TaskChatNotifier tells every member of a task chat channel that a new
// message arrived. The author is notified as well.
type TaskChatNotifier struct {
	bus notify.Publisher
	log *zap.Logger
}

func NewTaskChatNotifier(bus notify.Publisher, log *zap.Logger) *TaskChatNotifier {
	return &TaskChatNotifier{bus: bus, log: log}
}

// Hook adapts the notifier to ChannelService.OnMessagePosted.
func (n *TaskChatNotifier) Hook() MessagePostedHook {
	return n.MessagePosted
}

// MessagePosted publishes one event per member, sequentially. Failures are
// logged and counted; they never reach the poster.
func (n *TaskChatNotifier) MessagePosted(ctx context.Context, channel *models.Channel, msg *models.Message) {
	if !IsTaskChat(channel) {
		return
	}

	evt, err := notify.NewEvent(constants.TaskChatEventType, NewMessageEvent{ChannelID: channel.ID})
	if err != nil {
		n.log.Sugar().Errorw("failed to build task chat event", "channel_id", channel.ID, "error", err)
		return
	}

	for _, partnerID := range channel.PartnerIDs() {
		if err := n.bus.Publish(ctx, partnerID, evt); err != nil {
			metrics.NotificationsTotal.WithLabelValues("error").Inc()
			n.log.Sugar().Warnw("task chat notification failed",
				"channel_id", channel.ID, "message_id", msg.ID, "partner_id", partnerID, "error", err)
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("ok").Inc()
	}
}
