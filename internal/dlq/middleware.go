package dlq

import (
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// Middleware sends messages whose handler still fails (after any inner retry middleware) to the DLQ
// and acks them. If the DLQ publish itself fails, the handler error is returned and the message is nacked.
func Middleware(q *Queue) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			produced, err := h(msg)
			if err == nil {
				return produced, nil
			}

			topic := message.SubscribeTopicFromCtx(msg.Context())
			correlationID := middleware.MessageCorrelationID(msg)
			if correlationID == "" {
				correlationID = msg.UUID
			}
			dead := NewMessage(topic, msg.Payload, err, correlationID, time.Now())
			dead.OriginalMessageID = msg.UUID
			if sendErr := q.Send(msg.Context(), dead); sendErr != nil {
				q.Logger.ErrorContext(msg.Context(), "failed to send message to DLQ", "topic", topic, "err", sendErr)
				return nil, err
			}
			return nil, nil
		}
	}
}
