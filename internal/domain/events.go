package domain

type EventType string

const (
	EventNewBid             EventType = "new_bid"
	EventBidStatusChanged   EventType = "bid_status_changed"
	EventNewOrder           EventType = "new_order"
	EventNewMessage         EventType = "new_message"
	EventOrderStatusChanged EventType = "order_status_changed"
	EventNotification       EventType = "notification"
	EventBroadcast          EventType = "broadcast"
)

func (t EventType) Valid() bool {
	switch t {
	case EventNewBid, EventBidStatusChanged, EventNewOrder, EventNewMessage,
		EventOrderStatusChanged, EventNotification, EventBroadcast:
		return true
	}
	return false
}

func CategoryTopic(category string) string {
	return "category:" + category
}

func AdTopic(adID string) string {
	return "ad:" + adID
}
