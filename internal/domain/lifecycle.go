package domain

type AdStatus string

const (
	AdOpen       AdStatus = "open"
	AdInProgress AdStatus = "in_progress"
	AdCompleted  AdStatus = "completed"
	AdCancelled  AdStatus = "cancelled"
	AdClosed     AdStatus = "closed"
)

func (s AdStatus) String() string {
	return string(s)
}

func (s AdStatus) Valid() bool {
	switch s {
	case AdOpen, AdInProgress, AdCompleted, AdCancelled, AdClosed:
		return true
	}
	return false
}

// AcceptsBids reports whether new bids may be placed. in_progress only means
// that bids exist, the ad is still looking for a winner.
func (s AdStatus) AcceptsBids() bool {
	return s == AdOpen || s == AdInProgress
}

func (s AdStatus) Terminal() bool {
	return s == AdCompleted || s == AdCancelled || s == AdClosed
}

type AdEvent string

const (
	AdEventBidSubmitted AdEvent = "bid_submitted"
	AdEventBidAccepted  AdEvent = "bid_accepted"
	AdEventClosed       AdEvent = "closed"
	AdEventCancelled    AdEvent = "cancelled"
)

var adTransitions = map[AdStatus]map[AdEvent]AdStatus{
	AdOpen: {
		AdEventBidSubmitted: AdInProgress,
		AdEventBidAccepted:  AdCompleted,
		AdEventClosed:       AdClosed,
		AdEventCancelled:    AdCancelled,
	},
	AdInProgress: {
		AdEventBidSubmitted: AdInProgress,
		AdEventBidAccepted:  AdCompleted,
		AdEventClosed:       AdClosed,
	},
}

// Next returns the status reached by applying ev, or ErrInvalidTransition.
func (s AdStatus) Next(ev AdEvent) (AdStatus, error) {
	if next, ok := adTransitions[s][ev]; ok {
		return next, nil
	}
	return s, &TransitionError{Entity: "ad", From: string(s), Event: string(ev)}
}

// AdStatusesAllowing lists every status from which ev is legal. Repositories
// use it as the guard of their conditional updates.
func AdStatusesAllowing(ev AdEvent) []AdStatus {
	var out []AdStatus
	for _, s := range []AdStatus{AdOpen, AdInProgress, AdCompleted, AdCancelled, AdClosed} {
		if _, ok := adTransitions[s][ev]; ok {
			out = append(out, s)
		}
	}
	return out
}

type BidStatus string

const (
	BidPending   BidStatus = "pending"
	BidAccepted  BidStatus = "accepted"
	BidRejected  BidStatus = "rejected"
	BidWithdrawn BidStatus = "withdrawn"
)

func (s BidStatus) String() string {
	return string(s)
}

func (s BidStatus) Valid() bool {
	switch s {
	case BidPending, BidAccepted, BidRejected, BidWithdrawn:
		return true
	}
	return false
}

type BidEvent string

const (
	BidEventAccept   BidEvent = "accept"
	BidEventReject   BidEvent = "reject"
	BidEventWithdraw BidEvent = "withdraw"
	// BidEventOutbid is applied to the other pending bids when one bid wins.
	BidEventOutbid BidEvent = "outbid"
)

var bidTransitions = map[BidStatus]map[BidEvent]BidStatus{
	BidPending: {
		BidEventAccept:   BidAccepted,
		BidEventReject:   BidRejected,
		BidEventWithdraw: BidWithdrawn,
		BidEventOutbid:   BidRejected,
	},
}

func (s BidStatus) Next(ev BidEvent) (BidStatus, error) {
	if next, ok := bidTransitions[s][ev]; ok {
		return next, nil
	}
	return s, &TransitionError{Entity: "bid", From: string(s), Event: string(ev)}
}
