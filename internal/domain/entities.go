package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Ad struct {
	ID            string          `db:"id" json:"id"`
	OwnerID       string          `db:"owner_id" json:"ownerId"`
	Title         string          `db:"title" json:"title"`
	Description   string          `db:"description" json:"description"`
	Category      string          `db:"category" json:"category"`
	Budget        decimal.Decimal `db:"budget" json:"budget"`
	Status        AdStatus        `db:"status" json:"status"`
	SelectedBidID *string         `db:"selected_bid_id" json:"selectedBidId"`
	BidCount      int             `db:"bid_count" json:"bidCount"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

type NewAd struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Category    string          `json:"category" validate:"required,max=64"`
	Budget      decimal.Decimal `json:"budget"`
}

type Bid struct {
	ID         string          `db:"id" json:"id"`
	AdID       string          `db:"ad_id" json:"adId"`
	SupplierID string          `db:"supplier_id" json:"supplierId"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Comment    string          `db:"comment" json:"comment"`
	Status     BidStatus       `db:"status" json:"status"`
	IsSelected bool            `db:"is_selected" json:"isSelected"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updatedAt"`
}

type NewBid struct {
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment" validate:"max=2000"`
}

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"userId"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Type      NotificationType `db:"type" json:"type"`
	IsRead    bool             `db:"is_read" json:"isRead"`
	AdID      *string          `db:"ad_id" json:"adId,omitempty"`
	BidID     *string          `db:"bid_id" json:"bidId,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
	ReadAt    *time.Time       `db:"read_at" json:"readAt,omitempty"`
}

type Review struct {
	ID           string    `db:"id" json:"id"`
	AdID         string    `db:"ad_id" json:"adId"`
	AuthorID     string    `db:"author_id" json:"authorId"`
	TargetUserID string    `db:"target_user_id" json:"targetUserId"`
	Rating       int       `db:"rating" json:"rating"`
	Comment      string    `db:"comment" json:"comment"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type NewReview struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// StringPtr is a small helper for the nullable id columns.
func StringPtr(s string) *string {
	return &s
}
