package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatus is the payout request lifecycle. Legal transitions:
//
//	pending → requested → approved → completed
//	                    → rejected
//
// Rejected is terminal; completed is only reachable from approved.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentRequested PaymentStatus = "requested"
	PaymentApproved  PaymentStatus = "approved"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentCompleted PaymentStatus = "completed"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentRequested, PaymentApproved, PaymentRejected, PaymentCompleted:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal step in
// the payout workflow.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentRequested
	case PaymentRequested:
		return next == PaymentApproved || next == PaymentRejected
	case PaymentApproved:
		return next == PaymentCompleted
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentRejected || s == PaymentCompleted
}

// Payment is an aggregated payout request owned by a seller. Purchases
// accumulate into the seller's single pending payment until the seller
// requests disbursement.
type Payment struct {
	ID          string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RequesterID string  `gorm:"not null;index;type:uuid" json:"requester_id"`
	Requester   *User   `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	ApproverID  *string `gorm:"type:uuid" json:"approver_id"`
	Approver    *User   `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`

	TotalAmountCents int64         `gorm:"not null;default:0" json:"total_amount_cents"`
	Status           PaymentStatus `gorm:"type:text;not null;default:pending" json:"status"`

	RequestNote  string `gorm:"type:text" json:"request_note"`
	ApprovalNote string `gorm:"type:text" json:"approval_note"`

	RequestedAt *time.Time `json:"requested_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	CompletedAt *time.Time `json:"completed_at"`

	Receipts []PaymentReceipt `gorm:"foreignKey:PaymentID" json:"receipts,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ReceiptItemType identifies what a receipt paid for.
type ReceiptItemType string

const (
	ItemSong            ReceiptItemType = "song"
	ItemPodcast         ReceiptItemType = "podcast"
	ItemAlbum           ReceiptItemType = "album"
	ItemVIPSubscription ReceiptItemType = "vip_subscription"
)

// Valid reports whether t is a known item type.
func (t ReceiptItemType) Valid() bool {
	switch t {
	case ItemSong, ItemPodcast, ItemAlbum, ItemVIPSubscription:
		return true
	}
	return false
}

// ReceiptStatus tracks whether the seller side of a purchase has been
// disbursed. VIP subscription receipts complete immediately.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptCompleted ReceiptStatus = "completed"
)

// PaymentReceipt is one purchase event: buyer, seller, item, and money.
// PaymentID is nil for VIP subscriptions, which have no seller payout.
type PaymentReceipt struct {
	ID string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`

	BuyerID  string  `gorm:"not null;index;type:uuid" json:"buyer_id"`
	Buyer    *User   `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	SellerID *string `gorm:"index;type:uuid" json:"seller_id"`
	Seller   *User   `gorm:"foreignKey:SellerID" json:"seller,omitempty"`

	ItemType ReceiptItemType `gorm:"type:text;not null" json:"item_type"`
	ItemID   *string         `gorm:"index;type:uuid" json:"item_id"`

	PriceCents int64 `gorm:"not null" json:"price_cents"`
	TaxCents   int64 `gorm:"not null" json:"tax_cents"`
	TotalCents int64 `gorm:"not null" json:"total_cents"` // net to seller

	Status ReceiptStatus `gorm:"type:text;not null;default:pending" json:"status"`

	PaymentID *string  `gorm:"index;type:uuid" json:"payment_id"`
	Payment   *Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
