package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/email"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/metrics"
	"github.com/melodix/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaxRatePercent is the platform cut taken from every sale.
const TaxRatePercent = 10

var (
	ErrAlreadyPurchased  = errors.New("item already purchased")
	ErrNotForSale        = errors.New("item is not for sale")
	ErrOwnItem           = errors.New("cannot purchase your own item")
	ErrNoPendingBalance  = errors.New("no pending balance to request")
	ErrIllegalTransition = errors.New("illegal payment status transition")
	ErrPaymentNotFound   = errors.New("payment not found")
)

// Service runs the purchase and payout workflows
type Service struct {
	charger       Charger
	email         *email.Service
	vipPriceCents int64
}

// NewService creates a payment service. email may be nil in tests.
func NewService(charger Charger, emailService *email.Service, vipPriceCents int64) *Service {
	if vipPriceCents <= 0 {
		vipPriceCents = 9999 // yearly VIP default
	}
	return &Service{
		charger:       charger,
		email:         emailService,
		vipPriceCents: vipPriceCents,
	}
}

// PurchaseRequest describes what the buyer wants to buy
type PurchaseRequest struct {
	ItemType        models.ReceiptItemType `json:"item_type" binding:"required"`
	ItemID          string                 `json:"item_id"`
	PaymentMethodID string                 `json:"payment_method_id" binding:"required"`
}

// TaxFor returns the platform tax for a price in cents
func TaxFor(priceCents int64) int64 {
	return priceCents * TaxRatePercent / 100
}

// Purchase charges the buyer and credits the seller's pending payment.
// For vip_subscription items there is no seller; the buyer's account is
// upgraded instead.
func (s *Service) Purchase(ctx context.Context, buyer *models.User, req PurchaseRequest) (*models.PaymentReceipt, error) {
	if !req.ItemType.Valid() {
		return nil, fmt.Errorf("unknown item type %q", req.ItemType)
	}
	if req.ItemType == models.ItemVIPSubscription {
		return s.purchaseVIP(ctx, buyer, req)
	}
	return s.purchaseItem(ctx, buyer, req)
}

func (s *Service) purchaseItem(ctx context.Context, buyer *models.User, req PurchaseRequest) (*models.PaymentReceipt, error) {
	priceCents, sellerID, itemName, err := s.resolveItem(req.ItemType, req.ItemID)
	if err != nil {
		return nil, err
	}
	if sellerID == buyer.ID {
		return nil, ErrOwnItem
	}

	if err := s.checkNotPurchased(buyer.ID, req.ItemType, req.ItemID); err != nil {
		return nil, err
	}

	chargeID, err := s.charger.Charge(priceCents, req.PaymentMethodID, buyer.ID,
		fmt.Sprintf("Purchase of %s %q", req.ItemType, itemName))
	if err != nil {
		return nil, err
	}

	taxCents := TaxFor(priceCents)
	netCents := priceCents - taxCents

	var receipt *models.PaymentReceipt
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		// Lock the seller's pending payment so concurrent purchases
		// accumulate without losing updates.
		var payment models.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("requester_id = ? AND status = ?", sellerID, models.PaymentPending).
			First(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			payment = models.Payment{
				RequesterID: sellerID,
				Status:      models.PaymentPending,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return fmt.Errorf("failed to create payment: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		payment.TotalAmountCents += netCents
		note := fmt.Sprintf("sale of %s %q for %d cents", req.ItemType, itemName, priceCents)
		if payment.RequestNote == "" {
			payment.RequestNote = note
		} else {
			payment.RequestNote += "; " + note
		}
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		sellerIDCopy := sellerID
		itemIDCopy := req.ItemID
		receipt = &models.PaymentReceipt{
			BuyerID:    buyer.ID,
			SellerID:   &sellerIDCopy,
			ItemType:   req.ItemType,
			ItemID:     &itemIDCopy,
			PriceCents: priceCents,
			TaxCents:   taxCents,
			TotalCents: netCents,
			Status:     models.ReceiptPending,
			PaymentID:  &payment.ID,
		}
		if err := tx.Create(receipt).Error; err != nil {
			return fmt.Errorf("failed to create receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := metrics.Get()
	m.PurchasesTotal.WithLabelValues(string(req.ItemType)).Inc()
	m.PurchaseAmountCents.WithLabelValues(string(req.ItemType)).Add(float64(priceCents))

	logger.Log.Info("purchase completed",
		logger.WithUserID(buyer.ID),
		zap.String("item_type", string(req.ItemType)),
		zap.String("item_id", req.ItemID),
		zap.Int64("price_cents", priceCents),
		zap.String("charge_id", chargeID),
	)

	if s.email != nil {
		if err := s.email.SendPurchaseReceiptEmail(ctx, buyer.Email, itemName, priceCents); err != nil {
			logger.WarnWithFields("failed to send purchase receipt email", err)
		}
	}

	return receipt, nil
}

func (s *Service) purchaseVIP(ctx context.Context, buyer *models.User, req PurchaseRequest) (*models.PaymentReceipt, error) {
	if buyer.IsVIP() {
		return nil, ErrAlreadyPurchased
	}

	chargeID, err := s.charger.Charge(s.vipPriceCents, req.PaymentMethodID, buyer.ID, "VIP subscription (1 year)")
	if err != nil {
		return nil, err
	}

	var receipt *models.PaymentReceipt
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		ends := now.AddDate(1, 0, 0)
		updates := map[string]interface{}{
			"role":          models.RoleVIP,
			"vip_starts_at": now,
			"vip_ends_at":   ends,
		}
		if err := tx.Model(&models.User{}).Where("id = ?", buyer.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to upgrade account: %w", err)
		}

		// No seller and no payout: the receipt completes immediately.
		receipt = &models.PaymentReceipt{
			BuyerID:    buyer.ID,
			ItemType:   models.ItemVIPSubscription,
			PriceCents: s.vipPriceCents,
			TaxCents:   0,
			TotalCents: 0,
			Status:     models.ReceiptCompleted,
		}
		if err := tx.Create(receipt).Error; err != nil {
			return fmt.Errorf("failed to create receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := metrics.Get()
	m.PurchasesTotal.WithLabelValues(string(models.ItemVIPSubscription)).Inc()
	m.PurchaseAmountCents.WithLabelValues(string(models.ItemVIPSubscription)).Add(float64(s.vipPriceCents))

	logger.Log.Info("vip subscription purchased",
		logger.WithUserID(buyer.ID),
		zap.String("charge_id", chargeID),
	)

	if s.email != nil {
		if err := s.email.SendPurchaseReceiptEmail(ctx, buyer.Email, "VIP subscription (1 year)", s.vipPriceCents); err != nil {
			logger.WarnWithFields("failed to send purchase receipt email", err)
		}
	}

	return receipt, nil
}

// resolveItem loads the purchasable item and returns its price, seller and name
func (s *Service) resolveItem(itemType models.ReceiptItemType, itemID string) (int64, string, string, error) {
	switch itemType {
	case models.ItemSong, models.ItemPodcast:
		var media models.Media
		if err := database.DB.First(&media, "id = ?", itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, "", "", fmt.Errorf("media not found")
			}
			return 0, "", "", fmt.Errorf("database error: %w", err)
		}
		if media.Status != models.MediaApproved {
			return 0, "", "", ErrNotForSale
		}
		if media.PriceCents == nil || *media.PriceCents <= 0 {
			return 0, "", "", ErrNotForSale
		}
		return *media.PriceCents, media.CreatedBy, media.Name, nil

	case models.ItemAlbum:
		var playlist models.Playlist
		if err := database.DB.First(&playlist, "id = ? AND type = ?", itemID, models.PlaylistAlbum).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, "", "", fmt.Errorf("album not found")
			}
			return 0, "", "", fmt.Errorf("database error: %w", err)
		}
		if playlist.PriceCents == nil || *playlist.PriceCents <= 0 {
			return 0, "", "", ErrNotForSale
		}
		return *playlist.PriceCents, playlist.OwnerID, playlist.Name, nil
	}
	return 0, "", "", fmt.Errorf("unknown item type %q", itemType)
}

func (s *Service) checkNotPurchased(buyerID string, itemType models.ReceiptItemType, itemID string) error {
	var count int64
	err := database.DB.Model(&models.PaymentReceipt{}).
		Where("buyer_id = ? AND item_type = ? AND item_id = ?", buyerID, itemType, itemID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return ErrAlreadyPurchased
	}
	return nil
}

// HasPurchased reports whether the buyer already owns the item
func (s *Service) HasPurchased(buyerID string, itemType models.ReceiptItemType, itemID string) (bool, error) {
	err := s.checkNotPurchased(buyerID, itemType, itemID)
	if errors.Is(err, ErrAlreadyPurchased) {
		return true, nil
	}
	return false, err
}

// RequestPayout moves the seller's pending payment to requested
func (s *Service) RequestPayout(sellerID, note string) (*models.Payment, error) {
	var payment models.Payment
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("requester_id = ? AND status = ?", sellerID, models.PaymentPending).
			First(&payment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoPendingBalance
		} else if err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if payment.TotalAmountCents <= 0 {
			return ErrNoPendingBalance
		}

		now := time.Now()
		payment.Status = models.PaymentRequested
		payment.RequestedAt = &now
		if note != "" {
			payment.RequestNote = note
		}
		return tx.Save(&payment).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Decide approves or rejects a requested payout. Approval cascades to
// completed and marks all attached receipts completed.
func (s *Service) Decide(ctx context.Context, paymentID, approverID string, approve bool, note string) (*models.Payment, error) {
	var payment models.Payment
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, "id = ?", paymentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		} else if err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		next := models.PaymentApproved
		if !approve {
			next = models.PaymentRejected
		}
		if !payment.Status.CanTransition(next) {
			return ErrIllegalTransition
		}

		now := time.Now()
		payment.Status = next
		payment.ApproverID = &approverID
		payment.ApprovedAt = &now
		payment.ApprovalNote = note
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	decision := "approved"
	if !approve {
		decision = "rejected"
	}
	metrics.Get().PayoutDecisionsTotal.WithLabelValues(decision).Inc()

	s.notifyPayoutDecision(ctx, &payment, approve, note)

	if approve {
		return s.Complete(paymentID)
	}
	return &payment, nil
}

// Complete finalizes an approved payout and marks its receipts completed
func (s *Service) Complete(paymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, "id = ?", paymentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		} else if err != nil {
			return fmt.Errorf("database error: %w", err)
		}

		if !payment.Status.CanTransition(models.PaymentCompleted) {
			return ErrIllegalTransition
		}

		now := time.Now()
		payment.Status = models.PaymentCompleted
		payment.CompletedAt = &now
		if err := tx.Save(&payment).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		err = tx.Model(&models.PaymentReceipt{}).
			Where("payment_id = ?", payment.ID).
			Update("status", models.ReceiptCompleted).Error
		if err != nil {
			return fmt.Errorf("failed to complete receipts: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Service) notifyPayoutDecision(ctx context.Context, payment *models.Payment, approved bool, note string) {
	if s.email == nil {
		return
	}
	var seller models.User
	if err := database.DB.First(&seller, "id = ?", payment.RequesterID).Error; err != nil {
		logger.WarnWithFields("failed to load seller for payout email", err)
		return
	}
	to := seller.PayoutEmail
	if to == "" {
		to = seller.Email
	}
	if err := s.email.SendPayoutDecisionEmail(ctx, to, approved, payment.TotalAmountCents, note); err != nil {
		logger.WarnWithFields("failed to send payout decision email", err)
	}
}

// ListForUser returns the user's payments, newest first
func (s *Service) ListForUser(userID string, limit, offset int) ([]models.Payment, error) {
	var list []models.Payment
	err := database.DB.Where("requester_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// ListAll returns payments for staff review, optionally filtered by status
func (s *Service) ListAll(status models.PaymentStatus, limit, offset int) ([]models.Payment, error) {
	q := database.DB.Preload("Requester").Order("created_at DESC").Limit(limit).Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var list []models.Payment
	err := q.Find(&list).Error
	return list, err
}

// Get returns one payment with its receipts
func (s *Service) Get(paymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := database.DB.Preload("Receipts").First(&payment, "id = ?", paymentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	} else if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListReceiptsForBuyer returns the buyer's purchase history, newest first
func (s *Service) ListReceiptsForBuyer(buyerID string, limit, offset int) ([]models.PaymentReceipt, error) {
	var list []models.PaymentReceipt
	err := database.DB.Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}
