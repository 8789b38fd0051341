package payments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/melodix/backend/internal/database"
	"github.com/melodix/backend/internal/logger"
	"github.com/melodix/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// stubCharger records charges without talking to Stripe.
type stubCharger struct {
	charges []int64
	fail    bool
}

func (c *stubCharger) Charge(amountCents int64, paymentMethodID, buyerID, description string) (string, error) {
	if c.fail {
		return "", errors.New("card declined")
	}
	c.charges = append(c.charges, amountCents)
	return fmt.Sprintf("ch_test_%d", len(c.charges)), nil
}

type PaymentServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	charger *stubCharger
	service *Service

	seller *models.User
	buyer  *models.User
	song   *models.Media
}

func (suite *PaymentServiceTestSuite) SetupSuite() {
	db, err := gorm.Open(postgres.Open(paymentsTestDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		suite.T().Skipf("Skipping payment tests: database not available (%v)", err)
		return
	}

	logger.Log = zap.NewNop()
	logger.SugaredLog = logger.Log.Sugar()
	database.DB = db

	err = db.AutoMigrate(
		&models.User{}, &models.Media{}, &models.Playlist{},
		&models.Payment{}, &models.PaymentReceipt{},
	)
	require.NoError(suite.T(), err)

	suite.db = db
}

func (suite *PaymentServiceTestSuite) TearDownSuite() {
	if suite.db == nil {
		return
	}
	suite.db.Exec("DROP TABLE IF EXISTS payment_receipts, payments, playlists, media, users CASCADE")
	sqlDB, _ := suite.db.DB()
	sqlDB.Close()
}

func (suite *PaymentServiceTestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM payment_receipts")
	suite.db.Exec("DELETE FROM payments")
	suite.db.Exec("DELETE FROM playlists")
	suite.db.Exec("DELETE FROM media")
	suite.db.Exec("DELETE FROM users")

	suite.charger = &stubCharger{}
	suite.service = NewService(suite.charger, nil, 9999)

	suite.seller = &models.User{Email: "seller@example.com", FullName: "Seller", Role: models.RoleVIP}
	suite.buyer = &models.User{Email: "buyer@example.com", FullName: "Buyer", Role: models.RoleUser}
	require.NoError(suite.T(), suite.db.Create(suite.seller).Error)
	require.NoError(suite.T(), suite.db.Create(suite.buyer).Error)

	price := int64(500)
	suite.song = &models.Media{
		Name:       "For Sale",
		Type:       models.MediaSong,
		AudioURL:   "https://cdn.example.com/a.mp3",
		PriceCents: &price,
		CreatedBy:  suite.seller.ID,
		Status:     models.MediaApproved,
	}
	require.NoError(suite.T(), suite.db.Create(suite.song).Error)
}

func (suite *PaymentServiceTestSuite) TestPurchaseSong() {
	t := suite.T()

	receipt, err := suite.service.Purchase(context.Background(), suite.buyer, PurchaseRequest{
		ItemType:        models.ItemSong,
		ItemID:          suite.song.ID,
		PaymentMethodID: "pm_test",
	})
	require.NoError(t, err)
	require.NotNil(t, receipt)

	// Buyer is charged the full price; seller is credited price minus tax.
	assert.Equal(t, []int64{500}, suite.charger.charges)
	assert.Equal(t, int64(500), receipt.PriceCents)
	assert.Equal(t, int64(50), receipt.TaxCents)
	assert.Equal(t, int64(450), receipt.TotalCents)
	assert.Equal(t, models.ReceiptPending, receipt.Status)

	var payment models.Payment
	require.NoError(t, suite.db.Where("requester_id = ?", suite.seller.ID).First(&payment).Error)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Equal(t, int64(450), payment.TotalAmountCents)
}

func (suite *PaymentServiceTestSuite) TestPurchaseAccumulates() {
	t := suite.T()

	otherBuyer := &models.User{Email: "buyer2@example.com", FullName: "Buyer Two"}
	require.NoError(t, suite.db.Create(otherBuyer).Error)

	for _, buyer := range []*models.User{suite.buyer, otherBuyer} {
		_, err := suite.service.Purchase(context.Background(), buyer, PurchaseRequest{
			ItemType:        models.ItemSong,
			ItemID:          suite.song.ID,
			PaymentMethodID: "pm_test",
		})
		require.NoError(t, err)
	}

	// Both sales accumulate into the same pending payment row.
	var payments []models.Payment
	require.NoError(t, suite.db.Where("requester_id = ?", suite.seller.ID).Find(&payments).Error)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(900), payments[0].TotalAmountCents)
}

func (suite *PaymentServiceTestSuite) TestPurchaseRejectsDuplicates() {
	t := suite.T()

	_, err := suite.service.Purchase(context.Background(), suite.buyer, PurchaseRequest{
		ItemType:        models.ItemSong,
		ItemID:          suite.song.ID,
		PaymentMethodID: "pm_test",
	})
	require.NoError(t, err)

	_, err = suite.service.Purchase(context.Background(), suite.buyer, PurchaseRequest{
		ItemType:        models.ItemSong,
		ItemID:          suite.song.ID,
		PaymentMethodID: "pm_test",
	})
	assert.ErrorIs(t, err, ErrAlreadyPurchased)

	// Only the first charge went through.
	assert.Len(t, suite.charger.charges, 1)
}

func (suite *PaymentServiceTestSuite) TestPurchaseOwnItem() {
	t := suite.T()

	_, err := suite.service.Purchase(context.Background(), suite.seller, PurchaseRequest{
		ItemType:        models.ItemSong,
		ItemID:          suite.song.ID,
		PaymentMethodID: "pm_test",
	})
	assert.ErrorIs(t, err, ErrOwnItem)
	assert.Empty(t, suite.charger.charges)
}

func (suite *PaymentServiceTestSuite) TestPurchaseFreeItem() {
	t := suite.T()

	free := &models.Media{
		Name:      "Free Track",
		Type:      models.MediaSong,
		AudioURL:  "https://cdn.example.com/b.mp3",
		CreatedBy: suite.seller.ID,
		Status:    models.MediaApproved,
	}
	require.NoError(t, suite.db.Create(free).Error)

	_, err := suite.service.Purchase(context.Background(), suite.buyer, PurchaseRequest{
		ItemType:        models.ItemSong,
		ItemID:          free.ID,
		PaymentMethodID: "pm_test",
	})
	assert.ErrorIs(t, err, ErrNotForSale)
}

func (suite *PaymentServiceTestSuite) TestChargeFailureLeavesNoRows() {
	t := suite.T()

	suite.charger.fail = true
	_, err := suite.service.Purchase(context.Background(), suite.buyer, PurchaseRequest{
		ItemType:        models.ItemSong,
		ItemID:          suite.song.ID,
		PaymentMethodID: "pm_test",
	})
	require.Error(t, err)

	var count int64
	suite.db.Model(&models.PaymentReceipt{}).Count(&count)
	assert.Zero(t, count)
	suite.db.Model(&models.Payment{}).Count(&count)
	assert.Zero(t, count)
}

func (suite *PaymentServiceTestSuite) TestPurchaseVIP() {
	t := suite.T()

	receipt, err := suite.service.Purchase(context.Background(), suite.buyer, PurchaseRequest{
		ItemType:        models.ItemVIPSubscription,
		PaymentMethodID: "pm_test",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReceiptCompleted, receipt.Status)
	assert.Nil(t, receipt.SellerID)
	assert.Equal(t, int64(9999), receipt.PriceCents)

	var user models.User
	require.NoError(t, suite.db.First(&user, "id = ?", suite.buyer.ID).Error)
	assert.Equal(t, models.RoleVIP, user.Role)
	require.NotNil(t, user.VIPEndsAt)
	assert.True(t, user.IsVIP())

	// A second purchase while the window is open is rejected.
	_, err = suite.service.Purchase(context.Background(), &user, PurchaseRequest{
		ItemType:        models.ItemVIPSubscription,
		PaymentMethodID: "pm_test",
	})
	assert.ErrorIs(t, err, ErrAlreadyPurchased)
}

func (suite *PaymentServiceTestSuite) TestPayoutWorkflow() {
	t := suite.T()

	_, err := suite.service.Purchase(context.Background(), suite.buyer, PurchaseRequest{
		ItemType:        models.ItemSong,
		ItemID:          suite.song.ID,
		PaymentMethodID: "pm_test",
	})
	require.NoError(t, err)

	payment, err := suite.service.RequestPayout(suite.seller.ID, "first payout")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRequested, payment.Status)
	assert.NotNil(t, payment.RequestedAt)

	// A second request finds no pending balance.
	_, err = suite.service.RequestPayout(suite.seller.ID, "")
	assert.ErrorIs(t, err, ErrNoPendingBalance)

	approver := &models.User{Email: "staff@example.com", FullName: "Staff", Role: models.RoleStaff}
	require.NoError(t, suite.db.Create(approver).Error)

	decided, err := suite.service.Decide(context.Background(), payment.ID, approver.ID, true, "looks good")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, decided.Status)
	require.NotNil(t, decided.ApproverID)
	assert.Equal(t, approver.ID, *decided.ApproverID)

	// The receipts that fed the payout complete with it.
	var receipts []models.PaymentReceipt
	require.NoError(t, suite.db.Where("payment_id = ?", payment.ID).Find(&receipts).Error)
	require.NotEmpty(t, receipts)
	for _, r := range receipts {
		assert.Equal(t, models.ReceiptCompleted, r.Status)
	}
}

func (suite *PaymentServiceTestSuite) TestPayoutRejection() {
	t := suite.T()

	_, err := suite.service.Purchase(context.Background(), suite.buyer, PurchaseRequest{
		ItemType:        models.ItemSong,
		ItemID:          suite.song.ID,
		PaymentMethodID: "pm_test",
	})
	require.NoError(t, err)

	payment, err := suite.service.RequestPayout(suite.seller.ID, "")
	require.NoError(t, err)

	approver := &models.User{Email: "staff2@example.com", FullName: "Staff", Role: models.RoleStaff}
	require.NoError(t, suite.db.Create(approver).Error)

	decided, err := suite.service.Decide(context.Background(), payment.ID, approver.ID, false, "missing details")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRejected, decided.Status)

	// Rejected is terminal.
	_, err = suite.service.Decide(context.Background(), payment.ID, approver.ID, true, "")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}

func TestTaxFor(t *testing.T) {
	assert.Equal(t, int64(0), TaxFor(0))
	assert.Equal(t, int64(10), TaxFor(100))
	assert.Equal(t, int64(0), TaxFor(9)) // integer math rounds down
	assert.Equal(t, int64(999), TaxFor(9999))
}

func paymentsTestDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "postgres")
	password := envOr("POSTGRES_PASSWORD", "")
	dbname := envOr("POSTGRES_DB", "melodix_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname)
	}
	return dsn
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
