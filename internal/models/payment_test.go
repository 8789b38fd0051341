package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatusTransitions(t *testing.T) {
	cases := []struct {
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{PaymentPending, PaymentRequested, true},
		{PaymentRequested, PaymentApproved, true},
		{PaymentRequested, PaymentRejected, true},
		{PaymentApproved, PaymentCompleted, true},

		{PaymentPending, PaymentApproved, false},
		{PaymentPending, PaymentCompleted, false},
		{PaymentRequested, PaymentCompleted, false},
		{PaymentApproved, PaymentRejected, false},
		{PaymentRejected, PaymentApproved, false},
		{PaymentRejected, PaymentCompleted, false},
		{PaymentCompleted, PaymentPending, false},
		{PaymentCompleted, PaymentRequested, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentPending.Terminal())
	assert.False(t, PaymentRequested.Terminal())
	assert.False(t, PaymentApproved.Terminal())
	assert.True(t, PaymentRejected.Terminal())
	assert.True(t, PaymentCompleted.Terminal())
}

func TestPaymentStatusValid(t *testing.T) {
	for _, s := range []PaymentStatus{
		PaymentPending, PaymentRequested, PaymentApproved, PaymentRejected, PaymentCompleted,
	} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, PaymentStatus("refunded").Valid())
	assert.False(t, PaymentStatus("").Valid())
}

func TestReceiptItemTypeValid(t *testing.T) {
	assert.True(t, ItemSong.Valid())
	assert.True(t, ItemPodcast.Valid())
	assert.True(t, ItemAlbum.Valid())
	assert.True(t, ItemVIPSubscription.Valid())
	assert.False(t, ReceiptItemType("merch").Valid())
}
