package wire

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/common"
)

func TestNewOrderMessage_RoundTrip(t *testing.T) {
	original := NewOrderMessage{
		ClientID: "c1",
		Symbol:   "AAPL",
		Side:     common.Buy,
		Type:     common.Limit,
		Quantity: 100,
		Price:    decimal.RequireFromString("150.25"),
		OwnerID:  "trader-1",
	}

	decoded, err := Decode(original.Encode())
	require.NoError(t, err)
	require.Equal(t, NewOrder, decoded.Type)
	assert.Equal(t, original.ClientID, decoded.New.ClientID)
	assert.Equal(t, original.Symbol, decoded.New.Symbol)
	assert.Equal(t, original.Side, decoded.New.Side)
	assert.Equal(t, original.Type, decoded.New.Type)
	assert.Equal(t, original.Quantity, decoded.New.Quantity)
	assert.True(t, original.Price.Equal(decoded.New.Price))
	assert.Equal(t, original.OwnerID, decoded.New.OwnerID)
}

func TestCancelOrderMessage_RoundTrip(t *testing.T) {
	original := CancelOrderMessage{Symbol: "AAPL", OrigClientID: "c1", NewClientID: "c1-cancel"}
	decoded, err := Decode(original.Encode())
	require.NoError(t, err)
	require.Equal(t, CancelOrder, decoded.Type)
	assert.Equal(t, original, decoded.Cancel)
}

func TestAmendOrderMessage_RoundTrip_WithOptionalFields(t *testing.T) {
	original := AmendOrderMessage{
		Symbol:       "AAPL",
		OrigClientID: "c1",
		NewClientID:  "c1-v2",
		HasNewQty:    true,
		NewQty:       50,
		HasNewPrice:  true,
		NewPrice:     decimal.RequireFromString("101.50"),
	}
	decoded, err := Decode(original.Encode())
	require.NoError(t, err)
	require.Equal(t, AmendOrder, decoded.Type)
	assert.Equal(t, original.NewQty, decoded.Amend.NewQty)
	assert.True(t, decoded.Amend.HasNewQty)
	assert.True(t, original.NewPrice.Equal(decoded.Amend.NewPrice))
}

func TestAmendOrderMessage_RoundTrip_NoOptionalFields(t *testing.T) {
	original := AmendOrderMessage{Symbol: "AAPL", OrigClientID: "c1", NewClientID: "c1-v2"}
	decoded, err := Decode(original.Encode())
	require.NoError(t, err)
	assert.False(t, decoded.Amend.HasNewQty)
	assert.False(t, decoded.Amend.HasNewPrice)
}

func TestDecode_RejectsTooShortFrame(t *testing.T) {
	_, err := Decode([]byte{0})
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestDecode_RejectsUnknownType(t *testing.T) {
	frame := []byte{0xFF, 0xFF}
	_, err := Decode(frame)
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}
