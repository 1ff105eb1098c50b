package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultJSONSerializer(t *testing.T) {
	s := &DefaultJSONSerializer{}

	cmd := &PlaceOrderCommand{
		TraderID: "alice",
		Side:     SideSell,
		Price:    "100.25",
		Quantity: "3",
	}

	data, err := s.Marshal(cmd)
	require.NoError(t, err)
	assert.JSONEq(t, `{"trader_id":"alice","side":2,"price":"100.25","quantity":"3","timestamp":0}`, string(data))

	var decoded PlaceOrderCommand
	require.NoError(t, s.Unmarshal(data, &decoded))
	assert.Equal(t, *cmd, decoded)

	assert.Error(t, s.Unmarshal([]byte("{"), &decoded))
}

func TestSide(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.True(t, SideBuy.IsValid())
	assert.False(t, Side(0).IsValid())
	assert.Equal(t, "buy", SideBuy.String())
	assert.Equal(t, "unknown", Side(9).String())
}
