package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteMarketMappingFallsBackToFutu(t *testing.T) {
	assert.Equal(t, VenueHKEX, VenueForQotMarket(QotMarketHKSecurity))
	assert.Equal(t, VenueHKEX, VenueForQotMarket(QotMarketHKFuture))
	assert.Equal(t, VenueFutu, VenueForQotMarket(QotMarket(999)))
}

func TestTradeMarketRoutingSharesVenues(t *testing.T) {
	// HKCC routes through China Connect but lists on HKEX, so both trade
	// markets share the venue and the settlement currency.
	assert.Equal(t, VenueHKEX, VenueForTrdMarket(TrdMarketHK))
	assert.Equal(t, VenueHKEX, VenueForTrdMarket(TrdMarketHKCC))
	assert.Equal(t, CurrencyForTrdMarket(TrdMarketHK), CurrencyForTrdMarket(TrdMarketHKCC))

	assert.Equal(t, TrdMarketUS, TrdMarketForVenue(VenueNYSE))
	assert.Equal(t, TrdMarketUS, TrdMarketForVenue(VenueNASDAQ))
	assert.Equal(t, TrdMarketUnknown, TrdMarketForVenue(VenueFutu))
}

func TestInstrumentIDTrimsCode(t *testing.T) {
	id := NewInstrumentID(QotMarketHKSecurity, " 00700 ")
	assert.Equal(t, "00700", id.Code)
	assert.Equal(t, "00700.HKEX", id.String())
	assert.True(t, NewInstrumentID(QotMarketHKSecurity, "  ").IsZero())
}
