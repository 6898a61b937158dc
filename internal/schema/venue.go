package schema

import "strings"

// Venue names the listing exchange a canonical instrument belongs to.
type Venue string

const (
	// VenueFutu is the catch-all venue for instruments with no market mapping.
	VenueFutu Venue = "FUTU"
	// VenueHKEX is the Hong Kong exchange.
	VenueHKEX Venue = "HKEX"
	// VenueNYSE is the New York Stock Exchange.
	VenueNYSE Venue = "NYSE"
	// VenueNASDAQ is the NASDAQ exchange.
	VenueNASDAQ Venue = "NASDAQ"
	// VenueSSE is the Shanghai exchange.
	VenueSSE Venue = "SSE"
	// VenueSZSE is the Shenzhen exchange.
	VenueSZSE Venue = "SZSE"
	// VenueSGX is the Singapore exchange.
	VenueSGX Venue = "SGX"
)

// TrdMarket is the vendor sub-market an account is authorized to trade.
type TrdMarket int32

const (
	// TrdMarketUnknown is the zero value for unrecognized markets.
	TrdMarketUnknown TrdMarket = 0
	// TrdMarketHK trades Hong Kong securities.
	TrdMarketHK TrdMarket = 1
	// TrdMarketUS trades US securities.
	TrdMarketUS TrdMarket = 2
	// TrdMarketCN trades mainland China securities.
	TrdMarketCN TrdMarket = 3
	// TrdMarketHKCC trades HK securities via China Connect.
	TrdMarketHKCC TrdMarket = 4
	// TrdMarketSG trades Singapore securities.
	TrdMarketSG TrdMarket = 5
)

// QotMarket is the vendor quote-market a security code is scoped to.
type QotMarket int32

const (
	// QotMarketHKSecurity scopes Hong Kong securities.
	QotMarketHKSecurity QotMarket = 1
	// QotMarketHKFuture scopes Hong Kong futures.
	QotMarketHKFuture QotMarket = 2
	// QotMarketUSSecurity scopes US securities.
	QotMarketUSSecurity QotMarket = 11
	// QotMarketCNSHSecurity scopes Shanghai securities.
	QotMarketCNSHSecurity QotMarket = 21
	// QotMarketCNSZSecurity scopes Shenzhen securities.
	QotMarketCNSZSecurity QotMarket = 22
	// QotMarketSGSecurity scopes Singapore securities.
	QotMarketSGSecurity QotMarket = 31
)

var qotMarketVenues = map[QotMarket]Venue{
	QotMarketHKSecurity:   VenueHKEX,
	QotMarketHKFuture:     VenueHKEX,
	QotMarketUSSecurity:   VenueNYSE,
	QotMarketCNSHSecurity: VenueSSE,
	QotMarketCNSZSecurity: VenueSZSE,
	QotMarketSGSecurity:   VenueSGX,
}

var venueQotMarkets = map[Venue]QotMarket{
	VenueHKEX:   QotMarketHKSecurity,
	VenueNYSE:   QotMarketUSSecurity,
	VenueNASDAQ: QotMarketUSSecurity,
	VenueSSE:    QotMarketCNSHSecurity,
	VenueSZSE:   QotMarketCNSZSecurity,
	VenueSGX:    QotMarketSGSecurity,
}

var trdMarketVenues = map[TrdMarket]Venue{
	TrdMarketHK:   VenueHKEX,
	TrdMarketUS:   VenueNYSE,
	TrdMarketCN:   VenueSSE,
	TrdMarketHKCC: VenueHKEX,
	TrdMarketSG:   VenueSGX,
}

// Settlement currency per trade market. Absent markets settle in HKD.
var trdMarketCurrencies = map[TrdMarket]string{
	TrdMarketHK:   "HKD",
	TrdMarketUS:   "USD",
	TrdMarketCN:   "CNH",
	TrdMarketHKCC: "HKD",
	TrdMarketSG:   "SGD",
}

// VenueForQotMarket maps a vendor quote market to its canonical venue.
// Unknown markets resolve to VenueFutu.
func VenueForQotMarket(market QotMarket) Venue {
	if venue, ok := qotMarketVenues[market]; ok {
		return venue
	}
	return VenueFutu
}

// QotMarketForVenue maps a canonical venue to the vendor quote market, or 0.
func QotMarketForVenue(venue Venue) QotMarket {
	return venueQotMarkets[venue]
}

// VenueForTrdMarket maps a trade market to the venue its instruments list on.
// Unknown markets resolve to VenueFutu.
func VenueForTrdMarket(market TrdMarket) Venue {
	if venue, ok := trdMarketVenues[market]; ok {
		return venue
	}
	return VenueFutu
}

// TrdMarketForVenue maps a listing venue to the trade market its orders
// route through. Unknown venues resolve to TrdMarketUnknown.
func TrdMarketForVenue(venue Venue) TrdMarket {
	switch venue {
	case VenueHKEX:
		return TrdMarketHK
	case VenueNYSE, VenueNASDAQ:
		return TrdMarketUS
	case VenueSSE, VenueSZSE:
		return TrdMarketCN
	case VenueSGX:
		return TrdMarketSG
	default:
		return TrdMarketUnknown
	}
}

// CurrencyForTrdMarket returns the settlement currency for a trade market.
func CurrencyForTrdMarket(market TrdMarket) string {
	if currency, ok := trdMarketCurrencies[market]; ok {
		return currency
	}
	return "HKD"
}

// InstrumentID identifies a security by venue and vendor code.
type InstrumentID struct {
	Venue Venue
	Code  string
}

// NewInstrumentID builds an instrument id from a vendor quote market and code.
func NewInstrumentID(market QotMarket, code string) InstrumentID {
	return InstrumentID{Venue: VenueForQotMarket(market), Code: strings.TrimSpace(code)}
}

// String renders the id as CODE.VENUE.
func (id InstrumentID) String() string {
	return id.Code + "." + string(id.Venue)
}

// IsZero reports whether the id carries no code.
func (id InstrumentID) IsZero() bool {
	return id.Code == ""
}
