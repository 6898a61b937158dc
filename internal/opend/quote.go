package opend

// BasicQotRecord is one basic quote push row.
type BasicQotRecord struct {
	Code        string
	SecMarket   int32
	CurPrice    float64
	OpenPrice   float64
	HighPrice   float64
	LowPrice    float64
	PriceSpread *float64
	Volume      int64
	Turnover    float64
	UpdateTime  string
}

// TickerRecord is one tick-by-tick trade push row.
type TickerRecord struct {
	Code      string
	SecMarket int32
	Sequence  int64
	Price     float64
	Volume    int64
	Dir       int32
	Time      string
}

// KLRecord is one K-line push row.
type KLRecord struct {
	Code      string
	SecMarket int32
	KLType    int32
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	Time      string
}

// PriceLevel is one side level of an order book push.
type PriceLevel struct {
	Price  float64
	Volume int64
	Orders int32
}

// OrderBookRecord is one order book push row.
type OrderBookRecord struct {
	Code      string
	SecMarket int32
	Bids      []PriceLevel
	Asks      []PriceLevel
	Time      string
}
