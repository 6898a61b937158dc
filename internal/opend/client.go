// Package opend declares the boundary to the OpenD gateway transport.
//
// The transport that performs network I/O and protocol framing lives outside
// the bridge; the bridge consumes it through the Client interface. Vendor
// payloads are explicit records with optional fields typed as pointers so
// that "absent" is never conflated with zero.
package opend

import (
	"context"
	"time"
)

// PushMessage is one queued push notification drained via PollPush.
type PushMessage struct {
	Kind    ProtoID
	Payload any
}

// Client is the opaque OpenD transport session shared by the bridge's
// logical consumers. Push registration is additive: StartPush merges kinds
// into the session's registration set and never removes previous kinds.
type Client interface {
	Connect(ctx context.Context, host string, port int, clientID string, clientVer int32) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	StartPush(ctx context.Context, kinds []ProtoID) error
	PollPush(ctx context.Context, timeout time.Duration) (*PushMessage, error)
	SubscribeAccountPush(ctx context.Context, accIDs []uint64) error

	UnlockTrade(ctx context.Context, unlock bool, pwdMD5 string) error
	GetAccountList(ctx context.Context) ([]AccountRecord, error)
	GetFunds(ctx context.Context, env int32, accID uint64, market int32, currency string) (*FundsRecord, error)
	GetOrderList(ctx context.Context, env int32, accID uint64, market int32) ([]OrderRecord, error)
	GetOrderFillList(ctx context.Context, env int32, accID uint64, market int32) ([]FillRecord, error)
	GetPositionList(ctx context.Context, env int32, accID uint64, market int32) ([]PositionRecord, error)
	GetSecurityStatic(ctx context.Context, market int32, code string) (*SecurityStaticRecord, error)
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResponse, error)
	ModifyOrder(ctx context.Context, req ModifyOrderRequest) error
}

// AccountRecord is one row of the venue account list.
type AccountRecord struct {
	AccID          uint64
	TrdEnv         int32
	TrdMarketAuths []int32
	AccType        *int32
	CardNum        *string
}

// FundsRecord is the venue funds snapshot for one account and market.
// AvailableFunds is populated only for certain account kinds; Cash and
// FrozenCash are always present.
type FundsRecord struct {
	Currency       string
	TotalAssets    float64
	Cash           float64
	FrozenCash     float64
	AvailableFunds *float64
	MarketVal      *float64
}

// OrderRecord is one row of the venue order list or of an order-update push.
type OrderRecord struct {
	OrderID        uint64
	OrderStatus    int32
	Code           string
	SecMarket      int32
	TrdSide        int32
	OrderType      int32
	Qty            float64
	FillQty        float64
	Price          *float64
	FillAvgPrice   *float64
	CreateTime     string
	UpdateTime     string
	Remark         *string
	LastErrMsg     *string
	TrdMarket      int32
}

// FillRecord is one row of the venue fill list or of a fill push.
type FillRecord struct {
	FillID     uint64
	OrderID    uint64
	Code       string
	SecMarket  int32
	TrdSide    int32
	Qty        float64
	Price      float64
	CreateTime string
	TrdMarket  int32
}

// PositionRecord is one row of the venue position list.
type PositionRecord struct {
	PositionID   uint64
	Code         string
	SecMarket    int32
	PositionSide int32
	Qty          float64
	CanSellQty   *float64
	CostPrice    *float64
	TrdMarket    int32
}

// SecurityStaticRecord is the static definition of one instrument.
type SecurityStaticRecord struct {
	Market    int32
	Code      string
	Name      string
	LotSize   int32
	SecType   int32
	ListTime  *string
	Delisting *bool
}

// PlaceOrderRequest carries a new-order submission.
type PlaceOrderRequest struct {
	TrdEnv    int32
	AccID     uint64
	TrdMarket int32
	TrdSide   int32
	OrderType int32
	Code      string
	SecMarket int32
	Qty       float64
	Price     *float64
	Remark    *string
}

// PlaceOrderResponse is the venue acknowledgement of a new order.
type PlaceOrderResponse struct {
	OrderID uint64
}

// ModifyOrderRequest carries a modify or cancel for a known venue order.
type ModifyOrderRequest struct {
	TrdEnv    int32
	AccID     uint64
	TrdMarket int32
	OrderID   uint64
	Op        ModifyOp
	Qty       *float64
	Price     *float64
}

// Vendor TrdSide values.
const (
	TrdSideBuy       int32 = 1
	TrdSideSell      int32 = 2
	TrdSideSellShort int32 = 3
	TrdSideBuyBack   int32 = 4
)

// Vendor OrderType values.
const (
	OrderTypeNormal        int32 = 1
	OrderTypeMarket        int32 = 2
	OrderTypeAbsoluteLimit int32 = 5
	OrderTypeAuction       int32 = 6
)
