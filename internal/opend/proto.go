package opend

// ProtoID numbers the OpenD gateway protocol messages the bridge touches.
// Push kinds must remain stable and unique within one registration set.
type ProtoID uint32

const (
	// ProtoGetAccList queries the trading account list.
	ProtoGetAccList ProtoID = 2001
	// ProtoUnlockTrade unlocks real-environment trading with a password hash.
	ProtoUnlockTrade ProtoID = 2005
	// ProtoSubAccPush subscribes trade pushes for a set of accounts.
	ProtoSubAccPush ProtoID = 2008
	// ProtoGetFunds queries account funds for one market and currency.
	ProtoGetFunds ProtoID = 2101
	// ProtoGetPositionList queries open positions for one market.
	ProtoGetPositionList ProtoID = 2102
	// ProtoGetOrderList queries working and historical orders for one market.
	ProtoGetOrderList ProtoID = 2201
	// ProtoPlaceOrder submits a new order.
	ProtoPlaceOrder ProtoID = 2202
	// ProtoModifyOrder modifies or cancels an existing order.
	ProtoModifyOrder ProtoID = 2205
	// ProtoUpdateOrder is the order-update push carrying cumulative totals.
	ProtoUpdateOrder ProtoID = 2208
	// ProtoGetOrderFillList queries executions for one market.
	ProtoGetOrderFillList ProtoID = 2211
	// ProtoUpdateOrderFill is the fill push carrying one execution delta.
	ProtoUpdateOrderFill ProtoID = 2218

	// ProtoUpdateBasicQot is the basic quote push.
	ProtoUpdateBasicQot ProtoID = 3005
	// ProtoUpdateKL is the K-line push.
	ProtoUpdateKL ProtoID = 3007
	// ProtoUpdateRT is the real-time data push.
	ProtoUpdateRT ProtoID = 3009
	// ProtoUpdateTicker is the tick-by-tick trade push.
	ProtoUpdateTicker ProtoID = 3011
	// ProtoUpdateOrderBook is the order book push.
	ProtoUpdateOrderBook ProtoID = 3013
)

// ModifyOp selects the ProtoModifyOrder operation.
type ModifyOp int32

const (
	// ModifyOpNormal changes price or quantity.
	ModifyOpNormal ModifyOp = 1
	// ModifyOpCancel cancels the order.
	ModifyOpCancel ModifyOp = 2
)
