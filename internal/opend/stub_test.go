package opend

import (
	"context"
	"time"
)

// stubClient satisfies Client with no behaviour; registry tests only need identity.
// The padding field keeps the struct non-zero-sized so each &stubClient{} gets a
// distinct address (all zero-size allocations may share one address).
type stubClient struct{ _ byte }

func (s *stubClient) Connect(context.Context, string, int, string, int32) error { return nil }
func (s *stubClient) Disconnect(context.Context) error                          { return nil }
func (s *stubClient) IsConnected() bool                                         { return false }
func (s *stubClient) StartPush(context.Context, []ProtoID) error                { return nil }
func (s *stubClient) PollPush(context.Context, time.Duration) (*PushMessage, error) {
	return nil, nil
}
func (s *stubClient) SubscribeAccountPush(context.Context, []uint64) error { return nil }
func (s *stubClient) UnlockTrade(context.Context, bool, string) error      { return nil }
func (s *stubClient) GetAccountList(context.Context) ([]AccountRecord, error) {
	return nil, nil
}
func (s *stubClient) GetFunds(context.Context, int32, uint64, int32, string) (*FundsRecord, error) {
	return nil, nil
}
func (s *stubClient) GetOrderList(context.Context, int32, uint64, int32) ([]OrderRecord, error) {
	return nil, nil
}
func (s *stubClient) GetOrderFillList(context.Context, int32, uint64, int32) ([]FillRecord, error) {
	return nil, nil
}
func (s *stubClient) GetPositionList(context.Context, int32, uint64, int32) ([]PositionRecord, error) {
	return nil, nil
}
func (s *stubClient) GetSecurityStatic(context.Context, int32, string) (*SecurityStaticRecord, error) {
	return nil, nil
}
func (s *stubClient) PlaceOrder(context.Context, PlaceOrderRequest) (*PlaceOrderResponse, error) {
	return nil, nil
}
func (s *stubClient) ModifyOrder(context.Context, ModifyOrderRequest) error { return nil }
