package opend

// Vendor order status codes as reported in OrderRecord.OrderStatus.
// The documented range; the bridge maps every value, known or not.
const (
	OrderStatusUnknown        int32 = -1
	OrderStatusUnsubmitted    int32 = 0
	OrderStatusWaitingSubmit  int32 = 1
	OrderStatusSubmitting     int32 = 2
	OrderStatusSubmitFailed   int32 = 3
	OrderStatusTimeOut        int32 = 4
	OrderStatusSubmitted      int32 = 5
	OrderStatusFilledPart     int32 = 10
	OrderStatusFilledAll      int32 = 11
	OrderStatusCancellingPart int32 = 12
	OrderStatusCancellingAll  int32 = 13
	OrderStatusCancelledPart  int32 = 14
	OrderStatusCancelledAll   int32 = 15
	OrderStatusFailed         int32 = 21
	OrderStatusDisabled       int32 = 22
	OrderStatusDeleted        int32 = 23
	OrderStatusFillCancelled  int32 = 24
)
