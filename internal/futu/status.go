// Package futu implements the execution-event reconciliation and
// push-dispatch engine bridging the OpenD gateway to the trading engine.
package futu

import "github.com/coachpo/futubridge/internal/schema"

// orderStatusTable maps every documented vendor order-status code to its
// canonical state. Reviewed against the gateway's declared code range;
// codes outside the table resolve to INITIALIZED via MapOrderStatus.
var orderStatusTable = map[int32]schema.OrderStatus{
	-1: schema.OrderStatusInitialized, // Unknown
	0:  schema.OrderStatusInitialized, // Unsubmitted
	1:  schema.OrderStatusSubmitted,   // WaitingSubmit
	2:  schema.OrderStatusSubmitted,   // Submitting
	3:  schema.OrderStatusRejected,    // SubmitFailed
	4:  schema.OrderStatusRejected,    // TimeOut
	5:  schema.OrderStatusAccepted,    // Submitted
	10: schema.OrderStatusPartiallyFilled,
	11: schema.OrderStatusFilled,
	12: schema.OrderStatusPendingCancel, // CancellingPart
	13: schema.OrderStatusPendingCancel, // CancellingAll
	14: schema.OrderStatusCanceled,     // CancelledPart
	15: schema.OrderStatusCanceled,     // CancelledAll
	21: schema.OrderStatusRejected,     // Failed
	22: schema.OrderStatusCanceled,     // Disabled
	23: schema.OrderStatusCanceled,     // Deleted
	24: schema.OrderStatusCanceled,     // FillCancelled
}

// MapOrderStatus resolves a vendor order-status code to the canonical state.
// Total over the integer range: unrecognized codes resolve to INITIALIZED and
// the second return reports whether the code was known.
func MapOrderStatus(code int32) (schema.OrderStatus, bool) {
	if status, ok := orderStatusTable[code]; ok {
		return status, true
	}
	return schema.OrderStatusInitialized, false
}
