package order

// OrderState implements the state pattern for order lifecycle transitions.
type OrderState interface {
	Status() Status
	CanSettle() bool
	OnPaymentAuthorized(o *Order) (OrderState, error)
	OnPaymentDeclined(o *Order, reason string) (OrderState, error)
	OnCancelled(o *Order, reason string) (OrderState, error)
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusPendingPayment:
		return pendingPaymentState{}
	case StatusPaymentFailed:
		return paymentFailedState{}
	case StatusPaid:
		return paidState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return nil
	}
}

type pendingPaymentState struct{}

func (pendingPaymentState) Status() Status  { return StatusPendingPayment }
func (pendingPaymentState) CanSettle() bool { return true }

func (pendingPaymentState) OnPaymentAuthorized(o *Order) (OrderState, error) {
	o.FailureReason = ""
	return paidState{}, nil
}

func (pendingPaymentState) OnPaymentDeclined(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return paymentFailedState{}, nil
}

func (pendingPaymentState) OnCancelled(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return cancelledState{}, nil
}

type paymentFailedState struct{}

func (paymentFailedState) Status() Status  { return StatusPaymentFailed }
func (paymentFailedState) CanSettle() bool { return true }

func (paymentFailedState) OnPaymentAuthorized(o *Order) (OrderState, error) {
	o.FailureReason = ""
	return paidState{}, nil
}

func (paymentFailedState) OnPaymentDeclined(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return paymentFailedState{}, nil
}

func (paymentFailedState) OnCancelled(o *Order, reason string) (OrderState, error) {
	o.FailureReason = reason
	return cancelledState{}, nil
}

type paidState struct{}

func (paidState) Status() Status  { return StatusPaid }
func (paidState) CanSettle() bool { return false }

func (paidState) OnPaymentAuthorized(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (paidState) OnPaymentDeclined(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (paidState) OnCancelled(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status  { return StatusCancelled }
func (cancelledState) CanSettle() bool { return false }

func (cancelledState) OnPaymentAuthorized(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnPaymentDeclined(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancelled(*Order, string) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}
