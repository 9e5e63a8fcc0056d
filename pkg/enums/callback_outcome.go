package enums

// CallbackOutcome records what a payment gateway callback did to its order.
type CallbackOutcome string

const (
	// CallbackOutcomeReceived marks a callback row whose effect is still being applied.
	CallbackOutcomeReceived       CallbackOutcome = "received"
	CallbackOutcomePaid           CallbackOutcome = "paid"
	CallbackOutcomeAlreadyPaid    CallbackOutcome = "already_paid"
	CallbackOutcomePaymentFailed  CallbackOutcome = "payment_failed"
	CallbackOutcomeOrderCancelled CallbackOutcome = "order_cancelled"
	CallbackOutcomeAmountMismatch CallbackOutcome = "amount_mismatch"
)

// String implements fmt.Stringer.
func (c CallbackOutcome) String() string {
	return string(c)
}

// Succeeded reports whether the order is settled after this outcome.
func (c CallbackOutcome) Succeeded() bool {
	return c == CallbackOutcomePaid || c == CallbackOutcomeAlreadyPaid
}
