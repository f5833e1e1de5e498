package order

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPendingPayment    Status = "pending_payment"
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusShipped           Status = "shipped"
	StatusDelivered         Status = "delivered"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// transitions lists the admin-selectable moves. Refund statuses are never a
// target: only the refund processor sets them.
var transitions = map[Status][]Status{
	StatusPendingPayment:    {StatusPending, StatusCancelled},
	StatusPending:           {StatusProcessing, StatusCancelled},
	StatusProcessing:        {StatusShipped, StatusCancelled},
	StatusShipped:           {StatusDelivered, StatusCancelled},
	StatusPartiallyRefunded: {StatusCancelled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPending, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded, StatusPartiallyRefunded:
		return true
	default:
		return false
	}
}

// Refundable reports whether an order in status s accepts refunds.
func (s Status) Refundable() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusPartiallyRefunded:
		return true
	default:
		return false
	}
}

// CanTransition reports whether an admin may move an order from one status
// to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) isRefund() bool {
	return s == StatusRefunded || s == StatusPartiallyRefunded
}

// InitialStatus returns the status a freshly placed order starts in.
func InitialStatus(requiresConfirmation bool) Status {
	if requiresConfirmation {
		return StatusPendingPayment
	}
	return StatusPending
}
