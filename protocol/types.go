package protocol

// Side represents the order side (Buy/Sell).
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// IsValid reports whether s is Buy or Sell.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// LogType represents the type of event log.
type LogType string

const (
	LogTypeOpen   LogType = "open"
	LogTypeMatch  LogType = "match"
	LogTypeCancel LogType = "cancel"
	LogTypeReject LogType = "reject"
)

// RejectReason represents the reason why a command was rejected.
type RejectReason string

const (
	RejectReasonNone          RejectReason = ""
	RejectReasonInvalidOrder  RejectReason = "invalid_order"   // Non-positive price or quantity, or unknown side
	RejectReasonOrderNotFound RejectReason = "order_not_found" // Cancel of an absent or already resolved order
)

// DepthItem is the wire form of one aggregated price level.
type DepthItem struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	Count    int64  `json:"count"`
}

// GetDepthResponse represents the state of the order book depth.
type GetDepthResponse struct {
	UpdateID uint64       `json:"update_id"`
	Asks     []*DepthItem `json:"asks"`
	Bids     []*DepthItem `json:"bids"`
}
