package protocol

// CommandType defines the type of the command (using uint8 for memory alignment and performance)
type CommandType uint8

// Trading commands start at 51, leaving the low range for admin commands.
const (
	CmdUnknown CommandType = 0

	CmdPlaceOrder  CommandType = 51
	CmdCancelOrder CommandType = 52
	CmdCancelAll   CommandType = 54
)

func (t CommandType) String() string {
	switch t {
	case CmdPlaceOrder:
		return "place_order"
	case CmdCancelOrder:
		return "cancel_order"
	case CmdCancelAll:
		return "cancel_all"
	default:
		return "unknown"
	}
}

// Command is the standard carrier for commands entering the Matching Engine.
// It is designed to be efficient for serialization and compatible with Event Sourcing.
type Command struct {
	// Version is the protocol version for backward compatibility.
	Version uint8 `json:"version"`

	// SeqID is used for global ordering and deduplication.
	SeqID uint64 `json:"seq_id"`

	// Type identifies the payload type for fast routing.
	Type CommandType `json:"type"`

	// Payload contains the serialized business data (e.g., JSON bytes of PlaceOrderCommand).
	// We use lazy deserialization to optimize routing performance.
	Payload []byte `json:"payload"`

	// Metadata stores non-business context (e.g., Tracing ID, Source IP).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PlaceOrderCommand is the payload for submitting a new limit order.
type PlaceOrderCommand struct {
	TraderID  string `json:"trader_id"`
	Side      Side   `json:"side"`
	Price     string `json:"price"` // Using string to prevent precision loss in JSON
	Quantity  string `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
}

// CancelOrderCommand is the payload for cancelling an existing order.
type CancelOrderCommand struct {
	OrderID   uint64 `json:"order_id"`
	Timestamp int64  `json:"timestamp"`
}

// CancelAllCommand is the payload for cancelling every resting order of a trader.
type CancelAllCommand struct {
	TraderID  string `json:"trader_id"`
	Timestamp int64  `json:"timestamp"`
}
