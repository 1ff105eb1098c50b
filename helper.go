package match

import "github.com/0x5487/limitbook/protocol"

// CalculateDepthChange calculates the depth change based on the book log.
// It returns a DepthChange struct indicating which side and price level should be updated.
// Note: For LogTypeMatch, the side returned is the Maker's side (opposite of the log's side).
func CalculateDepthChange(log *BookLog) DepthChange {
	switch log.Type {
	case LogTypeOpen:
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: log.Size,
		}
	case LogTypeCancel:
		return DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: log.Size.Neg(),
		}
	case LogTypeMatch:
		// Match reduces liquidity from the Maker side.
		// The log.Side is the Taker's side, so we update the opposite side.
		return DepthChange{
			Side:     log.Side.Opposite(),
			Price:    log.Price,
			SizeDiff: log.Size.Neg(),
		}
	case LogTypeReject:
		// Rejected orders never entered the book, so no depth change.
		return DepthChange{}
	}

	return DepthChange{}
}

// ToResponse converts the depth into its wire form.
func (d *Depth) ToResponse() *protocol.GetDepthResponse {
	convert := func(items []DepthItem) []*protocol.DepthItem {
		result := make([]*protocol.DepthItem, 0, len(items))
		for _, item := range items {
			result = append(result, &protocol.DepthItem{
				Price:    item.Price.String(),
				Quantity: item.Quantity.String(),
				Count:    item.Count,
			})
		}
		return result
	}

	return &protocol.GetDepthResponse{
		UpdateID: d.UpdateID,
		Asks:     convert(d.Asks),
		Bids:     convert(d.Bids),
	}
}
