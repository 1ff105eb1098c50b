package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0x5487/limitbook/protocol"
	"github.com/0x5487/limitbook/structure"
	"github.com/shopspring/decimal"
)

type requestType uint8

const (
	reqSubmit requestType = iota + 1
	reqCancel
	reqCancelAll
	reqOrder
	reqBestBid
	reqBestAsk
	reqLastTrade
	reqDepth
	reqStats
	reqSnapshot
	reqCheck
)

func (t requestType) mutates() bool {
	return t == reqSubmit || t == reqCancel || t == reqCancelAll
}

// request is the unit of work sent to the processing goroutine.
// resp is nil for fire-and-forget commands coming from EnqueueCommand.
type request struct {
	typ     requestType
	seqID   uint64
	payload any
	resp    chan response
}

type response struct {
	data any
	err  error
}

type submitPayload struct {
	traderID string
	side     Side
	price    decimal.Decimal
	quantity decimal.Decimal
}

type priceResult struct {
	price decimal.Decimal
	ok    bool
}

// MatchingEngine hosts one OrderBook behind a single processing goroutine.
// Every mutation and every consistent read is a command on one channel, so
// price-time priority follows command arrival order.
type MatchingEngine struct {
	book             *OrderBook
	cmdChan          chan request
	done             chan struct{}
	shutdownComplete chan struct{}
	lifecycleMu      sync.Mutex // Serializes Start, Restore and Shutdown state changes
	inflight         atomic.Int64
	isStarted        atomic.Bool
	isShutdown       atomic.Bool
	isHalted         atomic.Bool
	lastCmdSeqID     atomic.Uint64 // Last processed command sequence ID from the host

	publishLog       PublishLog
	serializer       protocol.Serializer
	logger           *slog.Logger
	strictInvariants bool
	cmdBuffer        int
	arenaCapacity    int32
}

// NewMatchingEngine creates an engine with an empty book. Call Start to run it.
func NewMatchingEngine(opts ...Option) *MatchingEngine {
	engine := &MatchingEngine{
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
		publishLog:       NewDiscardPublishLog(),
		serializer:       &protocol.DefaultJSONSerializer{},
		logger:           logger,
		cmdBuffer:        DefaultCommandBuffer,
		arenaCapacity:    DefaultArenaCapacity,
	}

	for _, opt := range opts {
		opt(engine)
	}

	engine.cmdChan = make(chan request, engine.cmdBuffer)
	engine.book = newOrderBook(engine.arenaCapacity, structure.ListOptions{
		OnGrow: func(oldCap, newCap int32) {
			engine.logger.Info("order arena grown", "old_capacity", oldCap, "new_capacity", newCap)
		},
	})

	return engine
}

// SubmitLimitOrder places a new limit order, crossing it against the opposite side first.
// The returned trades are in execution order.
func (engine *MatchingEngine) SubmitLimitOrder(ctx context.Context, traderID string, side Side, price, quantity decimal.Decimal) (*SubmitResult, error) {
	data, err := engine.call(ctx, request{
		typ: reqSubmit,
		payload: &submitPayload{
			traderID: traderID,
			side:     side,
			price:    price,
			quantity: quantity,
		},
	})
	result, _ := data.(*SubmitResult)
	return result, err
}

// CancelOrder removes a resting order and returns it with status cancelled.
// Returns ErrUnknownOrder if the order is not resting (never existed, filled or already cancelled).
func (engine *MatchingEngine) CancelOrder(ctx context.Context, orderID uint64) (*Order, error) {
	data, err := engine.call(ctx, request{typ: reqCancel, payload: orderID})
	order, _ := data.(*Order)
	return order, err
}

// CancelAll cancels every resting order of a trader, in ascending order id.
func (engine *MatchingEngine) CancelAll(ctx context.Context, traderID string) ([]Order, error) {
	if len(traderID) == 0 {
		return nil, ErrInvalidParam
	}

	data, err := engine.call(ctx, request{typ: reqCancelAll, payload: traderID})
	orders, _ := data.([]Order)
	return orders, err
}

// Order returns a copy of a resting order.
func (engine *MatchingEngine) Order(ctx context.Context, orderID uint64) (*Order, error) {
	data, err := engine.call(ctx, request{typ: reqOrder, payload: orderID})
	order, _ := data.(*Order)
	return order, err
}

// BestBidPrice returns the highest resting buy price. ok is false when there are no bids.
func (engine *MatchingEngine) BestBidPrice(ctx context.Context) (price decimal.Decimal, ok bool, err error) {
	return engine.price(ctx, reqBestBid)
}

// BestAskPrice returns the lowest resting sell price. ok is false when there are no asks.
func (engine *MatchingEngine) BestAskPrice(ctx context.Context) (price decimal.Decimal, ok bool, err error) {
	return engine.price(ctx, reqBestAsk)
}

// LastTradePrice returns the price of the most recent trade. ok is false before the first trade.
func (engine *MatchingEngine) LastTradePrice(ctx context.Context) (price decimal.Decimal, ok bool, err error) {
	return engine.price(ctx, reqLastTrade)
}

func (engine *MatchingEngine) price(ctx context.Context, typ requestType) (decimal.Decimal, bool, error) {
	data, err := engine.call(ctx, request{typ: typ})
	if err != nil {
		return decimal.Zero, false, err
	}
	result, _ := data.(priceResult)
	return result.price, result.ok, nil
}

// Depth returns up to limit aggregated levels per side, best price first.
// A zero limit returns every level.
func (engine *MatchingEngine) Depth(ctx context.Context, limit uint32) (*Depth, error) {
	data, err := engine.call(ctx, request{typ: reqDepth, payload: limit})
	if err != nil {
		return nil, err
	}
	depth, _ := data.(*Depth)
	return depth, nil
}

// Stats returns level and order counts of both sides.
func (engine *MatchingEngine) Stats(ctx context.Context) (*BookStats, error) {
	data, err := engine.call(ctx, request{typ: reqStats})
	if err != nil {
		return nil, err
	}
	stats, _ := data.(*BookStats)
	return stats, nil
}

// TakeSnapshot captures a consistent copy of the whole book.
func (engine *MatchingEngine) TakeSnapshot(ctx context.Context) (*OrderBookSnapshot, error) {
	data, err := engine.call(ctx, request{typ: reqSnapshot})
	if err != nil {
		return nil, err
	}
	snap, _ := data.(*OrderBookSnapshot)
	return snap, nil
}

// CheckInvariants runs the full structural check of the book.
// A violation halts the engine.
func (engine *MatchingEngine) CheckInvariants(ctx context.Context) error {
	_, err := engine.call(ctx, request{typ: reqCheck})
	return err
}

// Restore replaces the book with the content of a snapshot.
// It must be called before Start.
func (engine *MatchingEngine) Restore(snap *OrderBookSnapshot) error {
	engine.lifecycleMu.Lock()
	defer engine.lifecycleMu.Unlock()

	if engine.isStarted.Load() {
		return ErrEngineRunning
	}

	if err := engine.book.restore(snap); err != nil {
		return err
	}
	engine.lastCmdSeqID.Store(snap.LastCmdSeqID)

	engine.logger.Info("order book restored",
		"bids", len(snap.Bids),
		"asks", len(snap.Asks),
		"last_order_id", snap.LastOrderID,
		"last_cmd_seq_id", snap.LastCmdSeqID,
	)
	return nil
}

// LastCmdSeqID returns the sequence ID of the last processed host command.
// This is used for snapshot recovery to know where to resume consuming from.
func (engine *MatchingEngine) LastCmdSeqID() uint64 {
	return engine.lastCmdSeqID.Load()
}

// IsHalted reports whether an invariant violation has stopped the book.
func (engine *MatchingEngine) IsHalted() bool {
	return engine.isHalted.Load()
}

// EnqueueCommand decodes a host command and queues it without waiting for the result.
// Outcomes, rejects included, are delivered through the PublishLog.
// Commands whose SeqID is not newer than LastCmdSeqID are skipped as duplicates.
func (engine *MatchingEngine) EnqueueCommand(ctx context.Context, cmd *protocol.Command) error {
	if cmd == nil {
		return ErrInvalidParam
	}

	req := request{seqID: cmd.SeqID}

	switch cmd.Type {
	case protocol.CmdPlaceOrder:
		payload := &protocol.PlaceOrderCommand{}
		if err := engine.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return fmt.Errorf("%w: %s payload: %w", ErrInvalidParam, cmd.Type, err)
		}
		price, err := decimal.NewFromString(payload.Price)
		if err != nil {
			return fmt.Errorf("%w: price %q", ErrInvalidOrder, payload.Price)
		}
		quantity, err := decimal.NewFromString(payload.Quantity)
		if err != nil {
			return fmt.Errorf("%w: quantity %q", ErrInvalidOrder, payload.Quantity)
		}
		req.typ = reqSubmit
		req.payload = &submitPayload{
			traderID: payload.TraderID,
			side:     payload.Side,
			price:    price,
			quantity: quantity,
		}
	case protocol.CmdCancelOrder:
		payload := &protocol.CancelOrderCommand{}
		if err := engine.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return fmt.Errorf("%w: %s payload: %w", ErrInvalidParam, cmd.Type, err)
		}
		req.typ = reqCancel
		req.payload = payload.OrderID
	case protocol.CmdCancelAll:
		payload := &protocol.CancelAllCommand{}
		if err := engine.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return fmt.Errorf("%w: %s payload: %w", ErrInvalidParam, cmd.Type, err)
		}
		if len(payload.TraderID) == 0 {
			return ErrInvalidParam
		}
		req.typ = reqCancelAll
		req.payload = payload.TraderID
	default:
		engine.logger.Warn("unknown command type", "type", uint8(cmd.Type), "seq_id", cmd.SeqID)
		return ErrUnknownCommand
	}

	return engine.send(ctx, req)
}

// Start runs the processing loop on the calling goroutine.
// Returns nil when Shutdown() is called and all pending commands are drained.
func (engine *MatchingEngine) Start() error {
	engine.lifecycleMu.Lock()
	if !engine.isStarted.CompareAndSwap(false, true) {
		engine.lifecycleMu.Unlock()
		if engine.isShutdown.Load() {
			return ErrShutdown
		}
		return ErrEngineRunning
	}
	engine.lifecycleMu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	engine.logger.Info("matching engine started", "version", EngineVersion, "command_buffer", engine.cmdBuffer)

	for {
		select {
		case <-engine.done:
			return engine.drain()
		case req := <-engine.cmdChan:
			engine.process(req)
		}
	}
}

// Shutdown signals the engine to stop accepting new commands and waits for all pending commands to be processed.
// The method blocks until all commands are drained or the context is cancelled/timed out.
// Returns nil if shutdown completed successfully, or ctx.Err() if the context was cancelled.
func (engine *MatchingEngine) Shutdown(ctx context.Context) error {
	engine.lifecycleMu.Lock()
	if engine.isShutdown.CompareAndSwap(false, true) {
		close(engine.done)

		// Never started: nothing to drain.
		if engine.isStarted.CompareAndSwap(false, true) {
			close(engine.shutdownComplete)
		}
	}
	engine.lifecycleMu.Unlock()

	select {
	case <-engine.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain processes all remaining commands in the channel before returning.
// Senders that passed the shutdown check before it was set are waited for,
// so every accepted command is processed.
func (engine *MatchingEngine) drain() error {
	defer close(engine.shutdownComplete)

	count := 0
	for {
		select {
		case req := <-engine.cmdChan:
			engine.process(req)
			count++
		default:
			if engine.inflight.Load() == 0 && len(engine.cmdChan) == 0 {
				engine.logger.Info("matching engine stopped", "drained", count, "last_cmd_seq_id", engine.lastCmdSeqID.Load())
				return nil
			}
			runtime.Gosched()
		}
	}
}

// send queues a request. It never waits for the result.
func (engine *MatchingEngine) send(ctx context.Context, req request) error {
	engine.inflight.Add(1)
	defer engine.inflight.Add(-1)

	if engine.isShutdown.Load() {
		return ErrShutdown
	}

	select {
	case engine.cmdChan <- req:
		return nil
	case <-engine.done:
		return ErrShutdown
	case <-ctx.Done():
		return ErrTimeout
	}
}

// call queues a request and waits for its response.
func (engine *MatchingEngine) call(ctx context.Context, req request) (any, error) {
	req.resp = make(chan response, 1)

	if err := engine.send(ctx, req); err != nil {
		return nil, err
	}

	select {
	case res := <-req.resp:
		return res.data, res.err
	case <-engine.shutdownComplete:
		// The request may have been drained right before the loop exited.
		select {
		case res := <-req.resp:
			return res.data, res.err
		default:
			return nil, ErrShutdown
		}
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// process runs one request on the processing goroutine.
func (engine *MatchingEngine) process(req request) {
	if req.seqID > 0 && req.seqID <= engine.lastCmdSeqID.Load() {
		engine.logger.Debug("duplicate command skipped", "seq_id", req.seqID, "last_cmd_seq_id", engine.lastCmdSeqID.Load())
		return
	}

	res := engine.execute(req)

	// Update lastCmdSeqID after processing each command (for snapshot recovery)
	if req.seqID > 0 {
		engine.lastCmdSeqID.Store(req.seqID)
	}

	if req.resp != nil {
		req.resp <- res
	}
}

func (engine *MatchingEngine) execute(req request) response {
	book := engine.book

	if req.typ.mutates() && engine.isHalted.Load() {
		return response{err: ErrBookHalted}
	}

	var res response

	switch req.typ {
	case reqSubmit:
		p, _ := req.payload.(*submitPayload)
		result, err := book.submitLimitOrder(p.traderID, p.side, p.price, p.quantity)
		res = response{data: result, err: err}
		if err != nil {
			engine.logger.Debug("order rejected", "trader_id", p.traderID, "side", p.side, "price", p.price, "quantity", p.quantity, "error", err)
		}
	case reqCancel:
		id, _ := req.payload.(uint64)
		order, err := book.cancelOrder(id)
		res = response{data: order, err: err}
		if err != nil {
			engine.logger.Debug("cancel rejected", "order_id", id, "error", err)
		}
	case reqCancelAll:
		traderID, _ := req.payload.(string)
		orders, err := book.cancelAll(traderID)
		res = response{data: orders, err: err}
	case reqOrder:
		id, _ := req.payload.(uint64)
		order, err := book.order(id)
		res = response{data: order, err: err}
	case reqBestBid:
		price, ok := book.bestBidPrice()
		res.data = priceResult{price: price, ok: ok}
	case reqBestAsk:
		price, ok := book.bestAskPrice()
		res.data = priceResult{price: price, ok: ok}
	case reqLastTrade:
		price, ok := book.lastTrade()
		res.data = priceResult{price: price, ok: ok}
	case reqDepth:
		limit, _ := req.payload.(uint32)
		res.data = book.depth(limit)
	case reqStats:
		res.data = book.stats()
	case reqSnapshot:
		snap := book.createSnapshot()
		snap.LastCmdSeqID = engine.lastCmdSeqID.Load()
		snap.Timestamp = time.Now().UnixNano()
		res.data = snap
	case reqCheck:
		if err := book.checkInvariants(true); err != nil {
			engine.halt(err)
			res.err = err
		}
	default:
		res.err = ErrUnknownCommand
	}

	if req.typ.mutates() {
		engine.afterMutation(&res)
	}

	return res
}

// afterMutation verifies the book and publishes the logs of the command.
// A violation halts the book: the result is still returned, with the violation as error.
func (engine *MatchingEngine) afterMutation(res *response) {
	if !errors.Is(res.err, ErrInvariantViolation) {
		if err := engine.book.checkInvariants(engine.strictInvariants); err != nil {
			res.err = err
		}
	}
	if errors.Is(res.err, ErrInvariantViolation) {
		engine.halt(res.err)
	}

	logs := engine.book.drainLogs()
	if len(logs) == 0 {
		return
	}
	engine.publishLog.Publish(logs...)
	for _, log := range logs {
		releaseBookLog(log)
	}
}

func (engine *MatchingEngine) halt(err error) {
	if engine.isHalted.CompareAndSwap(false, true) {
		engine.logger.Error("order book halted", "error", err, "last_cmd_seq_id", engine.lastCmdSeqID.Load())
	}
}
