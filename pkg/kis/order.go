package kis

import (
	"context"
	"fmt"
	"strconv"

	"tradesignal/internal/engine"
	"tradesignal/internal/strategy"

	"go.uber.org/zap"
)

// OrderClient places cash orders for emitted signals. It satisfies the
// engine.OrderExecutor contract; broker-side mechanics stay behind the REST
// endpoint.
type OrderClient struct {
	rest     *RESTClient
	cano     string // account number, first 8 digits
	prdtCd   string // account product code, last 2 digits
	quantity int64
	logger   *zap.Logger
}

// NewOrderClient splits the 10-digit account into CANO and product code.
// Quantity is the fixed per-order size; position sizing is not modeled here.
func NewOrderClient(rest *RESTClient, account string, quantity int64, logger *zap.Logger) (*OrderClient, error) {
	if len(account) != 10 {
		return nil, fmt.Errorf("account must be 10 digits, got %q", account)
	}
	if quantity <= 0 {
		quantity = 1
	}
	return &OrderClient{
		rest:     rest,
		cano:     account[:8],
		prdtCd:   account[8:],
		quantity: quantity,
		logger:   logger,
	}, nil
}

// Execute places a market order matching the signal direction.
func (o *OrderClient) Execute(ctx context.Context, strategyID, instrumentID int64, sig strategy.TradingSignal) (engine.OrderResult, error) {
	var trID string
	switch sig.Type {
	case strategy.SignalBuy:
		trID = trIDOrderBuy
	case strategy.SignalSell:
		trID = trIDOrderSell
	default:
		return engine.OrderResult{}, fmt.Errorf("signal type %s is not executable", sig.Type)
	}

	token, err := o.rest.accessTokenValue(ctx)
	if err != nil {
		return engine.OrderResult{}, err
	}

	body := orderRequest{
		CANO:       o.cano,
		AcntPrdtCd: o.prdtCd,
		PDNO:       sig.InstrumentCode,
		OrdDvsn:    "01", // market order
		OrdQty:     strconv.FormatInt(o.quantity, 10),
		OrdUnpr:    "0",
	}

	var envelope Response
	headers := map[string]string{
		"authorization": "Bearer " + token,
		"appkey":        o.rest.appKey,
		"appsecret":     o.rest.appSecret,
		"tr_id":         trID,
	}
	if err := o.rest.postJSON(ctx, "/uapi/domestic-stock/v1/trading/order-cash", headers, body, &envelope); err != nil {
		return engine.OrderResult{}, fmt.Errorf("order request: %w", err)
	}

	if envelope.RtCd != "0" {
		o.logger.Warn("order rejected by broker",
			zap.String("msg_cd", envelope.MsgCd), zap.String("msg", envelope.Msg1))
		return engine.OrderResult{Success: false}, nil
	}

	var out orderOutput
	if err := unmarshalOutput(envelope, &out); err != nil {
		return engine.OrderResult{}, err
	}

	o.logger.Info("order accepted",
		zap.Int64("strategy_id", strategyID),
		zap.String("code", sig.InstrumentCode),
		zap.String("side", string(sig.Type)),
		zap.String("order_no", out.OrderNo))

	return engine.OrderResult{Success: true, OrderID: out.OrderNo}, nil
}
