package wire

import "fenrir/internal/book"

// BuildReport translates an engine Execution into its outbound wire form.
// avg-price is defined, for this simulator, as the last fill price when the
// execution carries a fill, else zero; last-qty/last-price are populated
// only when the execution carries a fill.
func BuildReport(exec *book.Execution) ExecutionReportMessage {
	r := ExecutionReportMessage{
		ExchangeOrderID: exec.ExchangeID,
		ExecutionID:     exec.ExecID,
		ExecType:        exec.Type,
		OrderStatus:     exec.Status,
		Side:            exec.Side,
		Symbol:          exec.Symbol,
		ClientID:        exec.ClientID,
		OrigClientID:    exec.OrigClientID,
		LeavesQty:       exec.LeavesQty,
		CumQty:          exec.CumQty,
		Timestamp:       exec.Timestamp,
	}
	if exec.Quantity > 0 {
		r.LastQty = exec.Quantity
		r.LastPrice = exec.Price
		r.AvgPrice = exec.Price
	}
	return r
}

// BuildReports translates a full execution batch, preserving order.
func BuildReports(execs []*book.Execution) []ExecutionReportMessage {
	reports := make([]ExecutionReportMessage, len(execs))
	for i, e := range execs {
		reports[i] = BuildReport(e)
	}
	return reports
}
