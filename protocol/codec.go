// Package protocol implements the line-delimited text protocol spoken by
// trader connections and by the historical data file.
//
// Inbound grammar (one command per line, comma separated):
//
//	N,<instrument>,<B|S>,<price>,<qty>,<orderID>   new limit order
//	X,<instrument>,<orderID>                       cancel
//	Q,<instrument>                                 quote request
//
// Outbound lines are produced by the Format* helpers. The record delimiter
// is a single '\n' appended by the transport, not by this package.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedCommand is returned for any line that does not decode into a
// known command. The engine must not mutate any state for such lines.
var ErrMalformedCommand = errors.New("malformed command")

// ParseCommand decodes a single protocol line into a Command.
func ParseCommand(line string) (*Command, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedCommand)
	}

	fields := strings.Split(line, ",")

	switch fields[0] {
	case "N":
		return parseNewOrder(fields)
	case "X":
		return parseCancel(fields)
	case "Q":
		return parseQuote(fields)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedCommand, fields[0])
	}
}

func parseNewOrder(fields []string) (*Command, error) {
	if len(fields) != 6 {
		return nil, fmt.Errorf("%w: N expects 6 fields, got %d", ErrMalformedCommand, len(fields))
	}

	instrument, err := parseInstrument(fields[1])
	if err != nil {
		return nil, err
	}

	var side Side
	switch fields[2] {
	case "B":
		side = SideBuy
	case "S":
		side = SideSell
	default:
		return nil, fmt.Errorf("%w: bad side %q", ErrMalformedCommand, fields[2])
	}

	price, err := decimal.NewFromString(fields[3])
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: bad price %q", ErrMalformedCommand, fields[3])
	}

	qty, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil || qty <= 0 {
		return nil, fmt.Errorf("%w: bad quantity %q", ErrMalformedCommand, fields[4])
	}

	orderID, err := strconv.ParseUint(fields[5], 10, 64)
	if err != nil || orderID == 0 {
		return nil, fmt.Errorf("%w: bad order id %q", ErrMalformedCommand, fields[5])
	}

	return &Command{
		Kind:       KindNewOrder,
		Instrument: instrument,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		OrderID:    orderID,
	}, nil
}

func parseCancel(fields []string) (*Command, error) {
	if len(fields) != 3 {
		return nil, fmt.Errorf("%w: X expects 3 fields, got %d", ErrMalformedCommand, len(fields))
	}

	instrument, err := parseInstrument(fields[1])
	if err != nil {
		return nil, err
	}

	orderID, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil || orderID == 0 {
		return nil, fmt.Errorf("%w: bad order id %q", ErrMalformedCommand, fields[2])
	}

	return &Command{
		Kind:       KindCancel,
		Instrument: instrument,
		OrderID:    orderID,
	}, nil
}

func parseQuote(fields []string) (*Command, error) {
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: Q expects 2 fields, got %d", ErrMalformedCommand, len(fields))
	}

	instrument, err := parseInstrument(fields[1])
	if err != nil {
		return nil, err
	}

	return &Command{
		Kind:       KindQuote,
		Instrument: instrument,
	}, nil
}

func parseInstrument(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad instrument %q", ErrMalformedCommand, s)
	}
	return uint32(id), nil
}

// FormatTrade renders a trade notification line.
// Layout: T,<instrument>,<price>,<qty>,<buyOrderID>,<sellOrderID>,<ts>
func FormatTrade(instrument uint32, price decimal.Decimal, qty int64, buyOrderID, sellOrderID uint64, ts int64) string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString("T,")
	b.WriteString(strconv.FormatUint(uint64(instrument), 10))
	b.WriteByte(',')
	b.WriteString(price.String())
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(qty, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(buyOrderID, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatUint(sellOrderID, 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(ts, 10))
	return b.String()
}

// FormatReject renders a rejection line sent to the originating connection.
func FormatReject(reason string, orderID uint64) string {
	if orderID == 0 {
		return "R," + reason
	}
	return "R," + reason + "," + strconv.FormatUint(orderID, 10)
}

// FormatCancelled renders a cancel confirmation line.
func FormatCancelled(instrument uint32, orderID uint64) string {
	return "C," + strconv.FormatUint(uint64(instrument), 10) + "," + strconv.FormatUint(orderID, 10)
}

// FormatQuote renders a quote reply line.
// Layout: Q,<instrument>,<last>,<volume>,<bid>,<bidSize>,<ask>,<askSize>
// Empty book sides render as "-" with a zero size.
func FormatQuote(instrument uint32, last decimal.Decimal, volume int64, bid, ask decimal.Decimal, bidSize, askSize int64) string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString("Q,")
	b.WriteString(strconv.FormatUint(uint64(instrument), 10))
	b.WriteByte(',')
	if last.IsZero() {
		b.WriteByte('-')
	} else {
		b.WriteString(last.String())
	}
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(volume, 10))
	b.WriteByte(',')
	writeLevel(&b, bid, bidSize)
	b.WriteByte(',')
	writeLevel(&b, ask, askSize)
	return b.String()
}

func writeLevel(b *strings.Builder, price decimal.Decimal, size int64) {
	if size == 0 {
		b.WriteString("-,0")
		return
	}
	b.WriteString(price.String())
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(size, 10))
}
