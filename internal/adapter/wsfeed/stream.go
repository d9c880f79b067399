package wsfeed

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/quantfabric/livedata/internal/engine"
	"github.com/quantfabric/livedata/internal/model"
)

// publishStream parses a stream message and publishes the typed event.
func (c *Client) publishStream(msg timestampedMessage) {
	var env streamEnvelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.logger.Warn("failed to parse stream message", "error", err)
		return
	}

	recv := msg.ReceivedAt.UnixMicro()

	switch env.Type {
	case "quote":
		var wire quoteWire
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			c.logger.Warn("failed to parse quote", "error", err)
			return
		}
		id := c.instrumentID(wire.Symbol)
		c.pub.PublishData(engine.DataEvent{
			Kind:         model.KindQuoteTick,
			InstrumentID: id,
			ReceivedAt:   msg.ReceivedAt,
			Data: model.QuoteTick{
				InstrumentID: id,
				BidPrice:     wire.Bid,
				AskPrice:     wire.Ask,
				BidSize:      wire.BidSize,
				AskSize:      wire.AskSize,
				TsEvent:      wire.Ts,
				TsRecv:       recv,
			},
		})

	case "trade":
		var wire tradeWire
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			c.logger.Warn("failed to parse trade", "error", err)
			return
		}
		id := c.instrumentID(wire.Symbol)
		c.pub.PublishData(engine.DataEvent{
			Kind:         model.KindTradeTick,
			InstrumentID: id,
			ReceivedAt:   msg.ReceivedAt,
			Data: model.TradeTick{
				InstrumentID:  id,
				TradeID:       parseTradeID(wire.TradeID),
				Price:         wire.Price,
				Size:          wire.Size,
				AggressorSide: model.OrderSide(wire.Side),
				TsEvent:       wire.Ts,
				TsRecv:        recv,
			},
		})

	case "book_delta":
		var wire bookDeltaWire
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			c.logger.Warn("failed to parse book delta", "error", err)
			return
		}
		id := c.instrumentID(wire.Symbol)
		c.pub.PublishData(engine.DataEvent{
			Kind:         model.KindBookDelta,
			InstrumentID: id,
			ReceivedAt:   msg.ReceivedAt,
			Data: model.BookDelta{
				InstrumentID: id,
				Action:       model.BookAction(wire.Action),
				Side:         model.OrderSide(wire.Side),
				Level:        model.BookLevel{Price: wire.Price, Size: wire.Size},
				Seq:          wire.Seq,
				TsEvent:      wire.Ts,
				TsRecv:       recv,
			},
		})

	case "book_snapshot":
		var wire bookSnapshotWire
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			c.logger.Warn("failed to parse book snapshot", "error", err)
			return
		}
		id := c.instrumentID(wire.Symbol)
		c.pub.PublishData(engine.DataEvent{
			Kind:         model.KindBookSnapshot,
			InstrumentID: id,
			ReceivedAt:   msg.ReceivedAt,
			Data: model.BookSnapshot{
				InstrumentID: id,
				Bids:         parseLevels(wire.Bids),
				Asks:         parseLevels(wire.Asks),
				Seq:          wire.Seq,
				TsEvent:      wire.Ts,
				TsRecv:       recv,
			},
		})

	case "bar":
		var wire barWire
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			c.logger.Warn("failed to parse bar", "error", err)
			return
		}
		barType, err := c.barType(wire.Symbol, wire.BarSpec)
		if err != nil {
			c.logger.Warn("bar with invalid spec", "spec", wire.BarSpec, "error", err)
			return
		}
		c.pub.PublishData(engine.DataEvent{
			Kind:         model.KindBar,
			InstrumentID: barType.InstrumentID,
			ReceivedAt:   msg.ReceivedAt,
			Data: model.Bar{
				BarType: barType,
				Open:    wire.Open,
				High:    wire.High,
				Low:     wire.Low,
				Close:   wire.Close,
				Volume:  wire.Volume,
				TsEvent: wire.Ts,
				TsRecv:  recv,
			},
		})

	case "status":
		var wire statusWire
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			c.logger.Warn("failed to parse status", "error", err)
			return
		}
		id := c.instrumentID(wire.Symbol)
		c.pub.PublishData(engine.DataEvent{
			Kind:         model.KindInstrumentStatus,
			InstrumentID: id,
			ReceivedAt:   msg.ReceivedAt,
			Data: model.InstrumentStatus{
				InstrumentID: id,
				Status:       wire.Status,
				Reason:       wire.Reason,
				TsEvent:      wire.Ts,
				TsRecv:       recv,
			},
		})

	case "close":
		var wire closeWire
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			c.logger.Warn("failed to parse close", "error", err)
			return
		}
		id := c.instrumentID(wire.Symbol)
		c.pub.PublishData(engine.DataEvent{
			Kind:         model.KindInstrumentClose,
			InstrumentID: id,
			ReceivedAt:   msg.ReceivedAt,
			Data: model.InstrumentClose{
				InstrumentID: id,
				ClosePrice:   wire.ClosePrice,
				CloseType:    wire.CloseType,
				TsEvent:      wire.Ts,
				TsRecv:       recv,
			},
		})

	case "instrument":
		var wire instrumentWire
		if err := json.Unmarshal(msg.Data, &wire); err != nil {
			c.logger.Warn("failed to parse instrument", "error", err)
			return
		}
		id := c.instrumentID(wire.Symbol)
		c.pub.PublishData(engine.DataEvent{
			Kind:         model.KindInstrument,
			InstrumentID: id,
			ReceivedAt:   msg.ReceivedAt,
			Data:         instrumentFromWire(wire, c.Venue()),
		})

	default:
		c.logger.Debug("skipping stream message type", "type", env.Type)
	}
}

// instrumentID builds the framework identifier for a venue symbol.
func (c *Client) instrumentID(symbol string) model.InstrumentID {
	return model.NewInstrumentID(symbol, c.Venue())
}

// barType builds the framework bar type for a venue symbol + spec string.
func (c *Client) barType(symbol, spec string) (model.BarType, error) {
	return model.ParseBarType(c.instrumentID(symbol).String() + "-" + spec)
}

// parseTradeID parses the venue trade id, generating one when the venue
// omits or mangles it so downstream dedup still has a key.
func parseTradeID(s string) uuid.UUID {
	if id, err := uuid.Parse(s); err == nil {
		return id
	}
	return uuid.New()
}

// parseLevels converts [[price, size], ...] pairs.
func parseLevels(levels [][2]float64) []model.BookLevel {
	out := make([]model.BookLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, model.BookLevel{Price: l[0], Size: l[1]})
	}
	return out
}

// instrumentFromWire converts instrument metadata.
func instrumentFromWire(wire instrumentWire, venue model.Venue) model.Instrument {
	return model.Instrument{
		ID:             model.NewInstrumentID(wire.Symbol, venue),
		BaseCurrency:   wire.BaseCurrency,
		QuoteCurrency:  wire.QuoteCurrency,
		PriceIncrement: wire.PriceIncrement,
		SizeIncrement:  wire.SizeIncrement,
		MinSize:        wire.MinSize,
		MaxSize:        wire.MaxSize,
		Expiration:     wire.Expiration,
		TsEvent:        wire.Ts,
	}
}
