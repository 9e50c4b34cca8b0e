package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"bot-mirror/src/helpers"
	"bot-mirror/src/models"

	"github.com/tidwall/gjson"
)

// ErrUnknownType marks a well-formed message whose tag this client does not know.
var ErrUnknownType = errors.New("unknown message type")

type decoderFunc func(payload []byte) (Action, error)

var decoders = map[string]decoderFunc{
	models.MsgStatusUpdate: func(p []byte) (Action, error) {
		v, err := decodeInto[models.MBotStatus](p)
		return StatusUpdate{Status: v}, err
	},
	models.MsgDailyPerformanceUpdate: func(p []byte) (Action, error) {
		v, err := decodeInto[models.MDailyPerformance](p)
		return PerformanceUpdate{Performance: v}, err
	},
	models.MsgTradeStatusUpdate: decodeTradeStatus,
	models.MsgDebugLog: func(p []byte) (Action, error) {
		v, err := decodeInto[models.MDebugLogEntry](p)
		return DebugLog{Entry: v}, err
	},
	models.MsgNewTradeLog: func(p []byte) (Action, error) {
		v, err := decodeInto[models.MTradeRecord](p)
		return TradeCompleted{Trade: v}, err
	},
	models.MsgTradeLogUpdate: func(p []byte) (Action, error) {
		v, err := decodeInto[[]models.MTradeRecord](p)
		return TradeLogSnapshot{Trades: newestFirst(v)}, err
	},
	models.MsgOptionChainUpdate: func(p []byte) (Action, error) {
		v, err := decodeInto[[]models.MOptionChainRow](p)
		return OptionChainUpdate{Rows: v}, err
	},
	models.MsgChartDataUpdate: func(p []byte) (Action, error) {
		v, err := decodeInto[models.MChartSeries](p)
		return ChartDataUpdate{Series: v}, err
	},
	models.MsgUOAListUpdate: func(p []byte) (Action, error) {
		v, err := decodeInto[[]models.MWatchEntry](p)
		return WatchlistUpdate{Entries: v}, err
	},
	models.MsgSystemWarning: decodeSystemWarning,
	models.MsgPlaySound: func(p []byte) (Action, error) {
		v, err := decodeInto[string](p)
		if err == nil && v == "" {
			err = errors.New("empty sound name")
		}
		return PlaySound{Name: v}, err
	},
	models.MsgPong: func([]byte) (Action, error) {
		return Pong{}, nil
	},
}

// -----------------------------------------------------------------------------

// Decode parses one raw frame into its Action.
func Decode(raw []byte) (Action, error) {
	if !gjson.ValidBytes(raw) {
		return nil, helpers.NewProtocolError("malformed frame", nil)
	}

	tag := gjson.GetBytes(raw, "type")
	if tag.Type != gjson.String || tag.Str == "" {
		return nil, helpers.NewProtocolError("frame without a type tag", nil)
	}

	decode, ok := decoders[tag.Str]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag.Str)
	}

	var payload []byte
	if p := gjson.GetBytes(raw, "payload"); p.Exists() {
		payload = []byte(p.Raw)
	}

	action, err := decode(payload)
	if err != nil {
		return nil, helpers.NewProtocolError(fmt.Sprintf("invalid %s payload", tag.Str), err)
	}
	return action, nil
}

// -----------------------------------------------------------------------------

func decodeInto[T any](payload []byte) (T, error) {
	var v T
	if isNull(payload) {
		return v, errors.New("missing payload")
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, err
	}
	return v, nil
}

func decodeTradeStatus(p []byte) (Action, error) {
	if isNull(p) {
		return TradeStatusUpdate{}, nil
	}
	v, err := decodeInto[models.MTradeStatus](p)
	if err != nil {
		return nil, err
	}
	return TradeStatusUpdate{Trade: &v}, nil
}

// system_warning carries either a bare string or {message, level}.
func decodeSystemWarning(p []byte) (Action, error) {
	if gjson.ParseBytes(p).Type == gjson.String {
		msg, err := decodeInto[string](p)
		return SystemWarning{Warning: models.MSystemWarning{Message: msg}}, err
	}
	v, err := decodeInto[models.MSystemWarning](p)
	if err == nil && v.Message == "" {
		err = errors.New("warning without message")
	}
	return SystemWarning{Warning: v}, err
}

func isNull(p []byte) bool {
	p = bytes.TrimSpace(p)
	return len(p) == 0 || bytes.Equal(p, []byte("null"))
}

// The bot appends to its trade log, so the wire order is oldest first.
func newestFirst(trades []models.MTradeRecord) []models.MTradeRecord {
	out := make([]models.MTradeRecord, len(trades))
	for i, t := range trades {
		out[len(trades)-1-i] = t
	}
	return out
}
