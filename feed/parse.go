package feed

import (
	"encoding/json"
	"fmt"

	"garden-notifier/pkg/notifier"
)

// MalformedPayloadError marks a feed body that could not be decoded. The
// pipeline rejects the update and keeps the prior snapshot.
type MalformedPayloadError struct {
	Channel notifier.Channel
	Err     error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Channel, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// ParseStock decodes a raw stock feed body.
func ParseStock(raw []byte) (*notifier.StockPayload, error) {
	var p notifier.StockPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &MalformedPayloadError{Channel: notifier.ChannelStock, Err: err}
	}
	return &p, nil
}

// ParseWeather decodes a raw weather feed body.
func ParseWeather(raw []byte) (*notifier.WeatherPayload, error) {
	var p notifier.WeatherPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &MalformedPayloadError{Channel: notifier.ChannelWeather, Err: err}
	}
	return &p, nil
}
