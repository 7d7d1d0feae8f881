package connection

import (
	"encoding/json"
	"time"

	"github.com/rickgao/tablesocket/internal/events"
)

// notificationNames maps inbound message types to the local notification they raise.
var notificationNames = map[string]string{
	TypeDiceRoll:       events.DiceRollResult,
	TypeCampaignUpdate: events.CampaignUpdate,
}

// decodeEnvelope parses a raw frame. Anything that is not a JSON object is malformed.
func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// encodeEnvelope builds an outbound frame.
func encodeEnvelope(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Payload: raw})
}

// dispatch parses one inbound frame and re-emits recognized types.
// Malformed frames produce exactly one warning and are dropped.
func (m *Manager) dispatch(data []byte, receivedAt time.Time) {
	m.stats.received.Add(1)

	env, err := decodeEnvelope(data)
	if err != nil {
		m.stats.parseErrors.Add(1)
		m.logger.Warn("dropping malformed message", "error", err, "bytes", len(data))
		return
	}

	name, ok := notificationNames[env.Type]
	if !ok {
		m.stats.ignored.Add(1)
		m.logger.Debug("ignoring message", "type", env.Type)
		return
	}

	m.emitter.Emit(events.Notification{
		Name:       name,
		Payload:    env.Payload,
		ReceivedAt: receivedAt,
	})
	m.stats.dispatched.Add(1)
}
