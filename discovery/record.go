package discovery

import (
	"encoding/json"
	"fmt"

	"mydiscovery/service"
)

// EndpointDecoder converts a candidate read back from a generic session
// store (typically decoded JSON) into S.
type EndpointDecoder[S any] func(value any) (S, error)

// DecodeEndpoint is the default EndpointDecoder: direct type assertion
// when the store preserved the value, otherwise a JSON round-trip into S.
func DecodeEndpoint[S any](value any) (S, error) {
	if candidate, ok := value.(S); ok {
		return candidate, nil
	}

	var candidate S
	raw, err := json.Marshal(value)
	if err != nil {
		return candidate, service.NewBadParameterError("stored candidate is not encodable", err)
	}
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return candidate, service.NewBadParameterError(
			fmt.Sprintf("stored candidate does not decode into %T", candidate), err)
	}
	return candidate, nil
}

// queueFromRecord rebuilds a Queue from the generic record shape
// (starting_url, yadis_url, services, session_key, _current), as left
// behind by session stores that do not round-trip rich types. Missing
// fields default to empty/none.
func queueFromRecord[S any](rec map[string]any, decode EndpointDecoder[S]) (*Queue[S], error) {
	q := NewQueue[S](
		stringField(rec, "starting_url"),
		stringField(rec, "yadis_url"),
		nil,
		stringField(rec, "session_key"),
	)

	if raw, ok := rec["services"]; ok && raw != nil {
		switch services := raw.(type) {
		case []S:
			q.pending = append([]S(nil), services...)
		case []any:
			for _, item := range services {
				candidate, err := decode(item)
				if err != nil {
					return nil, err
				}
				q.pending = append(q.pending, candidate)
			}
		default:
			return nil, service.NewBadParameterError(
				fmt.Sprintf("stored queue has services of unsupported type %T", raw), nil)
		}
	}

	if raw, ok := rec["_current"]; ok && raw != nil {
		candidate, err := decode(raw)
		if err != nil {
			return nil, err
		}
		q.active = candidate
		q.started = true
	}

	return q, nil
}

func stringField(rec map[string]any, key string) string {
	value, _ := rec[key].(string)
	return value
}
