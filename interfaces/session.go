package interfaces

import "context"

// Session represents the per-user-agent key-value store that survives
// across requests. It is owned by the caller; implementations may keep
// rich Go values (adapters/memsession) or only generic serialized ones
// (adapters/sessredis). Concurrent requests racing on one session are
// the caller's session layer to serialize.
//
//go:generate moq -stub -out mock/session.go -pkg mock . Session
type Session interface {
	// Get returns the value stored under key.
	// Returns:
	// 1) (value, nil) when the key is present;
	// 2) (nil, entity_not_found) when the key is absent;
	// 3) (nil, internal_server_error) when the storage read fails.
	Get(ctx context.Context, key string) (any, error)

	// Set stores value under key, overwriting any prior value.
	// Returns:
	// 1) nil on success;
	// 2) internal_server_error when marshalling or the storage write fails.
	Set(ctx context.Context, key string, value any) error

	// Delete removes the value for the given key.
	// Deleting an absent key is not an error.
	// Returns:
	// 1) nil on success;
	// 2) internal_server_error when the storage delete fails.
	Delete(ctx context.Context, key string) error
}
