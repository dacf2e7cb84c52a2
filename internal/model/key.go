package model

import "github.com/faucetdb/tollgate/internal/auth"

// KeyResponse is the API representation of an expiring access key.
type KeyResponse struct {
	Key string `json:"key"`
	// ValidUntil is whole seconds since the Unix epoch.
	ValidUntil int64 `json:"valid_until"`
	// ExpiryTime is ValidUntil rendered as RFC 3339.
	ExpiryTime string `json:"expiry_time"`
	// ExpiresIn is the remaining lifetime in seconds, 0 once expired.
	ExpiresIn int64 `json:"expires_in"`
}

// NewKeyResponse renders k for the API.
func NewKeyResponse(k auth.ExpiringKey) KeyResponse {
	return KeyResponse{
		Key:        k.Key.String(),
		ValidUntil: k.ValidUntil.Seconds(),
		ExpiryTime: k.ValidUntil.String(),
		ExpiresIn:  int64(k.ExpiresIn().Seconds()),
	}
}

// NewKeyList renders keys as a list response.
func NewKeyList(keys []auth.ExpiringKey) ListResponse[KeyResponse] {
	out := make([]KeyResponse, len(keys))
	for i, k := range keys {
		out[i] = NewKeyResponse(k)
	}
	return ListResponse[KeyResponse]{
		Resource: out,
		Meta:     ResponseMeta{Count: len(out)},
	}
}
