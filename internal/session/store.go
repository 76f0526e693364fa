package session

import "context"

// Session is the per-call scratchpad of collected inputs. Values are kept as
// the raw digit strings the PBX delivered; steps parse what they need.
type Session map[string]string

// Store maps a call id to its session. The call flow sees only Get and Merge.
//
// Contract:
// - Get returns an empty session (never nil) for unknown call ids, and a
//   snapshot copy the caller may mutate freely.
// - Merge adds or overwrites the given fields; replaying the same merge is a
//   no-op with respect to the resulting state.
// - Access is serialized per call id; distinct call ids never contend on the
//   same state.
// - Entries expire after the configured TTL. A crash loses in-flight
//   collection, which is acceptable: the caller re-enters data on redial.
type Store interface {
	Get(ctx context.Context, callID string) (Session, error)
	Merge(ctx context.Context, callID string, fields map[string]string) error
}
