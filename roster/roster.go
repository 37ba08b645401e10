package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/zeebo/xxh3"

	"github.com/gitxandert/process-monitor/types"
)

// Roster is a published liveness snapshot.
type Roster struct {
	// Version increases by one per published snapshot and stays monotonic
	// across leader changes.
	Version int64 `json:"version"`

	// PublishedBy is the instance ID of the publishing monitor.
	PublishedBy string `json:"published_by"`

	// PublishedAt is the wall-clock publish time.
	PublishedAt time.Time `json:"published_at"`

	// Processes lists every tracked process, sorted by process ID.
	Processes []types.ProcessStatus `json:"processes"`
}

// Counts returns the number of processes per liveness state.
func (r *Roster) Counts() (unknown, alive, dead int) {
	for _, p := range r.Processes {
		switch p.State {
		case types.StateAlive:
			alive++
		case types.StateDead:
			dead++
		default:
			unknown++
		}
	}

	return unknown, alive, dead
}

// Digest returns a content hash of the roster's liveness facts.
//
// The digest covers process IDs, states, evidence flags, and fault flags,
// sorted by process ID so input order is irrelevant. Heartbeat ticks,
// version, and publish metadata are deliberately excluded: two rosters
// with the same digest answer "who is alive" identically, and a steady
// system deduplicates to zero publishes.
func (r *Roster) Digest() uint64 {
	statuses := slices.Clone(r.Processes)
	slices.SortFunc(statuses, func(a, b types.ProcessStatus) int {
		return strings.Compare(a.ProcessID, b.ProcessID)
	})

	var buf []byte
	for _, p := range statuses {
		buf = append(buf, p.ProcessID...)
		buf = append(buf, 0)
		buf = append(buf, byte(p.State), boolByte(p.HasEvidence), boolByte(p.Faulted), 0xff)
	}

	return xxh3.Hash(buf)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}

// Fetch reads the current roster from the KV bucket.
//
// Parameters:
//   - ctx: Context for timeout
//   - kv: JetStream KV bucket holding the roster
//   - key: Roster key (must match the publisher's)
//
// Returns:
//   - *Roster: The latest published snapshot
//   - error: types.ErrNoRoster if nothing has been published, decode or
//     KV access error otherwise
func Fetch(ctx context.Context, kv jetstream.KeyValue, key string) (*Roster, error) {
	entry, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, types.ErrNoRoster
		}

		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}

	var r Roster
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		return nil, fmt.Errorf("failed to decode roster: %w", err)
	}

	return &r, nil
}
