package versionstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/conduit-lang/pack/internal/devlist"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding: equal versions encode to equal bytes.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("versionstore: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("versionstore: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes a chunk list version.
func Encode(v *devlist.Version) ([]byte, error) {
	return encMode.Marshal(v.Snapshot())
}

// Decode restores a chunk list version.
func Decode(data []byte) (*devlist.Version, error) {
	var s devlist.Snapshot
	if err := decMode.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode chunk list version: %w", err)
	}
	return devlist.FromSnapshot(s), nil
}

// Versions stores chunk list versions per client session.
type Versions struct {
	store Store
	ttl   time.Duration
}

// NewVersions wraps store. A zero ttl uses the store default.
func NewVersions(store Store, ttl time.Duration) *Versions {
	return &Versions{store: store, ttl: ttl}
}

func sessionKey(session, list string) string {
	return session + ":" + list
}

// Save records that session has version v of the chunk list at path list.
func (vs *Versions) Save(ctx context.Context, session, list string, v *devlist.Version) error {
	data, err := Encode(v)
	if err != nil {
		return err
	}
	return vs.store.Set(ctx, sessionKey(session, list), data, vs.ttl)
}

// Load returns the version session last received of list. The boolean is
// false when the store has none.
func (vs *Versions) Load(ctx context.Context, session, list string) (*devlist.Version, bool, error) {
	data, err := vs.store.Get(ctx, sessionKey(session, list))
	if IsMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	v, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Forget drops the version of list for session.
func (vs *Versions) Forget(ctx context.Context, session, list string) error {
	return vs.store.Delete(ctx, sessionKey(session, list))
}
