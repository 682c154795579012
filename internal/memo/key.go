package memo

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
)

// Key identifies one memoized computation.
type Key string

// Fingerprinter is implemented by values that provide their own structural
// identity for memo keys.
type Fingerprinter interface {
	Fingerprint() string
}

var keyEncoder cbor.EncMode

func init() {
	var err error
	keyEncoder, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("memo: building deterministic CBOR encoder: %v", err))
	}
}

// NewKey derives a key from a function name and its arguments. Arguments
// implementing Fingerprinter contribute their fingerprint, everything else is
// encoded with deterministic CBOR, so structurally equal arguments produce
// equal keys.
func NewKey(fn string, parts ...any) Key {
	d := xxhash.New()
	for _, part := range parts {
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(fingerprint(part))
	}
	return Key(fmt.Sprintf("%s@%016x", fn, d.Sum64()))
}

func fingerprint(part any) string {
	switch v := part.(type) {
	case Fingerprinter:
		return "f:" + v.Fingerprint()
	case string:
		return "s:" + v
	}
	b, err := keyEncoder.Marshal(part)
	if err != nil {
		return fmt.Sprintf("v:%T:%#v", part, part)
	}
	return "c:" + string(b)
}
