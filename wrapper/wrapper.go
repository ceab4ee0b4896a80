// Package wrapper implements the self-describing {sourceId, payload} envelope
// every value takes on the wire to the authoritative store. sourceId lets a
// change-feed consumer recognize its own writes without consulting anything
// beyond the record itself.
package wrapper

import (
	"sync"

	"github.com/agilira/go-errors"
	"github.com/fxamacker/cbor/v2"
)

const (
	ErrCodeEncodeFailed  errors.ErrorCode = "TIERCACHE_WRAPPER_ENCODE_FAILED"
	ErrCodeDecodeFailed  errors.ErrorCode = "TIERCACHE_WRAPPER_DECODE_FAILED"
)

// Wrapper is the on-wire envelope for a stored value. Field order matches
// the CBOR map key order so encodings of equal wrappers are byte-identical,
// which Replace-style compare-and-swap implementations rely on.
type Wrapper struct {
	SourceID string `cbor:"1,keyasint"`
	Payload  []byte `cbor:"2,keyasint"`
}

// cbor.Mode values are safe for concurrent use once built, so a package
// level sync.Once is enough; no per-call pooling is needed for the modes
// themselves.
var (
	encModeOnce sync.Once
	encMode     cbor.EncMode
	decModeOnce sync.Once
	decMode     cbor.DecMode
)

func getEncMode() cbor.EncMode {
	encModeOnce.Do(func() {
		opts := cbor.CanonicalEncOptions()
		m, err := opts.EncMode()
		if err != nil {
			panic(err)
		}
		encMode = m
	})
	return encMode
}

func getDecMode() cbor.DecMode {
	decModeOnce.Do(func() {
		m, err := cbor.DecOptions{}.DecMode()
		if err != nil {
			panic(err)
		}
		decMode = m
	})
	return decMode
}

// Wrap encodes payload together with sourceID into the wrapper wire format.
// An empty sourceID is valid and means "unknown origin"; it still round-trips.
func Wrap(sourceID string, payload []byte) ([]byte, error) {
	out, err := getEncMode().Marshal(Wrapper{SourceID: sourceID, Payload: payload})
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeEncodeFailed, "failed to encode wrapper payload")
	}
	return out, nil
}

// Unwrap decodes data back into its source id and payload.
func Unwrap(data []byte) (sourceID string, payload []byte, err error) {
	var w Wrapper
	if decErr := getDecMode().Unmarshal(data, &w); decErr != nil {
		return "", nil, errors.Wrap(decErr, ErrCodeDecodeFailed, "failed to decode wrapper payload")
	}
	return w.SourceID, w.Payload, nil
}
