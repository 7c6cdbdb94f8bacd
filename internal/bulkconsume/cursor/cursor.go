// Package cursor implements the Cursor Codec: a deterministic, byte-stable,
// versioned encoding of BulkConsumeState to a URL-safe opaque token and back.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/filter"
	pkgerrors "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/errors"
)

// version is the cursor wire-format tag. Encode always stamps the current
// version; Decode rejects any other value rather than guessing at its
// meaning.
const version = "v1"

// State is the cursor payload: the full session identity plus the current
// iteration position.
type State struct {
	From          int64          `json:"from"`
	ToOpt         *int64         `json:"toOpt,omitempty"`
	Path          string         `json:"path,omitempty"`
	WithHistory   bool           `json:"withHistory"`
	WithDeleted   bool           `json:"withDeleted"`
	Recursive     bool           `json:"recursive"`
	ChunkSizeHint int            `json:"chunkSizeHint"`
	FieldFilter   *filter.Filter `json:"fieldFilter,omitempty"`
}

// wireEnvelope is the versioned container actually serialized; keeping it
// separate from State means future version bumps can change State's shape
// without touching the envelope logic.
type wireEnvelope struct {
	Version string `json:"v"`
	State   State  `json:"s"`
}

// Validate checks the cursor invariants from the data model: from >= 0,
// toOpt > from when present, chunkSizeHint > 0.
func (s State) Validate() error {
	if s.From < 0 {
		return pkgerrors.Newf(pkgerrors.ErrInvalidCursor, 400, "from must be >= 0, got %d", s.From)
	}
	if s.ToOpt != nil && *s.ToOpt <= s.From {
		return pkgerrors.Newf(pkgerrors.ErrInvalidCursor, 400, "toOpt (%d) must be > from (%d)", *s.ToOpt, s.From)
	}
	if s.ChunkSizeHint <= 0 {
		return pkgerrors.Newf(pkgerrors.ErrInvalidCursor, 400, "chunkSizeHint must be > 0, got %d", s.ChunkSizeHint)
	}
	return nil
}

// Encode serializes s into an opaque, URL-safe, versioned token.
func Encode(s State) (string, error) {
	env := wireEnvelope{Version: version, State: s}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encoding cursor: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(data), nil
}

// Decode parses an opaque token produced by Encode. It fails explicitly
// (rather than guessing) on malformed input, corrupt base64/JSON, or a
// version mismatch.
func Decode(token string) (State, error) {
	var zero State
	if token == "" {
		return zero, pkgerrors.New(pkgerrors.ErrInvalidCursor, 400, "position token is empty")
	}
	data, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(token)
	if err != nil {
		return zero, pkgerrors.Newf(pkgerrors.ErrInvalidCursor, 400, "position token is not valid base64: %v", err)
	}
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return zero, pkgerrors.Newf(pkgerrors.ErrInvalidCursor, 400, "position token is not valid: %v", err)
	}
	if env.Version != version {
		return zero, pkgerrors.Newf(pkgerrors.ErrInvalidCursor, 400, "position token has unsupported version %q", env.Version)
	}
	if err := env.State.Validate(); err != nil {
		return zero, err
	}
	return env.State, nil
}
