package core

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewID returns "<prefix>_<ULID>", e.g. "opp_01HQ3K9Z7M4V2X8B5N6C1D0E9F".
// The prefix is lowercased; an empty prefix panics.
func NewID(prefix string) string {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if p == "" {
		panic("core.NewID: empty prefix")
	}
	return p + "_" + ulid.Make().String()
}
