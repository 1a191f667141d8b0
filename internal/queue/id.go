package queue

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Kind selects the media type a task retrieves.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

const (
	idTimestampLayout = "20060102150405"
	idSuffixLetters   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idSuffixLength    = 3
)

// ParseKind maps user input ("video", "audio", "v", "a") to a Kind.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "video", "v":
		return KindVideo, nil
	case "audio", "a":
		return KindAudio, nil
	default:
		return "", fmt.Errorf("unknown media type %q (want video or audio)", value)
	}
}

// Prefix returns the id prefix character for k.
func (k Kind) Prefix() string {
	if k == KindAudio {
		return "a"
	}
	return "v"
}

// ID is a parsed task identifier of the form <prefix><YYYYMMDDhhmmss><suffix>.
type ID struct {
	Raw       string
	Kind      Kind
	Timestamp time.Time
	Suffix    string
}

func (id ID) String() string {
	return id.Raw
}

// ParseID parses name in the local timezone. See ParseIDIn.
func ParseID(name string) (ID, error) {
	return ParseIDIn(name, time.Local)
}

// ParseIDIn parses a task id. The first character selects the kind ("a" for
// audio, anything else video) and is always honored; the next fourteen
// characters are the creation timestamp in loc. A short id or a bad timestamp
// returns the partially populated ID together with ErrInvalidID.
func ParseIDIn(name string, loc *time.Location) (ID, error) {
	if loc == nil {
		loc = time.Local
	}
	id := ID{Raw: name, Kind: KindVideo}
	if name != "" && name[0] == 'a' {
		id.Kind = KindAudio
	}
	if len(name) < 2 {
		return id, fmt.Errorf("%w: %q is too short", ErrInvalidID, name)
	}
	rest := name[1:]
	if len(rest) < len(idTimestampLayout) {
		return id, fmt.Errorf("%w: %q has no timestamp", ErrInvalidID, name)
	}
	ts, err := time.ParseInLocation(idTimestampLayout, rest[:len(idTimestampLayout)], loc)
	if err != nil {
		return id, fmt.Errorf("%w: %q: %v", ErrInvalidID, name, err)
	}
	id.Timestamp = ts
	id.Suffix = rest[len(idTimestampLayout):]
	return id, nil
}

// NewID builds a fresh identifier for kind stamped with now in loc.
func NewID(kind Kind, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	var b strings.Builder
	b.WriteString(kind.Prefix())
	b.WriteString(now.In(loc).Format(idTimestampLayout))
	for i := 0; i < idSuffixLength; i++ {
		b.WriteByte(idSuffixLetters[rand.IntN(len(idSuffixLetters))])
	}
	return b.String()
}
