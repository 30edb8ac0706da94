package notification

import (
	"strconv"
	"strings"
)

// ID identifies a notification. Server-assigned IDs are decimal sequence
// numbers; clients may synthesize non-numeric IDs for locally derived entries.
type ID string

// FormatID renders a server sequence number as an ID.
func FormatID(seq int64) ID {
	return ID(strconv.FormatInt(seq, 10))
}

// Seq returns the numeric sequence behind a server-assigned ID.
func (id ID) Seq() (int64, bool) {
	if id == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsServerAssigned reports whether the ID came from the server's sequence.
func (id ID) IsServerAssigned() bool {
	_, ok := id.Seq()
	return ok
}

// CompareIDs orders two IDs: numerically when both are sequence numbers,
// otherwise by length and then lexically. The empty ID sorts first.
func CompareIDs(a, b ID) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}

	an, aok := a.Seq()
	bn, bok := b.Seq()
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}

	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(string(a), string(b))
}

// MaxID returns the newest of the given IDs.
func MaxID(ids ...ID) ID {
	var max ID
	for _, id := range ids {
		if CompareIDs(id, max) > 0 {
			max = id
		}
	}
	return max
}
