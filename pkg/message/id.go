package message

import "strconv"

// ID identifies a single message instance. IDs are assigned sequentially per
// message type and are compared as plain integers.
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Instance is a stored message together with the ID it was assigned on send.
type Instance[T any] struct {
	ID      ID
	Payload T
}

// IDRange is the half-open range [Start, End) of IDs assigned by a batch send.
type IDRange struct {
	Start ID
	End   ID
}

// Len returns the number of IDs in the range.
func (r IDRange) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return int(r.End - r.Start)
}

// Contains reports whether id falls inside the range.
func (r IDRange) Contains(id ID) bool {
	return id >= r.Start && id < r.End
}
