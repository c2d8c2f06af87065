package models

import (
	"fmt"
	"strconv"
	"strings"
)

// HeadlineID addresses a headline by its 1-based sibling index at every depth,
// so the second child of the first top-level headline is [1 2], rendered "1.2".
// Ids depend only on tree position, which keeps them stable across re-parses.
type HeadlineID []int

// RootID returns the id of the index-th top-level headline.
func RootID(index int) HeadlineID {
	return HeadlineID{index}
}

// Child returns the id of the index-th child of id. The receiver is not modified.
func (id HeadlineID) Child(index int) HeadlineID {
	out := make(HeadlineID, len(id)+1)
	copy(out, id)
	out[len(id)] = index
	return out
}

// Parent returns the id of the enclosing headline, or nil for top-level ids.
func (id HeadlineID) Parent() HeadlineID {
	if len(id) <= 1 {
		return nil
	}
	out := make(HeadlineID, len(id)-1)
	copy(out, id)
	return out
}

// Depth is the number of indices in the id; top-level ids have depth 1.
func (id HeadlineID) Depth() int { return len(id) }

// Index returns the 1-based position among siblings.
func (id HeadlineID) Index() int {
	if len(id) == 0 {
		return 0
	}
	return id[len(id)-1]
}

// IsZero reports whether the id is empty.
func (id HeadlineID) IsZero() bool { return len(id) == 0 }

// Equal reports whether both ids address the same position.
func (id HeadlineID) Equal(other HeadlineID) bool {
	return id.Compare(other) == 0
}

// Compare orders ids in document order: index by index, a prefix before its extensions.
func (id HeadlineID) Compare(other HeadlineID) int {
	for i := 0; i < len(id) && i < len(other); i++ {
		switch {
		case id[i] < other[i]:
			return -1
		case id[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(id) < len(other):
		return -1
	case len(id) > len(other):
		return 1
	}
	return 0
}

func (id HeadlineID) String() string {
	parts := make([]string, len(id))
	for i, n := range id {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// ParseHeadlineID parses the dotted form produced by String.
func ParseHeadlineID(s string) (HeadlineID, error) {
	if s == "" {
		return nil, fmt.Errorf("headline id: empty")
	}
	parts := strings.Split(s, ".")
	out := make(HeadlineID, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("headline id %q: invalid segment %q", s, p)
		}
		out[i] = n
	}
	return out, nil
}

// MarshalText renders the id in its dotted form.
func (id HeadlineID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the dotted form.
func (id *HeadlineID) UnmarshalText(text []byte) error {
	parsed, err := ParseHeadlineID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
