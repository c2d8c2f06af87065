package models

import (
	"encoding/json"
	"fmt"
)

// StateType classifies a TODO keyword as open work or finished work.
type StateType int

const (
	StateActive StateType = iota
	StateClosed
)

func (s StateType) String() string {
	if s == StateClosed {
		return "closed"
	}
	return "active"
}

// MarshalJSON encodes the state as "active" or "closed".
func (s StateType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts "active" or "closed".
func (s *StateType) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v {
	case "active":
		*s = StateActive
	case "closed":
		*s = StateClosed
	default:
		return fmt.Errorf("state type: unknown value %q", v)
	}
	return nil
}

// TodoStatus describes one keyword of a sequence.
type TodoStatus struct {
	Keyword   string    `json:"keyword"`
	StateType StateType `json:"state_type"`
	Order     uint32    `json:"order"`
	Color     string    `json:"color,omitempty"`
}

// IsClosed reports whether the keyword marks finished work.
func (s TodoStatus) IsClosed() bool { return s.StateType == StateClosed }

// TodoSequence is an ordered list of statuses. Lower Order sorts first.
type TodoSequence struct {
	Name     string       `json:"name"`
	Statuses []TodoStatus `json:"statuses"`
}

// TodoConfiguration is the set of sequences in effect for a document.
type TodoConfiguration struct {
	Sequences       []TodoSequence `json:"sequences"`
	DefaultSequence string         `json:"default_sequence"`
}

// DefaultSequenceName names the sequence of the built-in configuration.
const DefaultSequenceName = "default"

// DefaultTodoConfiguration returns the built-in TODO / DONE workflow.
func DefaultTodoConfiguration() *TodoConfiguration {
	return &TodoConfiguration{
		Sequences: []TodoSequence{{
			Name: DefaultSequenceName,
			Statuses: []TodoStatus{
				{Keyword: "TODO", StateType: StateActive, Order: 0, Color: "#ff0000"},
				{Keyword: "IN-PROGRESS", StateType: StateActive, Order: 10, Color: "#ff9900"},
				{Keyword: "WAITING", StateType: StateActive, Order: 20, Color: "#ffff00"},
				{Keyword: "DONE", StateType: StateClosed, Order: 100, Color: "#00ff00"},
				{Keyword: "CANCELLED", StateType: StateClosed, Order: 110, Color: "#999999"},
			},
		}},
		DefaultSequence: DefaultSequenceName,
	}
}

// FindStatus searches every sequence for keyword. The default sequence is
// searched first so shared keywords resolve to it.
func (c *TodoConfiguration) FindStatus(keyword string) (TodoStatus, bool) {
	if c == nil || keyword == "" {
		return TodoStatus{}, false
	}
	if seq, ok := c.Sequence(c.DefaultSequence); ok {
		if st, ok := seq.find(keyword); ok {
			return st, true
		}
	}
	for _, seq := range c.Sequences {
		if st, ok := seq.find(keyword); ok {
			return st, true
		}
	}
	return TodoStatus{}, false
}

// Sequence returns the sequence with the given name.
func (c *TodoConfiguration) Sequence(name string) (TodoSequence, bool) {
	if c == nil {
		return TodoSequence{}, false
	}
	for _, seq := range c.Sequences {
		if seq.Name == name {
			return seq, true
		}
	}
	return TodoSequence{}, false
}

// Keywords lists every keyword in sequence order, active before closed
// within each sequence, without duplicates.
func (c *TodoConfiguration) Keywords() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, seq := range c.Sequences {
		for _, st := range seq.Statuses {
			if _, ok := seen[st.Keyword]; ok {
				continue
			}
			seen[st.Keyword] = struct{}{}
			out = append(out, st.Keyword)
		}
	}
	return out
}

// Split returns the active and closed keywords, in order.
func (c *TodoConfiguration) Split() (active, closed []string) {
	for _, kw := range c.Keywords() {
		st, _ := c.FindStatus(kw)
		if st.IsClosed() {
			closed = append(closed, kw)
		} else {
			active = append(active, kw)
		}
	}
	return active, closed
}

func (s TodoSequence) find(keyword string) (TodoStatus, bool) {
	for _, st := range s.Statuses {
		if st.Keyword == keyword {
			return st, true
		}
	}
	return TodoStatus{}, false
}
