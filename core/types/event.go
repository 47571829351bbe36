package types

// Event represents a typed event emitted during ledger operations.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Receipt summarises a committed ledger operation.
type Receipt struct {
	Operation string   `json:"operation"`
	Sequence  uint64   `json:"sequence"`
	StateRoot []byte   `json:"stateRoot"`
	Events    []*Event `json:"events"`
}
