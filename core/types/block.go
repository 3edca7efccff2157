package types

// BlockHeader summarises a produced block.
type BlockHeader struct {
	Height    uint64 `json:"height"`
	Parent    []byte `json:"parent"`
	StateRoot []byte `json:"stateRoot"`
	Timestamp int64  `json:"timestamp"`
	TxCount   int    `json:"txCount"`
}

// Receipt describes the outcome of a single transaction.
type Receipt struct {
	TxHash  []byte   `json:"txHash"`
	Module  string   `json:"module"`
	Method  string   `json:"method"`
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Events  []*Event `json:"events"`
}
