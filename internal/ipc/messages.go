package ipc

// Wire message types. Each inbound request is answered by exactly one
// outbound response on the same connection.
const (
	TypeExecuteTransaction = "execute_transaction"
	TypeSecurityCheck      = "security_check"
	TypeTransactionResult  = "transaction_result"
	TypeSecurityResponse   = "security_response"
)

// Request is the inbound message. Type selects the variant; unused fields
// stay zero.
type Request struct {
	Type string `json:"type"`

	// execute_transaction: raw bytes holding the JSON-encoded instruction
	// list, the priority level 0..3, and the attempt cap. Simulate overrides
	// the server default when present. Token and Amount, when supplied, are
	// validated by the risk gate before dispatch.
	Instructions []byte `json:"instructions,omitempty"`
	Priority     uint8  `json:"priority,omitempty"`
	MaxRetries   uint   `json:"max_retries,omitempty"`
	Simulate     *bool  `json:"simulate,omitempty"`

	// security_check (also optional risk context for execute_transaction).
	Token  string `json:"token,omitempty"`
	Amount uint64 `json:"amount,omitempty"`
}

// TransactionResult answers an execute_transaction request.
type TransactionResult struct {
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SecurityResponse answers a security_check request.
type SecurityResponse struct {
	Type   string `json:"type"`
	IsSafe bool   `json:"is_safe"`
	Reason string `json:"reason,omitempty"`
}
