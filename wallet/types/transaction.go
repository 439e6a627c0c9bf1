package types

import (
	"time"
)

type TxStatus string

const (
	TxStatus_Pending   TxStatus = "pending"
	TxStatus_Submitted TxStatus = "submitted"
	TxStatus_Success   TxStatus = "success"
	TxStatus_Failure   TxStatus = "failure"
	TxStatus_Rejected  TxStatus = "rejected"
	TxStatus_Expired   TxStatus = "expired"
)

func (s TxStatus) IsValid() bool {
	switch s {
	case TxStatus_Pending, TxStatus_Submitted, TxStatus_Success, TxStatus_Failure, TxStatus_Rejected, TxStatus_Expired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further status transition is permitted.
func (s TxStatus) IsTerminal() bool {
	switch s {
	case TxStatus_Success, TxStatus_Failure, TxStatus_Rejected, TxStatus_Expired:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the lifecycle permits moving from s to next.
// pending -> submitted -> {success, failure, rejected, expired}; pending may
// also reach a terminal status directly (local rejection, expiry).
func (s TxStatus) CanTransition(next TxStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	if next == TxStatus_Pending {
		return false
	}

	return true
}

type TxResult struct {
	Status TxStatus               `json:"status"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

type Transaction struct {
	ID         string                 `json:"id"`
	Hash       string                 `json:"hash,omitempty"`
	From       string                 `json:"from"`
	To         string                 `json:"to,omitempty"`
	Amount     *float64               `json:"amount,omitempty"`
	Gas        *float64               `json:"gas,omitempty"`
	Status     TxStatus               `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	ChainID    string                 `json:"chainId"`
	Capability string                 `json:"capability,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Result     *TxResult              `json:"result,omitempty"`
	UpdatedAt  time.Time              `json:"updatedAt,omitempty"`
}
