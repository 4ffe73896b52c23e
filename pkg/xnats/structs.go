// Package xnats defines the messages exchanged over NATS JetStream.
package xnats

import "time"

// ExchangeReq asks the engine to convert between two assets, sent from the
// API edge to the wallet worker
type ExchangeReq struct {
	Owner     int64  `json:"owner"`
	FromAsset string `json:"fromAsset"`
	ToAsset   string `json:"toAsset"`
	Amount    string `json:"amount"` // decimal string in the from asset, e.g. "100.00"
	RequestID string `json:"requestID"`
	Time      int64  `json:"time"` // request creation time, in nanoseconds
}

// TxEvent reports a terminal transaction, published by the wallet worker
type TxEvent struct {
	TxID      string     `json:"txID"`
	RequestID string     `json:"requestID,omitempty"`
	Owner     int64      `json:"owner"`
	FromAsset string     `json:"fromAsset"`
	ToAsset   string     `json:"toAsset"`
	FromUnits int64      `json:"fromUnits"`
	ToUnits   int64      `json:"toUnits"`
	Rate      string     `json:"rate"`
	TxStatus  string     `json:"txStatus"`
	Reason    string     `json:"reason,omitempty"`
	Time      *time.Time `json:"time,omitempty"`
}

// RegisterReq creates a user with their seed and opening balance
type RegisterReq struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	RequestID string `json:"requestID"`
}

// AccountEvent reports the outcome of a RegisterReq
type AccountEvent struct {
	RequestID string `json:"requestID"`
	UserID    int64  `json:"userID,omitempty"`
	Username  string `json:"username"`
	Error     string `json:"error,omitempty"`
}

// AddressReq asks for the deposit address of (owner, asset)
type AddressReq struct {
	Owner     int64  `json:"owner"`
	Asset     string `json:"asset"`
	RequestID string `json:"requestID"`
}

// AddressEvent answers an AddressReq
type AddressEvent struct {
	RequestID string `json:"requestID"`
	Owner     int64  `json:"owner"`
	Asset     string `json:"asset"`
	Address   string `json:"address,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Subjects of the WALLET stream
const (
	StreamName       = "WALLET"
	SubjectRequests  = "WALLET.req.>"
	SubjectExchange  = "WALLET.req.exchange"
	SubjectRegister  = "WALLET.req.register"
	SubjectAddress   = "WALLET.req.address"
	SubjectTxEvents  = "WALLET.events.tx"
	SubjectAccEvents = "WALLET.events.account"
	SubjectAddEvents = "WALLET.events.address"
)
