package rpcserver

import (
	"encoding/json"
)

// JSON-RPC 2.0 framing. The request ID is kept as raw JSON so numbers
// and strings echo back exactly as sent.

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes. The generic ones are standard JSON-RPC; the -320xx ones
// match what RPC clients in this ecosystem already handle.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeSlotNotReached = -32016
	codeNotConfigured  = -32010
)

func errResponse(id json.RawMessage, code int, msg string) rpcResponse {
	return rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: msg},
	}
}

func okResponse(id json.RawMessage, result interface{}) rpcResponse {
	return rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

// accountInfoConfig is the optional second element of getAccountInfo
// params.
type accountInfoConfig struct {
	Encoding       string          `json:"encoding"`
	DataSlice      json.RawMessage `json:"dataSlice"`
	MinContextSlot *uint64         `json:"minContextSlot"`
	Commitment     string          `json:"commitment"`
}

// rpcContext is the context object included in every query result.
type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type accountInfoResult struct {
	Context rpcContext    `json:"context"`
	Value   *accountValue `json:"value"`
}

// accountValue is the JSON shape of one account. Data is a two-element
// array of the payload and its encoding name.
type accountValue struct {
	Data       [2]string `json:"data"`
	Executable bool      `json:"executable"`
	Lamports   uint64    `json:"lamports"`
	Owner      string    `json:"owner"`
	RentEpoch  uint64    `json:"rentEpoch"`
	Space      uint64    `json:"space"`
}
