// Package protocol defines the wire contract of the bank RPC protocol:
// action identifiers, status codes and the JSON request/response envelopes.
// See https://github.com/mikenoethiger/bank-server-socket#request for the
// protocol documentation.
package protocol

import "encoding/json"

// Actions. Documented at
// https://github.com/mikenoethiger/bank-server-socket#actions
const (
	ActionAccountNumbers = 1
	ActionGetAccount     = 2
	ActionCreateAccount  = 3
	ActionCloseAccount   = 4
	ActionTransfer       = 5
	ActionDeposit        = 6
	ActionWithdraw       = 7
)

// Status codes. Every response carries exactly one of these.
const (
	StatusOK                    = 0
	StatusAccountNotFound       = 1
	StatusAccountCreationFailed = 2
	StatusAccountCloseFailed    = 3
	StatusInactiveAccount       = 4
	StatusOverdraw              = 5
	StatusIllegalArgument       = 6
	StatusBadRequest            = 7
	StatusInternalError         = 8
)

// Request is a client action: a numbered operation plus its ordered string
// arguments.
type Request struct {
	ActionID int      `json:"actionId" validate:"required,gte=1"`
	Args     []string `json:"args"`
}

// Response carries a status code and an ordered list of string data fields,
// empty for void successes.
type Response struct {
	StatusCode int      `json:"statusCode"`
	Data       []string `json:"data"`
}

// Canned error responses, one per failure status.
var (
	ErrorAccountNotFound       = Response{StatusAccountNotFound, []string{"Account does not exist."}}
	ErrorAccountCreationFailed = Response{StatusAccountCreationFailed, []string{"Account could not be created."}}
	ErrorAccountCloseFailed    = Response{StatusAccountCloseFailed, []string{"Account could not be closed."}}
	ErrorInactiveAccount       = Response{StatusInactiveAccount, []string{"Inactive account."}}
	ErrorOverdraw              = Response{StatusOverdraw, []string{"Account overdraw."}}
	ErrorIllegalArgument       = Response{StatusIllegalArgument, []string{"Illegal argument."}}
	ErrorBadRequest            = Response{StatusBadRequest, []string{"Bad request."}}
	ErrorInternal              = Response{StatusInternalError, []string{"Internal error."}}
)

// OK builds a success response. The data slice is never nil so it always
// serialises as a JSON array.
func OK(data ...string) Response {
	if data == nil {
		data = []string{}
	}
	return Response{StatusCode: StatusOK, Data: data}
}

// ParseRequest decodes a JSON request body.
func ParseRequest(body []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(body, &req)
	return req, err
}

// Marshal encodes the response as JSON. A nil data slice is normalised to an
// empty array first.
func (r Response) Marshal() ([]byte, error) {
	if r.Data == nil {
		r.Data = []string{}
	}
	return json.Marshal(r)
}
