package consensus

import "fmt"

type ErrorCode string

const (
	ERR_INVALID_COMPACT_ENCODING ErrorCode = "ERR_INVALID_COMPACT_ENCODING"
	ERR_INVALID_SOLUTION_LENGTH  ErrorCode = "ERR_INVALID_SOLUTION_LENGTH"
)

type ConsensusError struct {
	Code ErrorCode
	Msg  string
}

func (e *ConsensusError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func cerr(code ErrorCode, msg string) error {
	return &ConsensusError{Code: code, Msg: msg}
}

// IsCode reports whether err is a ConsensusError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	ce, ok := err.(*ConsensusError)
	return ok && ce.Code == code
}
