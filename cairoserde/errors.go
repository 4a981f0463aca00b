package cairoserde

import "fmt"

type ErrorCode string

const (
	ERR_OUT_OF_RANGE_SCALAR      ErrorCode = "ERR_OUT_OF_RANGE_SCALAR"
	ERR_UNSUPPORTED_STRING_SHAPE ErrorCode = "ERR_UNSUPPORTED_STRING_SHAPE"
	ERR_UNSUPPORTED_VALUE_TYPE   ErrorCode = "ERR_UNSUPPORTED_VALUE_TYPE"
)

type SerdeError struct {
	Code ErrorCode
	Msg  string
}

func (e *SerdeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func serr(code ErrorCode, format string, args ...any) error {
	return &SerdeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is a SerdeError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	se, ok := err.(*SerdeError)
	return ok && se.Code == code
}
