package common

import (
	"fmt"
	"strings"
)

// TrcIndex is a byte offset into the trace stream.
type TrcIndex uint64

// BadTrcIndex marks an error that is not tied to a stream position.
const BadTrcIndex TrcIndex = ^TrcIndex(0)

// Err is the library error code.
type Err uint32

const (
	OK                  Err = 0
	ErrFail             Err = 1
	ErrNotInit          Err = 2
	ErrIndexOutOfRange  Err = 3
	ErrInvalidParamVal  Err = 4
	ErrFileError        Err = 5
	ErrAttachTooMany    Err = 6
	ErrBadPacket        Err = 7
	ErrResidualOverflow Err = 8
	ErrLast             Err = 9
)

// ErrSeverity indicates the severity of an error.
type ErrSeverity uint32

const (
	ErrSevNone  ErrSeverity = 0
	ErrSevError ErrSeverity = 1
	ErrSevWarn  ErrSeverity = 2
	ErrSevInfo  ErrSeverity = 3
)

// Error is the library error object.
type Error struct {
	Code    Err
	Sev     ErrSeverity
	Idx     TrcIndex
	Message string
}

func NewError(sev ErrSeverity, code Err) *Error {
	return &Error{
		Code: code,
		Sev:  sev,
		Idx:  BadTrcIndex,
	}
}

func NewErrorMsg(sev ErrSeverity, code Err, msg string) *Error {
	return &Error{
		Code:    code,
		Sev:     sev,
		Idx:     BadTrcIndex,
		Message: msg,
	}
}

func NewErrorWithIdxMsg(sev ErrSeverity, code Err, idx TrcIndex, msg string) *Error {
	return &Error{
		Code:    code,
		Sev:     sev,
		Idx:     idx,
		Message: msg,
	}
}

// Error implements the standard error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	switch e.Sev {
	case ErrSevError:
		sb.WriteString("ERROR:")
	case ErrSevWarn:
		sb.WriteString("WARN :")
	case ErrSevInfo:
		sb.WriteString("INFO :")
	default:
		return "LIBRARY INTERNAL ERROR: Invalid Error Object"
	}

	sb.WriteString(fmt.Sprintf("0x%04x ", uint32(e.Code)))

	if desc, ok := errorCodeDesc[e.Code]; ok {
		sb.WriteString(fmt.Sprintf("(%s) [%s]; ", desc.name, desc.msg))
	} else {
		sb.WriteString("(unknown); ")
	}

	if e.Idx != BadTrcIndex {
		sb.WriteString(fmt.Sprintf("TrcIdx=%d; ", e.Idx))
	}

	sb.WriteString(e.Message)
	return sb.String()
}

// Is matches another *Error by code so errors.Is works against sentinel values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

type errDesc struct {
	name string
	msg  string
}

var errorCodeDesc = map[Err]errDesc{
	OK:                  {"ITM_OK", "No Error."},
	ErrFail:             {"ITM_ERR_FAIL", "General failure."},
	ErrNotInit:          {"ITM_ERR_NOT_INIT", "Component not initialised."},
	ErrIndexOutOfRange:  {"ITM_ERR_INDEX_OUT_OF_RANGE", "Index outside of byte view."},
	ErrInvalidParamVal:  {"ITM_ERR_INVALID_PARAM_VAL", "Invalid value parameter passed to component."},
	ErrFileError:        {"ITM_ERR_FILE_ERROR", "File access error."},
	ErrAttachTooMany:    {"ITM_ERR_ATTACH_TOO_MANY", "Cannot attach - attach device limit reached."},
	ErrBadPacket:        {"ITM_ERR_BAD_PACKET", "Reserved or unknown packet."},
	ErrResidualOverflow: {"ITM_ERR_RESIDUAL_OVERFLOW", "Packet residual exceeded limit and was dropped."},
	ErrLast:             {"ITM_ERR_LAST", "No error - error code end marker"},
}
