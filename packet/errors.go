package packet

import "errors"

var (
	ErrMessageTooLarge          = errors.New("message too large")
	ErrParametersTooLarge       = errors.New("optional parameters too large")
	ErrTruncatedInput           = errors.New("truncated input")
	ErrLengthMismatch           = errors.New("length mismatch")
	ErrInvalidMarker            = errors.New("invalid marker")
	ErrUnknownMessageType       = errors.New("unknown message type")
	ErrUnknownAttributeType     = errors.New("unknown attribute type")
	ErrAttributeLength          = errors.New("invalid attribute length")
	ErrInvalidPrefixLength      = errors.New("invalid prefix length")
	ErrUnsupportedAddressFamily = errors.New("unsupported address family")
	ErrEmptyFilterValues        = errors.New("empty flowspec filter values")
	ErrFlowspecOrder            = errors.New("flowspec components out of order")
	ErrFlowspecOperator         = errors.New("invalid flowspec operator")
	ErrFlowspecDisabled         = errors.New("flowspec support not compiled in")
	ErrInvalidVersion           = errors.New("invalid version")
	ErrInvalidValue             = errors.New("invalid value type")
)
