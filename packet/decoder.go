package packet

import (
	"bytes"
	"fmt"
)

// Decoder decodes BGP messages of a single session
type Decoder struct {
	opt *Options
}

// NewDecoder creates a decoder for a session with the negotiated options opt
func NewDecoder(opt *Options) *Decoder {
	return &Decoder{
		opt: opt,
	}
}

// Decode decodes a single BGP message from buf
func Decode(buf *bytes.Buffer, opt *Options) (*BGPMessage, error) {
	return NewDecoder(opt).Decode(buf)
}

// Decode decodes a single BGP message from buf. Exactly the bytes of one
// message are consumed if buf holds a complete message.
func (d *Decoder) Decode(buf *bytes.Buffer) (*BGPMessage, error) {
	hdr, err := decodeHeader(buf)
	if err != nil {
		return nil, fmt.Errorf("Failed to decode header: %w", err)
	}

	bodyLen := int(hdr.Length) - HeaderLen
	if buf.Len() < bodyLen {
		return nil, fmt.Errorf("header announces %d body bytes, %d available: %w", bodyLen, buf.Len(), ErrTruncatedInput)
	}

	body := bytes.NewBuffer(buf.Next(bodyLen))
	msg, err := d.decodeMsgBody(body, hdr.Type)
	if err != nil {
		return nil, fmt.Errorf("Failed to decode message: %w", err)
	}

	if body.Len() != 0 {
		return nil, fmt.Errorf("%d unused bytes in message type %d: %w", body.Len(), hdr.Type, ErrLengthMismatch)
	}

	return &BGPMessage{
		Header: hdr,
		Body:   msg,
	}, nil
}

func (d *Decoder) decodeMsgBody(buf *bytes.Buffer, msgType MsgType) (Body, error) {
	switch msgType {
	case OpenMsg:
		return decodeOpenMsg(buf)
	case UpdateMsg:
		return decodeUpdateMsg(buf, d.opt)
	case KeepaliveMsg:
		return &BGPKeepalive{}, nil // Nothing to decode in Keepalive message
	case NotificationMsg:
		return decodeNotificationMsg(buf)
	case RouteRefreshMsg:
		return decodeRouteRefreshMsg(buf)
	}
	return nil, fmt.Errorf("message type %d: %w", msgType, ErrUnknownMessageType)
}

func decodeUpdateMsg(buf *bytes.Buffer, opt *Options) (*BGPUpdate, error) {
	msg := &BGPUpdate{}

	var withdrawnLen uint16
	err := decode(buf, []interface{}{&withdrawnLen})
	if err != nil {
		return nil, err
	}

	withdrawn, err := readBytes(buf, int(withdrawnLen))
	if err != nil {
		return nil, fmt.Errorf("Unable to read withdrawn routes: %w", ErrLengthMismatch)
	}

	msg.WithdrawnRoutes, err = decodeNLRIs(bytes.NewBuffer(withdrawn), IPv4AFI, UnicastSAFI, opt)
	if err != nil {
		return nil, fmt.Errorf("Unable to decode withdrawn routes: %w", err)
	}

	var totalPathAttrLen uint16
	err = decode(buf, []interface{}{&totalPathAttrLen})
	if err != nil {
		return nil, err
	}

	if int(totalPathAttrLen) > buf.Len() {
		return nil, fmt.Errorf("path attribute length %d exceeds message: %w", totalPathAttrLen, ErrLengthMismatch)
	}

	msg.PathAttributes, err = decodePathAttrs(buf, totalPathAttrLen, opt)
	if err != nil {
		return nil, err
	}

	msg.NLRI, err = decodeNLRIs(buf, IPv4AFI, UnicastSAFI, opt)
	if err != nil {
		return nil, fmt.Errorf("Unable to decode NLRI: %w", err)
	}

	return msg, nil
}

func decodeNotificationMsg(buf *bytes.Buffer) (*BGPNotification, error) {
	msg := &BGPNotification{}

	fields := []interface{}{
		&msg.ErrorCode,
		&msg.ErrorSubcode,
	}

	err := decode(buf, fields)
	if err != nil {
		return nil, err
	}

	if buf.Len() > 0 {
		msg.Data, _ = readBytes(buf, buf.Len())
	}

	return msg, nil
}

func decodeOpenMsg(buf *bytes.Buffer) (*BGPOpen, error) {
	msg := &BGPOpen{}

	var optParmLen uint8
	fields := []interface{}{
		&msg.Version,
		&msg.AS,
		&msg.HoldTime,
		&msg.BGPIdentifier,
		&optParmLen,
	}

	err := decode(buf, fields)
	if err != nil {
		return nil, err
	}

	if msg.Version != BGP4Version {
		return nil, fmt.Errorf("version %d: %w", msg.Version, ErrInvalidVersion)
	}

	params, err := readBytes(buf, int(optParmLen))
	if err != nil {
		return nil, fmt.Errorf("Unable to read optional parameters: %w", ErrLengthMismatch)
	}

	msg.OptParams, err = decodeOptParams(bytes.NewBuffer(params))
	if err != nil {
		return nil, err
	}

	return msg, nil
}

func decodeRouteRefreshMsg(buf *bytes.Buffer) (*BGPRouteRefresh, error) {
	msg := &BGPRouteRefresh{}

	fields := []interface{}{
		&msg.AFI,
		&msg.Subtype,
		&msg.SAFI,
	}

	err := decode(buf, fields)
	if err != nil {
		return nil, err
	}

	return msg, nil
}

func decodeHeader(buf *bytes.Buffer) (*BGPHeader, error) {
	hdr := &BGPHeader{}

	if buf.Len() < HeaderLen {
		return nil, fmt.Errorf("%d bytes left: %w", buf.Len(), ErrTruncatedInput)
	}

	marker := buf.Next(MarkerLen)
	for i := range marker {
		if marker[i] != 0xff {
			return nil, fmt.Errorf("%v: %w", marker, ErrInvalidMarker)
		}
	}

	fields := []interface{}{
		&hdr.Length,
		&hdr.Type,
	}

	err := decode(buf, fields)
	if err != nil {
		return nil, err
	}

	if hdr.Length < MinLen || hdr.Length > MaxLen {
		return nil, fmt.Errorf("Invalid length in BGP header: %d: %w", hdr.Length, ErrLengthMismatch)
	}

	lo, hi := msgLenBounds(hdr.Type)
	if lo == 0 {
		return nil, fmt.Errorf("Invalid message type: %d: %w", hdr.Type, ErrUnknownMessageType)
	}

	if hdr.Length < lo || hdr.Length > hi {
		return nil, fmt.Errorf("Invalid length %d for message type %d: %w", hdr.Length, hdr.Type, ErrLengthMismatch)
	}

	return hdr, nil
}

// msgLenBounds returns the smallest and largest valid length of a message of type t
func msgLenBounds(t MsgType) (MsgLength, MsgLength) {
	switch t {
	case OpenMsg:
		return MinOpenLen, MaxLen
	case UpdateMsg:
		return MinUpdateLen, MaxLen
	case NotificationMsg:
		return MinNotificationLen, MaxLen
	case KeepaliveMsg:
		return KeepaliveLen, KeepaliveLen
	case RouteRefreshMsg:
		return RouteRefreshLen, RouteRefreshLen
	}
	return 0, 0
}

// PeekLength returns the length announced by the header at the start of b.
// It fails with ErrTruncatedInput if b does not hold a complete header.
func PeekLength(b []byte) (int, error) {
	if len(b) < HeaderLen {
		return 0, ErrTruncatedInput
	}

	l := int(b[MarkerLen])<<8 | int(b[MarkerLen+1])
	if l < MinLen || l > MaxLen {
		return 0, fmt.Errorf("Invalid length in BGP header: %d: %w", l, ErrLengthMismatch)
	}

	return l, nil
}
