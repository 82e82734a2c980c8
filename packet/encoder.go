package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Encode encodes body into a complete BGP message including the header
func Encode(body Body, opt *Options) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, MaxLen))
	err := encodeHeader(buf, 0, uint8(body.MsgType()))
	if err != nil {
		return nil, err
	}

	err = body.serialize(buf, opt)
	if err != nil {
		return nil, fmt.Errorf("Unable to encode message type %d: %w", body.MsgType(), err)
	}

	if buf.Len() > MaxLen {
		return nil, fmt.Errorf("%d bytes exceed %d: %w", buf.Len(), MaxLen, ErrMessageTooLarge)
	}

	ret := buf.Bytes()
	binary.BigEndian.PutUint16(ret[MarkerLen:], uint16(len(ret)))

	return ret, nil
}

// EncodeBody encodes body without the message header
func EncodeBody(body Body, opt *Options) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, MaxLen-HeaderLen))
	err := body.serialize(buf, opt)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func EncodeKeepaliveMsg() ([]byte, error) {
	return Encode(&BGPKeepalive{}, nil)
}

func EncodeNotificationMsg(msg *BGPNotification) ([]byte, error) {
	return Encode(msg, nil)
}

func EncodeOpenMsg(msg *BGPOpen) ([]byte, error) {
	return Encode(msg, nil)
}

func EncodeRouteRefreshMsg(msg *BGPRouteRefresh) ([]byte, error) {
	return Encode(msg, nil)
}

func EncodeUpdateMsg(msg *BGPUpdate, opt *Options) ([]byte, error) {
	return Encode(msg, opt)
}

func encodeHeader(buf *bytes.Buffer, length uint16, typ uint8) error {
	for i := 0; i < MarkerLen; i++ {
		if err := buf.WriteByte(0xff); err != nil {
			return err
		}
	}

	if _, err := buf.Write(uint16Byte(length)); err != nil {
		return err
	}

	if err := buf.WriteByte(typ); err != nil {
		return err
	}

	return nil
}

func (k *BGPKeepalive) serialize(buf *bytes.Buffer, opt *Options) error {
	return nil
}

func (n *BGPNotification) serialize(buf *bytes.Buffer, opt *Options) error {
	buf.WriteByte(uint8(n.ErrorCode))
	buf.WriteByte(uint8(n.ErrorSubcode))
	buf.Write(n.Data)

	return nil
}

func (r *BGPRouteRefresh) serialize(buf *bytes.Buffer, opt *Options) error {
	buf.Write(uint16Byte(uint16(r.AFI)))
	buf.WriteByte(r.Subtype)
	buf.WriteByte(uint8(r.SAFI))

	return nil
}

func (o *BGPOpen) serialize(buf *bytes.Buffer, opt *Options) error {
	params, err := serializeOptParams(o.OptParams)
	if err != nil {
		return err
	}

	buf.WriteByte(uint8(o.Version))
	buf.Write(uint16Byte(uint16(o.AS)))
	buf.Write(uint16Byte(uint16(o.HoldTime)))
	buf.Write(uint32Byte(uint32(o.BGPIdentifier)))
	buf.WriteByte(uint8(len(params)))
	buf.Write(params)

	return nil
}

func (u *BGPUpdate) serialize(buf *bytes.Buffer, opt *Options) error {
	withdrawn := &bytes.Buffer{}
	for _, r := range u.WithdrawnRoutes {
		if err := r.serialize(withdrawn); err != nil {
			return fmt.Errorf("Unable to encode withdrawn route: %w", err)
		}
	}

	attrs := &bytes.Buffer{}
	for i := range u.PathAttributes {
		if err := u.PathAttributes[i].serialize(attrs, opt); err != nil {
			return fmt.Errorf("Unable to encode path attribute %d: %w", u.PathAttributes[i].TypeCode, err)
		}
	}

	nlri := &bytes.Buffer{}
	for _, r := range u.NLRI {
		if err := r.serialize(nlri); err != nil {
			return fmt.Errorf("Unable to encode NLRI: %w", err)
		}
	}

	if withdrawn.Len() > MaxLen || attrs.Len() > MaxLen {
		return fmt.Errorf("withdrawn routes or path attributes exceed %d bytes: %w", MaxLen, ErrMessageTooLarge)
	}

	buf.Write(uint16Byte(uint16(withdrawn.Len())))
	buf.Write(withdrawn.Bytes())
	buf.Write(uint16Byte(uint16(attrs.Len())))
	buf.Write(attrs.Bytes())
	buf.Write(nlri.Bytes())

	return nil
}
