//go:build !noflowspec

package packet

import (
	"bytes"
	"fmt"

	bnet "github.com/taktv6/bgpwire/net"
)

const (
	fsEndOfList = 0x80
	fsAnd       = 0x40
	fsLenMask   = 0x30

	// Operator bits a caller may set, per component kind
	fsNumericOps = uint8(AND | LT | GT | EQ)
	fsBitmaskOps = uint8(AND | Not | Match)

	// NLRI lengths from 240 on use two bytes with the top nibble set
	fsExtendedLenThreshold = 0xf0
	fsMaxNLRILen           = 0x0fff
)

func serializeFlowspecNLRI(buf *bytes.Buffer, n FlowspecNLRI) error {
	components := &bytes.Buffer{}
	last := FlowspecComponent(0)
	for _, f := range n.Filters {
		if f.Type <= last {
			return fmt.Errorf("component %d after %d: %w", f.Type, last, ErrFlowspecOrder)
		}
		last = f.Type

		if err := f.serialize(components); err != nil {
			return fmt.Errorf("Unable to encode flowspec component %d: %w", f.Type, err)
		}
	}

	l := components.Len()
	switch {
	case l < fsExtendedLenThreshold:
		buf.WriteByte(uint8(l))
	case l <= fsMaxNLRILen:
		buf.Write(uint16Byte(0xf000 | uint16(l)))
	default:
		return fmt.Errorf("flowspec NLRI is %d bytes long: %w", l, ErrMessageTooLarge)
	}

	buf.Write(components.Bytes())
	return nil
}

func (f FlowspecFilter) serialize(buf *bytes.Buffer) error {
	buf.WriteByte(uint8(f.Type))
	if f.Type.IsPrefix() {
		return f.serializePrefix(buf)
	}

	if len(f.Values) == 0 {
		return ErrEmptyFilterValues
	}

	ops := f.Type.operatorMask()
	for i, v := range f.Values {
		if uint8(v.Op)&^ops != 0 {
			return fmt.Errorf("operator 0x%02x has bits outside 0x%02x: %w", v.Op, ops, ErrFlowspecOperator)
		}

		if i == 0 && v.Op&AND != 0 {
			return fmt.Errorf("first operator 0x%02x has the AND bit set: %w", v.Op, ErrFlowspecOperator)
		}

		width, code := valueWidth(v.Value)
		op := uint8(v.Op) | code<<4
		if i == len(f.Values)-1 {
			op |= fsEndOfList
		}

		buf.WriteByte(op)
		buf.Write(uint64Byte(v.Value)[8-width:])
	}

	return nil
}

// serializePrefix writes length, offset (IPv6 only) and the prefix bits from
// offset up to the prefix length
func (f FlowspecFilter) serializePrefix(buf *bytes.Buffer) error {
	pfx := f.Prefix
	if err := pfx.Valid(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidPrefixLength)
	}

	buf.WriteByte(pfx.Pfxlen())
	if pfx.AFI() != bnet.AFIIPv6 {
		buf.Write(pfx.Bytes())
		return nil
	}

	if f.Offset > pfx.Pfxlen() {
		return fmt.Errorf("offset %d beyond prefix length %d: %w", f.Offset, pfx.Pfxlen(), ErrInvalidPrefixLength)
	}

	buf.WriteByte(f.Offset)
	buf.Write(extractBits(pfx.Addr(), int(f.Offset), int(pfx.Pfxlen())))
	return nil
}

// valueWidth returns the smallest of 1, 2, 4 or 8 bytes holding v and its length code
func valueWidth(v uint64) (int, uint8) {
	switch {
	case v < 1<<8:
		return 1, 0
	case v < 1<<16:
		return 2, 1
	case v < 1<<32:
		return 4, 2
	}
	return 8, 3
}

func extractBits(addr []byte, from int, to int) []byte {
	ret := make([]byte, (to-from+7)/8)
	for i := from; i < to; i++ {
		if addr[i/8]&(0x80>>uint(i%8)) != 0 {
			j := i - from
			ret[j/8] |= 0x80 >> uint(j%8)
		}
	}
	return ret
}

func insertBits(addr []byte, pattern []byte, from int, to int) {
	for i := from; i < to; i++ {
		j := i - from
		if pattern[j/8]&(0x80>>uint(j%8)) != 0 {
			addr[i/8] |= 0x80 >> uint(i%8)
		}
	}
}

func decodeFlowspecNLRI(buf *bytes.Buffer, afi AFI) (FlowspecNLRI, error) {
	var first uint8
	err := decode(buf, []interface{}{&first})
	if err != nil {
		return FlowspecNLRI{}, err
	}

	l := int(first)
	if first >= fsExtendedLenThreshold {
		var second uint8
		err := decode(buf, []interface{}{&second})
		if err != nil {
			return FlowspecNLRI{}, err
		}
		l = int(first&0x0f)<<8 | int(second)
	}

	b, err := readBytes(buf, l)
	if err != nil {
		return FlowspecNLRI{}, fmt.Errorf("Unable to read flowspec NLRI: %w", err)
	}

	components := bytes.NewBuffer(b)
	n := FlowspecNLRI{}
	last := FlowspecComponent(0)
	for components.Len() > 0 {
		f := FlowspecFilter{}
		err := decode(components, []interface{}{&f.Type})
		if err != nil {
			return FlowspecNLRI{}, err
		}

		if f.Type <= last {
			return FlowspecNLRI{}, fmt.Errorf("component %d after %d: %w", f.Type, last, ErrFlowspecOrder)
		}
		last = f.Type

		if f.Type.IsPrefix() {
			err = f.decodePrefix(components, afi)
		} else {
			err = f.decodeValues(components)
		}
		if err != nil {
			return FlowspecNLRI{}, fmt.Errorf("Unable to decode flowspec component %d: %w", f.Type, err)
		}

		n.Filters = append(n.Filters, f)
	}

	return n, nil
}

func (f *FlowspecFilter) decodePrefix(buf *bytes.Buffer, afi AFI) error {
	alen, err := addrLen(afi)
	if err != nil {
		return err
	}

	var pfxlen uint8
	err = decode(buf, []interface{}{&pfxlen})
	if err != nil {
		return err
	}

	if afi != IPv6AFI {
		f.Prefix, err = decodePrefixBytes(buf, afi, pfxlen)
		return err
	}

	err = decode(buf, []interface{}{&f.Offset})
	if err != nil {
		return err
	}

	if int(pfxlen) > alen*OctetLen || f.Offset > pfxlen {
		return fmt.Errorf("prefix length %d offset %d: %w", pfxlen, f.Offset, ErrInvalidPrefixLength)
	}

	pattern, err := readBytes(buf, (int(pfxlen)-int(f.Offset)+7)/8)
	if err != nil {
		return err
	}

	addr := make([]byte, alen)
	insertBits(addr, pattern, int(f.Offset), int(pfxlen))
	f.Prefix = bnet.NewPfx(uint16(afi), addr, pfxlen)

	return nil
}

func (t FlowspecComponent) operatorMask() uint8 {
	if t.IsBitmask() {
		return fsBitmaskOps
	}
	return fsNumericOps
}

func (f *FlowspecFilter) decodeValues(buf *bytes.Buffer) error {
	ops := f.Type.operatorMask()
	reserved := ^(ops | fsEndOfList | fsLenMask)

	for {
		var op uint8
		err := decode(buf, []interface{}{&op})
		if err != nil {
			return fmt.Errorf("operator list not terminated: %w", err)
		}

		if op&reserved != 0 {
			return fmt.Errorf("reserved bits set in operator 0x%02x: %w", op, ErrFlowspecOperator)
		}

		if len(f.Values) == 0 && op&fsAnd != 0 {
			return fmt.Errorf("first operator 0x%02x has the AND bit set: %w", op, ErrFlowspecOperator)
		}

		width := 1 << ((op & fsLenMask) >> 4)
		b, err := readBytes(buf, width)
		if err != nil {
			return err
		}

		v := FlowspecValue{Op: NumericOperator(op & ops)}
		for _, x := range b {
			v.Value = v.Value<<8 | uint64(x)
		}
		f.Values = append(f.Values, v)

		if op&fsEndOfList != 0 {
			return nil
		}
	}
}
