package packet

import (
	"bytes"
	"fmt"
)

const maxOptParmLen = 255

// NewCapabilitiesParam wraps caps into a single capabilities optional parameter
func NewCapabilitiesParam(caps ...Capability) OptParam {
	return OptParam{
		Type:  CapabilitiesParam,
		Value: caps,
	}
}

func NewMultiProtocolCapability(afi AFI, safi SAFI) Capability {
	return Capability{
		Code:  MultiProtocolCapCode,
		Value: MultiProtocolCapability{AFI: afi, SAFI: safi},
	}
}

func NewFourByteASNCapability(asn ASN32) Capability {
	return Capability{
		Code:  FourByteASNCapCode,
		Value: asn,
	}
}

func NewRouteRefreshCapability() Capability {
	return Capability{Code: RouteRefreshCapCode}
}

func NewEnhancedRouteRefreshCapability() Capability {
	return Capability{Code: EnhancedRouteRefreshCapCode}
}

func NewAddPathCapability(families ...AddPathFamily) Capability {
	return Capability{
		Code:  AddPathCapCode,
		Value: AddPathCapability(families),
	}
}

func NewGracefulRestartCapability(gr GracefulRestartCapability) Capability {
	return Capability{
		Code:  GracefulRestartCapCode,
		Value: gr,
	}
}

// Capabilities returns all capabilities found in o's optional parameters
func (o *BGPOpen) Capabilities() []Capability {
	var ret []Capability
	for _, p := range o.OptParams {
		if caps, ok := p.Value.([]Capability); ok {
			ret = append(ret, caps...)
		}
	}
	return ret
}

func serializeOptParams(params []OptParam) ([]byte, error) {
	buf := &bytes.Buffer{}
	for _, p := range params {
		var value []byte
		switch p.Type {
		case CapabilitiesParam:
			caps, ok := p.Value.([]Capability)
			if !ok {
				return nil, fmt.Errorf("capabilities parameter holds %T: %w", p.Value, ErrInvalidValue)
			}

			v := &bytes.Buffer{}
			for _, c := range caps {
				if err := c.serialize(v); err != nil {
					return nil, err
				}
			}
			value = v.Bytes()
		default:
			raw, ok := p.Value.([]byte)
			if !ok {
				return nil, fmt.Errorf("optional parameter %d holds %T: %w", p.Type, p.Value, ErrInvalidValue)
			}
			value = raw
		}

		if len(value) > maxOptParmLen {
			return nil, fmt.Errorf("optional parameter %d is %d bytes long: %w", p.Type, len(value), ErrParametersTooLarge)
		}

		buf.WriteByte(p.Type)
		buf.WriteByte(uint8(len(value)))
		buf.Write(value)
	}

	if buf.Len() > maxOptParmLen {
		return nil, fmt.Errorf("optional parameters are %d bytes long: %w", buf.Len(), ErrParametersTooLarge)
	}

	return buf.Bytes(), nil
}

func (c Capability) serialize(buf *bytes.Buffer) error {
	v := &bytes.Buffer{}
	switch c.Code {
	case MultiProtocolCapCode:
		mp, ok := c.Value.(MultiProtocolCapability)
		if !ok {
			return c.invalidValue()
		}
		v.Write(uint16Byte(uint16(mp.AFI)))
		v.WriteByte(0)
		v.WriteByte(uint8(mp.SAFI))
	case RouteRefreshCapCode, EnhancedRouteRefreshCapCode:
	case GracefulRestartCapCode:
		gr, ok := c.Value.(GracefulRestartCapability)
		if !ok {
			return c.invalidValue()
		}
		x := gr.RestartTime & 0x0fff
		if gr.Restarting {
			x |= 0x8000
		}
		v.Write(uint16Byte(x))
		for _, f := range gr.Families {
			v.Write(uint16Byte(uint16(f.AFI)))
			v.WriteByte(uint8(f.SAFI))
			if f.ForwardingState {
				v.WriteByte(0x80)
			} else {
				v.WriteByte(0)
			}
		}
	case FourByteASNCapCode:
		asn, ok := c.Value.(ASN32)
		if !ok {
			return c.invalidValue()
		}
		v.Write(uint32Byte(uint32(asn)))
	case AddPathCapCode:
		ap, ok := c.Value.(AddPathCapability)
		if !ok {
			return c.invalidValue()
		}
		for _, f := range ap {
			v.Write(uint16Byte(uint16(f.AFI)))
			v.WriteByte(uint8(f.SAFI))
			v.WriteByte(f.SendReceive)
		}
	default:
		raw, ok := c.Value.(UnknownCapability)
		if !ok {
			return c.invalidValue()
		}
		v.Write(raw)
	}

	if v.Len() > maxOptParmLen {
		return fmt.Errorf("capability %d is %d bytes long: %w", c.Code, v.Len(), ErrParametersTooLarge)
	}

	buf.WriteByte(uint8(c.Code))
	buf.WriteByte(uint8(v.Len()))
	buf.Write(v.Bytes())
	return nil
}

func (c Capability) invalidValue() error {
	return fmt.Errorf("capability %d holds %T: %w", c.Code, c.Value, ErrInvalidValue)
}

func decodeOptParams(buf *bytes.Buffer) ([]OptParam, error) {
	var params []OptParam
	for buf.Len() > 0 {
		p := OptParam{}
		var l uint8
		err := decode(buf, []interface{}{&p.Type, &l})
		if err != nil {
			return nil, err
		}

		value, err := readBytes(buf, int(l))
		if err != nil {
			return nil, fmt.Errorf("Unable to read optional parameter %d: %w", p.Type, err)
		}

		switch p.Type {
		case CapabilitiesParam:
			caps, err := decodeCapabilities(bytes.NewBuffer(value))
			if err != nil {
				return nil, err
			}
			p.Value = caps
		default:
			p.Value = value
		}

		params = append(params, p)
	}

	return params, nil
}

func decodeCapabilities(buf *bytes.Buffer) ([]Capability, error) {
	caps := make([]Capability, 0)
	for buf.Len() > 0 {
		c := Capability{}
		var l uint8
		err := decode(buf, []interface{}{&c.Code, &l})
		if err != nil {
			return nil, err
		}

		value, err := readBytes(buf, int(l))
		if err != nil {
			return nil, fmt.Errorf("Unable to read capability %d: %w", c.Code, err)
		}

		err = c.decodeValue(bytes.NewBuffer(value))
		if err != nil {
			return nil, fmt.Errorf("Unable to decode capability %d: %w", c.Code, err)
		}

		caps = append(caps, c)
	}

	return caps, nil
}

func (c *Capability) decodeValue(buf *bytes.Buffer) error {
	l := buf.Len()
	switch c.Code {
	case MultiProtocolCapCode:
		if l != 4 {
			return fmt.Errorf("multiprotocol capability is %d bytes long: %w", l, ErrLengthMismatch)
		}
		mp := MultiProtocolCapability{}
		var reserved uint8
		if err := decode(buf, []interface{}{&mp.AFI, &reserved, &mp.SAFI}); err != nil {
			return err
		}
		c.Value = mp
	case RouteRefreshCapCode, EnhancedRouteRefreshCapCode:
		if l != 0 {
			return fmt.Errorf("route refresh capability is %d bytes long: %w", l, ErrLengthMismatch)
		}
	case GracefulRestartCapCode:
		if l < 2 || (l-2)%4 != 0 {
			return fmt.Errorf("graceful restart capability is %d bytes long: %w", l, ErrLengthMismatch)
		}
		var x uint16
		if err := decode(buf, []interface{}{&x}); err != nil {
			return err
		}
		gr := GracefulRestartCapability{
			Restarting:  x&0x8000 != 0,
			RestartTime: x & 0x0fff,
		}
		for buf.Len() > 0 {
			f := GracefulRestartFamily{}
			var flags uint8
			if err := decode(buf, []interface{}{&f.AFI, &f.SAFI, &flags}); err != nil {
				return err
			}
			f.ForwardingState = flags&0x80 != 0
			gr.Families = append(gr.Families, f)
		}
		c.Value = gr
	case FourByteASNCapCode:
		if l != 4 {
			return fmt.Errorf("four-octet ASN capability is %d bytes long: %w", l, ErrLengthMismatch)
		}
		var asn ASN32
		if err := decode(buf, []interface{}{&asn}); err != nil {
			return err
		}
		c.Value = asn
	case AddPathCapCode:
		if l%4 != 0 {
			return fmt.Errorf("add-path capability is %d bytes long: %w", l, ErrLengthMismatch)
		}
		ap := make(AddPathCapability, 0, l/4)
		for buf.Len() > 0 {
			f := AddPathFamily{}
			if err := decode(buf, []interface{}{&f.AFI, &f.SAFI, &f.SendReceive}); err != nil {
				return err
			}
			ap = append(ap, f)
		}
		c.Value = ap
	default:
		c.Value = UnknownCapability(buf.Next(l))
	}

	return nil
}
