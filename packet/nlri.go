package packet

import (
	"bytes"
	"fmt"
	"net"

	bnet "github.com/taktv6/bgpwire/net"
)

const (
	labelLen = 3
	rdLen    = 8

	// bits of label and route distinguisher covered by a VPN NLRI's length
	vpnOverheadBits = (labelLen + rdLen) * OctetLen

	maxLabel      = 1<<20 - 1
	bottomOfStack = 0x01
)

// NLRI is a single reachability entry of an UPDATE
type NLRI interface {
	serialize(buf *bytes.Buffer) error
}

// IPPrefix is a plain prefix (RFC 4271, RFC 4760)
type IPPrefix struct {
	Prefix bnet.Prefix
}

// IPPrefixWithPathID is a prefix qualified by an add-path identifier (RFC 7911)
type IPPrefixWithPathID struct {
	PathID uint32
	Prefix bnet.Prefix
}

// LabeledVPNPrefix is a VPN prefix with a single MPLS label (RFC 4364, RFC 8277)
type LabeledVPNPrefix struct {
	Label  uint32
	RD     uint64
	Prefix bnet.Prefix
}

func (n IPPrefix) serialize(buf *bytes.Buffer) error {
	return serializePrefix(buf, n.Prefix)
}

func (n IPPrefixWithPathID) serialize(buf *bytes.Buffer) error {
	buf.Write(uint32Byte(n.PathID))
	return serializePrefix(buf, n.Prefix)
}

func (n LabeledVPNPrefix) serialize(buf *bytes.Buffer) error {
	if err := n.Prefix.Valid(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidPrefixLength)
	}

	if n.Label > maxLabel {
		return fmt.Errorf("label %d exceeds 20 bits: %w", n.Label, ErrInvalidValue)
	}

	buf.WriteByte(uint8(vpnOverheadBits + int(n.Prefix.Pfxlen())))
	label := n.Label<<4 | bottomOfStack
	buf.Write(uint32Byte(label)[1:])
	buf.Write(uint64Byte(n.RD))
	buf.Write(n.Prefix.Bytes())

	return nil
}

func serializePrefix(buf *bytes.Buffer, pfx bnet.Prefix) error {
	if err := pfx.Valid(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidPrefixLength)
	}

	buf.WriteByte(pfx.Pfxlen())
	buf.Write(pfx.Bytes())

	return nil
}

// addrLen returns the length of an address of family afi
func addrLen(afi AFI) (int, error) {
	switch afi {
	case IPv4AFI:
		return net.IPv4len, nil
	case IPv6AFI:
		return net.IPv6len, nil
	}
	return 0, fmt.Errorf("AFI %d: %w", afi, ErrUnsupportedAddressFamily)
}

// decodeNLRIs decodes all reachability entries in buf for the given family
func decodeNLRIs(buf *bytes.Buffer, afi AFI, safi SAFI, opt *Options) ([]NLRI, error) {
	var ret []NLRI
	for buf.Len() > 0 {
		var nlri NLRI
		var err error

		switch safi {
		case UnicastSAFI, MulticastSAFI:
			if opt.addPath(afi, safi) {
				nlri, err = decodeIPPrefixWithPathID(buf, afi)
			} else {
				nlri, err = decodeIPPrefix(buf, afi)
			}
		case MPLSVPNSAFI:
			nlri, err = decodeLabeledVPNPrefix(buf, afi)
		case FlowspecSAFI:
			nlri, err = decodeFlowspecNLRI(buf, afi)
		default:
			return nil, fmt.Errorf("AFI %d SAFI %d: %w", afi, safi, ErrUnsupportedAddressFamily)
		}

		if err != nil {
			return nil, err
		}

		ret = append(ret, nlri)
	}

	return ret, nil
}

func decodeIPPrefix(buf *bytes.Buffer, afi AFI) (IPPrefix, error) {
	var pfxlen uint8
	err := decode(buf, []interface{}{&pfxlen})
	if err != nil {
		return IPPrefix{}, err
	}

	pfx, err := decodePrefixBytes(buf, afi, pfxlen)
	if err != nil {
		return IPPrefix{}, err
	}

	return IPPrefix{Prefix: pfx}, nil
}

func decodeIPPrefixWithPathID(buf *bytes.Buffer, afi AFI) (IPPrefixWithPathID, error) {
	var pathID uint32
	err := decode(buf, []interface{}{&pathID})
	if err != nil {
		return IPPrefixWithPathID{}, err
	}

	n, err := decodeIPPrefix(buf, afi)
	if err != nil {
		return IPPrefixWithPathID{}, err
	}

	return IPPrefixWithPathID{
		PathID: pathID,
		Prefix: n.Prefix,
	}, nil
}

func decodeLabeledVPNPrefix(buf *bytes.Buffer, afi AFI) (LabeledVPNPrefix, error) {
	var l uint8
	err := decode(buf, []interface{}{&l})
	if err != nil {
		return LabeledVPNPrefix{}, err
	}

	if int(l) < vpnOverheadBits {
		return LabeledVPNPrefix{}, fmt.Errorf("VPN NLRI length %d: %w", l, ErrInvalidPrefixLength)
	}

	label, err := readBytes(buf, labelLen)
	if err != nil {
		return LabeledVPNPrefix{}, err
	}

	n := LabeledVPNPrefix{
		Label: (uint32(label[0])<<16 | uint32(label[1])<<8 | uint32(label[2])) >> 4,
	}

	err = decode(buf, []interface{}{&n.RD})
	if err != nil {
		return LabeledVPNPrefix{}, err
	}

	n.Prefix, err = decodePrefixBytes(buf, afi, l-vpnOverheadBits)
	if err != nil {
		return LabeledVPNPrefix{}, err
	}

	return n, nil
}

// decodePrefixBytes reads the trimmed address of a pfxlen long prefix
// and pads it to the full address length of afi
func decodePrefixBytes(buf *bytes.Buffer, afi AFI, pfxlen uint8) (bnet.Prefix, error) {
	alen, err := addrLen(afi)
	if err != nil {
		return bnet.Prefix{}, err
	}

	if int(pfxlen) > alen*OctetLen {
		return bnet.Prefix{}, fmt.Errorf("prefix length %d for AFI %d: %w", pfxlen, afi, ErrInvalidPrefixLength)
	}

	b, err := readBytes(buf, bnet.ByteLen(pfxlen))
	if err != nil {
		return bnet.Prefix{}, fmt.Errorf("Unable to read prefix: %w", err)
	}

	addr := make([]byte, alen)
	copy(addr, b)

	return bnet.NewPfx(uint16(afi), addr, pfxlen), nil
}
