package packet

import (
	"fmt"
	"io"
	"net"
)

// Dump writes a human readable representation of b to w
func (b *BGPMessage) Dump(w io.Writer) {
	fmt.Fprintf(w, "Type: %d Length: %d\n", b.Header.Type, b.Header.Length)
	switch m := b.Body.(type) {
	case *BGPOpen:
		fmt.Fprintf(w, "OPEN Message:\n")
		fmt.Fprintf(w, "\tVersion: %d\n", m.Version)
		fmt.Fprintf(w, "\tASN: %d\n", m.AS)
		fmt.Fprintf(w, "\tHoldTime: %d\n", m.HoldTime)
		fmt.Fprintf(w, "\tBGP Identifier: %s\n", identifierString(uint32(m.BGPIdentifier)))
		for _, p := range m.OptParams {
			caps, ok := p.Value.([]Capability)
			if !ok {
				fmt.Fprintf(w, "\tOptional Parameter %d: %x\n", p.Type, p.Value)
				continue
			}
			for _, c := range caps {
				fmt.Fprintf(w, "\tCapability %d: %v\n", c.Code, c.Value)
			}
		}
	case *BGPUpdate:
		fmt.Fprintf(w, "UPDATE Message:\n")
		fmt.Fprintf(w, "Withdrawn routes:\n")
		for _, r := range m.WithdrawnRoutes {
			fmt.Fprintf(w, "\t%s\n", NLRIString(r))
		}

		fmt.Fprintf(w, "Path attributes:\n")
		for _, a := range m.PathAttributes {
			fmt.Fprintf(w, "\t%s:\n", a.TypeCode)
			dumpAttrValue(w, a.Value)
		}

		fmt.Fprintf(w, "NLRIs:\n")
		for _, n := range m.NLRI {
			fmt.Fprintf(w, "\t%s\n", NLRIString(n))
		}
	case *BGPNotification:
		fmt.Fprintf(w, "NOTIFICATION Message:\n")
		fmt.Fprintf(w, "\tError: %d/%d\n", m.ErrorCode, m.ErrorSubcode)
		if len(m.Data) > 0 {
			fmt.Fprintf(w, "\tData: %q\n", m.Data)
		}
	case *BGPKeepalive:
		fmt.Fprintf(w, "KEEPALIVE Message\n")
	case *BGPRouteRefresh:
		fmt.Fprintf(w, "ROUTE-REFRESH Message:\n")
		fmt.Fprintf(w, "\tAFI/SAFI: %d/%d Subtype: %d\n", m.AFI, m.SAFI, m.Subtype)
	}
}

func dumpAttrValue(w io.Writer, v interface{}) {
	switch x := v.(type) {
	case IPv4Addr:
		fmt.Fprintf(w, "\t\t%s\n", net.IP(x[:]))
	case MPReachNLRI:
		fmt.Fprintf(w, "\t\tAFI/SAFI: %d/%d Next-Hop: %s\n", x.AFI, x.SAFI, nextHopString(x.NextHop))
		for _, n := range x.NLRI {
			fmt.Fprintf(w, "\t\t%s\n", NLRIString(n))
		}
	case MPUnreachNLRI:
		fmt.Fprintf(w, "\t\tAFI/SAFI: %d/%d\n", x.AFI, x.SAFI)
		for _, n := range x.WithdrawnRoutes {
			fmt.Fprintf(w, "\t\t%s\n", NLRIString(n))
		}
	default:
		fmt.Fprintf(w, "\t\t%v\n", v)
	}
}

// NLRIString returns a string representation of n
func NLRIString(n NLRI) string {
	switch x := n.(type) {
	case IPPrefix:
		return x.Prefix.String()
	case IPPrefixWithPathID:
		return fmt.Sprintf("%s path-id %d", x.Prefix, x.PathID)
	case LabeledVPNPrefix:
		return fmt.Sprintf("%s label %d rd %s", x.Prefix, x.Label, rdString(x.RD))
	case FlowspecNLRI:
		s := "flowspec"
		for _, f := range x.Filters {
			if f.Type.IsPrefix() {
				s += fmt.Sprintf(" %d:%s", f.Type, f.Prefix)
				continue
			}
			s += fmt.Sprintf(" %d:%v", f.Type, f.Values)
		}
		return s
	}
	return fmt.Sprintf("%v", n)
}

// rdString formats a route distinguisher (RFC 4364, section 4.2)
func rdString(rd uint64) string {
	switch rd >> 48 {
	case 0:
		return fmt.Sprintf("%d:%d", (rd>>32)&0xffff, rd&0xffffffff)
	case 1:
		return fmt.Sprintf("%s:%d", identifierString(uint32(rd>>16)), rd&0xffff)
	case 2:
		return fmt.Sprintf("%d:%d", (rd>>16)&0xffffffff, rd&0xffff)
	}
	return fmt.Sprintf("%#x", rd)
}

func identifierString(id uint32) string {
	return net.IP(uint32Byte(id)).String()
}

func nextHopString(nh []byte) string {
	if len(nh) == net.IPv4len || len(nh) == net.IPv6len {
		return net.IP(nh).String()
	}
	if len(nh) == 2*net.IPv6len {
		return net.IP(nh[:net.IPv6len]).String() + " " + net.IP(nh[net.IPv6len:]).String()
	}
	return fmt.Sprintf("%x", nh)
}

// MarshalText implements encoding.TextMarshaler
func (a IPv4Addr) MarshalText() ([]byte, error) {
	return []byte(net.IP(a[:]).String()), nil
}
