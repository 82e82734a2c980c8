package net

import (
	"fmt"
	"net"
	"net/netip"
)

// Address family identifiers (RFC 4760)
const (
	AFIIPv4 = 1
	AFIIPv6 = 2
)

// Prefix represents an IP prefix of any address family
type Prefix struct {
	afi    uint16
	pfxlen uint8
	addr   []byte
}

// NewPfx creates a new Prefix. addr must hold at least the leading
// ceil(pfxlen/8) bytes of the prefix.
func NewPfx(afi uint16, addr []byte, pfxlen uint8) Prefix {
	return Prefix{
		afi:    afi,
		pfxlen: pfxlen,
		addr:   addr,
	}
}

// NewPfxFromNetIP creates a Prefix from a netip.Prefix
func NewPfxFromNetIP(p netip.Prefix) Prefix {
	a := p.Addr()
	if a.Is4() {
		b := a.As4()
		return NewPfx(AFIIPv4, b[:], uint8(p.Bits()))
	}

	// IPv4-mapped prefixes covering at least the ::ffff:0:0/96 block
	if a.Is4In6() && p.Bits() >= 96 {
		b := a.Unmap().As4()
		return NewPfx(AFIIPv4, b[:], uint8(p.Bits()-96))
	}

	b := a.As16()
	return NewPfx(AFIIPv6, b[:], uint8(p.Bits()))
}

// ParsePfx parses a prefix in CIDR notation
func ParsePfx(s string) (Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return Prefix{}, fmt.Errorf("Unable to parse prefix %q: %w", s, err)
	}

	return NewPfxFromNetIP(p), nil
}

// MustParsePfx is like ParsePfx but panics on error
func MustParsePfx(s string) Prefix {
	p, err := ParsePfx(s)
	if err != nil {
		panic(err)
	}
	return p
}

// AFI returns the address family of the prefix
func (pfx Prefix) AFI() uint16 {
	return pfx.afi
}

// Addr returns the address bytes of the prefix
func (pfx Prefix) Addr() []byte {
	return pfx.addr
}

// Pfxlen returns the length of the prefix
func (pfx Prefix) Pfxlen() uint8 {
	return pfx.pfxlen
}

// MaxPfxlen returns the bit width of the prefix's address family.
// Families other than IPv4 and IPv6 are bounded by the address bytes given.
func (pfx Prefix) MaxPfxlen() int {
	switch pfx.afi {
	case AFIIPv4:
		return net.IPv4len * 8
	case AFIIPv6:
		return net.IPv6len * 8
	}
	return len(pfx.addr) * 8
}

// ByteLen returns the number of bytes needed to carry pfxlen bits
func ByteLen(pfxlen uint8) int {
	return (int(pfxlen) + 7) / 8
}

// Valid checks the prefix length against its family and the address bytes
func (pfx Prefix) Valid() error {
	if int(pfx.pfxlen) > pfx.MaxPfxlen() {
		return fmt.Errorf("prefix length %d exceeds %d bits", pfx.pfxlen, pfx.MaxPfxlen())
	}

	if len(pfx.addr) < ByteLen(pfx.pfxlen) {
		return fmt.Errorf("prefix length %d needs %d address bytes, got %d", pfx.pfxlen, ByteLen(pfx.pfxlen), len(pfx.addr))
	}

	return nil
}

// Bytes returns the leading ceil(pfxlen/8) bytes of the address
func (pfx Prefix) Bytes() []byte {
	n := ByteLen(pfx.pfxlen)
	if n > len(pfx.addr) {
		n = len(pfx.addr)
	}
	return pfx.addr[:n]
}

// String returns a string representation of pfx
func (pfx Prefix) String() string {
	var ip net.IP
	switch pfx.afi {
	case AFIIPv4:
		ip = make(net.IP, net.IPv4len)
	case AFIIPv6:
		ip = make(net.IP, net.IPv6len)
	default:
		return fmt.Sprintf("%x/%d", pfx.addr, pfx.pfxlen)
	}
	copy(ip, pfx.addr)

	return fmt.Sprintf("%s/%d", ip.String(), pfx.pfxlen)
}

// MarshalText implements encoding.TextMarshaler
func (pfx Prefix) MarshalText() ([]byte, error) {
	return []byte(pfx.String()), nil
}
