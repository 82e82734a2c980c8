package packet

import (
	"bytes"

	bnet "github.com/taktv6/bgpwire/net"
)

// FlowspecComponent is the type code of a flowspec filter component (RFC 8955, RFC 8956)
type FlowspecComponent uint8

const (
	FlowspecDestinationPrefix FlowspecComponent = 1
	FlowspecSourcePrefix      FlowspecComponent = 2
	FlowspecIPProtocol        FlowspecComponent = 3
	FlowspecPort              FlowspecComponent = 4
	FlowspecDestinationPort   FlowspecComponent = 5
	FlowspecSourcePort        FlowspecComponent = 6
	FlowspecICMPType          FlowspecComponent = 7
	FlowspecICMPCode          FlowspecComponent = 8
	FlowspecTCPFlags          FlowspecComponent = 9
	FlowspecPacketLength      FlowspecComponent = 10
	FlowspecDSCP              FlowspecComponent = 11
	FlowspecFragment          FlowspecComponent = 12
	FlowspecFlowLabel         FlowspecComponent = 13
)

// NumericOperator is the operator of a flowspec operator/value pair
type NumericOperator uint8

const (
	EQ  NumericOperator = 0x01
	GT  NumericOperator = 0x02
	LT  NumericOperator = 0x04
	AND NumericOperator = 0x40

	LE = EQ | LT
	GE = EQ | GT
	NE = LT | GT

	// Operators of bitmask components (TCP flags, fragment)
	Match NumericOperator = 0x01
	Not   NumericOperator = 0x02
)

// FlowspecValue is a single operator/value pair
type FlowspecValue struct {
	Op    NumericOperator
	Value uint64
}

// FlowspecFilter is one component of a flowspec NLRI. Prefix and Offset are
// used by prefix components, Values by all other components.
type FlowspecFilter struct {
	Type   FlowspecComponent
	Prefix bnet.Prefix
	Offset uint8
	Values []FlowspecValue
}

// FlowspecNLRI is a flowspec rule (RFC 8955)
type FlowspecNLRI struct {
	Filters []FlowspecFilter
}

func (n FlowspecNLRI) serialize(buf *bytes.Buffer) error {
	return serializeFlowspecNLRI(buf, n)
}

// IsPrefix tells whether t carries a prefix rather than operator/value pairs
func (t FlowspecComponent) IsPrefix() bool {
	return t == FlowspecDestinationPrefix || t == FlowspecSourcePrefix
}

// IsBitmask tells whether t uses bitmask instead of numeric operators
func (t FlowspecComponent) IsBitmask() bool {
	return t == FlowspecTCPFlags || t == FlowspecFragment
}

func NewFlowspecDestinationPrefix(pfx bnet.Prefix) FlowspecFilter {
	return FlowspecFilter{Type: FlowspecDestinationPrefix, Prefix: pfx}
}

func NewFlowspecSourcePrefix(pfx bnet.Prefix) FlowspecFilter {
	return FlowspecFilter{Type: FlowspecSourcePrefix, Prefix: pfx}
}

// NewFlowspecFilter creates a value component of type t
func NewFlowspecFilter(t FlowspecComponent, values ...FlowspecValue) FlowspecFilter {
	return FlowspecFilter{Type: t, Values: values}
}
