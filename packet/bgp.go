package packet

import (
	"bytes"

	bnet "github.com/taktv6/bgpwire/net"
)

type MsgType uint8
type MsgLength uint16

type Version uint8
type ASN16 uint16
type ASN32 uint32
type HoldTime uint16
type BGPIdentifier uint32

type ErrorCode uint8
type ErrorSubcode uint8

type AttrTypeCode uint8
type CapabilityCode uint8

type AFI uint16
type SAFI uint8

const (
	OctetLen = 8

	MarkerLen = 16
	HeaderLen = 19
	MinLen    = 19
	MaxLen    = 4096

	MinOpenLen         = 29
	MinUpdateLen       = 23
	MinNotificationLen = 21
	KeepaliveLen       = 19
	RouteRefreshLen    = 23

	BGP4Version = 4

	OpenMsg         = 1
	UpdateMsg       = 2
	NotificationMsg = 3
	KeepaliveMsg    = 4
	RouteRefreshMsg = 5

	MessageHeaderError      = 1
	OpenMessageError        = 2
	UpdateMessageError      = 3
	HoldTimeExpired         = 4
	FiniteStateMachineError = 5
	Cease                   = 6
	RouteRefreshError       = 7

	// Msg Header Errors
	ConnectionNotSync = 1
	BadMessageLength  = 2
	BadMessageType    = 3

	// Open Msg Errors
	UnsupportedVersionNumber     = 1
	BadPeerAS                    = 2
	BadBGPIdentifier             = 3
	UnsupportedOptionalParameter = 4
	DeprecatedOpenMsgError5      = 5
	UnacceptableHoldTime         = 6
	UnsupportedCapability        = 7

	// Update Msg Errors
	MalformedAttributeList    = 1
	UnrecognizedWellKnownAttr = 2
	MissingWellKnonAttr       = 3
	AttrFlagsError            = 4
	AttrLengthError           = 5
	InvalidOriginAttr         = 6
	DeprecatedUpdateMsgError7 = 7
	InvalidNextHopAttr        = 8
	OptionalAttError          = 9
	InvalidNetworkField       = 10
	MalformedASPath           = 11

	// FSM Errors (RFC 6608)
	UnexpectedMsgInOpenSent    = 1
	UnexpectedMsgInOpenConfirm = 2
	UnexpectedMsgInEstablished = 3

	// Cease subcodes (RFC 4486, RFC 8538, RFC 9384)
	MaxPrefixesReached       = 1
	AdministrativeShutdown   = 2
	PeerDeconfigured         = 3
	AdministrativeReset      = 4
	ConnectionRejected       = 5
	OtherConfigurationChange = 6
	ConnectionCollision      = 7
	OutOfResources           = 8
	HardReset                = 9
	BFDDown                  = 10

	// Route Refresh Errors (RFC 7313)
	InvalidRouteRefreshLength = 1

	// Attribute Flags
	OptionalFlag       = 0x80
	TransitiveFlag     = 0x40
	PartialFlag        = 0x20
	ExtendedLengthFlag = 0x10

	// Attribute Type Codes
	OriginAttr              = 1
	ASPathAttr              = 2
	NextHopAttr             = 3
	MEDAttr                 = 4
	LocalPrefAttr           = 5
	AtomicAggrAttr          = 6
	AggregatorAttr          = 7
	CommunitiesAttr         = 8
	OriginatorIDAttr        = 9
	ClusterListAttr         = 10
	MPReachNLRIAttr         = 14
	MPUnreachNLRIAttr       = 15
	ExtendedCommunitiesAttr = 16
	AS4PathAttr             = 17
	AS4AggregatorAttr       = 18
	LargeCommunityAttr      = 32

	// ORIGIN values
	IGP        = 0
	EGP        = 1
	INCOMPLETE = 2

	// ASPath Segment Types
	ASSet      = 1
	ASSequence = 2

	// Optional Parameter Types
	CapabilitiesParam = 2

	// Capability Codes
	MultiProtocolCapCode        = 1
	RouteRefreshCapCode         = 2
	GracefulRestartCapCode      = 64
	FourByteASNCapCode          = 65
	AddPathCapCode              = 69
	EnhancedRouteRefreshCapCode = 70

	// AFIs
	IPv4AFI AFI = bnet.AFIIPv4
	IPv6AFI AFI = bnet.AFIIPv6

	// SAFIs
	UnicastSAFI     SAFI = 1
	MulticastSAFI   SAFI = 2
	MPLSLabelSAFI   SAFI = 4
	MPLSVPNSAFI     SAFI = 128
	FlowspecSAFI    SAFI = 133
	FlowspecVPNSAFI SAFI = 134

	// Add-Path send/receive modes (RFC 7911)
	AddPathReceive     = 1
	AddPathSend        = 2
	AddPathSendReceive = 3
)

// Body is the body of a BGP message
type Body interface {
	MsgType() MsgType
	serialize(buf *bytes.Buffer, opt *Options) error
}

type BGPMessage struct {
	Header *BGPHeader
	Body   Body
}

type BGPHeader struct {
	Length MsgLength
	Type   MsgType
}

type BGPOpen struct {
	Version       Version
	AS            ASN16
	HoldTime      HoldTime
	BGPIdentifier BGPIdentifier
	OptParams     []OptParam
}

// OptParam is an optional parameter of an OPEN message. Value is
// []Capability for CapabilitiesParam and []byte for any other type.
type OptParam struct {
	Type  uint8
	Value interface{}
}

// Capability is a capability advertised in an OPEN message (RFC 5492)
type Capability struct {
	Code  CapabilityCode
	Value interface{}
}

type MultiProtocolCapability struct {
	AFI  AFI
	SAFI SAFI
}

type GracefulRestartCapability struct {
	Restarting  bool
	RestartTime uint16
	Families    []GracefulRestartFamily
}

type GracefulRestartFamily struct {
	AFI             AFI
	SAFI            SAFI
	ForwardingState bool
}

type AddPathCapability []AddPathFamily

type AddPathFamily struct {
	AFI         AFI
	SAFI        SAFI
	SendReceive uint8
}

// UnknownCapability carries the value of a capability the codec does not interpret
type UnknownCapability []byte

type BGPNotification struct {
	ErrorCode    ErrorCode
	ErrorSubcode ErrorSubcode
	Data         []byte
}

type BGPKeepalive struct{}

type BGPRouteRefresh struct {
	AFI     AFI
	Subtype uint8
	SAFI    SAFI
}

type BGPUpdate struct {
	WithdrawnRoutes []NLRI
	PathAttributes  []PathAttribute
	NLRI            []NLRI
}

type PathAttribute struct {
	Optional   bool
	Transitive bool
	Partial    bool
	TypeCode   AttrTypeCode
	Value      interface{}
}

type IPv4Addr [4]byte

type Origin uint8
type MED uint32
type LocalPref uint32
type AtomicAggregate bool
type OriginatorID uint32
type ClusterList []uint32
type Communities []uint32
type ExtendedCommunities []uint64
type LargeCommunities []LargeCommunity

type LargeCommunity struct {
	GlobalAdministrator uint32
	LocalData1          uint32
	LocalData2          uint32
}

type ASPath []ASPathSegment
type ASPathSegment struct {
	Type uint8
	ASNs []ASN32
}

// AS4Path is an AS_PATH carried with four-octet ASNs in AS4_PATH
type AS4Path ASPath

type Aggregator struct {
	ASN  ASN32
	Addr IPv4Addr
}

// AS4Aggregator is an AGGREGATOR carried with a four-octet ASN in AS4_AGGREGATOR
type AS4Aggregator Aggregator

type MPReachNLRI struct {
	AFI     AFI
	SAFI    SAFI
	NextHop []byte
	NLRI    []NLRI
}

type MPUnreachNLRI struct {
	AFI             AFI
	SAFI            SAFI
	WithdrawnRoutes []NLRI
}

// UnknownAttribute carries the payload of a path attribute the codec does not interpret
type UnknownAttribute []byte

func (o *BGPOpen) MsgType() MsgType         { return OpenMsg }
func (u *BGPUpdate) MsgType() MsgType       { return UpdateMsg }
func (n *BGPNotification) MsgType() MsgType { return NotificationMsg }
func (k *BGPKeepalive) MsgType() MsgType    { return KeepaliveMsg }
func (r *BGPRouteRefresh) MsgType() MsgType { return RouteRefreshMsg }
