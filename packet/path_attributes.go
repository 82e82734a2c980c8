package packet

import (
	"bytes"
	"fmt"
)

const (
	// ASTrans replaces four-octet ASNs on 2-octet sessions (RFC 6793)
	ASTrans = 23456

	maxShortAttrLen = 255
	maxAttrLen      = 65535
)

type attrPolicy struct {
	name  string
	flags uint8
}

var attrPolicies = map[AttrTypeCode]attrPolicy{
	OriginAttr:              {"ORIGIN", TransitiveFlag},
	ASPathAttr:              {"AS_PATH", TransitiveFlag},
	NextHopAttr:             {"NEXT_HOP", TransitiveFlag},
	MEDAttr:                 {"MULTI_EXIT_DISC", OptionalFlag},
	LocalPrefAttr:           {"LOCAL_PREF", TransitiveFlag},
	AtomicAggrAttr:          {"ATOMIC_AGGREGATE", TransitiveFlag},
	AggregatorAttr:          {"AGGREGATOR", OptionalFlag | TransitiveFlag},
	CommunitiesAttr:         {"COMMUNITIES", OptionalFlag | TransitiveFlag},
	OriginatorIDAttr:        {"ORIGINATOR_ID", OptionalFlag},
	ClusterListAttr:         {"CLUSTER_LIST", OptionalFlag},
	MPReachNLRIAttr:         {"MP_REACH_NLRI", OptionalFlag},
	MPUnreachNLRIAttr:       {"MP_UNREACH_NLRI", OptionalFlag},
	ExtendedCommunitiesAttr: {"EXTENDED_COMMUNITIES", OptionalFlag | TransitiveFlag},
	AS4PathAttr:             {"AS4_PATH", OptionalFlag | TransitiveFlag},
	AS4AggregatorAttr:       {"AS4_AGGREGATOR", OptionalFlag | TransitiveFlag},
	LargeCommunityAttr:      {"LARGE_COMMUNITY", OptionalFlag | TransitiveFlag},
}

// String returns the name of the attribute type
func (t AttrTypeCode) String() string {
	if p, ok := attrPolicies[t]; ok {
		return p.name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

func newPathAttribute(t AttrTypeCode, v interface{}) PathAttribute {
	flags := attrPolicies[t].flags
	return PathAttribute{
		Optional:   isOptional(flags),
		Transitive: isTransitive(flags),
		TypeCode:   t,
		Value:      v,
	}
}

func NewOriginAttr(o Origin) PathAttribute       { return newPathAttribute(OriginAttr, o) }
func NewASPathAttr(p ASPath) PathAttribute       { return newPathAttribute(ASPathAttr, p) }
func NewNextHopAttr(a IPv4Addr) PathAttribute    { return newPathAttribute(NextHopAttr, a) }
func NewMEDAttr(m MED) PathAttribute             { return newPathAttribute(MEDAttr, m) }
func NewLocalPrefAttr(l LocalPref) PathAttribute { return newPathAttribute(LocalPrefAttr, l) }
func NewAtomicAggregateAttr() PathAttribute {
	return newPathAttribute(AtomicAggrAttr, AtomicAggregate(true))
}
func NewAggregatorAttr(a Aggregator) PathAttribute   { return newPathAttribute(AggregatorAttr, a) }
func NewCommunitiesAttr(c Communities) PathAttribute { return newPathAttribute(CommunitiesAttr, c) }
func NewOriginatorIDAttr(id OriginatorID) PathAttribute {
	return newPathAttribute(OriginatorIDAttr, id)
}
func NewClusterListAttr(c ClusterList) PathAttribute { return newPathAttribute(ClusterListAttr, c) }
func NewMPReachNLRIAttr(m MPReachNLRI) PathAttribute { return newPathAttribute(MPReachNLRIAttr, m) }
func NewMPUnreachNLRIAttr(m MPUnreachNLRI) PathAttribute {
	return newPathAttribute(MPUnreachNLRIAttr, m)
}
func NewExtendedCommunitiesAttr(c ExtendedCommunities) PathAttribute {
	return newPathAttribute(ExtendedCommunitiesAttr, c)
}
func NewAS4PathAttr(p AS4Path) PathAttribute { return newPathAttribute(AS4PathAttr, p) }
func NewAS4AggregatorAttr(a AS4Aggregator) PathAttribute {
	return newPathAttribute(AS4AggregatorAttr, a)
}
func NewLargeCommunitiesAttr(c LargeCommunities) PathAttribute {
	return newPathAttribute(LargeCommunityAttr, c)
}

// flags returns the attribute flags to put on the wire. Known attributes
// always get the flags of their type, only Partial is taken from pa.
func (pa *PathAttribute) flags() uint8 {
	var flags uint8
	if p, ok := attrPolicies[pa.TypeCode]; ok {
		flags = p.flags
	} else {
		if pa.Optional {
			flags |= OptionalFlag
		}
		if pa.Transitive {
			flags |= TransitiveFlag
		}
	}

	if pa.Partial {
		flags |= PartialFlag
	}
	return flags
}

func (pa *PathAttribute) serialize(buf *bytes.Buffer, opt *Options) error {
	payload := &bytes.Buffer{}
	err := pa.serializeValue(payload, opt)
	if err != nil {
		return err
	}

	l := payload.Len()
	if l > maxAttrLen {
		return fmt.Errorf("attribute %s is %d bytes long: %w", pa.TypeCode, l, ErrMessageTooLarge)
	}

	flags := pa.flags()
	if l > maxShortAttrLen {
		flags |= ExtendedLengthFlag
	}

	buf.WriteByte(flags)
	buf.WriteByte(uint8(pa.TypeCode))
	if flags&ExtendedLengthFlag != 0 {
		buf.Write(uint16Byte(uint16(l)))
	} else {
		buf.WriteByte(uint8(l))
	}
	buf.Write(payload.Bytes())

	return nil
}

func (pa *PathAttribute) invalidValue() error {
	return fmt.Errorf("attribute %s holds %T: %w", pa.TypeCode, pa.Value, ErrInvalidValue)
}

// attrValueTypes maps each known attribute to the Go type of its value
var attrValueTypes = map[AttrTypeCode]func(interface{}) bool{
	OriginAttr:              func(v interface{}) bool { _, ok := v.(Origin); return ok },
	ASPathAttr:              func(v interface{}) bool { _, ok := v.(ASPath); return ok },
	NextHopAttr:             func(v interface{}) bool { _, ok := v.(IPv4Addr); return ok },
	MEDAttr:                 func(v interface{}) bool { _, ok := v.(MED); return ok },
	LocalPrefAttr:           func(v interface{}) bool { _, ok := v.(LocalPref); return ok },
	AtomicAggrAttr:          func(v interface{}) bool { _, ok := v.(AtomicAggregate); return ok || v == nil },
	AggregatorAttr:          func(v interface{}) bool { _, ok := v.(Aggregator); return ok },
	CommunitiesAttr:         func(v interface{}) bool { _, ok := v.(Communities); return ok },
	OriginatorIDAttr:        func(v interface{}) bool { _, ok := v.(OriginatorID); return ok },
	ClusterListAttr:         func(v interface{}) bool { _, ok := v.(ClusterList); return ok },
	MPReachNLRIAttr:         func(v interface{}) bool { _, ok := v.(MPReachNLRI); return ok },
	MPUnreachNLRIAttr:       func(v interface{}) bool { _, ok := v.(MPUnreachNLRI); return ok },
	ExtendedCommunitiesAttr: func(v interface{}) bool { _, ok := v.(ExtendedCommunities); return ok },
	AS4PathAttr:             func(v interface{}) bool { _, ok := v.(AS4Path); return ok },
	AS4AggregatorAttr:       func(v interface{}) bool { _, ok := v.(AS4Aggregator); return ok },
	LargeCommunityAttr:      func(v interface{}) bool { _, ok := v.(LargeCommunities); return ok },
}

func (pa *PathAttribute) serializeValue(buf *bytes.Buffer, opt *Options) error {
	if matches, known := attrValueTypes[pa.TypeCode]; known && !matches(pa.Value) {
		return pa.invalidValue()
	}

	switch v := pa.Value.(type) {
	case nil:
	case Origin:
		buf.WriteByte(uint8(v))
	case ASPath:
		return serializeASPath(buf, v, opt.asnLen())
	case AS4Path:
		return serializeASPath(buf, ASPath(v), 4)
	case IPv4Addr:
		buf.Write(v[:])
	case MED:
		buf.Write(uint32Byte(uint32(v)))
	case LocalPref:
		buf.Write(uint32Byte(uint32(v)))
	case AtomicAggregate:
	case Aggregator:
		serializeASN(buf, v.ASN, opt.asnLen())
		buf.Write(v.Addr[:])
	case AS4Aggregator:
		serializeASN(buf, v.ASN, 4)
		buf.Write(v.Addr[:])
	case Communities:
		for _, c := range v {
			buf.Write(uint32Byte(c))
		}
	case OriginatorID:
		buf.Write(uint32Byte(uint32(v)))
	case ClusterList:
		for _, c := range v {
			buf.Write(uint32Byte(c))
		}
	case MPReachNLRI:
		return serializeMPReachNLRI(buf, v)
	case MPUnreachNLRI:
		return serializeMPUnreachNLRI(buf, v)
	case ExtendedCommunities:
		for _, c := range v {
			buf.Write(uint64Byte(c))
		}
	case LargeCommunities:
		for _, c := range v {
			buf.Write(uint32Byte(c.GlobalAdministrator))
			buf.Write(uint32Byte(c.LocalData1))
			buf.Write(uint32Byte(c.LocalData2))
		}
	case UnknownAttribute:
		buf.Write(v)
	default:
		return pa.invalidValue()
	}

	return nil
}

func serializeASN(buf *bytes.Buffer, asn ASN32, asnLen uint16) {
	if asnLen == 4 {
		buf.Write(uint32Byte(uint32(asn)))
		return
	}

	if asn > 0xffff {
		asn = ASTrans
	}
	buf.Write(uint16Byte(uint16(asn)))
}

func serializeASPath(buf *bytes.Buffer, path ASPath, asnLen uint16) error {
	for _, s := range path {
		if len(s.ASNs) > 255 {
			return fmt.Errorf("AS path segment holds %d ASNs: %w", len(s.ASNs), ErrAttributeLength)
		}

		buf.WriteByte(s.Type)
		buf.WriteByte(uint8(len(s.ASNs)))
		for _, asn := range s.ASNs {
			serializeASN(buf, asn, asnLen)
		}
	}

	return nil
}

func serializeMPReachNLRI(buf *bytes.Buffer, m MPReachNLRI) error {
	if len(m.NextHop) > 255 {
		return fmt.Errorf("next hop is %d bytes long: %w", len(m.NextHop), ErrAttributeLength)
	}

	buf.Write(uint16Byte(uint16(m.AFI)))
	buf.WriteByte(uint8(m.SAFI))
	buf.WriteByte(uint8(len(m.NextHop)))
	buf.Write(m.NextHop)
	buf.WriteByte(0) // Reserved

	for _, n := range m.NLRI {
		if err := n.serialize(buf); err != nil {
			return err
		}
	}

	return nil
}

func serializeMPUnreachNLRI(buf *bytes.Buffer, m MPUnreachNLRI) error {
	buf.Write(uint16Byte(uint16(m.AFI)))
	buf.WriteByte(uint8(m.SAFI))

	for _, n := range m.WithdrawnRoutes {
		if err := n.serialize(buf); err != nil {
			return err
		}
	}

	return nil
}

func decodePathAttrs(buf *bytes.Buffer, tpal uint16, opt *Options) ([]PathAttribute, error) {
	var attrs []PathAttribute

	b, err := readBytes(buf, int(tpal))
	if err != nil {
		return nil, fmt.Errorf("Unable to read path attributes: %w", err)
	}

	abuf := bytes.NewBuffer(b)
	for abuf.Len() > 0 {
		pa, err := decodePathAttr(abuf, opt)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, *pa)
	}

	return attrs, nil
}

func decodePathAttr(buf *bytes.Buffer, opt *Options) (*PathAttribute, error) {
	pa := &PathAttribute{}

	var flags uint8
	err := decode(buf, []interface{}{&flags, &pa.TypeCode})
	if err != nil {
		return nil, fmt.Errorf("Unable to get path attribute flags: %w", err)
	}

	pa.Optional = isOptional(flags)
	pa.Transitive = isTransitive(flags)
	pa.Partial = isPartial(flags)

	var l uint16
	if isExtendedLength(flags) {
		err = decode(buf, []interface{}{&l})
	} else {
		var x uint8
		err = decode(buf, []interface{}{&x})
		l = uint16(x)
	}
	if err != nil {
		return nil, fmt.Errorf("Unable to get length of attribute %s: %w", pa.TypeCode, err)
	}

	payload, err := readBytes(buf, int(l))
	if err != nil {
		return nil, fmt.Errorf("Unable to read attribute %s: %w", pa.TypeCode, err)
	}

	pbuf := bytes.NewBuffer(payload)
	switch pa.TypeCode {
	case OriginAttr:
		err = pa.decodeOrigin(pbuf)
	case ASPathAttr:
		pa.Value, err = decodeASPath(pbuf, opt.asnLen())
	case NextHopAttr:
		err = pa.decodeNextHop(pbuf)
	case MEDAttr:
		err = pa.decodeMED(pbuf)
	case LocalPrefAttr:
		err = pa.decodeLocalPref(pbuf)
	case AtomicAggrAttr:
		err = pa.decodeAtomicAggregate(pbuf)
	case AggregatorAttr:
		var aggr Aggregator
		aggr, err = decodeAggregator(pbuf, opt.asnLen())
		pa.Value = aggr
	case CommunitiesAttr:
		err = pa.decodeCommunities(pbuf)
	case OriginatorIDAttr:
		err = pa.decodeOriginatorID(pbuf)
	case ClusterListAttr:
		err = pa.decodeClusterList(pbuf)
	case MPReachNLRIAttr:
		err = pa.decodeMPReachNLRI(pbuf, opt)
	case MPUnreachNLRIAttr:
		err = pa.decodeMPUnreachNLRI(pbuf, opt)
	case ExtendedCommunitiesAttr:
		err = pa.decodeExtendedCommunities(pbuf)
	case AS4PathAttr:
		var path ASPath
		path, err = decodeASPath(pbuf, 4)
		pa.Value = AS4Path(path)
	case AS4AggregatorAttr:
		var aggr Aggregator
		aggr, err = decodeAggregator(pbuf, 4)
		pa.Value = AS4Aggregator(aggr)
	case LargeCommunityAttr:
		err = pa.decodeLargeCommunities(pbuf)
	default:
		if !pa.Optional {
			return nil, fmt.Errorf("well-known attribute %d: %w", pa.TypeCode, ErrUnknownAttributeType)
		}
		pa.Partial = true
		pa.Value = UnknownAttribute(payload)
		return pa, nil
	}

	if err != nil {
		return nil, fmt.Errorf("Failed to decode %s: %w", pa.TypeCode, err)
	}

	if pbuf.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes in %s: %w", pbuf.Len(), pa.TypeCode, ErrAttributeLength)
	}

	return pa, nil
}

// checkLength makes sure a fixed size attribute has exactly l bytes of payload
func checkLength(buf *bytes.Buffer, l int) error {
	if buf.Len() != l {
		return fmt.Errorf("expected %d bytes, got %d: %w", l, buf.Len(), ErrAttributeLength)
	}
	return nil
}

// checkMultiple makes sure a list attribute's payload is a multiple of l bytes
func checkMultiple(buf *bytes.Buffer, l int) error {
	if buf.Len()%l != 0 {
		return fmt.Errorf("%d bytes are not a multiple of %d: %w", buf.Len(), l, ErrAttributeLength)
	}
	return nil
}

func (pa *PathAttribute) decodeOrigin(buf *bytes.Buffer) error {
	if err := checkLength(buf, 1); err != nil {
		return err
	}

	var origin Origin
	err := decode(buf, []interface{}{&origin})
	if err != nil {
		return err
	}

	pa.Value = origin
	return nil
}

func decodeASPath(buf *bytes.Buffer, asnLen uint16) (ASPath, error) {
	var path ASPath

	for buf.Len() > 0 {
		var count uint8
		segment := ASPathSegment{}

		err := decode(buf, []interface{}{&segment.Type, &count})
		if err != nil {
			return nil, err
		}

		if segment.Type != ASSet && segment.Type != ASSequence {
			return nil, fmt.Errorf("Invalid AS Path segment type %d: %w", segment.Type, ErrInvalidValue)
		}

		if count == 0 {
			return nil, fmt.Errorf("Invalid AS Path segment length %d: %w", count, ErrAttributeLength)
		}

		segment.ASNs = make([]ASN32, 0, count)
		for i := uint8(0); i < count; i++ {
			asn, err := decodeASN(buf, asnLen)
			if err != nil {
				return nil, err
			}

			segment.ASNs = append(segment.ASNs, asn)
		}
		path = append(path, segment)
	}

	return path, nil
}

func decodeASN(buf *bytes.Buffer, asnLen uint16) (ASN32, error) {
	if asnLen == 4 {
		var asn ASN32
		err := decode(buf, []interface{}{&asn})
		return asn, err
	}

	var asn ASN16
	err := decode(buf, []interface{}{&asn})
	return ASN32(asn), err
}

func (pa *PathAttribute) decodeNextHop(buf *bytes.Buffer) error {
	if err := checkLength(buf, 4); err != nil {
		return err
	}

	addr := IPv4Addr{}
	copy(addr[:], buf.Next(4))

	pa.Value = addr
	return nil
}

func (pa *PathAttribute) decodeMED(buf *bytes.Buffer) error {
	med, err := decodeUint32(buf)
	if err != nil {
		return fmt.Errorf("Unable to decode MED: %w", err)
	}

	pa.Value = MED(med)
	return nil
}

func (pa *PathAttribute) decodeLocalPref(buf *bytes.Buffer) error {
	lpref, err := decodeUint32(buf)
	if err != nil {
		return fmt.Errorf("Unable to decode local pref: %w", err)
	}

	pa.Value = LocalPref(lpref)
	return nil
}

func (pa *PathAttribute) decodeOriginatorID(buf *bytes.Buffer) error {
	id, err := decodeUint32(buf)
	if err != nil {
		return fmt.Errorf("Unable to decode originator ID: %w", err)
	}

	pa.Value = OriginatorID(id)
	return nil
}

func decodeUint32(buf *bytes.Buffer) (uint32, error) {
	if err := checkLength(buf, 4); err != nil {
		return 0, err
	}

	var v uint32
	err := decode(buf, []interface{}{&v})
	if err != nil {
		return 0, err
	}

	return v, nil
}

func (pa *PathAttribute) decodeAtomicAggregate(buf *bytes.Buffer) error {
	if err := checkLength(buf, 0); err != nil {
		return err
	}

	pa.Value = AtomicAggregate(true)
	return nil
}

func decodeAggregator(buf *bytes.Buffer, asnLen uint16) (Aggregator, error) {
	aggr := Aggregator{}
	if err := checkLength(buf, int(asnLen)+4); err != nil {
		return aggr, err
	}

	asn, err := decodeASN(buf, asnLen)
	if err != nil {
		return aggr, err
	}
	aggr.ASN = asn
	copy(aggr.Addr[:], buf.Next(4))

	return aggr, nil
}

func (pa *PathAttribute) decodeCommunities(buf *bytes.Buffer) error {
	if err := checkMultiple(buf, 4); err != nil {
		return err
	}

	comms := make(Communities, buf.Len()/4)
	err := decode(buf, []interface{}{[]uint32(comms)})
	if err != nil {
		return err
	}

	pa.Value = comms
	return nil
}

func (pa *PathAttribute) decodeClusterList(buf *bytes.Buffer) error {
	if err := checkMultiple(buf, 4); err != nil {
		return err
	}

	cl := make(ClusterList, buf.Len()/4)
	err := decode(buf, []interface{}{[]uint32(cl)})
	if err != nil {
		return err
	}

	pa.Value = cl
	return nil
}

func (pa *PathAttribute) decodeExtendedCommunities(buf *bytes.Buffer) error {
	if err := checkMultiple(buf, 8); err != nil {
		return err
	}

	comms := make(ExtendedCommunities, buf.Len()/8)
	err := decode(buf, []interface{}{[]uint64(comms)})
	if err != nil {
		return err
	}

	pa.Value = comms
	return nil
}

func (pa *PathAttribute) decodeLargeCommunities(buf *bytes.Buffer) error {
	if err := checkMultiple(buf, 12); err != nil {
		return err
	}

	comms := make(LargeCommunities, buf.Len()/12)
	err := decode(buf, []interface{}{[]LargeCommunity(comms)})
	if err != nil {
		return err
	}

	pa.Value = comms
	return nil
}

func (pa *PathAttribute) decodeMPReachNLRI(buf *bytes.Buffer, opt *Options) error {
	m := MPReachNLRI{}

	var nhLen uint8
	err := decode(buf, []interface{}{&m.AFI, &m.SAFI, &nhLen})
	if err != nil {
		return err
	}

	m.NextHop, err = readBytes(buf, int(nhLen))
	if err != nil {
		return fmt.Errorf("Unable to read next hop: %w", err)
	}

	var reserved uint8
	err = decode(buf, []interface{}{&reserved})
	if err != nil {
		return err
	}

	m.NLRI, err = decodeNLRIs(buf, m.AFI, m.SAFI, opt)
	if err != nil {
		return err
	}

	pa.Value = m
	return nil
}

func (pa *PathAttribute) decodeMPUnreachNLRI(buf *bytes.Buffer, opt *Options) error {
	m := MPUnreachNLRI{}

	err := decode(buf, []interface{}{&m.AFI, &m.SAFI})
	if err != nil {
		return err
	}

	m.WithdrawnRoutes, err = decodeNLRIs(buf, m.AFI, m.SAFI, opt)
	if err != nil {
		return err
	}

	pa.Value = m
	return nil
}

func isOptional(x uint8) bool {
	return x&OptionalFlag == OptionalFlag
}

func isTransitive(x uint8) bool {
	return x&TransitiveFlag == TransitiveFlag
}

func isPartial(x uint8) bool {
	return x&PartialFlag == PartialFlag
}

func isExtendedLength(x uint8) bool {
	return x&ExtendedLengthFlag == ExtendedLengthFlag
}
