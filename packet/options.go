package packet

// AFISAFI identifies an address family
type AFISAFI struct {
	AFI  AFI
	SAFI SAFI
}

// Options carries the parts of a session's negotiated state the codec needs.
// A nil *Options means 2-octet ASNs and no add-path.
type Options struct {
	// AS4 is set when both peers advertised the four-octet ASN capability
	AS4 bool

	// AddPath holds the families for which NLRI carry a path identifier
	AddPath map[AFISAFI]bool
}

func (o *Options) as4() bool {
	return o != nil && o.AS4
}

func (o *Options) addPath(afi AFI, safi SAFI) bool {
	if o == nil || o.AddPath == nil {
		return false
	}
	return o.AddPath[AFISAFI{AFI: afi, SAFI: safi}]
}

func (o *Options) asnLen() uint16 {
	if o.as4() {
		return 4
	}
	return 2
}
