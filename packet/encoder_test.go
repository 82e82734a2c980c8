package packet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	bnet "github.com/taktv6/bgpwire/net"
)

func TestEncodeKeepaliveMsg(t *testing.T) {
	expected := withMarker(0, 19, 4)

	res, err := EncodeKeepaliveMsg()
	if err != nil {
		t.Fatalf("Unable to encode keepalive: %v", err)
	}

	assert.Equal(t, expected, res)
}

func TestEncodeNotificationMsg(t *testing.T) {
	tests := []struct {
		testNum  int
		input    *BGPNotification
		expected []byte
	}{
		{
			testNum: 1,
			input: &BGPNotification{
				ErrorCode:    Cease,
				ErrorSubcode: PeerDeconfigured,
			},
			expected: withMarker(0, 21, 3, 6, 3),
		},
		{
			testNum: 2,
			input: &BGPNotification{
				ErrorCode:    Cease,
				ErrorSubcode: PeerDeconfigured,
				Data:         []byte("Peer De-Configured"),
			},
			expected: append(withMarker(0, 39, 3, 6, 3), []byte("Peer De-Configured")...),
		},
		{
			testNum: 3,
			input: &BGPNotification{
				ErrorCode:    OpenMessageError,
				ErrorSubcode: BadPeerAS,
			},
			expected: withMarker(0, 21, 3, 2, 2),
		},
	}

	for _, test := range tests {
		res, err := EncodeNotificationMsg(test.input)
		if err != nil {
			t.Errorf("Unexpected error in test %d: %v", test.testNum, err)
			continue
		}

		assert.Equal(t, test.expected, res)
	}
}

func TestEncodeRouteRefreshMsg(t *testing.T) {
	rr := &BGPRouteRefresh{
		AFI:     IPv4AFI,
		Subtype: 1,
		SAFI:    UnicastSAFI,
	}

	body, err := EncodeBody(rr, nil)
	if err != nil {
		t.Fatalf("Unable to encode route refresh: %v", err)
	}
	assert.Equal(t, []byte{0, 1, 1, 1}, body)

	res, err := EncodeRouteRefreshMsg(rr)
	if err != nil {
		t.Fatalf("Unable to encode route refresh: %v", err)
	}
	assert.Equal(t, []byte{0, 23, 5}, res[MarkerLen:HeaderLen])
	assert.Equal(t, body, res[HeaderLen:])
}

func TestEncodeOpenMsg(t *testing.T) {
	tests := []struct {
		name     string
		input    *BGPOpen
		wantFail bool
		wantErr  error
		expected []byte
	}{
		{
			name: "No capabilities",
			input: &BGPOpen{
				Version:       4,
				AS:            200,
				HoldTime:      15,
				BGPIdentifier: 100,
			},
			expected: withMarker(0, 29, 1, 4, 0, 200, 0, 15, 0, 0, 0, 100, 0),
		},
		{
			name: "Multiprotocol, four-octet ASN and route refresh",
			input: &BGPOpen{
				Version:       4,
				AS:            65000,
				HoldTime:      60,
				BGPIdentifier: 16843009,
				OptParams: []OptParam{
					NewCapabilitiesParam(
						NewMultiProtocolCapability(IPv6AFI, UnicastSAFI),
						NewFourByteASNCapability(65000),
						NewRouteRefreshCapability(),
					),
				},
			},
			expected: withMarker(0, 45, 1,
				4, 0xfd, 0xe8, 0, 0x3c, 1, 1, 1, 1,
				16, 2, 14,
				1, 4, 0, 2, 0, 1,
				0x41, 4, 0, 0, 0xfd, 0xe8,
				2, 0,
			),
		},
		{
			name: "Add-path and graceful restart",
			input: &BGPOpen{
				Version:       4,
				AS:            65000,
				HoldTime:      90,
				BGPIdentifier: 16843009,
				OptParams: []OptParam{
					NewCapabilitiesParam(
						NewAddPathCapability(AddPathFamily{AFI: IPv4AFI, SAFI: UnicastSAFI, SendReceive: AddPathSendReceive}),
						NewGracefulRestartCapability(GracefulRestartCapability{
							Restarting:  true,
							RestartTime: 120,
							Families: []GracefulRestartFamily{
								{AFI: IPv6AFI, SAFI: UnicastSAFI, ForwardingState: true},
							},
						}),
						NewEnhancedRouteRefreshCapability(),
					),
				},
			},
			expected: withMarker(0, 47, 1,
				4, 0xfd, 0xe8, 0, 90, 1, 1, 1, 1,
				18, 2, 16,
				69, 4, 0, 1, 1, 3,
				64, 6, 0x80, 120, 0, 2, 1, 0x80,
				70, 0,
			),
		},
		{
			name: "Capability value does not match its code",
			input: &BGPOpen{
				Version: 4,
				OptParams: []OptParam{
					NewCapabilitiesParam(Capability{Code: MultiProtocolCapCode, Value: ASN32(1)}),
				},
			},
			wantFail: true,
			wantErr:  ErrInvalidValue,
		},
	}

	for _, test := range tests {
		res, err := EncodeOpenMsg(test.input)

		if test.wantFail && err == nil {
			t.Errorf("Expected error did not happen for test %q", test.name)
			continue
		}

		if !test.wantFail && err != nil {
			t.Errorf("Unexpected failure for test %q: %v", test.name, err)
			continue
		}

		if test.wantFail {
			if !errors.Is(err, test.wantErr) {
				t.Errorf("Unexpected error for test %q: got %v, want %v", test.name, err, test.wantErr)
			}
			continue
		}

		assert.Equal(t, test.expected, res, test.name)
	}
}

func TestEncodeOpenMsgParametersTooLarge(t *testing.T) {
	caps := make([]Capability, 0, 90)
	for i := 0; i < 90; i++ {
		caps = append(caps, NewFourByteASNCapability(ASN32(65000+i)))
	}

	open := &BGPOpen{
		Version:       4,
		AS:            65000,
		HoldTime:      60,
		BGPIdentifier: 16843009,
		OptParams:     []OptParam{NewCapabilitiesParam(caps...)},
	}

	_, err := EncodeOpenMsg(open)
	assert.True(t, errors.Is(err, ErrParametersTooLarge), "got %v", err)

	// The same capabilities split over several parameters still exceed the total
	params := make([]OptParam, 0, 9)
	for i := 0; i < 90; i += 10 {
		params = append(params, NewCapabilitiesParam(caps[i:i+10]...))
	}
	open.OptParams = params

	_, err = EncodeOpenMsg(open)
	assert.True(t, errors.Is(err, ErrParametersTooLarge), "got %v", err)
}

func TestSerializeNLRI(t *testing.T) {
	tests := []struct {
		name     string
		input    NLRI
		wantFail bool
		wantErr  error
		expected []byte
	}{
		{
			name:     "IPv6 typed /17",
			input:    IPPrefix{Prefix: bnet.NewPfx(bnet.AFIIPv6, []byte{10, 10, 128, 0}, 17)},
			expected: []byte{17, 10, 10, 128},
		},
		{
			name:     "IPv6 /64",
			input:    IPPrefix{Prefix: bnet.MustParsePfx("2001:10::/64")},
			expected: []byte{64, 32, 1, 0, 16, 0, 0, 0, 0},
		},
		{
			name:     "Default route",
			input:    IPPrefix{Prefix: bnet.MustParsePfx("0.0.0.0/0")},
			expected: []byte{0},
		},
		{
			name:     "Path ID",
			input:    IPPrefixWithPathID{PathID: 1, Prefix: bnet.MustParsePfx("5.5.5.5/32")},
			expected: []byte{0, 0, 0, 1, 32, 5, 5, 5, 5},
		},
		{
			name: "Labeled VPN",
			input: LabeledVPNPrefix{
				Label:  100,
				RD:     3200,
				Prefix: bnet.MustParsePfx("5.5.5.5/32"),
			},
			expected: []byte{120, 0, 6, 65, 0, 0, 0, 0, 0, 0, 12, 128, 5, 5, 5, 5},
		},
		{
			name: "Label too large",
			input: LabeledVPNPrefix{
				Label:  1 << 20,
				Prefix: bnet.MustParsePfx("5.5.5.5/32"),
			},
			wantFail: true,
			wantErr:  ErrInvalidValue,
		},
		{
			name:     "IPv4 /33",
			input:    IPPrefix{Prefix: bnet.NewPfx(bnet.AFIIPv4, []byte{10, 0, 0, 0, 0}, 33)},
			wantFail: true,
			wantErr:  ErrInvalidPrefixLength,
		},
		{
			name:     "IPv6 /129",
			input:    IPPrefix{Prefix: bnet.NewPfx(bnet.AFIIPv6, make([]byte, 17), 129)},
			wantFail: true,
			wantErr:  ErrInvalidPrefixLength,
		},
	}

	for _, test := range tests {
		buf := &bytes.Buffer{}
		err := test.input.serialize(buf)

		if test.wantFail && err == nil {
			t.Errorf("Expected error did not happen for test %q", test.name)
			continue
		}

		if !test.wantFail && err != nil {
			t.Errorf("Unexpected failure for test %q: %v", test.name, err)
			continue
		}

		if test.wantFail {
			if !errors.Is(err, test.wantErr) {
				t.Errorf("Unexpected error for test %q: got %v, want %v", test.name, err, test.wantErr)
			}
			continue
		}

		assert.Equal(t, test.expected, buf.Bytes(), test.name)
	}
}

func addPathUpdate() *BGPUpdate {
	return &BGPUpdate{
		PathAttributes: []PathAttribute{
			NewOriginAttr(IGP),
			NewASPathAttr(ASPath{
				{Type: ASSequence, ASNs: []ASN32{64511}},
			}),
			NewNextHopAttr(IPv4Addr{10, 0, 14, 1}),
			NewMEDAttr(0),
			NewLocalPrefAttr(100),
			NewClusterListAttr(ClusterList{167780868}),
			NewOriginatorIDAttr(167776001),
		},
		NLRI: []NLRI{
			IPPrefixWithPathID{PathID: 1, Prefix: bnet.MustParsePfx("5.5.5.5/32")},
			IPPrefixWithPathID{PathID: 1, Prefix: bnet.MustParsePfx("192.168.1.5/32")},
		},
	}
}

func TestEncodeUpdateMsg(t *testing.T) {
	tests := []struct {
		name     string
		input    *BGPUpdate
		opt      *Options
		expected []byte
	}{
		{
			name:  "Add-path IPv4 unicast",
			input: addPathUpdate(),
			opt: &Options{
				AddPath: map[AFISAFI]bool{
					{AFI: IPv4AFI, SAFI: UnicastSAFI}: true,
				},
			},
			expected: withMarker(0, 87, 2,
				0, 0, // Withdrawn Routes Length
				0, 46, // Total Path Attribute Length
				64, 1, 1, 0, // ORIGIN
				64, 2, 4, 2, 1, 251, 255, // AS_PATH
				64, 3, 4, 10, 0, 14, 1, // NEXT_HOP
				128, 4, 4, 0, 0, 0, 0, // MED
				64, 5, 4, 0, 0, 0, 100, // LOCAL_PREF
				128, 10, 4, 10, 0, 34, 4, // CLUSTER_LIST
				128, 9, 4, 10, 0, 15, 1, // ORIGINATOR_ID
				0, 0, 0, 1, 32, 5, 5, 5, 5, // 5.5.5.5/32
				0, 0, 0, 1, 32, 192, 168, 1, 5, // 192.168.1.5/32
			),
		},
		{
			name: "IPv4 and IPv6 withdraws",
			input: &BGPUpdate{
				WithdrawnRoutes: []NLRI{
					IPPrefix{Prefix: bnet.MustParsePfx("10.1.1.0/24")},
					IPPrefix{Prefix: bnet.MustParsePfx("172.16.0.0/12")},
				},
				PathAttributes: []PathAttribute{
					NewOriginAttr(IGP),
					NewASPathAttr(ASPath{
						{Type: ASSequence, ASNs: []ASN32{65000}},
					}),
					NewMEDAttr(0),
					NewLocalPrefAttr(100),
					NewMPUnreachNLRIAttr(MPUnreachNLRI{
						AFI:  IPv6AFI,
						SAFI: UnicastSAFI,
						WithdrawnRoutes: []NLRI{
							IPPrefix{Prefix: bnet.MustParsePfx("3001:10:10::/56")},
							IPPrefix{Prefix: bnet.MustParsePfx("2620:20:20::/48")},
						},
					}),
				},
			},
			expected: withMarker(0, 76, 2,
				0, 7, // Withdrawn Routes Length
				24, 10, 1, 1, // 10.1.1.0/24
				12, 172, 16, // 172.16.0.0/12
				0, 46, // Total Path Attribute Length
				64, 1, 1, 0, // ORIGIN
				64, 2, 4, 2, 1, 0xfd, 0xe8, // AS_PATH
				128, 4, 4, 0, 0, 0, 0, // MED
				64, 5, 4, 0, 0, 0, 100, // LOCAL_PREF
				128, 15, 18, 0, 2, 1, // MP_UNREACH_NLRI
				56, 48, 1, 0, 16, 0, 16, 0, // 3001:10:10::/56
				48, 38, 32, 0, 32, 0, 32, // 2620:20:20::/48
			),
		},
		{
			name: "Labeled VPN announcement",
			input: &BGPUpdate{
				PathAttributes: []PathAttribute{
					NewOriginAttr(IGP),
					NewASPathAttr(ASPath{}),
					NewMPReachNLRIAttr(MPReachNLRI{
						AFI:     IPv4AFI,
						SAFI:    MPLSVPNSAFI,
						NextHop: []byte{0, 0, 0, 0, 0, 0, 0, 0, 10, 0, 0, 1},
						NLRI: []NLRI{
							LabeledVPNPrefix{
								Label:  100,
								RD:     3200,
								Prefix: bnet.MustParsePfx("5.5.5.5/32"),
							},
						},
					}),
				},
			},
			expected: withMarker(0, 66, 2,
				0, 0, // Withdrawn Routes Length
				0, 43, // Total Path Attribute Length
				64, 1, 1, 0, // ORIGIN
				64, 2, 0, // AS_PATH
				128, 14, 33, 0, 1, 128, 12, // MP_REACH_NLRI
				0, 0, 0, 0, 0, 0, 0, 0, 10, 0, 0, 1, // Next hop
				0, // Reserved
				120, 0, 6, 65, 0, 0, 0, 0, 0, 0, 12, 128, 5, 5, 5, 5,
			),
		},
	}

	for _, test := range tests {
		res, err := EncodeUpdateMsg(test.input, test.opt)
		if err != nil {
			t.Errorf("Unexpected failure for test %q: %v", test.name, err)
			continue
		}

		assert.Equal(t, test.expected, res, test.name)
	}
}

func TestEncodeUpdateMsgTooLarge(t *testing.T) {
	nlri := make([]NLRI, 0, 400)
	for i := 0; i < 400; i++ {
		addr := []byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, byte(i >> 8), byte(i)}
		nlri = append(nlri, IPPrefix{Prefix: bnet.NewPfx(bnet.AFIIPv6, addr, 128)})
	}

	upd := &BGPUpdate{
		PathAttributes: []PathAttribute{
			NewOriginAttr(IGP),
			NewASPathAttr(ASPath{
				{Type: ASSequence, ASNs: []ASN32{65000}},
			}),
			NewMEDAttr(0),
			NewLocalPrefAttr(100),
			NewMPReachNLRIAttr(MPReachNLRI{
				AFI:     IPv6AFI,
				SAFI:    UnicastSAFI,
				NextHop: bnet.MustParsePfx("2001:db8::1/128").Addr(),
				NLRI:    nlri,
			}),
		},
	}

	_, err := EncodeUpdateMsg(upd, nil)
	assert.True(t, errors.Is(err, ErrMessageTooLarge), "got %v", err)

	upd.PathAttributes[4] = NewMPReachNLRIAttr(MPReachNLRI{
		AFI:     IPv6AFI,
		SAFI:    UnicastSAFI,
		NextHop: bnet.MustParsePfx("2001:db8::1/128").Addr(),
		NLRI:    nlri[:200],
	})

	res, err := EncodeUpdateMsg(upd, nil)
	assert.NoError(t, err)
	assert.True(t, len(res) <= MaxLen)
}

func TestRoundTrip(t *testing.T) {
	addPath := &Options{
		AS4: true,
		AddPath: map[AFISAFI]bool{
			{AFI: IPv4AFI, SAFI: UnicastSAFI}: true,
			{AFI: IPv6AFI, SAFI: UnicastSAFI}: true,
		},
	}

	tests := []struct {
		name  string
		input Body
		opt   *Options
	}{
		{
			name:  "Keepalive",
			input: &BGPKeepalive{},
		},
		{
			name: "Notification with data",
			input: &BGPNotification{
				ErrorCode:    Cease,
				ErrorSubcode: AdministrativeShutdown,
				Data:         []byte{3, 'b', 'y', 'e'},
			},
		},
		{
			name:  "Send hold timer expired",
			input: &BGPNotification{ErrorCode: 8},
		},
		{
			name: "Role mismatch",
			input: &BGPNotification{
				ErrorCode:    OpenMessageError,
				ErrorSubcode: 8,
			},
		},
		{
			name: "Update with empty AS path",
			input: &BGPUpdate{
				PathAttributes: []PathAttribute{
					NewOriginAttr(IGP),
					NewASPathAttr(nil),
					NewNextHopAttr(IPv4Addr{192, 0, 2, 1}),
					NewLocalPrefAttr(100),
				},
				NLRI: []NLRI{
					IPPrefix{Prefix: bnet.MustParsePfx("198.51.100.0/24")},
				},
			},
		},
		{
			name: "Route refresh",
			input: &BGPRouteRefresh{
				AFI:     IPv6AFI,
				Subtype: 2,
				SAFI:    UnicastSAFI,
			},
		},
		{
			name: "Open",
			input: &BGPOpen{
				Version:       4,
				AS:            ASTrans,
				HoldTime:      180,
				BGPIdentifier: 0x0a000001,
				OptParams: []OptParam{
					NewCapabilitiesParam(
						NewMultiProtocolCapability(IPv4AFI, UnicastSAFI),
						NewMultiProtocolCapability(IPv6AFI, UnicastSAFI),
						NewRouteRefreshCapability(),
						NewFourByteASNCapability(4200000000),
						NewAddPathCapability(
							AddPathFamily{AFI: IPv4AFI, SAFI: UnicastSAFI, SendReceive: AddPathReceive},
							AddPathFamily{AFI: IPv6AFI, SAFI: UnicastSAFI, SendReceive: AddPathSend},
						),
						Capability{Code: 73, Value: UnknownCapability{4, 'e', 'd', 'g', 'e'}},
					),
				},
			},
		},
		{
			name:  "Add-path update",
			input: addPathUpdate(),
			opt: &Options{
				AddPath: map[AFISAFI]bool{
					{AFI: IPv4AFI, SAFI: UnicastSAFI}: true,
				},
			},
		},
		{
			name: "Four-octet update with every attribute",
			input: &BGPUpdate{
				WithdrawnRoutes: []NLRI{
					IPPrefixWithPathID{PathID: 7, Prefix: bnet.MustParsePfx("10.0.0.0/8")},
				},
				PathAttributes: []PathAttribute{
					NewOriginAttr(EGP),
					NewASPathAttr(ASPath{
						{Type: ASSequence, ASNs: []ASN32{4200000000, 65000}},
						{Type: ASSet, ASNs: []ASN32{1, 2, 3}},
					}),
					NewNextHopAttr(IPv4Addr{192, 0, 2, 1}),
					NewMEDAttr(10),
					NewLocalPrefAttr(200),
					NewAtomicAggregateAttr(),
					NewAggregatorAttr(Aggregator{ASN: 4200000000, Addr: IPv4Addr{192, 0, 2, 2}}),
					NewCommunitiesAttr(Communities{0xfde80001}),
					NewOriginatorIDAttr(0x0a000001),
					NewClusterListAttr(ClusterList{1, 2}),
					NewMPReachNLRIAttr(MPReachNLRI{
						AFI:     IPv6AFI,
						SAFI:    UnicastSAFI,
						NextHop: bnet.MustParsePfx("2001:db8::1/128").Addr(),
						NLRI: []NLRI{
							IPPrefixWithPathID{PathID: 1, Prefix: bnet.MustParsePfx("2001:db8:1::/48")},
						},
					}),
					NewMPUnreachNLRIAttr(MPUnreachNLRI{
						AFI:  IPv6AFI,
						SAFI: UnicastSAFI,
						WithdrawnRoutes: []NLRI{
							IPPrefixWithPathID{PathID: 2, Prefix: bnet.MustParsePfx("2001:db8:2::/48")},
						},
					}),
					NewExtendedCommunitiesAttr(ExtendedCommunities{0x0002fde800000064}),
					NewLargeCommunitiesAttr(LargeCommunities{{GlobalAdministrator: 4200000000, LocalData1: 1, LocalData2: 2}}),
					{
						Optional:   true,
						Transitive: true,
						Partial:    true,
						TypeCode:   99,
						Value:      UnknownAttribute{0xde, 0xad},
					},
				},
				NLRI: []NLRI{
					IPPrefixWithPathID{PathID: 1, Prefix: bnet.MustParsePfx("198.51.100.0/24")},
				},
			},
			opt: addPath,
		},
		{
			name: "Two-octet update with AS4 attributes",
			input: &BGPUpdate{
				PathAttributes: []PathAttribute{
					NewOriginAttr(IGP),
					NewASPathAttr(ASPath{
						{Type: ASSequence, ASNs: []ASN32{ASTrans, 65000}},
					}),
					NewNextHopAttr(IPv4Addr{192, 0, 2, 1}),
					NewAggregatorAttr(Aggregator{ASN: ASTrans, Addr: IPv4Addr{192, 0, 2, 2}}),
					NewAS4PathAttr(AS4Path{
						{Type: ASSequence, ASNs: []ASN32{4200000000, 65000}},
					}),
					NewAS4AggregatorAttr(AS4Aggregator{ASN: 4200000000, Addr: IPv4Addr{192, 0, 2, 2}}),
				},
				NLRI: []NLRI{
					IPPrefix{Prefix: bnet.MustParsePfx("198.51.100.0/24")},
					IPPrefix{Prefix: bnet.MustParsePfx("0.0.0.0/0")},
				},
			},
		},
	}

	for _, test := range tests {
		b, err := Encode(test.input, test.opt)
		if err != nil {
			t.Errorf("Unable to encode %q: %v", test.name, err)
			continue
		}

		msg, err := Decode(bytes.NewBuffer(b), test.opt)
		if err != nil {
			t.Errorf("Unable to decode %q: %v", test.name, err)
			continue
		}

		assert.Equal(t, MsgLength(len(b)), msg.Header.Length, test.name)
		assert.Equal(t, test.input.MsgType(), msg.Header.Type, test.name)
		assert.Equal(t, test.input, msg.Body, test.name)
	}
}
