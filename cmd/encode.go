package cmd

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/taktv6/bgpwire/config"
	"github.com/taktv6/bgpwire/packet"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode BGP messages as hex",
}

var (
	openASN      uint32
	openHoldTime uint16
	openRouterID string
	openFamilies []string

	notificationCode    uint8
	notificationSubcode uint8
	notificationData    string

	refreshFamily  string
	refreshSubtype uint8
)

var encodeKeepaliveCmd = &cobra.Command{
	Use:   "keepalive",
	Short: "Encode a KEEPALIVE message",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEncode(&packet.BGPKeepalive{}, nil, cmd.OutOrStdout())
	},
}

var encodeOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Encode an OPEN message",
	Long: `Encode an OPEN message advertising the session profile.

A multiprotocol capability is sent for every --family. The four-octet ASN
capability is sent with --as4 and add-path capabilities for every --add-path
family.

Examples:
  bgpdump encode open --asn 65000 --router-id 192.0.2.1
  bgpdump encode open --as4 --asn 4200000000 --router-id 192.0.2.1 --family ipv6/unicast`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadOptions()
		if err != nil {
			return err
		}

		open, err := buildOpen(cfg.Session, openASN, openHoldTime, openRouterID, openFamilies)
		if err != nil {
			return err
		}

		return runEncode(open, nil, cmd.OutOrStdout())
	},
}

var encodeNotificationCmd = &cobra.Command{
	Use:   "notification",
	Short: "Encode a NOTIFICATION message",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := buildNotification(notificationCode, notificationSubcode, notificationData)
		if err != nil {
			return err
		}

		return runEncode(n, nil, cmd.OutOrStdout())
	},
}

var encodeRouteRefreshCmd = &cobra.Command{
	Use:   "route-refresh",
	Short: "Encode a ROUTE-REFRESH message",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rr, err := buildRouteRefresh(refreshFamily, refreshSubtype)
		if err != nil {
			return err
		}

		return runEncode(rr, nil, cmd.OutOrStdout())
	},
}

func init() {
	f := encodeOpenCmd.Flags()
	f.Uint32Var(&openASN, "asn", 0, "local AS number (required)")
	f.Uint16Var(&openHoldTime, "hold-time", 90, "hold time in seconds")
	f.StringVar(&openRouterID, "router-id", "", "BGP identifier as IPv4 address (required)")
	f.StringSliceVar(&openFamilies, "family", []string{"ipv4/unicast"}, "families for multiprotocol capabilities")
	encodeOpenCmd.MarkFlagRequired("asn")
	encodeOpenCmd.MarkFlagRequired("router-id")

	f = encodeNotificationCmd.Flags()
	f.Uint8Var(&notificationCode, "code", packet.Cease, "error code")
	f.Uint8Var(&notificationSubcode, "subcode", 0, "error subcode")
	f.StringVar(&notificationData, "data", "", "data as hex")

	f = encodeRouteRefreshCmd.Flags()
	f.StringVar(&refreshFamily, "family", "ipv4/unicast", "family to refresh")
	f.Uint8Var(&refreshSubtype, "subtype", 0, "message subtype (enhanced route refresh)")

	encodeCmd.AddCommand(encodeKeepaliveCmd)
	encodeCmd.AddCommand(encodeOpenCmd)
	encodeCmd.AddCommand(encodeNotificationCmd)
	encodeCmd.AddCommand(encodeRouteRefreshCmd)
}

// runEncode writes body as a hex encoded message to w
func runEncode(body packet.Body, opt *packet.Options, w io.Writer) error {
	b, err := packet.Encode(body, opt)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, hex.EncodeToString(b))
	return err
}

func buildOpen(s config.SessionConfig, asn uint32, holdTime uint16, routerID string, families []string) (*packet.BGPOpen, error) {
	id, err := netip.ParseAddr(routerID)
	if err != nil || !id.Is4() {
		return nil, fmt.Errorf("router id %q is not an IPv4 address", routerID)
	}

	open := &packet.BGPOpen{
		Version:       packet.BGP4Version,
		AS:            packet.ASN16(asn),
		HoldTime:      packet.HoldTime(holdTime),
		BGPIdentifier: packet.BGPIdentifier(binary.BigEndian.Uint32(id.AsSlice())),
	}

	if asn > math.MaxUint16 {
		if !s.AS4 {
			return nil, fmt.Errorf("AS %d needs a four-octet ASN session", asn)
		}
		open.AS = packet.ASTrans
	}

	caps := []packet.Capability{}
	for _, name := range families {
		f, err := config.ParseFamilyString(name)
		if err != nil {
			return nil, err
		}

		fam, err := f.Family()
		if err != nil {
			return nil, err
		}
		caps = append(caps, packet.NewMultiProtocolCapability(fam.AFI, fam.SAFI))
	}

	caps = append(caps, packet.NewRouteRefreshCapability())

	if s.AS4 {
		caps = append(caps, packet.NewFourByteASNCapability(packet.ASN32(asn)))
	}

	if len(s.AddPath) > 0 {
		ap := make([]packet.AddPathFamily, 0, len(s.AddPath))
		for _, f := range s.AddPath {
			fam, err := f.Family()
			if err != nil {
				return nil, err
			}
			ap = append(ap, packet.AddPathFamily{AFI: fam.AFI, SAFI: fam.SAFI, SendReceive: packet.AddPathSendReceive})
		}
		caps = append(caps, packet.NewAddPathCapability(ap...))
	}

	open.OptParams = []packet.OptParam{packet.NewCapabilitiesParam(caps...)}
	return open, nil
}

func buildNotification(code uint8, subcode uint8, data string) (*packet.BGPNotification, error) {
	n := &packet.BGPNotification{
		ErrorCode:    packet.ErrorCode(code),
		ErrorSubcode: packet.ErrorSubcode(subcode),
	}

	if data != "" {
		b, err := parseHex(data)
		if err != nil {
			return nil, err
		}
		n.Data = b
	}

	return n, nil
}

func buildRouteRefresh(family string, subtype uint8) (*packet.BGPRouteRefresh, error) {
	f, err := config.ParseFamilyString(family)
	if err != nil {
		return nil, err
	}

	fam, err := f.Family()
	if err != nil {
		return nil, err
	}

	return &packet.BGPRouteRefresh{
		AFI:     fam.AFI,
		Subtype: subtype,
		SAFI:    fam.SAFI,
	}, nil
}
