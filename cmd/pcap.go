package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/taktv6/bgpwire/config"
	"github.com/taktv6/bgpwire/packet"
	"github.com/taktv6/bgpwire/pcap"
)

var pcapCmd = &cobra.Command{
	Use:   "pcap FILE",
	Short: "Decode BGP sessions from a packet capture",
	Long: `Reassemble the BGP sessions in a pcap file and print every message.

Examples:
  bgpdump pcap session.pcap
  bgpdump pcap --port 1179 --as4 --add-path ipv4/unicast session.pcap`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, opt, err := loadOptions()
		if err != nil {
			return err
		}

		return runPcap(cfg.Capture, cfg.Output.Format, opt, args[0], cmd.OutOrStdout())
	},
}

func init() {
	pcapCmd.Flags().Int("port", config.DefaultPort, "TCP port of the BGP sessions")
	if err := v.BindPFlag("capture.port", pcapCmd.Flags().Lookup("port")); err != nil {
		panic(err)
	}
}

func runPcap(c config.CaptureConfig, format string, opt *packet.Options, path string, w io.Writer) error {
	r := pcap.NewReader(uint16(c.Port), c.MaxBufferedBytes, opt, func(m *pcap.Message) {
		fmt.Fprintf(w, "%s %s -> %s\n", m.Timestamp.UTC().Format(time.RFC3339Nano), m.Src, m.Dst)
		if m.Err != nil {
			fmt.Fprintf(w, "Error: %v\n\t%x\n", m.Err, m.Raw)
			return
		}
		if err := printMessage(w, format, m.Msg); err != nil {
			glog.Errorf("%s -> %s: %v", m.Src, m.Dst, err)
		}
	})

	if err := r.ReadFile(path); err != nil {
		return err
	}

	s := r.Stats()
	glog.Infof("%s: %d packets, %d messages, %d errors, %d bytes skipped", path, s.Packets, s.Messages, s.Errors, s.SkippedBytes)
	fmt.Fprintf(w, "%d messages in %d packets, %d undecodable\n", s.Messages, s.Packets, s.Errors)

	return nil
}
