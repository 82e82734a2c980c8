package cmd

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/taktv6/bgpwire/config"
	"github.com/taktv6/bgpwire/packet"
)

// printMessage writes msg to w in the given output format
func printMessage(w io.Writer, format string, msg *packet.BGPMessage) error {
	if format != config.FormatYAML {
		msg.Dump(w)
		return nil
	}

	// One document per message
	if _, err := fmt.Fprintln(w, "---"); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(msg); err != nil {
		return fmt.Errorf("failed to encode message as YAML: %w", err)
	}

	return enc.Close()
}
