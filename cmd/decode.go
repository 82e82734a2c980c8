package cmd

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taktv6/bgpwire/packet"
)

var decodeFile string

var decodeCmd = &cobra.Command{
	Use:   "decode [HEX...]",
	Short: "Decode BGP messages",
	Long: `Decode one or more consecutive BGP messages and print them.

Input is taken from hex arguments, a raw file given by --file or hex on stdin.
Whitespace, colons and a leading 0x are ignored in hex input.

Examples:
  bgpdump decode ffffffffffffffffffffffffffffffff001304
  bgpdump decode --as4 --file update.bin
  bgpdump decode -o yaml --add-path ipv4/unicast --file update.bin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, opt, err := loadOptions()
		if err != nil {
			return err
		}

		input, err := readInput(cmd.InOrStdin(), args, decodeFile)
		if err != nil {
			return err
		}

		return runDecode(opt, cfg.Output.Format, input, cmd.OutOrStdout())
	},
}

func init() {
	decodeCmd.Flags().StringVarP(&decodeFile, "file", "f", "", "file holding raw BGP messages")
}

func readInput(stdin io.Reader, args []string, file string) ([]byte, error) {
	if file != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("hex arguments and --file are mutually exclusive")
		}

		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", file, err)
		}
		return b, nil
	}

	if len(args) > 0 {
		return parseHex(strings.Join(args, ""))
	}

	b, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return parseHex(string(b))
}

var hexCleaner = strings.NewReplacer(" ", "", ":", "", "\n", "", "\r", "", "\t", "")

func parseHex(s string) ([]byte, error) {
	s = hexCleaner.Replace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("no input")
	}
	return b, nil
}

// runDecode prints every message in input to w
func runDecode(opt *packet.Options, format string, input []byte, w io.Writer) error {
	buf := bytes.NewBuffer(input)
	dec := packet.NewDecoder(opt)

	for n := 1; buf.Len() > 0; n++ {
		msg, err := dec.Decode(buf)
		if err != nil {
			return fmt.Errorf("message %d: %w", n, err)
		}

		if err := printMessage(w, format, msg); err != nil {
			return err
		}
	}

	return nil
}
