// Package cmd implements the bgpdump command line using cobra.
package cmd

import (
	"flag"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/taktv6/bgpwire/config"
	"github.com/taktv6/bgpwire/packet"
)

var (
	// Global flags
	configFile string
	addPath    []string

	v = config.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bgpdump",
	Short: "bgpdump - BGP-4 message encoder and decoder",
	Long: `bgpdump decodes and encodes BGP-4 messages.

Messages are decoded from hex strings, raw files or TCP sessions in packet
captures. The session state a message depends on (four-octet ASNs, add-path
families) is taken from the config file, the environment (BGPDUMP_*) or flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file path")
	pf.Bool("as4", false, "session uses four-octet ASNs")
	pf.StringSliceVar(&addPath, "add-path", nil, "families with add-path enabled, e.g. ipv4/unicast")
	pf.StringP("output", "o", config.FormatText, "output format of decoded messages (text, yaml)")

	// glog registers its flags on the standard flag set, cobra picks up pflag.CommandLine
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)

	if err := v.BindPFlag("session.as4", pf.Lookup("as4")); err != nil {
		panic(err)
	}
	if err := v.BindPFlag("output.format", pf.Lookup("output")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(pcapCmd)
}

// loadConfig merges config file, environment and flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}

	if len(addPath) > 0 {
		cfg.Session.AddPath = nil
		for _, s := range addPath {
			f, err := config.ParseFamilyString(s)
			if err != nil {
				return nil, fmt.Errorf("--add-path: %w", err)
			}
			cfg.Session.AddPath = append(cfg.Session.AddPath, f)
		}
	}

	return cfg, nil
}

func loadOptions() (*config.Config, *packet.Options, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	opt, err := cfg.Session.Options()
	if err != nil {
		return nil, nil, err
	}

	return cfg, opt, nil
}
