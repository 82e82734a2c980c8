// Package config loads the settings of the bgpdump tool using viper.
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/taktv6/bgpwire/packet"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. BGPDUMP_SESSION_AS4
	EnvPrefix = "BGPDUMP"

	// DefaultPort is the TCP port BGP speakers listen on
	DefaultPort = 179

	// Output formats
	FormatText = "text"
	FormatYAML = "yaml"
)

// Config is the top level configuration
type Config struct {
	Session SessionConfig `mapstructure:"session"`
	Capture CaptureConfig `mapstructure:"capture"`
	Output  OutputConfig  `mapstructure:"output"`
}

// SessionConfig describes the negotiated state messages are decoded with
type SessionConfig struct {
	AS4     bool           `mapstructure:"as4"`
	AddPath []FamilyConfig `mapstructure:"add_path"`
}

// FamilyConfig names an address family, e.g. {ipv4 unicast}
type FamilyConfig struct {
	AFI  string `mapstructure:"afi"`
	SAFI string `mapstructure:"safi"`
}

// CaptureConfig controls how BGP messages are extracted from captures
type CaptureConfig struct {
	Port int `mapstructure:"port"`

	// MaxBufferedBytes bounds the unparsed data kept per TCP stream
	MaxBufferedBytes int `mapstructure:"max_buffered_bytes"`
}

// OutputConfig controls how decoded messages are printed
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults and environment overrides set
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.as4", false)
	v.SetDefault("session.add_path", []FamilyConfig{})

	v.SetDefault("capture.port", DefaultPort)
	v.SetDefault("capture.max_buffered_bytes", 16*packet.MaxLen)

	v.SetDefault("output.format", FormatText)
}

// Load reads the configuration file at path into v. An empty path leaves
// v with defaults, environment and whatever flags are bound to it.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	hooks := mapstructure.ComposeDecodeHookFunc(
		familyDecodeHook,
		mapstructure.StringToSliceHookFunc(","),
	)

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Capture.Port <= 0 || c.Capture.Port > 65535 {
		return fmt.Errorf("capture.port %d out of range", c.Capture.Port)
	}

	if c.Capture.MaxBufferedBytes < packet.MaxLen {
		return fmt.Errorf("capture.max_buffered_bytes must hold at least one message (%d bytes)", packet.MaxLen)
	}

	switch c.Output.Format {
	case FormatText, FormatYAML:
	default:
		return fmt.Errorf("unknown output.format %q", c.Output.Format)
	}

	for _, f := range c.Session.AddPath {
		if _, err := f.Family(); err != nil {
			return fmt.Errorf("session.add_path: %w", err)
		}
	}

	return nil
}

// Options returns the codec options of the session profile
func (s SessionConfig) Options() (*packet.Options, error) {
	opt := &packet.Options{
		AS4: s.AS4,
	}

	for _, f := range s.AddPath {
		fam, err := f.Family()
		if err != nil {
			return nil, err
		}

		if opt.AddPath == nil {
			opt.AddPath = make(map[packet.AFISAFI]bool)
		}
		opt.AddPath[fam] = true
	}

	return opt, nil
}

var (
	familyType      = reflect.TypeOf(FamilyConfig{})
	familySliceType = reflect.TypeOf([]FamilyConfig{})
)

// familyDecodeHook accepts families written as "afi/safi" strings. A single
// string may list several families separated by commas, e.g. in
// BGPDUMP_SESSION_ADD_PATH.
func familyDecodeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s := reflect.ValueOf(data).String()

	switch to {
	case familyType:
		return ParseFamilyString(s)
	case familySliceType:
		ret := []FamilyConfig{}
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			f, err := ParseFamilyString(part)
			if err != nil {
				return nil, err
			}
			ret = append(ret, f)
		}
		return ret, nil
	}

	return data, nil
}

// Family resolves the names of f
func (f FamilyConfig) Family() (packet.AFISAFI, error) {
	return ParseFamily(f.AFI, f.SAFI)
}

var afiNames = map[string]packet.AFI{
	"ipv4": packet.IPv4AFI,
	"ipv6": packet.IPv6AFI,
}

var safiNames = map[string]packet.SAFI{
	"unicast":      packet.UnicastSAFI,
	"multicast":    packet.MulticastSAFI,
	"mpls-label":   packet.MPLSLabelSAFI,
	"mpls-vpn":     packet.MPLSVPNSAFI,
	"flowspec":     packet.FlowspecSAFI,
	"flowspec-vpn": packet.FlowspecVPNSAFI,
}

// ParseFamily parses an AFI and SAFI given by name or number
func ParseFamily(afi string, safi string) (packet.AFISAFI, error) {
	ret := packet.AFISAFI{}

	a, ok := afiNames[strings.ToLower(afi)]
	if !ok {
		n, err := strconv.ParseUint(afi, 10, 16)
		if err != nil {
			return ret, fmt.Errorf("unknown AFI %q", afi)
		}
		a = packet.AFI(n)
	}

	s, ok := safiNames[strings.ToLower(safi)]
	if !ok {
		n, err := strconv.ParseUint(safi, 10, 8)
		if err != nil {
			return ret, fmt.Errorf("unknown SAFI %q", safi)
		}
		s = packet.SAFI(n)
	}

	ret.AFI = a
	ret.SAFI = s
	return ret, nil
}

// ParseFamilyString parses "afi/safi", e.g. "ipv6/unicast" or "1/1"
func ParseFamilyString(s string) (FamilyConfig, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return FamilyConfig{}, fmt.Errorf("family %q is not of the form afi/safi", s)
	}

	f := FamilyConfig{AFI: parts[0], SAFI: parts[1]}
	if _, err := f.Family(); err != nil {
		return FamilyConfig{}, err
	}

	return f, nil
}
