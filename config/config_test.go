package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taktv6/bgpwire/packet"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.False(t, cfg.Session.AS4)
	assert.Empty(t, cfg.Session.AddPath)
	assert.Equal(t, DefaultPort, cfg.Capture.Port)
	assert.Equal(t, 16*packet.MaxLen, cfg.Capture.MaxBufferedBytes)
	assert.Equal(t, FormatText, cfg.Output.Format)
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bgpdump.yml")

	configContent := `
session:
  as4: true
  add_path:
    - afi: ipv4
      safi: unicast
    - afi: "2"
      safi: "1"
capture:
  port: 1179
output:
  format: yaml
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(New(), configPath)
	require.NoError(t, err)

	assert.True(t, cfg.Session.AS4)
	assert.Equal(t, 1179, cfg.Capture.Port)
	assert.Equal(t, FormatYAML, cfg.Output.Format)

	opt, err := cfg.Session.Options()
	require.NoError(t, err)
	assert.Equal(t, &packet.Options{
		AS4: true,
		AddPath: map[packet.AFISAFI]bool{
			{AFI: packet.IPv4AFI, SAFI: packet.UnicastSAFI}: true,
			{AFI: packet.IPv6AFI, SAFI: packet.UnicastSAFI}: true,
		},
	}, opt)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BGPDUMP_SESSION_AS4", "true")
	t.Setenv("BGPDUMP_CAPTURE_PORT", "8179")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.True(t, cfg.Session.AS4)
	assert.Equal(t, 8179, cfg.Capture.Port)
}

func TestLoadFamilyStrings(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bgpdump.yml")
	configContent := `
session:
  add_path:
    - ipv4/unicast
    - ipv6/flowspec
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(New(), configPath)
	require.NoError(t, err)
	assert.Equal(t, []FamilyConfig{
		{AFI: "ipv4", SAFI: "unicast"},
		{AFI: "ipv6", SAFI: "flowspec"},
	}, cfg.Session.AddPath)
}

func TestLoadEnvAddPath(t *testing.T) {
	t.Setenv("BGPDUMP_SESSION_ADD_PATH", "ipv4/unicast, ipv6/unicast")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, []FamilyConfig{
		{AFI: "ipv4", SAFI: "unicast"},
		{AFI: "ipv6", SAFI: "unicast"},
	}, cfg.Session.AddPath)
}

func TestLoadInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "Port out of range",
			content: `
capture:
  port: 70000
`,
		},
		{
			name: "Buffer smaller than a message",
			content: `
capture:
  max_buffered_bytes: 100
`,
		},
		{
			name: "Unknown output format",
			content: `
output:
  format: xml
`,
		},
		{
			name: "Malformed add-path family string",
			content: `
session:
  add_path:
    - ipv4
`,
		},
		{
			name: "Unknown add-path family",
			content: `
session:
  add_path:
    - afi: ipx
      safi: unicast
`,
		},
	}

	for _, test := range tests {
		configPath := filepath.Join(t.TempDir(), "bgpdump.yml")
		if err := os.WriteFile(configPath, []byte(test.content), 0644); err != nil {
			t.Fatalf("Failed to write test config: %v", err)
		}

		_, err := Load(New(), configPath)
		assert.Error(t, err, test.name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestParseFamily(t *testing.T) {
	tests := []struct {
		afi      string
		safi     string
		wantFail bool
		expected packet.AFISAFI
	}{
		{afi: "ipv4", safi: "unicast", expected: packet.AFISAFI{AFI: packet.IPv4AFI, SAFI: packet.UnicastSAFI}},
		{afi: "IPv6", safi: "flowspec", expected: packet.AFISAFI{AFI: packet.IPv6AFI, SAFI: packet.FlowspecSAFI}},
		{afi: "1", safi: "128", expected: packet.AFISAFI{AFI: packet.IPv4AFI, SAFI: packet.MPLSVPNSAFI}},
		{afi: "ipv4", safi: "256", wantFail: true},
		{afi: "appletalk", safi: "unicast", wantFail: true},
	}

	for _, test := range tests {
		res, err := ParseFamily(test.afi, test.safi)
		if test.wantFail {
			assert.Error(t, err, "%s/%s", test.afi, test.safi)
			continue
		}

		assert.NoError(t, err)
		assert.Equal(t, test.expected, res)
	}
}

func TestParseFamilyString(t *testing.T) {
	f, err := ParseFamilyString("ipv6/unicast")
	assert.NoError(t, err)
	assert.Equal(t, FamilyConfig{AFI: "ipv6", SAFI: "unicast"}, f)

	_, err = ParseFamilyString("ipv6")
	assert.Error(t, err)
}
