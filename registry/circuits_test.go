package registry

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	r := NewDefault("/app/circuits")

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"coinbase_attestation", "coinbase_country_attestation"}, r.IDs())

	c, err := r.Lookup("coinbase_country_attestation")
	require.NoError(t, err)
	assert.Equal(t, "coinbase_country_attestation", c.PackageName())

	paths := r.Paths(c)
	assert.Equal(t, "/app/circuits/coinbase-country-attestation", paths.Dir)
	assert.Equal(t, "/app/circuits/coinbase-country-attestation/target/coinbase_country_attestation.json", paths.Bytecode)
	assert.Equal(t, "/app/circuits/coinbase-country-attestation/target/vk/vk", paths.VK)
}

func TestLookup_Unknown(t *testing.T) {
	r := NewDefault("/app/circuits")

	_, err := r.Lookup("nonexistent_circuit")
	require.ErrorIs(t, err, ErrUnknownCircuit)
	assert.Contains(t, err.Error(), "nonexistent_circuit")
	assert.Contains(t, err.Error(), "coinbase_attestation, coinbase_country_attestation")
}

func TestIDsReturnsCopy(t *testing.T) {
	r := NewDefault("/app/circuits")
	ids := r.IDs()
	ids[0] = "mutated"

	_, err := r.Lookup("coinbase_attestation")
	assert.NoError(t, err)
	assert.Equal(t, "coinbase_attestation", r.IDs()[0])
}

func TestNew_Validation(t *testing.T) {
	_, err := New("/base", []Circuit{{Dir: "d", Bytecode: "b", VK: "v"}})
	assert.Error(t, err)

	_, err = New("/base", []Circuit{{ID: "a", Bytecode: "b", VK: "v"}})
	assert.Error(t, err)

	_, err = New("/base", []Circuit{
		{ID: "a", Dir: "d", Bytecode: "b", VK: "v"},
		{ID: "a", Dir: "e", Bytecode: "b", VK: "v"},
	})
	assert.ErrorContains(t, err, "duplicate")
}

func TestLoadManifest(t *testing.T) {
	data := `
[[circuit]]
id = "square"
dir = "square-circuit"
bytecode = "square.json"
vk = "vk/vk"
package = "square_pkg"

[[circuit]]
id = "cube"
dir = "cube"
bytecode = "cube.json"
vk = "vk"
`
	r, err := LoadManifest("/circuits", strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"cube", "square"}, r.IDs())

	c, err := r.Lookup("square")
	require.NoError(t, err)
	assert.Equal(t, "square_pkg", c.PackageName())
	assert.Equal(t, "/circuits/square-circuit/target/square.json", r.Paths(c).Bytecode)
}

func TestLoadManifest_Errors(t *testing.T) {
	_, err := LoadManifest("/c", strings.NewReader(`[[circuit]`))
	assert.Error(t, err)

	_, err = LoadManifest("/c", strings.NewReader(``))
	assert.ErrorContains(t, err, "no circuits")

	_, err = LoadManifest("/c", strings.NewReader("[[circuit]]\nid = \"a\"\ndir = \"a\"\nbytecode = \"a.json\"\nvk = \"vk\"\nextra = 1\n"))
	assert.ErrorContains(t, err, "unknown keys")
}

func TestCheckArtifacts(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "coinbase-attestation", "target")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "vk"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "coinbase_attestation.json"), []byte("{}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(target, "vk", "vk"), []byte("vk"), 0644))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	missing := NewDefault(base).CheckArtifacts(log)
	assert.Equal(t, []string{"coinbase_country_attestation"}, missing)
}
