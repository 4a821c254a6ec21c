package tlscert

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsure_GeneratesPairWhenAbsent(t *testing.T) {
	dir := t.TempDir()

	generated, err := Ensure(dir, "localhost", []string{"localhost", "127.0.0.1"})
	require.NoError(t, err)
	assert.True(t, generated)

	certPEM, err := os.ReadFile(filepath.Join(dir, CertFile))
	require.NoError(t, err)
	block, _ := pem.Decode(certPEM)
	require.NotNil(t, block)
	require.Equal(t, "CERTIFICATE", block.Type)

	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cert.Subject.CommonName)
	assert.Contains(t, cert.DNSNames, "localhost")
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", cert.IPAddresses[0].String())

	keyPEM, err := os.ReadFile(filepath.Join(dir, KeyFile))
	require.NoError(t, err)
	keyBlock, _ := pem.Decode(keyPEM)
	require.NotNil(t, keyBlock)
	assert.Equal(t, "EC PRIVATE KEY", keyBlock.Type)
}

func TestEnsure_ReusesValidPair(t *testing.T) {
	dir := t.TempDir()

	_, err := Ensure(dir, "localhost", []string{"localhost"})
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, CertFile))
	require.NoError(t, err)

	generated, err := Ensure(dir, "localhost", []string{"localhost"})
	require.NoError(t, err)
	assert.False(t, generated)

	second, err := os.ReadFile(filepath.Join(dir, CertFile))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsure_RegeneratesWhenKeyMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := Ensure(dir, "localhost", []string{"localhost"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, KeyFile)))

	generated, err := Ensure(dir, "localhost", []string{"localhost"})
	require.NoError(t, err)
	assert.True(t, generated)
	_, err = os.Stat(filepath.Join(dir, KeyFile))
	assert.NoError(t, err)
}

func TestEnsure_RegeneratesGarbageCert(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CertFile), []byte("not a cert"), 0600))

	generated, err := Ensure(dir, "localhost", []string{"localhost"})
	require.NoError(t, err)
	assert.True(t, generated)
}
