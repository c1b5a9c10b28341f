package httpserver

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Wa4h1h/go-bootserver/pkg/utils"
)

func newTestFileServer(t *testing.T, root string) (*FileServer, int) {
	t.Helper()

	s := NewFileServer(zap.NewNop().Sugar(), Config{
		RootDir: root,
		Host:    "127.0.0.1",
	}, nil)

	port, err := s.Start()
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, s.Stop()) })

	return s, port
}

func TestServesFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("ok"), 0o600))

	_, port := newTestFileServer(t, root)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/index.html", port))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestMissingFileIs404(t *testing.T) {
	_, port := newTestFileServer(t, t.TempDir())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/nope.img", port))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	_, port := newTestFileServer(t, t.TempDir())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartIdempotent(t *testing.T) {
	s, port := newTestFileServer(t, t.TempDir())

	again, err := s.Start()
	require.NoError(t, err)
	assert.Equal(t, port, again)
}

func TestStopIdempotentAndReleasesPort(t *testing.T) {
	s := NewFileServer(zap.NewNop().Sugar(), Config{
		RootDir: t.TempDir(),
		Host:    "127.0.0.1",
	}, nil)

	port, err := s.Start()
	require.NoError(t, err)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	_, running := s.Port()
	assert.False(t, running)

	// the port must be bindable again
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	require.NoError(t, ln.Close())
}

func TestTLSRequiresCertAndKey(t *testing.T) {
	s := NewTLSFileServer(zap.NewNop().Sugar(), Config{
		RootDir: t.TempDir(),
		Host:    "127.0.0.1",
	}, nil)

	_, err := s.Start()
	require.ErrorIs(t, err, utils.ErrMissingTLSConfig)

	missing := NewTLSFileServer(zap.NewNop().Sugar(), Config{
		RootDir:  t.TempDir(),
		Host:     "127.0.0.1",
		CertFile: "/does/not/exist.pem",
		KeyFile:  "/does/not/exist.key",
	}, nil)

	_, err = missing.Start()
	require.ErrorIs(t, err, utils.ErrMissingTLSConfig)
}

func TestServesFilesOverTLS(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "boot.bin"), []byte("bootdata"), 0o600))

	certFile, keyFile := genSelfSignedCert(t)

	s := NewTLSFileServer(zap.NewNop().Sugar(), Config{
		RootDir:  root,
		Host:     "127.0.0.1",
		CertFile: certFile,
		KeyFile:  keyFile,
	}, nil)

	port, err := s.Start()
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, s.Stop()) })

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // test cert
		},
	}

	resp, err := client.Get(fmt.Sprintf("https://127.0.0.1:%d/boot.bin", port))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "bootdata", string(body))
}

func genSelfSignedCert(t *testing.T) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")

	require.NoError(t, os.WriteFile(certFile,
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile,
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))

	return certFile, keyFile
}
