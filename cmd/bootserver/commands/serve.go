package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Wa4h1h/go-bootserver/internal/config"
	"github.com/Wa4h1h/go-bootserver/pkg/metrics"
	"github.com/Wa4h1h/go-bootserver/pkg/server"
	"github.com/Wa4h1h/go-bootserver/pkg/utils"
)

var (
	rootDir     string
	logLevel    string
	httpPort    int
	httpsPort   int
	tftpPort    int
	enableHTTPS bool
	certFile    string
	keyFile     string
	noTFTP      bool
	manifest    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the boot artifact servers",
	Long: `Start the HTTP server, the optional HTTPS server and the TFTP
server, then block until SIGINT or SIGTERM.

Binding TFTP port 69 requires elevated privileges. Use a higher port
for unprivileged testing; port 0 picks a free one.

Examples:
  bootserver serve --root-dir ./boot-artifacts --http-port 8080 --tftp-port 6969

  bootserver serve --config /etc/bootserver/config.yaml

  BOOTSERVER_LOGGING_LEVEL=debug bootserver serve --root-dir ./boot-artifacts`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&rootDir, "root-dir", "d", "", "Directory to serve")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().IntVar(&httpPort, "http-port", -1, "HTTP server port")
	serveCmd.Flags().IntVar(&httpsPort, "https-port", -1, "HTTPS server port")
	serveCmd.Flags().IntVar(&tftpPort, "tftp-port", -1, "TFTP server port (use 69 with root)")
	serveCmd.Flags().BoolVar(&enableHTTPS, "enable-https", false, "Enable the HTTPS server")
	serveCmd.Flags().StringVar(&certFile, "cert-file", "", "TLS certificate file for HTTPS")
	serveCmd.Flags().StringVar(&keyFile, "key-file", "", "TLS private key file for HTTPS")
	serveCmd.Flags().BoolVar(&noTFTP, "no-tftp", false, "Disable the TFTP server")
	serveCmd.Flags().StringVar(&manifest, "streams-manifest", "", "Stream manifest file to load and watch")
}

// loadConfig merges the configuration sources and applies flag
// overrides on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("root-dir") {
		cfg.RootDir = rootDir
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}

	if cmd.Flags().Changed("http-port") {
		cfg.HTTP.Port = httpPort
	}

	if cmd.Flags().Changed("https-port") {
		cfg.HTTPS.Port = httpsPort
	}

	if cmd.Flags().Changed("tftp-port") {
		cfg.TFTP.Port = tftpPort
	}

	if cmd.Flags().Changed("enable-https") {
		cfg.HTTPS.Enabled = enableHTTPS
	}

	if cmd.Flags().Changed("cert-file") {
		cfg.HTTPS.CertFile = certFile
	}

	if cmd.Flags().Changed("key-file") {
		cfg.HTTPS.KeyFile = keyFile
	}

	if cmd.Flags().Changed("no-tftp") {
		cfg.TFTP.Enabled = !noTFTP
	}

	if cmd.Flags().Changed("streams-manifest") {
		cfg.Streams.Manifest = manifest
	}

	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Logging.Level)

	defer func() {
		// stderr sync failures at exit are not actionable
		_ = logger.Sync()
	}()

	l := logger.Sugar()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	srv, err := server.New(l, serverConfig(cfg), m)
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		// partial starts leave earlier listeners bound
		srv.Stop()

		return err
	}

	defer srv.Stop()

	if port, ok := srv.HTTPPort(); ok {
		l.Infof("http listening on port %d", port)
	}

	if port, ok := srv.HTTPSPort(); ok {
		l.Infof("https listening on port %d", port)
	}

	if port, ok := srv.TFTPPort(); ok {
		l.Infof("tftp listening on port %d", port)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signalChan

	l.Infof("received %s, shutting down", sig)

	return nil
}

func serverConfig(cfg *config.Config) server.Config {
	var sc server.Config

	sc.RootDir = cfg.RootDir
	sc.HTTP.Host = cfg.HTTP.Host
	sc.HTTP.Port = cfg.HTTP.Port
	sc.HTTPS.Enabled = cfg.HTTPS.Enabled
	sc.HTTPS.Host = cfg.HTTPS.Host
	sc.HTTPS.Port = cfg.HTTPS.Port
	sc.HTTPS.CertFile = cfg.HTTPS.CertFile
	sc.HTTPS.KeyFile = cfg.HTTPS.KeyFile
	sc.TFTP.Enabled = cfg.TFTP.Enabled
	sc.TFTP.Host = cfg.TFTP.Host
	sc.TFTP.Port = cfg.TFTP.Port
	sc.TFTP.AckTimeout = cfg.TFTP.AckTimeout
	sc.TFTP.MaxSessions = cfg.TFTP.MaxSessions
	sc.StreamsManifest = cfg.Streams.Manifest

	return sc
}
