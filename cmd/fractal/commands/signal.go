package commands

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fractalnet/fractal/src/net/signal/wamp"
	"github.com/spf13/cobra"
)

var (
	signalBindAddr string
	signalRealm    string
	signalCert     string
	signalKey      string
)

//NewSignalCmd returns the command that runs a standalone signaling server
func NewSignalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signal",
		Short: "Run a WebRTC signaling server using WebSockets",
		RunE:  runSignal,
	}

	cmd.Flags().StringVar(&signalBindAddr, "listen", "127.0.0.1:2443", "Listen IP:Port for the signaling server")
	cmd.Flags().StringVar(&signalRealm, "realm", _config.SignalRealm, "Administrative routing domain")
	cmd.Flags().StringVar(&signalCert, "cert", filepath.Join(_config.DataDir, "cert.pem"), "TLS certificate file")
	cmd.Flags().StringVar(&signalKey, "key", filepath.Join(_config.DataDir, "key.pem"), "TLS key file")

	return cmd
}

// runSignal starts the WAMP server and waits for a SIGINT or SIGTERM
func runSignal(cmd *cobra.Command, args []string) error {
	server, err := wamp.NewServer(
		signalBindAddr,
		signalRealm,
		signalCert,
		signalKey,
		_config.Logger().WithField("prefix", "signal"),
	)
	if err != nil {
		return err
	}

	go server.Run()

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh

	server.Shutdown()

	return nil
}
