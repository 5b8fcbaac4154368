package systemd

import (
	"net"
	"os"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
)

// Listener names expected from the systemd socket units, matched via
// FileDescriptorName.
const (
	ListenerAPI     = "api"
	ListenerMetrics = "metrics"
	ListenerDNSUDP  = "dns-udp"
	ListenerDNSTCP  = "dns-tcp"
)

// Sockets holds listeners inherited through socket activation. Fields
// are nil when the corresponding socket unit is not configured; the
// daemon binds those addresses itself.
type Sockets struct {
	API     net.Listener
	Metrics net.Listener
	DNSUDP  net.PacketConn
	DNSTCP  net.Listener
}

// InheritedSockets collects socket-activated listeners by name. The
// activation fds can only be read once (the env vars are unset on
// first use), so every socket, stream or datagram, is taken from the
// same pass.
func InheritedSockets(logger zerolog.Logger) *Sockets {
	log := logger.With().Str("component", "systemd").Logger()

	sockets := &Sockets{}

	files := activation.Files(true)
	for _, f := range files {
		if f == nil {
			continue
		}
		classify(f.Name(), f, sockets, log)
		_ = f.Close()
	}

	if sockets.API != nil || sockets.Metrics != nil || sockets.DNSUDP != nil || sockets.DNSTCP != nil {
		log.Info().Msg("Using socket-activated listeners")
	}

	return sockets
}

// classify converts one activation fd into the listener slot its name
// designates. The dns-udp socket is a datagram socket and becomes a
// PacketConn; everything else is a stream listener.
func classify(name string, f *os.File, sockets *Sockets, log zerolog.Logger) {
	switch name {
	case ListenerDNSUDP:
		conn, err := net.FilePacketConn(f)
		if err != nil {
			log.Warn().Err(err).Str("name", name).Msg("Activated socket is not a datagram socket")
			return
		}
		sockets.DNSUDP = conn
	case ListenerAPI, ListenerMetrics, ListenerDNSTCP:
		ln, err := net.FileListener(f)
		if err != nil {
			log.Warn().Err(err).Str("name", name).Msg("Activated socket is not a stream listener")
			return
		}
		switch name {
		case ListenerAPI:
			sockets.API = ln
		case ListenerMetrics:
			sockets.Metrics = ln
		case ListenerDNSTCP:
			sockets.DNSTCP = ln
		}
	default:
		log.Warn().Str("name", name).Msg("Ignoring unknown activated listener")
	}
}

// NotifyReady tells systemd the daemon is up. A no-op outside systemd.
func NotifyReady(logger zerolog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to send readiness notification")
		return
	}
	if sent {
		logger.Debug().Msg("Notified systemd: ready")
	}
}

// NotifyStopping tells systemd the daemon is shutting down
func NotifyStopping(logger zerolog.Logger) {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}
