package diag

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	quic "github.com/quic-go/quic-go"
	http3 "github.com/quic-go/quic-go/http3"
)

// http3Server wraps http3.Server lifecycle, adapted from the teacher's
// netstack package down to what the diagnostics listener needs: bind,
// serve, report the first error, stop.
type http3Server struct {
	pc    net.PacketConn
	srv   *http3.Server
	close func() error
	errC  chan error
	addr  string
}

func newHTTP3Server(addr string, tlsCfg *tls.Config, h http.Handler) *http3Server {
	if tlsCfg.MinVersion == 0 || tlsCfg.MinVersion < tls.VersionTLS13 {
		c := tlsCfg.Clone()
		c.MinVersion = tls.VersionTLS13
		if len(c.NextProtos) == 0 {
			c.NextProtos = []string{"h3"}
		}
		tlsCfg = c
	}

	s := &http3.Server{Addr: addr, TLSConfig: tlsCfg, Handler: h, QUICConfig: &quic.Config{MaxIdleTimeout: 2 * time.Minute}}
	return &http3Server{srv: s, addr: addr, errC: make(chan error, 1)}
}

// start binds an ephemeral UDP port when addr ends in ":0" and begins
// serving. It returns the bound address.
func (s *http3Server) start() (string, error) {
	pc, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}
	s.pc = pc

	done := make(chan struct{})
	go func() {
		if err := s.srv.Serve(s.pc); err != nil {
			select {
			case s.errC <- err:
			default:
			}
		}
		close(done)
	}()

	s.close = func() error {
		_ = s.pc.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return nil
	}

	return s.pc.LocalAddr().String(), nil
}

func (s *http3Server) stop() error {
	if s.close != nil {
		return s.close()
	}
	return nil
}

func (s *http3Server) errors() <-chan error { return s.errC }
