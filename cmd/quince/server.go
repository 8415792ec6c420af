package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nyxquic/quic"
	"github.com/nyxquic/quic/internal/quicmetrics"
	"github.com/nyxquic/quic/transport"
)

func serverCommand(args []string) error {
	cmd := flag.NewFlagSet("server", flag.ExitOnError)
	listenAddr := cmd.String("listen", "0.0.0.0:4433", "listen on the given IP:port")
	certFile := cmd.String("cert", "", "TLS certificate file")
	keyFile := cmd.String("key", "", "TLS private key file")
	logLevel := cmd.Int("v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
	metricsAddr := cmd.String("metrics", "", "serve Prometheus metrics on the given IP:port (disabled if empty)")
	cmd.Parse(args)

	if *certFile == "" || *keyFile == "" {
		fmt.Fprintln(cmd.Output(), "Usage: quince server -cert <file> -key <file> [options]")
		cmd.PrintDefaults()
		return nil
	}
	config := newConfig()
	cert, err := tls.LoadX509KeyPair(*certFile, *keyFile)
	if err != nil {
		return err
	}
	config.TLSConfig.Certificates = []tls.Certificate{cert}

	server := quic.NewServer(config)
	server.SetHandler(&serverHandler{})
	server.SetLogger(*logLevel, os.Stdout)
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector := quicmetrics.NewCollector(reg)
		server.SetMetrics(collector)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Printf("metrics listening on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}
	if err := server.ListenAndServe(*listenAddr); err != nil {
		return err
	}
	log.Printf("listening on %s", *listenAddr)
	for {
		conn, err := server.Accept()
		if err != nil {
			return err
		}
		log.Printf("accepted connection from %s", conn.RemoteAddr())
	}
}

type serverHandler struct{}

func (s *serverHandler) Serve(c quic.Conn, events []transport.Event) {
	for _, e := range events {
		switch e.Type {
		case quic.EventStreamRecv:
			st, err := c.Stream(e.StreamID)
			if err != nil {
				continue
			}
			buf := make([]byte, 4096)
			n, _ := st.Read(buf)
			log.Printf("%s stream %d: %d bytes", c.RemoteAddr(), e.StreamID, n)
			_, _ = st.Write([]byte("HTTP/0.9 200 OK\r\n"))
			_ = st.Close()
		case quic.EventConnClose:
			log.Printf("%s connection closed: %s", c.RemoteAddr(), e.Reason)
		}
	}
}
