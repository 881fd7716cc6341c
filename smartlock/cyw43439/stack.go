//go:build tinygo

// Package cyw43439 brings up WiFi on the Pico W and runs the lneto network
// stack the lock's MQTT session dials through.
//
// The WiFi credentials are set at build time:
//
//	tinygo flash -target=pico-w -ldflags="-X 'github.com/harveysanders/picolock/smartlock/cyw43439.ssid=home' -X 'github.com/harveysanders/picolock/smartlock/cyw43439.pass=secret'" ./smartlock
//
// The code is adapted from the examples in the soypat/cyw43439 repository:
// https://github.com/soypat/cyw43439/tree/main/examples/common
//
// Original author: Patricio Whittingslow (soypat)
package cyw43439

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"runtime"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/lneto/x/xnet"
)

const mtu = cyw43439.MTU

var (
	ssid string
	pass string
)

// SSID returns the WiFi SSID set via linker flags.
func SSID() string { return ssid }

// Password returns the WiFi password set via linker flags.
func Password() string { return pass }

// Config configures Connect.
type Config struct {
	SSID     string
	Password string // empty joins an open network
	// Hostname is used for DHCP requests. Required.
	Hostname string
	// MaxTCPConns is the number of TCP connections the stack can hold (default 1).
	MaxTCPConns int
	// JoinRetries bounds WiFi join attempts; 0 retries forever.
	JoinRetries int
	// JoinBackoff is the pause between join attempts (default 5s).
	JoinBackoff time.Duration
	RandSeed    int64
	Logger      *slog.Logger
	// OnStatus, if set, receives short progress strings for the display.
	OnStatus func(status string)
}

// Stack pairs the CYW43439 radio with an lneto StackAsync.
type Stack struct {
	s       xnet.StackAsync
	dev     *cyw43439.Device
	log     *slog.Logger
	sendbuf []byte
}

// Connect initializes the radio, joins the network and prepares the stack.
// Call SetupWithDHCP next and keep Serve running.
func Connect(cfg Config) (*Stack, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("empty hostname")
	}
	if cfg.JoinBackoff <= 0 {
		cfg.JoinBackoff = 5 * time.Second
	}
	if cfg.MaxTCPConns < 1 {
		cfg.MaxTCPConns = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	status := cfg.OnStatus
	if status == nil {
		status = func(string) {}
	}

	start := time.Now()
	dev := cyw43439.NewPicoWDevice()
	dev.SetLogger(logger)

	status("wifi init")
	if err := dev.Init(cyw43439.DefaultWifiConfig()); err != nil {
		return nil, errors.New("wifi init failed:" + err.Error())
	}
	logger.Info("cyw43439:init", slog.Duration("duration", time.Since(start)))

	status("wifi join")
	logger.Info("wifi:joining",
		slog.String("ssid", cfg.SSID),
		slog.Bool("open", cfg.Password == ""),
	)
	for attempt := 1; ; attempt++ {
		err := dev.JoinWPA2(cfg.SSID, cfg.Password)
		if err == nil {
			break
		}
		logger.Error("wifi:join-failed", slog.Int("attempt", attempt), slog.String("err", err.Error()))
		if cfg.JoinRetries > 0 && attempt >= cfg.JoinRetries {
			status("wifi failed")
			return nil, errors.New("wifi join failed:" + err.Error())
		}
		time.Sleep(cfg.JoinBackoff)
	}

	mac, err := dev.HardwareAddr6()
	if err != nil {
		return nil, errors.New("get hardware address:" + err.Error())
	}
	logger.Info("wifi:joined", slog.String("mac", net.HardwareAddr(mac[:]).String()))

	stack := &Stack{
		dev:     dev,
		log:     logger,
		sendbuf: make([]byte, mtu),
	}
	err = stack.s.Reset(xnet.StackConfig{
		Hostname:        cfg.Hostname,
		MaxTCPConns:     cfg.MaxTCPConns,
		RandSeed:        time.Since(start).Nanoseconds() ^ cfg.RandSeed,
		HardwareAddress: mac,
		MTU:             mtu,
	})
	if err != nil {
		return nil, errors.New("stack reset:" + err.Error())
	}

	dev.RecvEthHandle(func(pkt []byte) error {
		return stack.s.Demux(pkt, 0)
	})
	return stack, nil
}

// SetupWithDHCP requests an address, preferring requested. When DHCP does
// not complete and requested is a valid address it is assigned statically.
func (s *Stack) SetupWithDHCP(requested netip.Addr) (*xnet.DHCPResults, error) {
	if !requested.IsValid() {
		requested = netip.AddrFrom4([4]byte{})
	} else if !requested.Is4() {
		return nil, errors.New("only dhcpv4 supported")
	}

	const pollTime = 50 * time.Millisecond
	rstack := s.s.StackRetrying(pollTime)

	s.log.Info("dhcp:starting")
	results, err := rstack.DoDHCPv4(requested.As4(), 3*time.Second, 3)
	if err != nil {
		if !requested.IsUnspecified() {
			s.log.Warn("dhcp:static-fallback", slog.String("ip", requested.String()))
			s.s.SetIPAddr(requested)
			return &xnet.DHCPResults{AssignedAddr: requested}, nil
		}
		return nil, errors.New("dhcp failed:" + err.Error())
	}

	if err := s.s.AssimilateDHCPResults(results); err != nil {
		return nil, errors.New("assimilate dhcp:" + err.Error())
	}
	gatewayHW, err := rstack.DoResolveHardwareAddress6(results.Router, 500*time.Millisecond, 4)
	if err != nil {
		return nil, errors.New("resolve gateway:" + err.Error())
	}
	s.s.SetGateway6(gatewayHW)

	s.log.Info("dhcp:complete",
		slog.String("ourIP", results.AssignedAddr.String()),
		slog.String("router", results.Router.String()),
		slog.Uint64("lease_sec", uint64(results.TLease)),
	)
	return results, nil
}

// RecvAndSend polls the radio for one packet and sends one pending packet.
func (s *Stack) RecvAndSend() (send, recv int, err error) {
	gotPacket, errRecv := s.dev.PollOne()
	if gotPacket {
		recv = 1
	}
	if errRecv != nil {
		s.log.Error("stack:poll", slog.String("err", errRecv.Error()))
	}

	send, err = s.s.Encapsulate(s.sendbuf, -1, 0)
	if err != nil {
		s.log.Error("stack:encapsulate", slog.Int("plen", send), slog.String("err", err.Error()))
	} else {
		err = errRecv
	}
	if send == 0 {
		return send, recv, err
	}

	err = s.dev.SendEth(s.sendbuf[:send])
	if err != nil {
		s.log.Error("stack:send", slog.Int("plen", send), slog.String("err", err.Error()))
	}
	return send, recv, err
}

// Serve moves packets until ctx is done, backing off while the link is idle.
func (s *Stack) Serve(ctx context.Context) {
	for ctx.Err() == nil {
		send, recv, _ := s.RecvAndSend()
		if send == 0 && recv == 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		runtime.Gosched()
	}
}

// Lneto returns the underlying stack for DNS lookups and TCP dials.
func (s *Stack) Lneto() *xnet.StackAsync { return &s.s }

// Addr returns the stack's IP address.
func (s *Stack) Addr() netip.Addr { return s.s.Addr() }
