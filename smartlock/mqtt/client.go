// Package mqtt connects the lock to an MQTT broker: it subscribes to the
// command topic, turning "unlock" messages into lock requests, and
// publishes every lock transition on the state topic.
package mqtt

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"runtime"
	"time"

	"github.com/soypat/lneto/tcp"
	"github.com/soypat/lneto/x/xnet"
	mqtt "github.com/soypat/natiu-mqtt"

	"github.com/harveysanders/picolock/smartlock/lcd"
	"github.com/harveysanders/picolock/smartlock/lock"
)

var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

// Screen shows connection status on the second display line.
type Screen interface {
	Send(msg lcd.Message) bool
}

type Client struct {
	ID                string
	Timeout           time.Duration
	TCPBufSize        int
	Logger            *slog.Logger
	HeartbeatInterval time.Duration
	Username          string // MQTT broker username (optional)
	Password          string // MQTT broker password (optional, requires Username)
	Topics            Topics
	Screen            Screen // optional
}

// Run connects to the broker at addr ("host:port") and serves the lock
// forever, reconnecting on failure. Events are published on the state
// topic; unlock commands are queued on requests without blocking.
func (c *Client) Run(
	stack *xnet.StackAsync,
	addr string,
	events <-chan lock.Event,
	requests chan<- lock.Request,
) error {
	const pollTime = 5 * time.Millisecond

	c.Logger.Info("mqtt:address", slog.String("addr", addr))

	mqttHost, portStr, err := splitHostPort(addr)
	if err != nil {
		return errors.New("parsing host:port from " + addr + ": " + err.Error())
	}
	port := parsePort(portStr)
	if port == 0 {
		return errors.New("invalid port in " + addr)
	}

	rstack := stack.StackRetrying(pollTime)

	// Try to parse as IP first, otherwise DNS lookup
	var mqttAddr netip.Addr
	if parsedAddr, err := netip.ParseAddr(mqttHost); err == nil {
		mqttAddr = parsedAddr
	} else {
		c.Logger.Info("dns:resolving", slog.String("host", mqttHost))
		addrs, err := rstack.DoLookupIP(mqttHost, 5*time.Second, 3)
		if err != nil {
			return errors.New("dns lookup for " + mqttHost + ": " + err.Error())
		}
		if len(addrs) == 0 {
			return errors.New("dns lookup for " + mqttHost + ": no addresses returned")
		}
		mqttAddr = addrs[0]
	}
	c.Logger.Info("dns:resolved", slog.String("ip", mqttAddr.String()))

	cfg := mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 4096)},
		OnPub: func(pubHead mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
			payload, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			c.handlePublish(string(varPub.TopicName), payload, requests)
			return nil
		},
	}
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(c.ID))
	if c.Username != "" {
		varconn.Username = []byte(c.Username)
		if c.Password != "" {
			varconn.Password = []byte(c.Password)
		}
	}

	mqttClient := mqtt.NewClient(cfg)

	var conn tcp.Conn
	err = conn.Configure(tcp.ConnConfig{
		RxBuf:             make([]byte, c.TCPBufSize),
		TxBuf:             make([]byte, c.TCPBufSize),
		TxPacketQueueSize: 3,
	})
	if err != nil {
		return errors.New("tcp configure:" + err.Error())
	}

	closeConn := func(reason string) {
		c.Logger.Error("tcpconn:closing", slog.String("reason", reason))
		conn.Close()
		for i := 0; i < 50 && !conn.State().IsClosed(); i++ {
			time.Sleep(100 * time.Millisecond)
		}
		conn.Abort()
	}

	serverAddr := netip.AddrPortFrom(mqttAddr, port)
	pubVar := mqtt.VariablesPublish{TopicName: []byte(c.Topics.State)}
	subVar := mqtt.VariablesSubscribe{
		TopicFilters: []mqtt.SubscribeRequest{
			{TopicFilter: []byte(c.Topics.Command), QoS: mqtt.QoS0},
		},
	}

	for {
		localPort := uint16(stack.Prand32()>>17) + 1024
		c.Logger.Info("socket:dialing", slog.Uint64("localPort", uint64(localPort)))
		c.status("tcp dial")
		err = rstack.DoDialTCP(&conn, localPort, serverAddr, 10*time.Second, 3)
		if err != nil {
			c.Logger.Error("socket:dial-failed", slog.String("err", err.Error()))
			c.status("dial failed")
			closeConn("dial failed: " + err.Error())
			time.Sleep(2 * time.Second)
			continue
		}
		c.Logger.Info("tcp:connected", slog.String("state", conn.State().String()))

		c.status("mqtt connect")
		conn.SetDeadline(time.Now().Add(c.Timeout))
		err = mqttClient.StartConnect(&conn, &varconn)
		if err != nil {
			c.Logger.Error("mqtt:start-connect-failed", slog.String("reason", err.Error()))
			c.status("connect failed")
			closeConn("connect failed")
			continue
		}
		retries := 50
		for retries > 0 && !mqttClient.IsConnected() {
			time.Sleep(100 * time.Millisecond)
			err = mqttClient.HandleNext()
			if err != nil {
				c.Logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
			}
			retries--
		}
		if !mqttClient.IsConnected() {
			c.Logger.Error("mqtt:connect-failed", slog.Any("reason", mqttClient.Err()))
			c.status("timed out")
			closeConn("connect timed out")
			continue
		}

		subVar.PacketIdentifier = uint16(stack.Prand32())
		conn.SetDeadline(time.Now().Add(c.Timeout))
		if err := mqttClient.StartSubscribe(subVar); err != nil {
			c.Logger.Error("mqtt:subscribe-failed", slog.String("err", err.Error()))
			closeConn("subscribe failed")
			continue
		}
		c.Logger.Info("mqtt:subscribed", slog.String("topic", c.Topics.Command))
		c.status("online")

		c.serve(mqttClient, &conn, stack, pubVar, events)

		c.Logger.Error("mqtt:disconnected", slog.Any("reason", mqttClient.Err()))
		c.status("reconnecting")
		closeConn("disconnected")
		runtime.Gosched()
	}
}

// serve publishes events and reads incoming packets while connected.
func (c *Client) serve(mqttClient *mqtt.Client, conn *tcp.Conn, stack *xnet.StackAsync, pubVar mqtt.VariablesPublish, events <-chan lock.Event) {
	const readWindow = 50 * time.Millisecond
	heartbeat := time.NewTicker(c.HeartbeatInterval)
	defer heartbeat.Stop()

	for mqttClient.IsConnected() {
		select {
		case ev := <-events:
			payload, err := MarshalEvent(ev)
			if err != nil {
				c.Logger.Error("mqtt:marshal-failed", slog.Any("reason", err))
				continue
			}
			conn.SetDeadline(time.Now().Add(c.Timeout))
			pubVar.PacketIdentifier = uint16(stack.Prand32())
			err = mqttClient.PublishPayload(pubFlags, pubVar, payload)
			if err != nil {
				c.Logger.Error("mqtt:publish-failed", slog.Any("reason", err))
				continue
			}
			c.Logger.Info("mqtt:published",
				slog.String("state", ev.State.String()),
				slog.Uint64("packetID", uint64(pubVar.PacketIdentifier)),
			)
		case <-heartbeat.C:
			conn.SetDeadline(time.Now().Add(c.Timeout))
			if err := mqttClient.StartPing(); err != nil {
				c.Logger.Error("mqtt:ping-failed", slog.String("err", err.Error()))
			}
		default:
		}

		// Short read window so commands are picked up between events. An
		// empty window ends in a deadline error, which leaves the session up.
		conn.SetDeadline(time.Now().Add(readWindow))
		if err := mqttClient.HandleNext(); err != nil {
			c.Logger.Debug("mqtt:handle-next", slog.String("err", err.Error()))
		}
		// TinyGo runs goroutines on a single core; yield so the lock and
		// display keep running.
		runtime.Gosched()
	}
}

// handlePublish turns a message on the command topic into a lock request.
func (c *Client) handlePublish(topic string, payload []byte, requests chan<- lock.Request) {
	c.Logger.Info("mqtt:received", slog.String("topic", topic))
	if topic != c.Topics.Command {
		return
	}
	req, err := ParseCommand(payload)
	if err != nil {
		c.Logger.Warn("mqtt:bad-command", slog.String("payload", string(payload)))
		return
	}
	select {
	case requests <- req:
	default:
		c.Logger.Warn("mqtt:request-dropped")
	}
}

func (c *Client) status(s string) {
	if c.Screen == nil {
		return
	}
	c.Screen.Send(lcd.Message{Line2: []byte(s)})
}
