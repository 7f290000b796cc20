// Package mqttbridge connects the node to an MQTT broker: uplink requests
// arrive on a topic and are sent over LoRaWAN, downlinks and join events are
// published as JSON.
package mqttbridge

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"i4.energy/across/loranode/join"
	"i4.energy/across/loranode/modem"
)

// ErrNoBroker is returned by New when no broker URL is configured.
var ErrNoBroker = errors.New("no mqtt broker configured")

const publishTimeout = 5 * time.Second

// Uplinker sends application data over the radio.
type Uplinker interface {
	Uplink(ctx context.Context, port int, payload []byte) error
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string

	UplinkTopic   string
	DownlinkTopic string
	EventTopic    string
	// DefaultPort is used for uplink requests without a port.
	DefaultPort int

	Logger *slog.Logger
}

type Bridge struct {
	cfg      Config
	client   mqtt.Client
	pub      publisher
	uplinker Uplinker
	logger   *slog.Logger
}

// UplinkRequest is the payload accepted on the uplink topic.
type UplinkRequest struct {
	Port int    `json:"port,omitempty"`
	Data string `json:"data"`
}

// DownlinkMessage is published for every downlink.
type DownlinkMessage struct {
	Port int    `json:"port"`
	RSSI int    `json:"rssi"`
	SNR  int    `json:"snr"`
	Data string `json:"data"`
}

// EventMessage is published for every join event.
type EventMessage struct {
	Event    string `json:"event"`
	State    string `json:"state"`
	Method   string `json:"method"`
	Attempt  int    `json:"attempt"`
	DataRate int    `json:"data_rate"`
	Error    string `json:"error,omitempty"`
}

func New(cfg Config) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, ErrNoBroker
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "loranode"
	}
	if cfg.UplinkTopic == "" {
		cfg.UplinkTopic = "loranode/uplink"
	}
	if cfg.DownlinkTopic == "" {
		cfg.DownlinkTopic = "loranode/downlink"
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = "loranode/events"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	b := &Bridge{cfg: cfg, logger: cfg.Logger}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.logger.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(b.onConnect)

	b.client = mqtt.NewClient(opts)
	b.pub = b.client
	return b, nil
}

// Start connects to the broker. Uplink requests are handed to up.
func (b *Bridge) Start(ctx context.Context, up Uplinker) error {
	b.uplinker = up

	token := b.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect %s: %w", b.cfg.Broker, err)
	}
	return nil
}

func (b *Bridge) onConnect(c mqtt.Client) {
	b.logger.Info("MQTT connected, subscribing", "topic", b.cfg.UplinkTopic)
	token := c.Subscribe(b.cfg.UplinkTopic, 0, func(_ mqtt.Client, m mqtt.Message) {
		b.handleUplink(context.Background(), m.Payload())
	})
	if token.Wait() && token.Error() != nil {
		b.logger.Error("MQTT subscribe failed", "topic", b.cfg.UplinkTopic, "error", token.Error())
	}
}

func (b *Bridge) handleUplink(ctx context.Context, payload []byte) {
	port, data, err := b.decodeUplink(payload)
	if err != nil {
		b.logger.Warn("MQTT bad uplink payload", "error", err)
		return
	}
	if b.uplinker == nil {
		b.logger.Warn("MQTT uplink dropped, bridge not started")
		return
	}
	if err := b.uplinker.Uplink(ctx, port, data); err != nil {
		b.logger.Error("MQTT uplink failed", "port", port, "error", err)
		return
	}
	b.logger.Info("MQTT uplink sent", "port", port, "length", len(data))
}

func (b *Bridge) decodeUplink(payload []byte) (int, []byte, error) {
	var req UplinkRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return 0, nil, err
	}
	data, err := hex.DecodeString(req.Data)
	if err != nil {
		return 0, nil, fmt.Errorf("data: %w", err)
	}
	if len(data) == 0 {
		return 0, nil, errors.New("data is empty")
	}
	port := req.Port
	if port == 0 {
		port = b.cfg.DefaultPort
	}
	return port, data, nil
}

// PublishDownlink publishes dl without waiting for the broker.
func (b *Bridge) PublishDownlink(dl modem.Downlink) {
	b.publish(b.cfg.DownlinkTopic, DownlinkMessage{
		Port: dl.Port,
		RSSI: dl.RSSI,
		SNR:  dl.SNR,
		Data: hex.EncodeToString(dl.Data),
	})
}

// PublishJoinEvent publishes ev without waiting for the broker.
func (b *Bridge) PublishJoinEvent(ev join.Event) {
	msg := EventMessage{
		Event:    ev.Kind.String(),
		State:    ev.State.String(),
		Method:   ev.Method.String(),
		Attempt:  ev.Attempt,
		DataRate: ev.DataRate,
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	b.publish(b.cfg.EventTopic, msg)
}

func (b *Bridge) publish(topic string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("MQTT encode failed", "topic", topic, "error", err)
		return
	}
	token := b.pub.Publish(topic, 0, false, body)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			b.logger.Warn("MQTT publish timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish failed", "topic", topic, "error", err)
		}
	}()
}

func (b *Bridge) Close() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(500)
	}
}
