package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/krembot-to-mqtt/pkg/config"
	"github.com/ericogr/krembot-to-mqtt/pkg/output"
	"github.com/ericogr/krembot-to-mqtt/pkg/rgba"
	"github.com/ericogr/krembot-to-mqtt/pkg/sensor"
)

const (
	// defaults
	DefaultServer   = "tcp://localhost:1883"
	DefaultClientID = "krembot-client"
	DefaultTopic    = "krembot"
	connectTimeout  = 10 * time.Second
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyDeviceClass         = "device_class"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	keyIcon                = "icon"
	stateClassMeasurement  = "measurement"
)

// publisher is the part of mqtt.Client used to send messages.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type MQTTOutput struct {
	client     publisher
	disconnect func()
	topic      string

	// discovery is set when Home Assistant discovery is enabled
	discovery        *config.MQTTConfig
	announced        map[string]bool
	batteryAnnounced bool
}

// NewMQTT connects to the broker. When a discovery prefix is set, each
// sensor is announced to Home Assistant with its first published reading.
func NewMQTT(cfg config.MQTTConfig) (output.Output, error) {
	server := cfg.Server
	if server == "" {
		server = DefaultServer
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	opts := mqtt.NewClientOptions().AddBroker(server).SetClientID(clientID).SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect: timeout after %s", connectTimeout)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	log.Printf("[mqtt] connected to %s as %s", server, clientID)

	m := newMQTTOutput(client, cfg)
	m.disconnect = func() { client.Disconnect(250) }
	return m, nil
}

func newMQTTOutput(client publisher, cfg config.MQTTConfig) *MQTTOutput {
	topic := strings.TrimSuffix(cfg.Topic, "/")
	if topic == "" {
		topic = DefaultTopic
	}
	m := &MQTTOutput{client: client, topic: topic}
	if cfg.DiscoveryPrefix != "" {
		d := cfg
		m.discovery = &d
		m.announced = map[string]bool{}
	}
	return m
}

func (m *MQTTOutput) batteryTopic() string { return m.topic + "/battery" }

func (m *MQTTOutput) colorTopic(name string) string {
	return m.topic + "/rgba/" + config.TopicSegment(name)
}

// colorPayload is the state message of one RGBA sensor. Hue is null when
// undefined.
type colorPayload struct {
	Channel    uint8    `json:"channel"`
	Ambient    uint16   `json:"ambient"`
	Red        uint16   `json:"red"`
	Green      uint16   `json:"green"`
	Blue       uint16   `json:"blue"`
	Proximity  uint8    `json:"proximity"`
	Distance   float64  `json:"distance"`
	Hue        *float64 `json:"hue"`
	Saturation float64  `json:"saturation"`
	Value      float64  `json:"value"`
	Color      string   `json:"color"`
	Errors     []string `json:"errors,omitempty"`
	Timestamp  string   `json:"timestamp"`
}

func newColorPayload(r rgba.Reading) colorPayload {
	p := colorPayload{
		Channel:    r.Channel,
		Ambient:    r.Result.Ambient,
		Red:        r.Result.Red,
		Green:      r.Result.Green,
		Blue:       r.Result.Blue,
		Proximity:  r.Result.Proximity,
		Distance:   r.Result.Distance,
		Saturation: r.HSV.S,
		Value:      r.HSV.V,
		Color:      r.Color.String(),
		Timestamp:  r.Timestamp.Format(time.RFC3339),
	}
	if !math.IsNaN(r.HSV.H) {
		h := r.HSV.H
		p.Hue = &h
	}
	res := r.Result
	for _, e := range []struct {
		failed bool
		name   string
	}{
		{res.AmbientError, "ambient"},
		{res.RedError, "red"},
		{res.GreenError, "green"},
		{res.BlueError, "blue"},
		{res.ProximityError, "proximity"},
	} {
		if e.failed {
			p.Errors = append(p.Errors, e.name)
		}
	}
	return p
}

func (m *MQTTOutput) Publish(r sensor.Reading) error {
	if r.Battery != nil {
		m.announceBattery()
		if err := m.publishJSON(m.batteryTopic(), false, r.Battery); err != nil {
			return fmt.Errorf("publish battery: %w", err)
		}
	}
	for _, c := range r.Colors {
		m.announceColor(c.Name)
		if err := m.publishJSON(m.colorTopic(c.Name), false, newColorPayload(c)); err != nil {
			return fmt.Errorf("publish %s: %w", c.Name, err)
		}
	}
	return nil
}

func (m *MQTTOutput) Close() error {
	if m.disconnect != nil {
		m.disconnect()
	}
	return nil
}

// PublishRaw publishes a raw payload to the given topic. The caller can set the
// retain flag which is useful for discovery messages.
func (m *MQTTOutput) PublishRaw(topic string, payload []byte, retained bool) error {
	if m.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	token := m.client.Publish(topic, 0, retained, payload)
	token.Wait()
	return token.Error()
}

// helper: marshal and publish JSON payload
func (m *MQTTOutput) publishJSON(topic string, retained bool, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.PublishRaw(topic, b, retained)
}

// announceBattery publishes the retained Home Assistant entries of the
// battery monitor the first time a battery status is published.
func (m *MQTTOutput) announceBattery() {
	if m.discovery == nil || m.batteryAnnounced {
		return
	}
	m.batteryAnnounced = true
	base, uid := discoveryName(*m.discovery), discoveryUniqueID(*m.discovery)
	st := m.batteryTopic()
	level := baseDiscoveryPayload(base+" battery", st, uid+"_battery", "{{ value_json.level }}")
	level[keyUnitOfMeasurement] = "%"
	level[keyDeviceClass] = "battery"
	volts := baseDiscoveryPayload(base+" battery voltage", st, uid+"_battery_voltage", "{{ value_json.voltage }}")
	volts[keyUnitOfMeasurement] = "V"
	volts[keyDeviceClass] = "voltage"
	m.publishDiscovery(uid+"_battery", level)
	m.publishDiscovery(uid+"_battery_voltage", volts)
}

// announceColor publishes the Home Assistant entries of one RGBA sensor the
// first time it reports. Sensors that failed to initialise never report and
// are never announced.
func (m *MQTTOutput) announceColor(name string) {
	seg := config.TopicSegment(name)
	if m.discovery == nil || m.announced[seg] {
		return
	}
	m.announced[seg] = true
	base, uid := discoveryName(*m.discovery), discoveryUniqueID(*m.discovery)
	st := m.colorTopic(name)
	c := baseDiscoveryPayload(fmt.Sprintf("%s %s color", base, name), st, uid+"_"+seg+"_color", "{{ value_json.color }}")
	c[keyIcon] = "mdi:palette"
	d := baseDiscoveryPayload(fmt.Sprintf("%s %s distance", base, name), st, uid+"_"+seg+"_distance", "{{ value_json.distance }}")
	d[keyUnitOfMeasurement] = "cm"
	d[keyDeviceClass] = "distance"
	d[keyStateClass] = stateClassMeasurement
	m.publishDiscovery(uid+"_"+seg+"_color", c)
	m.publishDiscovery(uid+"_"+seg+"_distance", d)
}

// publishDiscovery sends one retained config entry. Failures are logged;
// state publishing works without discovery.
func (m *MQTTOutput) publishDiscovery(id string, payload map[string]interface{}) {
	prefix := strings.TrimSuffix(m.discovery.DiscoveryPrefix, "/")
	topic := fmt.Sprintf("%s/sensor/%s/config", prefix, id)
	if err := m.publishJSON(topic, true, payload); err != nil {
		log.Printf("[mqtt] discovery publish error: %v", err)
	}
}

// helper: build a human-friendly discovery name
func discoveryName(cfg config.MQTTConfig) string {
	if cfg.DiscoveryName != "" {
		return cfg.DiscoveryName
	}
	if cfg.ClientID != "" {
		return fmt.Sprintf("Krembot %s", cfg.ClientID)
	}
	return "Krembot"
}

// helper: build the unique id prefix for discovery entries
func discoveryUniqueID(cfg config.MQTTConfig) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid == "" {
		uid = DefaultClientID
	}
	return config.TopicSegment(uid)
}

// helper: base discovery payload map common to all entries
func baseDiscoveryPayload(name, stateTopic, uniqueID, valueTemplate string) map[string]interface{} {
	return map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyValueTemplate:       valueTemplate,
		keyJSONAttributesTopic: stateTopic,
		keyUniqueID:            uniqueID,
	}
}
