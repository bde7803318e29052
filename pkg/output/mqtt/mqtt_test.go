package mqtt

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/krembot-to-mqtt/pkg/battery"
	"github.com/ericogr/krembot-to-mqtt/pkg/color"
	"github.com/ericogr/krembot-to-mqtt/pkg/config"
	"github.com/ericogr/krembot-to-mqtt/pkg/rgba"
	"github.com/ericogr/krembot-to-mqtt/pkg/sensor"
)

type fakeToken struct{ err error }

var closed = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return closed }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	msgs []message
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.msgs = append(c.msgs, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return &fakeToken{err: c.err}
}

func TestPublishTopics(t *testing.T) {
	client := &fakeClient{}
	m := newMQTTOutput(client, config.MQTTConfig{Topic: "robots/k1/"})
	ts := time.Date(2025, 9, 19, 14, 41, 54, 0, time.UTC)
	r := sensor.Reading{
		Timestamp: ts,
		Battery:   &battery.Status{Voltage: 3.9, Level: 66, Charging: true, Timestamp: ts},
		Colors: []rgba.Reading{
			{
				Name: "Front", Channel: 0,
				Result:    rgba.Result{Ambient: 900, Red: 800, Green: 40, Blue: 40, Proximity: 30, Distance: 20.7},
				HSV:       color.HSV{H: 0, S: 0.95, V: 800},
				Color:     color.Red,
				Timestamp: ts,
			},
			{
				Name: "Rear Left", Channel: 5,
				Result:    rgba.Result{BlueError: true},
				HSV:       color.HSV{H: math.NaN()},
				Timestamp: ts,
			},
		},
	}
	if err := m.Publish(r); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(client.msgs) != 3 {
		t.Fatalf("messages: got %d want 3", len(client.msgs))
	}
	wantTopics := []string{"robots/k1/battery", "robots/k1/rgba/front", "robots/k1/rgba/rear_left"}
	for i, w := range wantTopics {
		if client.msgs[i].topic != w {
			t.Fatalf("topic %d: got %q want %q", i, client.msgs[i].topic, w)
		}
		if client.msgs[i].retained {
			t.Fatalf("state message %q must not be retained", w)
		}
	}

	var bat map[string]interface{}
	if err := json.Unmarshal(client.msgs[0].payload, &bat); err != nil {
		t.Fatalf("battery payload: %v", err)
	}
	if bat["level"] != float64(66) || bat["charging"] != true {
		t.Fatalf("battery payload: %s", client.msgs[0].payload)
	}

	var front colorPayload
	if err := json.Unmarshal(client.msgs[1].payload, &front); err != nil {
		t.Fatalf("front payload: %v", err)
	}
	if front.Color != "Red" || front.Hue == nil || *front.Hue != 0 || front.Proximity != 30 {
		t.Fatalf("front payload: %s", client.msgs[1].payload)
	}

	var rear map[string]interface{}
	if err := json.Unmarshal(client.msgs[2].payload, &rear); err != nil {
		t.Fatalf("rear payload: %v", err)
	}
	if rear["hue"] != nil || rear["color"] != "None" {
		t.Fatalf("rear payload: %s", client.msgs[2].payload)
	}
	errs, ok := rear["errors"].([]interface{})
	if !ok || len(errs) != 1 || errs[0] != "blue" {
		t.Fatalf("rear errors: %v", rear["errors"])
	}
}

func TestPublishDefaultTopicAndError(t *testing.T) {
	client := &fakeClient{err: errors.New("broker gone")}
	m := newMQTTOutput(client, config.MQTTConfig{})
	err := m.Publish(sensor.Reading{Battery: &battery.Status{}})
	if err == nil {
		t.Fatalf("expected publish error")
	}
	if client.msgs[0].topic != DefaultTopic+"/battery" {
		t.Fatalf("topic: %q", client.msgs[0].topic)
	}
}

func TestPublishRawWithoutClient(t *testing.T) {
	m := &MQTTOutput{}
	if err := m.PublishRaw("x", []byte("y"), false); err == nil {
		t.Fatalf("expected error without client")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestDiscoveryAnnouncesReportingSensors(t *testing.T) {
	client := &fakeClient{}
	cfg := config.MQTTConfig{Topic: "krembot", ClientID: "Robot 1", DiscoveryPrefix: "homeassistant/"}
	m := newMQTTOutput(client, cfg)
	// only Front and Tail came up; nothing is announced for the others
	r := sensor.Reading{
		Battery: &battery.Status{Level: 80},
		Colors: []rgba.Reading{
			{Name: "Front", Channel: 0},
			{Name: "Tail", Channel: 6},
		},
	}
	if err := m.Publish(r); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	want := []struct {
		topic    string
		retained bool
	}{
		{"homeassistant/sensor/robot_1_battery/config", true},
		{"homeassistant/sensor/robot_1_battery_voltage/config", true},
		{"krembot/battery", false},
		{"homeassistant/sensor/robot_1_front_color/config", true},
		{"homeassistant/sensor/robot_1_front_distance/config", true},
		{"krembot/rgba/front", false},
		{"homeassistant/sensor/robot_1_tail_color/config", true},
		{"homeassistant/sensor/robot_1_tail_distance/config", true},
		{"krembot/rgba/tail", false},
	}
	if len(client.msgs) != len(want) {
		t.Fatalf("messages: got %d want %d", len(client.msgs), len(want))
	}
	for i, w := range want {
		if client.msgs[i].topic != w.topic || client.msgs[i].retained != w.retained {
			t.Fatalf("message %d: got %q retained=%v want %q retained=%v",
				i, client.msgs[i].topic, client.msgs[i].retained, w.topic, w.retained)
		}
	}

	var level map[string]interface{}
	if err := json.Unmarshal(client.msgs[0].payload, &level); err != nil {
		t.Fatalf("battery discovery: %v", err)
	}
	if level["state_topic"] != "krembot/battery" || level["device_class"] != "battery" ||
		level["unit_of_measurement"] != "%" || level["value_template"] != "{{ value_json.level }}" {
		t.Fatalf("battery discovery payload: %s", client.msgs[0].payload)
	}
	if level["name"] != "Krembot Robot 1 battery" || level["unique_id"] != "robot_1_battery" {
		t.Fatalf("battery discovery identity: %s", client.msgs[0].payload)
	}

	var dist map[string]interface{}
	if err := json.Unmarshal(client.msgs[7].payload, &dist); err != nil {
		t.Fatalf("distance discovery: %v", err)
	}
	if dist["state_topic"] != "krembot/rgba/tail" || dist["unit_of_measurement"] != "cm" {
		t.Fatalf("distance discovery payload: %s", client.msgs[7].payload)
	}

	// later readings only publish state
	client.msgs = nil
	if err := m.Publish(r); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(client.msgs) != 3 {
		t.Fatalf("second publish: got %d messages want 3", len(client.msgs))
	}
}

func TestNoDiscoveryWithoutPrefix(t *testing.T) {
	client := &fakeClient{}
	m := newMQTTOutput(client, config.MQTTConfig{})
	if err := m.Publish(sensor.Reading{Colors: []rgba.Reading{{Name: "Front"}}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(client.msgs) != 1 || client.msgs[0].topic != "krembot/rgba/front" {
		t.Fatalf("messages: %+v", client.msgs)
	}
}
