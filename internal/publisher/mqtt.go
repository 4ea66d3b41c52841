package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jgoulah/mindergas/internal/config"
	"github.com/jgoulah/mindergas/internal/sensor"
	"github.com/jgoulah/mindergas/internal/state"
	"github.com/jgoulah/mindergas/internal/updater"
	"github.com/jgoulah/mindergas/pkg/models"
)

// Button names exposed as Home Assistant buttons
const (
	ButtonRefresh     = "refresh"
	ButtonPostReading = "post_reading"
)

// stateNone makes Home Assistant show a sensor as unknown
const stateNone = "None"

// Actions are the on-demand triggers behind the buttons
type Actions interface {
	Refresh(ctx context.Context) updater.RefreshResult
	PostReading(ctx context.Context) error
}

// mqttClient is the part of mqtt.Client the publisher uses
type mqttClient interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Publisher exposes installations to Home Assistant through MQTT discovery
type Publisher struct {
	client          mqttClient
	topicPrefix     string
	discoveryPrefix string
	logger          *slog.Logger

	mu       sync.Mutex
	attached map[uuid.UUID]*attachment
}

type attachment struct {
	inst        models.Installation
	unsubscribe func()
	commands    []string

	mu    sync.Mutex
	units map[string]string
}

// New connects to the MQTT broker
func New(cfg config.MQTTConfig, logger *slog.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	statusTopic := cfg.GetTopicPrefix() + "/status"

	// Configure MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID(cfg.GetClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetWill(statusTopic, "offline", 1, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		c.Publish(statusTopic, 1, true, "online")
	})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	// Create and connect client
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return newPublisher(client, cfg, logger), nil
}

func newPublisher(client mqttClient, cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:          client,
		topicPrefix:     cfg.GetTopicPrefix(),
		discoveryPrefix: cfg.GetDiscoveryPrefix(),
		logger:          logger.With("component", "mqtt"),
		attached:        make(map[uuid.UUID]*attachment),
	}
}

// Attach publishes discovery for inst, listens for button presses and
// republishes sensor states whenever st notifies. With refresh set, one
// refresh runs in the background to populate the sensors. Sensors are only
// exposed when the installation refreshes statistics; the buttons always are.
func (p *Publisher) Attach(ctx context.Context, inst models.Installation, st *state.Installation, actions Actions, refresh bool) error {
	p.mu.Lock()
	if _, ok := p.attached[inst.ID]; ok {
		p.mu.Unlock()
		return fmt.Errorf("installation %s already attached", inst.ShortID())
	}
	a := &attachment{inst: inst, units: make(map[string]string)}
	p.attached[inst.ID] = a
	p.mu.Unlock()

	snap := st.Snapshot()
	for _, d := range sensor.All {
		var err error
		if inst.UpdateStats {
			err = p.publishSensorConfig(a, d, d.Read(snap))
		} else {
			// Statistics are off: drop sensors left over from an earlier run
			err = p.publish(p.discoveryTopic("sensor", inst, d.Key), true, []byte{})
		}
		if err != nil {
			p.Detach(inst.ID)
			return err
		}
	}

	buttons := map[string]func(){
		ButtonRefresh: func() { actions.Refresh(ctx) },
		ButtonPostReading: func() {
			if err := actions.PostReading(ctx); err != nil {
				p.logger.Debug("post reading button", "installation", inst.ShortID(), "error", err)
			}
		},
	}
	for _, name := range []string{ButtonRefresh, ButtonPostReading} {
		if err := p.publishButtonConfig(inst, name); err != nil {
			p.Detach(inst.ID)
			return err
		}

		run := buttons[name]
		topic := p.commandTopic(inst, name)
		token := p.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			p.logger.Info("button pressed", "installation", inst.ShortID(), "button", name)
			go run()
		})
		if token.Wait() && token.Error() != nil {
			p.Detach(inst.ID)
			return fmt.Errorf("subscribing to %s: %w", topic, token.Error())
		}
		a.commands = append(a.commands, topic)
	}

	sensors := 0
	if inst.UpdateStats {
		a.unsubscribe = st.Subscribe(func() {
			p.publishStates(a, st.Snapshot())
		})
		p.publishStates(a, snap)
		sensors = len(sensor.All)

		if refresh {
			go actions.Refresh(ctx)
		}
	}

	p.logger.Info("installation attached", "installation", inst.ShortID(), "sensors", sensors)
	return nil
}

// Detach stops publishing for the installation. Discovery stays retained.
func (p *Publisher) Detach(id uuid.UUID) {
	p.mu.Lock()
	a, ok := p.attached[id]
	delete(p.attached, id)
	p.mu.Unlock()
	if !ok {
		return
	}

	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if len(a.commands) > 0 {
		token := p.client.Unsubscribe(a.commands...)
		if token.Wait() && token.Error() != nil {
			p.logger.Warn("unsubscribing command topics", "installation", a.inst.ShortID(), "error", token.Error())
		}
	}
}

// RemoveDiscovery clears the retained discovery and state messages of inst
// so Home Assistant drops its entities
func (p *Publisher) RemoveDiscovery(inst models.Installation) error {
	p.Detach(inst.ID)

	for _, d := range sensor.All {
		if err := p.publish(p.discoveryTopic("sensor", inst, d.Key), true, []byte{}); err != nil {
			return err
		}
		if err := p.publish(p.stateTopic(inst, d.Key), true, []byte{}); err != nil {
			return err
		}
	}
	for _, name := range []string{ButtonRefresh, ButtonPostReading} {
		if err := p.publish(p.discoveryTopic("button", inst, name), true, []byte{}); err != nil {
			return err
		}
	}
	return nil
}

// Close marks the bridge offline and disconnects from the MQTT broker
func (p *Publisher) Close() {
	p.mu.Lock()
	ids := make([]uuid.UUID, 0, len(p.attached))
	for id := range p.attached {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	for _, id := range ids {
		p.Detach(id)
	}

	if p.client != nil && p.client.IsConnected() {
		_ = p.publish(p.statusTopic(), true, []byte("offline"))
		p.client.Disconnect(250)
	}
}

func (p *Publisher) publishStates(a *attachment, snap state.Snapshot) {
	for _, d := range sensor.All {
		v := d.Read(snap)

		// Units come from the API, so the discovery config follows them.
		if v.Valid && d.Kind == sensor.KindQuantity && a.unitChanged(d.Key, v.Unit) {
			if err := p.publishSensorConfig(a, d, v); err != nil {
				p.logger.Warn("updating discovery", "installation", a.inst.ShortID(), "sensor", d.Key, "error", err)
			}
		}

		payload := v.State()
		if !v.Valid {
			payload = stateNone
		}
		if err := p.publish(p.stateTopic(a.inst, d.Key), true, []byte(payload)); err != nil {
			p.logger.Warn("publishing state", "installation", a.inst.ShortID(), "sensor", d.Key, "error", err)
		}
	}
	p.logger.Debug("states published", "installation", a.inst.ShortID())
}

func (a *attachment) unitChanged(key, unit string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.units[key] == unit {
		return false
	}
	a.units[key] = unit
	return true
}

func (p *Publisher) publishSensorConfig(a *attachment, d sensor.Description, v sensor.Value) error {
	cfg := discoveryConfig{
		Name:              d.Name,
		UniqueID:          uniqueID(a.inst, d.Key),
		StateTopic:        p.stateTopic(a.inst, d.Key),
		AvailabilityTopic: p.statusTopic(),
		Icon:              d.Icon,
		DeviceClass:       d.DeviceClass,
		StateClass:        d.StateClass,
		Device:            deviceFor(a.inst),
	}
	if d.Kind == sensor.KindQuantity && v.Valid {
		cfg.UnitOfMeasurement = v.Unit
		a.unitChanged(d.Key, v.Unit)
	}
	return p.publishJSON(p.discoveryTopic("sensor", a.inst, d.Key), cfg)
}

func (p *Publisher) publishButtonConfig(inst models.Installation, name string) error {
	cfg := discoveryConfig{
		Name:              buttonNames[name],
		UniqueID:          uniqueID(inst, name),
		CommandTopic:      p.commandTopic(inst, name),
		AvailabilityTopic: p.statusTopic(),
		Icon:              buttonIcons[name],
		Device:            deviceFor(inst),
	}
	return p.publishJSON(p.discoveryTopic("button", inst, name), cfg)
}

func (p *Publisher) publishJSON(topic string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	return p.publish(topic, true, body)
}

func (p *Publisher) publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

func (p *Publisher) statusTopic() string {
	return p.topicPrefix + "/status"
}

func (p *Publisher) stateTopic(inst models.Installation, key string) string {
	return fmt.Sprintf("%s/%s/%s/state", p.topicPrefix, inst.ShortID(), key)
}

func (p *Publisher) commandTopic(inst models.Installation, button string) string {
	return fmt.Sprintf("%s/%s/%s/set", p.topicPrefix, inst.ShortID(), button)
}

func (p *Publisher) discoveryTopic(component string, inst models.Installation, key string) string {
	return fmt.Sprintf("%s/%s/mindergas_%s/%s/config", p.discoveryPrefix, component, inst.ShortID(), key)
}
