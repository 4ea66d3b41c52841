package publisher

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/mindergas/internal/config"
	"github.com/jgoulah/mindergas/internal/mindergas"
	"github.com/jgoulah/mindergas/internal/state"
	"github.com/jgoulah/mindergas/internal/updater"
	"github.com/jgoulah/mindergas/pkg/models"
)

type doneToken struct{}

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (doneToken) Error() error { return nil }

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 1 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 1 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

type fakeClient struct {
	mu           sync.Mutex
	published    map[string][]byte
	retained     map[string]bool
	handlers     map[string]mqtt.MessageHandler
	disconnected bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		published: make(map[string][]byte),
		retained:  make(map[string]bool),
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (f *fakeClient) IsConnected() bool { return !f.disconnected }
func (f *fakeClient) Disconnect(uint)   { f.disconnected = true }

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = payload.([]byte)
	f.retained[topic] = retained
	return doneToken{}
}

func (f *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = cb
	return doneToken{}
}

func (f *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	return doneToken{}
}

func (f *fakeClient) get(topic string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.published[topic]
	return string(b), ok
}

func (f *fakeClient) press(topic string) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	h(nil, message{topic: topic, payload: []byte("PRESS")})
}

type fakeActions struct {
	refreshes atomic.Int32
	posts     atomic.Int32
	onRefresh func()
}

func (a *fakeActions) Refresh(context.Context) updater.RefreshResult {
	a.refreshes.Add(1)
	if a.onRefresh != nil {
		a.onRefresh()
	}
	return updater.RefreshResult{}
}

func (a *fakeActions) PostReading(context.Context) error {
	a.posts.Add(1)
	return nil
}

func testPublisher(t *testing.T) (*Publisher, *fakeClient) {
	t.Helper()
	fc := newFakeClient()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newPublisher(fc, config.MQTTConfig{TopicPrefix: "mindergas"}, logger), fc
}

func testInstallation() models.Installation {
	return models.Installation{ID: uuid.MustParse("0b9f6c2e-8d1a-4c3b-9e2f-1a2b3c4d5e6f"), Name: "Home", APIKey: "abc123", UpdateStats: true}
}

func TestAttachPublishesDiscovery(t *testing.T) {
	p, fc := testPublisher(t)
	inst := testInstallation()
	st := state.New(inst.ID, inst.APIKey)

	require.NoError(t, p.Attach(context.Background(), inst, st, &fakeActions{}, false))

	raw, ok := fc.get("homeassistant/sensor/mindergas_0b9f6c2e/yearly_total_usage/config")
	require.True(t, ok)
	assert.True(t, fc.retained["homeassistant/sensor/mindergas_0b9f6c2e/yearly_total_usage/config"])

	var cfg discoveryConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, "Yearly Total Usage", cfg.Name)
	assert.Equal(t, "mindergas_0b9f6c2e_yearly_total_usage", cfg.UniqueID)
	assert.Equal(t, "mindergas/0b9f6c2e/yearly_total_usage/state", cfg.StateTopic)
	assert.Equal(t, "mindergas/status", cfg.AvailabilityTopic)
	assert.Equal(t, "Home", cfg.Device.Name)

	raw, ok = fc.get("homeassistant/button/mindergas_0b9f6c2e/refresh/config")
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, "mindergas/0b9f6c2e/refresh/set", cfg.CommandTopic)

	initial, ok := fc.get("mindergas/0b9f6c2e/yearly_usage_period_end/state")
	require.True(t, ok)
	assert.Equal(t, "None", initial)

	assert.Error(t, p.Attach(context.Background(), inst, st, &fakeActions{}, false))
}

func TestNotifyPublishesStatesAndUnits(t *testing.T) {
	p, fc := testPublisher(t)
	inst := testInstallation()
	st := state.New(inst.ID, inst.APIKey)
	require.NoError(t, p.Attach(context.Background(), inst, st, &fakeActions{}, false))

	end, err := mindergas.ParseDate("2023-12-31")
	require.NoError(t, err)
	st.SetUsage(&mindergas.UsageRecord{
		PeriodEnd: end,
		Total:     &mindergas.Quantity{Value: 1200.5, Unit: mindergas.UnitCubicMeter},
	})
	st.Notify()

	got, _ := fc.get("mindergas/0b9f6c2e/yearly_usage_period_end/state")
	assert.Equal(t, "2023-12-31", got)
	got, _ = fc.get("mindergas/0b9f6c2e/yearly_total_usage/state")
	assert.Equal(t, "1200.5", got)

	raw, _ := fc.get("homeassistant/sensor/mindergas_0b9f6c2e/yearly_total_usage/config")
	var cfg discoveryConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, "m³", cfg.UnitOfMeasurement)
}

func TestButtonsTriggerActions(t *testing.T) {
	p, fc := testPublisher(t)
	inst := testInstallation()
	actions := &fakeActions{}
	require.NoError(t, p.Attach(context.Background(), inst, state.New(inst.ID, inst.APIKey), actions, false))

	fc.press("mindergas/0b9f6c2e/refresh/set")
	fc.press("mindergas/0b9f6c2e/post_reading/set")

	require.Eventually(t, func() bool {
		return actions.refreshes.Load() == 1 && actions.posts.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestAttachTriggersInitialRefresh(t *testing.T) {
	p, _ := testPublisher(t)
	inst := testInstallation()
	actions := &fakeActions{}

	require.NoError(t, p.Attach(context.Background(), inst, state.New(inst.ID, inst.APIKey), actions, true))
	require.Eventually(t, func() bool { return actions.refreshes.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestAttachWithoutStatsExposesOnlyButtons(t *testing.T) {
	p, fc := testPublisher(t)
	inst := testInstallation()
	inst.UpdateStats = false
	st := state.New(inst.ID, inst.APIKey)
	actions := &fakeActions{}

	require.NoError(t, p.Attach(context.Background(), inst, st, actions, true))

	raw, ok := fc.get("homeassistant/sensor/mindergas_0b9f6c2e/yearly_total_usage/config")
	assert.True(t, ok)
	assert.Empty(t, raw, "stale sensor discovery is cleared")
	_, ok = fc.get("mindergas/0b9f6c2e/yearly_usage_period_end/state")
	assert.False(t, ok)

	raw, ok = fc.get("homeassistant/button/mindergas_0b9f6c2e/post_reading/config")
	require.True(t, ok)
	assert.NotEmpty(t, raw)

	st.SetUsage(&mindergas.UsageRecord{Total: &mindergas.Quantity{Value: 1}})
	st.Notify()
	_, ok = fc.get("mindergas/0b9f6c2e/yearly_total_usage/state")
	assert.False(t, ok)

	fc.press("mindergas/0b9f6c2e/post_reading/set")
	require.Eventually(t, func() bool { return actions.posts.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return actions.refreshes.Load() > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestDetachAndRemoveDiscovery(t *testing.T) {
	p, fc := testPublisher(t)
	inst := testInstallation()
	st := state.New(inst.ID, inst.APIKey)
	require.NoError(t, p.Attach(context.Background(), inst, st, &fakeActions{}, false))

	require.NoError(t, p.RemoveDiscovery(inst))

	raw, ok := fc.get("homeassistant/sensor/mindergas_0b9f6c2e/yearly_total_usage/config")
	assert.True(t, ok)
	assert.Empty(t, raw)
	raw, _ = fc.get("homeassistant/button/mindergas_0b9f6c2e/post_reading/config")
	assert.Empty(t, raw)
	assert.Empty(t, fc.handlers)

	// Notifications after detaching publish nothing.
	st.SetUsage(&mindergas.UsageRecord{Total: &mindergas.Quantity{Value: 1}})
	st.Notify()
	raw, _ = fc.get("mindergas/0b9f6c2e/yearly_total_usage/state")
	assert.Empty(t, raw)

	p.Close()
	status, _ := fc.get("mindergas/status")
	assert.Equal(t, "offline", status)
	assert.True(t, fc.disconnected)
}
