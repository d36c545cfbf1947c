package app

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relabs-tech/accurate_clock/internal/clock"
)

// connectMQTT connects to broker. An empty clientID gets a random suffix so
// several instances can share a broker.
func connectMQTT(broker, clientID, role string) (mqtt.Client, error) {
	if clientID == "" {
		clientID = "accurate-clock-" + role + "-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msgf("%s: MQTT connection lost", role)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(30*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("%s: MQTT connect %s: %w", role, broker, token.Error())
	}
	log.Info().Msgf("%s: connected to MQTT broker at %s as %s", role, broker, clientID)
	return client, nil
}

// publishJSON marshals v and publishes it without waiting for the broker.
func publishJSON(client mqtt.Client, topic string, retained bool, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	client.Publish(topic, 0, retained, payload)
	return nil
}

// snapshotStore keeps the latest clock snapshot received over MQTT and
// renders it against the local device clock.
type snapshotStore struct {
	mu   sync.RWMutex
	snap clock.Snapshot
	have bool
	loc  *time.Location
}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{loc: time.Local}
}

// handle decodes one clock topic payload.
func (s *snapshotStore) handle(payload []byte) error {
	var snap clock.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return err
	}

	loc := time.Local
	if snap.Location != "" {
		if l, err := time.LoadLocation(snap.Location); err == nil {
			loc = l
		} else {
			log.Warn().Err(err).Msgf("clock: unknown location %q, using local zone", snap.Location)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.have = true
	s.loc = loc
	return nil
}

func (s *snapshotStore) subscribe(client mqtt.Client, topic, role string) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := s.handle(msg.Payload()); err != nil {
			log.Warn().Err(err).Msgf("%s: clock snapshot unmarshal error", role)
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: subscribe %s: %w", role, topic, err)
	}
	log.Info().Msgf("%s: subscribed to %s", role, topic)
	return nil
}

// Snapshot returns the latest snapshot and whether one has arrived.
func (s *snapshotStore) Snapshot() (clock.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.have
}

// Read renders the latest snapshot at now.
func (s *snapshotStore) Read(now time.Time) (clock.Reading, bool) {
	s.mu.RLock()
	snap, have, loc := s.snap, s.have, s.loc
	s.mu.RUnlock()
	return clock.Render(snap, now, loc), have
}
