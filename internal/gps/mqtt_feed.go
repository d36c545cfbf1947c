package gps

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// MQTTFeed subscribes to samples published by the GPS producer.
// Retained messages are dropped: a fix the broker kept from an earlier
// session is a cached fix, not a live one.
type MQTTFeed struct {
	Client mqtt.Client
	Topic  string
}

func (f *MQTTFeed) Watch(ctx context.Context, onSample func(Sample), onError func(error)) error {
	var mu sync.Mutex
	closed := false

	token := f.Client.Subscribe(f.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if msg.Retained() {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}

		var s Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Warn().Err(err).Msg("gps: sample unmarshal error")
			return
		}
		if err := s.Validate(); err != nil {
			onError(fmt.Errorf("gps: %w", err))
			return
		}
		onSample(s)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("gps: subscribe %s: %w", f.Topic, err)
	}
	log.Info().Msgf("gps: subscribed to %s", f.Topic)

	<-ctx.Done()

	mu.Lock()
	closed = true
	mu.Unlock()

	if token := f.Client.Unsubscribe(f.Topic); token.Wait() && token.Error() != nil {
		log.Warn().Err(token.Error()).Msgf("gps: unsubscribe %s", f.Topic)
	}
	return nil
}
