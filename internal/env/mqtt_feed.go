package env

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// MQTTFeed subscribes to ambient samples published by the env producer.
// Unlike position, a retained ambient reading is still useful; freshness is
// judged by the consumer from CapturedAtMs.
type MQTTFeed struct {
	Client mqtt.Client
	Topic  string
}

// Watch delivers samples until ctx is done.
func (f *MQTTFeed) Watch(ctx context.Context, onSample func(Sample)) error {
	var mu sync.Mutex
	closed := false

	token := f.Client.Subscribe(f.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Warn().Err(err).Msg("env: sample unmarshal error")
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if !closed {
			onSample(s)
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("env: subscribe %s: %w", f.Topic, err)
	}
	log.Info().Msgf("env: subscribed to %s", f.Topic)

	<-ctx.Done()

	mu.Lock()
	closed = true
	mu.Unlock()

	if token := f.Client.Unsubscribe(f.Topic); token.Wait() && token.Error() != nil {
		log.Warn().Err(token.Error()).Msgf("env: unsubscribe %s", f.Topic)
	}
	return nil
}
