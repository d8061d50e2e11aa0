// MQTT delivery of adhan events to reader devices. The scheduler
// decides when to fire; this package only carries the signal.
package notify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/maosquran/miqat/internal/prayer"
)

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Info().Msg("connected to MQTT broker")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Error().Err(err).Msg("MQTT connection lost")
}

// Publisher pushes adhan events on athan/<device>/events and listens on
// athan/+/status for playback-finished acknowledgements.
type Publisher struct {
	client mqtt.Client
}

func NewPublisher(brokerURL, clientID string) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{client: client}, nil
}

// PublishAdhan sends one adhan event to the device's topic at QoS 1.
func (p *Publisher) PublishAdhan(deviceID int, event prayer.AdhanEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	topic := fmt.Sprintf("athan/%d/events", deviceID)
	token := p.client.Publish(topic, 1, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish adhan to %s: %w", topic, token.Error())
	}

	log.Info().Str("topic", topic).Str("prayer", string(event.Prayer)).Msg("adhan event published")
	return nil
}

type statusMessage struct {
	Status string `json:"status"`
}

// SubscribeStatus registers finished as the callback for devices
// reporting the end of adhan playback. The scheduler uses it to clear
// the in-flight slot, which re-arms triggering.
func (p *Publisher) SubscribeStatus(finished func(deviceID int)) error {
	handler := func(client mqtt.Client, msg mqtt.Message) {
		deviceID, err := deviceFromTopic(msg.Topic())
		if err != nil {
			log.Warn().Str("topic", msg.Topic()).Msg("status message on unparseable topic")
			return
		}
		var status statusMessage
		if err := json.Unmarshal(msg.Payload(), &status); err != nil {
			log.Warn().Err(err).Int("device_id", deviceID).Msg("unparseable status payload")
			return
		}
		if status.Status == "finished" {
			finished(deviceID)
		}
	}

	if token := p.client.Subscribe("athan/+/status", 1, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to status topic: %w", token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
	log.Info().Msg("MQTT client disconnected")
}

func deviceFromTopic(topic string) (int, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 {
		return 0, fmt.Errorf("unexpected topic %q", topic)
	}
	return strconv.Atoi(parts[1])
}
