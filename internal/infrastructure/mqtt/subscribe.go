package mqtt

import (
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// subackFailure is the SUBACK return code for a refused subscription.
const subackFailure = 0x80

// Subscribe asks the broker for topic without waiting for the SUBACK.
//
// Messages are delivered through the default publish handler, so no
// per-topic callback is registered with paho. A failed or refused SUBACK
// is reported to the session as a subscribe-failed event.
func (t *Transport) Subscribe(topic string, qos byte) bool {
	if topic == "" || qos > maxQoS {
		return false
	}

	client, gen := t.currentWithGeneration()
	if client == nil || !client.IsConnectionOpen() {
		return false
	}

	token := client.Subscribe(topic, qos, nil)
	go t.watchSubscribe(token, topic, gen)
	return true
}

func (t *Transport) watchSubscribe(token pahomqtt.Token, topic string, gen uint64) {
	<-token.Done()

	failed := token.Error() != nil
	if st, ok := token.(*pahomqtt.SubscribeToken); ok && !failed {
		for _, code := range st.Result() {
			if code == subackFailure {
				failed = true
			}
		}
	}
	if !failed {
		return
	}

	t.logger.Warn("mqtt subscribe failed", "topic", topic, "error", token.Error())
	t.push(event{kind: eventSubscribeFailed, generation: gen, topic: topic})
}
