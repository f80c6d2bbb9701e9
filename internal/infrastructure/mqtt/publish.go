package mqtt

// maxQoS is the maximum QoS level supported.
const maxQoS = 2

// Publish hands a message to paho without waiting for it to be written.
//
// Returns false when there is no open connection, qos is invalid or paho
// failed the request immediately. A later write failure surfaces as a
// connection-lost event.
func (t *Transport) Publish(topic string, payload []byte, qos byte, retain bool) bool {
	if topic == "" || qos > maxQoS {
		return false
	}

	client := t.current()
	if client == nil || !client.IsConnectionOpen() {
		return false
	}

	token := client.Publish(topic, qos, retain, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			t.logger.Debug("mqtt publish rejected", "topic", topic, "error", err)
			return false
		}
	default:
	}
	return true
}
