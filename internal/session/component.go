package session

import "github.com/nerrad567/gray-logic-node/internal/lifecycle"

// Component is a dependent component that republishes its discovery and
// state after every (re)connection.
type Component interface {
	OnReconnect()
}

// ComponentFunc adapts a function to the Component interface.
type ComponentFunc func()

// OnReconnect calls f().
func (f ComponentFunc) OnReconnect() {
	f()
}

// Publisher is the view of the session handed to components and automation
// actions. It can publish and subscribe but cannot change the session's
// configuration or state.
type Publisher interface {
	Publish(topic, payload string, qos byte, retain bool) bool
	PublishMessage(m Message) bool
	PublishJSON(topic string, build JSONBuilder, qos byte, retain bool) bool

	Subscribe(topic string, handler MessageHandler, qos byte)
	SubscribeJSON(topic string, handler JSONHandler, qos byte)

	IsConnected() bool
	TopicPrefix() string
	Availability() Availability
	DiscoveryInfo() DiscoveryInfo
}

var (
	_ Publisher            = (*Client)(nil)
	_ lifecycle.Component  = (*Client)(nil)
	_ lifecycle.Proceeder  = (*Client)(nil)
	_ lifecycle.Shutdowner = (*Client)(nil)
)
