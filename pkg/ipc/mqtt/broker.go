// Package mqtt carries packets between a driver and its consumers through
// an MQTT broker.
package mqtt

import (
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler is the callback when a message is received.
type Handler func(topic string, payload []byte)

// Broker wraps the MQTT client and dispatches received messages
// to handlers by topic.
type Broker struct {
	Client      paho.Client
	TopicPrefix string

	subsLock sync.RWMutex
	subs     map[string][]*subscription
}

type subscription struct {
	topic   string
	handler Handler
}

// MatchTopic matches topic with pattern.
func MatchTopic(topic, pattern string) bool {
	tokensT, tokensP := strings.Split(topic, "/"), strings.Split(pattern, "/")
	for i, token := range tokensP {
		if token == "#" && i+1 == len(tokensP) {
			return true
		}
		if i >= len(tokensT) {
			return false
		}
		if token != "+" && token != tokensT[i] {
			return false
		}
	}
	return len(tokensP) == len(tokensT)
}

// ClientOptionsFromURL creates ClientOptions from URL.
// The path of the URL is the topic prefix.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}

	topicPrefix := strings.TrimPrefix(u.Path, "/")
	if topicPrefix != "" && !strings.HasSuffix(topicPrefix, "/") {
		topicPrefix += "/"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, topicPrefix, nil
}

// NewBroker creates a Broker.
func NewBroker(options *paho.ClientOptions, topicPrefix string) *Broker {
	b := &Broker{TopicPrefix: topicPrefix}
	options.SetOnConnectHandler(b.onConnect)
	options.SetConnectionLostHandler(b.onConnectionLost)
	b.Client = paho.NewClient(options)
	return b
}

// Connect connects the client and waits for the result.
func (b *Broker) Connect() error {
	token := b.Client.Connect()
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (b *Broker) Close() error {
	b.Client.Disconnect(250)
	return nil
}

// Sub subscribes a topic (relative to the prefix).
func (b *Broker) Sub(topic string, handler Handler) paho.Token {
	b.subsLock.Lock()
	if b.subs == nil {
		b.subs = make(map[string][]*subscription)
	}
	subs := b.subs[topic]
	b.subs[topic] = append(subs, &subscription{topic: topic, handler: handler})
	b.subsLock.Unlock()
	if len(subs) > 0 {
		return &paho.DummyToken{}
	}
	glog.V(2).Infof("SUB %q", b.TopicPrefix+topic)
	return b.Client.Subscribe(b.TopicPrefix+topic, 0, b.dispatch)
}

// Unsub removes all handlers of a topic.
func (b *Broker) Unsub(topic string) paho.Token {
	b.subsLock.Lock()
	_, ok := b.subs[topic]
	delete(b.subs, topic)
	b.subsLock.Unlock()
	if !ok {
		return &paho.DummyToken{}
	}
	glog.V(2).Infof("UNSUB %q", b.TopicPrefix+topic)
	return b.Client.Unsubscribe(b.TopicPrefix + topic)
}

// Pub publishes to a topic (relative to the prefix).
func (b *Broker) Pub(topic string, payload []byte) paho.Token {
	return b.Client.Publish(b.TopicPrefix+topic, 0, false, payload)
}

func (b *Broker) onConnect(paho.Client) {
	glog.Info("broker connected")
	filters := make(map[string]byte)
	b.subsLock.RLock()
	for topic := range b.subs {
		filters[b.TopicPrefix+topic] = 0
	}
	b.subsLock.RUnlock()
	if len(filters) > 0 {
		b.Client.SubscribeMultiple(filters, b.dispatch)
	}
}

func (b *Broker) onConnectionLost(_ paho.Client, err error) {
	glog.Warningf("broker connection lost: %v", err)
}

func (b *Broker) handlers(topic string) []Handler {
	b.subsLock.RLock()
	defer b.subsLock.RUnlock()
	var handlers []Handler
	for pattern, subs := range b.subs {
		if MatchTopic(topic, pattern) {
			for _, sub := range subs {
				handlers = append(handlers, sub.handler)
			}
		}
	}
	return handlers
}

func (b *Broker) dispatch(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	if !strings.HasPrefix(topic, b.TopicPrefix) {
		return
	}
	topic = topic[len(b.TopicPrefix):]
	glog.V(2).Infof("RCV %q", topic)
	payload := msg.Payload()
	for _, h := range b.handlers(topic) {
		h(topic, payload)
	}
}
