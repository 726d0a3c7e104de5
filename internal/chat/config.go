package chat

import "github.com/kelseyhightower/envconfig"

type Config struct {
	Addr        string `envconfig:"CHAT_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"CHAT_METRICS_ADDR" default:":9090"`
	// CHAT_EVENT_BUFFER sizes the registry's event queue.
	EventBuffer int `envconfig:"CHAT_EVENT_BUFFER" default:"128"`
	// CHAT_SEND_BUFFER sizes each connection's outbound queue; a peer that
	// falls this far behind is treated as disconnected.
	SendBuffer int `envconfig:"CHAT_SEND_BUFFER" default:"32"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
