package mattermost

import (
	"errors"
	"fmt"

	"github.com/mattermost/mattermost-server/v6/model"
)

type Config struct {
	URL   string `yaml:"MM_URL"    env:"MM_URL"`
	WsURL string `yaml:"MM_WS_URL" env:"MM_WS_URL"`
}

type Conn struct {
	Client    *model.Client4
	WebSocket *model.WebSocketClient
	Bot       *model.User
}

// New logs the bot in with token and opens the websocket. The caller starts
// listening and closes the socket.
func New(config Config, token string) (*Conn, error) {
	if config.URL == "" || config.WsURL == "" {
		return nil, errors.New("mattermost: MM_URL and MM_WS_URL are required")
	}
	client := model.NewAPIv4Client(config.URL)
	client.SetToken(token)
	bot, _, err := client.GetUser("me", "")
	if err != nil {
		return nil, fmt.Errorf("mattermost: failed to get bot user: %w", err)
	}
	ws, err := model.NewWebSocketClient4(config.WsURL, token)
	if err != nil {
		return nil, fmt.Errorf("mattermost: failed to connect to webSocket: %w", err)
	}
	return &Conn{Client: client, WebSocket: ws, Bot: bot}, nil
}
