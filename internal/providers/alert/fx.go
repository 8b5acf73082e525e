package alert

import (
	"strings"

	"github.com/smallbiznis/colegio/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.alert",
	fx.Provide(NewFromConfig),
)

// NewFromConfig selects Telegram when a bot token and chat are configured.
// Local environments never page anyone.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	token := strings.TrimSpace(cfg.Alert.TelegramToken)
	var chats []string
	for _, id := range strings.Split(cfg.Alert.TelegramChatID, ",") {
		if id = strings.TrimSpace(id); id != "" {
			chats = append(chats, id)
		}
	}

	if cfg.IsLocal() || token == "" || len(chats) == 0 {
		log.Info("alerts disabled", zap.String("environment", cfg.Environment))
		return &NoOpProvider{}
	}
	return NewTelegram(TelegramConfig{Token: token, ChatIDs: chats})
}
