package notify

import (
	"fmt"
	"os"
)

// TelegramConfig configures the Bot API channel.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" json:",default=false"`
	Token   string `yaml:"token" json:",optional"`
	ChatID  string `yaml:"chat_id" json:",optional"`
}

// DiscordConfig configures the webhook channel.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled" json:",default=false"`
	WebhookURL string `yaml:"webhook_url" json:",optional"`
}

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Enabled  bool     `yaml:"enabled" json:",default=false"`
	Host     string   `yaml:"host" json:",optional"`
	Port     int      `yaml:"port" json:",default=587"`
	Username string   `yaml:"username" json:",optional"`
	Password string   `yaml:"password" json:",optional"`
	From     string   `yaml:"from" json:",optional"`
	To       []string `yaml:"to" json:",optional"`
}

// Config assembles the notification channels.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram" json:",optional"`
	Discord  DiscordConfig  `yaml:"discord" json:",optional"`
	Email    EmailConfig    `yaml:"email" json:",optional"`
}

func expand(s string) string {
	return os.ExpandEnv(s)
}

// Validate checks that each enabled channel has what it needs.
func (c *Config) Validate() error {
	if c.Telegram.Enabled {
		if expand(c.Telegram.Token) == "" || expand(c.Telegram.ChatID) == "" {
			return fmt.Errorf("notify: telegram enabled but token or chat_id missing")
		}
	}
	if c.Discord.Enabled && expand(c.Discord.WebhookURL) == "" {
		return fmt.Errorf("notify: discord enabled but webhook_url missing")
	}
	if c.Email.Enabled {
		if c.Email.Host == "" || len(c.Email.To) == 0 {
			return fmt.Errorf("notify: email enabled but host or recipients missing")
		}
	}
	return nil
}

// Build assembles the fan-out sink from the enabled channels. Secrets in the
// config may reference environment variables with $NAME syntax.
func (c *Config) Build() (*Multi, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var sinks []Sink
	if c.Telegram.Enabled {
		sinks = append(sinks, NewTelegram(expand(c.Telegram.Token), expand(c.Telegram.ChatID)))
	}
	if c.Discord.Enabled {
		sinks = append(sinks, NewDiscord(expand(c.Discord.WebhookURL), nil))
	}
	if c.Email.Enabled {
		sinks = append(sinks, NewEmail(c.Email.Host, c.Email.Port,
			expand(c.Email.Username), expand(c.Email.Password), c.Email.From, c.Email.To))
	}
	return NewMulti(sinks...), nil
}
