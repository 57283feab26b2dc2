package application

import (
	"errors"
	"strings"
)

const (
	ClientSecretStoreKeySetting = "client.secret_store_key"
	DefaultClientSecretStoreKey = "twitch/client_secret"
)

type SetClientSecretCommand struct {
	StoreKey string
	Value    string
}

func (c SetClientSecretCommand) normalized() (SetClientSecretCommand, error) {
	c.StoreKey = strings.TrimSpace(c.StoreKey)
	if c.StoreKey == "" {
		c.StoreKey = DefaultClientSecretStoreKey
	}
	if c.Value == "" {
		return c, errors.New("client secret value is required")
	}
	return c, nil
}

type SetSettingCommand struct {
	Key   string
	Value string
}
