package ports

import "context"

// SettingsRepository persists dotted configuration keys such as "api.max_pages".
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Unset(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]string, error)
}
