package application

import "github.com/bnema/schedule-from-videos/internal/logging"

type ClientSecretStatus struct {
	StoreKey string
	Present  bool
	Masked   string
}

func clientSecretStatus(key, value string) ClientSecretStatus {
	return ClientSecretStatus{
		StoreKey: key,
		Present:  value != "",
		Masked:   logging.Mask(value),
	}
}
