package config

import "github.com/spf13/viper"

type API struct {
	ListenAddr string
}

const (
	Cfg_api_listenAddr = "api.listenAddr"
)

var (
	apiDefaults = map[string]interface{}{
		Cfg_api_listenAddr: "127.0.0.1:8080",
	}
)

func init() {
	for k, v := range apiDefaults {
		viper.SetDefault(k, v)
	}
}

func buildAPIConfig() *API {
	return &API{
		ListenAddr: viper.GetString(Cfg_api_listenAddr),
	}
}
