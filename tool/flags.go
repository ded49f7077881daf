package tool

import (
	"flag"

	"github.com/moyoez/scangate/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.Config {
	var cfg types.Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.IntVar(&cfg.UsePort, "usePort", 0, "override listen port")
	flag.StringVar(&cfg.UseBackendURL, "useBackendUrl", "", "override scanning backend base URL")
	flag.StringVar(&cfg.UseRedisAddr, "useRedisAddr", "", "use redis at this address for rate limiting")
	flag.StringVar(&cfg.UseEnvFile, "useEnvFile", ".env", "env file with credential overrides (ignored when missing)")
	flag.BoolVar(&cfg.UseHttps, "useHttps", false, "serve https using certFile/keyFile from config")
	flag.BoolVar(&cfg.SkipNotifyWS, "skipNotifyWs", false, "if true, disable the websocket event stream")
	flag.Parse()
	return cfg
}
