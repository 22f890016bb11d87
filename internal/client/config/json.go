package config

import (
	"encoding/json"
	"os"

	"github.com/stepwise-app/stepwise/internal/flagx"
	"github.com/stepwise-app/stepwise/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals use
// timex.Duration so JSON can specify them either as strings like "30s" or as
// integer nanoseconds. Absent fields keep the value already in Config.
type JsonConfig struct {
	ServerEndpointAddr  *string         `json:"server_endpoint_addr"`
	DatabasePath        *string         `json:"database_path"`
	KeystoreDir         *string         `json:"keystore_dir"`
	SyncInterval        *timex.Duration `json:"sync_interval"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	RequestTimeout      *timex.Duration `json:"request_timeout"`
	SyncBatchSize       *int            `json:"sync_batch_size"`
}

// parseJson overlays cfg with values loaded from the JSON file named by the
// -c/-config flags. No flag means no JSON is loaded. Read and unmarshal
// errors panic; configuration problems should stop startup loudly.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.DatabasePath != nil {
		cfg.DatabasePath = *jc.DatabasePath
	}
	if jc.KeystoreDir != nil {
		cfg.KeystoreDir = *jc.KeystoreDir
	}
	if jc.SyncInterval != nil {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.SyncBatchSize != nil {
		cfg.SyncBatchSize = *jc.SyncBatchSize
	}
}
