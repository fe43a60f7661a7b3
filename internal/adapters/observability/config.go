package observability

import "time"

type Config struct {
	Address      string        `json:"address" yaml:"address" mapstructure:"address"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`
	EnablePprof  bool          `json:"enable_pprof" yaml:"enable_pprof" mapstructure:"enable_pprof"`
}

func DefaultConfig() Config {
	return Config{
		Address:      ":9090",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
