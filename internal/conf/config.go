package conf

import (
	"fmt"
	"time"
)

type Bootstrap struct {
	Server *Server `yaml:"server" json:"server"`
	Data   *Data   `yaml:"data" json:"data"`
	Mpesa  *Mpesa  `yaml:"mpesa" json:"mpesa"`
	Cron   *Cron   `yaml:"cron" json:"cron"`
	Log    *Log    `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
}

type Data struct {
	Database struct {
		Driver          string `yaml:"driver" json:"driver"`
		Source          string `yaml:"source" json:"source"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
		DialTimeout  string `yaml:"dial_timeout" json:"dial_timeout"`
		PoolSize     int32  `yaml:"pool_size" json:"pool_size"`
		MinIdleConns int32  `yaml:"min_idle_conns" json:"min_idle_conns"`
	} `yaml:"redis" json:"redis"`
}

// Mpesa holds the Daraja API credentials and endpoints.
type Mpesa struct {
	Env              string `yaml:"env" json:"env"` // sandbox or production
	BaseURL          string `yaml:"base_url" json:"base_url"`
	ConsumerKey      string `yaml:"consumer_key" json:"consumer_key"`
	ConsumerSecret   string `yaml:"consumer_secret" json:"consumer_secret"`
	Shortcode        string `yaml:"shortcode" json:"shortcode"`
	Passkey          string `yaml:"passkey" json:"passkey"`
	CallbackURL      string `yaml:"callback_url" json:"callback_url"`
	Timeout          string `yaml:"timeout" json:"timeout"`
	AccountReference string `yaml:"account_reference" json:"account_reference"`
}

type Cron struct {
	SweepSpec       string `yaml:"sweep_spec" json:"sweep_spec"`
	SweepStaleAfter string `yaml:"sweep_stale_after" json:"sweep_stale_after"`
}

type Log struct {
	Level string `yaml:"level" json:"level"`
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if b.Mpesa == nil {
		return fmt.Errorf("mpesa configuration is required")
	}
	if b.Mpesa.ConsumerKey == "" || b.Mpesa.ConsumerSecret == "" {
		return fmt.Errorf("mpesa.consumer_key and mpesa.consumer_secret are required")
	}
	if b.Mpesa.Shortcode == "" {
		return fmt.Errorf("mpesa.shortcode is required")
	}
	if b.Mpesa.Passkey == "" {
		return fmt.Errorf("mpesa.passkey is required")
	}
	if b.Mpesa.CallbackURL == "" {
		return fmt.Errorf("mpesa.callback_url is required")
	}
	return nil
}

// Duration parses s, falling back to def when s is empty or malformed.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
