package config

import (
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	PublicDir        string        `mapstructure:"PUBLIC_DIR"`
	FFBin            string        `mapstructure:"FF_BIN"`
	FFProbeBin       string        `mapstructure:"FFPROBE_BIN"`
	FFExtraArgs      string        `mapstructure:"FF_EXTRA_ARGS"`
	MaxUploadSize    int64         `mapstructure:"MAX_UPLOAD_SIZE"`
	FileRetention    time.Duration `mapstructure:"FILE_RETENTION"`
	SweepInterval    time.Duration `mapstructure:"SWEEP_INTERVAL"`
	ThrottleCPU      float64       `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64         `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64         `mapstructure:"THROTTLE_FREEDISK"`
	AuthEnable       bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey          string        `mapstructure:"AUTH_KEY"`
	UnsafeDownload   bool          `mapstructure:"UNSAFE_DOWNLOAD"`
	YouTubeAPIKey    string        `mapstructure:"YOUTUBE_API_KEY"`
	SamplePath       string        `mapstructure:"SAMPLE_PATH"`
}

// Storage areas under the public uploads root. The reaper sweeps all three.

func (c *Config) TempDir() string      { return filepath.Join(c.PublicDir, "temp") }
func (c *Config) DownloadsDir() string { return filepath.Join(c.PublicDir, "downloads") }
func (c *Config) OutputsDir() string   { return filepath.Join(c.PublicDir, "outputs") }

// stringToDurationHookFunc parses Go duration strings from config values.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc parses human-readable size strings like "500MB".
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// Not a size string, let other parsers handle it.
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

func Load() (*Config, error) {
	vp := viper.New()

	vp.SetDefault("PORT", "8080")
	vp.SetDefault("PUBLIC_DIR", "public/uploads")
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FFPROBE_BIN", "ffprobe")
	vp.SetDefault("FF_EXTRA_ARGS", "")
	vp.SetDefault("MAX_UPLOAD_SIZE", "500MB")
	vp.SetDefault("FILE_RETENTION", "24h")
	vp.SetDefault("SWEEP_INTERVAL", "1h")
	vp.SetDefault("THROTTLE_CPU", 50.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")
	vp.SetDefault("UNSAFE_DOWNLOAD", false)
	vp.SetDefault("YOUTUBE_API_KEY", "")
	vp.SetDefault("SAMPLE_PATH", "")

	vp.SetConfigName("videotoolbox_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/videotoolbox/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	vp.SetEnvPrefix("VIDTOOLS")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
