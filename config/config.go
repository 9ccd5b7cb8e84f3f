package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func New() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic("failed to extract default config: " + err.Error())
	}
	return &cfg
}

func DefaultEngineConfig() *Engine {
	var cfg Engine
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic("failed to extract default config: " + err.Error())
	}
	return &cfg
}

type Config struct {
	Playlist string `env:"BACKDROP_PLAYLIST,default=playlist.yml"`
	LogLevel string `env:"BACKDROP_LOG_LEVEL,default=info"`

	Engine  *Engine
	MQTT    *MQTT
	Display *Display
	LED     *LED
}

// Engine holds the rotation timing. The playlist file may override
// both values.
type Engine struct {
	Interval  time.Duration `env:"BACKDROP_ROTATE_INTERVAL,default=20s"`
	Crossfade time.Duration `env:"BACKDROP_CROSSFADE,default=800ms"`
}

// MQTT configures the optional broker publisher.
type MQTT struct {
	Enabled     bool   `env:"BACKDROP_MQTT_ENABLED,default=false"`
	Scheme      string `env:"BACKDROP_MQTT_SCHEME,default=tcp"`
	Host        string `env:"BACKDROP_MQTT_HOST,default=localhost:1883"`
	ClientID    string `env:"BACKDROP_MQTT_CLIENT_ID,default=backdrop-pi"`
	TopicPrefix string `env:"BACKDROP_MQTT_TOPIC_PREFIX,default=BACKDROP"`
}

// Display configures the optional framebuffer output.
type Display struct {
	Enabled bool   `env:"BACKDROP_FB_ENABLED,default=false"`
	Device  string `env:"BACKDROP_FB_DEVICE,default=/dev/fb0"`
}

// LED configures the optional accent LED and its ambient light sensor.
type LED struct {
	Enabled  bool `env:"BACKDROP_LED_ENABLED,default=false"`
	RedPin   int  `env:"BACKDROP_LED_RED_PIN,default=12"`
	GreenPin int  `env:"BACKDROP_LED_GREEN_PIN,default=13"`
	BluePin  int  `env:"BACKDROP_LED_BLUE_PIN,default=19"`

	SensorEnabled bool   `env:"BACKDROP_LIGHT_SENSOR_ENABLED,default=false"`
	SensorBus     string `env:"BACKDROP_LIGHT_SENSOR_BUS,default=I2C1"`
}
