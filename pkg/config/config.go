package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

//Config is the typed view of config.yaml
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Video     VideoConfig     `mapstructure:"video"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Session   SessionConfig   `mapstructure:"session"`
	Store     StoreConfig     `mapstructure:"store"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

type DirectoryConfig struct {
	Root   string `mapstructure:"root"`
	Source string `mapstructure:"source"` //uploaded videos
}

type VideoConfig struct {
	ProdFormat string `mapstructure:"prod_format"`
}

//DetectorConfig describes the external detector process feeding detection events on its standard output
type DetectorConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

type TrackerConfig struct {
	MinConfidence    float64 `mapstructure:"min_confidence"`
	MinSegmentLength float64 `mapstructure:"min_segment_length"`
	MaxGap           float64 `mapstructure:"max_gap"`
	MaxMissedFrames  int     `mapstructure:"max_missed_frames"`
}

type StatsConfig struct {
	PoseCapacity       int     `mapstructure:"pose_capacity"`
	MinJointConfidence float64 `mapstructure:"min_joint_confidence"`
	ReleaseLookback    int     `mapstructure:"release_lookback"` //extra pose samples to look back from the trajectory start
}

type SessionConfig struct {
	MinHoopConfidence   float64 `mapstructure:"min_hoop_confidence"`
	MinPlayerConfidence float64 `mapstructure:"min_player_confidence"`
	DetectPlayer        bool    `mapstructure:"detect_player"` //wait for a player before tracking shots
	ShotCap             int     `mapstructure:"shot_cap"`      //0 means unlimited
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"` //empty disables publishing
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

//SetDefaults registers a default for every key so a partial config file is enough
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("directory.root", "./data")
	v.SetDefault("directory.source", "./data/source")
	v.SetDefault("video.prod_format", "mp4")
	v.SetDefault("detector.command", "python3")
	v.SetDefault("detector.args", []string{"detect_shots.py"})

	v.SetDefault("tracker.min_confidence", 0.9)
	v.SetDefault("tracker.min_segment_length", 100.0)
	v.SetDefault("tracker.max_gap", 150.0)
	v.SetDefault("tracker.max_missed_frames", 10)

	v.SetDefault("stats.pose_capacity", 45)
	v.SetDefault("stats.min_joint_confidence", 0.3)
	v.SetDefault("stats.release_lookback", 10)

	v.SetDefault("session.min_hoop_confidence", 0.8)
	v.SetDefault("session.min_player_confidence", 0.8)
	v.SetDefault("session.detect_player", true)
	v.SetDefault("session.shot_cap", 0)

	v.SetDefault("store.path", "./data/shots.db")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "shot-analyzer")
	v.SetDefault("mqtt.topic", "shots")
	v.SetDefault("mqtt.qos", 1)
}

//Load reads the config file at path (yaml). An empty path looks for config.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path == "" {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Load: Could not read config file, got '%v'", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: Could not parse config, got '%v'", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

//Validate rejects values the pipeline cannot work with
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Port == "":
		return errors.New("Validate: Missing http.port")
	case c.Tracker.MinConfidence < 0 || c.Tracker.MinConfidence > 1:
		return fmt.Errorf("Validate: tracker.min_confidence must be within [0,1], got %v", c.Tracker.MinConfidence)
	case c.Tracker.MaxMissedFrames <= 0:
		return fmt.Errorf("Validate: tracker.max_missed_frames must be positive, got %v", c.Tracker.MaxMissedFrames)
	case c.Tracker.MaxGap <= 0:
		return fmt.Errorf("Validate: tracker.max_gap must be positive, got %v", c.Tracker.MaxGap)
	case c.Stats.PoseCapacity <= 0:
		return fmt.Errorf("Validate: stats.pose_capacity must be positive, got %v", c.Stats.PoseCapacity)
	case c.Session.ShotCap < 0:
		return fmt.Errorf("Validate: session.shot_cap can't be negative, got %v", c.Session.ShotCap)
	}
	return nil
}
