package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Log     Log     `yaml:"log"`
	Store   Store   `yaml:"store"`
	Session Session `yaml:"session"`
	OpenAI  OpenAI  `yaml:"openai"`
	Yandex  Yandex  `yaml:"yandex"`
	Audio   Audio   `yaml:"audio"`
	Server  Server  `yaml:"server"`
	MCP     MCP     `yaml:"mcp"`
}

type Log struct {
	// Minimum level: debug, info, warn, error
	Level string `yaml:"level" example:"debug" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type Store struct {
	// Path of the check-in log document
	Path string `yaml:"path" example:"data/wellness_log.json" validate:"required"`
}

type Session struct {
	// Time zone used for record dates, IANA name or fixed offset. Empty means process local time
	Timezone string `yaml:"timezone" example:"Europe/Berlin"`
	// Enable microphone capture and spoken replies
	Voice bool `yaml:"voice" example:"true"`
}

type OpenAI struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1" validate:"required"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// OpenAI model
	Model string `yaml:"model" example:"google/gemini-2.5-flash" validate:"required"`
	// Sampling temperature
	Temperature float64 `yaml:"temperature" example:"0.7" validate:"gte=0,lte=2"`
}

type Yandex struct {
	SpeechKit SpeechKit `yaml:"speech_kit"`
}

type SpeechKit struct {
	// Path to the service account key JSON
	KeyFile string `yaml:"key_file" example:"service-account-key.json"`
	// Recognition language
	Language string `yaml:"language" example:"en-US"`
	// Synthesis voice
	Voice string `yaml:"voice" example:"john"`
	// Synthesis role
	Role string `yaml:"role" example:"neutral"`
	// Synthesis speed multiplier
	Speed float64 `yaml:"speed" example:"1.0" validate:"gte=0,lte=3"`
}

type Audio struct {
	// ffmpeg input format of the capture device
	InputFormat string `yaml:"input_format" example:"pulse"`
	// ffmpeg input device
	InputDevice string `yaml:"input_device" example:"default"`
	// Player command, reads WAV from stdin
	Player []string `yaml:"player" example:"[ffplay, -nodisp, -autoexit, -loglevel, quiet, -]"`
}

type Server struct {
	// HTTP listen address, empty disables the API
	Listen string `yaml:"listen" example:":8080"`
}

type MCP struct {
	// Streamable HTTP listen address of the tool server, empty disables it
	Listen string `yaml:"listen" example:":8081"`
}

// Location resolves Session.Timezone.
func (s Session) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		return time.Local, nil
	}

	loc, err := time.LoadLocation(tz)
	if err == nil {
		return loc, nil
	}

	offset, parseErr := time.Parse("-07:00", tz)
	if parseErr != nil {
		return nil, oops.Errorf("invalid timezone %q: %w", tz, err)
	}
	_, secs := offset.Zone()

	return time.FixedZone("UTC"+tz, secs), nil
}

func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

func LoadFile(path string) (*Config, error) {
	for _, envFile := range []string{".env.local", ".env"} {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.Log.Level == "" {
		result.Log.Level = "debug"
	}
	if result.Store.Path == "" {
		result.Store.Path = "data/wellness_log.json"
	}
	if result.OpenAI.Temperature == 0 {
		result.OpenAI.Temperature = 0.7
	}
	if result.Yandex.SpeechKit.KeyFile == "" {
		result.Yandex.SpeechKit.KeyFile = "service-account-key.json"
	}
	if result.Yandex.SpeechKit.Language == "" {
		result.Yandex.SpeechKit.Language = "en-US"
	}
	if result.Yandex.SpeechKit.Voice == "" {
		result.Yandex.SpeechKit.Voice = "john"
	}
	if result.Yandex.SpeechKit.Speed == 0 {
		result.Yandex.SpeechKit.Speed = 1
	}
	if result.Audio.InputFormat == "" {
		result.Audio.InputFormat = "pulse"
	}
	if result.Audio.InputDevice == "" {
		result.Audio.InputDevice = "default"
	}
	if len(result.Audio.Player) == 0 {
		result.Audio.Player = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	if _, err := result.Session.Location(); err != nil {
		return nil, err
	}

	return &result, nil
}
