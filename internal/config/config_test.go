package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "release"},
		AI:     AIConfig{DefaultProvider: "openai"},
		Mongo:  MongoConfig{URI: "mongodb://localhost:27017"},
		PubSub: PubSubConfig{Driver: "redis"},
	}
}

func TestConfig_Validate(t *testing.T) {
	Convey("Config.Validate", t, func() {
		Convey("合法配置通过", func() {
			So(validConfig().Validate(), ShouldBeNil)
		})

		Convey("端口越界", func() {
			cfg := validConfig()
			cfg.Server.Port = 70000
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("未知运行模式", func() {
			cfg := validConfig()
			cfg.Server.Mode = "staging"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("未知 pubsub driver", func() {
			cfg := validConfig()
			cfg.PubSub.Driver = "nats"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("未知默认 provider", func() {
			cfg := validConfig()
			cfg.AI.DefaultProvider = "mistral"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("缺少 mongo.uri", func() {
			cfg := validConfig()
			cfg.Mongo.URI = ""
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}

func TestAIConfig_Provider(t *testing.T) {
	Convey("AIConfig.Provider 按 id 返回凭证", t, func() {
		cfg := &AIConfig{Providers: ProvidersConfig{
			Anthropic: ProviderConfig{APIKey: "sk-ant"},
		}}

		p, ok := cfg.Provider("anthropic")
		So(ok, ShouldBeTrue)
		So(p.APIKey, ShouldEqual, "sk-ant")

		_, ok = cfg.Provider("unknown")
		So(ok, ShouldBeFalse)
	})
}
