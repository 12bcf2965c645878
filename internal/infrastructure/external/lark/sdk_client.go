package lark

import (
	"context"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string // empty selects the SDK default (open.feishu.cn)
}

// Enabled reports whether credentials are present
func (c Config) Enabled() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// SDKClient is a Lark API client whose internal logging goes to zap
type SDKClient struct {
	api   *lark.Client
	appID string
}

// NewSDKClient creates a client with a cached tenant token
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	opts := []lark.ClientOptionFunc{
		lark.WithLogger(sdkLogger{logger.Named("lark")}),
		lark.WithLogLevel(sdkLevel(logger)),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}
	return &SDKClient{api: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...), appID: cfg.AppID}
}

// API exposes the generated service clients
func (c *SDKClient) API() *lark.Client { return c.api }

// AppID identifies the bot in logs
func (c *SDKClient) AppID() string { return c.appID }

func sdkLevel(logger *zap.Logger) larkcore.LogLevel {
	if logger.Core().Enabled(zapcore.DebugLevel) {
		return larkcore.LogLevelDebug
	}
	return larkcore.LogLevelInfo
}

// sdkLogger satisfies larkcore.Logger
type sdkLogger struct {
	z *zap.Logger
}

func (l sdkLogger) Debug(_ context.Context, args ...interface{}) { l.z.Debug(fmt.Sprint(args...)) }
func (l sdkLogger) Info(_ context.Context, args ...interface{})  { l.z.Info(fmt.Sprint(args...)) }
func (l sdkLogger) Warn(_ context.Context, args ...interface{})  { l.z.Warn(fmt.Sprint(args...)) }
func (l sdkLogger) Error(_ context.Context, args ...interface{}) { l.z.Error(fmt.Sprint(args...)) }

var _ larkcore.Logger = sdkLogger{}
