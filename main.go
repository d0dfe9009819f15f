/**
 * LockWatch 主入口文件
 *
 * 这是 Wails 应用的启动点，负责：
 * 1. 加载配置并初始化日志
 * 2. 启动会话锁定监控
 * 3. 创建 App 实例并启动 Wails 运行时
 */

package main

import (
	"context"
	"embed"

	"github.com/chenyang-zz/lockwatch/internal/app"
	"github.com/chenyang-zz/lockwatch/internal/infrastructure/config"
	"github.com/chenyang-zz/lockwatch/pkg/logger"
	"github.com/chenyang-zz/lockwatch/pkg/screenlock"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"
)

//go:embed all:frontend/dist
var assets embed.FS

/**
 * 主函数
 *
 * 应用的入口点，负责初始化并启动 Wails 应用
 */
func main() {
	cfg, err := config.Load()
	if err != nil {
		// 日志尚未按配置初始化，使用环境变量配置的 logger
		logger.Warn("加载配置失败，使用默认配置", zap.Error(err))
		cfg, _ = config.LoadDefault()
	}

	if err := logger.InitWithOptions(cfg.LoggerOptions()); err != nil {
		panic(err)
	}
	defer logger.Sync()

	// 监控任务在后台运行，App 启动后注册 Sink 之前的变化会被丢弃
	plugin := screenlock.Init(screenlock.WithInterval(cfg.PollInterval()))

	lockwatchApp := app.New(cfg, plugin)

	err = wails.Run(&options.App{
		// ========== 应用基本配置 ==========

		/** 应用标题 */
		Title: cfg.Application.Name,

		/** 应用窗口宽度（像素） */
		Width: 480,

		/** 应用窗口高度（像素） */
		Height: 360,

		/** 窗口背景色 (白色) */
		BackgroundColour: &options.RGBA{R: 255, G: 255, B: 255, A: 255},

		// ========== Asset Server 配置 ==========

		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		// ========== 绑定 App 实例 ==========

		/**
		 * 前端可以通过 window.go.app.App 访问导出的方法
		 * （GetLockStatus / GetHostStatus / GetLockHistory / GetLockStats）
		 */
		Bind: []interface{}{
			lockwatchApp,
		},

		// ========== 生命周期回调 ==========

		OnStartup: func(ctx context.Context) {
			if err := lockwatchApp.Startup(ctx); err != nil {
				logger.Fatal("应用启动失败", zap.Error(err))
			}
		},

		OnShutdown: func(ctx context.Context) {
			lockwatchApp.Shutdown()
		},
	})

	if err != nil {
		logger.Fatal("Wails 运行失败", zap.Error(err))
	}
}
