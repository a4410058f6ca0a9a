package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iabetor/newsalert/internal/config"
	"github.com/iabetor/newsalert/internal/cursor"
	"github.com/iabetor/newsalert/internal/logger"
	"github.com/iabetor/newsalert/internal/monitor"
	"github.com/iabetor/newsalert/internal/notify"
	"github.com/iabetor/newsalert/internal/resolver"
	"github.com/iabetor/newsalert/internal/rss"
	"github.com/iabetor/newsalert/internal/throttle"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "newsalert",
		Usage: "按关键词监控 RSS 订阅源并推送到 Telegram",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "configs/newsalert.yaml",
				Usage:   "配置文件路径",
				Sources: cli.EnvVars("NEWSALERT_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "处理所有订阅源一次",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "只打印将要推送的消息，不写入游标"},
				},
				Action: cmdRun,
			},
			{
				Name:   "validate",
				Usage:  "检查配置文件",
				Action: cmdValidate,
			},
			{
				Name:  "cursor",
				Usage: "查看订阅源游标",
				Commands: []*cli.Command{
					{
						Name:  "get",
						Usage: "打印订阅源当前的游标",
						Arguments: []cli.Argument{
							&cli.StringArg{Name: "url", UsageText: "订阅源地址"},
						},
						Action: cmdCursorGet,
					},
				},
			},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号，当前订阅源处理完后退出
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
		cancel()
	}()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "newsalert: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig 加载并校验配置，然后按配置初始化日志。
func loadConfig(c *cli.Command, requireTelegram bool) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(requireTelegram); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}

func cmdRun(ctx context.Context, c *cli.Command) error {
	dryRun := c.Bool("dry-run")

	cfg, err := loadConfig(c, !dryRun)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Infof("[main] newsalert 启动 (store=%s, dry_run=%v)", cfg.Store.Driver, dryRun)

	pacer := throttle.NewPacer(cfg.Pacing.Delay())

	store, err := cursor.Open(ctx, cfg.Store, cfg.HTTP.UserAgent)
	if err != nil {
		return fmt.Errorf("打开游标存储失败: %w", err)
	}
	defer store.Close()

	store = cursor.Paced(store, pacer)
	if dryRun {
		store = cursor.ReadOnly(store)
	}

	primary, diagnostic, closeDest := buildDestinations(cfg, pacer, dryRun)
	defer closeDest()

	notifier, err := notify.New(primary, diagnostic, notify.Options{
		Template:  cfg.Notify.Template,
		Separator: cfg.Notify.Separator,
		MaxLength: cfg.Notify.MaxLength,
	})
	if err != nil {
		return err
	}

	policy, err := resolver.ParseCursorPolicy(cfg.Resolver.CursorPolicy)
	if err != nil {
		return err
	}
	res := resolver.New(policy)
	res.Window = cfg.Resolver.Window()

	fetcher := rss.NewFetcher(cfg.HTTP.Timeout(), cfg.HTTP.UserAgent)
	report := monitor.New(cfg.Groups, fetcher, store, res, notifier).Run(ctx)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if report.Feeds > 0 && report.Failed() == report.Feeds {
		return fmt.Errorf("所有 %d 个订阅源均处理失败", report.Feeds)
	}
	return nil
}

// buildDestinations 创建主推送目标和调试目标。dry-run 时只写日志。
func buildDestinations(cfg *config.Config, pacer *throttle.Pacer, dryRun bool) ([]notify.Destination, notify.Destination, func()) {
	if dryRun {
		return []notify.Destination{notify.NewLogDestination("channel")}, notify.NewLogDestination("debug"), func() {}
	}

	timeout := cfg.HTTP.Timeout()
	primary := []notify.Destination{
		notify.NewTelegram(notify.TelegramOptions{
			APIURL:            cfg.Telegram.APIURL,
			Token:             cfg.Telegram.BotToken,
			ChatID:            cfg.Telegram.ChatID,
			Timeout:           timeout,
			MessagesPerMinute: cfg.Telegram.MessagesPerMinute,
			Pacer:             pacer,
		}),
	}
	diagnostic := notify.NewTelegram(notify.TelegramOptions{
		Name:              "telegram-debug",
		APIURL:            cfg.Telegram.APIURL,
		Token:             cfg.Telegram.DebugBotToken,
		ChatID:            cfg.Telegram.DebugChatID,
		Timeout:           timeout,
		MessagesPerMinute: cfg.Telegram.MessagesPerMinute,
		Pacer:             pacer,
	})

	closeFn := func() {}
	if cfg.Kafka.Enabled {
		k := notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, timeout)
		primary = append(primary, k)
		closeFn = func() {
			if err := k.Close(); err != nil {
				logger.Warnf("[main] 关闭 Kafka writer 失败: %v", err)
			}
		}
	}
	return primary, diagnostic, closeFn
}

func cmdValidate(_ context.Context, c *cli.Command) error {
	cfg, err := loadConfig(c, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	feeds := 0
	for _, g := range cfg.Groups {
		feeds += len(g.URLs)
	}
	fmt.Printf("配置有效: %d 个分组, %d 个订阅源, 存储 %s\n", len(cfg.Groups), feeds, cfg.Store.Driver)
	return nil
}

func cmdCursorGet(ctx context.Context, c *cli.Command) error {
	url := c.StringArg("url")
	if url == "" {
		return fmt.Errorf("用法: newsalert cursor get <url>")
	}

	cfg, err := loadConfig(c, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := cursor.Open(ctx, cfg.Store, cfg.HTTP.UserAgent)
	if err != nil {
		return fmt.Errorf("打开游标存储失败: %w", err)
	}
	defer store.Close()

	item, err := store.Get(ctx, url)
	if err != nil {
		return err
	}
	if item == nil {
		fmt.Printf("%s 没有游标\n", url)
		return nil
	}

	out, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
