package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mafredri/cdp/devtool"
	"github.com/spf13/cobra"

	"hushtab/internal/config"
	"hushtab/internal/diagnostic"
	"hushtab/internal/logger"
	"hushtab/pkg/api"
	"hushtab/pkg/model"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hushtab",
	Short: "流媒体广告检测与自动静音守护进程",
	Long: `hushtab 通过浏览器调试协议监控流媒体标签页，结合页面信号
置信度与广告请求突发检测识别广告段，并在广告期间自动静音。

常用命令:
  hushtab targets            # 列出可附加的标签页
  hushtab run                # 启动守护进程（自动附加已知平台标签页）
  hushtab run --tab <id>     # 只监控指定标签页
  hushtab analyze <session>  # 离线分析一次诊断采集`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径（YAML），缺省使用内置默认值")
	rootCmd.AddCommand(runCmd, targetsCmd, exportCmd, analyzeCmd)

	runCmd.Flags().StringArrayVar(&runTabs, "tab", nil, "只附加指定标签页（可重复），指定后关闭自动附加")
	runCmd.Flags().DurationVar(&runScanEvery, "scan-every", 10*time.Second, "自动附加模式下重新扫描标签页的间隔")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "输出文件，缺省写到标准输出")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.NewConfig(), nil
	}
	return config.Load(configPath)
}

var (
	runTabs      []string
	runScanEvery time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "启动监控守护进程",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := api.New(configPath, nil)
		if err != nil {
			return err
		}
		svc.Start()
		defer svc.Stop()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go printEvents(ctx, svc.SubscribeEvents())

		if len(runTabs) > 0 {
			for _, t := range runTabs {
				if err := svc.Attach(model.TabID(t)); err != nil {
					return err
				}
			}
		} else {
			go autoAttachLoop(ctx, svc, runScanEvery)
		}

		<-ctx.Done()
		return nil
	},
}

// autoAttachLoop 周期扫描浏览器标签页，自动附加落在已知流媒体
// 平台上的页面。通用平台的页面不自动附加，避免把整个浏览器都
// 拖进监控。
func autoAttachLoop(ctx context.Context, svc *api.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		lctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		targets, err := svc.ListTargets(lctx)
		cancel()
		if err == nil {
			for _, t := range targets {
				if t.Attached || t.Platform == model.PlatformGeneric {
					continue
				}
				if err := svc.Attach(t.ID); err != nil {
					fmt.Fprintf(os.Stderr, "附加 %s 失败: %v\n", t.ID, err)
				}
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func printEvents(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			switch e.Type {
			case "ad_state":
				verb := "广告结束，恢复声音"
				if e.AdState != nil && e.AdState.IsAd {
					verb = "广告开始，静音"
				}
				conf := 0
				if e.AdState != nil {
					conf = e.AdState.Confidence
				}
				fmt.Printf("[%s] %s (置信度 %d) tab=%s\n", e.Platform, verb, conf, e.Tab)
			case "net_phase":
				fmt.Printf("[net] tab=%s phase=%s\n", e.Tab, e.Phase)
			default:
				fmt.Printf("[%s] tab=%s %s\n", e.Type, e.Tab, e.URL)
			}
		}
	}
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "列出浏览器当前的页面类标签页",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		targets, err := devtool.New(cfg.DevToolsURL).List(ctx)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if t.Type != devtool.Page {
				continue
			}
			fmt.Printf("%s  [%s]  %s\n", t.ID, model.DetectPlatform(t.URL), t.URL)
		}
		return nil
	},
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "导出一次诊断采集为 JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		out, err := exportSession(args[0])
		if err != nil {
			return err
		}
		if exportOut == "" {
			fmt.Println(out)
			return nil
		}
		return os.WriteFile(exportOut, []byte(out), 0o644)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <session-id|export.json>",
	Short: "离线分析一次诊断采集，对照人工标注评估检测质量",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var export string
		if data, err := os.ReadFile(args[0]); err == nil {
			export = string(data)
		} else {
			export, err = exportSession(args[0])
			if err != nil {
				return err
			}
		}
		report, err := diagnostic.Analyze(export)
		if err != nil {
			return err
		}
		fmt.Println(report.String())
		return nil
	},
}

// exportSession 直接打开诊断库导出，不经过完整服务装配
func exportSession(id string) (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	store, err := diagnostic.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, logger.NewNop())
	if err != nil {
		return "", err
	}
	return store.Export(id)
}
