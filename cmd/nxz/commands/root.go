package commands

import (
	"context"
	"fmt"
	"os"

	"nexuszip/pkg/app"
	"nexuszip/pkg/config"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，由 getApp 懒加载
	NXZ *app.App
)

var rootCmd = &cobra.Command{
	Use:           "nxz",
	Short:         "nexuszip: inspect and build NeXus-style zip containers",
	SilenceUsage:  true,
	SilenceErrors: true,
	// 命令结束后释放数据库连接
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if NXZ == nil {
			return nil
		}
		err := NXZ.Close()
		NXZ = nil
		return err
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

// getApp 只在需要目录或发布器的命令里初始化 App
func getApp(ctx context.Context) (*app.App, error) {
	if NXZ != nil {
		return NXZ, nil
	}
	a, err := app.NewApp(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nexuszip: %w", err)
	}
	NXZ = a
	return a, nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// 1. 全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.nxz/config.yaml)")

	// 2. 可被 yaml 与环境变量覆盖的参数，绑定到 Viper
	flags := map[string]string{
		"log-level":  "log.level",
		"workdir":    "archive.workdir",
		"creator":    "archive.creator",
		"catalog":    "catalog.driver",
		"catalog-db": "catalog.path",
	}
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("workdir", "", "parent directory for session working directories")
	rootCmd.PersistentFlags().String("creator", "", "creator recorded in the root attributes")
	rootCmd.PersistentFlags().String("catalog", "", "catalog driver (sqlite, postgres, none)")
	rootCmd.PersistentFlags().String("catalog-db", "", "sqlite catalog path")
	for flag, key := range flags {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		log.WithError(err).Fatal("config error")
	}
}
