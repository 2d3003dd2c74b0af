package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand 组装命令行：serve 启动 webhook，render 离线生成单张图片。
func newRootCommand() *cobra.Command {
	var configFile string
	root := &cobra.Command{
		Use:           "blessing",
		Short:         "長輩圖 blessing image generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径（默认搜索当前目录的 blessing.yaml）")

	root.AddCommand(newServeCommand(&configFile))
	root.AddCommand(newRenderCommand(&configFile))
	return root
}
