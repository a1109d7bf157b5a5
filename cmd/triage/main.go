package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"invtriage/internal/config"

	"github.com/spf13/cobra"
)

// version 은 빌드 시 -ldflags 로 주입된다.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Cross-account investigation triage",
	Long: `triage 는 client 계정의 DevOps Agent investigation 을 요약해 central bus 로 보내고(monitor),
central 계정에서 severity routing 과 cross-client pattern 분석을 수행한다(central).`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		setMaxProcs()
		if p := config.LoadDotEnv(); p != "" {
			fmt.Fprintf(os.Stderr, "loaded env file %s\n", p)
		}
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(centralCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setMaxProcs
//
// Fargate 는 vCPU 단위로 CPU share 가 제한되는데 Go 런타임은 호스트 코어 수만큼
// GOMAXPROCS 를 잡는다. GOMAXPROCS 환경변수가 없으면 1 로 고정한다.
func setMaxProcs() {
	if v := os.Getenv("GOMAXPROCS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			runtime.GOMAXPROCS(n)
		}
		return
	}
	runtime.GOMAXPROCS(1)
}
