package main

import (
	"os"
)

// 一次性查询, 结果以 JSON 输出到 stdout
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
