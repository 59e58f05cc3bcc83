package main

import (
	"fmt"
	"os"

	"github.com/masterie/masterie/internal/app"
)

func main() {
	// ログはstderrへ出力する（stdoutは画面表示に使う）
	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
