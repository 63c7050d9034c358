// Command rtdetr runs RT-DETR object detection on a single image.
//
// Usage:
//
//	rtdetr <modelPath> <imagePath> <labelPath> <postFlag:0|1> [flags]
//	rtdetr bench <modelPath> <imagePath> <postFlag:0|1> [flags]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
