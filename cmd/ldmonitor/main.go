package main

import (
	"context"
	"ldmonitor/cmd/ldmonitor/commands"
	"ldmonitor/internal/components/osutil"
)

func main() {
	ctx, cancel := osutil.SignalContext(context.Background())
	defer cancel()
	commands.ExecuteContext(ctx)
}
